package engine

import (
	"github.com/fluxfuzzer/statefuzz/internal/graph"
)

// PlanEntry describes the test cases one path would produce
type PlanEntry struct {
	Name   string   // Path name, or the node chain for unnamed paths
	Nodes  []string // Node names, target last
	Fields int      // Mutable fields of the target
	Cases  int      // Test cases
}

// Plan lists the test cases of every named path, or of every path from the
// root when the graph has no named paths. It performs no I/O.
func (e *Engine) Plan() ([]PlanEntry, error) {
	var entries []PlanEntry

	names := e.graph.Paths()
	if len(names) == 0 {
		for _, edges := range e.graph.Walk() {
			entry, err := e.planEdges(graph.PathString(edges), edges)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
		return entries, nil
	}

	for _, name := range names {
		entry, err := e.PlanPath(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PlanPath describes the test cases of a named path
func (e *Engine) PlanPath(name string) (PlanEntry, error) {
	nodes, err := e.graph.Path(name)
	if err != nil {
		return PlanEntry{}, err
	}
	edges, err := e.graph.ResolvePath(nodes)
	if err != nil {
		return PlanEntry{}, err
	}
	return e.planEdges(name, edges)
}

func (e *Engine) planEdges(name string, edges []*graph.Edge) (PlanEntry, error) {
	target, err := e.graph.Node(edges[len(edges)-1].To)
	if err != nil {
		return PlanEntry{}, err
	}
	return PlanEntry{
		Name:   name,
		Nodes:  graph.NodeNames(edges),
		Fields: len(target.Mutable()),
		Cases:  target.NumMutations(),
	}, nil
}
