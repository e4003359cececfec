// Package graph connects request templates into a session graph. Edges carry
// callbacks that move session state forward between exchanges; pre-send
// callbacks put the state back to its path-start values.
package graph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/internal/template"
)

// Root is the name of the implicit node every path starts from
const Root = ""

// Callback runs after the source node of an edge has been sent and its
// response received. It must tolerate any response bytes.
type Callback func(s *state.Session, lastRecv []byte)

// PreSend runs before the first node of every path
type PreSend func(s *state.Session)

// Edge is a directed connection between two nodes
type Edge struct {
	From     string
	To       string
	Callback Callback
}

// Graph holds nodes, edges and named paths. It is built once before a run and
// only read during it.
type Graph struct {
	nodes     map[string]*template.Request
	nodeOrder []string
	edges     map[string][]*Edge
	preSend   []PreSend
	paths     map[string][]string
	pathOrder []string
	logger    *slog.Logger
}

// Option configures a Graph
type Option func(*Graph)

// WithLogger sets the logger used for callback failures
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger
	}
}

// New creates an empty graph
func New(opts ...Option) *Graph {
	g := &Graph{
		nodes:  make(map[string]*template.Request),
		edges:  make(map[string][]*Edge),
		paths:  make(map[string][]string),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddNode registers a template under its name, building it if needed
func (g *Graph) AddNode(req *template.Request) error {
	if req == nil || req.Name() == Root {
		return configError("add node", "", fmt.Errorf("node name is required"))
	}
	name := req.Name()
	if _, exists := g.nodes[name]; exists {
		return configError("add node", name, ErrDuplicateNode)
	}
	if err := req.Build(); err != nil {
		return configError("add node", name, err)
	}

	g.nodes[name] = req
	g.nodeOrder = append(g.nodeOrder, name)
	return nil
}

// Node returns a node by name
func (g *Graph) Node(name string) (*template.Request, error) {
	req, ok := g.nodes[name]
	if !ok {
		return nil, configError("node", name, ErrUnknownNode)
	}
	return req, nil
}

// Nodes returns node names in registration order
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodeOrder...)
}

// Connect adds an edge from one node to another. A nil callback is allowed.
func (g *Graph) Connect(from, to string, cb Callback) error {
	if from != Root {
		if _, ok := g.nodes[from]; !ok {
			return configError("connect", from, ErrUnknownNode)
		}
	}
	if _, ok := g.nodes[to]; !ok {
		return configError("connect", to, ErrUnknownNode)
	}
	if _, ok := g.Edge(from, to); ok {
		return configError("connect", edgeName(from, to), ErrDuplicateEdge)
	}

	g.edges[from] = append(g.edges[from], &Edge{From: from, To: to, Callback: cb})
	return nil
}

// ConnectRoot makes a node reachable from the root
func (g *Graph) ConnectRoot(to string) error {
	return g.Connect(Root, to, nil)
}

// Edge returns the edge between two nodes
func (g *Graph) Edge(from, to string) (*Edge, bool) {
	for _, e := range g.edges[from] {
		if e.To == to {
			return e, true
		}
	}
	return nil, false
}

// Edges returns the outgoing edges of a node in insertion order
func (g *Graph) Edges(from string) []*Edge {
	return append([]*Edge(nil), g.edges[from]...)
}

// AddPreSend registers a callback run before the first node of every path
func (g *Graph) AddPreSend(fn PreSend) {
	if fn != nil {
		g.preSend = append(g.preSend, fn)
	}
}

// RunPreSend executes the pre-send callbacks in registration order
func (g *Graph) RunPreSend(s *state.Session) {
	for i, fn := range g.preSend {
		g.safely(fmt.Sprintf("pre-send #%d", i+1), func() { fn(s) })
	}
}

// Traverse runs an edge's callback with the response of its source node.
// A panicking callback is logged and otherwise ignored; it reports false.
func (g *Graph) Traverse(e *Edge, s *state.Session, lastRecv []byte) bool {
	if e == nil || e.Callback == nil {
		return true
	}
	return g.safely(edgeName(e.From, e.To), func() { e.Callback(s, lastRecv) })
}

func (g *Graph) safely(what string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("callback panicked",
				slog.String("callback", what),
				slog.Any("panic", r),
			)
			ok = false
		}
	}()
	fn()
	return true
}

// AddPath registers a named path. Every node must exist and consecutive nodes
// must be connected, starting from the root.
func (g *Graph) AddPath(name string, nodes ...string) error {
	if _, exists := g.paths[name]; exists {
		return configError("add path", name, ErrDuplicatePath)
	}
	if _, err := g.ResolvePath(nodes); err != nil {
		return configError("add path", name, err)
	}

	g.paths[name] = append([]string(nil), nodes...)
	g.pathOrder = append(g.pathOrder, name)
	return nil
}

// Path returns the node names of a named path
func (g *Graph) Path(name string) ([]string, error) {
	nodes, ok := g.paths[name]
	if !ok {
		return nil, configError("path", name, ErrUnknownPath)
	}
	return append([]string(nil), nodes...), nil
}

// Paths returns path names in registration order
func (g *Graph) Paths() []string {
	return append([]string(nil), g.pathOrder...)
}

// ResolvePath turns an ordered list of node names into the edges walked to
// reach the last one. The first edge always leaves the root.
func (g *Graph) ResolvePath(nodes []string) ([]*Edge, error) {
	if len(nodes) == 0 {
		return nil, ErrEmptyPath
	}

	edges := make([]*Edge, 0, len(nodes))
	from := Root
	for _, to := range nodes {
		if _, ok := g.nodes[to]; !ok {
			return nil, fmt.Errorf("%w: '%s'", ErrUnknownNode, to)
		}
		e, ok := g.Edge(from, to)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoEdge, edgeName(from, to))
		}
		edges = append(edges, e)
		from = to
	}
	return edges, nil
}

// Walk enumerates every path from the root, depth first. Each node reachable
// without repeating a node on the current path yields one entry: the edges
// leading to it. Nodes already on the current path are not revisited.
func (g *Graph) Walk() [][]*Edge {
	var out [][]*Edge
	onPath := make(map[string]bool)

	var visit func(from string, prefix []*Edge)
	visit = func(from string, prefix []*Edge) {
		for _, e := range g.edges[from] {
			if onPath[e.To] {
				continue
			}
			path := append(append([]*Edge(nil), prefix...), e)
			out = append(out, path)

			onPath[e.To] = true
			visit(e.To, path)
			onPath[e.To] = false
		}
	}
	visit(Root, nil)
	return out
}

// NodeNames returns the node names along a list of edges
func NodeNames(edges []*Edge) []string {
	names := make([]string, len(edges))
	for i, e := range edges {
		names[i] = e.To
	}
	return names
}

// PathString renders edges as "a -> b -> c"
func PathString(edges []*Edge) string {
	return strings.Join(NodeNames(edges), " -> ")
}

func edgeName(from, to string) string {
	if from == Root {
		from = "<root>"
	}
	return from + " -> " + to
}
