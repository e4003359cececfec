// Package engine drives stateful fuzzing runs. For every test case it walks a
// path through the session graph with canonical requests, then sends the
// target node with exactly one field mutated.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fluxfuzzer/statefuzz/internal/graph"
	"github.com/fluxfuzzer/statefuzz/internal/primitive"
	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/internal/template"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Transport carries rendered requests to the target. It is opened and closed
// once per test case.
type Transport interface {
	Open(ctx context.Context) error
	Send(ctx context.Context, data []byte) (int, error)
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// Observer is notified after every executed test case
type Observer interface {
	OnCase(res *types.CaseResult)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(res *types.CaseResult)

func (f ObserverFunc) OnCase(res *types.CaseResult) { f(res) }

// errWindowDone stops enumeration once the index window has been passed
var errWindowDone = errors.New("index window exhausted")

// Engine runs test cases against one graph and session. It is not safe for
// concurrent use: the session is shared by every case it runs.
type Engine struct {
	graph      *graph.Graph
	session    *state.Session
	transport  Transport
	logger     *slog.Logger
	observers  []Observer
	indexStart int
	indexEnd   int
	sleep      time.Duration

	index      int
	exhausted  bool
	baseResets int
	summary    Summary
}

// Summary counts what a run did
type Summary struct {
	Enumerated int                      // Test case indexes visited
	Executed   int                      // Cases actually sent
	Skipped    int                      // Cases outside the index window
	Resets     int                      // Session resets done by pre-send callbacks
	ByStatus   map[types.CaseStatus]int // Executed cases by outcome
	Duration   time.Duration
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithObserver adds an observer
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithIndexWindow restricts execution to cases start..end (1-based,
// inclusive). Zero means no bound.
func WithIndexWindow(start, end int) Option {
	return func(e *Engine) {
		e.indexStart = start
		e.indexEnd = end
	}
}

// WithIndexBase numbers cases from base+1. Paths fuzzed by separate engines
// use it to keep the indexes a single sequential run would assign.
func WithIndexBase(base int) Option {
	return func(e *Engine) {
		e.index = base
	}
}

// WithSleep pauses between test cases
func WithSleep(d time.Duration) Option {
	return func(e *Engine) {
		e.sleep = d
	}
}

// New creates an engine
func New(g *graph.Graph, s *state.Session, t Transport, opts ...Option) *Engine {
	e := &Engine{
		graph:     g,
		session:   s,
		transport: t,
		logger:    slog.Default(),
		summary:   Summary{ByStatus: make(map[types.CaseStatus]int)},
	}
	for _, opt := range opts {
		opt(e)
	}
	if s != nil {
		e.baseResets = s.Resets()
	}
	return e
}

// Summary returns the counts so far
func (e *Engine) Summary() Summary {
	out := e.summary
	if e.session != nil {
		out.Resets = e.session.Resets() - e.baseResets
	}
	out.ByStatus = make(map[types.CaseStatus]int, len(e.summary.ByStatus))
	for k, v := range e.summary.ByStatus {
		out.ByStatus[k] = v
	}
	return out
}

// Done reports whether the index window has been used up. Once it has, the
// Fuzz methods return without sending anything.
func (e *Engine) Done() bool {
	return e.indexEnd > 0 && e.index >= e.indexEnd
}

// FuzzPath fuzzes the last node of a named path
func (e *Engine) FuzzPath(ctx context.Context, name string) error {
	nodes, err := e.graph.Path(name)
	if err != nil {
		return err
	}
	return e.FuzzNodes(ctx, nodes)
}

// FuzzNodes fuzzes the last node of an explicit ordered node list
func (e *Engine) FuzzNodes(ctx context.Context, nodes []string) error {
	edges, err := e.graph.ResolvePath(nodes)
	if err != nil {
		return err
	}
	return e.run(ctx, [][]*graph.Edge{edges})
}

// FuzzAll fuzzes every node reachable from the root, each through the path
// that reaches it
func (e *Engine) FuzzAll(ctx context.Context) error {
	return e.run(ctx, e.graph.Walk())
}

func (e *Engine) run(ctx context.Context, paths [][]*graph.Edge) error {
	start := time.Now()
	defer func() {
		e.summary.Duration += time.Since(start)
	}()

	defer func() {
		if e.Done() && !e.exhausted {
			e.exhausted = true
			e.logger.Info("index window exhausted", slog.Int("index_end", e.indexEnd))
		}
	}()

	for _, edges := range paths {
		if e.Done() {
			return nil
		}
		err := e.fuzzEdges(ctx, edges)
		if errors.Is(err, errWindowDone) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fuzzEdges(ctx context.Context, edges []*graph.Edge) error {
	target, err := e.graph.Node(edges[len(edges)-1].To)
	if err != nil {
		return err
	}

	e.logger.Info("fuzzing path",
		slog.String("path", graph.PathString(edges)),
		slog.Int("mutations", target.NumMutations()),
	)

	for i, f := range target.Leaves() {
		if !f.Fuzzable() || f.NumMutations() == 0 {
			continue
		}
		label := FieldLabel(i, f)

		err := e.fuzzField(ctx, edges, target, f, label)
		f.Reset()
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) fuzzField(ctx context.Context, edges []*graph.Edge, target *template.Request, f primitive.Field, label string) error {
	for f.Mutate() {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.index++
		if e.indexEnd > 0 && e.index > e.indexEnd {
			return errWindowDone
		}
		e.summary.Enumerated++
		if e.index < e.indexStart {
			e.summary.Skipped++
			continue
		}

		res := e.runCase(ctx, edges, target)
		res.Index = e.index
		res.Field = label
		res.MutantIndex = f.MutantIndex()
		e.record(res)

		if e.sleep > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.sleep):
			}
		}
	}
	return nil
}

// runCase opens the transport, walks the prefix canonically and sends the
// target once. Failures are recorded on the result and never returned.
func (e *Engine) runCase(ctx context.Context, edges []*graph.Edge, target *template.Request) *types.CaseResult {
	start := time.Now()
	res := &types.CaseResult{Path: graph.NodeNames(edges)}
	defer func() {
		res.Duration = time.Since(start)
	}()

	if err := e.transport.Open(ctx); err != nil {
		return fail(res, err)
	}
	defer func() {
		if err := e.transport.Close(); err != nil {
			e.logger.Debug("close failed", slog.String("error", err.Error()))
		}
	}()

	e.graph.RunPreSend(e.session)

	var lastRecv []byte
	for i, edge := range edges {
		e.graph.Traverse(edge, e.session, lastRecv)

		req := target
		if i < len(edges)-1 {
			node, err := e.graph.Node(edge.To)
			if err != nil {
				return fail(res, err)
			}
			req = node
		}

		data := req.Render()
		if _, err := e.transport.Send(ctx, data); err != nil {
			return fail(res, fmt.Errorf("%s: %w", edge.To, err))
		}
		resp, err := e.transport.Recv(ctx)
		if err != nil {
			return fail(res, fmt.Errorf("%s: %w", edge.To, err))
		}
		lastRecv = resp

		if req == target {
			res.Request = data
			res.Response = resp
		}
	}

	res.Status = classify(res.Response)
	return res
}

func fail(res *types.CaseResult, err error) *types.CaseResult {
	res.Status = types.StatusTransportError
	res.Error = err
	return res
}

func (e *Engine) record(res *types.CaseResult) {
	e.summary.Executed++
	e.summary.ByStatus[res.Status]++

	if res.Status == types.StatusTransportError {
		e.logger.Warn("test case failed",
			slog.Int("index", res.Index),
			slog.String("field", res.Field),
			slog.String("error", res.Error.Error()),
		)
	} else {
		e.logger.Debug("test case",
			slog.Int("index", res.Index),
			slog.String("field", res.Field),
			slog.Int("mutant", res.MutantIndex),
			slog.String("status", string(res.Status)),
			slog.Int("response_bytes", len(res.Response)),
		)
	}

	for _, o := range e.observers {
		o.OnCase(res)
	}
}

// FieldLabel names a field for reports: its own name when it has one,
// otherwise its kind and position within the template
func FieldLabel(i int, f primitive.Field) string {
	if name := f.Name(); name != "" {
		return name
	}
	if sf, ok := f.(*primitive.StatefulField); ok {
		return sf.Header()
	}
	return f.Kind().String() + "#" + strconv.Itoa(i)
}
