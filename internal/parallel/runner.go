package parallel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/internal/graph"
	"github.com/fluxfuzzer/statefuzz/internal/state"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// Instance is one isolated copy of everything a path run touches
type Instance struct {
	Graph     *graph.Graph
	Session   *state.Session
	Transport engine.Transport
}

// Factory builds a fresh Instance for every path
type Factory func() (*Instance, error)

// Runner fuzzes named paths on a worker pool
type Runner struct {
	workers int
	factory Factory
	options []engine.Option
	logger  *slog.Logger
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithEngineOptions passes options to every engine. Observers must be safe
// for concurrent use.
func WithEngineOptions(opts ...engine.Option) RunnerOption {
	return func(r *Runner) { r.options = append(r.options, opts...) }
}

// NewRunner creates a runner with the given number of workers
func NewRunner(workers int, factory Factory, opts ...RunnerOption) *Runner {
	r := &Runner{
		workers: workers,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run fuzzes every entry of plan. Case indexes match what a sequential run
// over the same plan would assign. The first path error cancels the others.
func (r *Runner) Run(ctx context.Context, plan []engine.PlanEntry) (engine.Summary, error) {
	pool, err := NewPool(r.workers)
	if err != nil {
		return engine.Summary{}, fmt.Errorf("create pool: %w", err)
	}
	defer pool.Shutdown()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		total    = engine.Summary{ByStatus: make(map[types.CaseStatus]int)}
		firstErr error
	)

	base := 0
	for _, entry := range plan {
		entry, offset := entry, base
		base += entry.Cases

		err := pool.Submit(func() error {
			sum, err := r.runPath(ctx, entry, offset)

			mu.Lock()
			defer mu.Unlock()
			merge(&total, sum)
			if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("path %s: %w", entry.Name, err)
				cancel()
			}
			return err
		})
		if err != nil {
			cancel()
			pool.Wait()
			return total, fmt.Errorf("submit %s: %w", entry.Name, err)
		}
	}

	pool.Wait()
	r.logger.Info("parallel run finished",
		slog.Int("paths", len(plan)),
		slog.Int("workers", r.workers),
		slog.Int("executed", total.Executed),
	)
	return total, firstErr
}

func (r *Runner) runPath(ctx context.Context, entry engine.PlanEntry, base int) (engine.Summary, error) {
	inst, err := r.factory()
	if err != nil {
		return engine.Summary{}, err
	}

	opts := append([]engine.Option{engine.WithLogger(r.logger)}, r.options...)
	opts = append(opts, engine.WithIndexBase(base))
	e := engine.New(inst.Graph, inst.Session, inst.Transport, opts...)

	err = e.FuzzNodes(ctx, entry.Nodes)
	return e.Summary(), err
}

func merge(dst *engine.Summary, src engine.Summary) {
	dst.Enumerated += src.Enumerated
	dst.Executed += src.Executed
	dst.Skipped += src.Skipped
	dst.Resets += src.Resets
	if src.Duration > dst.Duration {
		dst.Duration = src.Duration
	}
	for k, v := range src.ByStatus {
		dst.ByStatus[k] += v
	}
}
