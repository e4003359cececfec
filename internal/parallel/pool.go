// Package parallel fuzzes independent paths concurrently. Every worker owns
// its own graph, session and transport, so no session state is shared.
package parallel

import (
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// Pool runs tasks on a bounded set of goroutines
type Pool struct {
	pool       *ants.Pool
	wg         sync.WaitGroup
	isShutdown atomic.Bool

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool of size workers. Submit blocks while all are busy.
func NewPool(size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size, ants.WithPreAlloc(true))
	if err != nil {
		return nil, err
	}
	return &Pool{pool: pool}, nil
}

// Submit adds a task that can return an error
func (p *Pool) Submit(task func() error) error {
	if p.isShutdown.Load() {
		return ants.ErrPoolClosed
	}

	p.submitted.Add(1)
	p.wg.Add(1)

	err := p.pool.Submit(func() {
		defer p.wg.Done()
		defer p.completed.Add(1)
		if err := task(); err != nil {
			p.failed.Add(1)
		}
	})
	if err != nil {
		p.submitted.Add(-1)
		p.wg.Done()
	}
	return err
}

// Wait blocks until all submitted tasks complete
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown waits for running tasks and releases the workers
func (p *Pool) Shutdown() {
	p.isShutdown.Store(true)
	p.Wait()
	p.pool.Release()
}

// PoolStats holds pool counters
type PoolStats struct {
	Capacity  int
	Submitted int64
	Completed int64
	Failed    int64
}

// Stats returns current pool statistics
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Capacity:  p.pool.Cap(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
