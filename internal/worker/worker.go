// Package worker provides a fixed-size goroutine pool with a bounded task
// queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull = errors.New("worker: task queue is full")
	ErrStopped   = errors.New("worker: pool is stopped")
)

// Config represents pool configuration.
type Config struct {
	Workers   int // number of worker goroutines
	QueueSize int // tasks that may wait for a free worker
}

// DefaultConfig returns the smallest pool that can run one aggregation's
// fetches side by side.
func DefaultConfig() Config {
	return Config{Workers: 3, QueueSize: 64}
}

func (cfg Config) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("worker: workers must be greater than 0, got %d", cfg.Workers)
	}
	if cfg.QueueSize < 1 {
		return fmt.Errorf("worker: queue size must be greater than 0, got %d", cfg.QueueSize)
	}
	return nil
}

// Task is a unit of work. Tasks must observe their own context; the pool does
// not interrupt them.
type Task func()

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Workers   int
	Active    int64
	Pending   int64
	Completed int64
	Panicked  int64
}

// Pool runs submitted tasks on a fixed set of goroutines.
type Pool struct {
	workers int
	tasks   chan Task
	wg      sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool

	active    atomic.Int64
	pending   atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

func NewPool(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		workers: cfg.Workers,
		tasks:   make(chan Task, cfg.QueueSize),
	}, nil
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	p.pending.Add(1)
	select {
	case p.tasks <- task:
		return nil
	default:
		p.pending.Add(-1)
		return ErrQueueFull
	}
}

// Stop stops accepting tasks and waits for queued ones to drain, or for ctx
// to end.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) Workers() int { return p.workers }

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Active:    p.active.Load(),
		Pending:   p.pending.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	p.pending.Add(-1)
	p.active.Add(1)
	defer func() {
		p.active.Add(-1)
		if r := recover(); r != nil {
			p.panicked.Add(1)
			return
		}
		p.completed.Add(1)
	}()
	task()
}
