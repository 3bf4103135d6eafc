// Package async runs submitted tasks on a fixed set of workers.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("async: pool is shutting down")

// Task is one unit of work. Name is only used for logging.
type Task struct {
	Name string
	Run  func(ctx context.Context)

	ctx context.Context
}

type Pool struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}

// WithTaskTimeout bounds each task's context. Zero means no bound.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		ch:      make(chan Task, 256),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

// Workers reports the number of workers.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker started", "worker_id", workerID)
				for task := range p.ch {
					p.run(workerID, task)
				}
				p.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (p *Pool) run(workerID int, task Task) {
	ctx := task.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "worker_id", workerID, "task", task.Name, "panic", r)
		}
	}()
	task.Run(ctx)
}

// Submit queues fn. It blocks while the queue is full, until ctx is done.
// The task runs with ctx, so cancellation reaches tasks already queued.
func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context)) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("cannot submit: pool is shutting down", "task", name)
		return ErrClosed
	}
	task := Task{Name: name, Run: fn, ctx: ctx}
	select {
	case p.ch <- task:
		return nil
	default:
	}
	p.logger.Debug("queue full, applying backpressure", "task", name)
	select {
	case p.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.ch)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-done:
		p.logger.Debug("pool drained")
	case <-ctx.Done():
		p.logger.Warn("pool shutdown timed out", "error", ctx.Err())
	}
}
