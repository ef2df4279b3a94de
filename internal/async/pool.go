// Package async provides the bounded worker pool that runs extraction units.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("pool is shutting down")

// Task is one unit of work; workerID is 1-based.
type Task func(workerID int)

type Pool struct {
	logger  *slog.Logger
	workers int

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

func NewPool(logger *slog.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		ch:      make(chan Task, 16),
	}
	for _, o := range opts {
		o(p)
	}
	p.start()
	return p
}

// Workers reports the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("async.worker.started", "worker_id", workerID)
				for task := range p.ch {
					p.run(workerID, task)
				}
				p.logger.Debug("async.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// run keeps a panicking task from taking the worker down with it.
func (p *Pool) run(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("async.task.panic", "worker_id", workerID, "panic", r)
		}
	}()
	task(workerID)
}

// Submit queues task, blocking while the queue is full. It gives up when ctx
// is done or the pool has been shut down.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.ch <- task:
		return nil
	default:
	}
	p.logger.Debug("async.queue.full", "queue_size", cap(p.ch))
	select {
	case p.ch <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for queued ones to drain. It
// returns ctx.Err() if ctx ends first; workers keep draining in that case.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); p.wg.Wait() }()

	select {
	case <-ctx.Done():
		p.logger.Warn("async.shutdown.interrupted")
		return ctx.Err()
	case <-done:
		p.logger.Debug("async.shutdown.drained")
		return nil
	}
}
