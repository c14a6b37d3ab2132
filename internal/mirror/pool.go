package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultThreads      = 2
	DefaultDrainTimeout = 30 * 24 * time.Hour
)

var (
	ErrPoolClosed   = errors.New("mirror: pool no longer accepts tasks")
	ErrDrainTimeout = errors.New("mirror: timed out waiting for tasks to finish")
)

// Task is one unit of work run by the pool.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines. The queue is
// unbounded so Submit never blocks the caller.
type Pool struct {
	ctx    context.Context
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	closed  bool
	active  int
	workers sync.WaitGroup
	done    chan struct{}
}

func NewPool(ctx context.Context, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultThreads
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pool{
		ctx:    ctx,
		logger: logger,
		done:   make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	p.workers.Add(size)
	for i := 0; i < size; i++ {
		go p.work()
	}
	go func() {
		p.workers.Wait()
		close(p.done)
	}()

	return p
}

func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, task)
	p.cond.Signal()
	return nil
}

// Drain stops accepting tasks and waits for every queued task to finish.
// It gives up after timeout or when the pool's context is cancelled; tasks
// still running at that point are left to finish on their own.
func (p *Pool) Drain(timeout time.Duration) error {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
		p.logger.Warn("waiting for completion exceeded the drain timeout",
			"timeout", timeout,
			"active", p.Active(),
			"pending", p.Pending(),
		)
		return ErrDrainTimeout
	case <-p.ctx.Done():
		p.logger.Warn("waiting for completion was interrupted",
			"active", p.Active(),
			"pending", p.Pending(),
		)
		return p.ctx.Err()
	}
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Pending returns the number of queued tasks not yet started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Pool) work() {
	defer p.workers.Done()

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.closed {
			p.cond.Wait()
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.active++
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked", "panic", r)
		}
	}()
	task(p.ctx)
}
