package worker

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/chatstream-backend/internal/platform/logger"
)

// Submitter runs fire-and-forget work off the caller's goroutine.
type Submitter interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context)) *Handle
}

// Handle tracks one submitted task.
type Handle struct {
	name string
	done chan struct{}
	err  error
}

func newHandle(name string) *Handle {
	return &Handle{name: name, done: make(chan struct{})}
}

func (h *Handle) Name() string { return h.name }

// Done is closed once the task has returned or was rejected.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the task finishes or ctx ends. The error is non-nil when the task
// panicked or was rejected.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

var ErrPoolClosed = fmt.Errorf("worker pool closed")

// Pool runs tasks on goroutines, unbounded unless a limit is set. Submit never blocks: when the
// limit is reached the task waits for a slot in the background.
type Pool struct {
	g   errgroup.Group
	wg  sync.WaitGroup
	log *logger.Logger

	mu     sync.RWMutex
	closed bool
}

var _ Submitter = (*Pool)(nil)

func NewPool(maxConcurrency int, baseLog *logger.Logger) *Pool {
	p := &Pool{log: baseLog.With("component", "WorkerPool")}
	if maxConcurrency > 0 {
		p.g.SetLimit(maxConcurrency)
	}
	p.log.Info("Worker pool ready", "max_concurrency", maxConcurrency)
	return p
}

func (p *Pool) Submit(ctx context.Context, name string, fn func(ctx context.Context)) *Handle {
	h := newHandle(name)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.log.Warn("Rejected task after shutdown", "task", h.Name())
		h.finish(ErrPoolClosed)
		return h
	}

	p.wg.Add(1)
	task := func() error {
		defer p.wg.Done()
		h.finish(p.run(ctx, h, fn))
		return nil
	}
	if !p.g.TryGo(task) {
		go p.g.Go(task)
	}
	return h
}

func (p *Pool) run(ctx context.Context, h *Handle, fn func(ctx context.Context)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Task panic", "task", h.Name(), "panic", r)
			err = &panicError{Task: h.Name(), Val: r}
		}
	}()
	fn(ctx)
	return nil
}

// Close stops accepting tasks and waits for running ones until ctx ends.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
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

type panicError struct {
	Task string
	Val  any
}

func (e *panicError) Error() string { return fmt.Sprintf("task %s panicked: %v", e.Task, e.Val) }
