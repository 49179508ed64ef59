package sse

import (
	"context"
	"errors"
	"sync"
)

type EventKind int

const (
	EventChunk EventKind = iota
	EventDone
	EventError
)

type Event struct {
	Kind EventKind
	Data string
	Err  error
}

var ErrClosed = errors.New("sse: emitter already terminated")

// Emitter is the server-push channel of one streamed answer. Producers call Send any number of
// times followed by exactly one of Complete or Fail; later terminal calls are ignored. The queue
// is unbounded so a producer never waits on the consumer.
type Emitter struct {
	mu       sync.Mutex
	queue    []string
	terminal *Event
	drained  bool
	detached bool
	notify   chan struct{}
}

func NewEmitter() *Emitter {
	return &Emitter{notify: make(chan struct{}, 1)}
}

// Failed returns an emitter that is already terminated with err.
func Failed(err error) *Emitter {
	e := NewEmitter()
	e.Fail(err)
	return e
}

func (e *Emitter) Send(chunk string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal != nil {
		return ErrClosed
	}
	if e.detached {
		return nil
	}
	e.queue = append(e.queue, chunk)
	e.wake()
	return nil
}

// Complete ends the stream successfully. It reports whether this call was the terminal one.
func (e *Emitter) Complete() bool {
	return e.finish(Event{Kind: EventDone})
}

// Fail ends the stream with err. It reports whether this call was the terminal one.
func (e *Emitter) Fail(err error) bool {
	if err == nil {
		err = errors.New("stream failed")
	}
	return e.finish(Event{Kind: EventError, Err: err})
}

func (e *Emitter) finish(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal != nil {
		return false
	}
	e.terminal = &ev
	e.wake()
	return true
}

// Detach drops queued and future chunks once the consumer is gone. The terminal signal is
// still recorded.
func (e *Emitter) Detach() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.detached = true
	e.queue = nil
}

// Err returns the failure once the emitter is terminated with Fail.
func (e *Emitter) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal == nil || e.terminal.Kind != EventError {
		return nil
	}
	return e.terminal.Err
}

// Terminated reports whether Complete or Fail has been called.
func (e *Emitter) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal != nil
}

// Ready fires whenever new events may be available from Drain.
func (e *Emitter) Ready() <-chan struct{} { return e.notify }

// Drain removes every queued chunk. Once the queue is empty after termination it also returns
// the terminal event, exactly once, and finished becomes true.
func (e *Emitter) Drain() (events []Event, finished bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drained {
		return nil, true
	}
	for _, chunk := range e.queue {
		events = append(events, Event{Kind: EventChunk, Data: chunk})
	}
	e.queue = nil
	if e.terminal != nil {
		events = append(events, *e.terminal)
		e.drained = true
		return events, true
	}
	return events, false
}

// Collect blocks until the stream terminates or ctx ends and returns every event in order.
func (e *Emitter) Collect(ctx context.Context) ([]Event, error) {
	var out []Event
	for {
		events, finished := e.Drain()
		out = append(out, events...)
		if finished {
			return out, nil
		}
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case <-e.notify:
		}
	}
}

func (e *Emitter) wake() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}
