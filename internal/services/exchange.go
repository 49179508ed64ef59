package services

import (
	"errors"
	"strings"
	"sync"
)

type exchangeState int

const (
	exchangeStreaming exchangeState = iota
	exchangeCompleted
	exchangeFailed
)

var errExchangeClosed = errors.New("exchange already finished")

// exchange accumulates one streamed answer. Appends are accepted only while streaming and the
// first transition out of streaming wins. Only the winning complete call receives the final
// text, so at most one caller ever persists it.
type exchange struct {
	mu     sync.Mutex
	state  exchangeState
	answer strings.Builder
	err    error
}

func (x *exchange) append(delta string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != exchangeStreaming {
		return errExchangeClosed
	}
	x.answer.WriteString(delta)
	return nil
}

// complete moves streaming to completed and returns the accumulated answer. ok is false when the
// exchange had already finished.
func (x *exchange) complete() (string, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != exchangeStreaming {
		return "", false
	}
	x.state = exchangeCompleted
	return x.answer.String(), true
}

func (x *exchange) fail(err error) bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.state != exchangeStreaming {
		return false
	}
	x.state = exchangeFailed
	x.err = err
	return true
}

// failure is the error recorded by the winning fail call.
func (x *exchange) failure() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.err
}

func (x *exchange) partial() string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.answer.String()
}
