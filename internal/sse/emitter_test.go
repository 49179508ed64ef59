package sse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_OrderAndCompletion(t *testing.T) {
	em := NewEmitter()
	require.NoError(t, em.Send("Hi"))
	require.NoError(t, em.Send(" there"))
	assert.True(t, em.Complete())

	events, err := em.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, Event{Kind: EventChunk, Data: "Hi"}, events[0])
	assert.Equal(t, Event{Kind: EventChunk, Data: " there"}, events[1])
	assert.Equal(t, EventDone, events[2].Kind)
}

func TestEmitter_TerminalExactlyOnce(t *testing.T) {
	em := NewEmitter()
	boom := errors.New("boom")

	assert.True(t, em.Fail(boom))
	assert.False(t, em.Complete())
	assert.False(t, em.Fail(errors.New("second")))
	assert.ErrorIs(t, em.Send("late"), ErrClosed)
	assert.Equal(t, boom, em.Err())

	events, finished := em.Drain()
	assert.True(t, finished)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Kind)

	events, finished = em.Drain()
	assert.True(t, finished)
	assert.Empty(t, events, "terminal event is delivered once")
}

func TestEmitter_ConcurrentTerminalRace(t *testing.T) {
	em := NewEmitter()
	var wg sync.WaitGroup
	var wins sync.Map
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var won bool
			if i%2 == 0 {
				won = em.Complete()
			} else {
				won = em.Fail(errors.New("x"))
			}
			if won {
				wins.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	n := 0
	wins.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)
}

func TestEmitter_CollectWaitsForProducer(t *testing.T) {
	em := NewEmitter()
	go func() {
		for _, c := range []string{"a", "b", "c"} {
			_ = em.Send(c)
			time.Sleep(5 * time.Millisecond)
		}
		em.Complete()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	events, err := em.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, "abc", events[0].Data+events[1].Data+events[2].Data)
}

func TestEmitter_DetachDropsChunksKeepsTerminal(t *testing.T) {
	em := NewEmitter()
	require.NoError(t, em.Send("queued"))
	em.Detach()
	require.NoError(t, em.Send("dropped"))
	em.Complete()

	events, finished := em.Drain()
	assert.True(t, finished)
	require.Len(t, events, 1)
	assert.Equal(t, EventDone, events[0].Kind)
}

func TestFailed(t *testing.T) {
	em := Failed(errors.New("not yours"))
	assert.True(t, em.Terminated())
	assert.EqualError(t, em.Err(), "not yours")
}
