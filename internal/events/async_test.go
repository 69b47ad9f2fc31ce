package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncHandlerDeliversAllOnClose(t *testing.T) {
	var delivered atomic.Int32
	next := HandlerFunc(func(context.Context, *LifecycleEvent) error {
		delivered.Add(1)
		return nil
	})

	h := NewAsyncHandler(next, AsyncConfig{QueueSize: 64, Workers: 4}, nil)
	for i := 0; i < 50; i++ {
		require.NoError(t, h.HandleEvent(context.Background(), newEvent(t)))
	}

	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, int32(50), delivered.Load())
	assert.ErrorIs(t, h.HandleEvent(context.Background(), newEvent(t)), ErrQueueClosed)
}

func TestAsyncHandlerRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	next := HandlerFunc(func(context.Context, *LifecycleEvent) error {
		started <- struct{}{}
		<-release
		return nil
	})

	h := NewAsyncHandler(next, AsyncConfig{QueueSize: 1, Workers: 1}, nil)

	require.NoError(t, h.HandleEvent(context.Background(), newEvent(t)))
	<-started // the worker holds the first event
	require.NoError(t, h.HandleEvent(context.Background(), newEvent(t)))
	assert.ErrorIs(t, h.HandleEvent(context.Background(), newEvent(t)), ErrQueueFull)

	close(release)
	require.NoError(t, h.Close(context.Background()))
}

func TestAsyncHandlerReportsFailuresAndIgnoresCancellation(t *testing.T) {
	var mu sync.Mutex
	var failed []*LifecycleEvent
	var sawCanceled atomic.Bool

	next := HandlerFunc(func(ctx context.Context, _ *LifecycleEvent) error {
		if ctx.Err() != nil {
			sawCanceled.Store(true)
		}
		return errors.New("broker unavailable")
	})

	h := NewAsyncHandler(next, AsyncConfig{
		QueueSize: 4,
		OnError: func(event *LifecycleEvent, _ error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, event)
		},
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	event := newEvent(t)
	require.NoError(t, h.HandleEvent(ctx, event))
	cancel()

	require.NoError(t, h.Close(context.Background()))
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, failed, 1)
	assert.Equal(t, event.ID, failed[0].ID)
	assert.False(t, sawCanceled.Load())
}

func TestAsyncHandlerCloseHonorsContext(t *testing.T) {
	release := make(chan struct{})
	next := HandlerFunc(func(context.Context, *LifecycleEvent) error {
		<-release
		return nil
	})

	h := NewAsyncHandler(next, AsyncConfig{QueueSize: 1}, nil)
	require.NoError(t, h.HandleEvent(context.Background(), newEvent(t)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Close(ctx), context.DeadlineExceeded)

	close(release)
}
