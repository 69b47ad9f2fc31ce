package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Errors returned by AsyncHandler.HandleEvent.
var (
	ErrQueueClosed = errors.New("event queue is closed")
	ErrQueueFull   = errors.New("event queue is full")
)

type queuedEvent struct {
	ctx   context.Context
	event *LifecycleEvent
}

// AsyncHandler delivers events to a slow downstream handler (such as a Kafka
// publisher) from a bounded queue drained by a fixed pool of workers, so the
// emitting request does not wait on the downstream.
type AsyncHandler struct {
	next    EventHandler
	queue   chan queuedEvent
	onError func(event *LifecycleEvent, err error)
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// AsyncConfig sizes an AsyncHandler.
type AsyncConfig struct {
	// QueueSize is the number of events buffered before HandleEvent rejects.
	QueueSize int
	// Workers is the number of delivery goroutines. Values below 1 mean 1.
	Workers int
	// OnError is called from a worker when next fails. Optional.
	OnError func(event *LifecycleEvent, err error)
}

// NewAsyncHandler starts the workers. Call Close to drain and stop them.
func NewAsyncHandler(next EventHandler, cfg AsyncConfig, logger *slog.Logger) *AsyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}

	h := &AsyncHandler{
		next:    next,
		queue:   make(chan queuedEvent, cfg.QueueSize),
		onError: cfg.OnError,
		logger:  logger.With("component", "async_event_handler"),
	}
	for i := 0; i < cfg.Workers; i++ {
		h.wg.Add(1)
		go h.worker(i)
	}
	return h
}

// HandleEvent enqueues event without blocking. The context's values are kept
// but its cancellation is not, since delivery outlives the request.
func (h *AsyncHandler) HandleEvent(ctx context.Context, event *LifecycleEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrQueueClosed
	}

	select {
	case h.queue <- queuedEvent{ctx: context.WithoutCancel(ctx), event: event}:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached", ErrQueueFull, cap(h.queue))
	}
}

// Close stops accepting events, delivers everything already queued and waits
// for the workers to exit or ctx to be done.
func (h *AsyncHandler) Close(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.queue)
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event queue drain interrupted: %w", ctx.Err())
	}
}

func (h *AsyncHandler) worker(id int) {
	defer h.wg.Done()

	for item := range h.queue {
		if err := h.next.HandleEvent(item.ctx, item.event); err != nil {
			h.logger.Error("async event delivery failed",
				"error", err,
				"worker_id", id,
				"event_id", item.event.ID,
				"event_type", item.event.Type)
			if h.onError != nil {
				h.onError(item.event, err)
			}
		}
	}
}
