package runtime

import (
	"context"
	"log/slog"
	"sync"

	"rendezvous/domain/event"
	"rendezvous/errors"
)

// StreamHandle decouples event delivery from the long-lived HTTP exchange
// that serves it. Consume is called by fanout and relay paths; a single
// serving goroutine drains Events and writes wire frames, which keeps all
// writes to one stream on one writer.
type StreamHandle struct {
	log    *slog.Logger
	events chan event.Event
	done   chan struct{}
	once   sync.Once
}

func NewStreamHandle(log *slog.Logger, bufferSize int) *StreamHandle {
	return &StreamHandle{
		log:    log,
		events: make(chan event.Event, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume hands one event to the serving goroutine. It never blocks: when
// the buffer is full the event is dropped, which is acceptable because the
// protocol guarantees no delivery to a stream that cannot keep up.
func (h *StreamHandle) Consume(ctx context.Context, e event.Event) error {
	select {
	case <-h.done:
		return errors.ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case h.events <- e:
		return nil
	case <-h.done:
		return errors.ErrStreamClosed
	default:
		h.log.Warn("Stream buffer full, dropping event", "kind", e.Kind())
		return nil
	}
}

// Close is idempotent and safe to call concurrently with Consume.
func (h *StreamHandle) Close() {
	h.once.Do(func() { close(h.done) })
}

// Events is drained by the serving goroutine only.
func (h *StreamHandle) Events() <-chan event.Event { return h.events }

// Done is closed when the handle is torn down.
func (h *StreamHandle) Done() <-chan struct{} { return h.done }
