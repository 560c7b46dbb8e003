package events

import (
	"context"

	"github.com/onnwee/chat-tender/telemetry"
)

// DefaultCapacity bounds the bus. A full bus suspends producers rather than
// growing memory; the consumer drains with non-blocking polls.
const DefaultCapacity = 100

// Bus is a bounded, ordered, multi-producer single-consumer event channel.
// Per-producer order is preserved; there is no global order across producers.
type Bus struct {
	ch chan AppEvent
}

// NewBus returns a bus with the given capacity (DefaultCapacity if <= 0).
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{ch: make(chan AppEvent, capacity)}
}

// Publish enqueues ev, blocking while the bus is full. Returns ctx.Err() if
// the producer is cancelled while waiting.
func (b *Bus) Publish(ctx context.Context, ev AppEvent) error {
	select {
	case b.ch <- ev:
		telemetry.EventsPublished.Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll returns the next event without blocking; ok is false when the bus is
// empty. The reducer is never the side that waits.
func (b *Bus) Poll() (AppEvent, bool) {
	select {
	case ev := <-b.ch:
		return ev, true
	default:
		return nil, false
	}
}

// Len reports the number of queued events.
func (b *Bus) Len() int {
	return len(b.ch)
}
