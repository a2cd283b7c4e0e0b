// Package events fans published domain events out to subscribers.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
)

var (
	_ ports.EventPublisher = (*Bus)(nil)
	_ ports.EventSource    = (*Bus)(nil)
)

// DefaultBuffer is the per-subscriber channel capacity used when none is given.
const DefaultBuffer = 64

// Bus is an in-process event fan-out. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	logger ports.Logger

	mu     sync.RWMutex
	subs   map[uint64]chan domain.Event
	next   uint64
	closed bool

	dropped atomic.Uint64
}

// NewBus creates an empty Bus.
func NewBus(logger ports.Logger) *Bus {
	return &Bus{
		logger: logger,
		subs:   make(map[uint64]chan domain.Event),
	}
}

// Publish delivers the event to every subscriber with room for it.
func (b *Bus) Publish(_ context.Context, event domain.Event) {
	b.logger.Debug("event", "kind", string(event.Kind), "execution_id", event.ExecutionID.String(), "id", event.ID)

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.dropped.Add(1)
			b.logger.Warn("subscriber too slow, event dropped", "subscriber", id, "kind", string(event.Kind))
		}
	}
}

// Subscribe registers a subscriber. The returned function ends the subscription
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan domain.Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan domain.Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Later subscribers receive a closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.closed = true
}
