// Package event provides the notification bus connecting concurrent workers
// to observers: progress, log lines, and job state transitions. The bus is an
// explicit object owned by the orchestrator's wiring, not a process-wide
// singleton. Delivery is best-effort to current subscribers only; there is no
// replay buffer, so late subscribers must snapshot job state directly.
package event

import "sync"

// DefaultBuffer is the subscriber channel capacity used by Subscribe
const DefaultBuffer = 256

// Bus is a multi-producer, multi-consumer fan-out channel. Publishing never
// blocks: a subscriber that falls behind its buffer loses events rather than
// stalling a download worker.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan Event
	closed bool
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new observer and returns its receive channel plus an
// unsubscribe function. Events published before the call are not delivered.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber, dropping it for
// subscribers whose buffer is full. Events from a single producer goroutine
// arrive in publish order; no cross-producer ordering is guaranteed.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Close detaches and closes all subscriber channels. Subsequent publishes are
// dropped and subsequent subscribes receive an already-closed channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
