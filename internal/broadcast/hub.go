// Package broadcast is a typed publish/subscribe hub with per-topic subscribers.
package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

const defaultBuffer = 16

// Subscription receives values published to its topic or to everyone.
type Subscription[T any] struct {
	ID    string
	Topic string
	C     <-chan T

	ch     chan T
	hub    *Hub[T]
	closed bool
}

// Close unsubscribes and closes C. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.hub.remove(s)
}

// Hub fans values out to subscribers. Delivery never blocks the publisher:
// a subscriber whose buffer is full misses the value and Dropped is incremented.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]*Subscription[T]
	buffer int
	closed bool

	dropped atomic.Int64
}

// New returns a hub whose subscribers buffer up to buffer values (16 when <= 0).
func New[T any](buffer int) *Hub[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub[T]{subs: make(map[string]*Subscription[T]), buffer: buffer}
}

// Subscribe registers a subscriber on topic. On a closed hub the returned
// subscription is already closed.
func (h *Hub[T]) Subscribe(topic string) *Subscription[T] {
	ch := make(chan T, h.buffer)
	s := &Subscription[T]{ID: uuid.NewString(), Topic: topic, C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closed = true
		close(ch)
		return s
	}
	h.subs[s.ID] = s
	return s
}

// Publish delivers v to every subscriber and returns how many received it.
func (h *Hub[T]) Publish(v T) int {
	return h.deliver(v, func(*Subscription[T]) bool { return true })
}

// PublishTo delivers v to subscribers of topic only.
func (h *Hub[T]) PublishTo(topic string, v T) int {
	return h.deliver(v, func(s *Subscription[T]) bool { return s.Topic == topic })
}

// Count returns the number of subscribers on topic, or all when topic is "".
func (h *Hub[T]) Count(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if topic == "" {
		return len(h.subs)
	}
	n := 0
	for _, s := range h.subs {
		if s.Topic == topic {
			n++
		}
	}
	return n
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub[T]) Dropped() int64 {
	return h.dropped.Load()
}

// Close unsubscribes everyone.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, s := range h.subs {
		delete(h.subs, id)
		s.closed = true
		close(s.ch)
	}
}

func (h *Hub[T]) deliver(v T, match func(*Subscription[T]) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, s := range h.subs {
		if !match(s) {
			continue
		}
		select {
		case s.ch <- v:
			n++
		default:
			h.dropped.Add(1)
		}
	}
	return n
}

func (h *Hub[T]) remove(s *Subscription[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	delete(h.subs, s.ID)
	s.closed = true
	close(s.ch)
}
