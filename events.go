package driftwatch

import (
	"fmt"
	"sync"
	"time"
)

// Subscription is one consumer's view of the event channel. Items arrive on
// C in the order they were classified; when the buffer is full the oldest
// unconsumed item is evicted, so a slow consumer sees gaps but always fresh
// data.
type Subscription struct {
	ID      string
	hub     *Hub
	ch      chan ClassifiedSample
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
	created time.Time
	dropped uint64
}

// C returns the channel for receiving classified samples.
func (s *Subscription) C() <-chan ClassifiedSample {
	return s.ch
}

// Dropped returns how many items were evicted from this subscription's
// buffer because the consumer fell behind.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close detaches the subscription from the hub and closes its channel.
func (s *Subscription) Close() {
	s.hub.Unsubscribe(s.ID)
}

// markClosed closes the underlying channels once. Called by the hub with the
// subscription already removed, so no publish can race the close.
func (s *Subscription) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// Hub is the bounded handoff between the detector and its consumers. The
// detector is the single producer; consumers attach via Subscribe. In
// fan-out mode every subscription receives every item, otherwise the hub
// accepts exactly one subscription.
type Hub struct {
	capacity int
	fanOut   bool
	mu       sync.RWMutex
	subs     map[string]*Subscription
	nextID   uint64
	closed   bool
}

// NewHub creates an event hub with the given per-subscription capacity.
func NewHub(capacity int, fanOut bool) *Hub {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Hub{
		capacity: capacity,
		fanOut:   fanOut,
		subs:     make(map[string]*Subscription),
	}
}

// Subscribe attaches a new consumer. Fails with ErrSubscriberLimit when the
// hub is in single-consumer mode and already has one, or ErrClosed after
// Close.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if !h.fanOut && len(h.subs) >= 1 {
		return nil, ErrSubscriberLimit
	}

	h.nextID++
	sub := &Subscription{
		ID:      fmt.Sprintf("sub-%d", h.nextID),
		hub:     h,
		ch:      make(chan ClassifiedSample, h.capacity),
		done:    make(chan struct{}),
		created: time.Now(),
	}
	h.subs[sub.ID] = sub
	return sub, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.markClosed()
	}
}

// Publish delivers a classified sample to every subscription. Never blocks:
// a full buffer evicts its oldest item to make room.
func (h *Hub) Publish(cs ClassifiedSample) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- cs:
			continue
		default:
		}
		// Buffer full: evict the oldest unconsumed item. The detector is
		// the only producer, so the retry cannot find the buffer full
		// again.
		select {
		case <-sub.ch:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
		default:
		}
		select {
		case sub.ch <- cs:
		default:
		}
	}
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches and closes all subscriptions. Subsequent Subscribe calls
// fail with ErrClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.markClosed()
	}
}
