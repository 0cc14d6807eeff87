package events

import (
	"sync"
	"time"
)

// Subscription is one observer's event feed. Events arrive on C; the
// channel is closed on Cancel.
type Subscription struct {
	C      chan Event
	cancel func()
	once   sync.Once
}

// Cancel detaches the subscription from its hub and closes C.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Hub fans events out to a set of subscribers. Emit never blocks: a
// subscriber whose channel is full misses the event, which keeps slow
// observers from stalling executions or each other.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers an observer with the given channel buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 64
	}
	sub := &Subscription{C: make(chan Event, buffer)}
	sub.cancel = func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.C)
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Emit delivers ev to every current subscriber, dropping it for any
// whose buffer is full.
func (h *Hub) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.C <- ev:
		default:
		}
	}
}
