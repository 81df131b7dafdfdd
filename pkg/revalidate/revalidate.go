// Package revalidate is the process-wide "mark this view stale" signal fired
// after successful writes, so readers that are not on a live subscription
// still pick up fresh data on their next render.
package revalidate

import "sync"

type subscriber struct {
	id int
	fn func(view string)
}

// Signal fans stale-view notifications out to registered listeners.
type Signal struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// New creates an empty signal.
func New() *Signal {
	return &Signal{}
}

// MarkStale notifies all listeners, synchronously, in registration order.
func (s *Signal) MarkStale(view string) {
	s.mu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.fn(view)
	}
}

// OnStale registers a listener and returns its cancel func.
func (s *Signal) OnStale(fn func(view string)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}
