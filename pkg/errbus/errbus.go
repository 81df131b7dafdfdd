// Package errbus carries permission-denied events from observers and the
// mutation gateway to cross-cutting handlers (a global toast, an audit log).
// It is fire-and-forget telemetry, not a durable queue: events published with
// no subscribers are dropped.
package errbus

import (
	"sync"

	"github.com/apihub/hub/pkg/errmodel"
)

// Op is the store operation that was rejected.
type Op string

const (
	OpGet    Op = "get"
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes a single authorization rejection. Immutable once published.
type Event struct {
	Path             string
	Operation        Op
	AttemptedPayload map[string]any
	Message          string
}

// FromError converts a store permission error into an Event. Returns false
// for anything that is not an authorization rejection.
func FromError(err error) (Event, bool) {
	if !errmodel.IsPermissionDenied(err) {
		return Event{}, false
	}
	ce := errmodel.From(err)
	ev := Event{Message: ce.Message}
	if p, ok := ce.Context["path"].(string); ok {
		ev.Path = p
	}
	if o, ok := ce.Context["operation"].(string); ok {
		ev.Operation = Op(o)
	}
	if pl, ok := ce.Context["payload"].(map[string]any); ok {
		ev.AttemptedPayload = pl
	}
	return ev, true
}

// Handler receives published events.
type Handler func(Event)

type subscriber struct {
	id int
	fn Handler
}

// Bus is a process-wide fan-out channel for permission events. The zero value
// is not usable; construct with New and pass it to observers and gateways as
// an explicit dependency.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Publish delivers the event synchronously to all current subscribers in
// registration order. A subscriber that panics does not prevent delivery to
// the remaining subscribers.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()
	for _, s := range subs {
		deliver(s.fn, ev)
	}
}

func deliver(fn Handler, ev Event) {
	defer func() { _ = recover() }()
	fn(ev)
}

// Subscribe registers a handler and returns its cancel func. Cancelling twice
// is a no-op the second time.
func (b *Bus) Subscribe(fn Handler) func() {
	if fn == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Len reports the current number of subscribers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
