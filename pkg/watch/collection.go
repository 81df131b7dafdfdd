package watch

import (
	"context"
	"sync"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
)

// CollectionHandle is a live subscription to a filtered/ordered/paginated
// set of documents. Value holds the latest list in server-delivered order;
// it is an empty slice until the first push and keeps the last good list on
// failure.
type CollectionHandle[T any] struct {
	mu    sync.Mutex
	snap  Snapshot[[]T]
	phase Phase

	run  *runner
	subs listeners[[]T]
}

// Collection opens a live watch over a collection narrowed by the
// constraint. The query composes filter, ordering, cursor, and limit in that
// order; omitted axes stay unconstrained. An empty collection name settles
// immediately and opens no subscription.
//
// Changing the collection or any constraint field means Close then a fresh
// Collection call: the old subscription is fully torn down before the new
// one opens, so the same logical query never has two live subscriptions.
func Collection[T any](st docstore.Store, bus *errbus.Bus, collection string, c docstore.Constraint, dec DecodeFunc[T]) *CollectionHandle[T] {
	h := &CollectionHandle[T]{}
	h.snap = Snapshot[[]T]{Value: []T{}, Loading: false, Err: nil}
	if collection == "" {
		h.phase = Idle
		return h
	}

	h.snap.Loading = true
	h.phase = Subscribing
	h.run = newRunner()

	relist := func() {
		if h.Phase() == Failed {
			return
		}
		docs, err := st.List(context.Background(), collection, c)
		if err != nil {
			h.fail(bus, collection, err)
			return
		}
		out := make([]T, 0, len(docs))
		for _, d := range docs {
			v, derr := dec(d)
			if derr != nil {
				h.mu.Lock()
				h.snap.Loading = false
				h.snap.Err = derr
				snap := h.snap
				h.mu.Unlock()
				h.subs.notify(snap)
				return
			}
			out = append(out, v)
		}
		h.mu.Lock()
		h.snap = Snapshot[[]T]{Value: out, Loading: false, Err: nil}
		h.phase = Live
		snap := h.snap
		h.mu.Unlock()
		h.subs.notify(snap)
	}

	// Subscribe before the initial list so no committed change can slip
	// between them. Every change in the collection re-runs the query; the
	// re-list happens after the commit, so each push reflects at least that
	// change, in commit order.
	h.run.cancelFeed = st.Feed().Subscribe(func(ch docstore.Change) {
		if ch.Collection != collection {
			return
		}
		h.run.post(relist)
	})
	h.run.post(relist)
	h.run.start()
	return h
}

func (h *CollectionHandle[T]) fail(bus *errbus.Bus, collection string, err error) {
	if bus != nil {
		if ev, ok := errbus.FromError(err); ok {
			bus.Publish(ev)
		}
	}
	h.mu.Lock()
	h.snap.Loading = false
	h.snap.Err = err
	h.phase = Failed
	snap := h.snap
	h.mu.Unlock()
	h.subs.notify(snap)
	h.run.stop()
}

// Snapshot returns the current snapshot.
func (h *CollectionHandle[T]) Snapshot() Snapshot[[]T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Phase returns the subscription lifecycle state.
func (h *CollectionHandle[T]) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// OnUpdate registers a callback invoked on every snapshot transition, in
// registration order, from the subscription's event loop. The returned
// cancel is idempotent.
func (h *CollectionHandle[T]) OnUpdate(fn func(Snapshot[[]T])) func() {
	if fn == nil {
		return func() {}
	}
	return h.subs.add(fn)
}

// Close tears the subscription down. Idempotent.
func (h *CollectionHandle[T]) Close() {
	if h.run != nil {
		h.run.stop()
	}
}
