package watch

import (
	"context"
	"sync"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
)

// DocumentHandle is a live subscription to a single document. Value is nil
// while the document does not exist.
type DocumentHandle[T any] struct {
	mu    sync.Mutex
	snap  Snapshot[*T]
	phase Phase

	run  *runner
	subs listeners[*T]
}

// Document opens a live watch on a document path. An absent or invalid path
// settles immediately with {nil, loading:false, err:nil} and opens no
// subscription, so dependent lookups can watch a not-yet-known id for free.
//
// The returned handle must be Closed when the watcher goes out of scope or
// the path changes; re-watching a new path means Close then Document again,
// which guarantees the old subscription is torn down before the new one
// opens.
func Document[T any](st docstore.Store, bus *errbus.Bus, path docstore.Path, dec DecodeFunc[T]) *DocumentHandle[T] {
	h := &DocumentHandle[T]{}
	if !path.IsDocument() {
		h.snap = Snapshot[*T]{Value: nil, Loading: false, Err: nil}
		h.phase = Idle
		return h
	}

	h.snap = Snapshot[*T]{Value: nil, Loading: true, Err: nil}
	h.phase = Subscribing
	h.run = newRunner()

	// Subscribe to the feed before the initial read so no committed change
	// can fall between the two. Changes for other documents are filtered at
	// post time.
	h.run.cancelFeed = st.Feed().Subscribe(func(ch docstore.Change) {
		if ch.Collection != path.Collection || ch.ID != path.ID {
			return
		}
		h.run.post(func() { h.applyChange(ch, dec) })
	})

	h.run.post(func() {
		doc, ok, err := st.Get(context.Background(), path.Collection, path.ID)
		if err != nil {
			h.fail(bus, path, err)
			return
		}
		if !ok {
			h.deliver(nil)
			return
		}
		h.decodeAndDeliver(doc, dec)
	})
	h.run.start()
	return h
}

func (h *DocumentHandle[T]) applyChange(ch docstore.Change, dec DecodeFunc[T]) {
	if h.Phase() == Failed {
		return
	}
	if ch.Deleted {
		h.deliver(nil)
		return
	}
	h.decodeAndDeliver(ch.Doc, dec)
}

func (h *DocumentHandle[T]) decodeAndDeliver(doc docstore.Document, dec DecodeFunc[T]) {
	v, err := dec(doc)
	if err != nil {
		// Decode failures surface on the snapshot but are not permission
		// events; the last good value stays in place.
		h.mu.Lock()
		h.snap.Loading = false
		h.snap.Err = err
		snap := h.snap
		h.mu.Unlock()
		h.subs.notify(snap)
		return
	}
	h.deliver(&v)
}

func (h *DocumentHandle[T]) deliver(v *T) {
	h.mu.Lock()
	h.snap = Snapshot[*T]{Value: v, Loading: false, Err: nil}
	h.phase = Live
	snap := h.snap
	h.mu.Unlock()
	h.subs.notify(snap)
}

func (h *DocumentHandle[T]) fail(bus *errbus.Bus, path docstore.Path, err error) {
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
	// Failed is terminal for this subscription instance.
	h.run.stop()
}

// Snapshot returns the current snapshot.
func (h *DocumentHandle[T]) Snapshot() Snapshot[*T] {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Phase returns the subscription lifecycle state.
func (h *DocumentHandle[T]) Phase() Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase
}

// OnUpdate registers a callback invoked on every snapshot transition, in
// registration order, from the subscription's event loop. The returned
// cancel is idempotent.
func (h *DocumentHandle[T]) OnUpdate(fn func(Snapshot[*T])) func() {
	if fn == nil {
		return func() {}
	}
	return h.subs.add(fn)
}

// Close tears the subscription down. Idempotent; no callback runs after it
// returns observable effect-wise (late feed changes become no-ops).
func (h *DocumentHandle[T]) Close() {
	if h.run != nil {
		h.run.stop()
	}
}
