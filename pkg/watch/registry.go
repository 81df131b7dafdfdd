package watch

import (
	"sync"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
)

// Identity decodes a document to itself.
func Identity(d docstore.Document) (docstore.Document, error) { return d, nil }

type regEntry struct {
	handle *CollectionHandle[docstore.Document]
	refs   int
}

// Registry memoizes collection subscriptions by structural query identity:
// collection name plus the canonical constraint key. Two watches with equal
// constraint values, regardless of object identity, share one underlying
// store subscription. Overlapping subscriptions on the same logical query
// would double-fire updates and leak feed connections.
type Registry struct {
	st  docstore.Store
	bus *errbus.Bus

	mu      sync.Mutex
	entries map[string]*regEntry
}

// NewRegistry creates an empty registry over the store and error bus.
func NewRegistry(st docstore.Store, bus *errbus.Bus) *Registry {
	return &Registry{st: st, bus: bus, entries: make(map[string]*regEntry)}
}

func subscriptionKey(collection string, c docstore.Constraint) string {
	return collection + "?" + c.Key()
}

// Watch returns the shared handle for the logical query and a release func.
// The first watcher for a query opens the subscription; the last release
// closes it. Releasing twice is a no-op the second time.
func (r *Registry) Watch(collection string, c docstore.Constraint) (*CollectionHandle[docstore.Document], func()) {
	key := subscriptionKey(collection, c)

	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok {
		e = &regEntry{handle: Collection(r.st, r.bus, collection, c, Identity)}
		r.entries[key] = e
	}
	e.refs++
	r.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			cur, ok := r.entries[key]
			if !ok || cur != e {
				return
			}
			cur.refs--
			if cur.refs <= 0 {
				cur.handle.Close()
				delete(r.entries, key)
			}
		})
	}
	return e.handle, release
}

// Active reports the number of distinct live logical queries.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
