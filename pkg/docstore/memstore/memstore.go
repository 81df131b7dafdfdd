// Package memstore is an in-memory docstore.Store for tests, examples, and
// local development. Feed delivery is synchronous with the committing write,
// in commit order.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errmodel"
)

// Store keeps documents per collection in insertion order.
type Store struct {
	// writeMu is held across mutation and feed emission so subscribers see
	// changes in commit order. s.mu alone cannot give that: releasing it
	// before emitting would let two writers commit in one order and emit in
	// the other.
	writeMu sync.Mutex

	mu    sync.RWMutex
	colls map[string]*collection
	feed  *feed
	now   func() time.Time
}

type collection struct {
	order []string
	docs  map[string]docstore.Document
}

// Option configures the store.
type Option func(*Store)

// WithClock overrides the timestamp source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		colls: make(map[string]*collection),
		feed:  &feed{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) coll(name string) *collection {
	c, ok := s.colls[name]
	if !ok {
		c = &collection{docs: make(map[string]docstore.Document)}
		s.colls[name] = c
	}
	return c
}

// Get returns the document, or (zero, false, nil) when absent.
func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.colls[collection]
	if !ok {
		return docstore.Document{}, false, nil
	}
	d, ok := c.docs[id]
	if !ok {
		return docstore.Document{}, false, nil
	}
	return d.Clone(), true, nil
}

// List returns documents matching the constraint, in insertion order unless
// the constraint orders them.
func (s *Store) List(ctx context.Context, collection string, c docstore.Constraint) ([]docstore.Document, error) {
	s.mu.RLock()
	coll, ok := s.colls[collection]
	var docs []docstore.Document
	if ok {
		docs = make([]docstore.Document, 0, len(coll.order))
		for _, id := range coll.order {
			docs = append(docs, coll.docs[id].Clone())
		}
	}
	s.mu.RUnlock()
	return c.Apply(docs), nil
}

// Create stores data under a fresh uuid and emits a feed change.
func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (docstore.Document, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now().UTC()
	doc := docstore.Document{
		ID:         uuid.NewString(),
		Collection: collection,
		Data:       docstore.CloneData(data),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.mu.Lock()
	c := s.coll(collection)
	c.docs[doc.ID] = doc
	c.order = append(c.order, doc.ID)
	s.mu.Unlock()
	s.feed.emit(docstore.Change{Collection: collection, ID: doc.ID, Doc: doc.Clone()})
	return doc.Clone(), nil
}

// Set writes the document at collection/id, creating it if absent. With
// merge=true existing fields not present in data are preserved.
func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) (docstore.Document, error) {
	if id == "" {
		return docstore.Document{}, errmodel.Validation("bad_path", "document id is empty", map[string]any{"collection": collection})
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	now := s.now().UTC()
	s.mu.Lock()
	c := s.coll(collection)
	prev, existed := c.docs[id]
	doc := docstore.Document{ID: id, Collection: collection, CreatedAt: now, UpdatedAt: now}
	if existed {
		doc.CreatedAt = prev.CreatedAt
	}
	if merge && existed {
		doc.Data = docstore.Merge(prev.Data, data)
	} else {
		doc.Data = docstore.CloneData(data)
	}
	c.docs[id] = doc
	if !existed {
		c.order = append(c.order, id)
	}
	s.mu.Unlock()
	s.feed.emit(docstore.Change{Collection: collection, ID: id, Doc: doc.Clone()})
	return doc.Clone(), nil
}

// Delete removes the document if present. Deleting an absent document is a
// no-op and emits nothing.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	c, ok := s.colls[collection]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	if _, existed := c.docs[id]; !existed {
		s.mu.Unlock()
		return nil
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.feed.emit(docstore.Change{Collection: collection, ID: id, Deleted: true})
	return nil
}

// Feed returns the change feed shared by all subscribers.
func (s *Store) Feed() docstore.Feed { return s.feed }

// FeedSubscribers reports the number of live feed subscriptions. Used by
// tests asserting subscription memoization.
func (s *Store) FeedSubscribers() int { return s.feed.len() }

type feedSub struct {
	id int
	fn func(docstore.Change)
}

type feed struct {
	mu     sync.Mutex
	emitMu sync.Mutex
	nextID int
	subs   []feedSub
}

func (f *feed) Subscribe(fn func(docstore.Change)) func() {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, feedSub{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			for i, s := range f.subs {
				if s.id == id {
					f.subs = append(f.subs[:i], f.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// emit delivers the change to all subscribers. Callers hold writeMu, so
// deliveries arrive in commit order; emitMu keeps delivery serialized even
// for a stray direct caller.
func (f *feed) emit(ch docstore.Change) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()
	f.mu.Lock()
	subs := make([]feedSub, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()
	for _, s := range subs {
		s.fn(ch)
	}
}

func (f *feed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
