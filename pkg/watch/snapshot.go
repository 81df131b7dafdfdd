// Package watch turns the document store's change feed into live snapshots:
// a document observer for a single record and a collection observer for a
// filtered/ordered/paginated set. Observers never block the caller and never
// propagate failures as panics; everything arrives as snapshot data. Store
// authorization rejections are additionally published on the error bus so a
// single global handler can report them.
package watch

import (
	"encoding/json"
	"sync"

	"github.com/apihub/hub/pkg/docstore"
)

// Snapshot is the materialized result of a subscription. Loading==true
// implies Err==nil; once Loading transitions to false it never returns to
// true for the lifetime of the same subscription. On failure Value keeps its
// last good state.
type Snapshot[T any] struct {
	Value   T
	Loading bool
	Err     error
}

// Phase is the subscription lifecycle state. Failed is terminal for the
// subscription instance; recovery means opening a new watch.
type Phase int

const (
	Idle Phase = iota
	Subscribing
	Live
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DecodeFunc converts a stored document into the caller's type.
type DecodeFunc[T any] func(docstore.Document) (T, error)

// JSONDecode builds a DecodeFunc that round-trips the document payload plus
// its id through encoding/json into T. T fields use json tags; the document
// id lands in the "id" field.
func JSONDecode[T any]() DecodeFunc[T] {
	return func(d docstore.Document) (T, error) {
		var v T
		m := docstore.CloneData(d.Data)
		if m == nil {
			m = map[string]any{}
		}
		m["id"] = d.ID
		b, err := json.Marshal(m)
		if err != nil {
			return v, err
		}
		err = json.Unmarshal(b, &v)
		return v, err
	}
}

// runner is the per-subscription event loop. Jobs posted from the change
// feed and from the initial load run serially on one goroutine, so snapshot
// transitions and listener callbacks are totally ordered. After stop, posted
// jobs are dropped: a late change for a closed watcher is a no-op.
type runner struct {
	jobs       chan func()
	quit       chan struct{}
	stopOnce   sync.Once
	cancelFeed func()
}

func newRunner() *runner {
	return &runner{
		jobs: make(chan func(), 64),
		quit: make(chan struct{}),
	}
}

func (r *runner) start() {
	go func() {
		for {
			select {
			case <-r.quit:
				return
			case fn := <-r.jobs:
				select {
				case <-r.quit:
					return
				default:
				}
				fn()
			}
		}
	}()
}

func (r *runner) post(fn func()) {
	select {
	case r.jobs <- fn:
	case <-r.quit:
	}
}

// stop tears the subscription down exactly once. Safe to call repeatedly.
func (r *runner) stop() {
	r.stopOnce.Do(func() {
		if r.cancelFeed != nil {
			r.cancelFeed()
		}
		close(r.quit)
	})
}

type listener[T any] struct {
	id int
	fn func(Snapshot[T])
}

// listeners is an ordered callback registry shared by both observers.
type listeners[T any] struct {
	mu     sync.Mutex
	nextID int
	subs   []listener[T]
}

func (l *listeners[T]) add(fn func(Snapshot[T])) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs = append(l.subs, listener[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			for i, s := range l.subs {
				if s.id == id {
					l.subs = append(l.subs[:i], l.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (l *listeners[T]) notify(s Snapshot[T]) {
	l.mu.Lock()
	subs := make([]listener[T], len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()
	for _, sub := range subs {
		sub.fn(s)
	}
}
