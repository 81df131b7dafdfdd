// Package docstore defines the document store contract the realtime layer is
// built on: schemaless documents addressed by collection/id paths, CRUD with
// field-level merge, and a committed-write change feed that observers turn
// into live snapshots. Implementations must keep identical semantics across
// backends; not-found is a normal empty result, never an error.
package docstore

import (
	"context"
	"strings"
	"time"
)

// Document is a stored record. Data is the schemaless payload; ID and
// Collection locate it.
type Document struct {
	ID         string
	Collection string
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Path addresses either a collection (ID empty) or a single document.
type Path struct {
	Collection string
	ID         string
}

// ParsePath splits "collection" or "collection/id" into a Path. Deeper
// nesting is not supported.
func ParsePath(s string) (Path, bool) {
	parts := strings.Split(strings.Trim(s, "/"), "/")
	switch {
	case len(parts) == 1 && parts[0] != "":
		return Path{Collection: parts[0]}, true
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return Path{Collection: parts[0], ID: parts[1]}, true
	default:
		return Path{}, false
	}
}

// DocPath builds a document path.
func DocPath(collection, id string) Path { return Path{Collection: collection, ID: id} }

// IsDocument reports whether the path addresses a single document.
func (p Path) IsDocument() bool { return p.Collection != "" && p.ID != "" }

// IsCollection reports whether the path addresses a collection.
func (p Path) IsCollection() bool { return p.Collection != "" && p.ID == "" }

func (p Path) String() string {
	if p.ID == "" {
		return p.Collection
	}
	return p.Collection + "/" + p.ID
}

// Change describes one committed write, emitted on the feed after the write
// is durable. Deleted changes carry only the document identity.
type Change struct {
	Collection string
	ID         string
	Doc        Document
	Deleted    bool
}

// Feed delivers committed changes to subscribers in commit order.
// Cancellation must be idempotent; a change emitted after cancel is a no-op.
type Feed interface {
	Subscribe(fn func(Change)) (cancel func())
}

// Store is the document store consumed by observers and the mutation gateway.
//
// Get returns (zero, false, nil) when the document does not exist.
// Create assigns the document id. Set with merge=true performs a field-level
// merge, preserving fields absent from data; merge=false overwrites.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, bool, error)
	List(ctx context.Context, collection string, c Constraint) ([]Document, error)
	Create(ctx context.Context, collection string, data map[string]any) (Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	Feed() Feed
}

// CloneData deep-copies a document payload. Nested maps and slices are
// copied; scalar values are shared (they are immutable in JSON terms).
func CloneData(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneData(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Merge overlays partial onto base field by field, returning a new map.
// Fields absent from partial keep their base value.
func Merge(base, partial map[string]any) map[string]any {
	out := CloneData(base)
	if out == nil {
		out = map[string]any{}
	}
	for k, v := range partial {
		out[k] = cloneValue(v)
	}
	return out
}

// Clone deep-copies a document.
func (d Document) Clone() Document {
	d.Data = CloneData(d.Data)
	return d
}
