// Package gateway applies creates and updates to the document store with
// result-style error handling: write failures are values for the caller to
// surface, never faults to propagate. It pairs with the watch observers:
// the caller may apply an optimistic local change before the write confirms
// and must roll it back when the result says so.
package gateway

import (
	"context"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/errmodel"
)

// Result is the outcome of a mutation. ID is set for creates. Message is a
// user-facing failure description when OK is false.
type Result struct {
	OK      bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Options configures an update.
type Options struct {
	// Merge performs a field-level merge: fields absent from the partial
	// payload keep their stored value. Without it the write overwrites the
	// whole document.
	Merge bool
}

// Gateway issues writes against the store. Permission rejections are
// published on the error bus with the attempted payload attached; every
// successful write fires the revalidation signal exactly once.
type Gateway struct {
	st    docstore.Store
	bus   *errbus.Bus
	stale StaleMarker
}

// StaleMarker is the revalidation hook the gateway fires after successful
// writes.
type StaleMarker interface {
	MarkStale(view string)
}

// New constructs a Gateway. bus and stale may be nil, disabling the
// corresponding side channel.
func New(st docstore.Store, bus *errbus.Bus, stale StaleMarker) *Gateway {
	return &Gateway{st: st, bus: bus, stale: stale}
}

// Create writes a new document and resolves with its assigned id. Failures
// resolve as a failed Result; the caller reverts any optimistic state it
// applied and surfaces Message.
func (g *Gateway) Create(ctx context.Context, collection string, payload map[string]any) Result {
	if collection == "" {
		return Result{OK: false, Message: "collection is empty"}
	}
	doc, err := g.st.Create(ctx, collection, payload)
	if err != nil {
		return g.failed(err)
	}
	g.markStale(collection)
	return Result{OK: true, ID: doc.ID}
}

// Update writes a partial payload to an existing document path. With
// Options.Merge unspecified fields are preserved.
func (g *Gateway) Update(ctx context.Context, path docstore.Path, partial map[string]any, opts Options) Result {
	if !path.IsDocument() {
		return Result{OK: false, Message: "update requires a document path"}
	}
	_, err := g.st.Set(ctx, path.Collection, path.ID, partial, opts.Merge)
	if err != nil {
		return g.failed(err)
	}
	g.markStale(path.Collection)
	return Result{OK: true}
}

// Delete removes a document.
func (g *Gateway) Delete(ctx context.Context, path docstore.Path) Result {
	if !path.IsDocument() {
		return Result{OK: false, Message: "delete requires a document path"}
	}
	if err := g.st.Delete(ctx, path.Collection, path.ID); err != nil {
		return g.failed(err)
	}
	g.markStale(path.Collection)
	return Result{OK: true}
}

func (g *Gateway) failed(err error) Result {
	if g.bus != nil {
		if ev, ok := errbus.FromError(err); ok {
			g.bus.Publish(ev)
		}
	}
	return Result{OK: false, Message: errmodel.From(err).Message}
}

func (g *Gateway) markStale(view string) {
	if g.stale != nil {
		g.stale.MarkStale(view)
	}
}
