package gateway

import (
	"context"
	"reflect"
	"testing"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/revalidate"
)

func TestCreateResolvesWithAssignedID(t *testing.T) {
	st := memstore.New()
	g := New(st, errbus.New(), revalidate.New())

	res := g.Create(context.Background(), "apiModules", map[string]any{"name": "Sales API"})
	if !res.OK || res.ID == "" {
		t.Fatalf("res=%+v", res)
	}
	doc, ok, err := st.Get(context.Background(), "apiModules", res.ID)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if doc.Data["name"] != "Sales API" {
		t.Fatalf("data=%v", doc.Data)
	}
}

func TestUpdateMergeKeepsUnspecifiedFields(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if _, err := st.Set(ctx, "integrations", "shopify", map[string]any{"active": true, "key": "abc"}, false); err != nil {
		t.Fatal(err)
	}
	g := New(st, errbus.New(), revalidate.New())

	res := g.Update(ctx, docstore.DocPath("integrations", "shopify"), map[string]any{"key": "xyz"}, Options{Merge: true})
	if !res.OK {
		t.Fatalf("res=%+v", res)
	}
	got, _, _ := st.Get(ctx, "integrations", "shopify")
	if got.Data["active"] != true || got.Data["key"] != "xyz" {
		t.Fatalf("data=%v", got.Data)
	}
}

func TestUpdateRequiresDocumentPath(t *testing.T) {
	g := New(memstore.New(), errbus.New(), nil)
	res := g.Update(context.Background(), docstore.Path{Collection: "integrations"}, map[string]any{"k": "v"}, Options{})
	if res.OK || res.Message == "" {
		t.Fatalf("res=%+v", res)
	}
}

func TestRevalidationFiresExactlyOncePerSuccessfulWrite(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	sig := revalidate.New()
	var views []string
	sig.OnStale(func(v string) { views = append(views, v) })
	g := New(st, errbus.New(), sig)

	if res := g.Create(ctx, "apiModules", map[string]any{"name": "x"}); !res.OK {
		t.Fatalf("res=%+v", res)
	}
	if len(views) != 1 || views[0] != "apiModules" {
		t.Fatalf("views=%v", views)
	}

	// Failed writes must not revalidate.
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return op != errbus.OpCreate
	}))
	g2 := New(guarded, errbus.New(), sig)
	if res := g2.Create(ctx, "apiModules", map[string]any{"name": "y"}); res.OK {
		t.Fatal("expected failure")
	}
	if len(views) != 1 {
		t.Fatalf("views=%v", views)
	}
}

func TestPermissionFailurePublishesAttemptedPayload(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return op != errbus.OpUpdate
	}))
	bus := errbus.New()
	var events []errbus.Event
	bus.Subscribe(func(ev errbus.Event) { events = append(events, ev) })
	g := New(guarded, bus, nil)

	res := g.Update(ctx, docstore.DocPath("integrations", "shopify"), map[string]any{"active": false}, Options{Merge: true})
	if res.OK || res.Message == "" {
		t.Fatalf("res=%+v", res)
	}
	if len(events) != 1 {
		t.Fatalf("events=%v", events)
	}
	ev := events[0]
	if ev.Path != "integrations/shopify" || ev.Operation != errbus.OpUpdate {
		t.Fatalf("event=%+v", ev)
	}
	if ev.AttemptedPayload["active"] != false {
		t.Fatalf("payload=%v", ev.AttemptedPayload)
	}
}

type integration struct {
	ID     string
	Name   string
	Key    string
	Active bool
}

func TestOptimisticPatchRollbackRestoresExactState(t *testing.T) {
	rows := []integration{
		{ID: "google-maps", Name: "Google Maps", Key: "abc", Active: true},
		{ID: "shopify", Name: "Shopify", Key: "", Active: false},
	}
	before := make([]integration, len(rows))
	copy(before, rows)

	next := make([]integration, len(rows))
	copy(next, rows)
	next[1].Active = true
	p := Apply(&rows, next)
	if !rows[1].Active {
		t.Fatal("optimistic state not visible")
	}

	// The store rejects the write; the caller rolls back.
	p.Rollback()
	if !reflect.DeepEqual(rows, before) {
		t.Fatalf("rollback drifted:\n got=%+v\nwant=%+v", rows, before)
	}
	p.Rollback() // second resolution is a no-op
	if !reflect.DeepEqual(rows, before) {
		t.Fatal("double rollback mutated state")
	}
}

func TestOptimisticPatchCommitKeepsNextState(t *testing.T) {
	v := integration{ID: "shopify", Active: false}
	p := Apply(&v, integration{ID: "shopify", Active: true})
	p.Commit()
	if !v.Active {
		t.Fatal("commit reverted optimistic state")
	}
	if !p.Resolved() {
		t.Fatal("patch not resolved")
	}
	p.Rollback() // after commit, rollback must not fire
	if !v.Active {
		t.Fatal("rollback after commit mutated state")
	}
}
