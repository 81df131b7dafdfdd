package integrations

import (
	"context"
	"testing"
	"time"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/gateway"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if err := Seed(ctx, st); err != nil {
		t.Fatal(err)
	}
	// A locally edited record must survive a second seed.
	if _, err := st.Set(ctx, Collection, "shopify", map[string]any{"key": "shppa_x"}, true); err != nil {
		t.Fatal(err)
	}
	if err := Seed(ctx, st); err != nil {
		t.Fatal(err)
	}
	docs, err := st.List(ctx, Collection, docstore.Constraint{})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != len(Catalog()) {
		t.Fatalf("docs=%d catalog=%d", len(docs), len(Catalog()))
	}
	doc, _, _ := st.Get(ctx, Collection, "shopify")
	if doc.Data["key"] != "shppa_x" {
		t.Fatalf("seed overwrote edit: %v", doc.Data)
	}
}

func TestCredentialRequiresActiveRecordWithKey(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := NewService(st)

	if _, err := svc.Credential(ctx, "google-maps"); !errmodel.IsNotConfigured(err) {
		t.Fatalf("missing record: err=%v", err)
	}

	if _, err := st.Set(ctx, Collection, "google-maps", map[string]any{"name": "Google Maps API", "active": false, "key": "AIza"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Credential(ctx, "google-maps"); !errmodel.IsNotConfigured(err) {
		t.Fatalf("inactive record: err=%v", err)
	}

	if _, err := st.Set(ctx, Collection, "google-maps", map[string]any{"active": true, "key": ""}, true); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Credential(ctx, "google-maps"); !errmodel.IsNotConfigured(err) {
		t.Fatalf("empty key: err=%v", err)
	}

	if _, err := st.Set(ctx, Collection, "google-maps", map[string]any{"key": "AIza"}, true); err != nil {
		t.Fatal(err)
	}
	it, err := svc.Credential(ctx, "google-maps")
	if err != nil {
		t.Fatal(err)
	}
	if it.Key != "AIza" || !it.Active {
		t.Fatalf("it=%+v", it)
	}
}

func TestListOrdersByName(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	for _, row := range []struct{ id, name string }{
		{"shopify", "Shopify API"},
		{"google-maps", "Google Maps API"},
	} {
		if _, err := st.Set(ctx, Collection, row.id, map[string]any{"name": row.name, "active": true}, false); err != nil {
			t.Fatal(err)
		}
	}
	got, err := NewService(st).List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "google-maps" || got[1].ID != "shopify" {
		t.Fatalf("got=%+v", got)
	}
}

func TestToggleIsOptimisticAndConfirmed(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if err := Seed(ctx, st); err != nil {
		t.Fatal(err)
	}
	bus := errbus.New()
	m := NewManager(st, bus, gateway.New(st, bus, nil))
	defer m.Close()
	waitFor(t, func() bool { return len(m.Rows()) == len(Catalog()) })

	find := func(id string) Integration {
		for _, it := range m.Rows() {
			if it.ID == id {
				return it
			}
		}
		t.Fatalf("row %q missing", id)
		return Integration{}
	}
	before := find("retell-ai").Active

	res := m.Toggle(ctx, "retell-ai")
	if !res.OK {
		t.Fatalf("res=%+v", res)
	}
	if find("retell-ai").Active == before {
		t.Fatal("toggle not applied")
	}
	doc, _, err := st.Get(ctx, Collection, "retell-ai")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["active"] != !before {
		t.Fatalf("store data=%v", doc.Data)
	}
	// The confirmed push must agree with the optimistic state.
	waitFor(t, func() bool { return find("retell-ai").Active == !before })
}

func TestToggleRollsBackOnRejectedWrite(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if err := Seed(ctx, st); err != nil {
		t.Fatal(err)
	}
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return op != errbus.OpUpdate
	}))
	bus := errbus.New()
	var events []errbus.Event
	bus.Subscribe(func(ev errbus.Event) { events = append(events, ev) })

	m := NewManager(st, bus, gateway.New(guarded, bus, nil))
	defer m.Close()
	waitFor(t, func() bool { return len(m.Rows()) == len(Catalog()) })
	before := m.Rows()

	res := m.Toggle(ctx, "shopify")
	if res.OK || res.Message == "" {
		t.Fatalf("res=%+v", res)
	}
	after := m.Rows()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("row %d drifted: %+v != %+v", i, before[i], after[i])
		}
	}
	if len(events) != 1 || events[0].Path != "integrations/shopify" || events[0].Operation != errbus.OpUpdate {
		t.Fatalf("events=%+v", events)
	}
}

// rejectingStore refuses every Set, running a hook first. The hook simulates
// another writer landing a confirmed change while the mutation is in flight.
type rejectingStore struct {
	*memstore.Store
	onSet func()
}

func (s *rejectingStore) Set(ctx context.Context, coll, id string, data map[string]any, merge bool) (docstore.Document, error) {
	if s.onSet != nil {
		fn := s.onSet
		s.onSet = nil
		fn()
	}
	return docstore.Document{}, errmodel.PermissionDenied(docstore.DocPath(coll, id).String(), string(errbus.OpUpdate), data)
}

func TestRollbackYieldsToConfirmedPushDuringWrite(t *testing.T) {
	ctx := context.Background()
	inner := memstore.New()
	if err := Seed(ctx, inner); err != nil {
		t.Fatal(err)
	}
	st := &rejectingStore{Store: inner}
	bus := errbus.New()
	m := NewManager(st, bus, gateway.New(st, bus, nil))
	defer m.Close()
	waitFor(t, func() bool { return len(m.Rows()) == len(Catalog()) })

	find := func(id string) Integration {
		for _, it := range m.Rows() {
			if it.ID == id {
				return it
			}
		}
		t.Fatalf("row %q missing", id)
		return Integration{}
	}
	salesBefore := find("sales").Active

	// While the toggle's write is in flight, land a confirmed change to a
	// different record through the inner store and wait until the watch push
	// reaches the manager.
	st.onSet = func() {
		if _, err := inner.Set(ctx, Collection, "notifications", map[string]any{"key": "nk-1"}, true); err != nil {
			t.Error(err)
			return
		}
		waitFor(t, func() bool { return find("notifications").Key == "nk-1" })
	}

	if res := m.Toggle(ctx, "sales"); res.OK {
		t.Fatalf("res=%+v", res)
	}
	// The failed toggle is undone, but the push that landed meanwhile stays.
	if find("sales").Active != salesBefore {
		t.Fatal("rejected toggle left applied")
	}
	if find("notifications").Key != "nk-1" {
		t.Fatal("rollback clobbered a confirmed push")
	}
}

func TestSetKeyWritesMergePreservingActive(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if err := Seed(ctx, st); err != nil {
		t.Fatal(err)
	}
	bus := errbus.New()
	m := NewManager(st, bus, gateway.New(st, bus, nil))
	defer m.Close()
	waitFor(t, func() bool { return len(m.Rows()) == len(Catalog()) })

	if res := m.SetKey(ctx, "gemini-ai", "sk-123"); !res.OK {
		t.Fatalf("res=%+v", res)
	}
	doc, _, err := st.Get(ctx, Collection, "gemini-ai")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["key"] != "sk-123" || doc.Data["active"] != true {
		t.Fatalf("data=%v", doc.Data)
	}

	if res := m.SetKey(ctx, "nope", "x"); res.OK {
		t.Fatal("unknown id accepted")
	}
}
