package watch

import (
	"context"
	"testing"
	"time"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/errmodel"
)

type integration struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Key    string `json:"key"`
	Active bool   `json:"active"`
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		panic("unreachable")
	}
}

func expectNone[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("unexpected snapshot delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDocumentWatchInvalidPathSettlesImmediately(t *testing.T) {
	st := memstore.New()
	h := Document(st, errbus.New(), docstore.Path{Collection: "integrations"}, JSONDecode[integration]())
	s := h.Snapshot()
	if s.Value != nil || s.Loading || s.Err != nil {
		t.Fatalf("snapshot=%+v", s)
	}
	if h.Phase() != Idle {
		t.Fatalf("phase=%v", h.Phase())
	}
	if st.FeedSubscribers() != 0 {
		t.Fatal("subscription opened for invalid path")
	}
	h.Close() // must be safe on a settled handle
}

func TestDocumentWatchDeliversExistingThenUpdates(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if _, err := st.Set(ctx, "integrations", "google-maps", map[string]any{"name": "Google Maps", "key": "abc", "active": true}, false); err != nil {
		t.Fatal(err)
	}

	h := Document(st, errbus.New(), docstore.DocPath("integrations", "google-maps"), JSONDecode[integration]())
	defer h.Close()

	waitFor(t, func() bool { return !h.Snapshot().Loading })
	s := h.Snapshot()
	if s.Err != nil || s.Value == nil {
		t.Fatalf("snapshot=%+v", s)
	}
	if s.Value.ID != "google-maps" || s.Value.Key != "abc" || !s.Value.Active {
		t.Fatalf("value=%+v", *s.Value)
	}

	ch := make(chan Snapshot[*integration], 16)
	defer h.OnUpdate(func(s Snapshot[*integration]) { ch <- s })()

	if _, err := st.Set(ctx, "integrations", "google-maps", map[string]any{"key": "xyz"}, true); err != nil {
		t.Fatal(err)
	}
	got := recv(t, ch)
	if got.Loading {
		t.Fatal("loading re-entered true")
	}
	if got.Value == nil || got.Value.Key != "xyz" || !got.Value.Active {
		t.Fatalf("merge push value=%+v", got.Value)
	}

	if err := st.Delete(ctx, "integrations", "google-maps"); err != nil {
		t.Fatal(err)
	}
	got = recv(t, ch)
	if got.Value != nil || got.Err != nil {
		t.Fatalf("delete push=%+v", got)
	}
}

func TestDocumentWatchMissingDocIsNullNotError(t *testing.T) {
	st := memstore.New()
	h := Document(st, errbus.New(), docstore.DocPath("integrations", "shopify"), JSONDecode[integration]())
	defer h.Close()

	waitFor(t, func() bool { return !h.Snapshot().Loading })
	s := h.Snapshot()
	if s.Value != nil || s.Err != nil {
		t.Fatalf("snapshot=%+v", s)
	}
	if h.Phase() != Live {
		t.Fatalf("phase=%v", h.Phase())
	}
}

func TestCreateThenWatchRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	doc, err := st.Create(ctx, "apiModules", map[string]any{"name": "Sales API", "active": true})
	if err != nil {
		t.Fatal(err)
	}

	type module struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Active bool   `json:"active"`
	}
	h := Document(st, errbus.New(), docstore.DocPath("apiModules", doc.ID), JSONDecode[module]())
	defer h.Close()

	waitFor(t, func() bool { s := h.Snapshot(); return !s.Loading && s.Value != nil })
	got := *h.Snapshot().Value
	if got.ID != doc.ID || got.Name != "Sales API" || !got.Active {
		t.Fatalf("round trip value=%+v", got)
	}
}

func TestCollectionWatchOrderAndConstraint(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seed := []map[string]any{
		{"name": "sales", "rank": 3.0, "active": true},
		{"name": "maps", "rank": 1.0, "active": true},
		{"name": "shopify", "rank": 2.0, "active": false},
	}
	for _, d := range seed {
		if _, err := st.Create(ctx, "apiModules", d); err != nil {
			t.Fatal(err)
		}
	}

	type module struct {
		ID   string  `json:"id"`
		Name string  `json:"name"`
		Rank float64 `json:"rank"`
	}
	c := docstore.Constraint{
		Where:   &docstore.Where{Field: "active", Op: "==", Value: true},
		OrderBy: &docstore.OrderBy{Field: "rank", Direction: docstore.Asc},
	}
	h := Collection(st, errbus.New(), "apiModules", c, JSONDecode[module]())
	defer h.Close()

	waitFor(t, func() bool { return !h.Snapshot().Loading })
	s := h.Snapshot()
	if s.Err != nil || len(s.Value) != 2 {
		t.Fatalf("snapshot=%+v", s)
	}
	if s.Value[0].Name != "maps" || s.Value[1].Name != "sales" {
		t.Fatalf("order=%v,%v", s.Value[0].Name, s.Value[1].Name)
	}

	ch := make(chan Snapshot[[]module], 16)
	defer h.OnUpdate(func(s Snapshot[[]module]) { ch <- s })()

	if _, err := st.Create(ctx, "apiModules", map[string]any{"name": "ai", "rank": 0.5, "active": true}); err != nil {
		t.Fatal(err)
	}
	got := recv(t, ch)
	if got.Loading {
		t.Fatal("loading re-entered true")
	}
	if len(got.Value) != 3 || got.Value[0].Name != "ai" {
		t.Fatalf("push value=%+v", got.Value)
	}
}

func TestCollectionWatchPermissionFailure(t *testing.T) {
	st := memstore.New()
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return !(op == errbus.OpList && p.Collection == "integrations")
	}))
	bus := errbus.New()
	events := make(chan errbus.Event, 4)
	bus.Subscribe(func(ev errbus.Event) { events <- ev })

	h := Collection(guarded, bus, "integrations", docstore.Constraint{}, JSONDecode[integration]())
	defer h.Close()

	waitFor(t, func() bool { return h.Phase() == Failed })
	s := h.Snapshot()
	if s.Loading {
		t.Fatal("loading stuck true after failure")
	}
	if !errmodel.IsPermissionDenied(s.Err) {
		t.Fatalf("err=%v", s.Err)
	}
	if len(s.Value) != 0 {
		t.Fatalf("value not empty: %v", s.Value)
	}

	ev := recv(t, events)
	if ev.Path != "integrations" || ev.Operation != errbus.OpList {
		t.Fatalf("event=%+v", ev)
	}
	expectNone(t, events) // exactly one event
}

func TestDocumentWatchPermissionFailureKeepsPhaseTerminal(t *testing.T) {
	st := memstore.New()
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return op != errbus.OpGet
	}))
	bus := errbus.New()
	events := make(chan errbus.Event, 4)
	bus.Subscribe(func(ev errbus.Event) { events <- ev })

	h := Document(guarded, bus, docstore.DocPath("integrations", "shopify"), JSONDecode[integration]())
	defer h.Close()

	waitFor(t, func() bool { return h.Phase() == Failed })
	ev := recv(t, events)
	if ev.Path != "integrations/shopify" || ev.Operation != errbus.OpGet {
		t.Fatalf("event=%+v", ev)
	}

	// A write after failure must not resurrect the subscription.
	if _, err := st.Set(context.Background(), "integrations", "shopify", map[string]any{"key": "k"}, false); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if h.Phase() != Failed {
		t.Fatalf("phase=%v", h.Phase())
	}
}

func TestCloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	h := Collection(st, errbus.New(), "apiModules", docstore.Constraint{}, Identity)
	waitFor(t, func() bool { return !h.Snapshot().Loading })

	ch := make(chan Snapshot[[]docstore.Document], 16)
	h.OnUpdate(func(s Snapshot[[]docstore.Document]) { ch <- s })

	h.Close()
	h.Close() // second close is a no-op

	if _, err := st.Create(ctx, "apiModules", map[string]any{"name": "late"}); err != nil {
		t.Fatal(err)
	}
	expectNone(t, ch)
	if st.FeedSubscribers() != 0 {
		t.Fatalf("feed subscribers leaked: %d", st.FeedSubscribers())
	}
}

func TestOnUpdateCancelTwiceIsNoOp(t *testing.T) {
	st := memstore.New()
	h := Collection(st, errbus.New(), "apiModules", docstore.Constraint{}, Identity)
	defer h.Close()
	waitFor(t, func() bool { return !h.Snapshot().Loading })

	ch := make(chan Snapshot[[]docstore.Document], 16)
	keep := h.OnUpdate(func(s Snapshot[[]docstore.Document]) { ch <- s })
	cancel := h.OnUpdate(func(Snapshot[[]docstore.Document]) { t.Error("cancelled listener invoked") })
	cancel()
	cancel()

	if _, err := st.Create(context.Background(), "apiModules", map[string]any{"name": "x"}); err != nil {
		t.Fatal(err)
	}
	recv(t, ch)
	keep()
}

func TestRegistryMemoizesStructurallyEqualConstraints(t *testing.T) {
	st := memstore.New()
	reg := NewRegistry(st, errbus.New())

	c1 := docstore.Constraint{
		Where:   &docstore.Where{Field: "active", Op: "==", Value: true},
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
		Limit:   10,
	}
	// Same field values, different object identity.
	c2 := docstore.Constraint{
		Where:   &docstore.Where{Field: "active", Op: "==", Value: true},
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
		Limit:   10,
	}

	h1, rel1 := reg.Watch("integrations", c1)
	h2, rel2 := reg.Watch("integrations", c2)
	if h1 != h2 {
		t.Fatal("structurally equal constraints produced distinct subscriptions")
	}
	if reg.Active() != 1 {
		t.Fatalf("active=%d", reg.Active())
	}
	if st.FeedSubscribers() != 1 {
		t.Fatalf("backend subscriptions=%d want 1", st.FeedSubscribers())
	}

	h3, rel3 := reg.Watch("integrations", docstore.Constraint{Limit: 5})
	if h3 == h1 {
		t.Fatal("different constraint shared a subscription")
	}
	if reg.Active() != 2 {
		t.Fatalf("active=%d", reg.Active())
	}

	rel1()
	rel1() // double release is a no-op
	if reg.Active() != 2 {
		t.Fatalf("active=%d after single logical release", reg.Active())
	}
	rel2()
	rel3()
	if reg.Active() != 0 {
		t.Fatalf("active=%d after all releases", reg.Active())
	}
	waitFor(t, func() bool { return st.FeedSubscribers() == 0 })
}
