package entstore

import (
	"context"
	"testing"

	"github.com/apihub/hub/pkg/docstore"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, "sqlite:file:ent?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_fk=1")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSQLiteGetAbsentIsNotAnError(t *testing.T) {
	st := openMem(t)
	_, ok, err := st.Get(context.Background(), "integrations", "nope")
	if err != nil || ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestSQLiteCreateAssignsIDAndEmits(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	var changes []docstore.Change
	cancel := st.Feed().Subscribe(func(ch docstore.Change) { changes = append(changes, ch) })
	defer cancel()

	doc, err := st.Create(ctx, "apiModules", map[string]any{"name": "Sales API"})
	if err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.Collection != "apiModules" {
		t.Fatalf("doc=%+v", doc)
	}
	got, ok, err := st.Get(ctx, "apiModules", doc.ID)
	if err != nil || !ok || got.Data["name"] != "Sales API" {
		t.Fatalf("got=%+v ok=%v err=%v", got, ok, err)
	}
	if len(changes) != 1 || changes[0].ID != doc.ID || changes[0].Deleted {
		t.Fatalf("changes=%+v", changes)
	}
}

func TestSQLiteSetMergePreservesFields(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	if _, err := st.Set(ctx, "integrations", "shopify", map[string]any{"active": true, "key": "abc"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Set(ctx, "integrations", "shopify", map[string]any{"key": "xyz"}, true); err != nil {
		t.Fatal(err)
	}
	got, _, err := st.Get(ctx, "integrations", "shopify")
	if err != nil {
		t.Fatal(err)
	}
	if got.Data["active"] != true || got.Data["key"] != "xyz" {
		t.Fatalf("data=%v", got.Data)
	}

	// Overwrite drops unspecified fields.
	if _, err := st.Set(ctx, "integrations", "shopify", map[string]any{"key": "k2"}, false); err != nil {
		t.Fatal(err)
	}
	got, _, _ = st.Get(ctx, "integrations", "shopify")
	if _, hasActive := got.Data["active"]; hasActive {
		t.Fatalf("data=%v", got.Data)
	}
}

func TestSQLiteSetRejectsEmptyID(t *testing.T) {
	st := openMem(t)
	if _, err := st.Set(context.Background(), "integrations", "", map[string]any{"k": "v"}, false); err == nil {
		t.Fatal("empty id accepted")
	}
}

func TestSQLiteListAppliesConstraint(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	for _, row := range []struct {
		id     string
		name   string
		active bool
	}{
		{"b", "Beta", false},
		{"a", "Alpha", true},
		{"c", "Gamma", true},
	} {
		if _, err := st.Set(ctx, "integrations", row.id, map[string]any{"name": row.name, "active": row.active}, false); err != nil {
			t.Fatal(err)
		}
	}
	got, err := st.List(ctx, "integrations", docstore.Constraint{
		Where:   &docstore.Where{Field: "active", Op: "==", Value: true},
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("got=%+v", got)
	}

	// Unconstrained list preserves insertion order.
	all, err := st.List(ctx, "integrations", docstore.Constraint{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "b" || all[1].ID != "a" || all[2].ID != "c" {
		t.Fatalf("all=%+v", all)
	}
}

func TestSQLiteDeleteIsIdempotentAndEmitsOnce(t *testing.T) {
	ctx := context.Background()
	st := openMem(t)
	if _, err := st.Set(ctx, "integrations", "x", map[string]any{"k": "v"}, false); err != nil {
		t.Fatal(err)
	}
	var deletes int
	cancel := st.Feed().Subscribe(func(ch docstore.Change) {
		if ch.Deleted {
			deletes++
		}
	})
	defer cancel()

	if err := st.Delete(ctx, "integrations", "x"); err != nil {
		t.Fatal(err)
	}
	if err := st.Delete(ctx, "integrations", "x"); err != nil {
		t.Fatal(err)
	}
	if deletes != 1 {
		t.Fatalf("deletes=%d", deletes)
	}
	if _, ok, _ := st.Get(ctx, "integrations", "x"); ok {
		t.Fatal("document still present")
	}
}
