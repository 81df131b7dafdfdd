package promptpack

import (
	"reflect"
	"testing"
)

func TestBuildIsDeterministicWithPinsFirst(t *testing.T) {
	sections := []Section{
		{Source: "faq", ID: "2", Text: "returns policy"},
		{Source: "catalog", ID: "1", Text: "sales api"},
		{Source: "faq", ID: "1", Text: "opening hours"},
		{Source: "faq", ID: "2", Text: "duplicate"},
	}
	pins := []Pin{{Source: "faq", ID: "1"}}

	p := New()
	got1, log := p.Build(sections, pins)
	got2, _ := p.Build(sections, pins)
	if !reflect.DeepEqual(got1, got2) {
		t.Fatalf("not deterministic: %v vs %v", got1, got2)
	}
	if log.Dropped != 0 {
		t.Fatalf("log=%+v", log)
	}
	if len(got1) != 3 {
		t.Fatalf("dedup failed: %v", got1)
	}
	if got1[0].Source != "faq" || got1[0].ID != "1" {
		t.Fatalf("pinned section not first: %v", got1)
	}
	// First occurrence wins on duplicate identity.
	for _, s := range got1 {
		if s.Source == "faq" && s.ID == "2" && s.Text != "returns policy" {
			t.Fatalf("duplicate replaced original: %v", s)
		}
	}
}

func TestBuildRespectsTokenBudget(t *testing.T) {
	est := func(s string) int { return len(s) }
	p := New(WithTokenEstimator(est), WithMaxTokens(10))
	sections := []Section{
		{Source: "a", ID: "1", Text: "12345"},
		{Source: "a", ID: "2", Text: "123456789"},
		{Source: "b", ID: "1", Text: "1234"},
	}
	got, log := p.Build(sections, nil)
	if log.IncludedTokens > 10 {
		t.Fatalf("budget exceeded: %+v", log)
	}
	if log.Dropped != 1 {
		t.Fatalf("log=%+v got=%v", log, got)
	}
}

func TestNewTikTokenEstimator(t *testing.T) {
	est, err := NewTikTokenEstimator("gpt-4")
	if err != nil {
		t.Skipf("tiktoken not available for model: %v", err)
	}
	if got := est("hello world"); got <= 0 {
		t.Fatalf("got %d tokens, want > 0", got)
	}
}
