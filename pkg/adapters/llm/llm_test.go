package llm

import (
	"context"
	"testing"
)

type fakeLLM struct{}

func (fakeLLM) Name() string { return "fake" }
func (fakeLLM) Generate(ctx context.Context, messages []Message, opts map[string]any) (GenerateResult, error) {
	return GenerateResult{Text: "ok", Model: "fake-1"}, nil
}

func TestRegisterAndResolve(t *testing.T) {
	if err := Register("fake", func(ctx context.Context, cfg map[string]any) (LLM, error) {
		return fakeLLM{}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	f, ok := Resolve("fake")
	if !ok {
		t.Fatal("factory not found")
	}
	m, err := f(context.Background(), nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	res, err := m.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil || res.Text != "ok" {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestRegisterRejectsDuplicatesAndNil(t *testing.T) {
	reg := func(ctx context.Context, cfg map[string]any) (LLM, error) { return fakeLLM{}, nil }
	if err := Register("dup", reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register("dup", reg); err == nil {
		t.Fatal("duplicate accepted")
	}
	if err := Register("", reg); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := Register("nil", nil); err == nil {
		t.Fatal("nil factory accepted")
	}
}
