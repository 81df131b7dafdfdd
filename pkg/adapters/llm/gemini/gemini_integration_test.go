//go:build integration

package gemini

import (
	"context"
	"os"
	"testing"

	"github.com/apihub/hub/pkg/adapters/llm"
)

func TestGeminiChatGenerate(t *testing.T) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}
	ctx := context.Background()
	m, err := Factory(ctx, map[string]any{"api_key": key})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	msgs := []llm.Message{{Role: "user", Content: "Say 'hello from gemini'"}}
	res, err := m.Generate(ctx, msgs, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "" {
		t.Fatalf("empty response text")
	}
}

func TestGeminiGenerateJSON(t *testing.T) {
	key := os.Getenv("GOOGLE_API_KEY")
	if key == "" {
		t.Skip("GOOGLE_API_KEY not set")
	}
	ctx := context.Background()
	m, err := Factory(ctx, map[string]any{"api_key": key})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	s, ok := m.(llm.StructuredLLM)
	if !ok {
		t.Fatal("gemini adapter is not structured")
	}
	res, err := s.GenerateJSON(ctx, []llm.Message{{Role: "user", Content: `Return {"ok": true}`}}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Text == "" {
		t.Fatalf("empty response text")
	}
}
