package gemini

import (
	"context"
	"fmt"

	"github.com/apihub/hub/pkg/adapters/llm"
	genai "google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

type clientWrapper struct {
	client *genai.Client
	model  string
}

func (c *clientWrapper) Name() string { return "gemini" }

func (c *clientWrapper) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	return c.generate(ctx, messages, opts, nil)
}

// GenerateJSON asks the model for a single JSON document by setting the
// response MIME type; callers still validate the payload against their
// schema.
func (c *clientWrapper) GenerateJSON(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	return c.generate(ctx, messages, opts, cfg)
}

func (c *clientWrapper) generate(ctx context.Context, messages []llm.Message, opts map[string]any, cfg *genai.GenerateContentConfig) (llm.GenerateResult, error) {
	model := c.model
	if v, ok := opts["model"].(string); ok && v != "" {
		model = v
	}
	// Build a single turn: concatenated text first, then any media parts
	// (voice recordings) as inline blobs.
	var text string
	var media []llm.Media
	for _, m := range messages {
		if m.Content != "" {
			text += m.Content + "\n"
		}
		media = append(media, m.Media...)
	}
	parts := []*genai.Part{{Text: text}}
	for _, b := range media {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: b.MIMEType, Data: b.Data}})
	}
	res, err := c.client.Models.GenerateContent(ctx, model, []*genai.Content{{Parts: parts}}, cfg)
	if err != nil {
		return llm.GenerateResult{}, err
	}
	return llm.GenerateResult{Text: res.Text(), Model: model}, nil
}

// Factory creates a Gemini LLM client. The API key comes from cfg.api_key;
// the hub resolves it from the integrations collection, not the environment.
func Factory(ctx context.Context, cfg map[string]any) (llm.LLM, error) { // nolint: revive
	apiKey, _ := cfg["api_key"].(string)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: missing API key in cfg.api_key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	model := defaultModel
	if v, ok := cfg["model"].(string); ok && v != "" {
		model = v
	}
	return &clientWrapper{client: client, model: model}, nil
}

func init() {
	_ = llm.Register("gemini", Factory)
}
