// Package flows implements the hub's AI flows: free-form questions about the
// managed APIs and voice-transcript quote generation. Every flow resolves
// its credential from the integrations collection first; a missing or
// switched-off integration fails the flow with not_configured before any
// model call is attempted.
package flows

import (
	"context"
	"fmt"
	"strings"

	"github.com/apihub/hub/pkg/adapters/llm"
	"github.com/apihub/hub/pkg/flows/promptpack"
	"github.com/apihub/hub/pkg/flows/prompts"
	"github.com/apihub/hub/pkg/integrations"
)

const askSystemPrompt = `You are the assistant of an API management hub. Answer questions about the hub's modules, their configuration, and their usage. Be concise and factual. If a question is outside the hub's scope, say so.`

// AskRequest is a question plus optional context sections folded into the
// system prompt under the token budget.
type AskRequest struct {
	Question string
	Context  []promptpack.Section
}

// AskResponse carries the model's answer.
type AskResponse struct {
	Answer string `json:"answer"`
	Model  string `json:"model,omitempty"`
}

// Assistant answers questions with the generative AI integration.
type Assistant struct {
	creds       *integrations.Service
	store       *prompts.Store
	pack        *promptpack.Pack
	provider    string
	integration string
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithAskProvider overrides the LLM provider and the integration id the
// credential is read from.
func WithAskProvider(provider, integrationID string) AssistantOption {
	return func(a *Assistant) {
		a.provider = provider
		a.integration = integrationID
	}
}

// WithAskPack overrides the context packer.
func WithAskPack(p *promptpack.Pack) AssistantOption {
	return func(a *Assistant) {
		if p != nil {
			a.pack = p
		}
	}
}

// WithAskPrompts overrides the template store.
func WithAskPrompts(s *prompts.Store) AssistantOption {
	return func(a *Assistant) {
		if s != nil {
			a.store = s
		}
	}
}

// NewAssistant builds the ask flow. Defaults: gemini provider, credential
// record "gemini-ai", an 8k-token context budget, and a stock system prompt
// saved as version 1 of the "ask" template.
func NewAssistant(creds *integrations.Service, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		creds:       creds,
		store:       prompts.NewStore(),
		pack:        promptpack.New(promptpack.WithMaxTokens(8000)),
		provider:    "gemini",
		integration: "gemini-ai",
	}
	for _, opt := range opts {
		opt(a)
	}
	if _, ok := a.store.Get("ask", 0); !ok {
		_, _, _ = a.store.Save(prompts.Template{Name: "ask", Body: askSystemPrompt})
	}
	return a
}

// Ask runs the flow. The system prompt is the latest "ask" template plus the
// packed context sections.
func (a *Assistant) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return AskResponse{}, fmt.Errorf("ask: empty question")
	}
	cred, err := a.creds.Credential(ctx, a.integration)
	if err != nil {
		return AskResponse{}, err
	}
	factory, ok := llm.Resolve(a.provider)
	if !ok {
		return AskResponse{}, fmt.Errorf("ask: unknown provider %q", a.provider)
	}
	model, err := factory(ctx, map[string]any{"api_key": cred.Key})
	if err != nil {
		return AskResponse{}, fmt.Errorf("ask: build client: %w", err)
	}

	system, _ := a.store.Get("ask", 0)
	packed, _ := a.pack.Build(req.Context, nil)
	var sb strings.Builder
	sb.WriteString(system.Body)
	for _, s := range packed {
		sb.WriteString("\n\n")
		sb.WriteString(s.Text)
	}
	res, err := model.Generate(ctx, []llm.Message{
		{Role: "system", Content: sb.String()},
		{Role: "user", Content: req.Question},
	}, nil)
	if err != nil {
		return AskResponse{}, fmt.Errorf("ask: generate: %w", err)
	}
	return AskResponse{Answer: res.Text, Model: res.Model}, nil
}
