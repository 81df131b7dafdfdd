package flows

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apihub/hub/pkg/adapters/llm"
	"github.com/apihub/hub/pkg/flows/prompts"
	"github.com/apihub/hub/pkg/integrations"
)

const quoteSystemPrompt = `You turn a customer's spoken request into a price quote. Extract the requested items with quantities and unit prices, compute the total, and return a single JSON document matching the required shape. Return JSON only, no prose, no markdown.`

// QuoteSchema is the contract the model's output must satisfy before a
// quote is accepted.
var QuoteSchema = []byte(`{
  "type": "object",
  "required": ["items", "total", "currency"],
  "properties": {
    "customer": {"type": "string"},
    "items": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["description", "quantity", "unitPrice"],
        "properties": {
          "description": {"type": "string", "minLength": 1},
          "quantity": {"type": "number", "exclusiveMinimum": 0},
          "unitPrice": {"type": "number", "minimum": 0}
        }
      }
    },
    "total": {"type": "number", "minimum": 0},
    "currency": {"type": "string", "minLength": 3, "maxLength": 3},
    "notes": {"type": "string"}
  }
}`)

// QuoteItem is one line of a quote.
type QuoteItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Quote is the structured result of the voice-to-text flow.
type Quote struct {
	Customer string      `json:"customer,omitempty"`
	Items    []QuoteItem `json:"items"`
	Total    float64     `json:"total"`
	Currency string      `json:"currency"`
	Notes    string      `json:"notes,omitempty"`
}

// QuoteRequest carries either a transcript or a voice recording (or both).
type QuoteRequest struct {
	Transcript string
	Audio      *llm.Media
}

// Quoter generates schema-validated quotes from voice input.
type Quoter struct {
	creds       *integrations.Service
	store       *prompts.Store
	provider    string
	integration string
	validate    ValidateFunc
}

// QuoterOption configures a Quoter.
type QuoterOption func(*Quoter)

// WithQuoteProvider overrides the LLM provider and the integration id the
// credential is read from.
func WithQuoteProvider(provider, integrationID string) QuoterOption {
	return func(q *Quoter) {
		q.provider = provider
		q.integration = integrationID
	}
}

// WithQuotePrompts overrides the template store.
func WithQuotePrompts(s *prompts.Store) QuoterOption {
	return func(q *Quoter) {
		if s != nil {
			q.store = s
		}
	}
}

// NewQuoter builds the quote flow. Defaults: gemini provider, credential
// record "voice-to-text", JSON-schema validation against QuoteSchema.
func NewQuoter(creds *integrations.Service, opts ...QuoterOption) *Quoter {
	q := &Quoter{
		creds:       creds,
		store:       prompts.NewStore(),
		provider:    "gemini",
		integration: "voice-to-text",
		validate:    JSONSchemaValidator,
	}
	for _, opt := range opts {
		opt(q)
	}
	if _, ok := q.store.Get("quote", 0); !ok {
		_, _, _ = q.store.Save(prompts.Template{Name: "quote", Body: quoteSystemPrompt})
	}
	return q
}

// Generate runs the flow and returns the validated quote. The raw model
// output is returned alongside for audit storage.
func (q *Quoter) Generate(ctx context.Context, req QuoteRequest) (Quote, string, error) {
	if strings.TrimSpace(req.Transcript) == "" && req.Audio == nil {
		return Quote{}, "", fmt.Errorf("quote: empty request")
	}
	cred, err := q.creds.Credential(ctx, q.integration)
	if err != nil {
		return Quote{}, "", err
	}
	factory, ok := llm.Resolve(q.provider)
	if !ok {
		return Quote{}, "", fmt.Errorf("quote: unknown provider %q", q.provider)
	}
	model, err := factory(ctx, map[string]any{"api_key": cred.Key})
	if err != nil {
		return Quote{}, "", fmt.Errorf("quote: build client: %w", err)
	}

	system, _ := q.store.Get("quote", 0)
	user := llm.Message{Role: "user", Content: req.Transcript}
	if req.Audio != nil {
		user.Media = []llm.Media{*req.Audio}
	}
	msgs := []llm.Message{{Role: "system", Content: system.Body}, user}

	var res llm.GenerateResult
	if structured, ok := model.(llm.StructuredLLM); ok {
		res, err = structured.GenerateJSON(ctx, msgs, nil)
	} else {
		res, err = model.Generate(ctx, msgs, nil)
	}
	if err != nil {
		return Quote{}, "", fmt.Errorf("quote: generate: %w", err)
	}

	raw := stripFences(res.Text)
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Quote{}, raw, fmt.Errorf("quote: model returned invalid JSON: %w", err)
	}
	if err := q.validate(QuoteSchema, doc); err != nil {
		return Quote{}, raw, fmt.Errorf("quote: output rejected by schema: %w", err)
	}
	var out Quote
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Quote{}, raw, err
	}
	return out, raw, nil
}

// stripFences removes a surrounding markdown code fence, which models emit
// even when told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
