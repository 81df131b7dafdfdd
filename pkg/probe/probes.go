package probe

import (
	"context"

	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/maps"
	"github.com/apihub/hub/pkg/shopify"
)

// GeocodeProbe checks the Google Maps integration end to end by geocoding a
// caller-supplied address.
type GeocodeProbe struct {
	Maps *maps.Client
}

func (p *GeocodeProbe) Describe() Descriptor {
	return Descriptor{
		Name:        "maps_geocode",
		Description: "Geocode an address through the configured Google Maps integration.",
		InputSchema: []byte(`{
			"type": "object",
			"required": ["address"],
			"properties": {"address": {"type": "string", "minLength": 1}},
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"required": ["status"],
			"properties": {
				"status": {"type": "string"},
				"error_message": {"type": "string"},
				"matches": {"type": "integer", "minimum": 0}
			}
		}`),
		Permissions: []Permission{{Name: "network:outbound", Description: "calls the Google Maps API"}},
	}
}

func (p *GeocodeProbe) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	address, _ := args["address"].(string)
	res, err := p.Maps.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	out := map[string]any{"status": res.Status, "matches": len(res.Results)}
	if res.ErrorMessage != "" {
		out["error_message"] = res.ErrorMessage
	}
	return out, nil
}

// ShopifyProductsProbe checks the Shopify integration by listing products.
type ShopifyProductsProbe struct {
	Shopify *shopify.Client
}

func (p *ShopifyProductsProbe) Describe() Descriptor {
	return Descriptor{
		Name:        "shopify_products",
		Description: "List products from the configured Shopify store.",
		InputSchema: []byte(`{"type": "object", "additionalProperties": false}`),
		OutputSchema: []byte(`{
			"type": "object",
			"required": ["count"],
			"properties": {"count": {"type": "integer", "minimum": 0}}
		}`),
		Permissions: []Permission{{Name: "network:outbound", Description: "calls the Shopify Admin API"}},
	}
}

func (p *ShopifyProductsProbe) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	products, err := p.Shopify.Products(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(products)}, nil
}

// AskProbe checks the generative AI integration with a round-trip question.
type AskProbe struct {
	Assistant *flows.Assistant
}

func (p *AskProbe) Describe() Descriptor {
	return Descriptor{
		Name:        "ask",
		Description: "Send a question through the generative AI integration.",
		InputSchema: []byte(`{
			"type": "object",
			"required": ["question"],
			"properties": {"question": {"type": "string", "minLength": 1}},
			"additionalProperties": false
		}`),
		OutputSchema: []byte(`{
			"type": "object",
			"required": ["answer"],
			"properties": {"answer": {"type": "string"}, "model": {"type": "string"}}
		}`),
		Permissions: []Permission{{Name: "model:generate", Description: "invokes the configured LLM"}},
	}
}

func (p *AskProbe) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	question, _ := args["question"].(string)
	res, err := p.Assistant.Ask(ctx, flows.AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	out := map[string]any{"answer": res.Answer}
	if res.Model != "" {
		out["model"] = res.Model
	}
	return out, nil
}
