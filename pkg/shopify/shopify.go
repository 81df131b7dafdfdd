// Package shopify is the hub's Shopify Admin REST client. The access token
// and store URL come from the "shopify" credential record; requests go to
// the configured store, so tests point the record at a local server.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/integrations"
)

// CredentialID is the integrations record the token and store URL are read from.
const CredentialID = "shopify"

const apiVersion = "2024-07"

// Variant is one purchasable variant of a product.
type Variant struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

// Product is a Shopify product.
type Product struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Status   string    `json:"status"`
	Variants []Variant `json:"variants"`
}

// Order is a Shopify order.
type Order struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	TotalPrice      string    `json:"total_price"`
	FinancialStatus string    `json:"financial_status"`
	CreatedAt       time.Time `json:"created_at"`
}

// Client calls the Admin REST API of the configured store.
type Client struct {
	creds *integrations.Service
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New builds a Client. Outbound requests are traced via otelhttp.
func New(creds *integrations.Service, opts ...Option) *Client {
	c := &Client{
		creds: creds,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Products lists the store's products.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var out struct {
		Products []Product `json:"products"`
	}
	if err := c.get(ctx, "products.json", &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

// Orders lists the store's orders.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.get(ctx, "orders.json", &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

func (c *Client) get(ctx context.Context, resource string, out any) error {
	it, err := c.creds.Credential(ctx, CredentialID)
	if err != nil {
		return err
	}
	if it.StoreURL == "" {
		return errmodel.NotConfigured(CredentialID)
	}
	base := strings.TrimSuffix(it.StoreURL, "/")
	u := fmt.Sprintf("%s/admin/api/%s/%s", base, apiVersion, resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", it.Key)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("shopify: %s: %w", resource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("shopify: %s: unexpected status %s", resource, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
