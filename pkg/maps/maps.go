// Package maps is the hub's Google Maps client: geocoding and nearby place
// search. The API key is read from the "google-maps" credential record per
// call; when the integration is missing or switched off the client returns a
// status-ERROR result without making an outbound request, mirroring the
// upstream API's error envelope so callers handle both the same way.
package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/integrations"
)

const defaultBaseURL = "https://maps.googleapis.com"

// CredentialID is the integrations record the API key is read from.
const CredentialID = "google-maps"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodeEntry is one geocoding match.
type GeocodeEntry struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
}

// GeocodeResult is the geocoding response envelope. Status is "OK" on
// success; "ERROR" carries ErrorMessage.
type GeocodeResult struct {
	Status       string         `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Results      []GeocodeEntry `json:"results"`
}

// Place is one nearby-search match.
type Place struct {
	Name     string  `json:"name"`
	Vicinity string  `json:"vicinity"`
	Rating   float64 `json:"rating"`
	Geometry struct {
		Location LatLng `json:"location"`
	} `json:"geometry"`
}

// PlacesResult is the nearby-search response envelope.
type PlacesResult struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Results      []Place `json:"results"`
}

// Client calls the Google Maps web services.
type Client struct {
	creds *integrations.Service
	http  *http.Client
	base  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API origin, for tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.base = base
		}
	}
}

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
		base:  defaultBaseURL,
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

// Geocode resolves an address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	key, errRes, err := c.key(ctx)
	if err != nil || errRes != "" {
		return GeocodeResult{Status: "ERROR", ErrorMessage: errRes}, err
	}
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", key)
	var out GeocodeResult
	if err := c.get(ctx, "/maps/api/geocode/json", q, &out); err != nil {
		return GeocodeResult{}, fmt.Errorf("maps: geocode: %w", err)
	}
	return out, nil
}

// NearbyPlaces searches for places around a coordinate. keyword may be empty.
func (c *Client) NearbyPlaces(ctx context.Context, loc LatLng, radiusMeters int, keyword string) (PlacesResult, error) {
	key, errRes, err := c.key(ctx)
	if err != nil || errRes != "" {
		return PlacesResult{Status: "ERROR", ErrorMessage: errRes}, err
	}
	q := url.Values{}
	q.Set("location", strconv.FormatFloat(loc.Lat, 'f', -1, 64)+","+strconv.FormatFloat(loc.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	q.Set("key", key)
	var out PlacesResult
	if err := c.get(ctx, "/maps/api/place/nearbysearch/json", q, &out); err != nil {
		return PlacesResult{}, fmt.Errorf("maps: nearby: %w", err)
	}
	return out, nil
}

// key resolves the API key. A not-configured integration comes back as a
// non-empty error message with a nil error, so callers emit the API's own
// error envelope instead of failing the request.
func (c *Client) key(ctx context.Context) (key, notConfigured string, err error) {
	it, err := c.creds.Credential(ctx, CredentialID)
	if errmodel.IsNotConfigured(err) {
		return "", "Google Maps integration is not configured", nil
	}
	if err != nil {
		return "", "", err
	}
	return it.Key, "", nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
