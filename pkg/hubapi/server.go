// Package hubapi exposes the hub over HTTP: module catalog and status,
// integration management, the Maps/Shopify passthrough endpoints, the AI
// flows, and the integration probes. Handler errors are written as compact
// error envelopes; permission rejections additionally land on the error bus
// through the gateway and the guarded store.
package hubapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/apihub/hub/pkg/adapters/llm"
	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/gateway"
	"github.com/apihub/hub/pkg/integrations"
	"github.com/apihub/hub/pkg/maps"
	"github.com/apihub/hub/pkg/probe"
	"github.com/apihub/hub/pkg/revalidate"
	"github.com/apihub/hub/pkg/shopify"
)

// ModulesCollection holds caller-defined API module documents, next to the
// fixed catalog.
const ModulesCollection = "apiModules"

// ProductsCollection holds the sales module's product documents.
const ProductsCollection = "products"

// Server wires the hub's components behind an http.Handler.
type Server struct {
	st      docstore.Store
	gw      *gateway.Gateway
	creds   *integrations.Service
	maps    *maps.Client
	shop    *shopify.Client
	ask     *flows.Assistant
	quote   *flows.Quoter
	probes  *probe.Registry
	allowed map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithMapsClient overrides the Google Maps client.
func WithMapsClient(c *maps.Client) Option { return func(s *Server) { s.maps = c } }

// WithShopifyClient overrides the Shopify client.
func WithShopifyClient(c *shopify.Client) Option { return func(s *Server) { s.shop = c } }

// WithAssistant overrides the ask flow.
func WithAssistant(a *flows.Assistant) Option { return func(s *Server) { s.ask = a } }

// WithQuoter overrides the quote flow.
func WithQuoter(q *flows.Quoter) Option { return func(s *Server) { s.quote = q } }

// WithProbePermissions sets the permissions granted to probes run over HTTP.
func WithProbePermissions(allowed map[string]bool) Option {
	return func(s *Server) { s.allowed = allowed }
}

// New builds a Server over the given store. The store should already be
// guarded if access rules apply; the gateway, flows, and probes are built on
// top of it.
func New(st docstore.Store, bus *errbus.Bus, sig *revalidate.Signal, opts ...Option) *Server {
	var stale gateway.StaleMarker
	if sig != nil {
		stale = sig
	}
	s := &Server{
		st:    st,
		gw:    gateway.New(st, bus, stale),
		creds: integrations.NewService(st),
		allowed: map[string]bool{
			"network:outbound": true,
			"model:generate":   true,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maps == nil {
		s.maps = maps.New(s.creds)
	}
	if s.shop == nil {
		s.shop = shopify.New(s.creds)
	}
	if s.ask == nil {
		s.ask = flows.NewAssistant(s.creds)
	}
	if s.quote == nil {
		s.quote = flows.NewQuoter(s.creds)
	}
	s.probes = probe.NewRegistry()
	_ = s.probes.Register(&probe.GeocodeProbe{Maps: s.maps})
	_ = s.probes.Register(&probe.ShopifyProductsProbe{Shopify: s.shop})
	_ = s.probes.Register(&probe.AskProbe{Assistant: s.ask})
	return s
}

// Gateway returns the mutation gateway the server writes through.
func (s *Server) Gateway() *gateway.Gateway { return s.gw }

// Handler returns the routed, traced handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/modules", s.handleModulesList)
	mux.HandleFunc("POST /api/modules", s.handleModulesCreate)
	mux.HandleFunc("GET /api/sales", s.handleProductsList)
	mux.HandleFunc("POST /api/sales", s.handleProductCreate)
	mux.HandleFunc("GET /api/integrations", s.handleIntegrationsList)
	mux.HandleFunc("PATCH /api/integrations/{id}", s.handleIntegrationsPatch)
	mux.HandleFunc("GET /api/maps/geocode", s.handleGeocode)
	mux.HandleFunc("GET /api/maps/places", s.handlePlaces)
	mux.HandleFunc("GET /api/shopify/products", s.handleShopifyProducts)
	mux.HandleFunc("GET /api/shopify/orders", s.handleShopifyOrders)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/voice/quote", s.handleQuote)
	mux.HandleFunc("GET /api/retell/webhook", s.handleRetellVerify)
	mux.HandleFunc("POST /api/retell/webhook", s.handleRetellWebhook)
	mux.HandleFunc("GET /api/probes", s.handleProbesList)
	mux.HandleFunc("POST /api/probes/{name}", s.handleProbeRun)
	return otelhttp.NewHandler(mux, "hubapi")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusEntry is one row of the public status endpoint.
type statusEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Active   bool   `json:"active"`
}

// handleStatus reports every catalog module with its live active flag. A
// module without a credential record falls back to the catalog default.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	out := make([]statusEntry, 0, len(integrations.Catalog()))
	for _, m := range integrations.Catalog() {
		active := m.DefaultActive
		if it, ok, err := s.creds.Get(ctx, m.ID); err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		} else if ok {
			active = it.Active
		}
		out = append(out, statusEntry{ID: m.ID, Name: m.Name, Category: m.Category, Active: active})
	}
	writeJSON(w, http.StatusOK, map[string]any{"modules": out})
}

func (s *Server) handleModulesList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.st.List(r.Context(), ModulesCollection, docstore.Constraint{
		OrderBy: &docstore.OrderBy{Field: "name", Direction: docstore.Asc},
	})
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		m := docstore.CloneData(d.Data)
		if m == nil {
			m = map[string]any{}
		}
		m["id"] = d.ID
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"catalog": integrations.Catalog(), "custom": out})
}

func (s *Server) handleModulesCreate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
		return
	}
	res := s.gw.Create(r.Context(), ModulesCollection, payload)
	status := http.StatusCreated
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	docs, err := s.st.List(r.Context(), ProductsCollection, docstore.Constraint{})
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		m := docstore.CloneData(d.Data)
		if m == nil {
			m = map[string]any{}
		}
		m["id"] = d.ID
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (s *Server) handleProductCreate(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
		return
	}
	for _, field := range []string{"name", "price", "category", "stock"} {
		if payload[field] == nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation("missing_fields", "product requires name, price, category, stock", map[string]any{"field": field}))
			return
		}
	}
	res := s.gw.Create(r.Context(), ProductsCollection, payload)
	status := http.StatusCreated
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// handleRetellWebhook acknowledges call events from Retell. The payload only
// has to be well-formed JSON; Retell retries until it sees a 200.
func (s *Server) handleRetellWebhook(w http.ResponseWriter, r *http.Request) {
	var event map[string]any
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "webhook payload is not valid JSON", nil))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleRetellVerify answers the endpoint-liveness check Retell performs
// before it starts delivering events.
func (s *Server) handleRetellVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "retell webhook endpoint is active"})
}

func (s *Server) handleIntegrationsList(w http.ResponseWriter, r *http.Request) {
	rows, err := s.creds.List(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": rows})
}

func (s *Server) handleIntegrationsPatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
		return
	}
	res := s.gw.Update(r.Context(), docstore.DocPath(integrations.Collection, id), payload, gateway.Options{Merge: true})
	status := http.StatusOK
	if !res.OK {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_fields", "address is required", nil))
		return
	}
	res, err := s.maps.Geocode(r.Context(), address)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var loc maps.LatLng
	if err := parseFloat(q.Get("lat"), &loc.Lat); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_fields", "lat is required", nil))
		return
	}
	if err := parseFloat(q.Get("lng"), &loc.Lng); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_fields", "lng is required", nil))
		return
	}
	radius := 1000
	if v := q.Get("radius"); v != "" {
		var f float64
		if err := parseFloat(v, &f); err != nil || f <= 0 {
			errmodel.WriteHTTP(w, r, errmodel.Validation("invalid_input", "radius must be a positive number", nil))
			return
		}
		radius = int(f)
	}
	res, err := s.maps.NearbyPlaces(r.Context(), loc, radius, q.Get("keyword"))
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleShopifyProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.shop.Products(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleShopifyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.shop.Orders(r.Context())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
		return
	}
	res, err := s.ask.Ask(r.Context(), flows.AskRequest{Question: req.Question})
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Transcript string `json:"transcript"`
		Audio      *struct {
			MIMEType string `json:"mimeType"`
			Data     []byte `json:"data"` // base64 in JSON
		} `json:"audio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
		return
	}
	qreq := flows.QuoteRequest{Transcript: req.Transcript}
	if req.Audio != nil {
		qreq.Audio = &llm.Media{MIMEType: req.Audio.MIMEType, Data: req.Audio.Data}
	}
	quote, raw, err := s.quote.Generate(r.Context(), qreq)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote, "raw": raw})
}

func (s *Server) handleProbesList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"probes": s.probes.Names()})
}

func (s *Server) handleProbeRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	p, ok := s.probes.Resolve(name)
	if !ok {
		errmodel.WriteHTTP(w, r, errmodel.Validation(errmodel.CodeNotFound, "probe not found", map[string]any{"probe": name}))
		return
	}
	args := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation("bad_json", "request body is not valid JSON", nil))
			return
		}
	}
	out, err := probe.SafeRun(r.Context(), p, args, s.allowed, flows.JSONSchemaValidator)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func parseFloat(s string, out *float64) error {
	if s == "" {
		return errmodel.Validation("missing_fields", "value is required", nil)
	}
	return json.Unmarshal([]byte(s), out)
}
