package hubapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apihub/hub/pkg/adapters/llm"
	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/gateway"
	"github.com/apihub/hub/pkg/integrations"
	"github.com/apihub/hub/pkg/maps"
	"github.com/apihub/hub/pkg/revalidate"
)

func seeded(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	if err := integrations.Seed(context.Background(), st); err != nil {
		t.Fatal(err)
	}
	return st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("body=%q err=%v", rr.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	h := New(seeded(t), errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Fatalf("code=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStatusReflectsIntegrationRecords(t *testing.T) {
	st := seeded(t)
	if _, err := st.Set(context.Background(), integrations.Collection, "sales", map[string]any{"active": false}, true); err != nil {
		t.Fatal(err)
	}
	h := New(st, errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodGet, "/api/status", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	var out struct {
		Modules []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"modules"`
	}
	decode(t, rr, &out)
	if len(out.Modules) != len(integrations.Catalog()) {
		t.Fatalf("modules=%d", len(out.Modules))
	}
	for _, m := range out.Modules {
		if m.ID == "sales" && m.Active {
			t.Fatal("sales should be inactive")
		}
		if m.ID == "reservations" && !m.Active {
			t.Fatal("reservations should be active")
		}
	}
}

func TestProductCreateAndList(t *testing.T) {
	st := seeded(t)
	sig := revalidate.New()
	var stale []string
	sig.OnStale(func(v string) { stale = append(stale, v) })
	h := New(st, errbus.New(), sig).Handler()

	rr := do(t, h, http.MethodPost, "/api/sales", `{"name":"Widget","price":9.5,"category":"Hardware","stock":12}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	var res gateway.Result
	decode(t, rr, &res)
	if !res.OK || res.ID == "" {
		t.Fatalf("res=%+v", res)
	}
	if len(stale) != 1 || stale[0] != ProductsCollection {
		t.Fatalf("stale=%v", stale)
	}

	// A product missing a required field is rejected before the write.
	rr = do(t, h, http.MethodPost, "/api/sales", `{"name":"Widget","price":9.5}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	if len(stale) != 1 {
		t.Fatalf("rejected create fired revalidation: %v", stale)
	}

	rr = do(t, h, http.MethodGet, "/api/sales", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	var list struct {
		Products []map[string]any `json:"products"`
	}
	decode(t, rr, &list)
	if len(list.Products) != 1 || list.Products[0]["name"] != "Widget" || list.Products[0]["id"] != res.ID {
		t.Fatalf("products=%+v", list.Products)
	}
}

func TestRetellWebhookAck(t *testing.T) {
	h := New(seeded(t), errbus.New(), nil).Handler()

	rr := do(t, h, http.MethodPost, "/api/retell/webhook", `{"event":"call_ended","call_id":"c-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	var ack map[string]any
	decode(t, rr, &ack)
	if ack["status"] != "ok" {
		t.Fatalf("ack=%v", ack)
	}

	rr = do(t, h, http.MethodPost, "/api/retell/webhook", `{not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/api/retell/webhook", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestModulesCreateAndList(t *testing.T) {
	st := seeded(t)
	sig := revalidate.New()
	var stale []string
	sig.OnStale(func(v string) { stale = append(stale, v) })
	h := New(st, errbus.New(), sig).Handler()

	rr := do(t, h, http.MethodPost, "/api/modules", `{"name":"Webhooks API","category":"System"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	var res gateway.Result
	decode(t, rr, &res)
	if !res.OK || res.ID == "" {
		t.Fatalf("res=%+v", res)
	}
	if len(stale) != 1 || stale[0] != ModulesCollection {
		t.Fatalf("stale=%v", stale)
	}

	rr = do(t, h, http.MethodGet, "/api/modules", "")
	var list struct {
		Custom []map[string]any `json:"custom"`
	}
	decode(t, rr, &list)
	if len(list.Custom) != 1 || list.Custom[0]["name"] != "Webhooks API" {
		t.Fatalf("custom=%v", list.Custom)
	}
}

func TestIntegrationsPatchDeniedPublishesEvent(t *testing.T) {
	st := seeded(t)
	guarded := docstore.Guard(st, docstore.RuleFunc(func(op errbus.Op, p docstore.Path, _ map[string]any) bool {
		return op != errbus.OpUpdate
	}))
	bus := errbus.New()
	var events []errbus.Event
	bus.Subscribe(func(ev errbus.Event) { events = append(events, ev) })
	h := New(guarded, bus, nil).Handler()

	rr := do(t, h, http.MethodPatch, "/api/integrations/shopify", `{"active":false}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	var res gateway.Result
	decode(t, rr, &res)
	if res.OK || res.Message == "" {
		t.Fatalf("res=%+v", res)
	}
	if len(events) != 1 || events[0].Path != "integrations/shopify" {
		t.Fatalf("events=%+v", events)
	}
}

func TestIntegrationsPatchUpdatesRecord(t *testing.T) {
	st := seeded(t)
	h := New(st, errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodPatch, "/api/integrations/google-maps", `{"key":"AIzaNew"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	doc, _, err := st.Get(context.Background(), integrations.Collection, "google-maps")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Data["key"] != "AIzaNew" || doc.Data["active"] != true {
		t.Fatalf("data=%v", doc.Data)
	}
}

func TestGeocodeEndpointWithoutCredential(t *testing.T) {
	st := memstore.New() // no records at all
	h := New(st, errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodGet, "/api/maps/geocode?address=Berlin", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d", rr.Code)
	}
	var res maps.GeocodeResult
	decode(t, rr, &res)
	if res.Status != "ERROR" || res.ErrorMessage == "" {
		t.Fatalf("res=%+v", res)
	}
}

func TestGeocodeEndpointRequiresAddress(t *testing.T) {
	h := New(seeded(t), errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodGet, "/api/maps/geocode", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestAskEndpoint(t *testing.T) {
	if _, ok := llm.Resolve("hubapi-fake"); !ok {
		err := llm.Register("hubapi-fake", func(ctx context.Context, cfg map[string]any) (llm.LLM, error) {
			return fakeLLM{}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	st := seeded(t)
	if _, err := st.Set(context.Background(), integrations.Collection, "gemini-ai", map[string]any{"key": "k"}, true); err != nil {
		t.Fatal(err)
	}
	creds := integrations.NewService(st)
	srv := New(st, errbus.New(), nil,
		WithAssistant(flows.NewAssistant(creds, flows.WithAskProvider("hubapi-fake", "gemini-ai"))))
	rr := do(t, srv.Handler(), http.MethodPost, "/api/ask", `{"question":"what is active?"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
	var res flows.AskResponse
	decode(t, rr, &res)
	if res.Answer != "stub answer" {
		t.Fatalf("res=%+v", res)
	}
}

func TestAskEndpointNotConfigured(t *testing.T) {
	h := New(memstore.New(), errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodPost, "/api/ask", `{"question":"x"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProbesListAndNotFound(t *testing.T) {
	h := New(seeded(t), errbus.New(), nil).Handler()
	rr := do(t, h, http.MethodGet, "/api/probes", "")
	var out struct {
		Probes []string `json:"probes"`
	}
	decode(t, rr, &out)
	if len(out.Probes) != 3 {
		t.Fatalf("probes=%v", out.Probes)
	}
	rr = do(t, h, http.MethodPost, "/api/probes/nope", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rr.Code)
	}
}

func TestProbeRunForbiddenWithoutPermission(t *testing.T) {
	h := New(seeded(t), errbus.New(), nil, WithProbePermissions(map[string]bool{})).Handler()
	rr := do(t, h, http.MethodPost, "/api/probes/maps_geocode", `{"address":"Berlin"}`)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("code=%d body=%s", rr.Code, rr.Body.String())
	}
}

type fakeLLM struct{}

func (fakeLLM) Name() string { return "hubapi-fake" }
func (fakeLLM) Generate(ctx context.Context, messages []llm.Message, opts map[string]any) (llm.GenerateResult, error) {
	return llm.GenerateResult{Text: "stub answer", Model: "fake"}, nil
}
