package probe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errmodel"
	"github.com/apihub/hub/pkg/flows"
	"github.com/apihub/hub/pkg/integrations"
	"github.com/apihub/hub/pkg/maps"
)

type echoProbe struct {
	out map[string]any
}

func (p *echoProbe) Describe() Descriptor {
	return Descriptor{
		Name:         "echo",
		InputSchema:  []byte(`{"type":"object","required":["msg"],"properties":{"msg":{"type":"string"}}}`),
		OutputSchema: []byte(`{"type":"object","required":["msg"],"properties":{"msg":{"type":"string"}}}`),
		Permissions:  []Permission{{Name: "noop"}},
	}
}

func (p *echoProbe) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	if p.out != nil {
		return p.out, nil
	}
	return map[string]any{"msg": args["msg"]}, nil
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&echoProbe{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&echoProbe{}); err == nil {
		t.Fatal("duplicate accepted")
	}
	if err := r.Register(nil); err == nil {
		t.Fatal("nil accepted")
	}
	if _, ok := r.Resolve("echo"); !ok {
		t.Fatal("echo not resolvable")
	}
	if got := r.Names(); len(got) != 1 || got[0] != "echo" {
		t.Fatalf("names=%v", got)
	}
}

func TestSafeRunEnforcesPermissions(t *testing.T) {
	_, err := SafeRun(context.Background(), &echoProbe{}, map[string]any{"msg": "hi"}, nil, flows.JSONSchemaValidator)
	ce := errmodel.From(err)
	if ce == nil || ce.Category != errmodel.CategoryPolicy {
		t.Fatalf("err=%v", err)
	}
	if ce.Context["permission"] != "noop" {
		t.Fatalf("ctx=%v", ce.Context)
	}
}

func TestSafeRunValidatesInput(t *testing.T) {
	allowed := map[string]bool{"noop": true}
	_, err := SafeRun(context.Background(), &echoProbe{}, map[string]any{}, allowed, flows.JSONSchemaValidator)
	ce := errmodel.From(err)
	if ce == nil || ce.Code != "invalid_input" {
		t.Fatalf("err=%v", err)
	}
}

func TestSafeRunValidatesOutput(t *testing.T) {
	allowed := map[string]bool{"noop": true}
	bad := &echoProbe{out: map[string]any{"wrong": true}}
	_, err := SafeRun(context.Background(), bad, map[string]any{"msg": "hi"}, allowed, flows.JSONSchemaValidator)
	ce := errmodel.From(err)
	if ce == nil || ce.Code != "invalid_output" {
		t.Fatalf("err=%v", err)
	}
}

func TestSafeRunHappyPath(t *testing.T) {
	allowed := map[string]bool{"noop": true}
	out, err := SafeRun(context.Background(), &echoProbe{}, map[string]any{"msg": "hi"}, allowed, flows.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	if out["msg"] != "hi" {
		t.Fatalf("out=%v", out)
	}
}

func TestGeocodeProbeReportsNotConfiguredStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected outbound request")
	}))
	defer srv.Close()

	creds := integrations.NewService(memstore.New())
	p := &GeocodeProbe{Maps: maps.New(creds, maps.WithBaseURL(srv.URL), maps.WithHTTPClient(srv.Client()))}
	allowed := map[string]bool{"network:outbound": true}
	out, err := SafeRun(context.Background(), p, map[string]any{"address": "x"}, allowed, flows.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	if out["status"] != "ERROR" || out["error_message"] == "" {
		t.Fatalf("out=%v", out)
	}
}

func TestGeocodeProbeCountsMatches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "OK",
			"results": []map[string]any{{"formatted_address": "a"}, {"formatted_address": "b"}},
		})
	}))
	defer srv.Close()

	st := memstore.New()
	_, err := st.Set(context.Background(), integrations.Collection, maps.CredentialID, map[string]any{"active": true, "key": "k"}, false)
	if err != nil {
		t.Fatal(err)
	}
	p := &GeocodeProbe{Maps: maps.New(integrations.NewService(st), maps.WithBaseURL(srv.URL), maps.WithHTTPClient(srv.Client()))}
	out, err := SafeRun(context.Background(), p, map[string]any{"address": "x"}, map[string]bool{"network:outbound": true}, flows.JSONSchemaValidator)
	if err != nil {
		t.Fatal(err)
	}
	if out["status"] != "OK" || out["matches"] != 2 {
		t.Fatalf("out=%v", out)
	}
}
