package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/apihub/hub/pkg/docstore/entstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/integrations"
	"github.com/apihub/hub/pkg/revalidate"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	if got := getEnv("FOO", "default"); got != "bar" {
		t.Fatalf("getEnv returned %q, want %q", got, "bar")
	}
	if got := getEnv("MISSING", "default"); got != "default" {
		t.Fatalf("getEnv returned %q, want %q", got, "default")
	}
}

func TestHub_IntegrationLifecycle(t *testing.T) {
	ctx := t.Context()
	st, err := entstore.Open(ctx, "sqlite:file:hubdtest?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_fk=1")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := integrations.Seed(ctx, st); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(buildMux(st, errbus.New(), revalidate.New()))
	defer srv.Close()

	// health
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", res.StatusCode)
	}

	// status lists every catalog module
	res, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	var status struct {
		Modules []struct {
			ID     string `json:"id"`
			Active bool   `json:"active"`
		} `json:"modules"`
	}
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if len(status.Modules) != len(integrations.Catalog()) {
		t.Fatalf("modules=%d", len(status.Modules))
	}

	// switch an integration off through the API
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/api/integrations/sales", bytes.NewBufferString(`{"active":false}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status=%d", res.StatusCode)
	}

	// status reflects the change
	res, err = http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	status.Modules = nil
	if err := json.NewDecoder(res.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	_ = res.Body.Close()
	for _, m := range status.Modules {
		if m.ID == "sales" && m.Active {
			t.Fatal("sales still active")
		}
	}
}
