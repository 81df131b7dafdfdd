package maps

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/integrations"
)

func service(t *testing.T, key string) *integrations.Service {
	t.Helper()
	st := memstore.New()
	if key != "" {
		_, err := st.Set(context.Background(), integrations.Collection, CredentialID, map[string]any{"active": true, "key": key}, false)
		if err != nil {
			t.Fatal(err)
		}
	}
	return integrations.NewService(st)
}

func TestGeocodeWithoutCredentialMakesNoRequest(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := New(service(t, ""), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	res, err := c.Geocode(context.Background(), "1600 Amphitheatre Pkwy")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "ERROR" || res.ErrorMessage == "" {
		t.Fatalf("res=%+v", res)
	}
	if hits.Load() != 0 {
		t.Fatalf("outbound requests: %d", hits.Load())
	}
}

func TestGeocodeSendsKeyAndDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/geocode/json" {
			t.Errorf("path=%s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "AIzaTest" || r.URL.Query().Get("address") == "" {
			t.Errorf("query=%v", r.URL.Query())
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{{
				"formatted_address": "Mountain View, CA",
				"geometry":          map[string]any{"location": map[string]any{"lat": 37.42, "lng": -122.08}},
			}},
		})
	}))
	defer srv.Close()

	c := New(service(t, "AIzaTest"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	res, err := c.Geocode(context.Background(), "1600 Amphitheatre Pkwy")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "OK" || len(res.Results) != 1 {
		t.Fatalf("res=%+v", res)
	}
	got := res.Results[0]
	if got.FormattedAddress != "Mountain View, CA" || got.Geometry.Location.Lat != 37.42 {
		t.Fatalf("entry=%+v", got)
	}
}

func TestNearbyPlacesBuildsLocationQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/nearbysearch/json" {
			t.Errorf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("location") != "37.42,-122.08" || q.Get("radius") != "500" || q.Get("keyword") != "coffee" {
			t.Errorf("query=%v", q)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "OK",
			"results": []map[string]any{{"name": "Blue Bottle", "vicinity": "Castro St", "rating": 4.5}},
		})
	}))
	defer srv.Close()

	c := New(service(t, "AIzaTest"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	res, err := c.NearbyPlaces(context.Background(), LatLng{Lat: 37.42, Lng: -122.08}, 500, "coffee")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != "OK" || len(res.Results) != 1 || res.Results[0].Name != "Blue Bottle" {
		t.Fatalf("res=%+v", res)
	}
}

func TestGeocodeSurfacesHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(service(t, "AIzaTest"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	if _, err := c.Geocode(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
}
