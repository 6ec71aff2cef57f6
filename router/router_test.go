// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/danielhkuo/mrpcast/cache"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/store"
	"github.com/danielhkuo/mrpcast/testutil"
)

func newTestRouter(t *testing.T) (*http.ServeMux, *store.Store) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	reg := prometheus.NewRegistry()
	mux := NewRouter(db, testutil.GetTestConfig(), cache.NewMemory(), metrics.New(reg), reg)
	return mux, store.New(db)
}

func TestHealthEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	if w.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", w.Body.String())
	}
}

func TestRootEndpoint(t *testing.T) {
	mux, _ := newTestRouter(t)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	expected := "mrpcast API v1"
	if w.Body.String() != expected {
		t.Errorf("Expected body '%s', got '%s'", expected, w.Body.String())
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	mux, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/polls", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	mux, s := newTestRouter(t)
	runID, _ := testutil.SeedRun(t, s, testutil.GetTestConfig(),
		testutil.NewTestSnapshot(models.VariantBase, map[string]float64{"E1": 0.4}))

	// One snapshot read so the cache counter has a sample
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/runs/"+runID, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	if !strings.Contains(w.Body.String(), `mrpcast_cache_lookups_total{result="miss"} 1`) {
		t.Errorf("Expected cache miss counter in metrics output, got:\n%s", w.Body.String())
	}
}

func TestMetricsEndpointDisabled(t *testing.T) {
	mux := NewRouter(testutil.SetupTestDB(t), testutil.GetTestConfig(), nil, nil, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without a gatherer, got %d", w.Code)
	}
}

func TestRouteExistence(t *testing.T) {
	mux, _ := newTestRouter(t)

	// Routes respond through their handler; unknown runs give 404 with a
	// JSON body, while an unregistered route gives the mux's plain 404/405.
	testCases := []struct {
		method string
		path   string
	}{
		{"GET", "/runs/missing"},
		{"GET", "/runs/missing/areas"},
		{"GET", "/runs/missing/areas/E1"},
		{"POST", "/runs/missing/validation"},
		{"DELETE", "/runs/missing"},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var body interface{}
			if tc.method == "POST" {
				body = models.ValidateRunRequest{Observed: map[string]float64{"E1": 0.4}}
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, testutil.MakeRequest(tc.method, tc.path, body, nil))

			if w.Code == http.StatusMethodNotAllowed {
				t.Errorf("Route %s %s is not registered", tc.method, tc.path)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Route %s %s did not reach a JSON handler (Content-Type %q, status %d)",
					tc.method, tc.path, ct, w.Code)
			}
		})
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/runs", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("PUT", "/runs/abc", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}
