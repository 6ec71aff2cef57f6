// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danielhkuo/mrpcast/auth"
	"github.com/danielhkuo/mrpcast/cache"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/store"
	"github.com/danielhkuo/mrpcast/testutil"
)

var testShares = map[string]float64{"E1": 0.4, "E2": 0.5, "E3": 0.6}

// newTestMux registers the handler on the same patterns the router uses
func newTestMux(h *RunsHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /runs", h.ListRuns)
	mux.HandleFunc("GET /runs/{id}", h.GetRun)
	mux.HandleFunc("DELETE /runs/{id}", h.DeleteRun)
	mux.HandleFunc("GET /runs/{id}/areas", h.GetAreas)
	mux.HandleFunc("GET /runs/{id}/areas/{code}", h.GetArea)
	mux.HandleFunc("POST /runs/{id}/validation", h.ValidateRun)
	return mux
}

type fixture struct {
	store   *store.Store
	cache   *cache.Memory
	metrics *metrics.Metrics
	mux     *http.ServeMux
	runID   string
	runKey  string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	cfg := testutil.GetTestConfig()
	s := store.New(testutil.SetupTestDB(t))
	c := cache.NewMemory()
	m := metrics.New(prometheus.NewRegistry())
	h := NewRunsHandler(s, c, m, cfg)

	runID, runKey := testutil.SeedRun(t, s, cfg, testutil.NewTestSnapshot(models.VariantBase, testShares))
	return &fixture{store: s, cache: c, metrics: m, mux: newTestMux(h), runID: runID, runKey: runKey}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestListRuns(t *testing.T) {
	f := setup(t)
	cfg := testutil.GetTestConfig()
	testutil.SeedRun(t, f.store, cfg, testutil.NewTestSnapshot(models.VariantExtended, testShares))

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedRuns   int
	}{
		{"default limit", "", http.StatusOK, 2},
		{"limit one", "?limit=1", http.StatusOK, 1},
		{"zero limit", "?limit=0", http.StatusBadRequest, 0},
		{"limit too large", "?limit=501", http.StatusBadRequest, 0},
		{"non-numeric limit", "?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(testutil.MakeRequest("GET", "/runs"+tt.query, nil, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp models.ListRunsResponse
			testutil.AssertJSON(t, w, &resp)
			if len(resp.Runs) != tt.expectedRuns {
				t.Errorf("Expected %d runs, got %d", tt.expectedRuns, len(resp.Runs))
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name           string
		runID          string
		expectedStatus int
	}{
		{"stored run", f.runID, http.StatusOK},
		{"unknown run", "00000000-0000-0000-0000-000000000000", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(testutil.MakeRequest("GET", "/runs/"+tt.runID, nil, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var snap models.RunSnapshot
			testutil.AssertJSON(t, w, &snap)
			if snap.ID != f.runID {
				t.Errorf("Expected run ID %s, got %s", f.runID, snap.ID)
			}
			if len(snap.Estimate.Areas) != 3 {
				t.Errorf("Expected 3 areas, got %d", len(snap.Estimate.Areas))
			}
			if snap.TargetParty != "LAB" {
				t.Errorf("Expected target party LAB, got %s", snap.TargetParty)
			}
		})
	}
}

func TestGetRun_ReadsThroughCache(t *testing.T) {
	f := setup(t)

	for i := 0; i < 3; i++ {
		w := f.do(testutil.MakeRequest("GET", "/runs/"+f.runID, nil, nil))
		testutil.AssertStatus(t, w, http.StatusOK)
	}

	if got := promtest.ToFloat64(f.metrics.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}
	if got := promtest.ToFloat64(f.metrics.CacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("Expected 2 cache hits, got %v", got)
	}
	if _, ok, _ := f.cache.Get(context.Background(), f.runID); !ok {
		t.Error("Expected run to be cached after first read")
	}
}

type failingCache struct{ cache.Noop }

func (failingCache) Get(context.Context, string) (*models.RunSnapshot, bool, error) {
	return nil, false, errors.New("connection refused")
}

func TestGetRun_CacheFailureFallsBackToStore(t *testing.T) {
	cfg := testutil.GetTestConfig()
	s := store.New(testutil.SetupTestDB(t))
	m := metrics.New(prometheus.NewRegistry())
	mux := newTestMux(NewRunsHandler(s, failingCache{}, m, cfg))
	runID, _ := testutil.SeedRun(t, s, cfg, testutil.NewTestSnapshot(models.VariantBase, testShares))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/runs/"+runID, nil, nil))

	testutil.AssertStatus(t, w, http.StatusOK)
	if got := promtest.ToFloat64(m.CacheLookups.WithLabelValues("error")); got != 1 {
		t.Errorf("Expected 1 cache error, got %v", got)
	}
}

func TestGetAreas(t *testing.T) {
	f := setup(t)

	w := f.do(testutil.MakeRequest("GET", "/runs/"+f.runID+"/areas", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var areas []models.AreaEstimateResponse
	testutil.AssertJSON(t, w, &areas)
	if len(areas) != 3 {
		t.Fatalf("Expected 3 areas, got %d", len(areas))
	}
	for i, code := range []string{"E1", "E2", "E3"} {
		if areas[i].Estimate.Area != code {
			t.Errorf("Expected area %d to be %s, got %s", i, code, areas[i].Estimate.Area)
		}
		if areas[i].Observed == nil {
			t.Errorf("Expected observed share for %s", code)
		}
	}

	w = f.do(testutil.MakeRequest("GET", "/runs/missing/areas", nil, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestGetArea(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expectedMean   float64
	}{
		{"known area", "/runs/" + f.runID + "/areas/E2", http.StatusOK, 0.5},
		{"unknown area", "/runs/" + f.runID + "/areas/Z9", http.StatusNotFound, 0},
		{"unknown run", "/runs/missing/areas/E2", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(testutil.MakeRequest("GET", tt.path, nil, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var area models.AreaEstimateResponse
			testutil.AssertJSON(t, w, &area)
			if area.RunID != f.runID {
				t.Errorf("Expected run ID %s, got %s", f.runID, area.RunID)
			}
			if math.Abs(area.Estimate.Summary.Mean-tt.expectedMean) > 1e-12 {
				t.Errorf("Expected mean %v, got %v", tt.expectedMean, area.Estimate.Summary.Mean)
			}
		})
	}
}

func TestValidateRun(t *testing.T) {
	f := setup(t)

	t.Run("shifted observations", func(t *testing.T) {
		body := models.ValidateRunRequest{Observed: map[string]float64{"E1": 0.42, "E2": 0.52, "E3": 0.62}}
		w := f.do(testutil.MakeRequest("POST", "/runs/"+f.runID+"/validation", body, nil))
		testutil.AssertStatus(t, w, http.StatusOK)

		var rep models.ValidationReport
		testutil.AssertJSON(t, w, &rep)
		if rep.Areas != 3 || rep.DroppedAreas != 0 {
			t.Errorf("Expected 3 areas and none dropped, got %d and %d", rep.Areas, rep.DroppedAreas)
		}
		if math.Abs(rep.Bias-0.02) > 1e-9 || math.Abs(rep.RMSE-0.02) > 1e-9 {
			t.Errorf("Expected bias and RMSE of 0.02, got %v and %v", rep.Bias, rep.RMSE)
		}
		if rep.CalibrationSlope == nil || math.Abs(*rep.CalibrationSlope-1) > 1e-9 {
			t.Errorf("Expected calibration slope 1, got %v", rep.CalibrationSlope)
		}
	})

	t.Run("partial overlap reports dropped areas", func(t *testing.T) {
		body := models.ValidateRunRequest{Observed: map[string]float64{"E1": 0.4, "E2": 0.5, "W9": 0.3}}
		w := f.do(testutil.MakeRequest("POST", "/runs/"+f.runID+"/validation", body, nil))
		testutil.AssertStatus(t, w, http.StatusOK)

		var rep models.ValidationReport
		testutil.AssertJSON(t, w, &rep)
		if rep.Areas != 2 || rep.DroppedAreas != 2 {
			t.Errorf("Expected 2 scored and 2 dropped, got %d and %d", rep.Areas, rep.DroppedAreas)
		}
	})

	tests := []struct {
		name           string
		runID          string
		body           interface{}
		expectedStatus int
	}{
		{"no common areas", f.runID, models.ValidateRunRequest{Observed: map[string]float64{"W9": 0.3}}, http.StatusUnprocessableEntity},
		{"empty observed", f.runID, models.ValidateRunRequest{}, http.StatusBadRequest},
		{"share above one", f.runID, models.ValidateRunRequest{Observed: map[string]float64{"E1": 42}}, http.StatusBadRequest},
		{"unknown run", "missing", models.ValidateRunRequest{Observed: map[string]float64{"E1": 0.4}}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(testutil.MakeRequest("POST", "/runs/"+tt.runID+"/validation", tt.body, nil))
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	t.Run("invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/runs/"+f.runID+"/validation", strings.NewReader("{not json"))
		w := f.do(req)
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})
}

func TestDeleteRun(t *testing.T) {
	f := setup(t)
	cfg := testutil.GetTestConfig()

	// Warm the cache so deletion has something to invalidate
	testutil.AssertStatus(t, f.do(testutil.MakeRequest("GET", "/runs/"+f.runID, nil, nil)), http.StatusOK)

	tests := []struct {
		name           string
		runID          string
		runKey         string
		expectedStatus int
	}{
		{"missing run key", f.runID, "", http.StatusUnauthorized},
		{"wrong run key", f.runID, auth.GenerateRunKey("other", cfg.RunKeySalt), http.StatusUnauthorized},
		{"valid run key", f.runID, f.runKey, http.StatusOK},
		{"already deleted", f.runID, f.runKey, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.runKey != "" {
				headers["X-Run-Key"] = tt.runKey
			}
			w := f.do(testutil.MakeRequest("DELETE", "/runs/"+tt.runID, nil, headers))
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}

	if _, ok, _ := f.cache.Get(context.Background(), f.runID); ok {
		t.Error("Expected cached run to be invalidated")
	}
	testutil.AssertStatus(t, f.do(testutil.MakeRequest("GET", "/runs/"+f.runID, nil, nil)), http.StatusNotFound)
}

func TestNewRunsHandler_NilCache(t *testing.T) {
	cfg := testutil.GetTestConfig()
	s := store.New(testutil.SetupTestDB(t))
	mux := newTestMux(NewRunsHandler(s, nil, nil, cfg))
	runID, _ := testutil.SeedRun(t, s, cfg, testutil.NewTestSnapshot(models.VariantBase, testShares))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, testutil.MakeRequest("GET", "/runs/"+runID, nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}
