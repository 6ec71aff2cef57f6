// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/danielhkuo/mrpcast/auth"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/db"
	"github.com/danielhkuo/mrpcast/models"
)

// TestDBURL is an in-memory SQLite database private to one connection
const TestDBURL = ":memory:"

// SetupTestDB creates a fresh in-memory database with the full schema
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	conn, err := db.Open(context.Background(), db.TypeSQLite, TestDBURL)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:         3318,
		DatabaseURL:  TestDBURL,
		DatabaseType: db.TypeSQLite,
		RunKeySalt:   "test-run-salt",
		CacheTTL:     time.Minute,
	}
}

// NewTestSnapshot builds a run snapshot whose areas have the given mean
// shares; observed shares are the means shifted by +0.02.
func NewTestSnapshot(variant string, shares map[string]float64) *models.RunSnapshot {
	codes := make([]string, 0, len(shares))
	for code := range shares {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	snap := &models.RunSnapshot{
		Variant:     variant,
		TargetParty: "LAB",
		CreatedAt:   time.Date(2024, 7, 5, 6, 0, 0, 0, time.UTC),
		InputsHash:  auth.InputsHash([]byte("survey"), []byte("frame"), []byte("results")),
		Respondents: 1000,
		Chains:      4,
		Iterations:  2000,
		Warmup:      1000,
		Seed:        1,
		WorstParam:  "alpha",
		WorstRhat:   1.01,
		Observed:    make(map[string]float64, len(shares)),
		Estimate: models.AggregatedEstimate{
			Draws:    50,
			Interval: 0.9,
		},
	}

	var num, den float64
	for i, code := range codes {
		mean := shares[code]
		weight := float64(1000 * (i + 1))
		snap.Estimate.Areas = append(snap.Estimate.Areas, models.AreaEstimate{
			Area:    code,
			Weight:  weight,
			Summary: models.Summary{Mean: mean, SD: 0.02, Lower: mean - 0.03, Upper: mean + 0.03},
		})
		snap.Observed[code] = mean + 0.02
		num += weight * mean
		den += weight
	}
	if den > 0 {
		snap.Estimate.National = models.Summary{Mean: num / den, SD: 0.01, Lower: num/den - 0.02, Upper: num/den + 0.02}
	}
	snap.Validation = &models.ValidationReport{Areas: len(codes), Bias: 0.02, RMSE: 0.02, MAE: 0.02}
	return snap
}

// RunSaver is satisfied by *store.Store
type RunSaver interface {
	SaveRun(ctx context.Context, snap *models.RunSnapshot) error
}

// SeedRun stores a snapshot and returns its ID and run key
func SeedRun(t *testing.T, s RunSaver, cfg cliparse.Config, snap *models.RunSnapshot) (runID, runKey string) {
	t.Helper()

	if err := s.SaveRun(context.Background(), snap); err != nil {
		t.Fatalf("Failed to save test run: %v", err)
	}
	return snap.ID, auth.GenerateRunKey(snap.ID, cfg.RunKeySalt)
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
