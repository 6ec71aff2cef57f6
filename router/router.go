// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielhkuo/mrpcast/cache"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/handlers"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/middleware"
	"github.com/danielhkuo/mrpcast/store"
)

// NewRouter builds the read API. /metrics is served from g when it is non-nil.
func NewRouter(db *sql.DB, cfg cliparse.Config, c cache.RunCache, m *metrics.Metrics, g prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	runsHandler := handlers.NewRunsHandler(store.New(db), c, m, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if g != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	}

	// Run retrieval (public)
	mux.HandleFunc("GET /runs", middleware.WithLogging(runsHandler.ListRuns))
	mux.HandleFunc("GET /runs/{id}", middleware.WithLogging(runsHandler.GetRun))
	mux.HandleFunc("GET /runs/{id}/areas", middleware.WithLogging(runsHandler.GetAreas))
	mux.HandleFunc("GET /runs/{id}/areas/{code}", middleware.WithLogging(runsHandler.GetArea))
	mux.HandleFunc("POST /runs/{id}/validation", middleware.WithLogging(runsHandler.ValidateRun))

	// Run deletion (requires X-Run-Key)
	mux.HandleFunc("DELETE /runs/{id}", middleware.WithLogging(runsHandler.DeleteRun))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mrpcast API v1"))
	})

	return mux
}
