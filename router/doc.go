// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the mrpcast read API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	reg := prometheus.NewRegistry()
	mux := router.NewRouter(db, cfg, cache.Noop{}, metrics.New(reg), reg)

# Endpoints

Health and metrics:

	GET /health
	GET /metrics

Runs (public):

	GET  /runs                   - List runs, newest first
	GET  /runs/{id}              - Full run snapshot
	GET  /runs/{id}/areas        - Area estimates
	GET  /runs/{id}/areas/{code} - One area estimate
	POST /runs/{id}/validation   - Score against supplied observed shares

Run deletion (requires X-Run-Key):

	DELETE /runs/{id}

The mux is wrapped in middleware.CORS by the caller.
*/
package router
