// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the mrpcast read API.

# Handler Types

RunsHandler serves stored estimation runs. It is created with the run
store, a snapshot cache, metrics and the config:

	runsHandler := handlers.NewRunsHandler(store.New(db), cache.Noop{}, m, cfg)

A nil cache disables caching and nil metrics records nothing.

# Endpoints

	GET    /runs                     → ListRuns (newest first, ?limit=1..500)
	GET    /runs/{id}                → GetRun (full snapshot, cached)
	GET    /runs/{id}/areas          → GetAreas
	GET    /runs/{id}/areas/{code}   → GetArea
	POST   /runs/{id}/validation     → ValidateRun (re-score, not persisted)
	DELETE /runs/{id}                → DeleteRun

DeleteRun requires the X-Run-Key header printed when the run was stored.

# Status Codes

Unknown runs and areas map to 404, malformed requests to 400, and
estimation errors (no areas in common with the supplied observations,
for example) to 422.
*/
package handlers
