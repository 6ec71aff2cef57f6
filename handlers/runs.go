// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/danielhkuo/mrpcast/auth"
	"github.com/danielhkuo/mrpcast/cache"
	"github.com/danielhkuo/mrpcast/cliparse"
	"github.com/danielhkuo/mrpcast/metrics"
	"github.com/danielhkuo/mrpcast/middleware"
	"github.com/danielhkuo/mrpcast/models"
	"github.com/danielhkuo/mrpcast/mrperr"
	"github.com/danielhkuo/mrpcast/store"
	"github.com/danielhkuo/mrpcast/validate"
)

// maxListLimit bounds GET /runs?limit=
const maxListLimit = 500

type RunsHandler struct {
	store   *store.Store
	cache   cache.RunCache
	metrics *metrics.Metrics
	cfg     cliparse.Config
}

// NewRunsHandler wires a handler; a nil cache disables caching and nil
// metrics disables instrumentation.
func NewRunsHandler(s *store.Store, c cache.RunCache, m *metrics.Metrics, cfg cliparse.Config) *RunsHandler {
	if c == nil {
		c = cache.Noop{}
	}
	return &RunsHandler{store: s, cache: c, metrics: m, cfg: cfg}
}

// ListRuns handles GET /runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxListLimit {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list runs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ListRunsResponse{Runs: runs})
}

// GetRun handles GET /runs/{id}
// Returns the full snapshot, read through the cache
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "run id is required")
		return
	}

	snap, err := h.loadRun(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}

// GetAreas handles GET /runs/{id}/areas
func (h *RunsHandler) GetAreas(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	areas, err := h.store.GetAreaEstimates(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, areas)
}

// GetArea handles GET /runs/{id}/areas/{code}
func (h *RunsHandler) GetArea(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	code := r.PathValue("code")

	area, err := h.store.GetAreaEstimate(r.Context(), runID, code)
	if err != nil {
		h.storeError(w, err, runID)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, area)
}

// ValidateRun handles POST /runs/{id}/validation
// Scores the stored point estimates against the supplied observed shares.
// Nothing is persisted.
func (h *RunsHandler) ValidateRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	var req models.ValidateRunRequest
	if err := middleware.ParseJSONBody(w, r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Observed) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "observed shares are required")
		return
	}
	for code, share := range req.Observed {
		if math.IsNaN(share) || share < 0 || share > 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "observed share for "+code+" must be in [0, 1]")
			return
		}
	}

	snap, err := h.loadRun(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID)
		return
	}

	report, err := validate.Validate(snap.Estimate.PointEstimates(), req.Observed)
	if err != nil {
		if isEstimationError(err) {
			middleware.ErrorResponse(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("failed to validate run", "run_id", runID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Validation failed")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, report)
}

// DeleteRun handles DELETE /runs/{id}
// Requires the X-Run-Key header issued when the run was stored
func (h *RunsHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	runKey := r.Header.Get("X-Run-Key")
	if err := auth.ValidateRunKey(runID, runKey, h.cfg.RunKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid run key")
		return
	}

	if err := h.store.DeleteRun(r.Context(), runID); err != nil {
		h.storeError(w, err, runID)
		return
	}
	if err := h.cache.Delete(r.Context(), runID); err != nil {
		slog.Warn("failed to invalidate cached run", "run_id", runID, "error", err)
	}

	slog.Info("run deleted", "run_id", runID)
	middleware.JSONResponse(w, http.StatusOK, models.DeleteRunResponse{
		RunID:   runID,
		Message: "Run deleted",
	})
}

// loadRun reads a snapshot from the cache, falling back to the store.
// Cache failures are logged and never fail the request.
func (h *RunsHandler) loadRun(ctx context.Context, runID string) (*models.RunSnapshot, error) {
	snap, ok, err := h.cache.Get(ctx, runID)
	switch {
	case err != nil:
		h.metrics.RecordCacheLookup("error")
		slog.Warn("cache lookup failed", "run_id", runID, "error", err)
	case ok:
		h.metrics.RecordCacheLookup("hit")
		return snap, nil
	default:
		h.metrics.RecordCacheLookup("miss")
	}

	snap, err = h.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if err := h.cache.Set(ctx, snap); err != nil {
		slog.Warn("failed to cache run", "run_id", runID, "error", err)
	}
	return snap, nil
}

func (h *RunsHandler) storeError(w http.ResponseWriter, err error, runID string) {
	switch {
	case errors.Is(err, store.ErrRunNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Run not found")
	case errors.Is(err, store.ErrAreaNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "Area not found")
	default:
		slog.Error("failed to query run", "run_id", runID, "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
	}
}

// isEstimationError reports errors caused by the data rather than the server
func isEstimationError(err error) bool {
	return errors.Is(err, mrperr.ErrEncoding) ||
		errors.Is(err, mrperr.ErrConvergence) ||
		errors.Is(err, mrperr.ErrInsufficientDraws) ||
		errors.Is(err, mrperr.ErrDimensionMismatch) ||
		errors.Is(err, mrperr.ErrUndefinedAggregate)
}
