// Package api exposes the scoring engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/retain-cli/internal/model"
	"github.com/sells-group/retain-cli/internal/monitoring"
	"github.com/sells-group/retain-cli/internal/store"
)

// Scorer is the aggregator surface the handlers drive.
type Scorer interface {
	Calculate(ctx context.Context, employeeID string, forceRefresh bool) (*model.ChurnReasoningResult, error)
	CalculateBatch(ctx context.Context, ids []string, maxParallel int, forceRefresh bool) map[string]*model.ChurnReasoningResult
}

// Store is the persistence slice the handlers read from.
type Store interface {
	ListEmployeeIDs(ctx context.Context, datasetID string) ([]string, error)
	ListResults(ctx context.Context, datasetID string, limit int) ([]model.ChurnReasoningResult, error)
	GetThresholds(ctx context.Context, datasetID string) (*model.DatasetThresholds, error)
}

// MetricsSource produces dataset health snapshots for /metrics.
type MetricsSource interface {
	Collect(ctx context.Context, datasetID string) (*monitoring.MetricsSnapshot, error)
}

// Options tunes handler behavior. Metrics is optional; when nil the
// /metrics endpoint is not registered.
type Options struct {
	MaxParallel int
	Metrics     MetricsSource
}

// Handler serves the scoring API.
type Handler struct {
	store  Store
	scorer Scorer
	cal    CalibratorRunner
	opts   Options
}

// CalibratorRunner triggers a full threshold recalibration for a
// dataset using the handler's store as the sample source.
type CalibratorRunner interface {
	RecalibrateDataset(ctx context.Context, datasetID string) error
}

// RecalibrateFunc adapts a closure to CalibratorRunner.
type RecalibrateFunc func(ctx context.Context, datasetID string) error

func (f RecalibrateFunc) RecalibrateDataset(ctx context.Context, datasetID string) error {
	return f(ctx, datasetID)
}

// New wires a Handler.
func New(st Store, scorer Scorer, cal CalibratorRunner, opts Options) *Handler {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 6
	}
	return &Handler{store: st, scorer: scorer, cal: cal, opts: opts}
}

// Routes mounts the API endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/score", h.handleScore)
	r.Post("/batch", h.handleBatch)
	r.Post("/calibrate/{dataset}", h.handleCalibrate)
	r.Get("/thresholds/{dataset}", h.handleThresholds)
	r.Get("/results/{dataset}", h.handleResults)
	if h.opts.Metrics != nil {
		r.Get("/metrics/{dataset}", h.handleMetrics)
	}
}

func (h *Handler) handleScore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EmployeeID string `json:"employee_id"`
		Force      bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "employee_id is required")
		return
	}

	res, err := h.scorer.Calculate(r.Context(), req.EmployeeID, req.Force)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "employee not found")
		return
	}
	if err != nil {
		zap.L().Error("score request failed",
			zap.String("employee_id", req.EmployeeID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "calculation failed")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dataset  string `json:"dataset"`
		Parallel int    `json:"parallel"`
		Force    bool   `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Dataset == "" {
		writeError(w, http.StatusBadRequest, "dataset is required")
		return
	}

	ids, err := h.store.ListEmployeeIDs(r.Context(), req.Dataset)
	if err != nil {
		zap.L().Error("batch list failed", zap.String("dataset", req.Dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "listing employees failed")
		return
	}

	parallel := req.Parallel
	if parallel <= 0 {
		parallel = h.opts.MaxParallel
	}

	results := h.scorer.CalculateBatch(r.Context(), ids, parallel, req.Force)

	writeJSON(w, http.StatusOK, map[string]any{
		"dataset":   req.Dataset,
		"requested": len(ids),
		"scored":    len(results),
		"results":   results,
	})
}

func (h *Handler) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	if err := h.cal.RecalibrateDataset(r.Context(), dataset); err != nil {
		zap.L().Error("calibration failed", zap.String("dataset", dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "calibration failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "calibrated", "dataset": dataset})
}

func (h *Handler) handleThresholds(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	th, err := h.store.GetThresholds(r.Context(), dataset)
	if eris.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no thresholds for dataset")
		return
	}
	if err != nil {
		zap.L().Error("thresholds lookup failed", zap.String("dataset", dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "thresholds lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, th)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	results, err := h.store.ListResults(r.Context(), dataset, limit)
	if err != nil {
		zap.L().Error("results lookup failed", zap.String("dataset", dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "results lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"dataset": dataset,
		"count":   len(results),
		"results": results,
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	dataset := chi.URLParam(r, "dataset")

	snap, err := h.opts.Metrics.Collect(r.Context(), dataset)
	if err != nil {
		zap.L().Error("metrics collection failed", zap.String("dataset", dataset), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "metrics collection failed")
		return
	}

	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
