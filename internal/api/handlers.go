package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/maltedev/catalog-price-scraper/internal/database"
	"github.com/maltedev/catalog-price-scraper/internal/jobs"
)

const maxListLimit = 100

type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]database.RunSummary, error)
	GetRun(ctx context.Context, id uuid.UUID) (*database.RunDetail, error)
	GetRunProducts(ctx context.Context, id uuid.UUID, category string) ([]database.RunProduct, error)
}

type JobRunner interface {
	Start() (jobs.Job, error)
	Get(id string) (jobs.Job, error)
	List() []jobs.Job
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers serve the run archive and crawl jobs. runs, jobs and db may be
// nil when the matching feature is disabled.
type Handlers struct {
	runs   RunReader
	jobs   JobRunner
	db     Pinger
	logger *slog.Logger
}

func NewHandlers(runs RunReader, jobs JobRunner, db Pinger, logger *slog.Logger) *Handlers {
	return &Handlers{
		runs:   runs,
		jobs:   jobs,
		db:     db,
		logger: logger.With("component", "api"),
	}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":      "ok",
		"run_archive": h.runs != nil,
		"jobs":        h.jobs != nil,
	}

	status := http.StatusOK
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Error("database health check failed", "error", err)
			health["status"] = "error"
			health["message"] = "database unreachable"
			status = http.StatusServiceUnavailable
		}
	}

	h.respondJSON(w, status, health)
}

// ListRuns handles GET /api/v1/runs?limit=N
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run archive is disabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.GetRun(r.Context(), id)
	if errors.Is(err, database.ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run", "run_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	h.respondJSON(w, http.StatusOK, run)
}

// GetRunProducts handles GET /api/v1/runs/{runID}/products?category=NAME
func (h *Handlers) GetRunProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}

	products, err := h.runs.GetRunProducts(r.Context(), id, r.URL.Query().Get("category"))
	if errors.Is(err, database.ErrRunNotFound) {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get run products", "run_id", id, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to get products")
		return
	}

	h.respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if h.runs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run archive is disabled")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run ID")
		return uuid.Nil, false
	}
	return id, true
}

// CreateJob starts a crawl in the background.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "crawl jobs are disabled")
		return
	}

	job, err := h.jobs.Start()
	if errors.Is(err, jobs.ErrJobRunning) {
		h.respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to start job", "error", err)
		h.respondError(w, http.StatusServiceUnavailable, "failed to start job")
		return
	}

	h.respondJSON(w, http.StatusAccepted, job)
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "crawl jobs are disabled")
		return
	}

	job, err := h.jobs.Get(chi.URLParam(r, "jobID"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, "job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		h.respondError(w, http.StatusServiceUnavailable, "crawl jobs are disabled")
		return
	}

	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
