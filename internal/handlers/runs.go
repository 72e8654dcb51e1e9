package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stanstork/mapscrape-api/internal/authz"
	"github.com/stanstork/mapscrape-api/internal/repository"
)

type RunHandler struct {
	repo   repository.RunRepository
	logger zerolog.Logger
}

func NewRunHandler(repo repository.RunRepository, logger zerolog.Logger) *RunHandler {
	return &RunHandler{
		repo:   repo,
		logger: logger.With().Str("component", "run_handler").Logger(),
	}
}

func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}

	// parse query params with defaults
	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	runs, err := h.repo.List(r.Context(), tid, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}

	rec, err := h.repo.Get(r.Context(), tid, mux.Vars(r)["runID"])
	if errors.Is(err, repository.ErrRunRecordNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to get run: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *RunHandler) ListBatchRuns(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}

	runs, err := h.repo.ListByBatch(r.Context(), tid, mux.Vars(r)["batchID"])
	if err != nil {
		http.Error(w, "Failed to list batch runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunHandler) GetRunStats(w http.ResponseWriter, r *http.Request) {
	tid, ok := authz.TenantIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing tenant", http.StatusUnauthorized)
		return
	}

	days := 31 // default to 31 days
	if d := r.URL.Query().Get("days"); d != "" {
		if v, err := strconv.Atoi(d); err == nil && v > 0 {
			days = v
		}
	}

	stats, err := h.repo.Stats(r.Context(), tid, days)
	if err != nil {
		http.Error(w, "Failed to get run stats: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
