// Package api implements the HTTP JSON API of the ingestion service.
//
// Routes:
//
//	GET   /health
//	GET   /api/jobs                       → list postings (sweeps expired first)
//	GET   /api/jobs/stats/overview        → posting totals
//	GET   /api/jobs/{id}                  → one posting
//	PATCH /api/jobs/{id}/deactivate       → mark a posting inactive
//	POST  /api/jobs/update-expired        → run the expiration sweep
//	GET   /api/sources                    → list sources
//	GET   /api/sources/{id}               → one source
//	GET   /api/sources/{id}/stats         → per-source totals and last run
//	PATCH /api/sources/{id}/toggle        → {"enabled": bool}
//	POST  /api/scraper/all                → start a full run in the background
//	POST  /api/scraper/source/{sourceId}  → run one source and wait
//	GET   /api/scraper/logs               → recent run logs
//	GET   /api/scraper/logs/{sourceId}    → run logs of one source
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"jobtracker/ingestion-service/internal/catalog"
	"jobtracker/ingestion-service/internal/model"
	"jobtracker/ingestion-service/internal/scheduler"
)

// Runs starts ingestion runs. *scheduler.Scheduler satisfies it.
type Runs interface {
	TriggerAll() bool
	RunSource(ctx context.Context, sourceID string) (model.RunOutcome, error)
	Running() bool
}

// envelope is the JSON shape of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Handler holds shared dependencies.
type Handler struct {
	catalog *catalog.Service
	runs    Runs
	logger  *slog.Logger
}

// NewHandler returns a configured Handler.
func NewHandler(c *catalog.Service, runs Runs, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{catalog: c, runs: runs, logger: logger}
}

// ─── Health ──────────────────────────────────────────────────────────────────

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "ingestion-service",
		"running": h.runs.Running(),
	})
}

// ─── Jobs ────────────────────────────────────────────────────────────────────

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.PostingFilter{
		SourceID: q.Get("source_id"),
		Search:   q.Get("search"),
		Location: q.Get("location"),
	}
	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			jsonError(w, "is_active must be true or false", http.StatusBadRequest)
			return
		}
		f.Active = &active
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	f.Limit = limit

	jobs, err := h.catalog.ListPostings(r.Context(), f)
	if err != nil {
		h.serviceError(w, err, "Job not found")
		return
	}
	jsonList(w, jobs, len(jobs))
}

func (h *Handler) jobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.PostingStats(r.Context())
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	jsonOK(w, stats)
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	job, err := h.catalog.GetPosting(r.Context(), id)
	if err != nil {
		h.serviceError(w, err, "Job not found")
		return
	}
	jsonOK(w, job)
}

func (h *Handler) deactivateJob(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeactivatePosting(r.Context(), id); err != nil {
		h.serviceError(w, err, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "Job marked as inactive"})
}

func (h *Handler) updateExpired(w http.ResponseWriter, r *http.Request) {
	n, err := h.catalog.SweepExpired(r.Context())
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: fmt.Sprintf("%d job(s) marked as inactive due to expired closing date", n),
		Count:   &n,
	})
}

// ─── Sources ─────────────────────────────────────────────────────────────────

func (h *Handler) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.catalog.ListSources(r.Context())
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	jsonList(w, sources, len(sources))
}

func (h *Handler) getSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.catalog.GetSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err, "Source not found")
		return
	}
	jsonOK(w, src)
}

func (h *Handler) sourceStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.SourceStats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err, "Source not found")
		return
	}
	jsonOK(w, stats)
}

func (h *Handler) toggleSource(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		jsonError(w, `body must be {"enabled": true|false}`, http.StatusBadRequest)
		return
	}
	src, err := h.catalog.ToggleSource(r.Context(), chi.URLParam(r, "id"), *body.Enabled)
	if err != nil {
		h.serviceError(w, err, "Source not found")
		return
	}
	state := "disabled"
	if src.Enabled {
		state = "enabled"
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: src, Message: "Source " + state})
}

// ─── Scraper ─────────────────────────────────────────────────────────────────

func (h *Handler) scrapeAll(w http.ResponseWriter, r *http.Request) {
	if !h.runs.TriggerAll() {
		jsonError(w, scheduler.ErrRunInProgress.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, envelope{Success: true, Message: "Scraping started in the background"})
}

func (h *Handler) scrapeSource(w http.ResponseWriter, r *http.Request) {
	out, err := h.runs.RunSource(r.Context(), chi.URLParam(r, "sourceId"))
	if errors.Is(err, scheduler.ErrRunInProgress) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: out.Success, Data: out, Error: out.Error})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	logs, err := h.catalog.ListRecentRunLogs(r.Context(), limit)
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	jsonList(w, logs, len(logs))
}

func (h *Handler) listSourceLogs(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	logs, err := h.catalog.ListRunLogsForSource(r.Context(), chi.URLParam(r, "sourceId"), limit)
	if err != nil {
		h.serviceError(w, err, "")
		return
	}
	jsonList(w, logs, len(logs))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// serviceError maps catalog errors onto status codes.
func (h *Handler) serviceError(w http.ResponseWriter, err error, notFoundMsg string) {
	var ve *catalog.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, catalog.ErrNotFound):
		if notFoundMsg == "" {
			notFoundMsg = "not found"
		}
		jsonError(w, notFoundMsg, http.StatusNotFound)
	default:
		h.logger.Error("request failed", "err", err)
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		jsonError(w, "id must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		jsonError(w, key+" must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return n, true
}

func jsonOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: v})
}

func jsonList(w http.ResponseWriter, v any, n int) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: v, Count: &n})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, envelope{Success: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
