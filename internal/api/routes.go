package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts every route on a chi router.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Route("/api/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Get("/stats/overview", h.jobStats)
		r.Post("/update-expired", h.updateExpired)
		r.Get("/{id}", h.getJob)
		r.Patch("/{id}/deactivate", h.deactivateJob)
	})

	r.Route("/api/sources", func(r chi.Router) {
		r.Get("/", h.listSources)
		r.Get("/{id}", h.getSource)
		r.Get("/{id}/stats", h.sourceStats)
		r.Patch("/{id}/toggle", h.toggleSource)
	})

	r.Route("/api/scraper", func(r chi.Router) {
		r.Post("/all", h.scrapeAll)
		r.Post("/source/{sourceId}", h.scrapeSource)
		r.Get("/logs", h.listLogs)
		r.Get("/logs/{sourceId}", h.listSourceLogs)
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"requestId", middleware.GetReqID(r.Context()),
			)
		})
	}
}
