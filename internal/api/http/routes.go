package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps groups what the HTTP layer needs from the rest of the service.
type RouterDeps struct {
	Ingest IngestServiceI
	Active ActiveJobProvider
	Failed FailedJobsReader
	// IngestRateLimit is the number of job submissions allowed per client IP
	// per minute. Zero disables the limit.
	IngestRateLimit int
}

// NewRouter creates a new HTTP router with configured routes, middleware, and handlers.
// It sets up job routes, health check, and Prometheus metrics endpoint.
func NewRouter(deps RouterDeps, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	jobHandler := NewJobHandler(deps.Ingest, deps.Active, deps.Failed, logger)

	r.Route("/jobs", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.IngestRateLimit > 0 {
				r.Use(httprate.LimitByIP(deps.IngestRateLimit, time.Minute))
			}
			r.Post("/", jobHandler.CreateJob)
		})
		r.Get("/", jobHandler.ListJobs)
		r.Get("/failed", jobHandler.ListFailed)
		r.Get("/failed/{jobID}", jobHandler.GetFailed)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
