package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter wires the metrics endpoints
func NewRouter(repo MetricsRepository, allowedOrigins []string) http.Handler {
	h := NewMetricsHandler(repo)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", h.Health)
	r.Get("/api/metrics", h.GetMetrics)
	r.Get("/api/metrics/lines/{lineId}", h.GetLineMetrics)
	r.Get("/api/runs/latest", h.GetLatestRun)

	return r
}
