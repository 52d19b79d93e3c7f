/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the HR frontend

ROUTE GROUPS:
  /api/tardiness/*      Pipeline entry point
  /api/employees/*      Per-employee read endpoints
  /api/rules/*          Read-only rule listings
  /healthz              Liveness
  /metrics              Prometheus

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/tardiness", func(r chi.Router) {
			r.Post("/process", h.ProcessTardiness)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/tardiness/stats", h.GetMonthlyStats)
			r.Get("/{id}/disciplinary", h.GetDisciplinaryHistory)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/tardiness", h.ListTardinessRules)
			r.Get("/disciplinary", h.ListDisciplinaryRules)
		})
	})

	// Operational endpoints
	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", h.Metrics.Handler())

	return r
}
