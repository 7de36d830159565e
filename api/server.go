/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/projects/*       Members, work time, requirements, summary
  /api/requirements/*   Requirement update/delete by id
  /api/admin/*          Reconciliation
  /healthz              Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", actorHeader},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Project routes
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/summary", h.GetProjectSummary)

			r.Route("/members", func(r chi.Router) {
				r.Post("/", h.AddMember)
				r.Post("/{userID}/work-status", h.ApplyWorkStatus)
				r.Get("/{userID}/work-time", h.GetWorkTime)
			})

			r.Route("/requirements", func(r chi.Router) {
				r.Get("/", h.ListRequirements)
				r.Post("/", h.CreateRequirement)
			})
		})

		// Requirement routes (addressed by requirement id)
		r.Route("/requirements", func(r chi.Router) {
			r.Put("/{id}", h.UpdateRequirement)
			r.Delete("/{id}", h.DeleteRequirement)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/projects/{projectID}/reconcile", h.Reconcile)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
