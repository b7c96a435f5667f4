/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: Structured request logging (slog)
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests for a browser frontend

ROUTE GROUPS:
  /api/login              Session
  /api/customers/{id}/*   Profile, rentals, plan
  /api/plans, /api/movies Catalog
  /api/audit/*            Invariant auditor
  /api/scenarios/*        Demo data (dev only)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/videostore/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/login", h.Login)
		r.Get("/plans", h.ListPlans)
		r.Get("/movies", h.SearchMovies)

		r.Route("/customers/{id}", func(r chi.Router) {
			r.Get("/", h.GetProfile)
			r.Get("/rentals", h.ListRentals)
			r.Post("/rentals", h.Rent)
			r.Delete("/rentals/{movieID}", h.Return)
			r.Put("/plan", h.ChoosePlan)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Get("/", h.GetAudit)
			r.Post("/run", h.RunAudit)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
