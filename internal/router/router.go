// Package router sets up all HTTP routes and middleware chains for the
// EventCraft API. Everything under /api/v1 requires an API key; the
// admin group additionally requires the admin role.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"eventcraft/internal/handlers"
	"eventcraft/internal/metrics"
	"eventcraft/internal/middleware"
)

// Deps are the collaborators the routes are built from. Limiter and
// Metrics may be nil.
type Deps struct {
	API     *handlers.API
	Keys    middleware.KeyResolver
	Limiter *middleware.RateLimiter
	Metrics *metrics.Collector
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	// Health check, no auth.
	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAPIKey(d.Keys))

		// Generation endpoints spend provider quota and are rate limited.
		r.Group(func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Middleware)
			}
			r.Post("/generations", d.API.CreateGeneration)
			r.Post("/carousels", d.API.CreateCarousel)
		})

		r.Get("/generations", d.API.ListGenerations)
		r.Get("/generations/{id}", d.API.GetGeneration)
		r.Delete("/generations/{id}", d.API.DeleteGeneration)
		r.Get("/carousels/{id}", d.API.GetCarousel)
		r.Get("/credits", d.API.Credits)
		r.Get("/providers", d.API.Providers)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/stats", d.API.Stats)
			r.Get("/providers/health", d.API.ProvidersHealth)
			r.Post("/providers/default", d.API.SetDefaultProvider)
			r.Post("/providers/{name}/reset", d.API.ResetProvider)
			r.Post("/users/{id}/credits", d.API.GrantCredits)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
