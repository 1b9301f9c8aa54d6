package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced; registration
// stays open. sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Published tiers.
		r.Get("/tiers/shared", h.GetSharedTier)
		r.Post("/tiers/shared", h.SaveSharedTier)
		r.Delete("/tiers/shared", h.DeleteSharedTier)

		// Per-user tiers.
		r.Post("/users/sync", h.SyncUser)
		r.Route("/users/{userId}/tiers", func(r chi.Router) {
			r.Get("/", h.ListUserTiers)
			r.Post("/", h.SaveUserTiers)
			r.Post("/order", h.UpdateTierOrder)
			r.Delete("/{tierId}", h.DeleteUserTier)
		})

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}

// MountHealth adds the unauthenticated health endpoints to r.
func MountHealth(r chi.Router, svc *Service) {
	h := NewHandler(svc)
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.HealthReady)
	r.Get("/health/db", h.HealthDB)
}
