package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/octopad/internal/authpw"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// GetSharedTier handles GET /api/tiers/shared.
//
//	@Summary		Look up a published tier by share code
//	@Tags			shared
//	@Produce		json
//	@Param			code	query		string	true	"Share code (case-insensitive)"
//	@Success		200		{object}	SharedTierResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiers/shared [get]
func (h *Handler) GetSharedTier(w http.ResponseWriter, r *http.Request) {
	tier, err := h.svc.SharedTier(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		writeError(w, "get shared tier", err)
		return
	}
	writeJSON(w, http.StatusOK, SharedTierResponse{Tier: tier})
}

// SaveSharedTier handles POST /api/tiers/shared.
//
//	@Summary		Publish a tier under its share code
//	@Tags			shared
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SaveSharedTierRequest	true	"Tier to publish"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiers/shared [post]
func (h *Handler) SaveSharedTier(w http.ResponseWriter, r *http.Request) {
	var req SaveSharedTierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SaveSharedTier(r.Context(), req.UserID, req.Tier); err != nil {
		writeError(w, "save shared tier", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteSharedTier handles DELETE /api/tiers/shared.
//
//	@Summary		Unpublish a tier
//	@Tags			shared
//	@Produce		json
//	@Param			code	query		string	true	"Share code (case-insensitive)"
//	@Param			userId	query		string	false	"Owner id"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiers/shared [delete]
func (h *Handler) DeleteSharedTier(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.DeleteSharedTier(r.Context(), q.Get("userId"), q.Get("code")); err != nil {
		writeError(w, "delete shared tier", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ListUserTiers handles GET /api/users/{userId}/tiers.
//
//	@Summary		List a user's tiers ordered by position
//	@Tags			tiers
//	@Produce		json
//	@Param			userId	path		string	true	"User id"
//	@Success		200		{object}	UserTiersResponse
//	@Security		BearerAuth
//	@Router			/users/{userId}/tiers [get]
func (h *Handler) ListUserTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.svc.UserTiers(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, "list user tiers", err)
		return
	}
	writeJSON(w, http.StatusOK, UserTiersResponse{Tiers: tiers})
}

// SaveUserTiers handles POST /api/users/{userId}/tiers.
//
//	@Summary		Upsert a user's tiers by share code
//	@Tags			tiers
//	@Accept			json
//	@Produce		json
//	@Param			userId	path		string					true	"User id"
//	@Param			body	body		SaveUserTiersRequest	true	"Tiers"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/{userId}/tiers [post]
func (h *Handler) SaveUserTiers(w http.ResponseWriter, r *http.Request) {
	var req SaveUserTiersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SaveUserTiers(r.Context(), chi.URLParam(r, "userId"), req.Tiers); err != nil {
		writeError(w, "save user tiers", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// DeleteUserTier handles DELETE /api/users/{userId}/tiers/{tierId}.
// tierId may also be a share code.
//
//	@Summary		Delete one of a user's tiers
//	@Tags			tiers
//	@Produce		json
//	@Param			userId	path		string	true	"User id"
//	@Param			tierId	path		string	true	"Tier id or share code"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/{userId}/tiers/{tierId} [delete]
func (h *Handler) DeleteUserTier(w http.ResponseWriter, r *http.Request) {
	userID, tierID := chi.URLParam(r, "userId"), chi.URLParam(r, "tierId")
	if err := h.svc.DeleteUserTier(r.Context(), userID, tierID); err != nil {
		writeError(w, "delete user tier", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// UpdateTierOrder handles POST /api/users/{userId}/tiers/order.
//
//	@Summary		Rewrite tier positions in the given order
//	@Tags			tiers
//	@Accept			json
//	@Produce		json
//	@Param			userId	path		string				true	"User id"
//	@Param			body	body		TierOrderRequest	true	"Ordered tier ids"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/{userId}/tiers/order [post]
func (h *Handler) UpdateTierOrder(w http.ResponseWriter, r *http.Request) {
	var req TierOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.UpdateTierOrder(r.Context(), chi.URLParam(r, "userId"), req.TierIDs); err != nil {
		writeError(w, "update tier order", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// SyncUser handles POST /api/users/sync.
//
//	@Summary		Upsert a user profile and optionally their tiers
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SyncUserRequest	true	"Profile and tiers"
//	@Success		200		{object}	SuccessResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/users/sync [post]
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req SyncUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SyncUser(r.Context(), req); err != nil {
		writeError(w, "sync user", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Register handles POST /api/auth/register.
//
//	@Summary		Create an email/password account
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		authpw.RegisterRequest	true	"Account"
//	@Success		200		{object}	RegisterResponse
//	@Failure		400		{object}	errResponse
//	@Router			/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req authpw.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, RegisterResponse{Success: true, UserID: userID})
}

// HealthDB handles GET /health/db.
//
//	@Summary		Report the tier store driver and reachability
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthDBResponse
//	@Failure		503	{object}	HealthDBResponse
//	@Router			/health/db [get]
func (h *Handler) HealthDB(w http.ResponseWriter, r *http.Request) {
	driver, err := h.svc.Health(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthDBResponse{Status: "error", Driver: driver, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthDBResponse{Status: "ok", Driver: driver})
}

// HealthReady handles GET /health/ready.
//
//	@Summary		Readiness probe backed by a tier store ping
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	map[string]string
//	@Router			/health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
