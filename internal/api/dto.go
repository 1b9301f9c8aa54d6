package api

import "github.com/starford/octopad/internal/models"

// Tier is the wire shape of a tier (aliased from the domain layer).
type Tier = models.Tier

// Pad is the wire shape of a pad (aliased from the domain layer).
type Pad = models.Pad

// SuccessResponse acknowledges a write.
type SuccessResponse struct {
	Success bool `json:"success" example:"true" validate:"required"`
}

// SharedTierResponse wraps a published tier.
type SharedTierResponse struct {
	Tier Tier `json:"tier" validate:"required"`
}

// SaveSharedTierRequest is the request body for publishing a tier.
type SaveSharedTierRequest struct {
	Tier   Tier   `json:"tier" validate:"required"`
	UserID string `json:"userId,omitempty" example:"2f0c5a8e-..."`
}

// UserTiersResponse wraps a user's tiers ordered by position.
type UserTiersResponse struct {
	Tiers []Tier `json:"tiers" validate:"required"`
}

// SaveUserTiersRequest is the request body for upserting a user's tiers.
type SaveUserTiersRequest struct {
	Tiers []Tier `json:"tiers" validate:"required"`
}

// TierOrderRequest lists tier ids in their new order.
type TierOrderRequest struct {
	TierIDs []string `json:"tierIds" example:"tier-2,tier-0" validate:"required"`
}

// SyncUserRequest upserts a profile and optionally the user's tiers.
// A nil Tiers leaves the stored tiers untouched.
type SyncUserRequest struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	Image  string `json:"image,omitempty"`
	Tiers  []Tier `json:"tiers,omitempty"`
}

// RegisterResponse is returned after a successful registration.
type RegisterResponse struct {
	Success bool   `json:"success" example:"true" validate:"required"`
	UserID  string `json:"userId" validate:"required"`
}

// HealthDBResponse reports the tier store backend.
type HealthDBResponse struct {
	Status string `json:"status" example:"ok" validate:"required"`
	Driver string `json:"driver" example:"sqlite" validate:"required"`
	Error  string `json:"error,omitempty"`
}
