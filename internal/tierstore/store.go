// Package tierstore is the remote tier store: users, per-user tiers and tiers
// published under a share code. DB is the relational implementation; Memory is
// the development fallback used when no database is configured.
package tierstore

import (
	"context"

	"github.com/starford/octopad/internal/models"
)

// Store is the server-side persistence contract.
type Store interface {
	// UserTiers returns the user's tiers ordered by position. Unknown users have none.
	UserTiers(ctx context.Context, userID string) ([]models.Tier, error)
	// SaveUserTiers upserts each tier that carries a share code, keyed by (user, share code).
	SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error
	// DeleteUserTier removes the user's tier whose id or share code equals key.
	DeleteUserTier(ctx context.Context, userID, key string) error
	// UpdateTierOrder sets position i on the user's tier tierIDs[i].
	UpdateTierOrder(ctx context.Context, userID string, tierIDs []string) error

	// SharedTier looks a published tier up by share code (case-insensitive).
	SharedTier(ctx context.Context, code string) (models.Tier, error)
	// SaveSharedTier upserts a published tier keyed by share code. ownerID may be empty.
	SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error
	// DeleteSharedTier removes a published tier.
	DeleteSharedTier(ctx context.Context, ownerID, code string) error

	// SyncUser upserts a user profile and, when tiers is non-nil, the user's tiers.
	SyncUser(ctx context.Context, user models.User, tiers []models.Tier) error
	CreateUser(ctx context.Context, user models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)

	// Driver names the backing implementation ("sqlite", "postgres", "memory").
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*DB)(nil)
	_ Store = (*Memory)(nil)
)
