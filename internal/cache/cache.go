// Package cache implements the local tier cache: the per-device copy of the user's board
// that every mutation is written to before anything is sent to the remote store.
package cache

import (
	"fmt"

	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
)

// Store is the local cache contract. Load never fails: unreadable or malformed
// data is reported as an empty board. Save replaces the whole board.
type Store interface {
	Load() []models.Tier
	Save(tiers []models.Tier) error
}

// DefaultTiers returns the empty tiers a fresh cache is seeded with.
func DefaultTiers() []models.Tier {
	tiers := make([]models.Tier, 0, models.DefaultTierCount)
	for i := 0; i < models.DefaultTierCount; i++ {
		tiers = append(tiers, models.Tier{
			ID:        fmt.Sprintf("tier-%d", i),
			Name:      "",
			ShareCode: sharecode.New(),
			Pads:      []models.Pad{},
			Position:  i,
		})
	}
	return tiers
}
