package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
)

// Resolver finds tiers by share code and imports copies of them.
type Resolver struct {
	c *Coordinator
}

// NewResolver returns a resolver working on c's cache and remote.
func NewResolver(c *Coordinator) *Resolver {
	return &Resolver{c: c}
}

// Resolve looks code up in the local cache, then in the remote shared tiers.
// The first match wins. A remote failure is reported as not found.
func (r *Resolver) Resolve(ctx context.Context, code string) (models.Tier, error) {
	code = sharecode.Normalize(code)
	if code == "" {
		return models.Tier{}, apperr.Invalid("code", "share code is required")
	}

	for _, t := range r.c.Tiers() {
		if sharecode.Normalize(t.ShareCode) == code {
			return t, nil
		}
	}

	if r.c.remote == nil {
		return models.Tier{}, fmt.Errorf("share code %s: %w", code, apperr.ErrNotFound)
	}
	t, err := r.c.remote.SharedTier(ctx, code)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			r.c.logger.Warn("resolve: remote lookup failed",
				slog.String("code", code), slog.String("error", err.Error()))
		}
		return models.Tier{}, fmt.Errorf("share code %s: %w", code, apperr.ErrNotFound)
	}
	return t, nil
}

// Import resolves code and appends a deep copy to the local board. The copy
// gets a new tier id, a share code different from the source's, and new pad
// ids; pad attributes and slots are kept. Named copies are scheduled for a
// remote upsert.
func (r *Resolver) Import(ctx context.Context, userID, code string) (models.Tier, error) {
	src, err := r.Resolve(ctx, code)
	if err != nil {
		return models.Tier{}, err
	}

	c := r.c
	c.mu.Lock()
	tiers := c.load()
	taken := make(map[string]bool, len(tiers))
	codes := make([]string, 0, len(tiers)+1)
	codes = append(codes, src.ShareCode)
	for _, t := range tiers {
		taken[t.ID] = true
		codes = append(codes, t.ShareCode)
	}

	ms := c.now().UnixMilli()
	cp := src.Clone()
	cp.ID = c.newTierID(taken)
	cp.ShareCode = sharecode.NewExcept(codes...)
	cp.Position = len(tiers)
	if cp.Pads == nil {
		cp.Pads = []models.Pad{}
	}
	for i := range cp.Pads {
		cp.Pads[i].ID = fmt.Sprintf("%s-%d-%d", src.Pads[i].ID, ms, i)
		cp.Pads[i].TierID = cp.ID
	}

	tiers = append(tiers, cp)
	if err := c.local.Save(tiers); err != nil {
		c.mu.Unlock()
		return models.Tier{}, fmt.Errorf("syncer: save local cache: %w", err)
	}
	c.mu.Unlock()

	c.logger.Info("tier imported",
		slog.String("source_code", src.ShareCode), slog.String("tier_id", cp.ID), slog.String("share_code", cp.ShareCode))
	if cp.Synced() {
		c.scheduleUpsert(userID, cp, tiers)
	}
	return cp.Clone(), nil
}
