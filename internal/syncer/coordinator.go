// Package syncer keeps the local tier cache and the remote tier store in step.
//
// Every change is written to the local cache first and only then handed to a
// Dispatcher for best-effort propagation, so local state is never older than
// remote state. Remote failures are logged and never returned to callers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/cache"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
)

// Remote is the part of the remote tier store the coordinator talks to.
// tierstore.Store implementations and the HTTP client both satisfy it.
type Remote interface {
	UserTiers(ctx context.Context, userID string) ([]models.Tier, error)
	SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error
	DeleteUserTier(ctx context.Context, userID, key string) error
	UpdateTierOrder(ctx context.Context, userID string, tierIDs []string) error
	SharedTier(ctx context.Context, code string) (models.Tier, error)
	SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error
	DeleteSharedTier(ctx context.Context, ownerID, code string) error
}

// Coordinator owns the read-modify-write cycle on the local cache.
// A nil Remote runs it in local-only mode.
type Coordinator struct {
	mu     sync.Mutex
	local  cache.Store
	remote Remote
	tasks  *Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

// NewCoordinator wires a coordinator. remote may be nil.
func NewCoordinator(local cache.Store, remote Remote, tasks *Dispatcher, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if tasks == nil {
		tasks = NewDispatcher(logger, 0)
	}
	return &Coordinator{
		local:  local,
		remote: remote,
		tasks:  tasks,
		logger: logger,
		now:    time.Now,
	}
}

// Connected reports whether a remote store is configured.
func (c *Coordinator) Connected() bool {
	return c.remote != nil
}

// Tiers returns the local board ordered by position.
func (c *Coordinator) Tiers() []models.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load()
}

// Tier returns one local tier by id.
func (c *Coordinator) Tier(tierID string) (models.Tier, error) {
	for _, t := range c.Tiers() {
		if t.ID == tierID {
			return t, nil
		}
	}
	return models.Tier{}, fmt.Errorf("tier %s: %w", tierID, apperr.ErrNotFound)
}

// Grid returns a tier's pads laid out by slot.
func (c *Coordinator) Grid(tierID string) ([models.PadsPerTier]*models.Pad, error) {
	t, err := c.Tier(tierID)
	if err != nil {
		return [models.PadsPerTier]*models.Pad{}, err
	}
	return t.Grid(), nil
}

// Reconcile merges the user's remote tiers with the local cache. Remote tiers
// come first in their stored order, followed by local tiers whose share code
// the remote set does not know. The merged board is written back to the cache.
// When the remote read fails the local board is returned unchanged.
func (c *Coordinator) Reconcile(ctx context.Context, userID string) []models.Tier {
	if c.remote == nil || userID == "" {
		return c.Tiers()
	}
	remote, err := c.remote.UserTiers(ctx, userID)
	if err != nil {
		c.logger.Warn("reconcile: remote read failed, keeping local board",
			slog.String("user_id", userID), slog.String("error", err.Error()))
		return c.Tiers()
	}

	c.mu.Lock()
	merged, retagged := mergeTiers(remote, c.load(), c.newTierID)
	if err := c.local.Save(merged); err != nil {
		c.logger.Error("reconcile: save local cache", slog.String("error", err.Error()))
	}
	c.mu.Unlock()

	c.logger.Info("reconcile: done",
		slog.String("user_id", userID), slog.Int("remote", len(remote)), slog.Int("total", len(merged)))
	if retagged {
		c.scheduleBoard(userID, merged)
	}
	return models.CloneTiers(merged)
}

// mergeTiers implements the reconcile ordering. A tier whose id is already
// on the merged board gets a fresh id, so ids stay unique. retagged reports
// whether a remote tier was renamed that way.
func mergeTiers(remote, local []models.Tier, newID func(taken map[string]bool) string) (merged []models.Tier, retagged bool) {
	remote = models.CloneTiers(remote)
	sortByPosition(remote)

	known := make(map[string]bool, len(remote))
	taken := make(map[string]bool, len(remote)+len(local))
	merged = make([]models.Tier, 0, len(remote)+len(local))
	for _, t := range remote {
		known[sharecode.Normalize(t.ShareCode)] = true
		if taken[t.ID] {
			t = retag(t, newID(taken))
			retagged = true
		}
		taken[t.ID] = true
		merged = append(merged, t)
	}

	for _, t := range local {
		if known[sharecode.Normalize(t.ShareCode)] {
			continue
		}
		if taken[t.ID] {
			t = retag(t, newID(taken))
		}
		taken[t.ID] = true
		merged = append(merged, t)
	}
	return Renumber(merged), retagged
}

// Mutate applies m to the tier and saves the board before returning. Named
// tiers are then scheduled for a remote upsert.
func (c *Coordinator) Mutate(ctx context.Context, userID, tierID string, m Mutation) (models.Tier, error) {
	c.mu.Lock()
	tiers := c.load()
	idx := indexOf(tiers, tierID)
	if idx < 0 {
		c.mu.Unlock()
		return models.Tier{}, fmt.Errorf("tier %s: %w", tierID, apperr.ErrNotFound)
	}
	t := tiers[idx].Clone()
	if err := m.apply(&t); err != nil {
		c.mu.Unlock()
		return models.Tier{}, err
	}
	if err := t.Validate(); err != nil {
		c.mu.Unlock()
		return models.Tier{}, err
	}
	tiers[idx] = t
	if err := c.local.Save(tiers); err != nil {
		c.mu.Unlock()
		return models.Tier{}, fmt.Errorf("syncer: save local cache: %w", err)
	}
	c.mu.Unlock()

	c.logger.Debug("tier mutated", slog.String("tier_id", tierID), slog.String("op", m.describe()))
	if t.Synced() {
		c.scheduleUpsert(userID, t, tiers)
	}
	return t.Clone(), nil
}

// DeleteTier removes a tier locally and, when it was named, remotely.
func (c *Coordinator) DeleteTier(ctx context.Context, userID, tierID string) error {
	c.mu.Lock()
	tiers := c.load()
	idx := indexOf(tiers, tierID)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("tier %s: %w", tierID, apperr.ErrNotFound)
	}
	removed := tiers[idx]
	tiers = Renumber(append(tiers[:idx], tiers[idx+1:]...))
	if err := c.local.Save(tiers); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("syncer: save local cache: %w", err)
	}
	c.mu.Unlock()

	if !removed.Synced() || c.remote == nil {
		return nil
	}
	code := removed.ShareCode
	order := idsOf(remoteBoard(tiers))
	c.tasks.Submit("delete tier "+code, func(ctx context.Context) error {
		var errs []error
		if userID != "" {
			errs = append(errs, c.remote.DeleteUserTier(ctx, userID, code))
			if len(order) > 0 {
				errs = append(errs, c.remote.UpdateTierOrder(ctx, userID, order))
			}
		}
		errs = append(errs, c.remote.DeleteSharedTier(ctx, userID, code))
		return errors.Join(errs...)
	})
	return nil
}

// Reorder moves the listed tiers to the front in the given order and
// renumbers the board. Only named tiers are sent to the remote store.
func (c *Coordinator) Reorder(ctx context.Context, userID string, tierIDs []string) ([]models.Tier, error) {
	c.mu.Lock()
	ordered, err := ApplyOrder(c.load(), tierIDs)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.local.Save(ordered); err != nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("syncer: save local cache: %w", err)
	}
	c.mu.Unlock()

	if c.remote != nil && userID != "" {
		if named := idsOf(remoteBoard(ordered)); len(named) > 0 {
			c.tasks.Submit("reorder tiers", func(ctx context.Context) error {
				return c.remote.UpdateTierOrder(ctx, userID, named)
			})
		}
	}
	return models.CloneTiers(ordered), nil
}

// Push schedules an upsert of every named local tier.
func (c *Coordinator) Push(ctx context.Context, userID string) error {
	if c.remote == nil {
		return apperr.ErrUnconfigured
	}
	named := remoteBoard(c.Tiers())
	if len(named) == 0 {
		return nil
	}
	c.tasks.Submit("push tiers", func(ctx context.Context) error {
		var errs []error
		for _, t := range named {
			errs = append(errs, c.remote.SaveSharedTier(ctx, userID, t))
		}
		if userID != "" {
			errs = append(errs, c.remote.SaveUserTiers(ctx, userID, named))
		}
		return errors.Join(errs...)
	})
	return nil
}

// Wait blocks until background propagation submitted so far has finished.
func (c *Coordinator) Wait() {
	c.tasks.Wait()
}

// scheduleUpsert publishes t and rewrites the user's named tiers with the
// positions they have on board.
func (c *Coordinator) scheduleUpsert(userID string, t models.Tier, board []models.Tier) {
	if c.remote == nil {
		return
	}
	named := remoteBoard(board)
	c.tasks.Submit("upsert tier "+t.ShareCode, func(ctx context.Context) error {
		var errs []error
		errs = append(errs, c.remote.SaveSharedTier(ctx, userID, t))
		if userID != "" {
			errs = append(errs, c.remote.SaveUserTiers(ctx, userID, named))
		}
		return errors.Join(errs...)
	})
}

func (c *Coordinator) scheduleBoard(userID string, board []models.Tier) {
	named := remoteBoard(board)
	if c.remote == nil || userID == "" || len(named) == 0 {
		return
	}
	c.tasks.Submit("rewrite user tiers", func(ctx context.Context) error {
		return c.remote.SaveUserTiers(ctx, userID, named)
	})
}

// remoteBoard returns the named tiers of board in order, numbered 0..k-1.
// This is the layout the remote store keeps for a user.
func remoteBoard(board []models.Tier) []models.Tier {
	named := make([]models.Tier, 0, len(board))
	for _, t := range board {
		if t.Synced() {
			t = t.Clone()
			t.Position = len(named)
			named = append(named, t)
		}
	}
	return named
}

func idsOf(tiers []models.Tier) []string {
	ids := make([]string, len(tiers))
	for i, t := range tiers {
		ids[i] = t.ID
	}
	return ids
}

// load reads the cache sorted by position. Callers hold c.mu.
func (c *Coordinator) load() []models.Tier {
	tiers := c.local.Load()
	sortByPosition(tiers)
	return tiers
}

// newTierID returns tier-<unixmilli>, bumped until it is not in taken.
func (c *Coordinator) newTierID(taken map[string]bool) string {
	ms := c.now().UnixMilli()
	for {
		id := "tier-" + strconv.FormatInt(ms, 10)
		if !taken[id] {
			return id
		}
		ms++
	}
}

func indexOf(tiers []models.Tier, id string) int {
	for i, t := range tiers {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// retag gives t a new id and points its pads at it.
func retag(t models.Tier, id string) models.Tier {
	t = t.Clone()
	t.ID = id
	for i := range t.Pads {
		t.Pads[i].TierID = id
	}
	return t
}
