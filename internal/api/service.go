package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/authpw"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
	"github.com/starford/octopad/internal/tierstore"
)

// Publisher receives a notification after every successful write.
type Publisher interface {
	TierUpdated(userID, tierID, shareCode string)
	TierDeleted(userID, key string)
	TiersReordered(userID string, tierIDs []string)
}

type nopPublisher struct{}

func (nopPublisher) TierUpdated(string, string, string) {}
func (nopPublisher) TierDeleted(string, string)         {}
func (nopPublisher) TiersReordered(string, []string)    {}

// Service validates requests, writes them to the tier store and announces the changes.
type Service struct {
	store  tierstore.Store
	auth   *authpw.Service
	events Publisher
}

// NewService creates a new API service. events may be nil.
func NewService(store tierstore.Store, events Publisher) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	return &Service{store: store, auth: authpw.NewService(store), events: events}
}

// SharedTier looks up a published tier.
func (s *Service) SharedTier(ctx context.Context, code string) (models.Tier, error) {
	code = sharecode.Normalize(code)
	if code == "" {
		return models.Tier{}, apperr.Invalid("code", "share code is required")
	}
	return s.store.SharedTier(ctx, code)
}

// SaveSharedTier publishes a tier under its share code.
func (s *Service) SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error {
	if err := validateTier(tier); err != nil {
		return err
	}
	if err := s.store.SaveSharedTier(ctx, ownerID, tier); err != nil {
		return err
	}
	s.events.TierUpdated(ownerID, tier.ID, sharecode.Normalize(tier.ShareCode))
	return nil
}

// DeleteSharedTier removes a published tier.
func (s *Service) DeleteSharedTier(ctx context.Context, ownerID, code string) error {
	code = sharecode.Normalize(code)
	if code == "" {
		return apperr.Invalid("code", "share code is required")
	}
	if err := s.store.DeleteSharedTier(ctx, ownerID, code); err != nil {
		return err
	}
	s.events.TierDeleted(ownerID, code)
	return nil
}

// UserTiers lists a user's tiers ordered by position.
func (s *Service) UserTiers(ctx context.Context, userID string) ([]models.Tier, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("userId", "user id is required")
	}
	return s.store.UserTiers(ctx, userID)
}

// SaveUserTiers upserts each tier by (user, share code).
func (s *Service) SaveUserTiers(ctx context.Context, userID string, tiers []models.Tier) error {
	if strings.TrimSpace(userID) == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	for i, tier := range tiers {
		if err := validateTier(tier); err != nil {
			return prefixFields(err, fmt.Sprintf("tiers[%d].", i))
		}
	}
	if err := s.store.SaveUserTiers(ctx, userID, tiers); err != nil {
		return err
	}
	for _, tier := range tiers {
		s.events.TierUpdated(userID, tier.ID, sharecode.Normalize(tier.ShareCode))
	}
	return nil
}

// DeleteUserTier removes one of the user's tiers by id or share code, along
// with the shared row the user published under that code.
func (s *Service) DeleteUserTier(ctx context.Context, userID, key string) error {
	if strings.TrimSpace(key) == "" {
		return apperr.Invalid("tierId", "tier id is required")
	}
	var code string
	if tiers, err := s.store.UserTiers(ctx, userID); err == nil {
		for _, t := range tiers {
			if t.ID == key || t.ShareCode == sharecode.Normalize(key) {
				code = t.ShareCode
				break
			}
		}
	}
	if err := s.store.DeleteUserTier(ctx, userID, key); err != nil {
		return err
	}
	if code != "" {
		if err := s.store.DeleteSharedTier(ctx, userID, code); err != nil {
			return err
		}
	}
	s.events.TierDeleted(userID, key)
	return nil
}

// UpdateTierOrder sets positions 0..n-1 on the listed tiers.
func (s *Service) UpdateTierOrder(ctx context.Context, userID string, tierIDs []string) error {
	if tierIDs == nil {
		return apperr.Invalid("tierIds", "tier ids are required")
	}
	seen := make(map[string]bool, len(tierIDs))
	for _, id := range tierIDs {
		if seen[id] {
			return apperr.Invalid("tierIds", fmt.Sprintf("tier id %q listed twice", id))
		}
		seen[id] = true
	}
	if err := s.store.UpdateTierOrder(ctx, userID, tierIDs); err != nil {
		return err
	}
	s.events.TiersReordered(userID, tierIDs)
	return nil
}

// SyncUser upserts a profile and, when given, the user's tiers.
func (s *Service) SyncUser(ctx context.Context, req SyncUserRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	for i, tier := range req.Tiers {
		if err := validateTier(tier); err != nil {
			return prefixFields(err, fmt.Sprintf("tiers[%d].", i))
		}
	}
	user := models.User{ID: req.UserID, Email: req.Email, Name: req.Name, Image: req.Image}
	if err := s.store.SyncUser(ctx, user, req.Tiers); err != nil {
		return err
	}
	for _, tier := range req.Tiers {
		s.events.TierUpdated(req.UserID, tier.ID, sharecode.Normalize(tier.ShareCode))
	}
	return nil
}

// Register creates an account.
func (s *Service) Register(ctx context.Context, req authpw.RegisterRequest) (string, error) {
	return s.auth.Register(ctx, req)
}

// Health pings the store and reports its driver.
func (s *Service) Health(ctx context.Context) (string, error) {
	return s.store.Driver(), s.store.Ping(ctx)
}

func validateTier(tier models.Tier) error {
	if sharecode.Normalize(tier.ShareCode) == "" {
		return apperr.Invalid("shareCode", "share code is required")
	}
	return tier.Validate()
}

// prefixFields qualifies validation field names with prefix.
func prefixFields(err error, prefix string) error {
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) {
		return err
	}
	out := &apperr.ValidationError{Fields: make(map[string]string, len(verr.Fields))}
	for k, v := range verr.Fields {
		out.Fields[prefix+k] = v
	}
	return out
}
