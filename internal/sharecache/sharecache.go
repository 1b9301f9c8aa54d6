// Package sharecache puts a Redis read-through cache in front of the shared-tier
// lookups of a tierstore.Store. Every other call passes straight through.
package sharecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
	"github.com/starford/octopad/internal/tierstore"
)

// KeyPrefix namespaces cached shared tiers.
const KeyPrefix = "octopad:shared:"

// DefaultTTL applies when the configured ttl is not positive.
const DefaultTTL = 5 * time.Minute

// Connect parses a redis:// URL and verifies the server is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// Store decorates a tierstore.Store. Redis errors never fail a request; they
// are logged and the call falls back to the inner store.
type Store struct {
	tierstore.Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ tierstore.Store = (*Store)(nil)

// New wraps inner. The returned store owns client and closes it on Close.
func New(inner tierstore.Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{Store: inner, client: client, ttl: ttl, logger: logger}
}

func key(code string) string {
	return KeyPrefix + sharecode.Normalize(code)
}

func (s *Store) SharedTier(ctx context.Context, code string) (models.Tier, error) {
	k := key(code)
	raw, err := s.client.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var tier models.Tier
		if jerr := json.Unmarshal(raw, &tier); jerr == nil {
			return tier, nil
		}
		s.logger.Warn("sharecache: dropping unreadable entry", slog.String("key", k))
		s.invalidate(ctx, code)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("sharecache: get failed", slog.String("key", k), slog.String("error", err.Error()))
	}

	tier, err := s.Store.SharedTier(ctx, code)
	if err != nil {
		return models.Tier{}, err
	}
	if data, jerr := json.Marshal(tier); jerr == nil {
		if serr := s.client.Set(ctx, k, data, s.ttl).Err(); serr != nil {
			s.logger.Warn("sharecache: set failed", slog.String("key", k), slog.String("error", serr.Error()))
		}
	}
	return tier, nil
}

func (s *Store) SaveSharedTier(ctx context.Context, ownerID string, tier models.Tier) error {
	if err := s.Store.SaveSharedTier(ctx, ownerID, tier); err != nil {
		return err
	}
	s.invalidate(ctx, tier.ShareCode)
	return nil
}

func (s *Store) DeleteSharedTier(ctx context.Context, ownerID, code string) error {
	if err := s.Store.DeleteSharedTier(ctx, ownerID, code); err != nil {
		return err
	}
	s.invalidate(ctx, code)
	return nil
}

// Ping checks the inner store; an unreachable Redis only degrades caching.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Warn("sharecache: redis unreachable", slog.String("error", err.Error()))
	}
	return s.Store.Ping(ctx)
}

func (s *Store) Close() error {
	cerr := s.client.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cerr
}

func (s *Store) invalidate(ctx context.Context, code string) {
	if err := s.client.Del(ctx, key(code)).Err(); err != nil {
		s.logger.Warn("sharecache: invalidate failed", slog.String("code", code), slog.String("error", err.Error()))
	}
}
