package internal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/authpw"
	"github.com/starford/octopad/internal/cache"
	"github.com/starford/octopad/internal/client"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/syncer"
)

// Board is a local board bound to the cache file and, when a server is
// configured, to the remote tier API.
type Board struct {
	Coordinator *syncer.Coordinator
	Resolver    *syncer.Resolver
	Cache       *cache.File
	UserID      string

	client *client.Client
	tasks  *syncer.Dispatcher
	logger *slog.Logger
}

// OpenBoard builds the sync coordinator from the cache and client sections.
// Without a server URL the board runs in local-only mode.
func OpenBoard(cfg *Config, logger *slog.Logger) (*Board, error) {
	local, err := cache.NewFile(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	b := &Board{
		Cache:  local,
		UserID: cfg.Client.UserID,
		tasks:  syncer.NewDispatcher(logger, syncer.DefaultQueueSize),
		logger: logger,
	}

	var remote syncer.Remote
	if cfg.Client.ServerURL != "" {
		b.client, err = client.New(cfg.Client.ServerURL, client.WithToken(cfg.Client.Token))
		if err != nil {
			b.tasks.Close()
			return nil, fmt.Errorf("init client: %w", err)
		}
		remote = b.client
	} else {
		logger.Info("board: no server configured, running local only")
	}

	b.Coordinator = syncer.NewCoordinator(local, remote, b.tasks, logger)
	b.Resolver = syncer.NewResolver(b.Coordinator)
	return b, nil
}

// Watch pushes the board whenever another process rewrites the cache file.
// It blocks until ctx is cancelled.
func (b *Board) Watch(ctx context.Context) error {
	return cache.Watch(ctx, b.Cache, b.logger, func(tiers []models.Tier) {
		b.logger.Info("board: cache changed", slog.Int("tiers", len(tiers)))
		if err := b.Coordinator.Push(ctx, b.UserID); err != nil {
			b.logger.Warn("board: push failed", slog.String("error", err.Error()))
		}
	})
}

// Register creates an account on the configured server.
func (b *Board) Register(ctx context.Context, req authpw.RegisterRequest) (string, error) {
	if b.client == nil {
		return "", apperr.ErrUnconfigured
	}
	return b.client.Register(ctx, req)
}

// Close waits for queued remote writes to finish.
func (b *Board) Close() {
	b.tasks.Close()
}
