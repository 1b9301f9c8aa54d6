package cache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/octopad/internal/models"
)

// ChangeCallback receives the board after another process rewrote the cache file.
type ChangeCallback func(tiers []models.Tier)

const watchDebounce = 200 * time.Millisecond

// Watch observes the cache file until ctx is cancelled and calls cb after
// each external rewrite. The parent directory is watched because Save
// replaces the file by rename. Writes made through f itself are ignored.
func Watch(ctx context.Context, f *File, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(f.Path())
	if err := w.Add(dir); err != nil {
		return err
	}
	logger.Info("cache watcher: started", slog.String("path", f.Path()))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("cache watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			data, readErr := os.ReadFile(f.Path())
			if readErr != nil {
				logger.Warn("cache watcher: read failed", slog.String("error", readErr.Error()))
				continue
			}
			if f.wroteLast(data) {
				continue
			}
			logger.Debug("cache watcher: external change", slog.String("path", f.Path()))
			if cb != nil {
				cb(decode(data))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.Path() {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("cache watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
