// Package testutil provides shared test helpers for setting up tier stores and local caches.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/octopad/internal/cache"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/tierstore"
)

// TestStore creates a temporary SQLite-backed tier store that is automatically cleaned up.
func TestStore(t *testing.T) *tierstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "octopad-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := tierstore.Open(context.Background(), tierstore.DriverSQLite, dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCache creates a file-backed local cache in a temp dir, optionally pre-seeded with tiers.
func TestCache(t *testing.T, seed []models.Tier) *cache.File {
	t.Helper()
	f, err := cache.NewFile(filepath.Join(t.TempDir(), "tiers.json"))
	if err != nil {
		t.Fatal(err)
	}
	if seed != nil {
		if err := f.Save(seed); err != nil {
			t.Fatal(err)
		}
	}
	return f
}
