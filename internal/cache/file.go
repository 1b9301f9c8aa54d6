package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/octopad/internal/models"
)

// File is a Store persisted as a single JSON document.
type File struct {
	path string

	mu      sync.Mutex
	lastSum string
}

// NewFile creates a file-backed store at path. The parent directory is created if needed.
func NewFile(path string) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cache: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("cache: mkdir: %w", err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute path of the cache file.
func (f *File) Path() string {
	return f.path
}

// Load reads the board. A missing file is seeded with DefaultTiers.
func (f *File) Load() []models.Tier {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		tiers := DefaultTiers()
		_ = f.Save(tiers)
		return tiers
	}
	if err != nil {
		return []models.Tier{}
	}
	return decode(data)
}

// Save atomically writes content: tmp file → fsync → rename.
func (f *File) Save(tiers []models.Tier) error {
	if tiers == nil {
		tiers = []models.Tier{}
	}
	data, err := json.Marshal(tiers)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".octopad-tmp-*")
	if err != nil {
		return fmt.Errorf("cache: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("cache: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("cache: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("cache: rename: %w", err)
	}
	success = true
	f.lastSum = sum(data)
	return nil
}

// wroteLast reports whether data is exactly what this process last saved.
func (f *File) wroteLast(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSum != "" && f.lastSum == sum(data)
}

func decode(data []byte) []models.Tier {
	var tiers []models.Tier
	if err := json.Unmarshal(data, &tiers); err != nil || tiers == nil {
		return []models.Tier{}
	}
	for i := range tiers {
		if tiers[i].Pads == nil {
			tiers[i].Pads = []models.Pad{}
		}
	}
	return tiers
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
