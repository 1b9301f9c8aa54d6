package cache

import (
	"sync"

	"github.com/starford/octopad/internal/models"
)

// Memory is an in-process Store. The zero value behaves like a cache that was never written.
type Memory struct {
	mu          sync.Mutex
	tiers       []models.Tier
	initialized bool
}

// NewMemory returns a Memory pre-populated with tiers. A nil slice means "never written".
func NewMemory(tiers []models.Tier) *Memory {
	m := &Memory{}
	if tiers != nil {
		m.tiers = models.CloneTiers(tiers)
		m.initialized = true
	}
	return m
}

func (m *Memory) Load() []models.Tier {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized {
		m.tiers = DefaultTiers()
		m.initialized = true
	}
	return models.CloneTiers(m.tiers)
}

func (m *Memory) Save(tiers []models.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tiers == nil {
		tiers = []models.Tier{}
	}
	m.tiers = models.CloneTiers(tiers)
	m.initialized = true
	return nil
}
