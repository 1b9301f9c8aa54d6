package tierstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
	"github.com/starford/octopad/internal/sharecode"
)

// Memory is a non-durable Store for development when no database is configured.
// One instance is built per process by the caller and shared explicitly; its
// contents vanish on restart and are not visible to other server instances.
type Memory struct {
	mu        sync.RWMutex
	users     map[string]models.User
	userTiers map[string][]models.Tier // user id -> tiers, kept sorted by position
	shared    map[string]sharedRow     // share code -> row
}

type sharedRow struct {
	owner string
	tier  models.Tier
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:     make(map[string]models.User),
		userTiers: make(map[string][]models.Tier),
		shared:    make(map[string]sharedRow),
	}
}

func (m *Memory) Driver() string             { return DriverMemory }
func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func (m *Memory) UserTiers(_ context.Context, userID string) ([]models.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.CloneTiers(m.userTiers[userID]), nil
}

func (m *Memory) SaveUserTiers(_ context.Context, userID string, tiers []models.Tier) error {
	if userID == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveUserTiersLocked(userID, tiers)
	return nil
}

func (m *Memory) saveUserTiersLocked(userID string, tiers []models.Tier) {
	if _, ok := m.users[userID]; !ok {
		now := time.Now().UTC()
		m.users[userID] = models.User{ID: userID, CreatedAt: now, UpdatedAt: now}
	}
	rows := m.userTiers[userID]
	for _, tier := range tiers {
		code := sharecode.Normalize(tier.ShareCode)
		if code == "" {
			continue
		}
		t := tier.Clone()
		t.ShareCode = code
		if t.Pads == nil {
			t.Pads = []models.Pad{}
		}
		replaced := false
		for i := range rows {
			if rows[i].ShareCode == code {
				rows[i] = t
				replaced = true
				break
			}
		}
		if !replaced {
			rows = append(rows, t)
		}
	}
	sortByPosition(rows)
	m.userTiers[userID] = rows
}

func (m *Memory) DeleteUserTier(_ context.Context, userID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code := sharecode.Normalize(key)
	rows := m.userTiers[userID]
	kept := rows[:0]
	for _, t := range rows {
		if t.ID == key || t.ShareCode == code {
			continue
		}
		kept = append(kept, t)
	}
	m.userTiers[userID] = kept
	return nil
}

func (m *Memory) UpdateTierOrder(_ context.Context, userID string, tierIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.userTiers[userID]
	for i, id := range tierIDs {
		for j := range rows {
			if rows[j].ID == id {
				rows[j].Position = i
			}
		}
	}
	sortByPosition(rows)
	return nil
}

func (m *Memory) SharedTier(_ context.Context, code string) (models.Tier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.shared[sharecode.Normalize(code)]
	if !ok {
		return models.Tier{}, apperr.ErrNotFound
	}
	return row.tier.Clone(), nil
}

func (m *Memory) SaveSharedTier(_ context.Context, ownerID string, tier models.Tier) error {
	code := sharecode.Normalize(tier.ShareCode)
	if code == "" {
		return apperr.Invalid("shareCode", "share code is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	owner := ownerID
	if existing, ok := m.shared[code]; ok && existing.owner != "" {
		if existing.owner != ownerID {
			return apperr.ErrConflict
		}
		owner = existing.owner
	}
	t := tier.Clone()
	t.ID = sharedID(code)
	t.ShareCode = code
	if t.Pads == nil {
		t.Pads = []models.Pad{}
	}
	m.shared[code] = sharedRow{owner: owner, tier: t}
	return nil
}

func (m *Memory) DeleteSharedTier(_ context.Context, ownerID, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	code = sharecode.Normalize(code)
	if row, ok := m.shared[code]; ok && (row.owner == "" || row.owner == ownerID) {
		delete(m.shared, code)
	}
	return nil
}

func (m *Memory) SyncUser(_ context.Context, user models.User, tiers []models.Tier) error {
	if user.ID == "" {
		return apperr.Invalid("userId", "user id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := m.users[user.ID]
	if ok {
		existing.Email, existing.Name, existing.Image = user.Email, user.Name, user.Image
		existing.UpdatedAt = now
		m.users[user.ID] = existing
	} else {
		user.CreatedAt, user.UpdatedAt = now, now
		m.users[user.ID] = user
	}
	if tiers != nil {
		m.saveUserTiersLocked(user.ID, tiers)
	}
	return nil
}

func (m *Memory) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != "" && u.Email == user.Email {
			return apperr.ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	m.users[user.ID] = user
	return nil
}

func (m *Memory) UserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, apperr.ErrNotFound
}

func sortByPosition(tiers []models.Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Position < tiers[j].Position
	})
}
