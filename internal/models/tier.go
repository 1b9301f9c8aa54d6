package models

import (
	"fmt"
	"strings"

	"github.com/starford/octopad/internal/apperr"
)

// DefaultTierCount is the number of empty tiers a fresh local cache starts with.
const DefaultTierCount = 3

// SyncState is a tier's remote presence.
type SyncState string

const (
	StateLocalOnly SyncState = "local-only"
	StateSynced    SyncState = "synced"
)

// Tier is a named or anonymous row of pads. ShareCode is its stable cross-account key.
type Tier struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShareCode string `json:"shareCode"`
	Pads      []Pad  `json:"pads"`
	Position  int    `json:"position"`
}

// Synced reports whether the tier belongs in the remote store, i.e. its trimmed name is non-empty.
func (t Tier) Synced() bool {
	return strings.TrimSpace(t.Name) != ""
}

// SyncState returns StateSynced for named tiers and StateLocalOnly otherwise.
func (t Tier) SyncState() SyncState {
	if t.Synced() {
		return StateSynced
	}
	return StateLocalOnly
}

// PadAt returns the pad occupying position, or nil.
func (t Tier) PadAt(position int) *Pad {
	for i := range t.Pads {
		if t.Pads[i].Position == position {
			return &t.Pads[i]
		}
	}
	return nil
}

// Grid lays the pads out by slot. Pads with an out-of-range position are skipped.
func (t Tier) Grid() [PadsPerTier]*Pad {
	var grid [PadsPerTier]*Pad
	for i := range t.Pads {
		p := t.Pads[i]
		if p.Position >= 0 && p.Position < PadsPerTier {
			grid[p.Position] = &p
		}
	}
	return grid
}

// Validate checks that every pad is valid and that no two pads share a slot.
func (t Tier) Validate() error {
	seen := make(map[int]string, len(t.Pads))
	for i, p := range t.Pads {
		if err := p.Validate(); err != nil {
			return err
		}
		if other, ok := seen[p.Position]; ok {
			return apperr.Invalid(fmt.Sprintf("pads[%d].position", i),
				fmt.Sprintf("slot %d already used by pad %s", p.Position, other))
		}
		seen[p.Position] = p.ID
	}
	return nil
}

// Clone returns a deep copy of t.
func (t Tier) Clone() Tier {
	out := t
	if t.Pads != nil {
		out.Pads = make([]Pad, len(t.Pads))
		copy(out.Pads, t.Pads)
	}
	return out
}

// CloneTiers deep-copies a tier slice.
func CloneTiers(tiers []Tier) []Tier {
	out := make([]Tier, len(tiers))
	for i, t := range tiers {
		out[i] = t.Clone()
	}
	return out
}

// PadByID returns the pad with the given id, or nil.
func (t Tier) PadByID(id string) *Pad {
	for i := range t.Pads {
		if t.Pads[i].ID == id {
			return &t.Pads[i]
		}
	}
	return nil
}
