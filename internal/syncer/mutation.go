package syncer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
)

// Mutation is a change to a single tier applied by Coordinator.Mutate.
type Mutation interface {
	apply(t *models.Tier) error
	describe() string
}

// RenameTier sets the tier name. An empty name keeps the tier local-only, or
// leaves its remote rows in place when it was already synced.
type RenameTier struct {
	Name string
}

func (m RenameTier) apply(t *models.Tier) error {
	t.Name = strings.TrimSpace(m.Name)
	return nil
}

func (m RenameTier) describe() string { return "rename" }

// AddPad places a pad in its slot. A pad already in that slot is replaced.
// An empty pad id gets a generated one.
type AddPad struct {
	Pad models.Pad
}

func (m AddPad) apply(t *models.Tier) error {
	p := m.Pad
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if t.PadByID(p.ID) != nil {
		return apperr.Invalid("id", fmt.Sprintf("pad %s already exists", p.ID))
	}
	return placePad(t, p, "")
}

func (m AddPad) describe() string { return "add pad" }

// UpdatePad replaces the pad with the same id. Moving it onto an occupied slot
// replaces the occupant.
type UpdatePad struct {
	Pad models.Pad
}

func (m UpdatePad) apply(t *models.Tier) error {
	if m.Pad.ID == "" {
		return apperr.Invalid("id", "pad id is required")
	}
	if t.PadByID(m.Pad.ID) == nil {
		return fmt.Errorf("pad %s: %w", m.Pad.ID, apperr.ErrNotFound)
	}
	return placePad(t, m.Pad, m.Pad.ID)
}

func (m UpdatePad) describe() string { return "update pad" }

// DeletePad removes a pad by id.
type DeletePad struct {
	PadID string
}

func (m DeletePad) apply(t *models.Tier) error {
	if t.PadByID(m.PadID) == nil {
		return fmt.Errorf("pad %s: %w", m.PadID, apperr.ErrNotFound)
	}
	kept := make([]models.Pad, 0, len(t.Pads))
	for _, p := range t.Pads {
		if p.ID != m.PadID {
			kept = append(kept, p)
		}
	}
	t.Pads = kept
	return nil
}

func (m DeletePad) describe() string { return "delete pad" }

// placePad validates p, drops replaceID and whatever occupies p's slot, then inserts p.
func placePad(t *models.Tier, p models.Pad, replaceID string) error {
	p.URL = models.NormalizeURL(p.URL)
	p.Name = strings.TrimSpace(p.Name)
	p.TierID = t.ID
	if err := p.Validate(); err != nil {
		return err
	}
	kept := make([]models.Pad, 0, len(t.Pads)+1)
	for _, existing := range t.Pads {
		if existing.ID == replaceID || existing.Position == p.Position {
			continue
		}
		kept = append(kept, existing)
	}
	kept = append(kept, p)
	sortPads(kept)
	t.Pads = kept
	return nil
}
