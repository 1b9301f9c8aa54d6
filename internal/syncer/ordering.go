package syncer

import (
	"fmt"
	"sort"

	"github.com/starford/octopad/internal/apperr"
	"github.com/starford/octopad/internal/models"
)

// Renumber assigns positions 0..n-1 from slice order, in place, and returns tiers.
func Renumber(tiers []models.Tier) []models.Tier {
	for i := range tiers {
		tiers[i].Position = i
	}
	return tiers
}

// sortByPosition orders tiers by position, keeping slice order for ties.
func sortByPosition(tiers []models.Tier) {
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Position < tiers[j].Position
	})
}

// ApplyOrder returns tiers rearranged so the ids in order come first, in that
// order, followed by the remaining tiers in their current relative order.
// Positions of the result are renumbered 0..n-1. Unknown or repeated ids are
// a validation error and leave tiers untouched.
func ApplyOrder(tiers []models.Tier, order []string) ([]models.Tier, error) {
	current := models.CloneTiers(tiers)
	sortByPosition(current)

	index := make(map[string]int, len(current))
	for i, t := range current {
		index[t.ID] = i
	}

	used := make([]bool, len(current))
	out := make([]models.Tier, 0, len(current))
	for _, id := range order {
		i, ok := index[id]
		if !ok {
			return nil, apperr.Invalid("tierIds", fmt.Sprintf("unknown tier id %q", id))
		}
		if used[i] {
			return nil, apperr.Invalid("tierIds", fmt.Sprintf("tier id %q listed twice", id))
		}
		used[i] = true
		out = append(out, current[i])
	}
	for i, t := range current {
		if !used[i] {
			out = append(out, t)
		}
	}
	return Renumber(out), nil
}

// sortPads orders a tier's pads by slot.
func sortPads(pads []models.Pad) {
	sort.SliceStable(pads, func(i, j int) bool {
		return pads[i].Position < pads[j].Position
	})
}
