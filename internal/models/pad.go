// Package models defines the domain types for octopad.
package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/octopad/internal/apperr"
)

// PadsPerTier is the fixed number of slots in a tier row.
const PadsPerTier = 8

// Pad is a single launchable shortcut occupying one slot of a tier.
type Pad struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	IconURL  string `json:"iconUrl"`
	Position int    `json:"position"`
	TierID   string `json:"tierId"`
}

// Validate checks the pad fields a write path depends on.
func (p Pad) Validate() error {
	return apperr.FromValidation(validation.ValidateStruct(&p,
		validation.Field(&p.URL, validation.Required.Error("url is required")),
		validation.Field(&p.Position, validation.Min(0), validation.Max(PadsPerTier-1)),
	))
}

// NormalizeURL trims raw and prefixes https:// when no http(s) scheme is present.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}
