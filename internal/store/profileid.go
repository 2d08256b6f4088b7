// Package store resolves tasksync profiles to state database locations and
// reads identity data left behind by the earlier editor plugin.
package store

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultProfile is the profile used when none is configured.
const DefaultProfile = "default"

// ErrInvalidProfile indicates the profile ID format is invalid.
var ErrInvalidProfile = errors.New("invalid profile: must be lowercase alphanumeric with hyphens, 1-64 characters")

// profileRegex validates profile IDs.
// - lowercase alphanumeric and hyphens (a-z, 0-9, -)
// - 1-64 characters
// - no leading/trailing hyphen
var profileRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,62}[a-z0-9])?$`)

// ValidateProfile validates a profile ID.
// Returns ErrInvalidProfile if the ID doesn't match the required pattern.
func ValidateProfile(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidProfile
	}
	// Consecutive hyphens are not caught by the regex.
	if strings.Contains(id, "--") {
		return ErrInvalidProfile
	}
	if !profileRegex.MatchString(id) {
		return ErrInvalidProfile
	}
	return nil
}
