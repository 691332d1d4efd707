// Package domain provides core business rules for the pipeline bounded context.
package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Stage is a position in the sales pipeline. Stages form a flat ordered list;
// every deal points at exactly one stage at all times.
type Stage struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Code         string
	Name         string
	SortOrder    int
	IsClosedWon  bool
	IsClosedLost bool
	IsSystem     bool
	// Config is opaque per-tenant metadata (display color, win probability,
	// WIP limit). The registry stores and returns it without interpreting it.
	Config    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// codePattern is the slug shape for stage codes: lowercase, digits,
// underscores and hyphens, starting with a letter.
var codePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// IsValidCode reports whether code is an acceptable stage slug.
func IsValidCode(code string) bool {
	return code != "" && len(code) <= 64 && codePattern.MatchString(code)
}

// Direction is the way a stage moves relative to its neighbor in a reorder.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// ClosedFlagConflict scans stages for a different stage already holding the
// requested closed flag. It returns the conflicting stage and true when the
// invariant would be violated. The self ID is excluded so updates to the
// current holder pass.
func ClosedFlagConflict(stages []Stage, self uuid.UUID, wantWon, wantLost bool) (Stage, bool) {
	for _, s := range stages {
		if s.ID == self {
			continue
		}
		if wantWon && s.IsClosedWon {
			return s, true
		}
		if wantLost && s.IsClosedLost {
			return s, true
		}
	}
	return Stage{}, false
}
