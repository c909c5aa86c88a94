// Package id provides UUIDv7 identifiers for products and ledger rows.
// UUIDv7 is time-ordered, so ledger rows sort by creation time.
package id

import (
	"strings"

	"github.com/google/uuid"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// Parse converts s to an ID. Surrounding whitespace is ignored.
func Parse(s string) (ID, error) {
	return uuid.Parse(strings.TrimSpace(s))
}

// ParseOptional parses s when it is non-blank. Exclusion ids in stock queries
// are optional, so a missing value yields (nil, nil).
func ParseOptional(s *string) (*ID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	parsed, err := Parse(*s)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// Nil returns zero-value UUID.
func Nil() ID {
	return uuid.Nil
}

// IsNil checks if ID is zero-value.
func IsNil(id ID) bool {
	return id == uuid.Nil
}
