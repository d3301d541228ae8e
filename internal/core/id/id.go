// Package id provides UUIDv7 generation for all ledger entities.
// UUIDv7 is time-ordered, so movement and sale ids sort by creation time.
package id

import (
	"github.com/google/uuid"

	"retailledger/internal/core/apperror"
)

// ID is a type alias for UUID, used across all entities.
type ID = uuid.UUID

// New generates a new UUIDv7.
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// ParseField parses s and reports a validation error naming field on failure.
func ParseField(field, s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.NewValidation("invalid id format").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return v, nil
}

// ParseOptional parses an optional reference; empty input yields nil.
func ParseOptional(field string, s *string) (*ID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	v, err := ParseField(field, *s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
