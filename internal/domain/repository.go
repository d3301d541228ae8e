// Package domain provides types shared by the ledger packages.
package domain

import "time"

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// UserID scopes every list to the caller's rows.
	UserID string

	// From/To bound the entity date, half-open [From, To).
	From *time.Time
	To   *time.Time

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter(userID string) ListFilter {
	return ListFilter{UserID: userID, Limit: 50}
}

// Normalize clamps pagination.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
