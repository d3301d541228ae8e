// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
)

// ListQuery is the common pagination and date window of list endpoints.
// from/to are YYYY-MM-DD days; to is inclusive.
type ListQuery struct {
	From   string `form:"from"`
	To     string `form:"to"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a domain filter scoped to userID.
func (q ListQuery) ToFilter(userID string) (domain.ListFilter, error) {
	f := domain.DefaultListFilter(userID)
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset

	if q.From != "" {
		from, err := parseDay("from", q.From)
		if err != nil {
			return f, err
		}
		f.From = &from
	}
	if q.To != "" {
		to, err := parseDay("to", q.To)
		if err != nil {
			return f, err
		}
		end := to.Add(clock.Day)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.From.Before(*f.To) {
		return f, apperror.NewValidation("from must not be after to").WithDetail("field", "from")
	}
	return f, nil
}

func parseDay(field, s string) (time.Time, error) {
	t, err := clock.ParseDay(s)
	if err != nil {
		return time.Time{}, apperror.NewValidation("invalid date, expected YYYY-MM-DD").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return t, nil
}

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
