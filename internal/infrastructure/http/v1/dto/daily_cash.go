package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/domain/cashregister"
)

// OpenDailyCashRequest opens a register for a day (today when date is omitted).
type OpenDailyCashRequest struct {
	Date          *time.Time      `json:"date"`
	OpeningAmount decimal.Decimal `json:"openingAmount"`
	Comments      string          `json:"comments"`
}

// ToInput converts the request. The opener is the authenticated user.
func (r *OpenDailyCashRequest) ToInput(userID string) cashregister.OpenInput {
	return cashregister.OpenInput{
		Date:          r.Date,
		OpeningAmount: r.OpeningAmount,
		OpenedBy:      userID,
		Comments:      r.Comments,
	}
}

// UpdateDailyCashRequest patches the register header.
type UpdateDailyCashRequest struct {
	Comments          *string          `json:"comments"`
	OpeningAmount     *decimal.Decimal `json:"openingAmount"`
	Closed            *bool            `json:"closed"`
	ClosingAmount     *decimal.Decimal `json:"closingAmount"`
	ClosingDifference *decimal.Decimal `json:"closingDifference"`
}

// ToInput converts the request.
func (r *UpdateDailyCashRequest) ToInput(userID string) cashregister.UpdateInput {
	return cashregister.UpdateInput{
		Comments:          r.Comments,
		OpeningAmount:     r.OpeningAmount,
		Closed:            r.Closed,
		ClosingAmount:     r.ClosingAmount,
		ClosingDifference: r.ClosingDifference,
		ClosedBy:          userID,
	}
}

// CloseDailyCashRequest carries the counted drawer.
type CloseDailyCashRequest struct {
	ClosingAmount     decimal.Decimal  `json:"closingAmount"`
	ClosingDifference *decimal.Decimal `json:"closingDifference"`
	Comments          *string          `json:"comments"`
}

// ToInput converts the request.
func (r *CloseDailyCashRequest) ToInput(userID string) cashregister.CloseInput {
	return cashregister.CloseInput{
		ClosingAmount:     r.ClosingAmount,
		ClosingDifference: r.ClosingDifference,
		ClosedBy:          userID,
		Comments:          r.Comments,
	}
}

// MovementRequest is a hand-entered movement.
type MovementRequest struct {
	Type          cashregister.MovementType `json:"type" binding:"required"`
	Amount        decimal.Decimal           `json:"amount"`
	PaymentMethod string                    `json:"paymentMethod"`
	Description   string                    `json:"description"`
}

// ToInput converts the request.
func (r *MovementRequest) ToInput() cashregister.ManualInput {
	return cashregister.ManualInput{
		Type:          r.Type,
		Amount:        r.Amount,
		PaymentMethod: r.PaymentMethod,
		Description:   r.Description,
	}
}
