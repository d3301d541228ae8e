package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/id"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/sales"
)

// CreateInstallmentRequest adds one installment to a sale.
type CreateInstallmentRequest struct {
	SaleID id.ID `json:"saleId" binding:"required"`
	sales.InstallmentInput
}

// BulkInstallmentsRequest adds several installments to a sale atomically.
type BulkInstallmentsRequest struct {
	SaleID       id.ID                    `json:"saleId" binding:"required"`
	Installments []sales.InstallmentInput `json:"installments" binding:"required,min=1"`
}

// PayMultipleRequest pays a batch of installments.
type PayMultipleRequest struct {
	InstallmentIDs []id.ID    `json:"installmentIds" binding:"required,min=1"`
	PaymentDate    *time.Time `json:"paymentDate"`
	PaymentMethod  string     `json:"paymentMethod"`
}

// ScheduleRequest previews an amortization schedule without persisting it.
type ScheduleRequest struct {
	Principal       decimal.Decimal        `json:"principal"`
	Count           int                    `json:"count"`
	InterestPercent decimal.Decimal        `json:"interestPercent"`
	FirstDueDate    *time.Time             `json:"firstDueDate"`
	Frequency       amortization.Frequency `json:"frequency"`
}

// ToPlan converts the request. A zero FirstDueDate is defaulted by the manager.
func (r *ScheduleRequest) ToPlan() amortization.Plan {
	p := amortization.Plan{
		Principal:       r.Principal,
		Count:           r.Count,
		InterestPercent: r.InterestPercent,
		Frequency:       r.Frequency,
	}
	if r.FirstDueDate != nil {
		p.FirstDueDate = *r.FirstDueDate
	}
	return p
}

// ScheduleResponse is the previewed plan.
type ScheduleResponse struct {
	Lines    []amortization.Line `json:"lines"`
	Total    decimal.Decimal     `json:"total"`
	Interest decimal.Decimal     `json:"interest"`
}

// NewScheduleResponse sums the lines.
func NewScheduleResponse(lines []amortization.Line) ScheduleResponse {
	resp := ScheduleResponse{Lines: lines, Total: decimal.Zero, Interest: decimal.Zero}
	for _, l := range lines {
		resp.Total = resp.Total.Add(l.Total())
		resp.Interest = resp.Interest.Add(l.InterestAmount)
	}
	return resp
}
