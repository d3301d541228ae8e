// Package amortization builds installment schedules for credit sales.
package amortization

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/types"
)

// Frequency is the spacing between due dates.
type Frequency string

const (
	Monthly  Frequency = "monthly"
	Biweekly Frequency = "biweekly"
	Weekly   Frequency = "weekly"
)

// Limits bound what a plan may request.
type Limits struct {
	MaxCount           int
	MaxInterestPercent decimal.Decimal
}

// DefaultLimits are used when configuration does not override them.
func DefaultLimits() Limits {
	return Limits{MaxCount: 48, MaxInterestPercent: decimal.NewFromInt(200)}
}

// Plan describes the credit to split.
type Plan struct {
	Principal       decimal.Decimal
	Count           int
	InterestPercent decimal.Decimal
	FirstDueDate    time.Time
	Frequency       Frequency
}

// Line is one scheduled installment.
type Line struct {
	Number         int             `json:"number"`
	DueDate        time.Time       `json:"dueDate"`
	Amount         decimal.Decimal `json:"amount"`
	InterestAmount decimal.Decimal `json:"interestAmount"`
}

// Total is amount plus interest.
func (l Line) Total() decimal.Decimal {
	return l.Amount.Add(l.InterestAmount)
}

// Check validates the plan against limits.
func (p Plan) Check(limits Limits) error {
	if !p.Principal.IsPositive() {
		return apperror.NewValidation("principal must be positive").WithDetail("field", "principal")
	}
	if p.Count < 1 || (limits.MaxCount > 0 && p.Count > limits.MaxCount) {
		return apperror.NewBusinessRule(apperror.CodePlanOutOfBounds,
			fmt.Sprintf("installment count must be between 1 and %d", limits.MaxCount)).
			WithDetail("count", p.Count)
	}
	if p.InterestPercent.IsNegative() || p.InterestPercent.GreaterThan(limits.MaxInterestPercent) {
		return apperror.NewBusinessRule(apperror.CodePlanOutOfBounds,
			fmt.Sprintf("interest must be between 0 and %s percent", limits.MaxInterestPercent)).
			WithDetail("interestPercent", p.InterestPercent.String())
	}
	switch p.Frequency {
	case "", Monthly, Biweekly, Weekly:
	default:
		return apperror.NewValidation("invalid frequency").WithDetail("field", "frequency")
	}
	return nil
}

// Generate splits the principal into Count equal installments, each rounded
// to cents. Interest is flat: principal * rate spread evenly.
func Generate(p Plan, limits Limits) ([]Line, error) {
	if err := p.Check(limits); err != nil {
		return nil, err
	}

	count := decimal.NewFromInt(int64(p.Count))
	amount := types.RoundMoney(p.Principal.Div(count))
	interest := types.RoundMoney(types.Percent(p.Principal, p.InterestPercent).Div(count))

	first := clock.StartOfDay(p.FirstDueDate)
	lines := make([]Line, 0, p.Count)
	for i := 0; i < p.Count; i++ {
		lines = append(lines, Line{
			Number:         i + 1,
			DueDate:        dueDate(first, p.Frequency, i),
			Amount:         amount,
			InterestAmount: interest,
		})
	}
	return lines, nil
}

func dueDate(first time.Time, f Frequency, n int) time.Time {
	switch f {
	case Weekly:
		return first.AddDate(0, 0, 7*n)
	case Biweekly:
		return first.AddDate(0, 0, 14*n)
	default:
		return first.AddDate(0, n, 0)
	}
}
