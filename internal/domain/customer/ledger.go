package customer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// Ledger is the only writer of Customer.PendingBalance.
// Positive deltas increase what the customer owes.
type Ledger struct {
	repo Repository
}

// NewLedger creates a balance ledger.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Adjust adds delta to the customer's balance and returns the new balance.
func (l *Ledger) Adjust(ctx context.Context, userID string, customerID id.ID, delta decimal.Decimal) (types.Money, error) {
	c, err := l.repo.GetForUpdate(ctx, customerID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return decimal.Zero, apperror.NewNotFound("customer", customerID.String())
		}
		return decimal.Zero, fmt.Errorf("lock customer: %w", err)
	}
	if c.UserID != userID {
		return decimal.Zero, apperror.NewNotFound("customer", customerID.String())
	}

	next := types.RoundMoney(c.PendingBalance.Add(delta))
	if err := l.repo.UpdateBalance(ctx, customerID, next); err != nil {
		return decimal.Zero, fmt.Errorf("update balance: %w", err)
	}
	return next, nil
}

// Charge increases the balance by amount.
func (l *Ledger) Charge(ctx context.Context, userID string, customerID id.ID, amount decimal.Decimal) (types.Money, error) {
	return l.Adjust(ctx, userID, customerID, amount)
}

// Settle decreases the balance by amount.
func (l *Ledger) Settle(ctx context.Context, userID string, customerID id.ID, amount decimal.Decimal) (types.Money, error) {
	return l.Adjust(ctx, userID, customerID, amount.Neg())
}
