package stock

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/units"
	"retailledger/pkg/logger"
)

// Ledger applies signed, unit-converted deltas to product stock.
// It must run inside the caller's transaction.
type Ledger struct {
	repo          Repository
	converter     *units.Converter
	allowNegative bool
}

// Option configures the ledger.
type Option func(*Ledger)

// WithConverter sets the unit conversion policy.
func WithConverter(c *units.Converter) Option {
	return func(l *Ledger) { l.converter = c }
}

// AllowNegative lets stock drop below zero instead of failing with INSUFFICIENT_STOCK.
func AllowNegative(allow bool) Option {
	return func(l *Ledger) { l.allowNegative = allow }
}

// NewLedger creates a stock ledger.
func NewLedger(repo Repository, opts ...Option) *Ledger {
	l := &Ledger{repo: repo, converter: &units.Converter{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Apply adds delta (expressed in unit) to the product's stock and returns the new level.
func (l *Ledger) Apply(ctx context.Context, userID string, productID id.ID, delta decimal.Decimal, unit string) (types.Quantity, error) {
	product, err := l.repo.GetForUpdate(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return decimal.Zero, apperror.NewNotFound("product", productID.String())
		}
		return decimal.Zero, fmt.Errorf("lock product: %w", err)
	}
	if product.UserID != userID {
		return decimal.Zero, apperror.NewNotFound("product", productID.String())
	}

	converted := delta
	if unit != "" && product.Unit != "" {
		res, err := l.converter.Convert(delta, unit, product.Unit)
		if err != nil {
			return decimal.Zero, err
		}
		if res.Mismatch {
			logger.Warn(ctx, "unit conversion passed through",
				"product_id", productID, "from", unit, "to", product.Unit)
		}
		converted = res.Quantity
	}

	next := types.RoundStock(product.Stock.Add(converted))
	if next.IsNegative() && !l.allowNegative {
		return decimal.Zero, apperror.NewInsufficientStock(
			productID.String(),
			converted.Neg().String(),
			product.Stock.String(),
		).WithDetail("product_name", product.Name)
	}

	if err := l.repo.UpdateStock(ctx, productID, next); err != nil {
		return decimal.Zero, fmt.Errorf("update stock: %w", err)
	}
	return next, nil
}

// Decrement removes qty (in unit) from stock.
func (l *Ledger) Decrement(ctx context.Context, userID string, productID id.ID, qty decimal.Decimal, unit string) (types.Quantity, error) {
	return l.Apply(ctx, userID, productID, qty.Neg(), unit)
}

// Restore puts qty (in unit) back into stock.
func (l *Ledger) Restore(ctx context.Context, userID string, productID id.ID, qty decimal.Decimal, unit string) (types.Quantity, error) {
	return l.Apply(ctx, userID, productID, qty, unit)
}
