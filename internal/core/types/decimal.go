// Package types provides the decimal value types shared by every ledger.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is a stock quantity; stored values are rounded to StockScale places.
type Quantity = decimal.Decimal

const (
	// MoneyScale is the number of fractional digits kept for balances and aggregates.
	MoneyScale int32 = 2

	// StockScale is the number of fractional digits kept for product stock.
	StockScale int32 = 3
)

// PaidTolerance is the rounding slack used when deciding whether a sale is settled.
var PaidTolerance = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// RoundMoney rounds to MoneyScale places.
func RoundMoney(m Money) Money {
	return m.Round(MoneyScale)
}

// RoundStock rounds to StockScale places.
func RoundStock(q Quantity) Quantity {
	return q.Round(StockScale)
}

// Percent returns v * pct / 100.
func Percent(v, pct decimal.Decimal) decimal.Decimal {
	return v.Mul(pct).Div(hundred)
}

// Settled reports whether paid covers total within PaidTolerance.
func Settled(paid, total Money) bool {
	return paid.GreaterThanOrEqual(total.Sub(PaidTolerance))
}
