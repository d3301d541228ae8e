package amortization

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
)

func TestGenerate_EqualRoundedInstallments(t *testing.T) {
	first := time.Date(2026, 1, 31, 15, 0, 0, 0, time.UTC)

	lines, err := Generate(Plan{
		Principal:    decimal.NewFromInt(103),
		Count:        3,
		FirstDueDate: first,
	}, DefaultLimits())
	require.NoError(t, err)
	require.Len(t, lines, 3)

	for i, l := range lines {
		assert.Equal(t, i+1, l.Number)
		assert.Equal(t, "34.33", l.Amount.StringFixed(2))
		assert.True(t, l.InterestAmount.IsZero())
	}
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), lines[0].DueDate)
	assert.Equal(t, time.Month(3), lines[1].DueDate.Month())
}

func TestGenerate_FlatInterest(t *testing.T) {
	lines, err := Generate(Plan{
		Principal:       decimal.NewFromInt(1200),
		Count:           12,
		InterestPercent: decimal.NewFromInt(24),
		FirstDueDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Frequency:       Weekly,
	}, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, "100.00", lines[0].Amount.StringFixed(2))
	assert.Equal(t, "24.00", lines[0].InterestAmount.StringFixed(2))
	assert.Equal(t, "124.00", lines[0].Total().StringFixed(2))
	assert.Equal(t, 7*24*time.Hour, lines[1].DueDate.Sub(lines[0].DueDate))
}

func TestGenerate_OutOfBounds(t *testing.T) {
	tests := []struct {
		name string
		plan Plan
	}{
		{"zero count", Plan{Principal: decimal.NewFromInt(10), Count: 0}},
		{"too many", Plan{Principal: decimal.NewFromInt(10), Count: 49}},
		{"negative interest", Plan{Principal: decimal.NewFromInt(10), Count: 2, InterestPercent: decimal.NewFromInt(-1)}},
		{"excessive interest", Plan{Principal: decimal.NewFromInt(10), Count: 2, InterestPercent: decimal.NewFromInt(201)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Generate(tt.plan, DefaultLimits())
			appErr, ok := apperror.AsAppError(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodePlanOutOfBounds, appErr.Code)
		})
	}
}
