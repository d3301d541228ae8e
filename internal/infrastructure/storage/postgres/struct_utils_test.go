package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/id"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/sales"
)

func TestExtractDBColumns_EmbeddedTotals(t *testing.T) {
	cols := ExtractDBColumns[cashregister.DailyCash]()

	for _, expected := range []string{
		"id", "user_id", "day", "closed", "opening_amount",
		"cash_income", "cash_expense", "other_income", "total_income", "total_expense", "total_profit",
	} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "movements")
	assert.NotContains(t, cols, "-")
}

func TestExtractDBColumns_SkipsChildren(t *testing.T) {
	cols := ExtractDBColumns[sales.Sale]()

	assert.Contains(t, cols, "edit_history")
	assert.Contains(t, cols, "credit_type")
	assert.Len(t, cols, 19)
}

func TestStructToMap_DailyCash(t *testing.T) {
	dc := cashregister.DailyCash{
		ID:     id.New(),
		UserID: "u1",
		Closed: true,
		Totals: cashregister.Totals{CashIncome: decimal.RequireFromString("150.50")},
		Movements: []cashregister.Movement{{
			Amount: decimal.NewFromInt(1),
		}},
	}

	m := StructToMap(&dc)
	require.NotNil(t, m)

	assert.Equal(t, dc.ID, m["id"])
	assert.Equal(t, "u1", m["user_id"])
	assert.Equal(t, true, m["closed"])
	assert.True(t, decimal.RequireFromString("150.50").Equal(m["cash_income"].(decimal.Decimal)))
	_, hasMovements := m["movements"]
	assert.False(t, hasMovements)
}

func TestStructToMap_NonStruct(t *testing.T) {
	assert.Nil(t, StructToMap(42))
}
