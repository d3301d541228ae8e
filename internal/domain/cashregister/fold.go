package cashregister

import (
	"github.com/shopspring/decimal"

	"retailledger/internal/core/types"
)

// Fold recomputes register totals from its movements.
func Fold(movements []Movement) Totals {
	t := Totals{
		CashIncome:   decimal.Zero,
		CashExpense:  decimal.Zero,
		OtherIncome:  decimal.Zero,
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	for i := range movements {
		m := &movements[i]
		switch m.Type {
		case Income:
			t.TotalIncome = t.TotalIncome.Add(m.Amount)
			if m.PaymentMethod == MethodCash {
				t.CashIncome = t.CashIncome.Add(m.Amount)
			} else {
				t.OtherIncome = t.OtherIncome.Add(m.Amount)
			}
		case Expense:
			t.TotalExpense = t.TotalExpense.Add(m.Amount)
			if m.PaymentMethod == MethodCash {
				t.CashExpense = t.CashExpense.Add(m.Amount)
			}
		}
		t.TotalProfit = t.TotalProfit.Add(m.Profit)
	}

	t.CashIncome = types.RoundMoney(t.CashIncome)
	t.CashExpense = types.RoundMoney(t.CashExpense)
	t.OtherIncome = types.RoundMoney(t.OtherIncome)
	t.TotalIncome = types.RoundMoney(t.TotalIncome)
	t.TotalExpense = types.RoundMoney(t.TotalExpense)
	t.TotalProfit = types.RoundMoney(t.TotalProfit)
	return t
}
