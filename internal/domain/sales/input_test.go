package sales

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
)

func validItem() ItemInput {
	return ItemInput{ProductID: id.New(), Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(10)}
}

func requireValidation(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}

func TestInputValidate(t *testing.T) {
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("needs items or manual amount", func(t *testing.T) {
		in := Input{}
		requireValidation(t, in.Validate())

		in = Input{ManualAmount: decimal.NewFromInt(50)}
		assert.NoError(t, in.Validate())
	})

	t.Run("credit type implies credit", func(t *testing.T) {
		in := Input{Items: []ItemInput{validItem()}, CreditType: CreditInstallments}
		require.NoError(t, in.Validate())
		assert.True(t, in.Credit)
	})

	t.Run("credit defaults to current account", func(t *testing.T) {
		in := Input{Items: []ItemInput{validItem()}, Credit: true}
		require.NoError(t, in.Validate())
		assert.Equal(t, CreditCurrentAccount, in.CreditType)
	})

	t.Run("installments only on installment credit", func(t *testing.T) {
		in := Input{
			Items:        []ItemInput{validItem()},
			Installments: []InstallmentInput{{Number: 1, DueDate: due, Amount: decimal.NewFromInt(10)}},
		}
		requireValidation(t, in.Validate())
	})

	t.Run("plan and explicit installments are exclusive", func(t *testing.T) {
		in := Input{
			Items:        []ItemInput{validItem()},
			CreditType:   CreditInstallments,
			Installments: []InstallmentInput{{Number: 1, DueDate: due, Amount: decimal.NewFromInt(10)}},
			Plan:         &PlanInput{Count: 2},
		}
		requireValidation(t, in.Validate())
	})

	t.Run("duplicate installment numbers", func(t *testing.T) {
		in := Input{
			Items:      []ItemInput{validItem()},
			CreditType: CreditInstallments,
			Installments: []InstallmentInput{
				{Number: 1, DueDate: due, Amount: decimal.NewFromInt(5)},
				{Number: 1, DueDate: due, Amount: decimal.NewFromInt(5)},
			},
		}
		requireValidation(t, in.Validate())
	})

	t.Run("cheques start pending", func(t *testing.T) {
		in := Input{
			Items:    []ItemInput{validItem()},
			Payments: []PaymentInput{{Amount: decimal.NewFromInt(10), Method: MethodCheque, CheckStatus: CheckCleared}},
		}
		requireValidation(t, in.Validate())
	})

	t.Run("item without product", func(t *testing.T) {
		item := validItem()
		item.ProductID = id.ID{}
		in := Input{Items: []ItemInput{item}}
		requireValidation(t, in.Validate())
	})
}

func TestSaleRecomputePaid(t *testing.T) {
	sale := &Sale{Total: decimal.RequireFromString("100")}
	payments := []Payment{
		{Amount: decimal.RequireFromString("60"), Method: MethodCash},
		{Amount: decimal.RequireFromString("40"), Method: MethodCheque, CheckStatus: CheckPending},
	}

	assert.False(t, sale.RecomputePaid(payments))
	assert.False(t, sale.Paid)

	payments[1].CheckStatus = CheckCleared
	assert.True(t, sale.RecomputePaid(payments))
	assert.True(t, sale.Paid)
}

func TestItemSubtotal(t *testing.T) {
	item := Item{
		Price:     decimal.RequireFromString("100"),
		Quantity:  decimal.RequireFromString("2"),
		Discount:  decimal.RequireFromString("10"),
		Surcharge: decimal.RequireFromString("5"),
	}
	assert.True(t, decimal.RequireFromString("189").Equal(item.Subtotal()), item.Subtotal().String())
}
