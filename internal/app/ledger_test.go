package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/app"
	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/backup"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/installments"
	"retailledger/internal/domain/payments"
	"retailledger/internal/domain/returns"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/stock"
	v1 "retailledger/internal/infrastructure/http/v1"
	"retailledger/internal/infrastructure/storage/memory"
)

const owner = "user-1"

type fixture struct {
	ctx        context.Context
	store      *memory.Store
	clock      *clock.Fixed
	guard      *memory.Guard
	svc        v1.Services
	productID  id.ID
	customerID id.ID
}

func newFixture(t *testing.T, tune ...func(*app.Options)) *fixture {
	t.Helper()

	f := &fixture{
		ctx:        context.Background(),
		store:      memory.NewStore(),
		clock:      clock.NewFixed(time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)),
		guard:      memory.NewGuard(),
		productID:  id.New(),
		customerID: id.New(),
	}
	f.store.Products().Put(stock.Product{
		ID:        f.productID,
		UserID:    owner,
		Name:      "Yerba 1kg",
		Unit:      "unidad",
		Stock:     decimal.NewFromInt(10),
		CostPrice: decimal.NewFromInt(60),
		Price:     decimal.NewFromInt(100),
	})
	f.store.Customers().Put(customer.Customer{
		ID:             f.customerID,
		UserID:         owner,
		Name:           "Ana",
		PendingBalance: decimal.Zero,
	})

	opts := app.Options{Clock: f.clock, Guard: f.guard}
	for _, fn := range tune {
		fn(&opts)
	}
	svc, err := app.NewServices(app.MemoryRepositories(f.store), memory.NewTxManager(f.store), opts)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) stock(t *testing.T) decimal.Decimal {
	t.Helper()
	p, err := f.store.Products().GetByID(f.ctx, f.productID)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) balance(t *testing.T) decimal.Decimal {
	t.Helper()
	c, err := f.store.Customers().GetByID(f.ctx, f.customerID)
	require.NoError(t, err)
	return c.PendingBalance
}

func (f *fixture) today(t *testing.T) *cashregister.DailyCash {
	t.Helper()
	dc, err := f.svc.Register.Today(f.ctx, owner)
	require.NoError(t, err)
	return dc
}

func (f *fixture) items(qty int64) []sales.ItemInput {
	return []sales.ItemInput{{
		ProductID: f.productID,
		Quantity:  decimal.NewFromInt(qty),
		Price:     decimal.NewFromInt(100),
		CostPrice: decimal.NewFromInt(60),
	}}
}

func (f *fixture) cashSale(t *testing.T, qty int64) *sales.Sale {
	t.Helper()
	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items: f.items(qty),
		Payments: []sales.PaymentInput{{
			Amount: decimal.NewFromInt(100 * qty),
			Method: sales.MethodCash,
		}},
	}, owner)
	require.NoError(t, err)
	return sale
}

func (f *fixture) creditSale(t *testing.T, qty int64) *sales.Sale {
	t.Helper()
	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(qty),
		Credit:     true,
		CustomerID: &f.customerID,
	}, owner)
	require.NoError(t, err)
	return sale
}

func bySource(dc *cashregister.DailyCash, source cashregister.Source) []cashregister.Movement {
	var out []cashregister.Movement
	for _, m := range dc.Movements {
		if m.Source == source {
			out = append(out, m)
		}
	}
	return out
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.Truef(t, ok, "expected an app error, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestSaleCreate_CashSale(t *testing.T) {
	f := newFixture(t)

	sale := f.cashSale(t, 2)
	next := f.cashSale(t, 1)

	assert.Equal(t, "V-2024-00001", sale.Number)
	assert.Equal(t, "V-2024-00002", next.Number)
	assertDecimal(t, "200", sale.Total)
	assertDecimal(t, "80", sale.TotalProfit)
	assert.True(t, sale.Paid)
	assertDecimal(t, "7", f.stock(t))

	dc := f.today(t)
	require.Len(t, dc.Movements, 2)
	assert.Equal(t, cashregister.SourceSale, dc.Movements[0].Source)
	assertDecimal(t, "300", dc.TotalIncome)
	assertDecimal(t, "300", dc.CashIncome)
	assertDecimal(t, "120", dc.TotalProfit)
}

func TestSaleCreate_InsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Sales.Create(f.ctx, sales.Input{Items: f.items(20)}, owner)

	assertCode(t, err, apperror.CodeInsufficientStock)
	assertDecimal(t, "10", f.stock(t))
	assert.Empty(t, f.today(t).Movements)

	list, err := f.svc.Sales.List(f.ctx, sales.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	assert.Equal(t, "V-2024-00001", f.cashSale(t, 1).Number, "a rolled back sale gives its number back")
}

func TestSaleCreate_CreditChargesCustomer(t *testing.T) {
	f := newFixture(t)

	sale := f.creditSale(t, 2)

	assert.False(t, sale.Paid)
	assert.Equal(t, sales.CreditCurrentAccount, sale.CreditType)
	assertDecimal(t, "200", f.balance(t))

	movements := bySource(f.today(t), cashregister.SourceSale)
	require.Len(t, movements, 1)
	assert.Equal(t, cashregister.MethodCurrentAccount, movements[0].PaymentMethod)
}

func (f *fixture) bulkProduct(t *testing.T) id.ID {
	t.Helper()
	productID := id.New()
	f.store.Products().Put(stock.Product{
		ID:        productID,
		UserID:    owner,
		Name:      "Queso cremoso",
		Unit:      "kg",
		Stock:     decimal.NewFromInt(5),
		CostPrice: decimal.NewFromInt(4000),
		Price:     decimal.NewFromInt(6000),
	})
	return productID
}

func (f *fixture) stockOf(t *testing.T, productID id.ID) decimal.Decimal {
	t.Helper()
	p, err := f.store.Products().GetByID(f.ctx, productID)
	require.NoError(t, err)
	return p.Stock
}

func weighedSale(productID id.ID, qty, unit string) sales.Input {
	return sales.Input{
		Items: []sales.ItemInput{{
			ProductID: productID,
			Quantity:  decimal.RequireFromString(qty),
			Unit:      unit,
			Price:     decimal.NewFromInt(6),
			CostPrice: decimal.NewFromInt(4),
		}},
	}
}

func TestStock_ConvertsSaleAndReturnUnits(t *testing.T) {
	f := newFixture(t)
	cheese := f.bulkProduct(t)

	_, err := f.svc.Sales.Create(f.ctx, weighedSale(cheese, "333.3333", "g"), owner)
	require.NoError(t, err)
	assertDecimal(t, "4.667", f.stockOf(t, cheese))

	_, err = f.svc.Returns.Create(f.ctx, returns.Input{
		ProductID: cheese,
		Quantity:  decimal.NewFromInt(250),
		Unit:      "gramos",
	}, owner)
	require.NoError(t, err)
	assertDecimal(t, "4.917", f.stockOf(t, cheese))

	t.Run("cross family passes through", func(t *testing.T) {
		_, err := f.svc.Sales.Create(f.ctx, weighedSale(cheese, "2", "l"), owner)
		require.NoError(t, err)
		assertDecimal(t, "2.917", f.stockOf(t, cheese))
	})
}

func TestStock_StrictConversionRejectsMismatch(t *testing.T) {
	f := newFixture(t, func(o *app.Options) { o.StrictUnitConversion = true })
	cheese := f.bulkProduct(t)

	_, err := f.svc.Sales.Create(f.ctx, weighedSale(cheese, "2", "l"), owner)
	assertCode(t, err, apperror.CodeValidation)
	assertDecimal(t, "5", f.stockOf(t, cheese))
	assert.Empty(t, f.today(t).Movements)

	_, err = f.svc.Sales.Create(f.ctx, weighedSale(cheese, "500", "g"), owner)
	require.NoError(t, err)
	assertDecimal(t, "4.5", f.stockOf(t, cheese))
}

func TestSaleGet_OtherUserSeesNotFound(t *testing.T) {
	f := newFixture(t)
	sale := f.cashSale(t, 1)

	_, err := f.svc.Sales.Get(f.ctx, sale.ID, "user-2")

	assert.True(t, apperror.IsNotFound(err))
}

func TestSaleUpdate_ReconcilesStockAndRegister(t *testing.T) {
	f := newFixture(t)
	sale := f.cashSale(t, 2)

	updated, err := f.svc.Sales.Update(f.ctx, sale.ID, sales.Input{
		Items: f.items(3),
		Payments: []sales.PaymentInput{{
			Amount: decimal.NewFromInt(300),
			Method: sales.MethodCash,
		}},
	}, owner)
	require.NoError(t, err)

	assertDecimal(t, "300", updated.Total)
	assert.Equal(t, sale.Number, updated.Number)
	assert.True(t, updated.Edited)
	require.Len(t, updated.EditHistory, 1)
	assertDecimal(t, "200", updated.EditHistory[0].Before.Total)
	assertDecimal(t, "300", updated.EditHistory[0].After.Total)
	assertDecimal(t, "7", f.stock(t))

	dc := f.today(t)
	require.Len(t, bySource(dc, cashregister.SourceSale), 1)
	assertDecimal(t, "300", dc.TotalIncome)
	assertDecimal(t, "120", dc.TotalProfit)
}

func TestSaleUpdate_Rejections(t *testing.T) {
	t.Run("credit sale", func(t *testing.T) {
		f := newFixture(t)
		sale := f.creditSale(t, 1)

		_, err := f.svc.Sales.Update(f.ctx, sale.ID, sales.Input{Items: f.items(1)}, owner)
		assertCode(t, err, apperror.CodeSaleNotEditable)
	})

	t.Run("next day", func(t *testing.T) {
		f := newFixture(t)
		sale := f.cashSale(t, 1)
		f.clock.Advance(clock.Day)

		_, err := f.svc.Sales.Update(f.ctx, sale.ID, sales.Input{Items: f.items(1)}, owner)
		assertCode(t, err, apperror.CodeSaleNotEditable)
	})

	t.Run("failed edit leaves stock untouched", func(t *testing.T) {
		f := newFixture(t)
		sale := f.cashSale(t, 2)

		_, err := f.svc.Sales.Update(f.ctx, sale.ID, sales.Input{Items: f.items(50)}, owner)
		assertCode(t, err, apperror.CodeInsufficientStock)
		assertDecimal(t, "8", f.stock(t))

		got, err := f.svc.Sales.Get(f.ctx, sale.ID, owner)
		require.NoError(t, err)
		assert.False(t, got.Edited)
	})
}

func TestSaleVoid_UndoesEveryEffect(t *testing.T) {
	f := newFixture(t)
	sale := f.creditSale(t, 2)

	_, err := f.svc.Payments.Create(f.ctx, payments.CreateInput{
		SaleID:       sale.ID,
		PaymentInput: sales.PaymentInput{Amount: decimal.NewFromInt(50), Method: sales.MethodCash},
	}, owner)
	require.NoError(t, err)
	assertDecimal(t, "150", f.balance(t))

	require.NoError(t, f.svc.Sales.Void(f.ctx, sale.ID, owner))

	assertDecimal(t, "10", f.stock(t))
	assertDecimal(t, "0", f.balance(t))
	dc := f.today(t)
	assert.Empty(t, dc.Movements)
	assertDecimal(t, "0", dc.TotalIncome)

	_, err = f.svc.Sales.Get(f.ctx, sale.ID, owner)
	assert.True(t, apperror.IsNotFound(err))
}

func TestSaleVoid_KeepsLinkedReturnRefund(t *testing.T) {
	f := newFixture(t)
	sale := f.cashSale(t, 2)

	r, err := f.svc.Returns.Create(f.ctx, returns.Input{
		SaleID:       &sale.ID,
		ProductID:    f.productID,
		Quantity:     decimal.NewFromInt(1),
		RefundAmount: decimal.NewFromInt(100),
		CostPrice:    decimal.NewFromInt(60),
	}, owner)
	require.NoError(t, err)
	assertDecimal(t, "9", f.stock(t))

	require.NoError(t, f.svc.Sales.Void(f.ctx, sale.ID, owner))

	dc := f.today(t)
	assert.Empty(t, bySource(dc, cashregister.SourceSale))
	refunds := bySource(dc, cashregister.SourceReturn)
	require.Len(t, refunds, 1)
	assert.Equal(t, r.ID, *refunds[0].ReturnID)
	assertDecimal(t, "100", dc.TotalExpense)
	assertDecimal(t, "0", dc.TotalIncome)
	assertDecimal(t, "11", f.stock(t))

	listed, err := f.svc.Returns.List(f.ctx, domain.DefaultListFilter(owner))
	require.NoError(t, err)
	assert.Len(t, listed.Items, 1)

	require.NoError(t, f.svc.Returns.Delete(f.ctx, r.ID, owner))
	assertDecimal(t, "10", f.stock(t))
	dc = f.today(t)
	assert.Empty(t, dc.Movements)
	assertDecimal(t, "0", dc.TotalExpense)
}

func TestPayments_SettleAndDelete(t *testing.T) {
	f := newFixture(t)
	sale := f.creditSale(t, 2)

	first, err := f.svc.Payments.Create(f.ctx, payments.CreateInput{
		SaleID:       sale.ID,
		PaymentInput: sales.PaymentInput{Amount: decimal.NewFromInt(50), Method: sales.MethodCash},
	}, owner)
	require.NoError(t, err)
	assert.True(t, first.BalanceApplied)
	assertDecimal(t, "150", f.balance(t))

	movements := bySource(f.today(t), cashregister.SourcePayment)
	require.Len(t, movements, 1)
	assertDecimal(t, "50", movements[0].Amount)
	assertDecimal(t, "20", movements[0].Profit)

	_, err = f.svc.Payments.Create(f.ctx, payments.CreateInput{
		SaleID:       sale.ID,
		PaymentInput: sales.PaymentInput{Amount: decimal.NewFromInt(150), Method: sales.MethodTransfer},
	}, owner)
	require.NoError(t, err)

	got, err := f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assertDecimal(t, "0", f.balance(t))

	require.NoError(t, f.svc.Payments.Delete(f.ctx, first.ID, owner))

	got, err = f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.False(t, got.Paid)
	assertDecimal(t, "50", f.balance(t))
	assert.Len(t, bySource(f.today(t), cashregister.SourcePayment), 1)
}

func TestPayments_ChequeClearing(t *testing.T) {
	f := newFixture(t)
	sale := f.creditSale(t, 2)

	cheque, err := f.svc.Payments.Create(f.ctx, payments.CreateInput{
		SaleID: sale.ID,
		PaymentInput: sales.PaymentInput{
			Amount:      decimal.NewFromInt(200),
			Method:      sales.MethodCheque,
			CheckNumber: "000123",
			CheckBank:   "Banco Nación",
		},
	}, owner)
	require.NoError(t, err)
	assert.Equal(t, sales.CheckPending, cheque.CheckStatus)
	assert.False(t, cheque.BalanceApplied)
	assertDecimal(t, "200", f.balance(t))
	assert.Empty(t, bySource(f.today(t), cashregister.SourcePayment))

	got, err := f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.False(t, got.Paid, "pending cheques do not count")

	cleared := sales.CheckCleared
	cheque, err = f.svc.Payments.Update(f.ctx, cheque.ID, payments.Patch{CheckStatus: &cleared}, owner)
	require.NoError(t, err)
	assert.True(t, cheque.BalanceApplied)
	assertDecimal(t, "0", f.balance(t))
	assert.Len(t, bySource(f.today(t), cashregister.SourcePayment), 1)

	got, err = f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.True(t, got.Paid)

	rejected := sales.CheckRejected
	_, err = f.svc.Payments.Update(f.ctx, cheque.ID, payments.Patch{CheckStatus: &rejected}, owner)
	assertCode(t, err, apperror.CodeChequeCleared)

	amount := decimal.NewFromInt(150)
	_, err = f.svc.Payments.Update(f.ctx, cheque.ID, payments.Patch{Amount: &amount}, owner)
	assertCode(t, err, apperror.CodePaymentAmountLocked)
}

func TestPayments_ClearedChequeCannotBeCreated(t *testing.T) {
	f := newFixture(t)
	sale := f.creditSale(t, 1)

	_, err := f.svc.Payments.Create(f.ctx, payments.CreateInput{
		SaleID: sale.ID,
		PaymentInput: sales.PaymentInput{
			Amount:      decimal.NewFromInt(100),
			Method:      sales.MethodCheque,
			CheckStatus: sales.CheckCleared,
		},
	}, owner)
	assertCode(t, err, apperror.CodeValidation)
}

func installmentSale(t *testing.T, f *fixture) *sales.Sale {
	t.Helper()
	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(3),
		CreditType: sales.CreditInstallments,
		CustomerID: &f.customerID,
		Plan:       &sales.PlanInput{Count: 3},
	}, owner)
	require.NoError(t, err)
	return sale
}

func TestInstallments_PlanAndCollection(t *testing.T) {
	f := newFixture(t)
	sale := installmentSale(t, f)

	require.Len(t, sale.Installments, 3)
	for i, inst := range sale.Installments {
		assert.Equal(t, i+1, inst.Number)
		assertDecimal(t, "100", inst.Amount)
		assert.Equal(t, sales.InstallmentPending, inst.Status)
	}
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), sale.Installments[0].DueDate)
	assertDecimal(t, "300", f.balance(t))

	first := sale.Installments[0].ID
	paid, err := f.svc.Installments.MarkAsPaid(f.ctx, first, installments.PayInput{}, owner)
	require.NoError(t, err)
	assert.Equal(t, sales.InstallmentPaid, paid.Status)
	assertDecimal(t, "200", f.balance(t))
	require.Len(t, bySource(f.today(t), cashregister.SourceInstallment), 1)

	_, err = f.svc.Installments.MarkAsPaid(f.ctx, first, installments.PayInput{}, owner)
	require.NoError(t, err)
	assertDecimal(t, "200", f.balance(t))
	assert.Len(t, bySource(f.today(t), cashregister.SourceInstallment), 1)

	updated, err := f.svc.Installments.PayMultiple(f.ctx, []id.ID{
		first,
		sale.Installments[1].ID,
		sale.Installments[2].ID,
		id.New(),
	}, installments.PayInput{PaymentMethod: "TRANSFERENCIA"}, owner)
	require.NoError(t, err)
	assert.Len(t, updated, 2)
	assertDecimal(t, "0", f.balance(t))
	assert.Len(t, bySource(f.today(t), cashregister.SourceInstallment), 3)

	require.NoError(t, f.svc.Installments.Void(f.ctx, first, owner))
	assertDecimal(t, "100", f.balance(t))
	assert.Len(t, bySource(f.today(t), cashregister.SourceInstallment), 2)

	remaining, err := f.svc.Installments.ListBySale(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestInstallments_UnevenPlanLifecycle(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(1),
		Total:      decimal.NewFromInt(103),
		CreditType: sales.CreditInstallments,
		CustomerID: &f.customerID,
		Plan:       &sales.PlanInput{Count: 3},
	}, owner)
	require.NoError(t, err)
	require.Len(t, sale.Installments, 3)
	for _, inst := range sale.Installments {
		assertDecimal(t, "34.33", inst.Amount)
	}
	assertDecimal(t, "103", f.balance(t))

	second := sale.Installments[1].ID
	_, err = f.svc.Installments.MarkAsPaid(f.ctx, second, installments.PayInput{}, owner)
	require.NoError(t, err)
	assertDecimal(t, "68.67", f.balance(t))

	updated, err := f.svc.Installments.PayMultiple(f.ctx, []id.ID{
		sale.Installments[0].ID,
		second,
		sale.Installments[2].ID,
	}, installments.PayInput{}, owner)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 1, updated[0].Number)
	assert.Equal(t, 3, updated[1].Number)
	assertDecimal(t, "0.01", f.balance(t))

	movements := bySource(f.today(t), cashregister.SourceInstallment)
	require.Len(t, movements, 3)
	for _, m := range movements {
		assertDecimal(t, "34.33", m.Amount)
	}
}

func TestInstallments_InterestCountsAsProfit(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(3),
		CreditType: sales.CreditInstallments,
		CustomerID: &f.customerID,
		Plan:       &sales.PlanInput{Count: 3, InterestPercent: decimal.NewFromInt(10)},
	}, owner)
	require.NoError(t, err)
	require.Len(t, sale.Installments, 3)
	assertDecimal(t, "10", sale.Installments[0].InterestAmount)

	_, err = f.svc.Installments.MarkAsPaid(f.ctx, sale.Installments[0].ID, installments.PayInput{}, owner)
	require.NoError(t, err)

	movements := bySource(f.today(t), cashregister.SourceInstallment)
	require.Len(t, movements, 1)
	assertDecimal(t, "110", movements[0].Amount)
	assertDecimal(t, "50", movements[0].Profit)
}

func TestInstallments_DepositSettlesBalance(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(1),
		CreditType: sales.CreditInstallments,
		CustomerID: &f.customerID,
		Deposit:    decimal.NewFromInt(10),
		Payments: []sales.PaymentInput{{
			Amount: decimal.NewFromInt(10),
			Method: sales.MethodCash,
		}},
		Plan: &sales.PlanInput{Count: 2},
	}, owner)
	require.NoError(t, err)
	require.Len(t, sale.Payments, 1)
	assert.True(t, sale.Payments[0].BalanceApplied)
	assertDecimal(t, "90", f.balance(t))

	require.Len(t, sale.Installments, 2)
	assertDecimal(t, "45", sale.Installments[0].Amount)
	assertDecimal(t, "45", sale.Installments[1].Amount)

	_, err = f.svc.Installments.PayMultiple(f.ctx, []id.ID{
		sale.Installments[0].ID,
		sale.Installments[1].ID,
	}, installments.PayInput{}, owner)
	require.NoError(t, err)
	assertDecimal(t, "0", f.balance(t))

	require.NoError(t, f.svc.Sales.Void(f.ctx, sale.ID, owner))
	assertDecimal(t, "0", f.balance(t))
	assertDecimal(t, "10", f.stock(t))
}

func TestSaleCreate_PendingChequeSettlesWhenCleared(t *testing.T) {
	f := newFixture(t)

	sale, err := f.svc.Sales.Create(f.ctx, sales.Input{
		Items:      f.items(2),
		Credit:     true,
		CustomerID: &f.customerID,
		Payments: []sales.PaymentInput{
			{Amount: decimal.NewFromInt(50), Method: sales.MethodCash},
			{Amount: decimal.NewFromInt(150), Method: sales.MethodCheque, CheckNumber: "000777"},
		},
	}, owner)
	require.NoError(t, err)
	assertDecimal(t, "150", f.balance(t))

	var cheque sales.Payment
	for _, p := range sale.Payments {
		if p.IsCheque() {
			cheque = p
		}
	}
	require.False(t, cheque.BalanceApplied)

	cleared := sales.CheckCleared
	_, err = f.svc.Payments.Update(f.ctx, cheque.ID, payments.Patch{CheckStatus: &cleared}, owner)
	require.NoError(t, err)
	assertDecimal(t, "0", f.balance(t))

	require.NoError(t, f.svc.Sales.Void(f.ctx, sale.ID, owner))
	assertDecimal(t, "0", f.balance(t))
}

func TestInstallments_OverdueIsDerived(t *testing.T) {
	f := newFixture(t)
	sale := installmentSale(t, f)

	f.clock.Set(time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC))

	items, err := f.svc.Installments.ListBySale(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, sales.InstallmentOverdue, items[0].Status)
	assert.Equal(t, sales.InstallmentPending, items[1].Status)
}

func TestInstallments_Create(t *testing.T) {
	due := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	t.Run("requires installment sale", func(t *testing.T) {
		f := newFixture(t)
		sale := f.creditSale(t, 1)

		_, err := f.svc.Installments.Create(f.ctx, sale.ID, sales.InstallmentInput{
			Number: 1, DueDate: due, Amount: decimal.NewFromInt(100),
		}, owner)
		assertCode(t, err, apperror.CodeNotInstallmentSale)
	})

	t.Run("numbers are unique per sale", func(t *testing.T) {
		f := newFixture(t)
		sale := installmentSale(t, f)

		_, err := f.svc.Installments.Create(f.ctx, sale.ID, sales.InstallmentInput{
			Number: 2, DueDate: due, Amount: decimal.NewFromInt(100),
		}, owner)
		assertCode(t, err, apperror.CodeValidation)

		created, err := f.svc.Installments.Create(f.ctx, sale.ID, sales.InstallmentInput{
			Number: 4, DueDate: due, Amount: decimal.NewFromInt(50),
		}, owner)
		require.NoError(t, err)
		assert.Equal(t, 4, created.Number)
	})
}

func TestRegister_ClosedRejectsMovements(t *testing.T) {
	f := newFixture(t)
	dc := f.today(t)

	_, err := f.svc.Register.Close(f.ctx, owner, dc.ID, cashregister.CloseInput{ClosingAmount: decimal.Zero})
	require.NoError(t, err)

	_, err = f.svc.Sales.Create(f.ctx, sales.Input{Items: f.items(1)}, owner)
	assertCode(t, err, apperror.CodeRegisterClosed)
	assertDecimal(t, "10", f.stock(t))

	_, err = f.svc.Register.Reopen(f.ctx, owner, dc.ID)
	require.NoError(t, err)
	f.cashSale(t, 1)
	assertDecimal(t, "9", f.stock(t))
}

func TestRegister_StampsWithServiceClock(t *testing.T) {
	f := newFixture(t)
	f.today(t)

	later := time.Date(2024, 3, 15, 18, 45, 0, 0, time.UTC)
	f.clock.Set(later)
	f.cashSale(t, 1)

	dc := f.today(t)
	assert.True(t, later.Equal(dc.UpdatedAt), "got %s", dc.UpdatedAt)
	require.Len(t, dc.Movements, 1)
	assert.True(t, later.Equal(dc.Movements[0].CreatedAt))
}

func TestRegister_OpenManualAndClose(t *testing.T) {
	f := newFixture(t)

	dc, err := f.svc.Register.Open(f.ctx, owner, cashregister.OpenInput{OpeningAmount: decimal.NewFromInt(500)})
	require.NoError(t, err)

	_, err = f.svc.Register.Open(f.ctx, owner, cashregister.OpenInput{})
	assertCode(t, err, apperror.CodeRegisterAlreadyOpen)

	f.cashSale(t, 1)
	_, err = f.svc.Register.AddManual(f.ctx, owner, dc.ID, cashregister.ManualInput{
		Type:        cashregister.Expense,
		Amount:      decimal.NewFromInt(30),
		Description: "Limpieza",
	})
	require.NoError(t, err)

	closed, err := f.svc.Register.Close(f.ctx, owner, dc.ID, cashregister.CloseInput{
		ClosingAmount: decimal.NewFromInt(560),
	})
	require.NoError(t, err)
	assert.True(t, closed.Closed)
	assertDecimal(t, "570", closed.ExpectedCash())
	require.NotNil(t, closed.ClosingDifference)
	assertDecimal(t, "-10", *closed.ClosingDifference)

	again, err := f.svc.Register.Close(f.ctx, owner, dc.ID, cashregister.CloseInput{ClosingAmount: decimal.Zero})
	require.NoError(t, err)
	assertDecimal(t, "560", *again.ClosingAmount)
}

func TestExpenses_CreateAndDelete(t *testing.T) {
	f := newFixture(t)

	e, err := f.svc.Expenses.Create(f.ctx, expenses.Input{
		Amount:   decimal.NewFromInt(50),
		Category: "Servicios",
	}, owner)
	require.NoError(t, err)

	dc := f.today(t)
	assertDecimal(t, "50", dc.TotalExpense)
	assertDecimal(t, "50", dc.CashExpense)
	assertDecimal(t, "-50", dc.TotalProfit)

	require.NoError(t, f.svc.Expenses.Delete(f.ctx, e.ID, owner))
	dc = f.today(t)
	assert.Empty(t, dc.Movements)
	assertDecimal(t, "0", dc.TotalProfit)

	err = f.svc.Expenses.Delete(f.ctx, e.ID, owner)
	assert.True(t, apperror.IsNotFound(err))
}

func TestReturns_CreateAndDelete(t *testing.T) {
	f := newFixture(t)

	r, err := f.svc.Returns.Create(f.ctx, returns.Input{
		ProductID:    f.productID,
		Quantity:     decimal.NewFromInt(2),
		RefundAmount: decimal.NewFromInt(150),
		CostPrice:    decimal.NewFromInt(60),
	}, owner)
	require.NoError(t, err)
	assertDecimal(t, "12", f.stock(t))

	dc := f.today(t)
	require.Len(t, bySource(dc, cashregister.SourceReturn), 1)
	assertDecimal(t, "150", dc.TotalExpense)
	assertDecimal(t, "-30", dc.TotalProfit)

	require.NoError(t, f.svc.Returns.Delete(f.ctx, r.ID, owner))
	assertDecimal(t, "10", f.stock(t))
	assert.Empty(t, f.today(t).Movements)
}

func TestReturns_ZeroRefundRecordsNoMovement(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Returns.Create(f.ctx, returns.Input{
		ProductID: f.productID,
		Quantity:  decimal.NewFromInt(1),
	}, owner)
	require.NoError(t, err)

	assertDecimal(t, "11", f.stock(t))
	assert.Empty(t, f.today(t).Movements)
}

func TestBackup_ExportImportRoundTrip(t *testing.T) {
	f := newFixture(t)
	sale := f.cashSale(t, 2)

	snap, err := f.svc.Backup.Export(f.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Version)
	require.Len(t, snap.Sales, 1)

	encoded, err := f.svc.Codec.Encode(snap, backup.CompressionZstd)
	require.NoError(t, err)

	require.NoError(t, f.svc.Sales.Void(f.ctx, sale.ID, owner))
	assertDecimal(t, "10", f.stock(t))

	decoded, err := f.svc.Codec.Decode(encoded, backup.CompressionZstd)
	require.NoError(t, err)
	require.NoError(t, f.svc.Backup.Import(f.ctx, owner, decoded))

	got, err := f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assertDecimal(t, "200", got.Total)
	assertDecimal(t, "8", f.stock(t))
	assert.Len(t, f.today(t).Movements, 1)
}

func TestBackup_ImportRespectsMaintenanceLock(t *testing.T) {
	f := newFixture(t)
	snap, err := f.svc.Backup.Export(f.ctx, owner)
	require.NoError(t, err)

	release, err := f.guard.Acquire(f.ctx, owner, time.Minute)
	require.NoError(t, err)

	active, err := f.svc.Backup.InMaintenance(f.ctx, owner)
	require.NoError(t, err)
	assert.True(t, active)

	err = f.svc.Backup.Import(f.ctx, owner, snap)
	assertCode(t, err, apperror.CodeMaintenance)

	require.NoError(t, release(f.ctx))
	require.NoError(t, f.svc.Backup.Import(f.ctx, owner, snap))

	active, err = f.svc.Backup.InMaintenance(f.ctx, owner)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestBackup_ImportRejectsForeignIDs(t *testing.T) {
	f := newFixture(t)
	sale := f.cashSale(t, 2)

	snap, err := f.svc.Backup.Export(f.ctx, owner)
	require.NoError(t, err)

	err = f.svc.Backup.Import(f.ctx, "user-2", snap)
	assertCode(t, err, apperror.CodeDuplicate)

	got, err := f.svc.Sales.Get(f.ctx, sale.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, owner, got.UserID)
	assertDecimal(t, "8", f.stock(t))
	assert.Len(t, f.today(t).Movements, 1)

	foreign, err := f.svc.Backup.Export(f.ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, foreign.Sales)
	assert.Empty(t, foreign.Products)
}
