package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/core/tx"
	"retailledger/internal/core/types"
	"retailledger/internal/domain"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/stock"
	"retailledger/pkg/logger"
)

// Manager orchestrates the sale lifecycle. Each operation is one transaction
// touching the sale, stock, customer balance and daily cash ledgers.
type Manager struct {
	repo         Repository
	payments     PaymentRepository
	installments InstallmentRepository
	stock        *stock.Ledger
	balances     *customer.Ledger
	register     *cashregister.Service
	numbers      Numberer
	txManager    tx.Manager
	clock        clock.Clock
	limits       amortization.Limits
}

// Deps groups the manager's collaborators.
type Deps struct {
	Repo         Repository
	Payments     PaymentRepository
	Installments InstallmentRepository
	Stock        *stock.Ledger
	Balances     *customer.Ledger
	Register     *cashregister.Service
	// Numbers is optional; without it sales carry no receipt number.
	Numbers   Numberer
	TxManager tx.Manager
	Clock     clock.Clock
	Limits    amortization.Limits
}

// NewManager creates a sale lifecycle manager.
func NewManager(d Deps) *Manager {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Limits.MaxCount == 0 {
		d.Limits = amortization.DefaultLimits()
	}
	return &Manager{
		repo:         d.Repo,
		payments:     d.Payments,
		installments: d.Installments,
		stock:        d.Stock,
		balances:     d.Balances,
		register:     d.Register,
		numbers:      d.Numbers,
		txManager:    d.TxManager,
		clock:        d.Clock,
		limits:       d.Limits,
	}
}

// Create registers a sale and applies its effects on every ledger.
func (m *Manager) Create(ctx context.Context, in Input, userID string) (*Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := m.clock.Now()
	sale := &Sale{
		ID:        id.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.fill(sale, in, now); err != nil {
		return nil, err
	}
	settled := decimal.Zero
	if sale.Credit && sale.CustomerID != nil {
		settled = sale.ApplyCountedPayments()
	}

	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if m.numbers != nil {
			number, err := m.numbers.Next(ctx, userID, sale.Date)
			if err != nil {
				return fmt.Errorf("assign number: %w", err)
			}
			sale.Number = number
		}
		if err := m.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := m.decrementStock(ctx, userID, sale.Items); err != nil {
			return err
		}
		if sale.Credit && sale.CustomerID != nil {
			if _, err := m.balances.Charge(ctx, userID, *sale.CustomerID, sale.Total); err != nil {
				return fmt.Errorf("charge customer: %w", err)
			}
			if settled.IsPositive() {
				if _, err := m.balances.Settle(ctx, userID, *sale.CustomerID, settled); err != nil {
					return fmt.Errorf("settle embedded payments: %w", err)
				}
			}
		}
		if _, err := m.register.Record(ctx, userID, m.saleMovement(sale)); err != nil {
			return fmt.Errorf("record movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale created",
		"id", sale.ID, "number", sale.Number, "total", sale.Total, "profit", sale.TotalProfit,
		"credit_type", sale.CreditType, "paid", sale.Paid)
	return sale, nil
}

// Get returns an owned sale with its children.
func (m *Manager) Get(ctx context.Context, saleID id.ID, userID string) (*Sale, error) {
	sale, err := m.owned(ctx, saleID, userID, false)
	if err != nil {
		return nil, err
	}
	m.applyEffectiveStatus(sale.Installments)
	return sale, nil
}

// List returns the caller's sales.
func (m *Manager) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error) {
	filter.Normalize()
	return m.repo.List(ctx, filter)
}

// Update replaces the content of a same-day, non-credit sale and reconciles
// stock and the daily register in the same transaction: restore the original
// items, apply the new ones, replace the sale's movement, refold the day.
func (m *Manager) Update(ctx context.Context, saleID id.ID, in Input, userID string) (*Sale, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var updated *Sale
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := m.owned(ctx, saleID, userID, true)
		if err != nil {
			return err
		}
		now := m.clock.Now()
		if err := m.checkEditable(ctx, original, in, now, userID); err != nil {
			return err
		}

		if err := m.restoreStock(ctx, userID, original.Items); err != nil {
			return err
		}

		next := &Sale{
			ID:          original.ID,
			UserID:      original.UserID,
			Number:      original.Number,
			CreatedAt:   original.CreatedAt,
			UpdatedAt:   now,
			Edited:      true,
			EditHistory: original.EditHistory,
		}
		if err := m.fill(next, in, original.Date); err != nil {
			return err
		}
		if err := m.decrementStock(ctx, userID, next.Items); err != nil {
			return err
		}

		next.EditHistory = append(next.EditHistory, EditSnapshot{
			EditedAt: now,
			EditedBy: userID,
			Before:   original.snapshot(),
			After:    next.snapshot(),
		})

		if err := m.repo.UpdateHeader(ctx, next); err != nil {
			return fmt.Errorf("update sale: %w", err)
		}
		if err := m.repo.ReplaceChildren(ctx, next); err != nil {
			return fmt.Errorf("replace sale children: %w", err)
		}

		// Payments were replaced, so their movements go with the sale's own.
		for _, source := range []cashregister.Source{cashregister.SourceSale, cashregister.SourcePayment} {
			if err := m.register.RemoveLinked(ctx, userID, cashregister.Link{
				Source: source,
				SaleID: &next.ID,
			}); err != nil {
				return fmt.Errorf("remove sale movements: %w", err)
			}
		}
		if _, err := m.register.Record(ctx, userID, m.saleMovement(next)); err != nil {
			return fmt.Errorf("record movement: %w", err)
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale edited",
		"id", updated.ID, "total", updated.Total, "edits", len(updated.EditHistory))
	return updated, nil
}

// Void undoes every effect of the sale, including later payments and paid
// installments, then deletes it.
func (m *Manager) Void(ctx context.Context, saleID id.ID, userID string) error {
	var voided *Sale
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := m.owned(ctx, saleID, userID, true)
		if err != nil {
			return err
		}

		if err := m.restoreStock(ctx, userID, sale.Items); err != nil {
			return err
		}

		if sale.CustomerID != nil {
			refund := decimal.Zero
			if sale.Credit {
				refund = refund.Add(sale.Total)
			}
			for i := range sale.Payments {
				if sale.Payments[i].BalanceApplied {
					refund = refund.Sub(sale.Payments[i].Amount)
				}
			}
			for i := range sale.Installments {
				if sale.Installments[i].IsPaid() {
					refund = refund.Sub(sale.Installments[i].TotalAmount())
				}
			}
			if !refund.IsZero() {
				if _, err := m.balances.Adjust(ctx, userID, *sale.CustomerID, refund.Neg()); err != nil {
					return fmt.Errorf("reverse customer balance: %w", err)
				}
			}
		}

		// Returns keep their refund movement; only the sale's own sources go.
		for _, source := range []cashregister.Source{
			cashregister.SourceSale,
			cashregister.SourcePayment,
			cashregister.SourceInstallment,
		} {
			if err := m.register.RemoveLinked(ctx, userID, cashregister.Link{
				Source: source,
				SaleID: &sale.ID,
			}); err != nil {
				return fmt.Errorf("remove movements: %w", err)
			}
		}
		if err := m.repo.Delete(ctx, sale.ID); err != nil {
			return fmt.Errorf("delete sale: %w", err)
		}
		voided = sale
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "sale voided", "id", voided.ID, "total", voided.Total)
	return nil
}

// fill computes the authoritative sale content from input.
func (m *Manager) fill(sale *Sale, in Input, defaultDate time.Time) error {
	sale.Date = defaultDate
	if in.Date != nil {
		sale.Date = *in.Date
	}
	sale.Discount = in.Discount
	sale.Deposit = in.Deposit
	sale.ManualAmount = in.ManualAmount
	sale.ManualProfitPercentage = in.ManualProfitPercentage
	sale.Credit = in.Credit
	sale.CreditType = in.CreditType
	sale.CustomerID = in.CustomerID
	sale.PriceListID = in.PriceListID

	subtotal := decimal.Zero
	profit := types.Percent(in.ManualAmount, in.ManualProfitPercentage)
	sale.Items = make([]Item, 0, len(in.Items))
	for i, it := range in.Items {
		item := Item{
			ID:          id.New(),
			SaleID:      sale.ID,
			Position:    i + 1,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Unit:        it.Unit,
			Price:       it.Price,
			CostPrice:   it.CostPrice,
			Discount:    it.Discount,
			Surcharge:   it.Surcharge,
		}
		if it.Profit != nil {
			item.Profit = *it.Profit
		} else {
			item.Profit = types.RoundMoney(item.Subtotal().Sub(item.CostPrice.Mul(item.Quantity)))
		}
		subtotal = subtotal.Add(item.Subtotal())
		profit = profit.Add(item.Profit)
		sale.Items = append(sale.Items, item)
	}

	sale.Total = in.Total
	if !sale.Total.IsPositive() {
		sale.Total = subtotal.Add(in.ManualAmount).Sub(in.Discount)
	}
	sale.Total = types.RoundMoney(sale.Total)
	if !sale.Total.IsPositive() {
		return apperror.NewValidation("sale total must be positive").WithDetail("field", "total")
	}
	sale.TotalProfit = types.RoundMoney(profit)

	sale.Payments = make([]Payment, 0, len(in.Payments))
	for _, p := range in.Payments {
		sale.Payments = append(sale.Payments, NewPayment(sale, p, m.clock.Now()))
	}
	sale.RecomputePaid(sale.Payments)

	installments, err := m.buildInstallments(sale, in)
	if err != nil {
		return err
	}
	sale.Installments = installments
	return nil
}

func (m *Manager) buildInstallments(sale *Sale, in Input) ([]Installment, error) {
	now := m.clock.Now()
	if in.Plan != nil {
		first := clock.StartOfDay(now).AddDate(0, 1, 0)
		if in.Plan.FirstDueDate != nil {
			first = *in.Plan.FirstDueDate
		}
		lines, err := amortization.Generate(amortization.Plan{
			Principal:       sale.Total.Sub(sale.Deposit),
			Count:           in.Plan.Count,
			InterestPercent: in.Plan.InterestPercent,
			FirstDueDate:    first,
			Frequency:       in.Plan.Frequency,
		}, m.limits)
		if err != nil {
			return nil, err
		}
		out := make([]Installment, 0, len(lines))
		for _, l := range lines {
			out = append(out, NewInstallment(sale, InstallmentInput{
				Number:         l.Number,
				DueDate:        l.DueDate,
				Amount:         l.Amount,
				InterestAmount: l.InterestAmount,
			}, now))
		}
		return out, nil
	}

	if len(in.Installments) > m.limits.MaxCount {
		return nil, apperror.NewBusinessRule(apperror.CodePlanOutOfBounds,
			fmt.Sprintf("installment count must be between 1 and %d", m.limits.MaxCount))
	}
	out := make([]Installment, 0, len(in.Installments))
	for _, ii := range in.Installments {
		out = append(out, NewInstallment(sale, ii, now))
	}
	return out, nil
}

func (m *Manager) checkEditable(ctx context.Context, sale *Sale, in Input, now time.Time, userID string) error {
	notEditable := func(reason string) error {
		return apperror.NewBusinessRule(apperror.CodeSaleNotEditable, "sale cannot be edited: "+reason).
			WithDetail("sale_id", sale.ID.String())
	}
	if sale.Credit || in.Credit {
		return notEditable("credit sales are not editable")
	}
	if !clock.SameDay(sale.CreatedAt, now) {
		return notEditable("only same-day sales are editable")
	}
	for i := range sale.Payments {
		if sale.Payments[i].BalanceApplied {
			return notEditable("sale has settled payments")
		}
	}
	today, err := m.register.FindOrCreate(ctx, userID, now)
	if err != nil {
		return err
	}
	if today.Closed {
		return apperror.NewRegisterClosed(today.Date.Format(clock.DateLayout))
	}
	return nil
}

func (m *Manager) decrementStock(ctx context.Context, userID string, items []Item) error {
	for i := range items {
		if _, err := m.stock.Decrement(ctx, userID, items[i].ProductID, items[i].Quantity, items[i].Unit); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}
	return nil
}

func (m *Manager) restoreStock(ctx context.Context, userID string, items []Item) error {
	for i := range items {
		_, err := m.stock.Restore(ctx, userID, items[i].ProductID, items[i].Quantity, items[i].Unit)
		if err != nil {
			if apperror.IsNotFound(err) {
				logger.Warn(ctx, "stock not restored, product missing", "product_id", items[i].ProductID)
				continue
			}
			return fmt.Errorf("restore stock: %w", err)
		}
	}
	return nil
}

func (m *Manager) saleMovement(sale *Sale) *cashregister.Movement {
	return &cashregister.Movement{
		Type:          cashregister.Income,
		Amount:        sale.Total,
		Profit:        sale.TotalProfit,
		PaymentMethod: methodHint(sale),
		Description:   "Venta",
		Source:        cashregister.SourceSale,
		SaleID:        &sale.ID,
	}
}

// methodHint is the first payment's method, else CUENTA_CORRIENTE for credit, else EFECTIVO.
func methodHint(sale *Sale) string {
	if len(sale.Payments) > 0 {
		return string(sale.Payments[0].Method)
	}
	if sale.Credit {
		return cashregister.MethodCurrentAccount
	}
	return cashregister.MethodCash
}

func (m *Manager) owned(ctx context.Context, saleID id.ID, userID string, forUpdate bool) (*Sale, error) {
	var (
		sale *Sale
		err  error
	)
	if forUpdate {
		sale, err = m.repo.GetForUpdate(ctx, saleID)
	} else {
		sale, err = m.repo.GetByID(ctx, saleID)
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, err
	}
	if sale.UserID != userID {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	return sale, nil
}

func (m *Manager) applyEffectiveStatus(items []Installment) {
	now := m.clock.Now()
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
}

// NewPayment builds a payment row for sale from input.
func NewPayment(sale *Sale, in PaymentInput, now time.Time) Payment {
	p := Payment{
		ID:           id.New(),
		SaleID:       sale.ID,
		UserID:       sale.UserID,
		CustomerID:   sale.CustomerID,
		Amount:       types.RoundMoney(in.Amount),
		Method:       in.Method,
		Date:         now,
		CheckNumber:  in.CheckNumber,
		CheckBank:    in.CheckBank,
		CheckDueDate: in.CheckDueDate,
		CheckStatus:  in.CheckStatus,
		CreatedAt:    now,
	}
	if in.Date != nil {
		p.Date = *in.Date
	}
	if p.IsCheque() && p.CheckStatus == "" {
		p.CheckStatus = CheckPending
	}
	if !p.IsCheque() {
		p.CheckStatus = ""
	}
	return p
}

// NewInstallment builds a pending installment row for sale.
func NewInstallment(sale *Sale, in InstallmentInput, now time.Time) Installment {
	return Installment{
		ID:             id.New(),
		SaleID:         sale.ID,
		UserID:         sale.UserID,
		Number:         in.Number,
		DueDate:        clock.StartOfDay(in.DueDate),
		Amount:         types.RoundMoney(in.Amount),
		InterestAmount: types.RoundMoney(in.InterestAmount),
		PenaltyAmount:  types.RoundMoney(in.PenaltyAmount),
		Status:         InstallmentPending,
		CreatedAt:      now,
	}
}
