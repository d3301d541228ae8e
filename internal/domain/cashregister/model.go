// Package cashregister owns the per-user, per-UTC-day cash ledger.
//
// A DailyCash document holds an ordered list of movements plus cached totals.
// The totals are always a pure fold over the movements (see Fold); movements
// are never edited in place, they are deleted and recreated when their source
// changes.
package cashregister

import (
	"context"
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// MovementType is the direction of money.
type MovementType string

const (
	Income  MovementType = "INGRESO"
	Expense MovementType = "EGRESO"
)

// Source identifies which lifecycle produced a movement.
type Source string

const (
	SourceSale        Source = "VENTA"
	SourcePayment     Source = "PAGO"
	SourceInstallment Source = "CUOTA"
	SourceExpense     Source = "GASTO"
	SourceReturn      Source = "DEVOLUCION"
	SourceManual      Source = "MANUAL"
)

// Payment-method hints carried by movements.
const (
	MethodCash           = "EFECTIVO"
	MethodCurrentAccount = "CUENTA_CORRIENTE"
)

// Movement is one signed, typed entry of a daily register.
type Movement struct {
	ID            id.ID        `db:"id" json:"id"`
	DailyCashID   id.ID        `db:"daily_cash_id" json:"dailyCashId"`
	UserID        string       `db:"user_id" json:"userId"`
	Type          MovementType `db:"type" json:"type"`
	Amount        types.Money  `db:"amount" json:"amount"`
	PaymentMethod string       `db:"payment_method" json:"paymentMethod"`
	Profit        types.Money  `db:"profit" json:"profit"`
	Description   string       `db:"description" json:"description,omitempty"`
	Source        Source       `db:"source" json:"source"`

	SaleID        *id.ID `db:"sale_id" json:"saleId,omitempty"`
	PaymentID     *id.ID `db:"payment_id" json:"paymentId,omitempty"`
	InstallmentID *id.ID `db:"installment_id" json:"installmentId,omitempty"`
	ExpenseID     *id.ID `db:"expense_id" json:"expenseId,omitempty"`
	ReturnID      *id.ID `db:"return_id" json:"returnId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Totals are the cached aggregates of a register.
type Totals struct {
	CashIncome   types.Money `db:"cash_income" json:"cashIncome"`
	CashExpense  types.Money `db:"cash_expense" json:"cashExpense"`
	OtherIncome  types.Money `db:"other_income" json:"otherIncome"`
	TotalIncome  types.Money `db:"total_income" json:"totalIncome"`
	TotalExpense types.Money `db:"total_expense" json:"totalExpense"`
	TotalProfit  types.Money `db:"total_profit" json:"totalProfit"`
}

// DailyCash is the register of one user for one UTC calendar day.
type DailyCash struct {
	ID     id.ID     `db:"id" json:"id"`
	UserID string    `db:"user_id" json:"userId"`
	Date   time.Time `db:"day" json:"date"`
	Closed bool      `db:"closed" json:"closed"`

	OpeningAmount     types.Money  `db:"opening_amount" json:"openingAmount"`
	ClosingAmount     *types.Money `db:"closing_amount" json:"closingAmount,omitempty"`
	ClosingDifference *types.Money `db:"closing_difference" json:"closingDifference,omitempty"`
	ClosingDate       *time.Time   `db:"closing_date" json:"closingDate,omitempty"`
	Comments          string       `db:"comments" json:"comments,omitempty"`
	OpenedBy          string       `db:"opened_by" json:"openedBy,omitempty"`
	ClosedBy          string       `db:"closed_by" json:"closedBy,omitempty"`

	Totals

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`

	Movements []Movement `db:"-" json:"movements"`
}

// ExpectedCash is the drawer amount implied by the movements.
func (d *DailyCash) ExpectedCash() types.Money {
	return d.OpeningAmount.Add(d.CashIncome).Sub(d.CashExpense)
}

func (d *DailyCash) reopen() {
	d.Closed = false
	d.ClosingAmount = nil
	d.ClosingDifference = nil
	d.ClosingDate = nil
	d.ClosedBy = ""
}

// Link selects movements by their origin. Nil fields are wildcards;
// an empty Source matches every source.
type Link struct {
	Source        Source
	SaleID        *id.ID
	PaymentID     *id.ID
	InstallmentID *id.ID
	ExpenseID     *id.ID
	ReturnID      *id.ID
}

// Empty reports whether the link would match every movement.
func (l Link) Empty() bool {
	return l.SaleID == nil && l.PaymentID == nil && l.InstallmentID == nil &&
		l.ExpenseID == nil && l.ReturnID == nil
}

// Matches reports whether m originates from l.
func (l Link) Matches(m *Movement) bool {
	if l.Source != "" && m.Source != l.Source {
		return false
	}
	return sameRef(l.SaleID, m.SaleID) &&
		sameRef(l.PaymentID, m.PaymentID) &&
		sameRef(l.InstallmentID, m.InstallmentID) &&
		sameRef(l.ExpenseID, m.ExpenseID) &&
		sameRef(l.ReturnID, m.ReturnID)
}

func sameRef(want, got *id.ID) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

// Repository persists registers and their movements.
type Repository interface {
	// GetByDay returns the user's register whose day falls in [start, end).
	GetByDay(ctx context.Context, userID string, start, end time.Time, forUpdate bool) (*DailyCash, error)
	GetByID(ctx context.Context, dailyCashID id.ID, forUpdate bool) (*DailyCash, error)

	// CreateIfAbsent inserts dc unless the (user, day) pair already exists.
	CreateIfAbsent(ctx context.Context, dc *DailyCash) error
	// Create inserts dc and fails with a conflict when the day already has a register.
	Create(ctx context.Context, dc *DailyCash) error
	Update(ctx context.Context, dc *DailyCash) error

	AddMovement(ctx context.Context, m *Movement) error
	ListMovements(ctx context.Context, dailyCashID id.ID) ([]Movement, error)
	// DeleteMovements removes the user's movements matching link and
	// returns the ids of the registers that lost at least one movement.
	DeleteMovements(ctx context.Context, userID string, link Link) ([]id.ID, error)
}
