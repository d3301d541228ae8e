// Package sales holds the sale aggregate (sale, items, payments, installments)
// and the sale lifecycle manager.
package sales

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain"
)

// CreditType distinguishes open current-account credit from installment plans.
type CreditType string

const (
	CreditNone           CreditType = ""
	CreditCurrentAccount CreditType = "cuenta_corriente"
	CreditInstallments   CreditType = "cuotas"
)

// PaymentMethod is how a payment was made.
type PaymentMethod string

const (
	MethodCash        PaymentMethod = "EFECTIVO"
	MethodTransfer    PaymentMethod = "TRANSFERENCIA"
	MethodCard        PaymentMethod = "TARJETA"
	MethodCheque      PaymentMethod = "CHEQUE"
	MethodInstallment PaymentMethod = "CREDITO_CUOTAS"
)

// CheckStatus is the clearing state of a cheque.
type CheckStatus string

const (
	CheckPending  CheckStatus = "PENDIENTE"
	CheckCleared  CheckStatus = "COBRADO"
	CheckRejected CheckStatus = "RECHAZADO"
)

// InstallmentStatus is the settlement state of an installment.
type InstallmentStatus string

const (
	InstallmentPending InstallmentStatus = "PENDIENTE"
	InstallmentPaid    InstallmentStatus = "PAGADA"
	InstallmentOverdue InstallmentStatus = "VENCIDA"
)

// Item is one sold line.
type Item struct {
	ID          id.ID          `db:"id" json:"id"`
	SaleID      id.ID          `db:"sale_id" json:"saleId"`
	Position    int            `db:"position" json:"position"`
	ProductID   id.ID          `db:"product_id" json:"productId"`
	ProductName string         `db:"product_name" json:"productName,omitempty"`
	Quantity    types.Quantity `db:"quantity" json:"quantity"`
	Unit        string         `db:"unit" json:"unit,omitempty"`
	Price       types.Money    `db:"price" json:"price"`
	CostPrice   types.Money    `db:"cost_price" json:"costPrice"`
	Discount    types.Money    `db:"discount" json:"discount"`
	Surcharge   types.Money    `db:"surcharge" json:"surcharge"`
	Profit      types.Money    `db:"profit" json:"profit"`
}

// Subtotal is price*qty after the line discount and surcharge percentages.
func (i *Item) Subtotal() types.Money {
	gross := i.Price.Mul(i.Quantity)
	net := gross.Sub(types.Percent(gross, i.Discount))
	return types.RoundMoney(net.Add(types.Percent(net, i.Surcharge)))
}

// Payment settles part of a sale.
type Payment struct {
	ID         id.ID         `db:"id" json:"id"`
	SaleID     id.ID         `db:"sale_id" json:"saleId"`
	UserID     string        `db:"user_id" json:"userId"`
	CustomerID *id.ID        `db:"customer_id" json:"customerId,omitempty"`
	Amount     types.Money   `db:"amount" json:"amount"`
	Method     PaymentMethod `db:"method" json:"method"`
	Date       time.Time     `db:"date" json:"date"`

	CheckNumber  string      `db:"check_number" json:"checkNumber,omitempty"`
	CheckBank    string      `db:"check_bank" json:"checkBank,omitempty"`
	CheckDueDate *time.Time  `db:"check_due_date" json:"checkDueDate,omitempty"`
	CheckStatus  CheckStatus `db:"check_status" json:"checkStatus,omitempty"`

	// BalanceApplied is set once the payment has decremented the customer balance.
	BalanceApplied bool      `db:"balance_applied" json:"balanceApplied"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// IsCheque reports whether the payment is a cheque.
func (p *Payment) IsCheque() bool { return p.Method == MethodCheque }

// Counted reports whether the payment counts toward the sale being paid:
// every non-cheque payment, and cheques once cleared.
func (p *Payment) Counted() bool {
	return !p.IsCheque() || p.CheckStatus == CheckCleared
}

// Installment is one scheduled part of an installment-credit sale.
type Installment struct {
	ID             id.ID             `db:"id" json:"id"`
	SaleID         id.ID             `db:"sale_id" json:"saleId"`
	UserID         string            `db:"user_id" json:"userId"`
	Number         int               `db:"number" json:"number"`
	DueDate        time.Time         `db:"due_date" json:"dueDate"`
	Amount         types.Money       `db:"amount" json:"amount"`
	InterestAmount types.Money       `db:"interest_amount" json:"interestAmount"`
	PenaltyAmount  types.Money       `db:"penalty_amount" json:"penaltyAmount"`
	Status         InstallmentStatus `db:"status" json:"status"`
	PaymentDate    *time.Time        `db:"payment_date" json:"paymentDate,omitempty"`
	PaymentMethod  string            `db:"payment_method" json:"paymentMethod,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
}

// TotalAmount is amount + interest + penalty.
func (i *Installment) TotalAmount() types.Money {
	return i.Amount.Add(i.InterestAmount).Add(i.PenaltyAmount)
}

// IsPaid reports whether the installment reached its terminal state.
func (i *Installment) IsPaid() bool { return i.Status == InstallmentPaid }

// EffectiveStatus derives overdue from the due date; it is never stored.
func (i *Installment) EffectiveStatus(now time.Time) InstallmentStatus {
	if i.IsPaid() {
		return InstallmentPaid
	}
	if i.DueDate.Before(clock.StartOfDay(now)) {
		return InstallmentOverdue
	}
	return InstallmentPending
}

// Snapshot is the financial state of a sale captured in its edit history.
type Snapshot struct {
	Total       types.Money `json:"total"`
	TotalProfit types.Money `json:"totalProfit"`
	Paid        bool        `json:"paid"`
	Items       []Item      `json:"items"`
	Payments    []Payment   `json:"payments"`
}

// EditSnapshot is one entry of a sale's edit history.
type EditSnapshot struct {
	EditedAt time.Time `json:"editedAt"`
	EditedBy string    `json:"editedBy,omitempty"`
	Before   Snapshot  `json:"before"`
	After    Snapshot  `json:"after"`
}

// Sale is the root of the aggregate.
type Sale struct {
	ID                     id.ID          `db:"id" json:"id"`
	UserID                 string         `db:"user_id" json:"userId"`
	Number                 string         `db:"number" json:"number,omitempty"`
	Date                   time.Time      `db:"date" json:"date"`
	Total                  types.Money    `db:"total" json:"total"`
	TotalProfit            types.Money    `db:"total_profit" json:"totalProfit"`
	Discount               types.Money    `db:"discount" json:"discount"`
	Deposit                types.Money    `db:"deposit" json:"deposit"`
	ManualAmount           types.Money    `db:"manual_amount" json:"manualAmount"`
	ManualProfitPercentage types.Money    `db:"manual_profit_percentage" json:"manualProfitPercentage"`
	Credit                 bool           `db:"credit" json:"credit"`
	CreditType             CreditType     `db:"credit_type" json:"creditType,omitempty"`
	Paid                   bool           `db:"paid" json:"paid"`
	CustomerID             *id.ID         `db:"customer_id" json:"customerId,omitempty"`
	PriceListID            *id.ID         `db:"price_list_id" json:"priceListId,omitempty"`
	Edited                 bool           `db:"edited" json:"edited"`
	EditHistory            []EditSnapshot `db:"edit_history" json:"editHistory,omitempty"`
	CreatedAt              time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt              time.Time      `db:"updated_at" json:"updatedAt"`

	Items        []Item        `db:"-" json:"items"`
	Payments     []Payment     `db:"-" json:"payments"`
	Installments []Installment `db:"-" json:"installments,omitempty"`
}

// CountedPayments sums the payments that count toward settlement.
func CountedPayments(payments []Payment) types.Money {
	total := decimal.Zero
	for i := range payments {
		if payments[i].Counted() {
			total = total.Add(payments[i].Amount)
		}
	}
	return total
}

// ApplyCountedPayments marks the counted payments as settled against the
// customer balance and returns their sum. Pending cheques settle when cleared.
func (s *Sale) ApplyCountedPayments() types.Money {
	total := decimal.Zero
	for i := range s.Payments {
		if s.Payments[i].Counted() && !s.Payments[i].BalanceApplied {
			s.Payments[i].BalanceApplied = true
			total = total.Add(s.Payments[i].Amount)
		}
	}
	return total
}

// RecomputePaid applies the paid rule over payments and reports whether it changed.
func (s *Sale) RecomputePaid(payments []Payment) bool {
	paid := types.Settled(CountedPayments(payments), s.Total)
	changed := paid != s.Paid
	s.Paid = paid
	return changed
}

// ProfitShare pro-rates the sale's profit over amount.
func (s *Sale) ProfitShare(amount types.Money) types.Money {
	if !s.Total.IsPositive() {
		return decimal.Zero
	}
	return types.RoundMoney(s.TotalProfit.Mul(amount).Div(s.Total))
}

func (s *Sale) snapshot() Snapshot {
	return Snapshot{
		Total:       s.Total,
		TotalProfit: s.TotalProfit,
		Paid:        s.Paid,
		Items:       append([]Item(nil), s.Items...),
		Payments:    append([]Payment(nil), s.Payments...),
	}
}

// Numberer issues receipt numbers inside the caller's transaction.
type Numberer interface {
	Next(ctx context.Context, userID string, at time.Time) (string, error)
}

// ListFilter narrows sale listings.
type ListFilter struct {
	domain.ListFilter
	CustomerID *id.ID
	Credit     *bool
	Paid       *bool
}

// Repository persists sale headers and their item collections.
type Repository interface {
	// Create inserts the sale with items, payments and installments.
	Create(ctx context.Context, sale *Sale) error
	GetByID(ctx context.Context, saleID id.ID) (*Sale, error)
	// GetForUpdate locks the sale row and loads its children.
	GetForUpdate(ctx context.Context, saleID id.ID) (*Sale, error)
	UpdateHeader(ctx context.Context, sale *Sale) error
	// ReplaceChildren deletes and recreates items, payments and installments.
	ReplaceChildren(ctx context.Context, sale *Sale) error
	// Delete removes the sale and, by cascade, its children.
	Delete(ctx context.Context, saleID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Sale], error)
}

// PaymentRepository persists payments.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID id.ID, forUpdate bool) (*Payment, error)
	UpdatePayment(ctx context.Context, p *Payment) error
	DeletePayment(ctx context.Context, paymentID id.ID) error
	ListPayments(ctx context.Context, saleID id.ID) ([]Payment, error)
}

// InstallmentRepository persists installments.
type InstallmentRepository interface {
	CreateInstallments(ctx context.Context, items []Installment) error
	GetInstallment(ctx context.Context, installmentID id.ID, forUpdate bool) (*Installment, error)
	UpdateInstallment(ctx context.Context, inst *Installment) error
	DeleteInstallment(ctx context.Context, installmentID id.ID) error
	ListInstallments(ctx context.Context, saleID id.ID) ([]Installment, error)
}
