package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/validate"
)

// ItemInput is one requested sale line. Profit is persisted verbatim when given.
type ItemInput struct {
	ProductID   id.ID            `json:"productId"`
	ProductName string           `json:"productName"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"gt=0"`
	Unit        string           `json:"unit"`
	Price       decimal.Decimal  `json:"price" validate:"gte=0"`
	CostPrice   decimal.Decimal  `json:"costPrice" validate:"gte=0"`
	Discount    decimal.Decimal  `json:"discount" validate:"gte=0,lte=100"`
	Surcharge   decimal.Decimal  `json:"surcharge" validate:"gte=0"`
	Profit      *decimal.Decimal `json:"profit"`
}

// PaymentInput is a payment embedded in a sale or posted on its own.
type PaymentInput struct {
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	Method       PaymentMethod   `json:"method" validate:"required,oneof=EFECTIVO TRANSFERENCIA TARJETA CHEQUE CREDITO_CUOTAS"`
	Date         *time.Time      `json:"date"`
	CheckNumber  string          `json:"checkNumber"`
	CheckBank    string          `json:"checkBank"`
	CheckDueDate *time.Time      `json:"checkDueDate"`
	CheckStatus  CheckStatus     `json:"checkStatus" validate:"omitempty,oneof=PENDIENTE COBRADO RECHAZADO"`
}

// InstallmentInput carries caller-computed amortization values.
type InstallmentInput struct {
	Number         int             `json:"number" validate:"gte=1"`
	DueDate        time.Time       `json:"dueDate" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	InterestAmount decimal.Decimal `json:"interestAmount" validate:"gte=0"`
	PenaltyAmount  decimal.Decimal `json:"penaltyAmount" validate:"gte=0"`
}

// PlanInput asks the manager to generate the schedule itself.
type PlanInput struct {
	Count           int                    `json:"count" validate:"gte=1"`
	InterestPercent decimal.Decimal        `json:"interestPercent" validate:"gte=0"`
	FirstDueDate    *time.Time             `json:"firstDueDate"`
	Frequency       amortization.Frequency `json:"frequency" validate:"omitempty,oneof=monthly biweekly weekly"`
}

// Input is the full content of a sale, used by both create and edit.
type Input struct {
	Date                   *time.Time      `json:"date"`
	Total                  decimal.Decimal `json:"total" validate:"gte=0"`
	Discount               decimal.Decimal `json:"discount" validate:"gte=0"`
	Deposit                decimal.Decimal `json:"deposit" validate:"gte=0"`
	ManualAmount           decimal.Decimal `json:"manualAmount" validate:"gte=0"`
	ManualProfitPercentage decimal.Decimal `json:"manualProfitPercentage" validate:"gte=0,lte=100"`
	Credit                 bool            `json:"credit"`
	CreditType             CreditType      `json:"creditType" validate:"omitempty,oneof=cuenta_corriente cuotas"`
	CustomerID             *id.ID          `json:"customerId"`
	PriceListID            *id.ID          `json:"priceListId"`

	Items        []ItemInput        `json:"items" validate:"dive"`
	Payments     []PaymentInput     `json:"payments" validate:"dive"`
	Installments []InstallmentInput `json:"installments" validate:"dive"`
	Plan         *PlanInput         `json:"plan"`
}

// Validate checks shape and cross-field consistency. It never touches storage.
func (in *Input) Validate() error {
	if err := validate.Struct(in); err != nil {
		return err
	}
	if len(in.Items) == 0 && !in.ManualAmount.IsPositive() {
		return apperror.NewValidation("sale must have items or a manual amount").
			WithDetail("field", "items")
	}
	for i := range in.Items {
		if id.IsNil(in.Items[i].ProductID) {
			return apperror.NewValidation("product is required").
				WithDetail("field", "items").WithDetail("index", i)
		}
	}
	if in.CreditType != CreditNone {
		in.Credit = true
	}
	if in.Credit && in.CreditType == CreditNone {
		in.CreditType = CreditCurrentAccount
	}
	if in.CreditType != CreditInstallments && (len(in.Installments) > 0 || in.Plan != nil) {
		return apperror.NewValidation("installments require an installment-credit sale").
			WithDetail("field", "installments")
	}
	if len(in.Installments) > 0 && in.Plan != nil {
		return apperror.NewValidation("give either installments or a plan, not both").
			WithDetail("field", "plan")
	}
	if err := uniqueNumbers(in.Installments, nil); err != nil {
		return err
	}
	for i := range in.Payments {
		if in.Payments[i].Method == MethodCheque && in.Payments[i].CheckStatus == CheckCleared {
			return apperror.NewValidation("cheques are registered pending and cleared later").
				WithDetail("field", "payments").WithDetail("index", i)
		}
	}
	return nil
}

func uniqueNumbers(incoming []InstallmentInput, existing []Installment) error {
	seen := make(map[int]bool, len(incoming)+len(existing))
	for i := range existing {
		seen[existing[i].Number] = true
	}
	for _, in := range incoming {
		if seen[in.Number] {
			return apperror.NewValidation("installment number must be unique per sale").
				WithDetail("field", "number").WithDetail("value", in.Number)
		}
		seen[in.Number] = true
	}
	return nil
}

// UniqueNumbers checks that incoming installment numbers do not collide
// with each other or with the sale's existing installments.
func UniqueNumbers(incoming []InstallmentInput, existing []Installment) error {
	return uniqueNumbers(incoming, existing)
}
