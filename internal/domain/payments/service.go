// Package payments manages payments posted against an existing sale,
// including the deferred clearing of cheques.
package payments

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
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/validate"
	"retailledger/pkg/logger"
)

// CreateInput posts a payment for a sale.
type CreateInput struct {
	SaleID id.ID `json:"saleId"`
	sales.PaymentInput
}

// Patch is a field patch of a payment. Nil fields are left unchanged.
type Patch struct {
	Amount       *decimal.Decimal   `json:"amount" validate:"omitempty,gt=0"`
	Date         *time.Time         `json:"date"`
	CheckNumber  *string            `json:"checkNumber"`
	CheckBank    *string            `json:"checkBank"`
	CheckDueDate *time.Time         `json:"checkDueDate"`
	CheckStatus  *sales.CheckStatus `json:"checkStatus" validate:"omitempty,oneof=PENDIENTE COBRADO RECHAZADO"`
}

// Manager is the payment lifecycle manager.
type Manager struct {
	sales     sales.Repository
	repo      sales.PaymentRepository
	balances  *customer.Ledger
	register  *cashregister.Service
	txManager tx.Manager
	clock     clock.Clock
}

// NewManager creates a payment lifecycle manager.
func NewManager(
	saleRepo sales.Repository,
	repo sales.PaymentRepository,
	balances *customer.Ledger,
	register *cashregister.Service,
	txManager tx.Manager,
	clk clock.Clock,
) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	return &Manager{
		sales:     saleRepo,
		repo:      repo,
		balances:  balances,
		register:  register,
		txManager: txManager,
		clock:     clk,
	}
}

// Create persists a payment and, unless it is a cheque, applies its balance
// and register effects immediately.
func (m *Manager) Create(ctx context.Context, in CreateInput, userID string) (*sales.Payment, error) {
	if id.IsNil(in.SaleID) {
		return nil, apperror.NewValidation("sale is required").WithDetail("field", "saleId")
	}
	if err := validate.Struct(in.PaymentInput); err != nil {
		return nil, err
	}
	if in.Method == sales.MethodCheque && in.CheckStatus == sales.CheckCleared {
		return nil, apperror.NewValidation("cheques are registered pending and cleared later").
			WithDetail("field", "checkStatus")
	}

	var payment sales.Payment
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := m.ownedSale(ctx, in.SaleID, userID)
		if err != nil {
			return err
		}

		payment = sales.NewPayment(sale, in.PaymentInput, m.clock.Now())
		if err := m.repo.CreatePayment(ctx, &payment); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		if !payment.IsCheque() {
			if err := m.settle(ctx, sale, &payment, userID); err != nil {
				return err
			}
		}
		return m.recomputePaid(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment created",
		"id", payment.ID, "sale_id", payment.SaleID, "amount", payment.Amount, "method", payment.Method)
	return &payment, nil
}

// Update applies a patch. Only a cheque reaching COBRADO triggers the
// deferred effects; other edits only refresh the sale's paid flag.
func (m *Manager) Update(ctx context.Context, paymentID id.ID, patch Patch, userID string) (*sales.Payment, error) {
	if err := validate.Struct(patch); err != nil {
		return nil, err
	}

	var payment *sales.Payment
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, sale, err := m.owned(ctx, paymentID, userID)
		if err != nil {
			return err
		}

		wasCleared := p.IsCheque() && p.CheckStatus == sales.CheckCleared
		amountChanged := patch.Amount != nil && !types.RoundMoney(*patch.Amount).Equal(p.Amount)
		statusChanged := patch.CheckStatus != nil && *patch.CheckStatus != p.CheckStatus

		if amountChanged && p.BalanceApplied {
			return apperror.NewBusinessRule(apperror.CodePaymentAmountLocked,
				"amount of a settled payment cannot change; delete and recreate it").
				WithDetail("payment_id", p.ID.String())
		}
		if statusChanged && !p.IsCheque() {
			return apperror.NewValidation("only cheques carry a clearing status").
				WithDetail("field", "checkStatus")
		}
		if statusChanged && wasCleared {
			return apperror.NewBusinessRule(apperror.CodeChequeCleared,
				"a cleared cheque cannot change status").
				WithDetail("payment_id", p.ID.String())
		}

		if patch.Amount != nil {
			p.Amount = types.RoundMoney(*patch.Amount)
		}
		if patch.Date != nil {
			p.Date = *patch.Date
		}
		if patch.CheckNumber != nil {
			p.CheckNumber = *patch.CheckNumber
		}
		if patch.CheckBank != nil {
			p.CheckBank = *patch.CheckBank
		}
		if patch.CheckDueDate != nil {
			p.CheckDueDate = patch.CheckDueDate
		}
		if patch.CheckStatus != nil {
			p.CheckStatus = *patch.CheckStatus
		}

		if err := m.repo.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		clearing := p.IsCheque() && !wasCleared && p.CheckStatus == sales.CheckCleared
		if clearing {
			if err := m.settle(ctx, sale, p, userID); err != nil {
				return err
			}
			logger.Info(ctx, "cheque cleared", "payment_id", p.ID, "amount", p.Amount)
		}
		if clearing || amountChanged || statusChanged {
			if err := m.recomputePaid(ctx, sale); err != nil {
				return err
			}
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Delete reverses the payment's balance effect, removes its movement and
// deletes it.
func (m *Manager) Delete(ctx context.Context, paymentID id.ID, userID string) error {
	return m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		p, sale, err := m.owned(ctx, paymentID, userID)
		if err != nil {
			return err
		}

		if p.BalanceApplied && p.CustomerID != nil {
			if _, err := m.balances.Adjust(ctx, userID, *p.CustomerID, p.Amount); err != nil {
				return fmt.Errorf("reverse customer balance: %w", err)
			}
		}
		if err := m.register.RemoveLinked(ctx, userID, cashregister.Link{PaymentID: &p.ID}); err != nil {
			return fmt.Errorf("remove payment movement: %w", err)
		}
		if err := m.repo.DeletePayment(ctx, p.ID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if err := m.recomputePaid(ctx, sale); err != nil {
			return err
		}

		logger.Info(ctx, "payment deleted", "id", p.ID, "sale_id", p.SaleID, "amount", p.Amount)
		return nil
	})
}

// ListBySale returns the payments of an owned sale.
func (m *Manager) ListBySale(ctx context.Context, saleID id.ID, userID string) ([]sales.Payment, error) {
	sale, err := m.sales.GetByID(ctx, saleID)
	if err != nil || sale.UserID != userID {
		if err == nil || apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, err
	}
	return m.repo.ListPayments(ctx, saleID)
}

// settle applies the balance and register effects of a counted payment.
func (m *Manager) settle(ctx context.Context, sale *sales.Sale, p *sales.Payment, userID string) error {
	if p.CustomerID != nil {
		if _, err := m.balances.Settle(ctx, userID, *p.CustomerID, p.Amount); err != nil {
			return fmt.Errorf("settle customer balance: %w", err)
		}
		p.BalanceApplied = true
		if err := m.repo.UpdatePayment(ctx, p); err != nil {
			return fmt.Errorf("mark payment applied: %w", err)
		}
	}

	_, err := m.register.Record(ctx, userID, &cashregister.Movement{
		Type:          cashregister.Income,
		Amount:        p.Amount,
		Profit:        sale.ProfitShare(p.Amount),
		PaymentMethod: string(p.Method),
		Description:   "Pago de venta",
		Source:        cashregister.SourcePayment,
		SaleID:        &sale.ID,
		PaymentID:     &p.ID,
	})
	if err != nil {
		return fmt.Errorf("record movement: %w", err)
	}
	return nil
}

func (m *Manager) recomputePaid(ctx context.Context, sale *sales.Sale) error {
	payments, err := m.repo.ListPayments(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	sale.Payments = payments
	if !sale.RecomputePaid(payments) {
		return nil
	}
	sale.UpdatedAt = m.clock.Now()
	if err := m.sales.UpdateHeader(ctx, sale); err != nil {
		return fmt.Errorf("update sale paid: %w", err)
	}
	logger.Debug(ctx, "sale paid flag changed", "sale_id", sale.ID, "paid", sale.Paid)
	return nil
}

// ownedSale locks the sale and checks it belongs to userID.
func (m *Manager) ownedSale(ctx context.Context, saleID id.ID, userID string) (*sales.Sale, error) {
	sale, err := m.sales.GetForUpdate(ctx, saleID)
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

// owned locks the payment and its sale, sale first.
func (m *Manager) owned(ctx context.Context, paymentID id.ID, userID string) (*sales.Payment, *sales.Sale, error) {
	probe, err := m.repo.GetPayment(ctx, paymentID, false)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, nil, err
	}
	if probe.UserID != userID {
		return nil, nil, apperror.NewNotFound("payment", paymentID.String())
	}
	sale, err := m.ownedSale(ctx, probe.SaleID, userID)
	if err != nil {
		return nil, nil, err
	}
	p, err := m.repo.GetPayment(ctx, paymentID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("lock payment: %w", err)
	}
	return p, sale, nil
}
