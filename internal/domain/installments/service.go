// Package installments manages the installments of installment-credit sales:
// creation, schedule generation, collection and voiding.
package installments

import (
	"context"
	"fmt"
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/validate"
	"retailledger/pkg/logger"
)

// PayInput describes how an installment was collected.
type PayInput struct {
	PaymentDate   *time.Time `json:"paymentDate"`
	PaymentMethod string     `json:"paymentMethod"`
}

// Manager is the installment lifecycle manager.
type Manager struct {
	sales     sales.Repository
	repo      sales.InstallmentRepository
	balances  *customer.Ledger
	register  *cashregister.Service
	txManager tx.Manager
	clock     clock.Clock
	limits    amortization.Limits
}

// NewManager creates an installment lifecycle manager.
func NewManager(
	saleRepo sales.Repository,
	repo sales.InstallmentRepository,
	balances *customer.Ledger,
	register *cashregister.Service,
	txManager tx.Manager,
	clk clock.Clock,
	limits amortization.Limits,
) *Manager {
	if clk == nil {
		clk = clock.System{}
	}
	if limits.MaxCount == 0 {
		limits = amortization.DefaultLimits()
	}
	return &Manager{
		sales:     saleRepo,
		repo:      repo,
		balances:  balances,
		register:  register,
		txManager: txManager,
		clock:     clk,
		limits:    limits,
	}
}

// Create adds one installment to an installment-credit sale.
func (m *Manager) Create(ctx context.Context, saleID id.ID, in sales.InstallmentInput, userID string) (*sales.Installment, error) {
	created, err := m.CreateMany(ctx, saleID, []sales.InstallmentInput{in}, userID)
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// CreateMany adds installments to an installment-credit sale in one transaction.
func (m *Manager) CreateMany(ctx context.Context, saleID id.ID, in []sales.InstallmentInput, userID string) ([]sales.Installment, error) {
	if len(in) == 0 {
		return nil, apperror.NewValidation("at least one installment is required").
			WithDetail("field", "installments")
	}
	for i := range in {
		if err := validate.Struct(in[i]); err != nil {
			return nil, err
		}
		if in[i].Number > m.limits.MaxCount {
			return nil, apperror.NewBusinessRule(apperror.CodePlanOutOfBounds,
				fmt.Sprintf("installment number must be between 1 and %d", m.limits.MaxCount)).
				WithDetail("number", in[i].Number)
		}
	}

	var created []sales.Installment
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sale, err := m.ownedSale(ctx, saleID, userID)
		if err != nil {
			return err
		}
		if sale.CreditType != sales.CreditInstallments {
			return apperror.NewBusinessRule(apperror.CodeNotInstallmentSale,
				"installments require an installment-credit sale").
				WithDetail("sale_id", sale.ID.String())
		}

		existing, err := m.repo.ListInstallments(ctx, sale.ID)
		if err != nil {
			return fmt.Errorf("list installments: %w", err)
		}
		if err := sales.UniqueNumbers(in, existing); err != nil {
			return err
		}

		now := m.clock.Now()
		created = make([]sales.Installment, 0, len(in))
		for _, item := range in {
			created = append(created, sales.NewInstallment(sale, item, now))
		}
		if err := m.repo.CreateInstallments(ctx, created); err != nil {
			return fmt.Errorf("create installments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installments created", "sale_id", saleID, "count", len(created))
	return created, nil
}

// Schedule previews a generated plan without persisting anything.
func (m *Manager) Schedule(plan amortization.Plan) ([]amortization.Line, error) {
	if plan.FirstDueDate.IsZero() {
		plan.FirstDueDate = clock.Today(m.clock).AddDate(0, 1, 0)
	}
	return amortization.Generate(plan, m.limits)
}

// MarkAsPaid collects an installment. Paying a paid installment is a no-op.
func (m *Manager) MarkAsPaid(ctx context.Context, installmentID id.ID, in PayInput, userID string) (*sales.Installment, error) {
	var out *sales.Installment
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inst, sale, err := m.owned(ctx, installmentID, userID)
		if err != nil {
			return err
		}
		if err := m.pay(ctx, inst, sale, in, userID); err != nil {
			return err
		}
		out = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.Status = out.EffectiveStatus(m.clock.Now())
	return out, nil
}

// PayMultiple collects several installments in one transaction. Ids that are
// missing, foreign or already paid are skipped; the updated ones are returned.
func (m *Manager) PayMultiple(ctx context.Context, installmentIDs []id.ID, in PayInput, userID string) ([]sales.Installment, error) {
	var updated []sales.Installment
	err := m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		updated = updated[:0]
		for _, installmentID := range installmentIDs {
			inst, sale, err := m.owned(ctx, installmentID, userID)
			if err != nil {
				if apperror.IsNotFound(err) {
					logger.Debug(ctx, "installment skipped", "id", installmentID)
					continue
				}
				return err
			}
			if inst.IsPaid() {
				continue
			}
			if err := m.pay(ctx, inst, sale, in, userID); err != nil {
				return err
			}
			updated = append(updated, *inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Void reverses a paid installment's effects and deletes it.
func (m *Manager) Void(ctx context.Context, installmentID id.ID, userID string) error {
	return m.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inst, sale, err := m.owned(ctx, installmentID, userID)
		if err != nil {
			return err
		}
		if inst.IsPaid() {
			if sale.CustomerID != nil {
				if _, err := m.balances.Charge(ctx, userID, *sale.CustomerID, inst.TotalAmount()); err != nil {
					return fmt.Errorf("reverse customer balance: %w", err)
				}
			}
			if err := m.register.RemoveLinked(ctx, userID, cashregister.Link{InstallmentID: &inst.ID}); err != nil {
				return fmt.Errorf("remove installment movement: %w", err)
			}
		}
		if err := m.repo.DeleteInstallment(ctx, inst.ID); err != nil {
			return fmt.Errorf("delete installment: %w", err)
		}

		logger.Info(ctx, "installment voided", "id", inst.ID, "sale_id", inst.SaleID, "was_paid", inst.IsPaid())
		return nil
	})
}

// ListBySale returns an owned sale's installments with their effective status.
func (m *Manager) ListBySale(ctx context.Context, saleID id.ID, userID string) ([]sales.Installment, error) {
	sale, err := m.sales.GetByID(ctx, saleID)
	if err != nil || sale.UserID != userID {
		if err == nil || apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, err
	}
	items, err := m.repo.ListInstallments(ctx, saleID)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	for i := range items {
		items[i].Status = items[i].EffectiveStatus(now)
	}
	return items, nil
}

func (m *Manager) pay(ctx context.Context, inst *sales.Installment, sale *sales.Sale, in PayInput, userID string) error {
	if inst.IsPaid() {
		return nil
	}

	paidAt := m.clock.Now()
	if in.PaymentDate != nil {
		paidAt = *in.PaymentDate
	}
	method := in.PaymentMethod
	if method == "" {
		method = cashregister.MethodCash
	}
	inst.Status = sales.InstallmentPaid
	inst.PaymentDate = &paidAt
	inst.PaymentMethod = method
	if err := m.repo.UpdateInstallment(ctx, inst); err != nil {
		return fmt.Errorf("update installment: %w", err)
	}

	total := inst.TotalAmount()
	if sale.CustomerID != nil {
		if _, err := m.balances.Settle(ctx, userID, *sale.CustomerID, total); err != nil {
			return fmt.Errorf("settle customer balance: %w", err)
		}
	}

	_, err := m.register.Record(ctx, userID, &cashregister.Movement{
		Type:          cashregister.Income,
		Amount:        total,
		Profit:        sale.ProfitShare(inst.Amount).Add(inst.InterestAmount).Add(inst.PenaltyAmount),
		PaymentMethod: method,
		Description:   fmt.Sprintf("Cuota %d", inst.Number),
		Source:        cashregister.SourceInstallment,
		SaleID:        &sale.ID,
		InstallmentID: &inst.ID,
	})
	if err != nil {
		return fmt.Errorf("record movement: %w", err)
	}

	logger.Info(ctx, "installment paid", "id", inst.ID, "sale_id", sale.ID, "amount", total)
	return nil
}

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

// owned locks the installment's sale, then the installment.
func (m *Manager) owned(ctx context.Context, installmentID id.ID, userID string) (*sales.Installment, *sales.Sale, error) {
	probe, err := m.repo.GetInstallment(ctx, installmentID, false)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewNotFound("installment", installmentID.String())
		}
		return nil, nil, err
	}
	if probe.UserID != userID {
		return nil, nil, apperror.NewNotFound("installment", installmentID.String())
	}
	sale, err := m.ownedSale(ctx, probe.SaleID, userID)
	if err != nil {
		return nil, nil, err
	}
	inst, err := m.repo.GetInstallment(ctx, installmentID, true)
	if err != nil {
		return nil, nil, fmt.Errorf("lock installment: %w", err)
	}
	return inst, sale, nil
}
