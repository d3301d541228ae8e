// Package expenses records business expenses and mirrors them as outflows
// in the daily register.
package expenses

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
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/validate"
	"retailledger/pkg/logger"
)

// Expense is money leaving the business outside of a sale.
type Expense struct {
	ID            id.ID       `db:"id" json:"id"`
	UserID        string      `db:"user_id" json:"userId"`
	Amount        types.Money `db:"amount" json:"amount"`
	Category      string      `db:"category" json:"category,omitempty"`
	Description   string      `db:"description" json:"description,omitempty"`
	PaymentMethod string      `db:"payment_method" json:"paymentMethod"`
	Date          time.Time   `db:"date" json:"date"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
}

// Input creates an expense.
type Input struct {
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Category      string          `json:"category" validate:"max=100"`
	Description   string          `json:"description" validate:"max=500"`
	PaymentMethod string          `json:"paymentMethod"`
	Date          *time.Time      `json:"date"`
}

// Repository persists expenses.
type Repository interface {
	Create(ctx context.Context, e *Expense) error
	GetByID(ctx context.Context, expenseID id.ID) (*Expense, error)
	Delete(ctx context.Context, expenseID id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Expense], error)
}

// Service manages expenses.
type Service struct {
	repo      Repository
	register  *cashregister.Service
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates the expense service.
func NewService(repo Repository, register *cashregister.Service, txManager tx.Manager, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, register: register, txManager: txManager, clock: clk}
}

// Create inserts the expense and records its EGRESO movement.
func (s *Service) Create(ctx context.Context, in Input, userID string) (*Expense, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	e := &Expense{
		ID:            id.New(),
		UserID:        userID,
		Amount:        types.RoundMoney(in.Amount),
		Category:      in.Category,
		Description:   in.Description,
		PaymentMethod: in.PaymentMethod,
		Date:          now,
		CreatedAt:     now,
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = cashregister.MethodCash
	}
	if in.Date != nil {
		e.Date = *in.Date
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, e); err != nil {
			return fmt.Errorf("create expense: %w", err)
		}
		_, err := s.register.Record(ctx, userID, &cashregister.Movement{
			Type:          cashregister.Expense,
			Amount:        e.Amount,
			Profit:        e.Amount.Neg(),
			PaymentMethod: e.PaymentMethod,
			Description:   describe(e),
			Source:        cashregister.SourceExpense,
			ExpenseID:     &e.ID,
		})
		if err != nil {
			return fmt.Errorf("record movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "expense created", "id", e.ID, "amount", e.Amount, "category", e.Category)
	return e, nil
}

// Delete removes the expense's movement, refolds, then deletes it.
func (s *Service) Delete(ctx context.Context, expenseID id.ID, userID string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetByID(ctx, expenseID)
		if err != nil || e.UserID != userID {
			if err == nil || apperror.IsNotFound(err) {
				return apperror.NewNotFound("expense", expenseID.String())
			}
			return err
		}
		if err := s.register.RemoveLinked(ctx, userID, cashregister.Link{ExpenseID: &e.ID}); err != nil {
			return fmt.Errorf("remove expense movement: %w", err)
		}
		if err := s.repo.Delete(ctx, e.ID); err != nil {
			return fmt.Errorf("delete expense: %w", err)
		}
		logger.Info(ctx, "expense deleted", "id", e.ID, "amount", e.Amount)
		return nil
	})
}

// List returns the caller's expenses in a date range.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Expense], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

func describe(e *Expense) string {
	switch {
	case e.Description != "":
		return e.Description
	case e.Category != "":
		return "Gasto: " + e.Category
	default:
		return "Gasto"
	}
}
