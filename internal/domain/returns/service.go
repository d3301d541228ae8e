// Package returns handles product returns: stock goes back on the shelf and
// the refund leaves the register.
package returns

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
	"retailledger/internal/domain/stock"
	"retailledger/internal/domain/validate"
	"retailledger/pkg/logger"
)

// ProductReturn is a returned quantity of one product.
type ProductReturn struct {
	ID           id.ID          `db:"id" json:"id"`
	UserID       string         `db:"user_id" json:"userId"`
	SaleID       *id.ID         `db:"sale_id" json:"saleId,omitempty"`
	ProductID    id.ID          `db:"product_id" json:"productId"`
	Quantity     types.Quantity `db:"quantity" json:"quantity"`
	Unit         string         `db:"unit" json:"unit,omitempty"`
	RefundAmount types.Money    `db:"refund_amount" json:"refundAmount"`
	RefundMethod string         `db:"refund_method" json:"refundMethod"`
	Reason       string         `db:"reason" json:"reason,omitempty"`
	CostPrice    types.Money    `db:"cost_price" json:"costPrice"`
	Date         time.Time      `db:"date" json:"date"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// Loss is the profit given up: refund minus the cost of the returned goods.
func (r *ProductReturn) Loss() types.Money {
	return types.RoundMoney(r.RefundAmount.Sub(r.CostPrice.Mul(r.Quantity)))
}

// Input creates a return.
type Input struct {
	SaleID       *id.ID          `json:"saleId"`
	ProductID    id.ID           `json:"productId"`
	Quantity     decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit         string          `json:"unit"`
	RefundAmount decimal.Decimal `json:"refundAmount" validate:"gte=0"`
	RefundMethod string          `json:"refundMethod"`
	Reason       string          `json:"reason" validate:"max=500"`
	CostPrice    decimal.Decimal `json:"costPrice" validate:"gte=0"`
	Date         *time.Time      `json:"date"`
}

// Repository persists returns.
type Repository interface {
	Create(ctx context.Context, r *ProductReturn) error
	GetByID(ctx context.Context, returnID id.ID) (*ProductReturn, error)
	Delete(ctx context.Context, returnID id.ID) error
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*ProductReturn], error)
}

// Service manages product returns.
type Service struct {
	repo      Repository
	stock     *stock.Ledger
	register  *cashregister.Service
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates the return service.
func NewService(repo Repository, stockLedger *stock.Ledger, register *cashregister.Service, txManager tx.Manager, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, stock: stockLedger, register: register, txManager: txManager, clock: clk}
}

// Create restocks the product and records the refund as an outflow.
func (s *Service) Create(ctx context.Context, in Input, userID string) (*ProductReturn, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if id.IsNil(in.ProductID) {
		return nil, apperror.NewValidation("product is required").WithDetail("field", "productId")
	}

	now := s.clock.Now()
	r := &ProductReturn{
		ID:           id.New(),
		UserID:       userID,
		SaleID:       in.SaleID,
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		Unit:         in.Unit,
		RefundAmount: types.RoundMoney(in.RefundAmount),
		RefundMethod: in.RefundMethod,
		Reason:       in.Reason,
		CostPrice:    in.CostPrice,
		Date:         now,
		CreatedAt:    now,
	}
	if r.RefundMethod == "" {
		r.RefundMethod = cashregister.MethodCash
	}
	if in.Date != nil {
		r.Date = *in.Date
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.stock.Restore(ctx, userID, r.ProductID, r.Quantity, r.Unit); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
		if err := s.repo.Create(ctx, r); err != nil {
			return fmt.Errorf("create return: %w", err)
		}
		if !r.RefundAmount.IsPositive() {
			return nil
		}
		_, err := s.register.Record(ctx, userID, &cashregister.Movement{
			Type:          cashregister.Expense,
			Amount:        r.RefundAmount,
			Profit:        r.Loss().Neg(),
			PaymentMethod: r.RefundMethod,
			Description:   "Devolución",
			Source:        cashregister.SourceReturn,
			SaleID:        r.SaleID,
			ReturnID:      &r.ID,
		})
		if err != nil {
			return fmt.Errorf("record movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "return created",
		"id", r.ID, "product_id", r.ProductID, "quantity", r.Quantity, "refund", r.RefundAmount)
	return r, nil
}

// Delete takes the goods back out of stock, removes the refund movement and
// deletes the return.
func (s *Service) Delete(ctx context.Context, returnID id.ID, userID string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByID(ctx, returnID)
		if err != nil || r.UserID != userID {
			if err == nil || apperror.IsNotFound(err) {
				return apperror.NewNotFound("return", returnID.String())
			}
			return err
		}
		if _, err := s.stock.Decrement(ctx, userID, r.ProductID, r.Quantity, r.Unit); err != nil {
			if !apperror.IsNotFound(err) {
				return fmt.Errorf("decrement stock: %w", err)
			}
			logger.Warn(ctx, "stock not reverted, product missing", "product_id", r.ProductID)
		}
		if err := s.register.RemoveLinked(ctx, userID, cashregister.Link{ReturnID: &r.ID}); err != nil {
			return fmt.Errorf("remove return movement: %w", err)
		}
		if err := s.repo.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("delete return: %w", err)
		}
		logger.Info(ctx, "return deleted", "id", r.ID)
		return nil
	})
}

// List returns the caller's returns in a date range.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*ProductReturn], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}
