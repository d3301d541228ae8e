// Package customer is the customer balance ledger.
package customer

import (
	"context"
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// Customer carries the running signed balance owed by the customer.
type Customer struct {
	ID             id.ID       `db:"id" json:"id"`
	UserID         string      `db:"user_id" json:"userId"`
	Name           string      `db:"name" json:"name"`
	PendingBalance types.Money `db:"pending_balance" json:"pendingBalance"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updatedAt"`
}

// Repository persists customer balances.
type Repository interface {
	GetByID(ctx context.Context, customerID id.ID) (*Customer, error)
	GetForUpdate(ctx context.Context, customerID id.ID) (*Customer, error)
	UpdateBalance(ctx context.Context, customerID id.ID, balance types.Money) error
}
