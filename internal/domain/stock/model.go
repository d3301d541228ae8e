// Package stock is the stock ledger: the only writer of Product.Stock.
package stock

import (
	"context"
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// Product is the slice of the product catalog the ledger owns.
type Product struct {
	ID        id.ID          `db:"id" json:"id"`
	UserID    string         `db:"user_id" json:"userId"`
	Name      string         `db:"name" json:"name"`
	Unit      string         `db:"unit" json:"unit"`
	Stock     types.Quantity `db:"stock" json:"stock"`
	CostPrice types.Money    `db:"cost_price" json:"costPrice"`
	Price     types.Money    `db:"price" json:"price"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Repository persists product stock.
type Repository interface {
	GetByID(ctx context.Context, productID id.ID) (*Product, error)

	// GetForUpdate re-reads the product and locks the row until commit.
	GetForUpdate(ctx context.Context, productID id.ID) (*Product, error)

	UpdateStock(ctx context.Context, productID id.ID, stock types.Quantity) error
}
