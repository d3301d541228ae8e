package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/stock"
	"retailledger/internal/infrastructure/storage/postgres"
)

var (
	productColumns  = postgres.ExtractDBColumns[stock.Product]()
	customerColumns = postgres.ExtractDBColumns[customer.Customer]()
)

// ProductRepo implements stock.Repository.
type ProductRepo struct{ base }

// NewProductRepo creates the product repository.
func NewProductRepo(txm *postgres.TxManager) *ProductRepo {
	return &ProductRepo{base: newBase(txm)}
}

var _ stock.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.fetch(ctx, productID, false)
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.fetch(ctx, productID, true)
}

func (r *ProductRepo) fetch(ctx context.Context, productID id.ID, forUpdate bool) (*stock.Product, error) {
	var p stock.Product
	q := r.builder.Select(productColumns...).From(productsTable).Where(squirrel.Eq{"id": productID})
	if err := r.get(ctx, &p, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("product", productID.String())
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *ProductRepo) UpdateStock(ctx context.Context, productID id.ID, qty types.Quantity) error {
	tag, err := r.exec(ctx, r.builder.Update(productsTable).
		Set("stock", qty).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": productID}))
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("product", productID.String())
	}
	return nil
}

// CustomerRepo implements customer.Repository.
type CustomerRepo struct{ base }

// NewCustomerRepo creates the customer repository.
func NewCustomerRepo(txm *postgres.TxManager) *CustomerRepo {
	return &CustomerRepo{base: newBase(txm)}
}

var _ customer.Repository = (*CustomerRepo)(nil)

func (r *CustomerRepo) GetByID(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.fetch(ctx, customerID, false)
}

func (r *CustomerRepo) GetForUpdate(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.fetch(ctx, customerID, true)
}

func (r *CustomerRepo) fetch(ctx context.Context, customerID id.ID, forUpdate bool) (*customer.Customer, error) {
	var c customer.Customer
	q := r.builder.Select(customerColumns...).From(customersTable).Where(squirrel.Eq{"id": customerID})
	if err := r.get(ctx, &c, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("customer", customerID.String())
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepo) UpdateBalance(ctx context.Context, customerID id.ID, balance types.Money) error {
	tag, err := r.exec(ctx, r.builder.Update(customersTable).
		Set("pending_balance", balance).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": customerID}))
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("customer", customerID.String())
	}
	return nil
}
