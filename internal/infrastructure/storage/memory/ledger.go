package memory

import (
	"context"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/stock"
)

// ProductRepo implements stock.Repository.
type ProductRepo struct{ s *Store }

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s: s} }

var _ stock.Repository = (*ProductRepo)(nil)

// Put inserts or replaces a product.
func (r *ProductRepo) Put(p stock.Product) {
	r.s.write(func(d *state) { d.products[p.ID] = p })
}

func (r *ProductRepo) GetByID(_ context.Context, productID id.ID) (*stock.Product, error) {
	var (
		p  stock.Product
		ok bool
	)
	r.s.read(func(d *state) { p, ok = d.products[productID] })
	if !ok {
		return nil, apperror.NewNotFound("product", productID.String())
	}
	return &p, nil
}

func (r *ProductRepo) GetForUpdate(ctx context.Context, productID id.ID) (*stock.Product, error) {
	return r.GetByID(ctx, productID)
}

func (r *ProductRepo) UpdateStock(_ context.Context, productID id.ID, qty types.Quantity) error {
	var ok bool
	r.s.write(func(d *state) {
		var p stock.Product
		if p, ok = d.products[productID]; ok {
			p.Stock = qty
			d.products[productID] = p
		}
	})
	if !ok {
		return apperror.NewNotFound("product", productID.String())
	}
	return nil
}

// CustomerRepo implements customer.Repository.
type CustomerRepo struct{ s *Store }

// Customers returns the customer repository.
func (s *Store) Customers() *CustomerRepo { return &CustomerRepo{s: s} }

var _ customer.Repository = (*CustomerRepo)(nil)

// Put inserts or replaces a customer.
func (r *CustomerRepo) Put(c customer.Customer) {
	r.s.write(func(d *state) { d.customers[c.ID] = c })
}

func (r *CustomerRepo) GetByID(_ context.Context, customerID id.ID) (*customer.Customer, error) {
	var (
		c  customer.Customer
		ok bool
	)
	r.s.read(func(d *state) { c, ok = d.customers[customerID] })
	if !ok {
		return nil, apperror.NewNotFound("customer", customerID.String())
	}
	return &c, nil
}

func (r *CustomerRepo) GetForUpdate(ctx context.Context, customerID id.ID) (*customer.Customer, error) {
	return r.GetByID(ctx, customerID)
}

func (r *CustomerRepo) UpdateBalance(_ context.Context, customerID id.ID, balance types.Money) error {
	var ok bool
	r.s.write(func(d *state) {
		var c customer.Customer
		if c, ok = d.customers[customerID]; ok {
			c.PendingBalance = balance
			d.customers[customerID] = c
		}
	})
	if !ok {
		return apperror.NewNotFound("customer", customerID.String())
	}
	return nil
}
