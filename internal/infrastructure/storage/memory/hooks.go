package memory

import (
	"context"
	"sort"
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/returns"
)

// ExpenseRepo implements expenses.Repository.
type ExpenseRepo struct{ s *Store }

// Expenses returns the expense repository.
func (s *Store) Expenses() *ExpenseRepo { return &ExpenseRepo{s: s} }

var _ expenses.Repository = (*ExpenseRepo)(nil)

func (r *ExpenseRepo) Create(_ context.Context, e *expenses.Expense) error {
	r.s.write(func(d *state) { d.expenses[e.ID] = *e })
	return nil
}

func (r *ExpenseRepo) GetByID(_ context.Context, expenseID id.ID) (*expenses.Expense, error) {
	var (
		e  expenses.Expense
		ok bool
	)
	r.s.read(func(d *state) { e, ok = d.expenses[expenseID] })
	if !ok {
		return nil, apperror.NewNotFound("expense", expenseID.String())
	}
	return &e, nil
}

func (r *ExpenseRepo) Delete(_ context.Context, expenseID id.ID) error {
	r.s.write(func(d *state) { delete(d.expenses, expenseID) })
	return nil
}

func (r *ExpenseRepo) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*expenses.Expense], error) {
	var matched []*expenses.Expense
	r.s.read(func(d *state) {
		for _, e := range d.expenses {
			if e.UserID == f.UserID && inRange(e.Date, f) {
				e := e
				matched = append(matched, &e)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	return page(matched, f), nil
}

// ReturnRepo implements returns.Repository.
type ReturnRepo struct{ s *Store }

// Returns returns the product return repository.
func (s *Store) Returns() *ReturnRepo { return &ReturnRepo{s: s} }

var _ returns.Repository = (*ReturnRepo)(nil)

func (r *ReturnRepo) Create(_ context.Context, ret *returns.ProductReturn) error {
	r.s.write(func(d *state) { d.returns[ret.ID] = *ret })
	return nil
}

func (r *ReturnRepo) GetByID(_ context.Context, returnID id.ID) (*returns.ProductReturn, error) {
	var (
		ret returns.ProductReturn
		ok  bool
	)
	r.s.read(func(d *state) { ret, ok = d.returns[returnID] })
	if !ok {
		return nil, apperror.NewNotFound("return", returnID.String())
	}
	return &ret, nil
}

func (r *ReturnRepo) Delete(_ context.Context, returnID id.ID) error {
	r.s.write(func(d *state) { delete(d.returns, returnID) })
	return nil
}

func (r *ReturnRepo) List(_ context.Context, f domain.ListFilter) (domain.ListResult[*returns.ProductReturn], error) {
	var matched []*returns.ProductReturn
	r.s.read(func(d *state) {
		for _, ret := range d.returns {
			if ret.UserID == f.UserID && inRange(ret.Date, f) {
				ret := ret
				matched = append(matched, &ret)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	return page(matched, f), nil
}

func inRange(t time.Time, f domain.ListFilter) bool {
	if f.From != nil && t.Before(*f.From) {
		return false
	}
	if f.To != nil && !t.Before(*f.To) {
		return false
	}
	return true
}
