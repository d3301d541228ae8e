package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/returns"
	"retailledger/internal/infrastructure/storage/postgres"
)

var (
	expenseColumns = postgres.ExtractDBColumns[expenses.Expense]()
	returnColumns  = postgres.ExtractDBColumns[returns.ProductReturn]()
)

// ExpenseRepo implements expenses.Repository.
type ExpenseRepo struct{ base }

// NewExpenseRepo creates the expense repository.
func NewExpenseRepo(txm *postgres.TxManager) *ExpenseRepo {
	return &ExpenseRepo{base: newBase(txm)}
}

var _ expenses.Repository = (*ExpenseRepo)(nil)

func (r *ExpenseRepo) Create(ctx context.Context, e *expenses.Expense) error {
	_, err := r.insert(ctx, expensesTable, expenseColumns, e, "")
	return err
}

func (r *ExpenseRepo) GetByID(ctx context.Context, expenseID id.ID) (*expenses.Expense, error) {
	var e expenses.Expense
	q := r.builder.Select(expenseColumns...).From(expensesTable).Where(squirrel.Eq{"id": expenseID})
	if err := r.get(ctx, &e, q); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("expense", expenseID.String())
		}
		return nil, fmt.Errorf("get expense: %w", err)
	}
	return &e, nil
}

func (r *ExpenseRepo) Delete(ctx context.Context, expenseID id.ID) error {
	if _, err := r.exec(ctx, r.builder.Delete(expensesTable).Where(squirrel.Eq{"id": expenseID})); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	return nil
}

func (r *ExpenseRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*expenses.Expense], error) {
	return listByUser[expenses.Expense](ctx, r.base, expensesTable, expenseColumns, f)
}

// ReturnRepo implements returns.Repository.
type ReturnRepo struct{ base }

// NewReturnRepo creates the product return repository.
func NewReturnRepo(txm *postgres.TxManager) *ReturnRepo {
	return &ReturnRepo{base: newBase(txm)}
}

var _ returns.Repository = (*ReturnRepo)(nil)

func (r *ReturnRepo) Create(ctx context.Context, ret *returns.ProductReturn) error {
	_, err := r.insert(ctx, returnsTable, returnColumns, ret, "")
	return err
}

func (r *ReturnRepo) GetByID(ctx context.Context, returnID id.ID) (*returns.ProductReturn, error) {
	var ret returns.ProductReturn
	q := r.builder.Select(returnColumns...).From(returnsTable).Where(squirrel.Eq{"id": returnID})
	if err := r.get(ctx, &ret, q); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("return", returnID.String())
		}
		return nil, fmt.Errorf("get return: %w", err)
	}
	return &ret, nil
}

func (r *ReturnRepo) Delete(ctx context.Context, returnID id.ID) error {
	if _, err := r.exec(ctx, r.builder.Delete(returnsTable).Where(squirrel.Eq{"id": returnID})); err != nil {
		return fmt.Errorf("delete return: %w", err)
	}
	return nil
}

func (r *ReturnRepo) List(ctx context.Context, f domain.ListFilter) (domain.ListResult[*returns.ProductReturn], error) {
	return listByUser[returns.ProductReturn](ctx, r.base, returnsTable, returnColumns, f)
}

// listByUser pages through a user-owned table ordered by date, newest first.
func listByUser[T any](ctx context.Context, b base, table string, columns []string, f domain.ListFilter) (domain.ListResult[*T], error) {
	where := squirrel.And{squirrel.Eq{"user_id": f.UserID}}
	where = append(where, dateRange("date", f)...)

	res := domain.ListResult[*T]{Items: make([]*T, 0), Limit: f.Limit, Offset: f.Offset}
	total, err := b.count(ctx, table, where)
	if err != nil {
		return res, err
	}
	res.TotalCount = total

	q := b.builder.Select(columns...).From(table).Where(where).
		OrderBy("date DESC", "id DESC").
		Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	if err := b.selectAll(ctx, &res.Items, q); err != nil {
		return res, fmt.Errorf("list %s: %w", table, err)
	}
	return res, nil
}
