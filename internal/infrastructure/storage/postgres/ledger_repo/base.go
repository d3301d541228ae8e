// Package ledger_repo provides PostgreSQL implementations of the ledger repositories.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"retailledger/internal/infrastructure/storage/postgres"
)

const (
	productsTable     = "products"
	customersTable    = "customers"
	dailyCashTable    = "daily_cash"
	movementsTable    = "cash_movements"
	salesTable        = "sales"
	saleItemsTable    = "sale_items"
	paymentsTable     = "sale_payments"
	installmentsTable = "sale_installments"
	expensesTable     = "expenses"
	returnsTable      = "product_returns"
)

const uniqueViolation = "23505"

// base carries the query builder and transaction manager shared by every repo.
type base struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

func newBase(txm *postgres.TxManager) base {
	return base{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (b base) querier(ctx context.Context) postgres.Querier {
	return b.txm.GetQuerier(ctx)
}

// insert writes v into table using the columns' db tags.
func (b base) insert(ctx context.Context, table string, columns []string, v any, suffix string) (pgconn.CommandTag, error) {
	data := postgres.StructToMap(v)
	filtered := make(map[string]any, len(columns))
	for _, col := range columns {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}

	q := b.builder.Insert(table).SetMap(filtered)
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build insert: %w", err)
	}
	tag, err := b.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return tag, fmt.Errorf("insert %s: %w", table, err)
	}
	return tag, nil
}

// update sets every column except the immutable ones on the row with v's id.
func (b base) update(ctx context.Context, table string, columns []string, v any, immutable ...string) (int64, error) {
	data := postgres.StructToMap(v)
	skip := map[string]bool{"id": true}
	for _, col := range immutable {
		skip[col] = true
	}
	set := make(map[string]any, len(columns))
	for _, col := range columns {
		if skip[col] {
			continue
		}
		if val, ok := data[col]; ok {
			set[col] = val
		}
	}

	q := b.builder.Update(table).SetMap(set).Where(squirrel.Eq{"id": data["id"]})
	tag, err := b.exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func (b base) exec(ctx context.Context, q squirrel.Sqlizer) (pgconn.CommandTag, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build query: %w", err)
	}
	return b.querier(ctx).Exec(ctx, sql, args...)
}

func (b base) get(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Get(ctx, b.querier(ctx), dst, sql, args...)
}

func (b base) selectAll(ctx context.Context, dst any, q squirrel.SelectBuilder) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return pgxscan.Select(ctx, b.querier(ctx), dst, sql, args...)
}

func (b base) count(ctx context.Context, table string, where squirrel.Sqlizer) (int64, error) {
	var total int64
	q := b.builder.Select("COUNT(*)").From(table).Where(where)
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	if err := b.querier(ctx).QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// violationDetail is the server's description of the offending key.
func violationDetail(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Detail
	}
	return ""
}

func lock(q squirrel.SelectBuilder, forUpdate bool) squirrel.SelectBuilder {
	if forUpdate {
		return q.Suffix("FOR UPDATE")
	}
	return q
}
