package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/infrastructure/storage/postgres"
)

var (
	dailyCashColumns = postgres.ExtractDBColumns[cashregister.DailyCash]()
	movementColumns  = postgres.ExtractDBColumns[cashregister.Movement]()
)

// DailyCashRepo implements cashregister.Repository.
type DailyCashRepo struct{ base }

// NewDailyCashRepo creates the daily cash repository.
func NewDailyCashRepo(txm *postgres.TxManager) *DailyCashRepo {
	return &DailyCashRepo{base: newBase(txm)}
}

var _ cashregister.Repository = (*DailyCashRepo)(nil)

func (r *DailyCashRepo) GetByDay(ctx context.Context, userID string, start, end time.Time, forUpdate bool) (*cashregister.DailyCash, error) {
	var dc cashregister.DailyCash
	q := r.builder.Select(dailyCashColumns...).From(dailyCashTable).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.GtOrEq{"day": start}).
		Where(squirrel.Lt{"day": end}).
		Limit(1)
	if err := r.get(ctx, &dc, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("daily cash", start.Format(clock.DateLayout))
		}
		return nil, fmt.Errorf("get daily cash by day: %w", err)
	}
	return &dc, nil
}

func (r *DailyCashRepo) GetByID(ctx context.Context, dailyCashID id.ID, forUpdate bool) (*cashregister.DailyCash, error) {
	var dc cashregister.DailyCash
	q := r.builder.Select(dailyCashColumns...).From(dailyCashTable).Where(squirrel.Eq{"id": dailyCashID})
	if err := r.get(ctx, &dc, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("daily cash", dailyCashID.String())
		}
		return nil, fmt.Errorf("get daily cash: %w", err)
	}
	return &dc, nil
}

// CreateIfAbsent relies on UNIQUE (user_id, day).
func (r *DailyCashRepo) CreateIfAbsent(ctx context.Context, dc *cashregister.DailyCash) error {
	_, err := r.insert(ctx, dailyCashTable, dailyCashColumns, dc, "ON CONFLICT (user_id, day) DO NOTHING")
	return err
}

func (r *DailyCashRepo) Create(ctx context.Context, dc *cashregister.DailyCash) error {
	if _, err := r.insert(ctx, dailyCashTable, dailyCashColumns, dc, ""); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("daily cash", "day", dc.Date.Format(clock.DateLayout))
		}
		return err
	}
	return nil
}

// Update persists dc as given; the caller stamps UpdatedAt.
func (r *DailyCashRepo) Update(ctx context.Context, dc *cashregister.DailyCash) error {
	n, err := r.update(ctx, dailyCashTable, dailyCashColumns, dc, "user_id", "day", "created_at")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("daily cash", dc.ID.String())
	}
	return nil
}

func (r *DailyCashRepo) AddMovement(ctx context.Context, m *cashregister.Movement) error {
	_, err := r.insert(ctx, movementsTable, movementColumns, m, "")
	return err
}

func (r *DailyCashRepo) ListMovements(ctx context.Context, dailyCashID id.ID) ([]cashregister.Movement, error) {
	out := make([]cashregister.Movement, 0)
	q := r.builder.Select(movementColumns...).From(movementsTable).
		Where(squirrel.Eq{"daily_cash_id": dailyCashID}).
		OrderBy("created_at", "id")
	if err := r.selectAll(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

func (r *DailyCashRepo) DeleteMovements(ctx context.Context, userID string, link cashregister.Link) ([]id.ID, error) {
	q := r.builder.Delete(movementsTable).Where(linkPredicate(userID, link)).
		Suffix("RETURNING daily_cash_id")
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete: %w", err)
	}

	var deleted []id.ID
	if err := pgxscan.Select(ctx, r.querier(ctx), &deleted, sql, args...); err != nil {
		return nil, fmt.Errorf("delete movements: %w", err)
	}

	seen := make(map[id.ID]bool, len(deleted))
	affected := make([]id.ID, 0, len(deleted))
	for _, dailyCashID := range deleted {
		if !seen[dailyCashID] {
			seen[dailyCashID] = true
			affected = append(affected, dailyCashID)
		}
	}
	return affected, nil
}

// linkPredicate translates a Link into a WHERE clause; nil references are wildcards.
func linkPredicate(userID string, link cashregister.Link) squirrel.And {
	where := squirrel.And{squirrel.Eq{"user_id": userID}}
	if link.Source != "" {
		where = append(where, squirrel.Eq{"source": link.Source})
	}
	refs := []struct {
		column string
		value  *id.ID
	}{
		{"sale_id", link.SaleID},
		{"payment_id", link.PaymentID},
		{"installment_id", link.InstallmentID},
		{"expense_id", link.ExpenseID},
		{"return_id", link.ReturnID},
	}
	for _, ref := range refs {
		if ref.value != nil {
			where = append(where, squirrel.Eq{ref.column: *ref.value})
		}
	}
	return where
}
