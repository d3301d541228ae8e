package ledger_repo

import (
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/cashregister"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

func TestLinkPredicate(t *testing.T) {
	saleID := id.New()
	paymentID := id.New()

	tests := []struct {
		name     string
		link     cashregister.Link
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "user only",
			link:     cashregister.Link{},
			wantSQL:  "DELETE FROM cash_movements WHERE (user_id = $1)",
			wantArgs: []any{"u1"},
		},
		{
			name:     "sale movements of one source",
			link:     cashregister.Link{Source: cashregister.SourceSale, SaleID: &saleID},
			wantSQL:  "DELETE FROM cash_movements WHERE (user_id = $1 AND source = $2 AND sale_id = $3)",
			wantArgs: []any{"u1", cashregister.SourceSale, saleID},
		},
		{
			name:     "payment without source",
			link:     cashregister.Link{PaymentID: &paymentID},
			wantSQL:  "DELETE FROM cash_movements WHERE (user_id = $1 AND payment_id = $2)",
			wantArgs: []any{"u1", paymentID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := psql.Delete("cash_movements").Where(linkPredicate("u1", tt.link)).ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestDateRange(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("empty filter adds nothing", func(t *testing.T) {
		assert.Empty(t, dateRange("created_at", domain.ListFilter{}))
	})

	t.Run("half open", func(t *testing.T) {
		where := dateRange("created_at", domain.ListFilter{From: &from, To: &to})
		sql, args, err := psql.Select("id").From("sales").Where(where).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM sales WHERE (created_at >= $1 AND created_at < $2)", sql)
		assert.Equal(t, []any{from, to}, args)
	})

	t.Run("lower bound only", func(t *testing.T) {
		where := dateRange("day", domain.ListFilter{From: &from})
		sql, args, err := psql.Select("id").From("expenses").Where(where).ToSql()
		require.NoError(t, err)
		assert.Equal(t, "SELECT id FROM expenses WHERE (day >= $1)", sql)
		assert.Equal(t, []any{from}, args)
	})
}

func TestLock(t *testing.T) {
	q := psql.Select("id").From("products").Where(squirrel.Eq{"id": 7})

	sql, _, err := lock(q, true).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM products WHERE id = $1 FOR UPDATE", sql)

	sql, _, err = lock(q, false).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM products WHERE id = $1", sql)
}
