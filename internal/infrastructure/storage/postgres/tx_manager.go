package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"retailledger/internal/core/tx"
	"retailledger/pkg/logger"
)

var tracer = otel.Tracer("retailledger/tx")

// Compile-time check that TxManager implements tx.Manager interface.
var _ tx.Manager = (*TxManager)(nil)

// TxManager manages database transactions with support for:
// - Nested calls joining the outer transaction
// - Statement timeout protection
// - Distributed tracing integration
type TxManager struct {
	pool           *pgxpool.Pool
	defaultTimeout time.Duration
}

// NewTxManager creates a new transaction manager. Statements in every
// transaction are bounded by statementTimeout unless overridden per call.
func NewTxManager(pool *Pool, statementTimeout time.Duration) *TxManager {
	return &TxManager{pool: pool.Pool, defaultTimeout: statementTimeout}
}

// txKey is the context key for active transaction.
type txKey struct{}

// RunInTransaction executes fn within a READ COMMITTED transaction.
// If a transaction already exists in ctx, it will be reused.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunWithOptions(ctx, tx.Options{}, fn)
}

// RunWithOptions executes fn with custom isolation and statement timeout.
func (m *TxManager) RunWithOptions(ctx context.Context, opts tx.Options, fn func(ctx context.Context) error) error {
	// Joined calls run inside the caller's span and transaction.
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	iso := isoLevel(opts.Isolation)
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.isolation", string(iso)),
		))
	defer span.End()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = m.defaultTimeout
	}

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// Set statement timeout for protection against runaway queries
	if timeout > 0 {
		_, err = pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", timeout.Milliseconds()))
		if err != nil {
			_ = pgTx.Rollback(ctx)
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}

	txCtx := context.WithValue(ctx, txKey{}, pgTx)
	if err := fn(txCtx); err != nil {
		// Background context: the rollback must complete even if ctx was cancelled.
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		span.RecordError(err)
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isoLevel(i tx.Isolation) pgx.TxIsoLevel {
	if i == tx.Serializable {
		return pgx.Serializable
	}
	return pgx.ReadCommitted
}

// GetTx returns the current transaction from context, or nil if none.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
// This allows repos to work both inside and outside transactions.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}

// Ping checks the pool for readiness probes.
func (m *TxManager) Ping(ctx context.Context) error {
	return m.pool.Ping(ctx)
}
