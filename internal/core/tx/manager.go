// Package tx provides transaction management abstractions.
// Lifecycle managers depend on Manager only; the pgx implementation lives in
// infrastructure/storage/postgres and the in-memory one in storage/memory.
package tx

import (
	"context"
	"time"
)

// Isolation is the requested isolation level.
type Isolation string

const (
	ReadCommitted Isolation = "read committed"
	Serializable  Isolation = "serializable"
)

// Options tunes a single transaction.
type Options struct {
	Isolation Isolation

	// Timeout bounds every statement in the transaction (0 = manager default).
	Timeout time.Duration
}

// Manager defines the contract for transaction management.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back, otherwise committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// RunWithOptions is RunInTransaction with explicit options.
	// Options are ignored when a transaction is already active in ctx.
	RunWithOptions(ctx context.Context, opts Options, fn func(ctx context.Context) error) error
}
