// Package backup exports and restores everything a user owns.
package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/returns"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/stock"
	"retailledger/pkg/logger"
)

// Version is the snapshot format written by Export.
const Version = 1

// Snapshot is a denormalized copy of one user's rows, keyed by entity.
type Snapshot struct {
	Version    int                      `json:"version"`
	ExportedAt time.Time                `json:"exportedAt"`
	Customers  []customer.Customer      `json:"customers"`
	Products   []stock.Product          `json:"products"`
	Sales      []sales.Sale             `json:"sales"`
	DailyCash  []cashregister.DailyCash `json:"dailyCash"`
	Expenses   []expenses.Expense       `json:"expenses"`
	Returns    []returns.ProductReturn  `json:"returns"`
}

// Rows is the number of top-level rows in the snapshot.
func (s *Snapshot) Rows() int {
	return len(s.Customers) + len(s.Products) + len(s.Sales) +
		len(s.DailyCash) + len(s.Expenses) + len(s.Returns)
}

// rebind rewrites ownership of every row to userID.
func (s *Snapshot) rebind(userID string) {
	for i := range s.Customers {
		s.Customers[i].UserID = userID
	}
	for i := range s.Products {
		s.Products[i].UserID = userID
	}
	for i := range s.Sales {
		sale := &s.Sales[i]
		sale.UserID = userID
		for j := range sale.Items {
			sale.Items[j].SaleID = sale.ID
		}
		for j := range sale.Payments {
			sale.Payments[j].UserID = userID
			sale.Payments[j].SaleID = sale.ID
		}
		for j := range sale.Installments {
			sale.Installments[j].UserID = userID
			sale.Installments[j].SaleID = sale.ID
		}
	}
	for i := range s.DailyCash {
		dc := &s.DailyCash[i]
		dc.UserID = userID
		for j := range dc.Movements {
			dc.Movements[j].UserID = userID
			dc.Movements[j].DailyCashID = dc.ID
		}
	}
	for i := range s.Expenses {
		s.Expenses[i].UserID = userID
	}
	for i := range s.Returns {
		s.Returns[i].UserID = userID
	}
}

// Repository reads and replaces a user's whole data set.
type Repository interface {
	Export(ctx context.Context, userID string) (*Snapshot, error)
	// Purge deletes every row owned by userID.
	Purge(ctx context.Context, userID string) error
	// Import inserts every row of the snapshot. Ownership is already rebound.
	Import(ctx context.Context, snap *Snapshot) error
}

// ErrLocked is returned by a Guard when the user is already in maintenance.
var ErrLocked = errors.New("maintenance lock held")

// Guard is the per-user maintenance lock held during import.
type Guard interface {
	// Acquire takes the lock for ttl. It returns ErrLocked when held elsewhere.
	Acquire(ctx context.Context, userID string, ttl time.Duration) (release func(context.Context) error, err error)
	// Active reports whether the user is in maintenance.
	Active(ctx context.Context, userID string) (bool, error)
}

// Service runs export and import.
type Service struct {
	repo          Repository
	txManager     tx.Manager
	guard         Guard
	importTimeout time.Duration
	clock         clock.Clock
}

// NewService creates the backup service.
func NewService(repo Repository, txManager tx.Manager, guard Guard, importTimeout time.Duration, clk clock.Clock) *Service {
	if importTimeout <= 0 {
		importTimeout = 60 * time.Second
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, txManager: txManager, guard: guard, importTimeout: importTimeout, clock: clk}
}

// Export returns the user's snapshot.
func (s *Service) Export(ctx context.Context, userID string) (*Snapshot, error) {
	snap, err := s.repo.Export(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	snap.Version = Version
	snap.ExportedAt = s.clock.Now()

	logger.Info(ctx, "backup exported", "rows", snap.Rows())
	return snap, nil
}

// Import replaces every row the user owns with the snapshot's content in a
// single transaction, under the user's maintenance lock.
func (s *Service) Import(ctx context.Context, userID string, snap *Snapshot) error {
	if snap == nil {
		return apperror.NewValidation("snapshot is required")
	}
	if snap.Version > Version {
		return apperror.NewValidation("unsupported snapshot version").
			WithDetail("version", snap.Version)
	}

	release, err := s.guard.Acquire(ctx, userID, s.importTimeout+10*time.Second)
	if err != nil {
		if errors.Is(err, ErrLocked) {
			return apperror.NewMaintenance(userID)
		}
		return fmt.Errorf("acquire maintenance lock: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn(ctx, "maintenance lock release failed", "error", err)
		}
	}()

	snap.rebind(userID)
	started := s.clock.Now()
	err = s.txManager.RunWithOptions(ctx, tx.Options{Timeout: s.importTimeout}, func(ctx context.Context) error {
		if err := s.repo.Purge(ctx, userID); err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		if err := s.repo.Import(ctx, snap); err != nil {
			return fmt.Errorf("import: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error(ctx, "backup import failed", "error", err)
		return err
	}

	logger.Info(ctx, "backup imported", "rows", snap.Rows(), "elapsed", s.clock.Now().Sub(started))
	return nil
}

// InMaintenance reports whether writes for userID must be rejected.
func (s *Service) InMaintenance(ctx context.Context, userID string) (bool, error) {
	return s.guard.Active(ctx, userID)
}
