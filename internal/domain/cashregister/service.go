package cashregister

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/core/tx"
	"retailledger/internal/core/types"
	"retailledger/pkg/logger"
)

// Service is the daily cash register. Every write runs in a transaction;
// when called from a lifecycle manager it joins the caller's transaction.
type Service struct {
	repo      Repository
	txManager tx.Manager
	clock     clock.Clock
}

// NewService creates the register service.
func NewService(repo Repository, txManager tx.Manager, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.System{}
	}
	return &Service{repo: repo, txManager: txManager, clock: clk}
}

// Clock exposes the day boundary shared by every manager.
func (s *Service) Clock() clock.Clock { return s.clock }

// FindOrCreate returns the user's register for the UTC day containing t,
// creating an empty open one when none exists. The row is locked until commit.
func (s *Service) FindOrCreate(ctx context.Context, userID string, t time.Time) (*DailyCash, error) {
	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		start, end := clock.DayRange(t)

		dc, err := s.repo.GetByDay(ctx, userID, start, end, true)
		if err == nil {
			out = dc
			return nil
		}
		if !apperror.IsNotFound(err) {
			return fmt.Errorf("get register: %w", err)
		}

		if err := s.repo.CreateIfAbsent(ctx, s.newRegister(userID, start)); err != nil {
			return fmt.Errorf("create register: %w", err)
		}
		// Re-read: a concurrent writer may have won the insert.
		dc, err = s.repo.GetByDay(ctx, userID, start, end, true)
		if err != nil {
			return fmt.Errorf("reload register: %w", err)
		}
		out = dc
		return nil
	})
	return out, err
}

// Today is FindOrCreate for the clock's current day.
func (s *Service) Today(ctx context.Context, userID string) (*DailyCash, error) {
	dc, err := s.FindOrCreate(ctx, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	return s.withMovements(ctx, dc)
}

// GetByDate returns the register of the UTC day containing date, with movements.
func (s *Service) GetByDate(ctx context.Context, userID string, date time.Time) (*DailyCash, error) {
	start, end := clock.DayRange(date)
	dc, err := s.repo.GetByDay(ctx, userID, start, end, false)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("daily cash", start.Format(clock.DateLayout))
		}
		return nil, err
	}
	return s.withMovements(ctx, dc)
}

// GetByID returns an owned register with movements.
func (s *Service) GetByID(ctx context.Context, userID string, dailyCashID id.ID) (*DailyCash, error) {
	dc, err := s.owned(ctx, userID, dailyCashID, false)
	if err != nil {
		return nil, err
	}
	return s.withMovements(ctx, dc)
}

// OpenInput explicitly opens a day.
type OpenInput struct {
	Date          *time.Time
	OpeningAmount decimal.Decimal
	OpenedBy      string
	Comments      string
}

// Open creates the register for a day; a day can only be opened once.
func (s *Service) Open(ctx context.Context, userID string, in OpenInput) (*DailyCash, error) {
	if in.OpeningAmount.IsNegative() {
		return nil, apperror.NewValidation("opening amount cannot be negative").
			WithDetail("field", "openingAmount")
	}
	day := s.clock.Now()
	if in.Date != nil {
		day = *in.Date
	}

	dc := s.newRegister(userID, clock.StartOfDay(day))
	dc.OpeningAmount = in.OpeningAmount
	dc.OpenedBy = in.OpenedBy
	dc.Comments = in.Comments

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		start, end := clock.DayRange(day)
		if _, err := s.repo.GetByDay(ctx, userID, start, end, false); err == nil {
			conflict := apperror.NewConflict("daily cash register already exists for this day")
			conflict.Code = apperror.CodeRegisterAlreadyOpen
			return conflict.WithDetail("date", start.Format(clock.DateLayout))
		} else if !apperror.IsNotFound(err) {
			return err
		}
		return s.repo.Create(ctx, dc)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "daily cash opened", "id", dc.ID, "date", dc.Date.Format(clock.DateLayout))
	return dc, nil
}

// CloseInput carries the counted drawer.
type CloseInput struct {
	ClosingAmount     decimal.Decimal
	ClosingDifference *decimal.Decimal
	ClosedBy          string
	Comments          *string
}

// Close marks the register closed. Closing twice is a no-op.
func (s *Service) Close(ctx context.Context, userID string, dailyCashID id.ID, in CloseInput) (*DailyCash, error) {
	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		dc, err := s.owned(ctx, userID, dailyCashID, true)
		if err != nil {
			return err
		}
		if dc.Closed {
			out = dc
			return nil
		}
		s.applyClose(dc, in)
		if err := s.save(ctx, dc); err != nil {
			return fmt.Errorf("close register: %w", err)
		}
		out = dc
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "daily cash closed",
		"id", out.ID, "closing_amount", out.ClosingAmount, "difference", out.ClosingDifference)
	return s.withMovements(ctx, out)
}

func (s *Service) applyClose(dc *DailyCash, in CloseInput) {
	now := s.clock.Now()
	amount := types.RoundMoney(in.ClosingAmount)
	diff := amount.Sub(dc.ExpectedCash())
	if in.ClosingDifference != nil {
		diff = *in.ClosingDifference
	}
	diff = types.RoundMoney(diff)

	dc.Closed = true
	dc.ClosingAmount = &amount
	dc.ClosingDifference = &diff
	dc.ClosingDate = &now
	dc.ClosedBy = in.ClosedBy
	if in.Comments != nil {
		dc.Comments = *in.Comments
	}
}

// Reopen clears the closing fields; always permitted.
func (s *Service) Reopen(ctx context.Context, userID string, dailyCashID id.ID) (*DailyCash, error) {
	closed := false
	return s.Update(ctx, userID, dailyCashID, UpdateInput{Closed: &closed})
}

// UpdateInput is a field patch of the register header.
type UpdateInput struct {
	Comments      *string
	OpeningAmount *decimal.Decimal
	Closed        *bool

	// Used only when Closed is set to true.
	ClosingAmount     *decimal.Decimal
	ClosingDifference *decimal.Decimal
	ClosedBy          string
}

// Update patches the register. Closed=false reopens, Closed=true closes.
func (s *Service) Update(ctx context.Context, userID string, dailyCashID id.ID, in UpdateInput) (*DailyCash, error) {
	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		dc, err := s.owned(ctx, userID, dailyCashID, true)
		if err != nil {
			return err
		}
		if in.Comments != nil {
			dc.Comments = *in.Comments
		}
		if in.OpeningAmount != nil {
			if in.OpeningAmount.IsNegative() {
				return apperror.NewValidation("opening amount cannot be negative").
					WithDetail("field", "openingAmount")
			}
			dc.OpeningAmount = *in.OpeningAmount
		}
		if in.Closed != nil {
			switch {
			case !*in.Closed && dc.Closed:
				dc.reopen()
				logger.Info(ctx, "daily cash reopened", "id", dc.ID)
			case *in.Closed && !dc.Closed:
				closing := decimal.Zero
				if in.ClosingAmount != nil {
					closing = *in.ClosingAmount
				}
				s.applyClose(dc, CloseInput{
					ClosingAmount:     closing,
					ClosingDifference: in.ClosingDifference,
					ClosedBy:          in.ClosedBy,
				})
			}
		}
		if err := s.save(ctx, dc); err != nil {
			return fmt.Errorf("update register: %w", err)
		}
		out = dc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.withMovements(ctx, out)
}

// Record appends m to today's register and refolds its totals.
// Closed registers reject new movements.
func (s *Service) Record(ctx context.Context, userID string, m *Movement) (*DailyCash, error) {
	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		dc, err := s.FindOrCreate(ctx, userID, s.clock.Now())
		if err != nil {
			return err
		}
		if dc.Closed {
			logger.Warn(ctx, "movement rejected by closed register",
				"daily_cash_id", dc.ID, "source", m.Source, "amount", m.Amount)
			return apperror.NewRegisterClosed(dc.Date.Format(clock.DateLayout))
		}
		if err := s.append(ctx, dc, userID, m); err != nil {
			return err
		}
		out = dc
		return nil
	})
	return out, err
}

// ManualInput is a hand-entered movement.
type ManualInput struct {
	Type          MovementType
	Amount        decimal.Decimal
	PaymentMethod string
	Description   string
}

// AddManual appends a manual movement to an open register.
func (s *Service) AddManual(ctx context.Context, userID string, dailyCashID id.ID, in ManualInput) (*DailyCash, error) {
	if in.Type != Income && in.Type != Expense {
		return nil, apperror.NewValidation("invalid movement type").WithDetail("field", "type")
	}
	if !in.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}
	method := in.PaymentMethod
	if method == "" {
		method = MethodCash
	}

	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		dc, err := s.owned(ctx, userID, dailyCashID, true)
		if err != nil {
			return err
		}
		if dc.Closed {
			return apperror.NewRegisterClosed(dc.Date.Format(clock.DateLayout))
		}
		m := &Movement{
			Type:          in.Type,
			Amount:        in.Amount,
			PaymentMethod: method,
			Profit:        decimal.Zero,
			Description:   in.Description,
			Source:        SourceManual,
		}
		if err := s.append(ctx, dc, userID, m); err != nil {
			return err
		}
		out = dc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.withMovements(ctx, out)
}

// RemoveLinked deletes every movement originating from link, on any day,
// and refolds the affected registers.
func (s *Service) RemoveLinked(ctx context.Context, userID string, link Link) error {
	if link.Empty() {
		return fmt.Errorf("remove movements: empty link")
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		affected, err := s.repo.DeleteMovements(ctx, userID, link)
		if err != nil {
			return fmt.Errorf("delete movements: %w", err)
		}
		for _, dailyCashID := range affected {
			dc, err := s.repo.GetByID(ctx, dailyCashID, true)
			if err != nil {
				return fmt.Errorf("lock register: %w", err)
			}
			if dc.Closed {
				logger.Warn(ctx, "movement removed from closed register", "daily_cash_id", dc.ID)
			}
			if err := s.refold(ctx, dc); err != nil {
				return err
			}
		}
		return nil
	})
}

// Refold recomputes an owned register's totals from its movements.
func (s *Service) Refold(ctx context.Context, userID string, dailyCashID id.ID) (*DailyCash, error) {
	var out *DailyCash
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		dc, err := s.owned(ctx, userID, dailyCashID, true)
		if err != nil {
			return err
		}
		out = dc
		return s.refold(ctx, dc)
	})
	return out, err
}

func (s *Service) append(ctx context.Context, dc *DailyCash, userID string, m *Movement) error {
	m.ID = id.New()
	m.DailyCashID = dc.ID
	m.UserID = userID
	m.Amount = types.RoundMoney(m.Amount)
	m.Profit = types.RoundMoney(m.Profit)
	m.CreatedAt = s.clock.Now()
	if err := s.repo.AddMovement(ctx, m); err != nil {
		return fmt.Errorf("add movement: %w", err)
	}
	return s.refold(ctx, dc)
}

// save stamps the register with the service clock before persisting it.
func (s *Service) save(ctx context.Context, dc *DailyCash) error {
	dc.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, dc)
}

func (s *Service) refold(ctx context.Context, dc *DailyCash) error {
	movements, err := s.repo.ListMovements(ctx, dc.ID)
	if err != nil {
		return fmt.Errorf("list movements: %w", err)
	}
	dc.Totals = Fold(movements)
	dc.Movements = movements
	if err := s.save(ctx, dc); err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	return nil
}

func (s *Service) owned(ctx context.Context, userID string, dailyCashID id.ID, forUpdate bool) (*DailyCash, error) {
	dc, err := s.repo.GetByID(ctx, dailyCashID, forUpdate)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("daily cash", dailyCashID.String())
		}
		return nil, err
	}
	if dc.UserID != userID {
		return nil, apperror.NewNotFound("daily cash", dailyCashID.String())
	}
	return dc, nil
}

func (s *Service) withMovements(ctx context.Context, dc *DailyCash) (*DailyCash, error) {
	movements, err := s.repo.ListMovements(ctx, dc.ID)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	dc.Movements = movements
	return dc, nil
}

func (s *Service) newRegister(userID string, day time.Time) *DailyCash {
	now := s.clock.Now()
	return &DailyCash{
		ID:            id.New(),
		UserID:        userID,
		Date:          day,
		OpeningAmount: decimal.Zero,
		Totals:        Fold(nil),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
