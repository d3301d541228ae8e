// Package numerator issues human-readable receipt numbers (V-2024-00001).
// Numbers are drawn inside the caller's transaction, so a rolled back sale
// gives its number back and the sequence stays gapless per user.
package numerator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierSource returns the querier bound to ctx (the open transaction, if any).
type QuerierSource func(ctx context.Context) Querier

// Config holds numbering configuration.
type Config struct {
	// Prefix added to all numbers (e.g., "V" for sales)
	Prefix string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns yearly-reset numbering for prefix.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: "year",
	}
}

// Service draws numbers from sys_sequences.
type Service struct {
	querier QuerierSource
	cfg     Config
}

// New creates a numerator for one document kind.
func New(querier QuerierSource, cfg Config) *Service {
	return &Service{querier: querier, cfg: cfg}
}

// Next returns the user's next number for the period containing at.
func (s *Service) Next(ctx context.Context, userID string, at time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := Key(s.cfg, at)
	var num int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (user_id, sequence_key, current_val)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, sequence_key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, userID, key).Scan(&num)
	if err != nil {
		return "", fmt.Errorf("next number: %w", err)
	}
	return Format(s.cfg, at, num), nil
}

// Key is the sequence key for the period containing at.
func Key(cfg Config, at time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, at.UTC().Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, at.UTC().Format("2006"))
	default:
		return cfg.Prefix
	}
}

// Format renders num according to cfg.
func Format(cfg Config, at time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, at.UTC().Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
