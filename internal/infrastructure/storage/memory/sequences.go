package memory

import (
	"context"
	"time"

	"retailledger/internal/domain/sales"
	"retailledger/pkg/numerator"
)

// Sequences issues receipt numbers from per-user counters held in the store.
type Sequences struct {
	s   *Store
	cfg numerator.Config
}

// Sequences returns a numberer formatting numbers with cfg.
func (s *Store) Sequences(cfg numerator.Config) *Sequences {
	return &Sequences{s: s, cfg: cfg}
}

var _ sales.Numberer = (*Sequences)(nil)

func (q *Sequences) Next(_ context.Context, userID string, at time.Time) (string, error) {
	key := userID + "|" + numerator.Key(q.cfg, at)
	var num int64
	q.s.write(func(d *state) {
		d.sequences[key]++
		num = d.sequences[key]
	})
	return numerator.Format(q.cfg, at, num), nil
}
