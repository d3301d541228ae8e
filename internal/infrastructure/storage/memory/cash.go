package memory

import (
	"context"
	"sort"
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/clock"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/cashregister"
)

// CashRepo implements cashregister.Repository.
type CashRepo struct{ s *Store }

// Registers returns the daily cash repository.
func (s *Store) Registers() *CashRepo { return &CashRepo{s: s} }

var _ cashregister.Repository = (*CashRepo)(nil)

func (r *CashRepo) GetByDay(_ context.Context, userID string, start, end time.Time, _ bool) (*cashregister.DailyCash, error) {
	var found *cashregister.DailyCash
	r.s.read(func(d *state) {
		for _, dc := range d.registers {
			if dc.UserID == userID && !dc.Date.Before(start) && dc.Date.Before(end) {
				dc := dc
				found = &dc
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("daily cash", start.Format(clock.DateLayout))
	}
	return found, nil
}

func (r *CashRepo) GetByID(_ context.Context, dailyCashID id.ID, _ bool) (*cashregister.DailyCash, error) {
	var (
		dc cashregister.DailyCash
		ok bool
	)
	r.s.read(func(d *state) { dc, ok = d.registers[dailyCashID] })
	if !ok {
		return nil, apperror.NewNotFound("daily cash", dailyCashID.String())
	}
	return &dc, nil
}

func (r *CashRepo) CreateIfAbsent(_ context.Context, dc *cashregister.DailyCash) error {
	r.s.write(func(d *state) {
		if !dayTaken(d, dc) {
			d.registers[dc.ID] = stripMovements(dc)
		}
	})
	return nil
}

func (r *CashRepo) Create(_ context.Context, dc *cashregister.DailyCash) error {
	var taken bool
	r.s.write(func(d *state) {
		if taken = dayTaken(d, dc); !taken {
			d.registers[dc.ID] = stripMovements(dc)
		}
	})
	if taken {
		return apperror.NewDuplicate("daily cash", "day", dc.Date.Format(clock.DateLayout))
	}
	return nil
}

func (r *CashRepo) Update(_ context.Context, dc *cashregister.DailyCash) error {
	var ok bool
	r.s.write(func(d *state) {
		if _, ok = d.registers[dc.ID]; ok {
			d.registers[dc.ID] = stripMovements(dc)
		}
	})
	if !ok {
		return apperror.NewNotFound("daily cash", dc.ID.String())
	}
	return nil
}

func (r *CashRepo) AddMovement(_ context.Context, m *cashregister.Movement) error {
	r.s.write(func(d *state) { d.movements = append(d.movements, *m) })
	return nil
}

func (r *CashRepo) ListMovements(_ context.Context, dailyCashID id.ID) ([]cashregister.Movement, error) {
	out := make([]cashregister.Movement, 0)
	r.s.read(func(d *state) {
		for _, m := range d.movements {
			if m.DailyCashID == dailyCashID {
				out = append(out, m)
			}
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *CashRepo) DeleteMovements(_ context.Context, userID string, link cashregister.Link) ([]id.ID, error) {
	var affected []id.ID
	r.s.write(func(d *state) {
		seen := make(map[id.ID]bool)
		kept := d.movements[:0]
		for _, m := range d.movements {
			if m.UserID == userID && link.Matches(&m) {
				if !seen[m.DailyCashID] {
					seen[m.DailyCashID] = true
					affected = append(affected, m.DailyCashID)
				}
				continue
			}
			kept = append(kept, m)
		}
		d.movements = kept
	})
	return affected, nil
}

func dayTaken(d *state, dc *cashregister.DailyCash) bool {
	start, end := clock.DayRange(dc.Date)
	for _, existing := range d.registers {
		if existing.UserID == dc.UserID && !existing.Date.Before(start) && existing.Date.Before(end) {
			return true
		}
	}
	return false
}

func stripMovements(dc *cashregister.DailyCash) cashregister.DailyCash {
	out := *dc
	out.Movements = nil
	return out
}
