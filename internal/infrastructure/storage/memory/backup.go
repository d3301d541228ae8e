package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/backup"
	"retailledger/internal/domain/cashregister"
)

// BackupRepo implements backup.Repository.
type BackupRepo struct{ s *Store }

// Backup returns the backup repository.
func (s *Store) Backup() *BackupRepo { return &BackupRepo{s: s} }

var _ backup.Repository = (*BackupRepo)(nil)

func (r *BackupRepo) Export(_ context.Context, userID string) (*backup.Snapshot, error) {
	snap := &backup.Snapshot{}
	r.s.read(func(d *state) {
		for _, c := range d.customers {
			if c.UserID == userID {
				snap.Customers = append(snap.Customers, c)
			}
		}
		for _, p := range d.products {
			if p.UserID == userID {
				snap.Products = append(snap.Products, p)
			}
		}
		for saleID, sale := range d.sales {
			if sale.UserID == userID {
				snap.Sales = append(snap.Sales, *loadSale(d, saleID))
			}
		}
		for _, dc := range d.registers {
			if dc.UserID != userID {
				continue
			}
			for _, m := range d.movements {
				if m.DailyCashID == dc.ID {
					dc.Movements = append(dc.Movements, m)
				}
			}
			snap.DailyCash = append(snap.DailyCash, dc)
		}
		for _, e := range d.expenses {
			if e.UserID == userID {
				snap.Expenses = append(snap.Expenses, e)
			}
		}
		for _, ret := range d.returns {
			if ret.UserID == userID {
				snap.Returns = append(snap.Returns, ret)
			}
		}
	})
	sort.Slice(snap.Sales, func(i, j int) bool { return snap.Sales[i].Date.Before(snap.Sales[j].Date) })
	sort.Slice(snap.DailyCash, func(i, j int) bool { return snap.DailyCash[i].Date.Before(snap.DailyCash[j].Date) })
	return snap, nil
}

func (r *BackupRepo) Purge(_ context.Context, userID string) error {
	r.s.write(func(d *state) {
		for k, c := range d.customers {
			if c.UserID == userID {
				delete(d.customers, k)
			}
		}
		for k, p := range d.products {
			if p.UserID == userID {
				delete(d.products, k)
			}
		}
		for k, sale := range d.sales {
			if sale.UserID == userID {
				delete(d.sales, k)
				dropChildren(d, k)
			}
		}
		for k, dc := range d.registers {
			if dc.UserID == userID {
				delete(d.registers, k)
			}
		}
		kept := make([]cashregister.Movement, 0, len(d.movements))
		for _, m := range d.movements {
			if m.UserID != userID {
				kept = append(kept, m)
			}
		}
		d.movements = kept
		for k, e := range d.expenses {
			if e.UserID == userID {
				delete(d.expenses, k)
			}
		}
		for k, ret := range d.returns {
			if ret.UserID == userID {
				delete(d.returns, k)
			}
		}
	})
	return nil
}

// Import rejects ids already held by any user, like the primary keys do.
func (r *BackupRepo) Import(_ context.Context, snap *backup.Snapshot) error {
	var err error
	r.s.write(func(d *state) {
		if err = importConflict(d, snap); err != nil {
			return
		}
		for _, c := range snap.Customers {
			d.customers[c.ID] = c
		}
		for _, p := range snap.Products {
			d.products[p.ID] = p
		}
		for i := range snap.Sales {
			putSale(d, &snap.Sales[i])
		}
		for i := range snap.DailyCash {
			dc := &snap.DailyCash[i]
			d.registers[dc.ID] = stripMovements(dc)
			d.movements = append(d.movements, dc.Movements...)
		}
		for _, e := range snap.Expenses {
			d.expenses[e.ID] = e
		}
		for _, ret := range snap.Returns {
			d.returns[ret.ID] = ret
		}
	})
	return err
}

func importConflict(d *state, snap *backup.Snapshot) error {
	dup := func(entity string, rowID id.ID) error {
		return apperror.NewDuplicate(entity, "id", rowID.String())
	}
	for _, c := range snap.Customers {
		if _, ok := d.customers[c.ID]; ok {
			return dup("customer", c.ID)
		}
	}
	for _, p := range snap.Products {
		if _, ok := d.products[p.ID]; ok {
			return dup("product", p.ID)
		}
	}

	taken := make(map[id.ID]bool, len(d.payments)+len(d.installments)+len(d.movements))
	for _, p := range d.payments {
		taken[p.ID] = true
	}
	for _, inst := range d.installments {
		taken[inst.ID] = true
	}
	for _, m := range d.movements {
		taken[m.ID] = true
	}
	for i := range snap.Sales {
		sale := &snap.Sales[i]
		if _, ok := d.sales[sale.ID]; ok {
			return dup("sale", sale.ID)
		}
		for _, p := range sale.Payments {
			if taken[p.ID] {
				return dup("payment", p.ID)
			}
		}
		for _, inst := range sale.Installments {
			if taken[inst.ID] {
				return dup("installment", inst.ID)
			}
		}
	}
	for i := range snap.DailyCash {
		dc := &snap.DailyCash[i]
		if _, ok := d.registers[dc.ID]; ok {
			return dup("daily cash", dc.ID)
		}
		for _, m := range dc.Movements {
			if taken[m.ID] {
				return dup("cash movement", m.ID)
			}
		}
	}
	for _, e := range snap.Expenses {
		if _, ok := d.expenses[e.ID]; ok {
			return dup("expense", e.ID)
		}
	}
	for _, ret := range snap.Returns {
		if _, ok := d.returns[ret.ID]; ok {
			return dup("return", ret.ID)
		}
	}
	return nil
}

// Guard is an in-process maintenance lock, used when redis is not configured.
type Guard struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewGuard creates an in-process maintenance lock.
func NewGuard() *Guard {
	return &Guard{held: make(map[string]time.Time), clock: time.Now}
}

var _ backup.Guard = (*Guard)(nil)

func (g *Guard) Acquire(_ context.Context, userID string, ttl time.Duration) (func(context.Context) error, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock()
	if until, ok := g.held[userID]; ok && now.Before(until) {
		return nil, backup.ErrLocked
	}
	token := now.Add(ttl)
	g.held[userID] = token

	return func(context.Context) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.held[userID].Equal(token) {
			delete(g.held, userID)
		}
		return nil
	}, nil
}

func (g *Guard) Active(_ context.Context, userID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.held[userID]
	return ok && g.clock().Before(until), nil
}
