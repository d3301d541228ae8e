// Package memory is an in-process implementation of every ledger repository.
// Transactions are serialized and roll back by restoring a snapshot, so the
// all-or-nothing behaviour of the lifecycle managers holds without Postgres.
package memory

import (
	"context"
	"sync"

	"retailledger/internal/core/id"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/returns"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/stock"
)

type state struct {
	products     map[id.ID]stock.Product
	customers    map[id.ID]customer.Customer
	registers    map[id.ID]cashregister.DailyCash
	movements    []cashregister.Movement
	sales        map[id.ID]sales.Sale
	items        map[id.ID][]sales.Item
	payments     []sales.Payment
	installments []sales.Installment
	expenses     map[id.ID]expenses.Expense
	returns      map[id.ID]returns.ProductReturn
	sequences    map[string]int64
}

func newState() *state {
	return &state{
		products:  make(map[id.ID]stock.Product),
		customers: make(map[id.ID]customer.Customer),
		registers: make(map[id.ID]cashregister.DailyCash),
		sales:     make(map[id.ID]sales.Sale),
		items:     make(map[id.ID][]sales.Item),
		expenses:  make(map[id.ID]expenses.Expense),
		returns:   make(map[id.ID]returns.ProductReturn),
		sequences: make(map[string]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.registers {
		c.registers[k] = v
	}
	c.movements = append([]cashregister.Movement(nil), s.movements...)
	for k, v := range s.sales {
		v.EditHistory = append([]sales.EditSnapshot(nil), v.EditHistory...)
		c.sales[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]sales.Item(nil), v...)
	}
	c.payments = append([]sales.Payment(nil), s.payments...)
	c.installments = append([]sales.Installment(nil), s.installments...)
	for k, v := range s.expenses {
		c.expenses[k] = v
	}
	for k, v := range s.returns {
		c.returns[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store holds every entity in memory.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data *state
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newState()}
}

func (s *Store) read(fn func(d *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.data)
}

func (s *Store) write(fn func(d *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

type txKey struct{}

// TxManager serializes transactions over a Store.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

var _ tx.Manager = (*TxManager)(nil)

// RunInTransaction runs fn while holding the store's transaction lock and
// restores the pre-transaction state if fn fails. Nested calls join.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunWithOptions(ctx, tx.Options{}, fn)
}

// RunWithOptions ignores opts; memory transactions are always serializable.
func (m *TxManager) RunWithOptions(ctx context.Context, _ tx.Options, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	var snapshot *state
	m.store.read(func(d *state) { snapshot = d.clone() })

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		m.store.write(func(d *state) { *d = *snapshot })
		return err
	}
	return nil
}
