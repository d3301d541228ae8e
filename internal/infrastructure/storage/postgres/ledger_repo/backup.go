package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain/backup"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/sales"
	"retailledger/internal/infrastructure/storage/postgres"
)

// BackupRepo implements backup.Repository.
type BackupRepo struct {
	base
	sales    *SaleRepo
	inserter *postgres.BatchInserter
	batch    *postgres.BatchExecutor
}

// NewBackupRepo creates the backup repository.
func NewBackupRepo(txm *postgres.TxManager) *BackupRepo {
	return &BackupRepo{
		base:     newBase(txm),
		sales:    NewSaleRepo(txm),
		inserter: postgres.NewBatchInserter(txm),
		batch:    postgres.NewBatchExecutor(txm),
	}
}

var _ backup.Repository = (*BackupRepo)(nil)

func (r *BackupRepo) Export(ctx context.Context, userID string) (*backup.Snapshot, error) {
	snap := &backup.Snapshot{}
	byUser := squirrel.Eq{"user_id": userID}

	if err := r.selectAll(ctx, &snap.Customers, r.builder.Select(customerColumns...).From(customersTable).Where(byUser).OrderBy("id")); err != nil {
		return nil, fmt.Errorf("export customers: %w", err)
	}
	if err := r.selectAll(ctx, &snap.Products, r.builder.Select(productColumns...).From(productsTable).Where(byUser).OrderBy("id")); err != nil {
		return nil, fmt.Errorf("export products: %w", err)
	}

	var saleRows []*sales.Sale
	if err := r.selectAll(ctx, &saleRows, r.builder.Select(saleColumns...).From(salesTable).Where(byUser).OrderBy("date", "id")); err != nil {
		return nil, fmt.Errorf("export sales: %w", err)
	}
	if err := r.sales.loadChildren(ctx, saleRows); err != nil {
		return nil, fmt.Errorf("export sale children: %w", err)
	}
	snap.Sales = make([]sales.Sale, 0, len(saleRows))
	for _, s := range saleRows {
		snap.Sales = append(snap.Sales, *s)
	}

	if err := r.selectAll(ctx, &snap.DailyCash, r.builder.Select(dailyCashColumns...).From(dailyCashTable).Where(byUser).OrderBy("day")); err != nil {
		return nil, fmt.Errorf("export daily cash: %w", err)
	}
	var movements []cashregister.Movement
	if err := r.selectAll(ctx, &movements, r.builder.Select(movementColumns...).From(movementsTable).Where(byUser).OrderBy("created_at", "id")); err != nil {
		return nil, fmt.Errorf("export movements: %w", err)
	}
	index := make(map[id.ID]int, len(snap.DailyCash))
	for i := range snap.DailyCash {
		index[snap.DailyCash[i].ID] = i
		snap.DailyCash[i].Movements = make([]cashregister.Movement, 0)
	}
	for _, m := range movements {
		if i, ok := index[m.DailyCashID]; ok {
			snap.DailyCash[i].Movements = append(snap.DailyCash[i].Movements, m)
		}
	}

	if err := r.selectAll(ctx, &snap.Expenses, r.builder.Select(expenseColumns...).From(expensesTable).Where(byUser).OrderBy("date", "id")); err != nil {
		return nil, fmt.Errorf("export expenses: %w", err)
	}
	if err := r.selectAll(ctx, &snap.Returns, r.builder.Select(returnColumns...).From(returnsTable).Where(byUser).OrderBy("date", "id")); err != nil {
		return nil, fmt.Errorf("export returns: %w", err)
	}
	return snap, nil
}

// Purge deletes in dependency order in a single round-trip.
func (r *BackupRepo) Purge(ctx context.Context, userID string) error {
	tables := []string{
		movementsTable, dailyCashTable,
		salesTable, // children cascade
		expensesTable, returnsTable,
		productsTable, customersTable,
	}
	queries := make([]postgres.BatchQuery, 0, len(tables))
	for _, table := range tables {
		sql, args, err := r.builder.Delete(table).Where(squirrel.Eq{"user_id": userID}).ToSql()
		if err != nil {
			return fmt.Errorf("build purge %s: %w", table, err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	return r.batch.ExecuteBatch(ctx, queries)
}

func (r *BackupRepo) Import(ctx context.Context, snap *backup.Snapshot) error {
	var (
		items        []sales.Item
		payments     []sales.Payment
		installments []sales.Installment
		movements    []cashregister.Movement
	)
	for i := range snap.Sales {
		items = append(items, snap.Sales[i].Items...)
		payments = append(payments, snap.Sales[i].Payments...)
		installments = append(installments, snap.Sales[i].Installments...)
	}
	for i := range snap.DailyCash {
		movements = append(movements, snap.DailyCash[i].Movements...)
	}

	steps := []struct {
		table string
		copy  func() (int64, error)
	}{
		{customersTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, customersTable, snap.Customers) }},
		{productsTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, productsTable, snap.Products) }},
		{salesTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, salesTable, snap.Sales) }},
		{saleItemsTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, saleItemsTable, items) }},
		{paymentsTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, paymentsTable, payments) }},
		{installmentsTable, func() (int64, error) {
			return postgres.CopyStructs(ctx, r.inserter, installmentsTable, installments)
		}},
		{dailyCashTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, dailyCashTable, snap.DailyCash) }},
		{movementsTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, movementsTable, movements) }},
		{expensesTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, expensesTable, snap.Expenses) }},
		{returnsTable, func() (int64, error) { return postgres.CopyStructs(ctx, r.inserter, returnsTable, snap.Returns) }},
	}
	for _, step := range steps {
		if _, err := step.copy(); err != nil {
			if isUniqueViolation(err) {
				return apperror.NewDuplicate(step.table, "id", violationDetail(err)).WithCause(err)
			}
			return fmt.Errorf("import %s: %w", step.table, err)
		}
	}
	return nil
}
