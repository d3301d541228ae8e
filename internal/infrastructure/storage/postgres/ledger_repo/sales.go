package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/sales"
	"retailledger/internal/infrastructure/storage/postgres"
)

var (
	saleColumns        = postgres.ExtractDBColumns[sales.Sale]()
	itemColumns        = postgres.ExtractDBColumns[sales.Item]()
	paymentColumns     = postgres.ExtractDBColumns[sales.Payment]()
	installmentColumns = postgres.ExtractDBColumns[sales.Installment]()
)

// SaleRepo implements the sale, payment and installment repositories.
// Children are written with COPY inside the caller's transaction.
type SaleRepo struct {
	base
	inserter *postgres.BatchInserter
}

// NewSaleRepo creates the sale aggregate repository.
func NewSaleRepo(txm *postgres.TxManager) *SaleRepo {
	return &SaleRepo{base: newBase(txm), inserter: postgres.NewBatchInserter(txm)}
}

var (
	_ sales.Repository            = (*SaleRepo)(nil)
	_ sales.PaymentRepository     = (*SaleRepo)(nil)
	_ sales.InstallmentRepository = (*SaleRepo)(nil)
)

func (r *SaleRepo) Create(ctx context.Context, sale *sales.Sale) error {
	if _, err := r.insert(ctx, salesTable, saleColumns, sale, ""); err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate("sale", "id", sale.ID.String())
		}
		return err
	}
	return r.insertChildren(ctx, sale)
}

func (r *SaleRepo) insertChildren(ctx context.Context, sale *sales.Sale) error {
	if _, err := postgres.CopyStructs(ctx, r.inserter, saleItemsTable, sale.Items); err != nil {
		return fmt.Errorf("copy items: %w", err)
	}
	if _, err := postgres.CopyStructs(ctx, r.inserter, paymentsTable, sale.Payments); err != nil {
		return fmt.Errorf("copy payments: %w", err)
	}
	if _, err := postgres.CopyStructs(ctx, r.inserter, installmentsTable, sale.Installments); err != nil {
		return fmt.Errorf("copy installments: %w", err)
	}
	return nil
}

func (r *SaleRepo) GetByID(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.fetch(ctx, saleID, false)
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.fetch(ctx, saleID, true)
}

func (r *SaleRepo) fetch(ctx context.Context, saleID id.ID, forUpdate bool) (*sales.Sale, error) {
	var sale sales.Sale
	q := r.builder.Select(saleColumns...).From(salesTable).Where(squirrel.Eq{"id": saleID})
	if err := r.get(ctx, &sale, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	list := []*sales.Sale{&sale}
	if err := r.loadChildren(ctx, list); err != nil {
		return nil, err
	}
	return &sale, nil
}

// loadChildren fills items, payments and installments with one query each.
func (r *SaleRepo) loadChildren(ctx context.Context, list []*sales.Sale) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]id.ID, len(list))
	byID := make(map[id.ID]*sales.Sale, len(list))
	for i, s := range list {
		ids[i] = s.ID
		byID[s.ID] = s
		s.Items = make([]sales.Item, 0)
		s.Payments = make([]sales.Payment, 0)
		s.Installments = make([]sales.Installment, 0)
	}

	var items []sales.Item
	if err := r.selectAll(ctx, &items, r.builder.Select(itemColumns...).From(saleItemsTable).
		Where(squirrel.Eq{"sale_id": ids}).OrderBy("sale_id", "position")); err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for _, it := range items {
		byID[it.SaleID].Items = append(byID[it.SaleID].Items, it)
	}

	var payments []sales.Payment
	if err := r.selectAll(ctx, &payments, r.builder.Select(paymentColumns...).From(paymentsTable).
		Where(squirrel.Eq{"sale_id": ids}).OrderBy("created_at", "id")); err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	for _, p := range payments {
		byID[p.SaleID].Payments = append(byID[p.SaleID].Payments, p)
	}

	var installments []sales.Installment
	if err := r.selectAll(ctx, &installments, r.builder.Select(installmentColumns...).From(installmentsTable).
		Where(squirrel.Eq{"sale_id": ids}).OrderBy("sale_id", "number")); err != nil {
		return fmt.Errorf("load installments: %w", err)
	}
	for _, inst := range installments {
		byID[inst.SaleID].Installments = append(byID[inst.SaleID].Installments, inst)
	}
	return nil
}

func (r *SaleRepo) UpdateHeader(ctx context.Context, sale *sales.Sale) error {
	n, err := r.update(ctx, salesTable, saleColumns, sale, "user_id", "number", "created_at")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("sale", sale.ID.String())
	}
	return nil
}

func (r *SaleRepo) ReplaceChildren(ctx context.Context, sale *sales.Sale) error {
	for _, table := range []string{saleItemsTable, paymentsTable, installmentsTable} {
		if _, err := r.exec(ctx, r.builder.Delete(table).Where(squirrel.Eq{"sale_id": sale.ID})); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return r.insertChildren(ctx, sale)
}

// Delete removes the sale; children go by ON DELETE CASCADE.
func (r *SaleRepo) Delete(ctx context.Context, saleID id.ID) error {
	tag, err := r.exec(ctx, r.builder.Delete(salesTable).Where(squirrel.Eq{"id": saleID}))
	if err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("sale", saleID.String())
	}
	return nil
}

func (r *SaleRepo) List(ctx context.Context, f sales.ListFilter) (domain.ListResult[*sales.Sale], error) {
	where := squirrel.And{squirrel.Eq{"user_id": f.UserID}}
	where = append(where, dateRange("date", f.ListFilter)...)
	if f.CustomerID != nil {
		where = append(where, squirrel.Eq{"customer_id": *f.CustomerID})
	}
	if f.Credit != nil {
		where = append(where, squirrel.Eq{"credit": *f.Credit})
	}
	if f.Paid != nil {
		where = append(where, squirrel.Eq{"paid": *f.Paid})
	}

	res := domain.ListResult[*sales.Sale]{Items: make([]*sales.Sale, 0), Limit: f.Limit, Offset: f.Offset}
	total, err := r.count(ctx, salesTable, where)
	if err != nil {
		return res, err
	}
	res.TotalCount = total

	q := r.builder.Select(saleColumns...).From(salesTable).Where(where).
		OrderBy("date DESC", "id DESC").
		Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	if err := r.selectAll(ctx, &res.Items, q); err != nil {
		return res, fmt.Errorf("list sales: %w", err)
	}
	if err := r.loadChildren(ctx, res.Items); err != nil {
		return res, err
	}
	return res, nil
}

func (r *SaleRepo) CreatePayment(ctx context.Context, p *sales.Payment) error {
	_, err := r.insert(ctx, paymentsTable, paymentColumns, p, "")
	return err
}

func (r *SaleRepo) GetPayment(ctx context.Context, paymentID id.ID, forUpdate bool) (*sales.Payment, error) {
	var p sales.Payment
	q := r.builder.Select(paymentColumns...).From(paymentsTable).Where(squirrel.Eq{"id": paymentID})
	if err := r.get(ctx, &p, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("payment", paymentID.String())
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}

func (r *SaleRepo) UpdatePayment(ctx context.Context, p *sales.Payment) error {
	n, err := r.update(ctx, paymentsTable, paymentColumns, p, "sale_id", "user_id", "created_at")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	return nil
}

func (r *SaleRepo) DeletePayment(ctx context.Context, paymentID id.ID) error {
	_, err := r.exec(ctx, r.builder.Delete(paymentsTable).Where(squirrel.Eq{"id": paymentID}))
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

func (r *SaleRepo) ListPayments(ctx context.Context, saleID id.ID) ([]sales.Payment, error) {
	out := make([]sales.Payment, 0)
	q := r.builder.Select(paymentColumns...).From(paymentsTable).
		Where(squirrel.Eq{"sale_id": saleID}).OrderBy("created_at", "id")
	if err := r.selectAll(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func (r *SaleRepo) CreateInstallments(ctx context.Context, items []sales.Installment) error {
	if r.txm.GetTx(ctx) != nil {
		if _, err := postgres.CopyStructs(ctx, r.inserter, installmentsTable, items); err != nil {
			if isUniqueViolation(err) {
				return apperror.NewValidation("installment number must be unique per sale")
			}
			return fmt.Errorf("copy installments: %w", err)
		}
		return nil
	}
	for i := range items {
		if _, err := r.insert(ctx, installmentsTable, installmentColumns, &items[i], ""); err != nil {
			return err
		}
	}
	return nil
}

func (r *SaleRepo) GetInstallment(ctx context.Context, installmentID id.ID, forUpdate bool) (*sales.Installment, error) {
	var inst sales.Installment
	q := r.builder.Select(installmentColumns...).From(installmentsTable).Where(squirrel.Eq{"id": installmentID})
	if err := r.get(ctx, &inst, lock(q, forUpdate)); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("installment", installmentID.String())
		}
		return nil, fmt.Errorf("get installment: %w", err)
	}
	return &inst, nil
}

func (r *SaleRepo) UpdateInstallment(ctx context.Context, inst *sales.Installment) error {
	n, err := r.update(ctx, installmentsTable, installmentColumns, inst, "sale_id", "user_id", "number", "created_at")
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("installment", inst.ID.String())
	}
	return nil
}

func (r *SaleRepo) DeleteInstallment(ctx context.Context, installmentID id.ID) error {
	_, err := r.exec(ctx, r.builder.Delete(installmentsTable).Where(squirrel.Eq{"id": installmentID}))
	if err != nil {
		return fmt.Errorf("delete installment: %w", err)
	}
	return nil
}

func (r *SaleRepo) ListInstallments(ctx context.Context, saleID id.ID) ([]sales.Installment, error) {
	out := make([]sales.Installment, 0)
	q := r.builder.Select(installmentColumns...).From(installmentsTable).
		Where(squirrel.Eq{"sale_id": saleID}).OrderBy("number")
	if err := r.selectAll(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return out, nil
}

// dateRange is the half-open [From, To) predicate on column.
func dateRange(column string, f domain.ListFilter) squirrel.And {
	var where squirrel.And
	if f.From != nil {
		where = append(where, squirrel.GtOrEq{column: *f.From})
	}
	if f.To != nil {
		where = append(where, squirrel.Lt{column: *f.To})
	}
	return where
}
