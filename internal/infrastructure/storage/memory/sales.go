package memory

import (
	"context"
	"sort"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/domain"
	"retailledger/internal/domain/sales"
)

// SaleRepo implements the sale, payment and installment repositories.
type SaleRepo struct{ s *Store }

// Sales returns the sale aggregate repository.
func (s *Store) Sales() *SaleRepo { return &SaleRepo{s: s} }

var (
	_ sales.Repository            = (*SaleRepo)(nil)
	_ sales.PaymentRepository     = (*SaleRepo)(nil)
	_ sales.InstallmentRepository = (*SaleRepo)(nil)
)

func (r *SaleRepo) Create(_ context.Context, sale *sales.Sale) error {
	var exists bool
	r.s.write(func(d *state) {
		if _, exists = d.sales[sale.ID]; exists {
			return
		}
		putSale(d, sale)
	})
	if exists {
		return apperror.NewDuplicate("sale", "id", sale.ID.String())
	}
	return nil
}

func (r *SaleRepo) GetByID(_ context.Context, saleID id.ID) (*sales.Sale, error) {
	var out *sales.Sale
	r.s.read(func(d *state) { out = loadSale(d, saleID) })
	if out == nil {
		return nil, apperror.NewNotFound("sale", saleID.String())
	}
	return out, nil
}

func (r *SaleRepo) GetForUpdate(ctx context.Context, saleID id.ID) (*sales.Sale, error) {
	return r.GetByID(ctx, saleID)
}

func (r *SaleRepo) UpdateHeader(_ context.Context, sale *sales.Sale) error {
	var ok bool
	r.s.write(func(d *state) {
		if _, ok = d.sales[sale.ID]; ok {
			d.sales[sale.ID] = header(sale)
		}
	})
	if !ok {
		return apperror.NewNotFound("sale", sale.ID.String())
	}
	return nil
}

func (r *SaleRepo) ReplaceChildren(_ context.Context, sale *sales.Sale) error {
	r.s.write(func(d *state) {
		dropChildren(d, sale.ID)
		d.items[sale.ID] = append([]sales.Item(nil), sale.Items...)
		d.payments = append(d.payments, sale.Payments...)
		d.installments = append(d.installments, sale.Installments...)
	})
	return nil
}

func (r *SaleRepo) Delete(_ context.Context, saleID id.ID) error {
	var ok bool
	r.s.write(func(d *state) {
		if _, ok = d.sales[saleID]; ok {
			delete(d.sales, saleID)
			dropChildren(d, saleID)
		}
	})
	if !ok {
		return apperror.NewNotFound("sale", saleID.String())
	}
	return nil
}

func (r *SaleRepo) List(_ context.Context, f sales.ListFilter) (domain.ListResult[*sales.Sale], error) {
	var matched []*sales.Sale
	r.s.read(func(d *state) {
		for saleID, sale := range d.sales {
			if !matchSale(&sale, f) {
				continue
			}
			matched = append(matched, loadSale(d, saleID))
		}
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].Date.After(matched[j].Date) })
	return page(matched, f.ListFilter), nil
}

func matchSale(s *sales.Sale, f sales.ListFilter) bool {
	if s.UserID != f.UserID {
		return false
	}
	if f.From != nil && s.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && !s.Date.Before(*f.To) {
		return false
	}
	if f.CustomerID != nil && (s.CustomerID == nil || *s.CustomerID != *f.CustomerID) {
		return false
	}
	if f.Credit != nil && s.Credit != *f.Credit {
		return false
	}
	if f.Paid != nil && s.Paid != *f.Paid {
		return false
	}
	return true
}

func (r *SaleRepo) CreatePayment(_ context.Context, p *sales.Payment) error {
	r.s.write(func(d *state) { d.payments = append(d.payments, *p) })
	return nil
}

func (r *SaleRepo) GetPayment(_ context.Context, paymentID id.ID, _ bool) (*sales.Payment, error) {
	var out *sales.Payment
	r.s.read(func(d *state) {
		for _, p := range d.payments {
			if p.ID == paymentID {
				p := p
				out = &p
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("payment", paymentID.String())
	}
	return out, nil
}

func (r *SaleRepo) UpdatePayment(_ context.Context, p *sales.Payment) error {
	var ok bool
	r.s.write(func(d *state) {
		for i := range d.payments {
			if d.payments[i].ID == p.ID {
				d.payments[i] = *p
				ok = true
				return
			}
		}
	})
	if !ok {
		return apperror.NewNotFound("payment", p.ID.String())
	}
	return nil
}

func (r *SaleRepo) DeletePayment(_ context.Context, paymentID id.ID) error {
	r.s.write(func(d *state) {
		kept := make([]sales.Payment, 0, len(d.payments))
		for _, p := range d.payments {
			if p.ID != paymentID {
				kept = append(kept, p)
			}
		}
		d.payments = kept
	})
	return nil
}

func (r *SaleRepo) ListPayments(_ context.Context, saleID id.ID) ([]sales.Payment, error) {
	var out []sales.Payment
	r.s.read(func(d *state) { out = paymentsOf(d, saleID) })
	return out, nil
}

func (r *SaleRepo) CreateInstallments(_ context.Context, items []sales.Installment) error {
	r.s.write(func(d *state) { d.installments = append(d.installments, items...) })
	return nil
}

func (r *SaleRepo) GetInstallment(_ context.Context, installmentID id.ID, _ bool) (*sales.Installment, error) {
	var out *sales.Installment
	r.s.read(func(d *state) {
		for _, inst := range d.installments {
			if inst.ID == installmentID {
				inst := inst
				out = &inst
				return
			}
		}
	})
	if out == nil {
		return nil, apperror.NewNotFound("installment", installmentID.String())
	}
	return out, nil
}

func (r *SaleRepo) UpdateInstallment(_ context.Context, inst *sales.Installment) error {
	var ok bool
	r.s.write(func(d *state) {
		for i := range d.installments {
			if d.installments[i].ID == inst.ID {
				d.installments[i] = *inst
				ok = true
				return
			}
		}
	})
	if !ok {
		return apperror.NewNotFound("installment", inst.ID.String())
	}
	return nil
}

func (r *SaleRepo) DeleteInstallment(_ context.Context, installmentID id.ID) error {
	r.s.write(func(d *state) {
		kept := make([]sales.Installment, 0, len(d.installments))
		for _, inst := range d.installments {
			if inst.ID != installmentID {
				kept = append(kept, inst)
			}
		}
		d.installments = kept
	})
	return nil
}

func (r *SaleRepo) ListInstallments(_ context.Context, saleID id.ID) ([]sales.Installment, error) {
	var out []sales.Installment
	r.s.read(func(d *state) { out = installmentsOf(d, saleID) })
	return out, nil
}

func header(sale *sales.Sale) sales.Sale {
	h := *sale
	h.Items, h.Payments, h.Installments = nil, nil, nil
	h.EditHistory = append([]sales.EditSnapshot(nil), sale.EditHistory...)
	return h
}

func putSale(d *state, sale *sales.Sale) {
	d.sales[sale.ID] = header(sale)
	d.items[sale.ID] = append([]sales.Item(nil), sale.Items...)
	d.payments = append(d.payments, sale.Payments...)
	d.installments = append(d.installments, sale.Installments...)
}

func loadSale(d *state, saleID id.ID) *sales.Sale {
	h, ok := d.sales[saleID]
	if !ok {
		return nil
	}
	h.EditHistory = append([]sales.EditSnapshot(nil), h.EditHistory...)
	h.Items = append([]sales.Item{}, d.items[saleID]...)
	h.Payments = paymentsOf(d, saleID)
	h.Installments = installmentsOf(d, saleID)
	return &h
}

func paymentsOf(d *state, saleID id.ID) []sales.Payment {
	out := make([]sales.Payment, 0)
	for _, p := range d.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out
}

func installmentsOf(d *state, saleID id.ID) []sales.Installment {
	out := make([]sales.Installment, 0)
	for _, inst := range d.installments {
		if inst.SaleID == saleID {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func dropChildren(d *state, saleID id.ID) {
	delete(d.items, saleID)
	payments := make([]sales.Payment, 0, len(d.payments))
	for _, p := range d.payments {
		if p.SaleID != saleID {
			payments = append(payments, p)
		}
	}
	d.payments = payments
	installments := make([]sales.Installment, 0, len(d.installments))
	for _, inst := range d.installments {
		if inst.SaleID != saleID {
			installments = append(installments, inst)
		}
	}
	d.installments = installments
}

func page[T any](items []T, f domain.ListFilter) domain.ListResult[T] {
	res := domain.ListResult[T]{
		Items:      make([]T, 0),
		TotalCount: int64(len(items)),
		Limit:      f.Limit,
		Offset:     f.Offset,
	}
	if f.Offset >= len(items) {
		return res
	}
	end := len(items)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	res.Items = append(res.Items, items[f.Offset:end]...)
	return res
}
