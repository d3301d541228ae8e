package dto

import (
	"retailledger/internal/core/id"
	"retailledger/internal/domain/sales"
)

// SaleListQuery adds sale-specific filters to ListQuery.
type SaleListQuery struct {
	ListQuery
	CustomerID string `form:"customerId"`
	Credit     *bool  `form:"credit"`
	Paid       *bool  `form:"paid"`
}

// ToFilter converts the query into a sale filter scoped to userID.
func (q SaleListQuery) ToFilter(userID string) (sales.ListFilter, error) {
	base, err := q.ListQuery.ToFilter(userID)
	if err != nil {
		return sales.ListFilter{}, err
	}
	f := sales.ListFilter{ListFilter: base, Credit: q.Credit, Paid: q.Paid}
	if q.CustomerID != "" {
		cid, err := id.ParseOptional("customerId", &q.CustomerID)
		if err != nil {
			return f, err
		}
		f.CustomerID = cid
	}
	return f, nil
}
