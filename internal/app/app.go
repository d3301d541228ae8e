// Package app assembles the ledger services from a set of repositories.
package app

import (
	"context"
	"time"

	"retailledger/internal/core/clock"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/amortization"
	"retailledger/internal/domain/backup"
	"retailledger/internal/domain/cashregister"
	"retailledger/internal/domain/customer"
	"retailledger/internal/domain/expenses"
	"retailledger/internal/domain/installments"
	"retailledger/internal/domain/payments"
	"retailledger/internal/domain/returns"
	"retailledger/internal/domain/sales"
	"retailledger/internal/domain/stock"
	"retailledger/internal/domain/units"
	v1 "retailledger/internal/infrastructure/http/v1"
	"retailledger/internal/infrastructure/storage/memory"
	"retailledger/internal/infrastructure/storage/postgres"
	"retailledger/internal/infrastructure/storage/postgres/ledger_repo"
	"retailledger/pkg/numerator"
)

// Repositories is every storage port the services need.
type Repositories struct {
	Products     stock.Repository
	Customers    customer.Repository
	Registers    cashregister.Repository
	Sales        sales.Repository
	Payments     sales.PaymentRepository
	Installments sales.InstallmentRepository
	Expenses     expenses.Repository
	Returns      returns.Repository
	Backup       backup.Repository
	Numbers      sales.Numberer
}

// SaleNumbering is the receipt number format for sales.
var SaleNumbering = numerator.DefaultConfig("V")

// PostgresRepositories binds every port to the pgx-backed repositories.
func PostgresRepositories(txm *postgres.TxManager) Repositories {
	saleRepo := ledger_repo.NewSaleRepo(txm)
	return Repositories{
		Products:     ledger_repo.NewProductRepo(txm),
		Customers:    ledger_repo.NewCustomerRepo(txm),
		Registers:    ledger_repo.NewDailyCashRepo(txm),
		Sales:        saleRepo,
		Payments:     saleRepo,
		Installments: saleRepo,
		Expenses:     ledger_repo.NewExpenseRepo(txm),
		Returns:      ledger_repo.NewReturnRepo(txm),
		Backup:       ledger_repo.NewBackupRepo(txm),
		Numbers: numerator.New(func(ctx context.Context) numerator.Querier {
			return txm.GetQuerier(ctx)
		}, SaleNumbering),
	}
}

// MemoryRepositories binds every port to an in-process store.
func MemoryRepositories(store *memory.Store) Repositories {
	saleRepo := store.Sales()
	return Repositories{
		Products:     store.Products(),
		Customers:    store.Customers(),
		Registers:    store.Registers(),
		Sales:        saleRepo,
		Payments:     saleRepo,
		Installments: saleRepo,
		Expenses:     store.Expenses(),
		Returns:      store.Returns(),
		Backup:       store.Backup(),
		Numbers:      store.Sequences(SaleNumbering),
	}
}

// Options tune the business rules.
type Options struct {
	Clock                clock.Clock
	Limits               amortization.Limits
	AllowNegativeStock   bool
	StrictUnitConversion bool
	ImportTimeout        time.Duration
	// Guard defaults to an in-process lock.
	Guard backup.Guard
}

// NewServices wires the lifecycle managers over repos.
func NewServices(repos Repositories, txm tx.Manager, opts Options) (v1.Services, error) {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Guard == nil {
		opts.Guard = memory.NewGuard()
	}

	stockLedger := stock.NewLedger(repos.Products,
		stock.WithConverter(units.NewConverter(opts.StrictUnitConversion)),
		stock.AllowNegative(opts.AllowNegativeStock),
	)
	balances := customer.NewLedger(repos.Customers)
	register := cashregister.NewService(repos.Registers, txm, opts.Clock)

	codec, err := backup.NewCodec()
	if err != nil {
		return v1.Services{}, err
	}

	return v1.Services{
		Sales: sales.NewManager(sales.Deps{
			Repo:         repos.Sales,
			Payments:     repos.Payments,
			Installments: repos.Installments,
			Stock:        stockLedger,
			Balances:     balances,
			Register:     register,
			Numbers:      repos.Numbers,
			TxManager:    txm,
			Clock:        opts.Clock,
			Limits:       opts.Limits,
		}),
		Payments:     payments.NewManager(repos.Sales, repos.Payments, balances, register, txm, opts.Clock),
		Installments: installments.NewManager(repos.Sales, repos.Installments, balances, register, txm, opts.Clock, opts.Limits),
		Register:     register,
		Expenses:     expenses.NewService(repos.Expenses, register, txm, opts.Clock),
		Returns:      returns.NewService(repos.Returns, stockLedger, register, txm, opts.Clock),
		Backup:       backup.NewService(repos.Backup, txm, opts.Guard, opts.ImportTimeout, opts.Clock),
		Codec:        codec,
	}, nil
}
