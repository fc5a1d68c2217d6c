// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/facturio/factura/internal/model"
)

// ObservationFilter defines filtering options for price ledger queries.
// Results are always ordered by (date, seq) ascending so that "previous
// observation" comparisons are deterministic.
type ObservationFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	SupplierID *int64
	ProductID  int64
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Catalog operations.
	GetProducts(ctx context.Context) ([]model.Product, error)
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	GetProductByNormalizedName(ctx context.Context, normalizedName string) (*model.Product, error)
	CreateProduct(ctx context.Context, name, normalizedName, category, unit string) (*model.Product, error)
	AddProductAlias(ctx context.Context, productID int64, alias string) error
	DeprecateProduct(ctx context.Context, id int64) error

	// Supplier operations.
	GetSuppliers(ctx context.Context) ([]model.Supplier, error)
	GetSupplierByID(ctx context.Context, id int64) (*model.Supplier, error)
	UpsertSupplier(ctx context.Context, name, normalizedName string) (*model.Supplier, error)

	// Price ledger operations. The ledger is append-only; observations are
	// never updated or deleted.
	AppendObservations(ctx context.Context, observations []model.PriceObservation) error
	GetObservations(ctx context.Context, filter ObservationFilter) ([]model.PriceObservation, error)
	GetObservationsSince(ctx context.Context, since time.Time) ([]model.PriceObservation, error)

	// Invoice operations. ListInvoices returns headers without lines,
	// newest first; GetInvoiceCountSince counts by upload time.
	SaveInvoice(ctx context.Context, invoice *model.Invoice, supplierID int64) error
	GetInvoiceByID(ctx context.Context, id string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, limit, offset int) ([]model.Invoice, error)
	GetInvoiceCount(ctx context.Context) (int, error)
	GetInvoiceCountSince(ctx context.Context, since time.Time) (int, error)

	// Database management.
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// RetryOptions configures retry behavior for operations hitting the shared
// store.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
