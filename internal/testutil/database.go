// Package testutil provides shared helpers for tests that need a migrated
// in-memory store with catalog fixtures.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturio/factura/internal/matcher"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
	"github.com/facturio/factura/internal/storage"
)

// ProductFixture seeds one catalog product.
type ProductFixture struct {
	Name     string
	Category string
	Unit     string
	Aliases  []string
}

// TestDB wraps an in-memory store with its seeded fixtures.
type TestDB struct {
	Storage  service.Storage
	Products map[string]*model.Product
	t        *testing.T
}

// SetupTestDB creates a migrated in-memory SQLite store and seeds the given
// products. Cleanup is registered automatically.
func SetupTestDB(t *testing.T, fixtures ...ProductFixture) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	db := &TestDB{
		Storage:  store,
		Products: make(map[string]*model.Product),
		t:        t,
	}

	for _, f := range fixtures {
		product, err := store.CreateProduct(ctx, f.Name, matcher.Normalize(f.Name), f.Category, f.Unit)
		if err != nil {
			t.Fatalf("failed to seed product %q: %v", f.Name, err)
		}
		for _, alias := range f.Aliases {
			if err := store.AddProductAlias(ctx, product.ID, alias); err != nil {
				t.Fatalf("failed to seed alias %q: %v", alias, err)
			}
			product.Aliases = append(product.Aliases, alias)
		}
		db.Products[f.Name] = product
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return db
}

// MustProduct returns a seeded product by name or fails the test.
func (db *TestDB) MustProduct(name string) *model.Product {
	db.t.Helper()
	product, ok := db.Products[name]
	if !ok {
		db.t.Fatalf("no seeded product named %q", name)
	}
	return product
}

// SeedSupplier registers a supplier and returns it.
func (db *TestDB) SeedSupplier(name string) *model.Supplier {
	db.t.Helper()
	supplier, err := db.Storage.UpsertSupplier(context.Background(), name, matcher.NormalizeSupplier(name))
	if err != nil {
		db.t.Fatalf("failed to seed supplier %q: %v", name, err)
	}
	return supplier
}

// SeedObservations appends a price series for one (product, supplier) pair,
// one observation per day starting at start.
func (db *TestDB) SeedObservations(productID, supplierID int64, start time.Time, unitPrices ...string) {
	db.t.Helper()

	observations := make([]model.PriceObservation, 0, len(unitPrices))
	for i, price := range unitPrices {
		observations = append(observations, model.PriceObservation{
			ProductID:  productID,
			SupplierID: supplierID,
			InvoiceID:  "seed",
			Date:       start.AddDate(0, 0, i),
			UnitPrice:  mustDecimal(db.t, price),
			Quantity:   decimal.NewFromInt(1),
		})
	}
	if err := db.Storage.AppendObservations(context.Background(), observations); err != nil {
		db.t.Fatalf("failed to seed observations: %v", err)
	}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("invalid decimal %q: %v", s, err)
	}
	return d
}
