package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/testutil"
)

func TestDashboardKPIsEmptyDatabase(t *testing.T) {
	engine, _ := setupEngine(t)

	kpis, err := engine.DashboardKPIs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, kpis.TotalInvoices)
	assert.Equal(t, 0, kpis.MonthlyInvoices)
	assert.Equal(t, 0, kpis.TotalProducts)
	assert.Equal(t, 0, kpis.TotalSuppliers)
	assert.Empty(t, kpis.PriceTrend)
	assert.Empty(t, kpis.TopVolatileProducts)
	assert.Equal(t, 0.0, kpis.GlobalPriceVariation)
}

func TestDashboardKPIs(t *testing.T) {
	engine, db := setupEngine(t,
		testutil.ProductFixture{Name: "Sable 0/2"},
		testutil.ProductFixture{Name: "Gravier 6/10"},
	)
	ctx := context.Background()

	supplier := db.SeedSupplier("Carrières Dupont")
	product := db.MustProduct("Sable 0/2")

	// Two months of history inside the trailing year: 28 -> 35 is +25%.
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "28.00")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC), "35.00")

	saveInvoice(t, db, supplier.ID, "inv-past", time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	saveInvoice(t, db, supplier.ID, "inv-current", testNow)

	kpis, err := engine.DashboardKPIs(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, kpis.TotalInvoices)
	assert.Equal(t, 1, kpis.MonthlyInvoices)
	assert.Equal(t, 2, kpis.TotalProducts)
	assert.Equal(t, 1, kpis.TotalSuppliers)

	require.Len(t, kpis.PriceTrend, 2)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), kpis.PriceTrend[0].Month)
	assert.InDelta(t, 28.0, kpis.PriceTrend[0].AveragePrice, 1e-9)
	assert.InDelta(t, 35.0, kpis.PriceTrend[1].AveragePrice, 1e-9)
	assert.InDelta(t, 25.0, kpis.GlobalPriceVariation, 1e-9)

	require.Len(t, kpis.TopVolatileProducts, 1)
	assert.Equal(t, product.ID, kpis.TopVolatileProducts[0].Product.ID)
}

func saveInvoice(t *testing.T, db *testutil.TestDB, supplierID int64, id string, date time.Time) {
	t.Helper()

	inv := &model.Invoice{
		ID:           id,
		SupplierName: "Carrières Dupont",
		Date:         date,
		CreatedAt:    date,
		Currency:     "EUR",
		Status:       model.InvoiceSaved,
	}
	if err := db.Storage.SaveInvoice(context.Background(), inv, supplierID); err != nil {
		t.Fatalf("failed to save invoice %s: %v", id, err)
	}
}
