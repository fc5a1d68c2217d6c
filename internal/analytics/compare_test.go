package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/testutil"
)

func TestCompareSuppliers(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	dupont := db.SeedSupplier("Carrières Dupont")
	martin := db.SeedSupplier("Matériaux Martin")

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	db.SeedObservations(product.ID, dupont.ID, start, "28.50", "28.63", "28.76")
	db.SeedObservations(product.ID, martin.ID, start, "29.80", "30.00", "30.20")

	comparisons, err := engine.CompareSuppliers(ctx, product.ID)
	require.NoError(t, err)
	require.Len(t, comparisons, 2)

	// Cheapest average first, flagged best price.
	assert.Equal(t, dupont.ID, comparisons[0].Supplier.ID)
	assert.InDelta(t, 28.63, comparisons[0].AveragePrice, 1e-9)
	assert.True(t, comparisons[0].IsBestPrice)
	assert.Equal(t, 3, comparisons[0].DataPoints)
	assert.InDelta(t, 28.50, comparisons[0].MinPrice, 1e-9)
	assert.InDelta(t, 28.76, comparisons[0].MaxPrice, 1e-9)
	assert.Equal(t, start.AddDate(0, 0, 2), comparisons[0].LastUpdate)

	assert.Equal(t, martin.ID, comparisons[1].Supplier.ID)
	assert.InDelta(t, 30.00, comparisons[1].AveragePrice, 1e-9)
	assert.False(t, comparisons[1].IsBestPrice)
}

func TestCompareSuppliersTiedBestPrice(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	product := db.MustProduct("Sable 0/2")
	dupont := db.SeedSupplier("Carrières Dupont")
	martin := db.SeedSupplier("Matériaux Martin")

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	db.SeedObservations(product.ID, dupont.ID, start, "28.50")
	db.SeedObservations(product.ID, martin.ID, start, "28.50")

	comparisons, err := engine.CompareSuppliers(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, comparisons, 2)

	assert.True(t, comparisons[0].IsBestPrice)
	assert.True(t, comparisons[1].IsBestPrice)
	assert.Equal(t, dupont.ID, comparisons[0].Supplier.ID)
}

func TestCompareSuppliersRecentTrend(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	product := db.MustProduct("Sable 0/2")
	increasing := db.SeedSupplier("Carrières Dupont")
	stable := db.SeedSupplier("Matériaux Martin")
	decreasing := db.SeedSupplier("Sablières du Nord")

	// All observations sit inside the 90-day trailing window of the fixed
	// clock (2026-06-01).
	start := testNow.AddDate(0, 0, -10)
	db.SeedObservations(product.ID, increasing.ID, start, "28.00", "28.10", "31.00")
	db.SeedObservations(product.ID, stable.ID, start, "28.00", "28.10", "28.20")
	db.SeedObservations(product.ID, decreasing.ID, start, "28.00", "28.10", "25.00")

	comparisons, err := engine.CompareSuppliers(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, comparisons, 3)

	trends := make(map[int64]Trend)
	for _, c := range comparisons {
		trends[c.Supplier.ID] = c.RecentTrend
	}

	assert.Equal(t, TrendIncreasing, trends[increasing.ID])
	assert.Equal(t, TrendStable, trends[stable.ID])
	assert.Equal(t, TrendDecreasing, trends[decreasing.ID])
}

func TestCompareSuppliersStaleHistoryIsStable(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	product := db.MustProduct("Sable 0/2")
	supplier := db.SeedSupplier("Carrières Dupont")

	// Everything older than the trailing window.
	start := testNow.AddDate(0, 0, -200)
	db.SeedObservations(product.ID, supplier.ID, start, "28.00", "40.00")

	comparisons, err := engine.CompareSuppliers(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, comparisons, 1)
	assert.Equal(t, TrendStable, comparisons[0].RecentTrend)
}

func TestCompareSuppliersNoHistory(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	comparisons, err := engine.CompareSuppliers(context.Background(), db.MustProduct("Sable 0/2").ID)
	require.NoError(t, err)
	assert.Empty(t, comparisons)
}

func TestCompareSuppliersUnknownProduct(t *testing.T) {
	engine, _ := setupEngine(t)

	_, err := engine.CompareSuppliers(context.Background(), 9999)
	assert.True(t, errors.Is(err, common.ErrUnknownProduct))
}
