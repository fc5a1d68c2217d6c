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

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T, fixtures ...testutil.ProductFixture) (*Engine, *testutil.TestDB) {
	t.Helper()
	db := testutil.SetupTestDB(t, fixtures...)
	engine := New(DefaultConfig(), db.Storage).WithClock(func() time.Time { return testNow })
	return engine, db
}

func TestProductStats(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2", Unit: "tonne"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	supplier := db.SeedSupplier("Carrières Dupont")
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	db.SeedObservations(product.ID, supplier.ID, start, "28.50", "28.63", "29.10", "30.20", "28.63")

	stats, err := engine.ProductStats(ctx, product.ID, Window{})
	require.NoError(t, err)

	assert.Equal(t, product.ID, stats.Product.ID)
	assert.Equal(t, 5, stats.DataPoints)
	assert.Equal(t, 1, stats.SuppliersCount)
	assert.InDelta(t, 29.012, stats.MeanPrice, 1e-9)
	assert.InDelta(t, 0.70233, stats.StdDeviation, 1e-4)
	require.NotNil(t, stats.CoefficientVariation)
	assert.InDelta(t, 2.4208, *stats.CoefficientVariation, 1e-3)
	assert.Equal(t, VolatilityLow, stats.VolatilityLevel)
	assert.InDelta(t, 28.50, stats.MinPrice, 1e-9)
	assert.InDelta(t, 30.20, stats.MaxPrice, 1e-9)
	assert.InDelta(t, 1.70, stats.PriceRange, 1e-9)
	assert.Equal(t, start.AddDate(0, 0, 4), stats.LastUpdate)
}

func TestProductStatsWindow(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	supplier := db.SeedSupplier("Carrières Dupont")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "28.50", "29.10", "30.20")

	from := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	stats, err := engine.ProductStats(ctx, product.ID, Window{Start: &from})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DataPoints)
	assert.InDelta(t, 29.10, stats.MinPrice, 1e-9)
}

func TestProductStatsNoHistory(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	stats, err := engine.ProductStats(context.Background(), db.MustProduct("Sable 0/2").ID, Window{})
	require.NoError(t, err)

	assert.Equal(t, 0, stats.DataPoints)
	assert.Nil(t, stats.CoefficientVariation)
	assert.Equal(t, VolatilityLow, stats.VolatilityLevel)
}

func TestProductStatsUnknownProduct(t *testing.T) {
	engine, _ := setupEngine(t)

	_, err := engine.ProductStats(context.Background(), 9999, Window{})
	assert.True(t, errors.Is(err, common.ErrUnknownProduct))
}

func TestPriceVolatilityRanking(t *testing.T) {
	engine, db := setupEngine(t,
		testutil.ProductFixture{Name: "Sable 0/2"},
		testutil.ProductFixture{Name: "Gravier 6/10"},
		testutil.ProductFixture{Name: "Ciment gris"},
	)
	ctx := context.Background()

	supplier := db.SeedSupplier("Carrières Dupont")
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	db.SeedObservations(db.MustProduct("Sable 0/2").ID, supplier.ID, start,
		"28.50", "28.63", "29.10", "30.20", "28.63") // CV ~2.4%
	db.SeedObservations(db.MustProduct("Gravier 6/10").ID, supplier.ID, start,
		"10.00", "14.00", "9.00", "15.00") // CV ~24%
	db.SeedObservations(db.MustProduct("Ciment gris").ID, supplier.ID, start,
		"8.20") // single point, no volatility signal

	ranked, err := engine.PriceVolatility(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, "Gravier 6/10", ranked[0].Product.Name)
	assert.Equal(t, VolatilityHigh, ranked[0].VolatilityLevel)
	assert.Equal(t, "Sable 0/2", ranked[1].Product.Name)
	assert.Equal(t, VolatilityLow, ranked[1].VolatilityLevel)
}

func TestPriceVolatilityLimit(t *testing.T) {
	engine, db := setupEngine(t,
		testutil.ProductFixture{Name: "Sable 0/2"},
		testutil.ProductFixture{Name: "Gravier 6/10"},
	)

	supplier := db.SeedSupplier("Carrières Dupont")
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	db.SeedObservations(db.MustProduct("Sable 0/2").ID, supplier.ID, start, "28.50", "30.20")
	db.SeedObservations(db.MustProduct("Gravier 6/10").ID, supplier.ID, start, "10.00", "14.00")

	ranked, err := engine.PriceVolatility(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, ranked, 1)
}
