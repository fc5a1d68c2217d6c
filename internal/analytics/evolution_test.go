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

func TestPriceEvolutionMonthly(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	supplier := db.SeedSupplier("Carrières Dupont")

	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), "28.00", "30.00")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), "30.00", "32.00")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), "38.00")

	evolution, err := engine.PriceEvolution(ctx, product.ID, GranularityMonthly, nil)
	require.NoError(t, err)

	assert.Equal(t, product.ID, evolution.Product.ID)
	assert.Equal(t, GranularityMonthly, evolution.Granularity)
	assert.Equal(t, 5, evolution.TotalDataPoints)
	require.Len(t, evolution.Buckets, 3)

	january := evolution.Buckets[0]
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), january.Period)
	assert.InDelta(t, 29.0, january.AveragePrice, 1e-9)
	assert.InDelta(t, 28.0, january.MinPrice, 1e-9)
	assert.InDelta(t, 30.0, january.MaxPrice, 1e-9)
	assert.Equal(t, 2, january.DataPoints)
	assert.Nil(t, january.VariationPercent)
	assert.False(t, january.IsSignificant)
	assert.Equal(t, []string{"Carrières Dupont"}, january.Suppliers)

	february := evolution.Buckets[1]
	require.NotNil(t, february.VariationPercent)
	// 29 -> 31 is +6.9%, below the 15% significance threshold.
	assert.InDelta(t, 6.8966, *february.VariationPercent, 1e-3)
	assert.False(t, february.IsSignificant)

	march := evolution.Buckets[2]
	require.NotNil(t, march.VariationPercent)
	// 31 -> 38 is +22.6%, significant.
	assert.InDelta(t, 22.5806, *march.VariationPercent, 1e-3)
	assert.True(t, march.IsSignificant)
}

func TestPriceEvolutionQuarterlyAndYearly(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	supplier := db.SeedSupplier("Carrières Dupont")

	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), "28.00")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), "30.00")
	db.SeedObservations(product.ID, supplier.ID,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), "32.00")

	quarterly, err := engine.PriceEvolution(ctx, product.ID, GranularityQuarterly, nil)
	require.NoError(t, err)
	require.Len(t, quarterly.Buckets, 3)
	assert.Equal(t, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), quarterly.Buckets[0].Period)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), quarterly.Buckets[1].Period)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), quarterly.Buckets[2].Period)

	yearly, err := engine.PriceEvolution(ctx, product.ID, GranularityYearly, nil)
	require.NoError(t, err)
	require.Len(t, yearly.Buckets, 2)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), yearly.Buckets[0].Period)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), yearly.Buckets[1].Period)
	assert.Equal(t, 2, yearly.Buckets[1].DataPoints)
}

func TestPriceEvolutionSupplierFilter(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})
	ctx := context.Background()

	product := db.MustProduct("Sable 0/2")
	dupont := db.SeedSupplier("Carrières Dupont")
	martin := db.SeedSupplier("Matériaux Martin")

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	db.SeedObservations(product.ID, dupont.ID, start, "28.00")
	db.SeedObservations(product.ID, martin.ID, start, "30.00")

	evolution, err := engine.PriceEvolution(ctx, product.ID, GranularityMonthly, &martin.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, evolution.TotalDataPoints)
	require.Len(t, evolution.Buckets, 1)
	assert.InDelta(t, 30.0, evolution.Buckets[0].AveragePrice, 1e-9)
	assert.Equal(t, []string{"Matériaux Martin"}, evolution.Buckets[0].Suppliers)
}

func TestPriceEvolutionInvalidGranularity(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	_, err := engine.PriceEvolution(context.Background(), db.MustProduct("Sable 0/2").ID, "weekly", nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestPriceEvolutionUnknownProduct(t *testing.T) {
	engine, _ := setupEngine(t)

	_, err := engine.PriceEvolution(context.Background(), 9999, GranularityMonthly, nil)
	assert.True(t, errors.Is(err, common.ErrUnknownProduct))
}

func TestPriceEvolutionNoHistory(t *testing.T) {
	engine, db := setupEngine(t, testutil.ProductFixture{Name: "Sable 0/2"})

	evolution, err := engine.PriceEvolution(context.Background(), db.MustProduct("Sable 0/2").ID, GranularityMonthly, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, evolution.TotalDataPoints)
	assert.Empty(t, evolution.Buckets)
}
