package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

func TestAppendObservationsAssignsSeq(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Sable 0/2", "sable 0/2")
	supplier := seedSupplier(t, store, "Carrières Dupont", "carrieres dupont")
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	observations := []model.PriceObservation{
		observation(product.ID, supplier.ID, "inv-1", date, "28.50"),
		observation(product.ID, supplier.ID, "inv-1", date, "28.63"),
	}
	require.NoError(t, store.AppendObservations(ctx, observations))

	assert.Greater(t, observations[0].Seq, int64(0))
	assert.Greater(t, observations[1].Seq, observations[0].Seq)
}

func TestAppendObservationsValidation(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name         string
		observations []model.PriceObservation
	}{
		{name: "nil slice", observations: nil},
		{name: "empty slice", observations: []model.PriceObservation{}},
		{
			name: "missing product",
			observations: []model.PriceObservation{
				observation(0, 1, "inv-1", time.Now(), "28.50"),
			},
		},
		{
			name: "missing date",
			observations: []model.PriceObservation{
				observation(1, 1, "inv-1", time.Time{}, "28.50"),
			},
		},
		{
			name: "negative price",
			observations: []model.PriceObservation{
				observation(1, 1, "inv-1", time.Now(), "-1.00"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.AppendObservations(ctx, tt.observations))
		})
	}
}

func TestGetObservationsOrdering(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Sable 0/2", "sable 0/2")
	supplier := seedSupplier(t, store, "Carrières Dupont", "carrieres dupont")

	day1 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	// Insert out of date order; same-day rows must keep insertion order.
	require.NoError(t, store.AppendObservations(ctx, []model.PriceObservation{
		observation(product.ID, supplier.ID, "inv-2", day2, "30.20"),
		observation(product.ID, supplier.ID, "inv-1a", day1, "28.50"),
		observation(product.ID, supplier.ID, "inv-1b", day1, "28.63"),
	}))

	observations, err := store.GetObservations(ctx, service.ObservationFilter{ProductID: product.ID})
	require.NoError(t, err)
	require.Len(t, observations, 3)

	assert.Equal(t, "inv-1a", observations[0].InvoiceID)
	assert.Equal(t, "inv-1b", observations[1].InvoiceID)
	assert.Equal(t, "inv-2", observations[2].InvoiceID)
	assert.True(t, observations[0].UnitPrice.Equal(decimal.RequireFromString("28.50")))
}

func TestGetObservationsFilters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Sable 0/2", "sable 0/2")
	other := seedProduct(t, store, "Gravier 6/10", "gravier 6/10")
	dupont := seedSupplier(t, store, "Carrières Dupont", "carrieres dupont")
	martin := seedSupplier(t, store, "Matériaux Martin", "materiaux martin")

	day1 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	day3 := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendObservations(ctx, []model.PriceObservation{
		observation(product.ID, dupont.ID, "inv-1", day1, "28.50"),
		observation(product.ID, martin.ID, "inv-2", day2, "29.80"),
		observation(product.ID, dupont.ID, "inv-3", day3, "30.20"),
		observation(other.ID, dupont.ID, "inv-4", day2, "12.00"),
	}))

	bySupplier, err := store.GetObservations(ctx, service.ObservationFilter{
		ProductID:  product.ID,
		SupplierID: &dupont.ID,
	})
	require.NoError(t, err)
	assert.Len(t, bySupplier, 2)

	windowed, err := store.GetObservations(ctx, service.ObservationFilter{
		ProductID: product.ID,
		StartDate: &day2,
		EndDate:   &day2,
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "inv-2", windowed[0].InvoiceID)
}

func TestGetObservationsSince(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Sable 0/2", "sable 0/2")
	other := seedProduct(t, store, "Gravier 6/10", "gravier 6/10")
	supplier := seedSupplier(t, store, "Carrières Dupont", "carrieres dupont")

	old := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendObservations(ctx, []model.PriceObservation{
		observation(product.ID, supplier.ID, "inv-old", old, "25.00"),
		observation(product.ID, supplier.ID, "inv-new", recent, "28.50"),
		observation(other.ID, supplier.ID, "inv-new", recent, "12.00"),
	}))

	observations, err := store.GetObservationsSince(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, observations, 2)
	for _, obs := range observations {
		assert.Equal(t, "inv-new", obs.InvoiceID)
	}
}

func TestLedgerIsAppendOnly(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Sable 0/2", "sable 0/2")
	supplier := seedSupplier(t, store, "Carrières Dupont", "carrieres dupont")
	date := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.AppendObservations(ctx, []model.PriceObservation{
		observation(product.ID, supplier.ID, "inv-1", date, "28.50"),
	}))
	require.NoError(t, store.AppendObservations(ctx, []model.PriceObservation{
		observation(product.ID, supplier.ID, "inv-2", date, "29.10"),
	}))

	observations, err := store.GetObservations(ctx, service.ObservationFilter{ProductID: product.ID})
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.True(t, observations[0].UnitPrice.Equal(decimal.RequireFromString("28.50")))
	assert.True(t, observations[1].UnitPrice.Equal(decimal.RequireFromString("29.10")))
}
