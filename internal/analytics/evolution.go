package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// EvolutionBucket is one calendar period of the price evolution series.
// Averages are simple (unweighted) means of the observations in the bucket,
// consistently with every other average this package reports.
type EvolutionBucket struct {
	Period           time.Time
	Suppliers        []string
	VariationPercent *float64
	AveragePrice     float64
	MinPrice         float64
	MaxPrice         float64
	DataPoints       int
	IsSignificant    bool
}

// Evolution is the bucketed price series for one product.
type Evolution struct {
	Product         model.Product
	Granularity     Granularity
	Buckets         []EvolutionBucket
	TotalDataPoints int
}

// PriceEvolution buckets a product's ledger history by calendar period,
// using the period start date as the bucket key. Buckets whose average
// moved more than the configured percentage versus the preceding non-empty
// bucket are flagged significant.
func (e *Engine) PriceEvolution(ctx context.Context, productID int64, granularity Granularity, supplierID *int64) (*Evolution, error) {
	switch granularity {
	case GranularityMonthly, GranularityQuarterly, GranularityYearly:
	default:
		return nil, fmt.Errorf("%w: unknown granularity %q", common.ErrInvalidInput, granularity)
	}

	product, err := e.storage.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	observations, err := e.storage.GetObservations(ctx, service.ObservationFilter{
		ProductID:  productID,
		SupplierID: supplierID,
	})
	if err != nil {
		return nil, err
	}

	suppliers, err := e.supplierIndex(ctx)
	if err != nil {
		return nil, err
	}

	evolution := &Evolution{
		Product:         *product,
		Granularity:     granularity,
		TotalDataPoints: len(observations),
	}

	groups := make(map[time.Time][]model.PriceObservation)
	for i := range observations {
		key := bucketStart(observations[i].Date, granularity)
		groups[key] = append(groups[key], observations[i])
	}

	periods := make([]time.Time, 0, len(groups))
	for period := range groups {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })

	for _, period := range periods {
		group := groups[period]
		values := prices(group)

		bucket := EvolutionBucket{
			Period:       period,
			AveragePrice: mean(values),
			MinPrice:     values[0],
			MaxPrice:     values[0],
			DataPoints:   len(group),
		}
		for _, v := range values[1:] {
			if v < bucket.MinPrice {
				bucket.MinPrice = v
			}
			if v > bucket.MaxPrice {
				bucket.MaxPrice = v
			}
		}

		seen := make(map[int64]struct{})
		for i := range group {
			if _, ok := seen[group[i].SupplierID]; ok {
				continue
			}
			seen[group[i].SupplierID] = struct{}{}
			if sup, ok := suppliers[group[i].SupplierID]; ok {
				bucket.Suppliers = append(bucket.Suppliers, sup.Name)
			}
		}
		sort.Strings(bucket.Suppliers)

		if n := len(evolution.Buckets); n > 0 {
			prev := evolution.Buckets[n-1].AveragePrice
			if prev > 0 {
				variation := (bucket.AveragePrice - prev) / prev * 100
				bucket.VariationPercent = &variation
				bucket.IsSignificant = math.Abs(variation) > e.cfg.SignificantVariation
			}
		}

		evolution.Buckets = append(evolution.Buckets, bucket)
	}

	return evolution, nil
}

// bucketStart maps a date to the start of its calendar period.
func bucketStart(date time.Time, granularity Granularity) time.Time {
	switch granularity {
	case GranularityQuarterly:
		quarterMonth := time.Month((int(date.Month())-1)/3*3 + 1)
		return time.Date(date.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	case GranularityYearly:
		return time.Date(date.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default: // monthly
		return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}
