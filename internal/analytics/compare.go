package analytics

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// trailingWindow bounds the observations considered for recent trends.
const (
	trailingDays = 90
	trailingObs  = 5
)

// SupplierComparison summarizes one supplier's pricing for a product.
type SupplierComparison struct {
	LastUpdate   time.Time
	Supplier     model.Supplier
	RecentTrend  Trend
	AveragePrice float64
	MinPrice     float64
	MaxPrice     float64
	DataPoints   int
	IsBestPrice  bool
}

// CompareSuppliers compares a product's pricing across every supplier with
// at least one observation, cheapest average first. All suppliers tied at
// the global minimum average are flagged best price.
func (e *Engine) CompareSuppliers(ctx context.Context, productID int64) ([]SupplierComparison, error) {
	if _, err := e.storage.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	observations, err := e.storage.GetObservations(ctx, service.ObservationFilter{ProductID: productID})
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, nil
	}

	suppliers, err := e.supplierIndex(ctx)
	if err != nil {
		return nil, err
	}

	// Observations arrive ordered by (date, seq), so per-supplier groups
	// stay chronological.
	groups := make(map[int64][]model.PriceObservation)
	for i := range observations {
		groups[observations[i].SupplierID] = append(groups[observations[i].SupplierID], observations[i])
	}

	comparisons := make([]SupplierComparison, 0, len(groups))
	for supplierID, group := range groups {
		values := prices(group)

		cmp := SupplierComparison{
			Supplier:     suppliers[supplierID],
			AveragePrice: mean(values),
			MinPrice:     values[0],
			MaxPrice:     values[0],
			DataPoints:   len(group),
			RecentTrend:  e.recentTrend(group),
		}
		for _, v := range values[1:] {
			if v < cmp.MinPrice {
				cmp.MinPrice = v
			}
			if v > cmp.MaxPrice {
				cmp.MaxPrice = v
			}
		}
		cmp.LastUpdate = group[len(group)-1].Date

		comparisons = append(comparisons, cmp)
	}

	sort.Slice(comparisons, func(i, j int) bool {
		if comparisons[i].AveragePrice != comparisons[j].AveragePrice {
			return comparisons[i].AveragePrice < comparisons[j].AveragePrice
		}
		return comparisons[i].Supplier.ID < comparisons[j].Supplier.ID
	})

	best := comparisons[0].AveragePrice
	for i := range comparisons {
		if math.Abs(comparisons[i].AveragePrice-best) < 1e-9 {
			comparisons[i].IsBestPrice = true
		}
	}

	return comparisons, nil
}

// recentTrend compares the most recent observation against the trailing
// average of the preceding observations in the last 90 days (capped at the
// five most recent). Movement inside the tolerance band counts as stable.
func (e *Engine) recentTrend(group []model.PriceObservation) Trend {
	cutoff := e.now().AddDate(0, 0, -trailingDays)

	var recent []model.PriceObservation
	for i := range group {
		if !group[i].Date.Before(cutoff) {
			recent = append(recent, group[i])
		}
	}
	if len(recent) > trailingObs {
		recent = recent[len(recent)-trailingObs:]
	}
	if len(recent) < 2 {
		return TrendStable
	}

	latest, _ := recent[len(recent)-1].UnitPrice.Float64()
	trailing := mean(prices(recent[:len(recent)-1]))
	if trailing == 0 {
		return TrendStable
	}

	variation := (latest - trailing) / trailing * 100
	switch {
	case variation > e.cfg.TrendTolerance:
		return TrendIncreasing
	case variation < -e.cfg.TrendTolerance:
		return TrendDecreasing
	default:
		return TrendStable
	}
}
