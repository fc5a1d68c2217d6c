package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// ProductStats summarizes the price behavior of one product over a window.
type ProductStats struct {
	LastUpdate           time.Time
	CoefficientVariation *float64
	VolatilityLevel      string
	Product              model.Product
	MeanPrice            float64
	StdDeviation         float64
	MinPrice             float64
	MaxPrice             float64
	PriceRange           float64
	DataPoints           int
	SuppliersCount       int
}

// Window restricts a statistics query to a date range. Nil bounds are open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// ProductStats computes mean, sample standard deviation, coefficient of
// variation, and the volatility tier for one product. CV is nil when the
// mean is zero or there are no observations.
func (e *Engine) ProductStats(ctx context.Context, productID int64, window Window) (*ProductStats, error) {
	product, err := e.storage.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	observations, err := e.storage.GetObservations(ctx, service.ObservationFilter{
		ProductID: productID,
		StartDate: window.Start,
		EndDate:   window.End,
	})
	if err != nil {
		return nil, err
	}

	stats := e.computeStats(*product, observations)
	return &stats, nil
}

func (e *Engine) computeStats(product model.Product, observations []model.PriceObservation) ProductStats {
	stats := ProductStats{
		Product:    product,
		DataPoints: len(observations),
	}
	if len(observations) == 0 {
		stats.VolatilityLevel = VolatilityLow
		return stats
	}

	values := prices(observations)
	stats.MeanPrice = mean(values)
	stats.StdDeviation = stddev(values)
	stats.CoefficientVariation = coefficientOfVariation(values)
	stats.VolatilityLevel = e.volatilityLevel(stats.CoefficientVariation)

	stats.MinPrice, stats.MaxPrice = values[0], values[0]
	for _, v := range values[1:] {
		if v < stats.MinPrice {
			stats.MinPrice = v
		}
		if v > stats.MaxPrice {
			stats.MaxPrice = v
		}
	}
	stats.PriceRange = stats.MaxPrice - stats.MinPrice

	suppliers := make(map[int64]struct{})
	for i := range observations {
		suppliers[observations[i].SupplierID] = struct{}{}
		if observations[i].Date.After(stats.LastUpdate) {
			stats.LastUpdate = observations[i].Date
		}
	}
	stats.SuppliersCount = len(suppliers)

	return stats
}

// PriceVolatility ranks products by coefficient of variation, most volatile
// first. Products with fewer than two observations carry no volatility
// signal and are skipped.
func (e *Engine) PriceVolatility(ctx context.Context, limit int) ([]ProductStats, error) {
	products, err := e.storage.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	var ranked []ProductStats
	for _, product := range products {
		observations, err := e.storage.GetObservations(ctx, service.ObservationFilter{ProductID: product.ID})
		if err != nil {
			return nil, err
		}
		if len(observations) < 2 {
			continue
		}

		stats := e.computeStats(product, observations)
		if stats.CoefficientVariation == nil {
			continue
		}
		ranked = append(ranked, stats)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if *ranked[i].CoefficientVariation != *ranked[j].CoefficientVariation {
			return *ranked[i].CoefficientVariation > *ranked[j].CoefficientVariation
		}
		return ranked[i].Product.ID < ranked[j].Product.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
