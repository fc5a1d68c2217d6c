package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/facturio/factura/internal/model"
)

// topVolatileCount is the size of the dashboard's volatility spotlight.
const topVolatileCount = 5

// MonthlyAverage is one point of the dashboard's global price trend.
type MonthlyAverage struct {
	Month        time.Time
	AveragePrice float64
}

// DashboardKPIs aggregates the headline numbers for the main dashboard.
type DashboardKPIs struct {
	PriceTrend           []MonthlyAverage
	TopVolatileProducts  []ProductStats
	TotalInvoices        int
	MonthlyInvoices      int
	TotalProducts        int
	TotalSuppliers       int
	GlobalPriceVariation float64
}

// DashboardKPIs computes invoice/product/supplier counts, the 12-month
// global price trend with its aggregate variation, and the most volatile
// products by coefficient of variation.
func (e *Engine) DashboardKPIs(ctx context.Context) (*DashboardKPIs, error) {
	now := e.now()

	kpis := &DashboardKPIs{}

	var err error
	if kpis.TotalInvoices, err = e.storage.GetInvoiceCount(ctx); err != nil {
		return nil, err
	}

	// Counts uploads this month, wherever the invoice itself is dated.
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if kpis.MonthlyInvoices, err = e.storage.GetInvoiceCountSince(ctx, monthStart); err != nil {
		return nil, err
	}

	products, err := e.storage.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	kpis.TotalProducts = len(products)

	suppliers, err := e.storage.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	kpis.TotalSuppliers = len(suppliers)

	if kpis.TopVolatileProducts, err = e.PriceVolatility(ctx, topVolatileCount); err != nil {
		return nil, err
	}

	kpis.PriceTrend, kpis.GlobalPriceVariation, err = e.globalTrend(ctx, now)
	if err != nil {
		return nil, err
	}

	return kpis, nil
}

// globalTrend averages all ledger prices per month over the trailing year.
// The aggregate variation compares the first and last non-empty months.
func (e *Engine) globalTrend(ctx context.Context, now time.Time) ([]MonthlyAverage, float64, error) {
	since := now.AddDate(0, 0, -365)
	observations, err := e.storage.GetObservationsSince(ctx, since)
	if err != nil {
		return nil, 0, err
	}

	groups := make(map[time.Time][]model.PriceObservation)
	for i := range observations {
		key := bucketStart(observations[i].Date, GranularityMonthly)
		groups[key] = append(groups[key], observations[i])
	}

	months := make([]time.Time, 0, len(groups))
	for month := range groups {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	trend := make([]MonthlyAverage, 0, len(months))
	for _, month := range months {
		trend = append(trend, MonthlyAverage{
			Month:        month,
			AveragePrice: mean(prices(groups[month])),
		})
	}

	var variation float64
	if len(trend) >= 2 {
		first := trend[0].AveragePrice
		last := trend[len(trend)-1].AveragePrice
		if first > 0 {
			variation = (last - first) / first * 100
		}
	}

	return trend, variation, nil
}
