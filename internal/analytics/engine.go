// Package analytics computes price statistics, trends, and alerts over the
// catalog and the price ledger. Every operation is a pure read: nothing in
// this package mutates state, so calls are safe alongside concurrent writes.
package analytics

import (
	"context"
	"math"
	"time"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// Trend classifies recent price movement for a supplier.
type Trend string

// Trend values.
const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Granularity selects the calendar bucketing for evolution series.
type Granularity string

// Granularity values.
const (
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
	GranularityYearly    Granularity = "yearly"
)

// Volatility tiers.
const (
	VolatilityLow    = "low"
	VolatilityMedium = "medium"
	VolatilityHigh   = "high"
)

// Config holds the analytic thresholds, all expressed in percent.
type Config struct {
	// SignificantVariation flags evolution buckets that moved more than
	// this much versus the previous bucket.
	SignificantVariation float64
	// VolatilityMedium and VolatilityHigh are the CV tier boundaries.
	VolatilityMedium float64
	VolatilityHigh   float64
	// TrendTolerance is the stable band for recent supplier trends.
	TrendTolerance float64
	// AlertSeverityHigh upgrades alerts above this variation to high severity.
	AlertSeverityHigh float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SignificantVariation: 15,
		VolatilityMedium:     10,
		VolatilityHigh:       20,
		TrendTolerance:       5,
		AlertSeverityHigh:    25,
	}
}

// Engine serves all analytics reads.
type Engine struct {
	storage service.Storage
	now     func() time.Time
	cfg     Config
}

// New creates an analytics engine. The clock defaults to time.Now and is
// injectable for deterministic tests.
func New(cfg Config, storage service.Storage) *Engine {
	if cfg.SignificantVariation <= 0 {
		cfg.SignificantVariation = DefaultConfig().SignificantVariation
	}
	if cfg.VolatilityMedium <= 0 {
		cfg.VolatilityMedium = DefaultConfig().VolatilityMedium
	}
	if cfg.VolatilityHigh <= 0 {
		cfg.VolatilityHigh = DefaultConfig().VolatilityHigh
	}
	if cfg.TrendTolerance <= 0 {
		cfg.TrendTolerance = DefaultConfig().TrendTolerance
	}
	if cfg.AlertSeverityHigh <= 0 {
		cfg.AlertSeverityHigh = DefaultConfig().AlertSeverityHigh
	}
	return &Engine{
		cfg:     cfg,
		storage: storage,
		now:     time.Now,
	}
}

// WithClock overrides the engine's time source.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// prices extracts unit prices as float64 for aggregate math. Ledger values
// are stored as decimals; float64 is fine once we are averaging.
func prices(observations []model.PriceObservation) []float64 {
	out := make([]float64, len(observations))
	for i := range observations {
		out[i], _ = observations[i].UnitPrice.Float64()
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation (n-1 divisor). Zero when fewer
// than two values.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// coefficientOfVariation returns stddev/mean as a percentage, or nil when
// the mean is zero. A missing CV must surface as null, never as zero.
func coefficientOfVariation(values []float64) *float64 {
	m := mean(values)
	if m == 0 {
		return nil
	}
	cv := stddev(values) / m * 100
	return &cv
}

// volatilityLevel buckets a CV into a coarse tier for display and triage.
func (e *Engine) volatilityLevel(cv *float64) string {
	switch {
	case cv == nil:
		return VolatilityLow
	case *cv > e.cfg.VolatilityHigh:
		return VolatilityHigh
	case *cv > e.cfg.VolatilityMedium:
		return VolatilityMedium
	default:
		return VolatilityLow
	}
}

// productIndex loads the catalog into an id-keyed map.
func (e *Engine) productIndex(ctx context.Context) (map[int64]model.Product, error) {
	products, err := e.storage.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]model.Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index, nil
}

// supplierIndex loads suppliers into an id-keyed map.
func (e *Engine) supplierIndex(ctx context.Context) (map[int64]model.Supplier, error) {
	suppliers, err := e.storage.GetSuppliers(ctx)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]model.Supplier, len(suppliers))
	for _, s := range suppliers {
		index[s.ID] = s
	}
	return index, nil
}
