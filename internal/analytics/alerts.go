package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

// AlertType says which way a price moved.
type AlertType string

// Alert types.
const (
	AlertIncrease AlertType = "increase"
	AlertDecrease AlertType = "decrease"
)

// Alert severities.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
)

// PriceAlert reports a significant jump between consecutive observations of
// the same (product, supplier) pair.
type PriceAlert struct {
	Date             time.Time
	Product          model.Product
	Supplier         model.Supplier
	AlertType        AlertType
	Severity         string
	PreviousPrice    float64
	CurrentPrice     float64
	VariationPercent float64
}

// PriceAlerts scans the ledger's lookback window for (product, supplier)
// pairs whose latest price moved at least thresholdPercent versus the
// immediately preceding observation. Results are ordered by absolute
// variation, largest first.
func (e *Engine) PriceAlerts(ctx context.Context, thresholdPercent float64, days int) ([]PriceAlert, error) {
	if thresholdPercent <= 0 {
		return nil, fmt.Errorf("%w: threshold must be positive", common.ErrInvalidInput)
	}
	if days <= 0 {
		return nil, fmt.Errorf("%w: days must be positive", common.ErrInvalidInput)
	}

	cutoff := e.now().AddDate(0, 0, -days)
	observations, err := e.storage.GetObservationsSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	if len(observations) == 0 {
		return nil, nil
	}

	products, err := e.productIndex(ctx)
	if err != nil {
		return nil, err
	}
	suppliers, err := e.supplierIndex(ctx)
	if err != nil {
		return nil, err
	}

	// Observations come back ordered by (date, seq), so each group's last
	// two entries are the pair's most recent prices in the window.
	type pairKey struct {
		productID  int64
		supplierID int64
	}
	groups := make(map[pairKey][]model.PriceObservation)
	for i := range observations {
		key := pairKey{observations[i].ProductID, observations[i].SupplierID}
		groups[key] = append(groups[key], observations[i])
	}

	var alerts []PriceAlert
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}

		latest := group[len(group)-1]
		previous := group[len(group)-2]

		prevPrice, _ := previous.UnitPrice.Float64()
		currPrice, _ := latest.UnitPrice.Float64()
		if prevPrice == 0 {
			continue
		}

		variation := (currPrice - prevPrice) / prevPrice * 100
		if math.Abs(variation) < thresholdPercent {
			continue
		}

		alert := PriceAlert{
			Product:          products[key.productID],
			Supplier:         suppliers[key.supplierID],
			PreviousPrice:    prevPrice,
			CurrentPrice:     currPrice,
			VariationPercent: variation,
			AlertType:        AlertIncrease,
			Severity:         SeverityMedium,
			Date:             latest.Date,
		}
		if variation < 0 {
			alert.AlertType = AlertDecrease
		}
		if math.Abs(variation) > e.cfg.AlertSeverityHigh {
			alert.Severity = SeverityHigh
		}

		alerts = append(alerts, alert)
	}

	sort.Slice(alerts, func(i, j int) bool {
		vi, vj := math.Abs(alerts[i].VariationPercent), math.Abs(alerts[j].VariationPercent)
		if vi != vj {
			return vi > vj
		}
		if alerts[i].Product.ID != alerts[j].Product.ID {
			return alerts[i].Product.ID < alerts[j].Product.ID
		}
		return alerts[i].Supplier.ID < alerts[j].Supplier.ID
	})

	return alerts, nil
}
