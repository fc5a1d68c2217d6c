package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceObservation is one append-only entry in the price ledger: the unit
// price a supplier charged for a product on a given date. Immutable once
// written. Seq is a monotonic sequence assigned by the store so that
// same-day observations keep a deterministic order without trusting wall
// clocks.
type PriceObservation struct {
	Date       time.Time
	InvoiceID  string
	UnitPrice  decimal.Decimal
	Quantity   decimal.Decimal
	Seq        int64
	ProductID  int64
	SupplierID int64
}
