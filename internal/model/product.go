// Package model defines the core domain models used throughout the application.
package model

import "time"

// Product is a canonical catalog entry representing one purchasable item,
// regardless of how suppliers describe it on their invoices.
type Product struct {
	CreatedAt      time.Time
	Name           string
	NormalizedName string
	Category       string
	Unit           string
	Aliases        []string
	ID             int64
	IsActive       bool
}

// HasAlias reports whether the product already carries the given alias.
// Comparison is on the raw alias string; normalization happens in the matcher.
func (p *Product) HasAlias(alias string) bool {
	for _, a := range p.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// Supplier identifies a vendor that issues invoices. Suppliers are created
// on first reference (case-insensitive name match) or explicit registration.
type Supplier struct {
	CreatedAt      time.Time
	Name           string
	NormalizedName string
	ID             int64
}
