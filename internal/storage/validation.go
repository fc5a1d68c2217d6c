// Package storage provides the data persistence layer for the application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/facturio/factura/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidObservation = errors.New("invalid price observation")
	ErrInvalidInvoice     = errors.New("invalid invoice")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures an identifier is positive.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrNilParameter, paramName)
	}
	return nil
}

// validateObservations validates a slice of price observations.
func validateObservations(observations []model.PriceObservation) error {
	if observations == nil {
		return fmt.Errorf("%w: observations", ErrNilParameter)
	}
	if len(observations) == 0 {
		return fmt.Errorf("%w: observations", ErrEmptySlice)
	}

	for i := range observations {
		if err := validateObservation(&observations[i]); err != nil {
			return fmt.Errorf("observation at index %d: %w", i, err)
		}
	}
	return nil
}

// validateObservation validates a single price observation.
func validateObservation(obs *model.PriceObservation) error {
	if obs.ProductID <= 0 {
		return fmt.Errorf("%w: missing product id", ErrInvalidObservation)
	}
	if obs.SupplierID <= 0 {
		return fmt.Errorf("%w: missing supplier id", ErrInvalidObservation)
	}
	if obs.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidObservation)
	}
	if obs.UnitPrice.IsNegative() {
		return fmt.Errorf("%w: negative unit price", ErrInvalidObservation)
	}
	if obs.Quantity.IsNegative() {
		return fmt.Errorf("%w: negative quantity", ErrInvalidObservation)
	}
	return nil
}

// validateInvoice validates an invoice aggregate before persistence.
func validateInvoice(invoice *model.Invoice) error {
	if invoice == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if invoice.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidInvoice)
	}
	if invoice.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidInvoice)
	}
	if invoice.SupplierName == "" {
		return fmt.Errorf("%w: missing supplier name", ErrInvalidInvoice)
	}
	return nil
}
