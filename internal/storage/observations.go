package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// appendObservations writes new entries to the price ledger. The ledger is
// append-only: existing rows are never touched, and the AUTOINCREMENT seq
// gives same-day observations a stable total order.
func (s *SQLiteStorage) appendObservations(ctx context.Context, q querier, observations []model.PriceObservation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateObservations(observations); err != nil {
		return err
	}

	for i := range observations {
		obs := &observations[i]
		result, err := q.ExecContext(ctx, `
			INSERT INTO price_history (product_id, supplier_id, invoice_id, date, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			obs.ProductID, obs.SupplierID, obs.InvoiceID, obs.Date,
			obs.UnitPrice.String(), obs.Quantity.String())
		if err != nil {
			return wrapSQLiteError(fmt.Errorf("failed to append observation %d: %w", i, err))
		}
		if seq, err := result.LastInsertId(); err == nil {
			obs.Seq = seq
		}
	}

	slog.Debug("appended observations", "count", len(observations))
	return nil
}

// getObservations returns ledger entries for a product ordered by
// (date, seq) ascending, optionally restricted to a supplier and window.
func (s *SQLiteStorage) getObservations(ctx context.Context, q querier, filter service.ObservationFilter) ([]model.PriceObservation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(filter.ProductID, "productID"); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT seq, product_id, supplier_id, invoice_id, date, unit_price, quantity
		FROM price_history
		WHERE product_id = ?`)
	args := []any{filter.ProductID}

	if filter.SupplierID != nil {
		sb.WriteString(" AND supplier_id = ?")
		args = append(args, *filter.SupplierID)
	}
	if filter.StartDate != nil {
		sb.WriteString(" AND date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		sb.WriteString(" AND date <= ?")
		args = append(args, *filter.EndDate)
	}
	sb.WriteString(" ORDER BY date, seq")

	return s.queryObservations(ctx, q, sb.String(), args...)
}

// getObservationsSince returns every ledger entry on or after the given
// date, across all products and suppliers, ordered by (date, seq).
func (s *SQLiteStorage) getObservationsSince(ctx context.Context, q querier, since time.Time) ([]model.PriceObservation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	return s.queryObservations(ctx, q, `
		SELECT seq, product_id, supplier_id, invoice_id, date, unit_price, quantity
		FROM price_history
		WHERE date >= ?
		ORDER BY date, seq`, since)
}

func (s *SQLiteStorage) queryObservations(ctx context.Context, q querier, query string, args ...any) ([]model.PriceObservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query observations: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var observations []model.PriceObservation
	for rows.Next() {
		var obs model.PriceObservation
		var unitPrice, quantity string
		if err := rows.Scan(&obs.Seq, &obs.ProductID, &obs.SupplierID, &obs.InvoiceID, &obs.Date, &unitPrice, &quantity); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		if obs.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("failed to parse unit price %q: %w", unitPrice, err)
		}
		if obs.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("failed to parse quantity %q: %w", quantity, err)
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return observations, nil
}
