package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

// saveInvoice persists an invoice aggregate with its validation lines.
// Callers run it inside a transaction alongside the supplier upsert and the
// ledger appends so that finalize stays all-or-nothing.
func (s *SQLiteStorage) saveInvoice(ctx context.Context, q querier, invoice *model.Invoice, supplierID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(invoice); err != nil {
		return err
	}
	if err := validateID(supplierID, "supplierID"); err != nil {
		return err
	}

	currency := invoice.Currency
	if currency == "" {
		currency = "EUR"
	}

	createdAt := invoice.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO invoices (id, supplier_id, supplier_name, invoice_number, date, total_amount, currency, global_confidence, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, supplierID, invoice.SupplierName, invoice.InvoiceNumber,
		invoice.Date, invoice.TotalAmount.String(), currency,
		invoice.GlobalConfidence, string(invoice.Status), createdAt)
	if err != nil {
		return wrapSQLiteError(fmt.Errorf("failed to insert invoice: %w", err))
	}

	for i := range invoice.Lines {
		line := &invoice.Lines[i]
		var productID any
		if line.ChosenProductID != nil {
			productID = *line.ChosenProductID
		}

		_, err := q.ExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, line_index, raw_description, ocr_confidence, product_id, status, quantity, unit_price, total_price, auto_validated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			invoice.ID, i, line.Raw.RawDescription, line.Raw.OCRConfidence,
			productID, string(line.Status), line.Quantity.String(),
			line.UnitPrice.String(), line.TotalPrice.String(), line.AutoValidated)
		if err != nil {
			return wrapSQLiteError(fmt.Errorf("failed to insert invoice line %d: %w", i, err))
		}
	}

	slog.Info("saved invoice", "id", invoice.ID, "lines", len(invoice.Lines), "status", invoice.Status)
	return nil
}

// getInvoiceByID loads an invoice with its validation lines, or
// ErrUnknownInvoice.
func (s *SQLiteStorage) getInvoiceByID(ctx context.Context, q querier, id string) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	var inv model.Invoice
	var totalAmount string
	var status string
	err := q.QueryRowContext(ctx, `
		SELECT id, supplier_name, invoice_number, date, total_amount, currency, global_confidence, status, created_at
		FROM invoices
		WHERE id = ?`, id).Scan(
		&inv.ID, &inv.SupplierName, &inv.InvoiceNumber, &inv.Date,
		&totalAmount, &inv.Currency, &inv.GlobalConfidence, &status, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice %s", common.ErrUnknownInvoice, id)
	}
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query invoice: %w", err))
	}

	inv.Status = model.InvoiceStatus(status)
	if inv.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
		return nil, fmt.Errorf("failed to parse total amount %q: %w", totalAmount, err)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT raw_description, ocr_confidence, product_id, status, quantity, unit_price, total_price, auto_validated
		FROM invoice_lines
		WHERE invoice_id = ?
		ORDER BY line_index`, id)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query invoice lines: %w", err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var line model.LineValidation
		var productID sql.NullInt64
		var lineStatus, quantity, unitPrice, totalPrice string
		if err := rows.Scan(&line.Raw.RawDescription, &line.Raw.OCRConfidence, &productID,
			&lineStatus, &quantity, &unitPrice, &totalPrice, &line.AutoValidated); err != nil {
			return nil, fmt.Errorf("failed to scan invoice line: %w", err)
		}

		line.Status = model.ValidationStatus(lineStatus)
		if productID.Valid {
			line.ChosenProductID = &productID.Int64
		}
		if line.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return nil, fmt.Errorf("failed to parse line quantity %q: %w", quantity, err)
		}
		if line.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
			return nil, fmt.Errorf("failed to parse line unit price %q: %w", unitPrice, err)
		}
		if line.TotalPrice, err = decimal.NewFromString(totalPrice); err != nil {
			return nil, fmt.Errorf("failed to parse line total price %q: %w", totalPrice, err)
		}
		inv.Lines = append(inv.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoice lines: %w", err)
	}

	return &inv, nil
}

func (s *SQLiteStorage) getInvoiceCount(ctx context.Context, q querier) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&count); err != nil {
		return 0, wrapSQLiteError(fmt.Errorf("failed to count invoices: %w", err))
	}
	return count, nil
}

// getInvoiceCountSince counts by upload time, not by the date printed on the
// invoice. A backdated invoice entered this month still counts as this
// month's activity.
func (s *SQLiteStorage) getInvoiceCountSince(ctx context.Context, q querier, since time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices WHERE created_at >= ?`, since).Scan(&count); err != nil {
		return 0, wrapSQLiteError(fmt.Errorf("failed to count recent invoices: %w", err))
	}
	return count, nil
}

// listInvoices returns invoice headers without their lines, newest first.
func (s *SQLiteStorage) listInvoices(ctx context.Context, q querier, limit, offset int) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", common.ErrInvalidInput, limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset cannot be negative, got %d", common.ErrInvalidInput, offset)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, supplier_name, invoice_number, date, total_amount, currency, global_confidence, status, created_at
		FROM invoices
		ORDER BY date DESC, created_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to list invoices: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		var totalAmount string
		var status string
		if err := rows.Scan(&inv.ID, &inv.SupplierName, &inv.InvoiceNumber, &inv.Date,
			&totalAmount, &inv.Currency, &inv.GlobalConfidence, &status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.Status = model.InvoiceStatus(status)
		if inv.TotalAmount, err = decimal.NewFromString(totalAmount); err != nil {
			return nil, fmt.Errorf("failed to parse total amount %q: %w", totalAmount, err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invoices: %w", err)
	}

	return invoices, nil
}
