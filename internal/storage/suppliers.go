package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

func (s *SQLiteStorage) getSuppliers(ctx context.Context, q querier) ([]model.Supplier, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, normalized_name, created_at
		FROM suppliers
		ORDER BY id`)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query suppliers: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var suppliers []model.Supplier
	for rows.Next() {
		var sup model.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.NormalizedName, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppliers: %w", err)
	}

	return suppliers, nil
}

func (s *SQLiteStorage) getSupplierByID(ctx context.Context, q querier, id int64) (*model.Supplier, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	var sup model.Supplier
	err := q.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, created_at
		FROM suppliers
		WHERE id = ?`, id).Scan(&sup.ID, &sup.Name, &sup.NormalizedName, &sup.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: supplier %d", common.ErrUnknownSupplier, id)
	}
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query supplier: %w", err))
	}

	return &sup, nil
}

// upsertSupplier creates a supplier on first reference or returns the
// existing one. The uniqueness constraint on normalized_name serializes
// concurrent creation of the same supplier: losers of the race fall through
// to the read and observe the winner's row.
func (s *SQLiteStorage) upsertSupplier(ctx context.Context, q querier, name, normalizedName string) (*model.Supplier, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO suppliers (name, normalized_name)
		VALUES (?, ?)
		ON CONFLICT(normalized_name) DO NOTHING`,
		name, normalizedName)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to upsert supplier: %w", err))
	}

	var sup model.Supplier
	err = q.QueryRowContext(ctx, `
		SELECT id, name, normalized_name, created_at
		FROM suppliers
		WHERE normalized_name = ?`, normalizedName).Scan(&sup.ID, &sup.Name, &sup.NormalizedName, &sup.CreatedAt)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to read upserted supplier: %w", err))
	}

	slog.Debug("upserted supplier", "id", sup.ID, "name", sup.Name)
	return &sup, nil
}
