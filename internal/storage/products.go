package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
)

// getProducts returns all catalog products, active and deprecated, with
// their alias sets attached.
func (s *SQLiteStorage) getProducts(ctx context.Context, q querier) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, normalized_name, category, unit, is_active, created_at
		FROM products
		ORDER BY id`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query products: %w", err))
	}
	defer func() { _ = rows.Close() }()

	var products []model.Product
	index := make(map[int64]int)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.NormalizedName, &p.Category, &p.Unit, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		index[p.ID] = len(products)
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	aliasRows, err := q.QueryContext(ctx, `SELECT product_id, alias FROM product_aliases ORDER BY id`)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query aliases: %w", err))
	}
	defer func() { _ = aliasRows.Close() }()

	for aliasRows.Next() {
		var productID int64
		var alias string
		if err := aliasRows.Scan(&productID, &alias); err != nil {
			return nil, fmt.Errorf("failed to scan alias: %w", err)
		}
		if i, ok := index[productID]; ok {
			products[i].Aliases = append(products[i].Aliases, alias)
		}
	}
	if err := aliasRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aliases: %w", err)
	}

	slog.Debug("retrieved products", "count", len(products))
	return products, nil
}

// getProductByID returns one product or ErrUnknownProduct.
func (s *SQLiteStorage) getProductByID(ctx context.Context, q querier, id int64) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, normalized_name, category, unit, is_active, created_at
		FROM products
		WHERE id = ?`

	var p model.Product
	err := q.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.NormalizedName, &p.Category, &p.Unit, &p.IsActive, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: product %d", common.ErrUnknownProduct, id)
	}
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query product: %w", err))
	}

	if err := s.loadAliases(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// getProductByNormalizedName returns the product owning a normalized name,
// or nil when no product claims it.
func (s *SQLiteStorage) getProductByNormalizedName(ctx context.Context, q querier, normalizedName string) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, name, normalized_name, category, unit, is_active, created_at
		FROM products
		WHERE normalized_name = ?`

	var p model.Product
	err := q.QueryRowContext(ctx, query, normalizedName).Scan(
		&p.ID, &p.Name, &p.NormalizedName, &p.Category, &p.Unit, &p.IsActive, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // no product with this normalized name
	}
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to query product by normalized name: %w", err))
	}

	if err := s.loadAliases(ctx, q, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStorage) loadAliases(ctx context.Context, q querier, p *model.Product) error {
	rows, err := q.QueryContext(ctx, `SELECT alias FROM product_aliases WHERE product_id = ? ORDER BY id`, p.ID)
	if err != nil {
		return wrapSQLiteError(fmt.Errorf("failed to query aliases: %w", err))
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var alias string
		if err := rows.Scan(&alias); err != nil {
			return fmt.Errorf("failed to scan alias: %w", err)
		}
		p.Aliases = append(p.Aliases, alias)
	}
	return rows.Err()
}

// createProduct inserts a new catalog product. A normalized-name collision
// surfaces as DuplicateProductError carrying the conflicting product id.
func (s *SQLiteStorage) createProduct(ctx context.Context, q querier, name, normalizedName, category, unit string) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO products (name, normalized_name, category, unit, is_active)
		VALUES (?, ?, ?, ?, 1)`,
		name, normalizedName, category, unit)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			existing, lookupErr := s.getProductByNormalizedName(ctx, q, normalizedName)
			if lookupErr == nil && existing != nil {
				return nil, common.NewDuplicateProductError(normalizedName, existing.ID)
			}
			return nil, common.NewDuplicateProductError(normalizedName, 0)
		}
		return nil, wrapSQLiteError(fmt.Errorf("failed to insert product: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product id: %w", err)
	}

	slog.Info("created product", "id", id, "name", name)
	return s.getProductByID(ctx, q, id)
}

// addProductAlias records a confirmed alternate description for a product.
// Adding an alias the product already carries is a no-op.
func (s *SQLiteStorage) addProductAlias(ctx context.Context, q querier, productID int64, alias string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(productID, "productID"); err != nil {
		return err
	}
	if err := validateString(alias, "alias"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	if _, err := s.getProductByID(ctx, q, productID); err != nil {
		return err
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO product_aliases (product_id, alias)
		VALUES (?, ?)
		ON CONFLICT(product_id, alias) DO NOTHING`,
		productID, alias)
	if err != nil {
		return wrapSQLiteError(fmt.Errorf("failed to insert alias: %w", err))
	}

	slog.Debug("added product alias", "product_id", productID, "alias", alias)
	return nil
}

// deprecateProduct soft-deletes a product. The row stays so ledger history
// keeps its referential integrity.
func (s *SQLiteStorage) deprecateProduct(ctx context.Context, q querier, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `UPDATE products SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return wrapSQLiteError(fmt.Errorf("failed to deprecate product: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deprecation result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: product %d", common.ErrUnknownProduct, id)
	}

	slog.Info("deprecated product", "id", id)
	return nil
}
