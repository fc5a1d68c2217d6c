package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS products (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					normalized_name TEXT UNIQUE NOT NULL,
					category TEXT NOT NULL DEFAULT '',
					unit TEXT NOT NULL DEFAULT '',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS product_aliases (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					product_id INTEGER NOT NULL,
					alias TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(product_id, alias),
					FOREIGN KEY (product_id) REFERENCES products(id)
				)`,
				`CREATE INDEX idx_product_aliases_product ON product_aliases(product_id)`,

				`CREATE TABLE IF NOT EXISTS suppliers (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					normalized_name TEXT UNIQUE NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS invoices (
					id TEXT PRIMARY KEY,
					supplier_id INTEGER NOT NULL,
					supplier_name TEXT NOT NULL,
					invoice_number TEXT NOT NULL DEFAULT '',
					date DATETIME NOT NULL,
					total_amount TEXT NOT NULL DEFAULT '0',
					currency TEXT NOT NULL DEFAULT 'EUR',
					global_confidence REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'draft',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (supplier_id) REFERENCES suppliers(id)
				)`,
				`CREATE INDEX idx_invoices_date ON invoices(date)`,

				`CREATE TABLE IF NOT EXISTS invoice_lines (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					invoice_id TEXT NOT NULL,
					line_index INTEGER NOT NULL,
					raw_description TEXT NOT NULL,
					ocr_confidence REAL NOT NULL DEFAULT 0,
					product_id INTEGER,
					status TEXT NOT NULL,
					quantity TEXT NOT NULL DEFAULT '0',
					unit_price TEXT NOT NULL DEFAULT '0',
					total_price TEXT NOT NULL DEFAULT '0',
					auto_validated INTEGER NOT NULL DEFAULT 0,
					FOREIGN KEY (invoice_id) REFERENCES invoices(id),
					FOREIGN KEY (product_id) REFERENCES products(id)
				)`,
				`CREATE INDEX idx_invoice_lines_invoice ON invoice_lines(invoice_id)`,

				`CREATE TABLE IF NOT EXISTS price_history (
					seq INTEGER PRIMARY KEY AUTOINCREMENT,
					product_id INTEGER NOT NULL,
					supplier_id INTEGER NOT NULL,
					invoice_id TEXT NOT NULL DEFAULT '',
					date DATETIME NOT NULL,
					unit_price TEXT NOT NULL,
					quantity TEXT NOT NULL DEFAULT '0',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (product_id) REFERENCES products(id),
					FOREIGN KEY (supplier_id) REFERENCES suppliers(id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Ledger ordering and analytics indexes",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				// Previous-observation scans order by (date, seq) per product/supplier.
				`CREATE INDEX IF NOT EXISTS idx_price_history_product_date ON price_history(product_id, date, seq)`,
				`CREATE INDEX IF NOT EXISTS idx_price_history_supplier ON price_history(supplier_id, date, seq)`,
				`CREATE INDEX IF NOT EXISTS idx_price_history_date ON price_history(date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
