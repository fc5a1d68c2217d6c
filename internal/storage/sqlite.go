package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/facturio/factura/internal/common"
	"github.com/facturio/factura/internal/model"
	"github.com/facturio/factura/internal/service"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrapSQLiteError(fmt.Errorf("failed to begin transaction: %w", err))
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// wrapSQLiteError maps driver-level serialization failures onto the
// application taxonomy so callers can retry the whole operation.
func wrapSQLiteError(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", common.ErrConcurrencyConflict, err)
		case sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", common.ErrDatabaseCorrupted, err)
		}
	}
	return err
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction. All
// queries go through the querier so the same SQL runs inside and outside a
// transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return wrapSQLiteError(t.tx.Commit())
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transaction methods delegate to the main storage with the transaction.

func (t *sqliteTransaction) GetProducts(ctx context.Context) ([]model.Product, error) {
	return t.storage.getProducts(ctx, t.tx)
}

func (t *sqliteTransaction) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	return t.storage.getProductByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetProductByNormalizedName(ctx context.Context, normalizedName string) (*model.Product, error) {
	return t.storage.getProductByNormalizedName(ctx, t.tx, normalizedName)
}

func (t *sqliteTransaction) CreateProduct(ctx context.Context, name, normalizedName, category, unit string) (*model.Product, error) {
	return t.storage.createProduct(ctx, t.tx, name, normalizedName, category, unit)
}

func (t *sqliteTransaction) AddProductAlias(ctx context.Context, productID int64, alias string) error {
	return t.storage.addProductAlias(ctx, t.tx, productID, alias)
}

func (t *sqliteTransaction) DeprecateProduct(ctx context.Context, id int64) error {
	return t.storage.deprecateProduct(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetSuppliers(ctx context.Context) ([]model.Supplier, error) {
	return t.storage.getSuppliers(ctx, t.tx)
}

func (t *sqliteTransaction) GetSupplierByID(ctx context.Context, id int64) (*model.Supplier, error) {
	return t.storage.getSupplierByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) UpsertSupplier(ctx context.Context, name, normalizedName string) (*model.Supplier, error) {
	return t.storage.upsertSupplier(ctx, t.tx, name, normalizedName)
}

func (t *sqliteTransaction) AppendObservations(ctx context.Context, observations []model.PriceObservation) error {
	return t.storage.appendObservations(ctx, t.tx, observations)
}

func (t *sqliteTransaction) GetObservations(ctx context.Context, filter service.ObservationFilter) ([]model.PriceObservation, error) {
	return t.storage.getObservations(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetObservationsSince(ctx context.Context, since time.Time) ([]model.PriceObservation, error) {
	return t.storage.getObservationsSince(ctx, t.tx, since)
}

func (t *sqliteTransaction) SaveInvoice(ctx context.Context, invoice *model.Invoice, supplierID int64) error {
	return t.storage.saveInvoice(ctx, t.tx, invoice, supplierID)
}

func (t *sqliteTransaction) GetInvoiceByID(ctx context.Context, id string) (*model.Invoice, error) {
	return t.storage.getInvoiceByID(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListInvoices(ctx context.Context, limit, offset int) ([]model.Invoice, error) {
	return t.storage.listInvoices(ctx, t.tx, limit, offset)
}

func (t *sqliteTransaction) GetInvoiceCount(ctx context.Context) (int, error) {
	return t.storage.getInvoiceCount(ctx, t.tx)
}

func (t *sqliteTransaction) GetInvoiceCountSince(ctx context.Context, since time.Time) (int, error) {
	return t.storage.getInvoiceCountSince(ctx, t.tx, since)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return fmt.Errorf("migrations cannot run inside a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTransaction) Close() error {
	return nil
}

// Storage methods on the main connection.

func (s *SQLiteStorage) GetProducts(ctx context.Context) ([]model.Product, error) {
	return s.getProducts(ctx, s.db)
}

func (s *SQLiteStorage) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	return s.getProductByID(ctx, s.db, id)
}

func (s *SQLiteStorage) GetProductByNormalizedName(ctx context.Context, normalizedName string) (*model.Product, error) {
	return s.getProductByNormalizedName(ctx, s.db, normalizedName)
}

func (s *SQLiteStorage) CreateProduct(ctx context.Context, name, normalizedName, category, unit string) (*model.Product, error) {
	return s.createProduct(ctx, s.db, name, normalizedName, category, unit)
}

func (s *SQLiteStorage) AddProductAlias(ctx context.Context, productID int64, alias string) error {
	return s.addProductAlias(ctx, s.db, productID, alias)
}

func (s *SQLiteStorage) DeprecateProduct(ctx context.Context, id int64) error {
	return s.deprecateProduct(ctx, s.db, id)
}

func (s *SQLiteStorage) GetSuppliers(ctx context.Context) ([]model.Supplier, error) {
	return s.getSuppliers(ctx, s.db)
}

func (s *SQLiteStorage) GetSupplierByID(ctx context.Context, id int64) (*model.Supplier, error) {
	return s.getSupplierByID(ctx, s.db, id)
}

func (s *SQLiteStorage) UpsertSupplier(ctx context.Context, name, normalizedName string) (*model.Supplier, error) {
	return s.upsertSupplier(ctx, s.db, name, normalizedName)
}

func (s *SQLiteStorage) AppendObservations(ctx context.Context, observations []model.PriceObservation) error {
	return s.appendObservations(ctx, s.db, observations)
}

func (s *SQLiteStorage) GetObservations(ctx context.Context, filter service.ObservationFilter) ([]model.PriceObservation, error) {
	return s.getObservations(ctx, s.db, filter)
}

func (s *SQLiteStorage) GetObservationsSince(ctx context.Context, since time.Time) ([]model.PriceObservation, error) {
	return s.getObservationsSince(ctx, s.db, since)
}

func (s *SQLiteStorage) SaveInvoice(ctx context.Context, invoice *model.Invoice, supplierID int64) error {
	return s.saveInvoice(ctx, s.db, invoice, supplierID)
}

func (s *SQLiteStorage) GetInvoiceByID(ctx context.Context, id string) (*model.Invoice, error) {
	return s.getInvoiceByID(ctx, s.db, id)
}

func (s *SQLiteStorage) ListInvoices(ctx context.Context, limit, offset int) ([]model.Invoice, error) {
	return s.listInvoices(ctx, s.db, limit, offset)
}

func (s *SQLiteStorage) GetInvoiceCount(ctx context.Context) (int, error) {
	return s.getInvoiceCount(ctx, s.db)
}

func (s *SQLiteStorage) GetInvoiceCountSince(ctx context.Context, since time.Time) (int, error) {
	return s.getInvoiceCountSince(ctx, s.db, since)
}
