package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements the Storage interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite storage instance.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStore) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:    tx,
		store: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx    *sql.Tx
	store *SQLiteStore
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main store with the transaction.
func (t *sqliteTransaction) SaveItems(ctx context.Context, items []model.LineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItems(items); err != nil {
		return err
	}
	return t.store.saveItemsTx(ctx, t.tx, items)
}

func (t *sqliteTransaction) GetItemByID(ctx context.Context, id string) (*model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.store.getItemByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetItems(ctx context.Context, filter service.ItemFilter) ([]model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.getItemsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) GetItemsToMatch(ctx context.Context, merchant string, limit int) ([]model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.getItemsToMatchTx(ctx, t.tx, merchant, limit)
}

func (t *sqliteTransaction) UpdateItem(ctx context.Context, item *model.LineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	return t.store.updateItemTx(ctx, t.tx, item)
}

func (t *sqliteTransaction) CreateProduct(ctx context.Context, product *model.Product) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateProduct(product); err != nil {
		return 0, err
	}
	return t.store.createProductTx(ctx, t.tx, product)
}

func (t *sqliteTransaction) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.getProductByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListProducts(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.listProductsTx(ctx, t.tx, limit, offset)
}

func (t *sqliteTransaction) GetProductsByBarcode(ctx context.Context, barcode string) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(barcode, "barcode"); err != nil {
		return nil, err
	}
	return t.store.getProductsByBarcodeTx(ctx, t.tx, barcode)
}

func (t *sqliteTransaction) GetProductsByBrand(ctx context.Context, brand string, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(brand, "brand"); err != nil {
		return nil, err
	}
	return t.store.getProductsByBrandTx(ctx, t.tx, brand, limit)
}

func (t *sqliteTransaction) SearchProductsByName(ctx context.Context, name string, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return t.store.searchProductsByNameTx(ctx, t.tx, name, limit)
}

func (t *sqliteTransaction) NearestProducts(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.ScoredProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.nearestProductsTx(ctx, t.tx, embedding, minSimilarity, limit)
}

func (t *sqliteTransaction) GetProductsWithoutEmbedding(ctx context.Context, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.getProductsWithoutEmbeddingTx(ctx, t.tx, limit)
}

func (t *sqliteTransaction) UpdateProductEmbedding(ctx context.Context, id int64, embedding []float32) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.store.updateProductEmbeddingTx(ctx, t.tx, id, embedding)
}

func (t *sqliteTransaction) CountProducts(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.store.countProductsTx(ctx, t.tx)
}

func (t *sqliteTransaction) SaveLinkage(ctx context.Context, linkage *model.Linkage) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinkage(linkage); err != nil {
		return err
	}
	return t.store.saveLinkageTx(ctx, t.tx, linkage)
}

func (t *sqliteTransaction) GetLinkageByItem(ctx context.Context, itemID string) (*model.Linkage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return nil, err
	}
	return t.store.getLinkageByItemTx(ctx, t.tx, itemID)
}

func (t *sqliteTransaction) GetLinkages(ctx context.Context, filter service.LinkageFilter) ([]model.Linkage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.getLinkagesTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) CountLinkagesByMethod(ctx context.Context) (map[model.MatchMethod]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.countLinkagesByMethodTx(ctx, t.tx)
}

func (t *sqliteTransaction) RecordUnprocessed(ctx context.Context, entry *model.UnprocessedEntry) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	return t.store.recordUnprocessedTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetUnprocessedByID(ctx context.Context, id string) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.store.getUnprocessedByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetUnprocessedByKey(ctx context.Context, normalizedName, brand string) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	return t.store.getUnprocessedByKeyTx(ctx, t.tx, normalizedName, brand)
}

func (t *sqliteTransaction) ListUnprocessed(ctx context.Context, filter service.UnprocessedFilter) ([]model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.listUnprocessedTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) UpdateUnprocessedStatus(ctx context.Context, id string, from, to model.ReviewStatus, reviewerID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.store.updateUnprocessedStatusTx(ctx, t.tx, id, from, to, reviewerID)
}

func (t *sqliteTransaction) CompleteUnprocessed(ctx context.Context, id string, productID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.store.completeUnprocessedTx(ctx, t.tx, id, productID)
}

func (t *sqliteTransaction) CountUnprocessedByStatus(ctx context.Context) (map[model.ReviewStatus]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.store.countUnprocessedByStatusTx(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
