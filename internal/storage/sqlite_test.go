package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// createTestStore creates a migrated in-memory store for storage tests.
func createTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Failed to close store: %v", err)
		}
	})
	return store
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(""); err == nil {
		t.Fatal("Expected error for empty path")
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	// A second migration run must be a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Second migration failed: %v", err)
	}

	var version int
	if err := store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("Failed to read schema version: %v", err)
	}
	if version != ExpectedSchemaVersion {
		t.Errorf("Schema version = %d, want %d", version, ExpectedSchemaVersion)
	}
}

func TestTransaction_CommitAndRollback(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	if _, err := tx.CreateProduct(ctx, &model.Product{Name: "Committed Product"}); err != nil {
		t.Fatalf("Failed to create product in tx: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit: %v", err)
	}

	count, err := store.CountProducts(ctx)
	if err != nil {
		t.Fatalf("Failed to count products: %v", err)
	}
	if count != 1 {
		t.Errorf("Product count after commit = %d, want 1", count)
	}

	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin second transaction: %v", err)
	}
	if _, err := tx.CreateProduct(ctx, &model.Product{Name: "Rolled Back Product"}); err != nil {
		t.Fatalf("Failed to create product in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Failed to rollback: %v", err)
	}

	count, err = store.CountProducts(ctx)
	if err != nil {
		t.Fatalf("Failed to count products: %v", err)
	}
	if count != 1 {
		t.Errorf("Product count after rollback = %d, want 1", count)
	}
}

func TestTransaction_NestedNotSupported(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.BeginTx(ctx); err == nil {
		t.Error("Expected nested transaction to be rejected")
	}
	if err := tx.Migrate(ctx); err == nil {
		t.Error("Expected in-transaction migration to be rejected")
	}
}

func TestVectorRoundTrip(t *testing.T) {
	original := []float32{0.25, -1.5, 3.75, 0}

	decoded, err := decodeVector(encodeVector(original))
	if err != nil {
		t.Fatalf("Failed to decode vector: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("Decoded length = %d, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("decoded[%d] = %f, want %f", i, decoded[i], original[i])
		}
	}

	if got, err := decodeVector(nil); err != nil || got != nil {
		t.Errorf("decodeVector(nil) = %v, %v; want nil, nil", got, err)
	}
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error for truncated blob")
	}
}

func TestValidation_NilContext(t *testing.T) {
	store := createTestStore(t)

	//nolint:staticcheck // deliberately exercising the nil-context guard
	if _, err := store.GetItemByID(nil, "x"); !errors.Is(err, ErrNilContext) {
		t.Errorf("Expected ErrNilContext, got %v", err)
	}
}
