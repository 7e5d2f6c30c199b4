// Package testutil provides test infrastructure for the matching engine:
// in-memory stores with migrations applied and fixture seeding for catalog
// products and receipt line items.
package testutil

import (
	"context"
	"testing"

	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/storage"
)

// TestStore wraps an in-memory store with seeding helpers bound to the
// test's lifecycle.
type TestStore struct {
	*storage.SQLiteStore
	t *testing.T
}

// SetupTestStore creates a migrated in-memory store that closes with the
// test.
func SetupTestStore(t *testing.T) *TestStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		if closeErr := store.Close(); closeErr != nil {
			t.Errorf("failed to close test store: %v", closeErr)
		}
	})

	return &TestStore{SQLiteStore: store, t: t}
}

// SeedProducts inserts catalog products and returns them with ids set.
func (ts *TestStore) SeedProducts(products ...model.Product) []model.Product {
	ts.t.Helper()

	ctx := context.Background()
	seeded := make([]model.Product, len(products))
	for i, product := range products {
		id, err := ts.CreateProduct(ctx, &product)
		if err != nil {
			ts.t.Fatalf("failed to seed product %q: %v", product.Name, err)
		}
		product.ID = id
		seeded[i] = product
	}
	return seeded
}

// SeedItems inserts line items.
func (ts *TestStore) SeedItems(items ...model.LineItem) []model.LineItem {
	ts.t.Helper()

	if err := ts.SaveItems(context.Background(), items); err != nil {
		ts.t.Fatalf("failed to seed items: %v", err)
	}
	return items
}

// MustGetItem fetches an item or fails the test.
func (ts *TestStore) MustGetItem(id string) *model.LineItem {
	ts.t.Helper()

	item, err := ts.GetItemByID(context.Background(), id)
	if err != nil {
		ts.t.Fatalf("failed to get item %q: %v", id, err)
	}
	return item
}
