// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// ItemFilter defines filtering options for line item queries.
type ItemFilter struct {
	Merchant     string
	UnlinkedOnly bool
	Limit        int
	Offset       int
}

// LinkageFilter defines filtering options for linkage queries.
type LinkageFilter struct {
	Since    *time.Time
	Method   model.MatchMethod
	Merchant string
	Limit    int
}

// UnprocessedFilter defines filtering options for review queue queries.
type UnprocessedFilter struct {
	Status     model.ReviewStatus
	Reason     model.UnmatchedReason
	Merchant   string
	MinOccur   int
	Limit      int
	ByPriority bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Line item operations
	SaveItems(ctx context.Context, items []model.LineItem) error
	GetItemByID(ctx context.Context, id string) (*model.LineItem, error)
	GetItems(ctx context.Context, filter ItemFilter) ([]model.LineItem, error)
	GetItemsToMatch(ctx context.Context, merchant string, limit int) ([]model.LineItem, error)
	UpdateItem(ctx context.Context, item *model.LineItem) error

	// Catalog operations (read-only from the engine's perspective)
	CreateProduct(ctx context.Context, product *model.Product) (int64, error)
	GetProductByID(ctx context.Context, id int64) (*model.Product, error)
	ListProducts(ctx context.Context, limit, offset int) ([]model.Product, error)
	GetProductsByBarcode(ctx context.Context, barcode string) ([]model.Product, error)
	GetProductsByBrand(ctx context.Context, brand string, limit int) ([]model.Product, error)
	SearchProductsByName(ctx context.Context, name string, limit int) ([]model.Product, error)
	NearestProducts(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.ScoredProduct, error)
	GetProductsWithoutEmbedding(ctx context.Context, limit int) ([]model.Product, error)
	UpdateProductEmbedding(ctx context.Context, id int64, embedding []float32) error
	CountProducts(ctx context.Context) (int64, error)

	// Linkage operations
	SaveLinkage(ctx context.Context, linkage *model.Linkage) error
	GetLinkageByItem(ctx context.Context, itemID string) (*model.Linkage, error)
	GetLinkages(ctx context.Context, filter LinkageFilter) ([]model.Linkage, error)
	CountLinkagesByMethod(ctx context.Context) (map[model.MatchMethod]int64, error)

	// Unprocessed review queue operations
	RecordUnprocessed(ctx context.Context, entry *model.UnprocessedEntry) (*model.UnprocessedEntry, error)
	GetUnprocessedByID(ctx context.Context, id string) (*model.UnprocessedEntry, error)
	GetUnprocessedByKey(ctx context.Context, normalizedName, brand string) (*model.UnprocessedEntry, error)
	ListUnprocessed(ctx context.Context, filter UnprocessedFilter) ([]model.UnprocessedEntry, error)
	UpdateUnprocessedStatus(ctx context.Context, id string, from, to model.ReviewStatus, reviewerID string) error
	CompleteUnprocessed(ctx context.Context, id string, productID int64) error
	CountUnprocessedByStatus(ctx context.Context) (map[model.ReviewStatus]int64, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}

// CompletionStats shows the results of a matching run.
type CompletionStats struct {
	TotalItems  int
	AutoLinked  int
	UserLinked  int
	Queued      int
	Skipped     int
	FailedItems int
	Duration    time.Duration
}

// BulkError records one item's failure inside a bulk operation.
type BulkError struct {
	ItemID string
	Err    string
}

// BulkSummary reports the outcome of a bulk selection commit.
type BulkSummary struct {
	Errors    []BulkError
	Processed int
	Linked    int
}

// MatchStats aggregates matching outcomes for reporting.
type MatchStats struct {
	LinkagesByMethod map[model.MatchMethod]int64
	QueueByStatus    map[model.ReviewStatus]int64
	TotalItems       int64
	TotalProducts    int64
	TotalLinked      int64
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
