package match

import (
	"context"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// Catalog is the read-only product lookup surface the strategies depend on.
type Catalog interface {
	GetProductsByBarcode(ctx context.Context, barcode string) ([]model.Product, error)
	GetProductsByBrand(ctx context.Context, brand string, limit int) ([]model.Product, error)
	SearchProductsByName(ctx context.Context, name string, limit int) ([]model.Product, error)
	NearestProducts(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.ScoredProduct, error)
}

// Embedder produces an embedding vector for text. Implementations may be
// unconfigured; strategies treat a nil Embedder as "skip".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Strategy generates candidates from one independent matching signal.
// Given a fixed catalog and item, output must be pure and deterministic.
type Strategy interface {
	Name() string
	Generate(ctx context.Context, item model.LineItem) (model.Candidates, error)
}
