package match

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// VectorStrategy matches on embedding similarity. The nearest-neighbor
// lookup runs at a lower recall threshold than final acceptance to keep
// the pool wide; each hit is then re-scored by fuzzy name comparison
// against the candidate's name.
type VectorStrategy struct {
	catalog         Catalog
	embedder        Embedder
	recallThreshold float64
	limit           int
}

// NewVectorStrategy creates the vector similarity strategy. A nil embedder
// is allowed: items that already carry an embedding still match.
func NewVectorStrategy(catalog Catalog, embedder Embedder, recallThreshold float64, limit int) *VectorStrategy {
	return &VectorStrategy{
		catalog:         catalog,
		embedder:        embedder,
		recallThreshold: recallThreshold,
		limit:           limit,
	}
}

// Name implements Strategy.
func (s *VectorStrategy) Name() string {
	return string(model.MethodVectorSimilarity)
}

// Generate runs the nearest-neighbor search when an embedding is available.
// Items without an embedding and without a configured embedder are skipped,
// and an embedding provider failure degrades to a skip as well: only the
// catalog lookup itself can fail this strategy.
func (s *VectorStrategy) Generate(ctx context.Context, item model.LineItem) (model.Candidates, error) {
	embedding := item.Embedding
	if len(embedding) == 0 {
		if s.embedder == nil {
			return nil, nil
		}
		var err error
		embedding, err = s.embedder.Embed(ctx, item.DisplayName())
		if err != nil {
			slog.Warn("embedding unavailable, degrading to remaining strategies",
				"item_id", item.ID,
				"error", err)
			return nil, nil
		}
	}
	if len(embedding) == 0 {
		return nil, nil
	}

	scored, err := s.catalog.NearestProducts(ctx, embedding, s.recallThreshold, s.limit)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor search failed: %w", err)
	}

	candidates := make(model.Candidates, 0, len(scored))
	for _, hit := range scored {
		candidates = append(candidates, model.Candidate{
			ProductID: hit.Product.ID,
			Name:      hit.Product.Name,
			Brand:     hit.Product.Brand,
			Barcode:   hit.Product.Barcode,
			Method:    model.MethodVectorSimilarity,
			RawScore:  BestSimilarity(item.DisplayName(), hit.Product.Name),
		})
	}
	return candidates, nil
}
