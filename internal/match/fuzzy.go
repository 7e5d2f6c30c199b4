package match

import (
	"context"
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"

	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/normalize"
)

// NameSimilarityStrategy is the always-on fallback: normalized edit
// distance against a bounded candidate pool. The pool comes from the
// catalog's substring/phonetic prefilter and is narrowed further by
// Jaro-Winkler before the full distance computation, so cost never grows
// with catalog size.
type NameSimilarityStrategy struct {
	catalog     Catalog
	poolLimit   int
	searchLimit int
}

// NewNameSimilarityStrategy creates the fuzzy name strategy. searchLimit
// bounds the catalog prefilter; poolLimit bounds the candidates that reach
// the edit-distance computation.
func NewNameSimilarityStrategy(catalog Catalog, poolLimit, searchLimit int) *NameSimilarityStrategy {
	return &NameSimilarityStrategy{
		catalog:     catalog,
		poolLimit:   poolLimit,
		searchLimit: searchLimit,
	}
}

// Name implements Strategy.
func (s *NameSimilarityStrategy) Name() string {
	return string(model.MethodNameSimilarity)
}

// Generate scores the prefiltered pool with normalized edit-distance
// similarity.
func (s *NameSimilarityStrategy) Generate(ctx context.Context, item model.LineItem) (model.Candidates, error) {
	name := item.DisplayName()
	if name == "" {
		return nil, nil
	}

	pool, err := s.catalog.SearchProductsByName(ctx, name, s.searchLimit)
	if err != nil {
		return nil, fmt.Errorf("name prefilter failed: %w", err)
	}
	pool = s.narrowPool(name, pool)

	candidates := make(model.Candidates, 0, len(pool))
	for _, product := range pool {
		candidates = append(candidates, model.Candidate{
			ProductID: product.ID,
			Name:      product.Name,
			Brand:     product.Brand,
			Barcode:   product.Barcode,
			Method:    model.MethodNameSimilarity,
			RawScore:  BestSimilarity(name, product.Name),
		})
	}
	return candidates, nil
}

// narrowPool keeps the poolLimit products closest to the item name by
// Jaro-Winkler, a cheap pass that spares the edit-distance computation
// for the long tail of the prefilter.
func (s *NameSimilarityStrategy) narrowPool(name string, pool []model.Product) []model.Product {
	if s.poolLimit <= 0 || len(pool) <= s.poolLimit {
		return pool
	}

	itemName := normalize.ForComparison(name)
	type scoredProduct struct {
		product model.Product
		score   float64
	}
	scored := make([]scoredProduct, len(pool))
	for i, product := range pool {
		scored[i] = scoredProduct{
			product: product,
			score:   matchr.JaroWinkler(itemName, normalize.ForComparison(product.Name), true),
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	narrowed := make([]model.Product, s.poolLimit)
	for i := 0; i < s.poolLimit; i++ {
		narrowed[i] = scored[i].product
	}
	return narrowed
}
