package match

import (
	"context"
	"fmt"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// GeneratorConfig bounds each strategy's catalog traffic.
type GeneratorConfig struct {
	RecallThreshold float64
	VectorLimit     int
	BrandLimit      int
	PoolLimit       int
	SearchLimit     int
}

// DefaultGeneratorConfig returns the standard generation bounds.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		RecallThreshold: 0.7,
		VectorLimit:     20,
		BrandLimit:      50,
		PoolLimit:       25,
		SearchLimit:     75,
	}
}

// Generator runs the fixed set of candidate strategies and merges their
// output. Collaborator outages degrade inside the strategies; an error
// surfacing here means the catalog itself failed, which no strategy can
// work around.
type Generator struct {
	strategies []Strategy
}

// NewGenerator creates a generator over the four standard strategies.
func NewGenerator(catalog Catalog, embedder Embedder, cfg GeneratorConfig) *Generator {
	return &Generator{
		strategies: []Strategy{
			NewExactIdentifierStrategy(catalog),
			NewVectorStrategy(catalog, embedder, cfg.RecallThreshold, cfg.VectorLimit),
			NewBrandCategoryStrategy(catalog, cfg.BrandLimit),
			NewNameSimilarityStrategy(catalog, cfg.PoolLimit, cfg.SearchLimit),
		},
	}
}

// NewGeneratorWithStrategies creates a generator over an explicit strategy
// list, in the order they should contribute candidates.
func NewGeneratorWithStrategies(strategies ...Strategy) *Generator {
	return &Generator{strategies: strategies}
}

// Generate produces the deduplicated candidate list for one item. Per
// product, the highest-scoring occurrence across strategies survives.
func (g *Generator) Generate(ctx context.Context, item model.LineItem) (model.Candidates, error) {
	if !item.IsMatchable() {
		return nil, fmt.Errorf("item %s is not matchable", item.ID)
	}

	var all model.Candidates
	for _, strategy := range g.strategies {
		candidates, err := strategy.Generate(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", strategy.Name(), err)
		}
		all = append(all, candidates...)
	}

	return all.DedupeByProduct(), nil
}
