package match

import (
	"context"
	"fmt"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// brandCategoryBaseScore is the floor for a brand+category hit: knowing
// both fields is a real signal even when the names barely overlap.
const brandCategoryBaseScore = 0.6

// BrandCategoryStrategy matches items that carry both a claimed brand and
// a claimed category by filtering the catalog on brand substring.
type BrandCategoryStrategy struct {
	catalog Catalog
	limit   int
}

// NewBrandCategoryStrategy creates the brand+category strategy.
func NewBrandCategoryStrategy(catalog Catalog, limit int) *BrandCategoryStrategy {
	return &BrandCategoryStrategy{catalog: catalog, limit: limit}
}

// Name implements Strategy.
func (s *BrandCategoryStrategy) Name() string {
	return string(model.MethodBrandCategory)
}

// Generate filters the catalog by brand substring and scores each hit at
// the base score, raised to the fuzzy name similarity when that is higher.
func (s *BrandCategoryStrategy) Generate(ctx context.Context, item model.LineItem) (model.Candidates, error) {
	if item.Brand == "" || item.Category == "" {
		return nil, nil
	}

	products, err := s.catalog.GetProductsByBrand(ctx, item.Brand, s.limit)
	if err != nil {
		return nil, fmt.Errorf("brand lookup failed: %w", err)
	}

	candidates := make(model.Candidates, 0, len(products))
	for _, product := range products {
		score := brandCategoryBaseScore
		if sim := BestSimilarity(item.DisplayName(), product.Name); sim > score {
			score = sim
		}
		candidates = append(candidates, model.Candidate{
			ProductID: product.ID,
			Name:      product.Name,
			Brand:     product.Brand,
			Barcode:   product.Barcode,
			Method:    model.MethodBrandCategory,
			RawScore:  score,
		})
	}
	return candidates, nil
}
