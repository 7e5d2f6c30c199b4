package match

import (
	"context"
	"fmt"
	"strings"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// ExactIdentifierStrategy matches on the item code or barcode printed on
// the receipt. A shared identifier is the most trusted signal, so every
// hit scores a perfect 1.0.
type ExactIdentifierStrategy struct {
	catalog Catalog
}

// NewExactIdentifierStrategy creates the exact identifier strategy.
func NewExactIdentifierStrategy(catalog Catalog) *ExactIdentifierStrategy {
	return &ExactIdentifierStrategy{catalog: catalog}
}

// Name implements Strategy.
func (s *ExactIdentifierStrategy) Name() string {
	return string(model.MethodExactIdentifier)
}

// Generate looks up catalog products sharing the item's exact identifier.
func (s *ExactIdentifierStrategy) Generate(ctx context.Context, item model.LineItem) (model.Candidates, error) {
	code := strings.TrimSpace(item.ItemCode)
	if code == "" {
		return nil, nil
	}

	products, err := s.catalog.GetProductsByBarcode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("barcode lookup failed: %w", err)
	}

	candidates := make(model.Candidates, 0, len(products))
	for _, product := range products {
		candidates = append(candidates, model.Candidate{
			ProductID: product.ID,
			Name:      product.Name,
			Brand:     product.Brand,
			Barcode:   product.Barcode,
			Method:    model.MethodExactIdentifier,
			RawScore:  1.0,
		})
	}
	return candidates, nil
}
