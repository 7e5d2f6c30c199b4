package match

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// mockCatalog is a fixed in-memory catalog for strategy tests.
type mockCatalog struct {
	barcodeErr error
	brandErr   error
	searchErr  error
	nearestErr error
	products   []model.Product
	nearest    []model.ScoredProduct
}

func (m *mockCatalog) GetProductsByBarcode(_ context.Context, barcode string) ([]model.Product, error) {
	if m.barcodeErr != nil {
		return nil, m.barcodeErr
	}
	var hits []model.Product
	for _, p := range m.products {
		if p.Barcode == barcode {
			hits = append(hits, p)
		}
	}
	return hits, nil
}

func (m *mockCatalog) GetProductsByBrand(_ context.Context, brandName string, limit int) ([]model.Product, error) {
	if m.brandErr != nil {
		return nil, m.brandErr
	}
	var hits []model.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Brand), strings.ToLower(brandName)) {
			hits = append(hits, p)
		}
		if len(hits) == limit {
			break
		}
	}
	return hits, nil
}

func (m *mockCatalog) SearchProductsByName(_ context.Context, _ string, limit int) ([]model.Product, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.products) {
		limit = len(m.products)
	}
	return m.products[:limit], nil
}

func (m *mockCatalog) NearestProducts(_ context.Context, _ []float32, _ float64, _ int) ([]model.ScoredProduct, error) {
	if m.nearestErr != nil {
		return nil, m.nearestErr
	}
	return m.nearest, nil
}

// mockEmbedder returns a fixed vector or error.
type mockEmbedder struct {
	err error
	vec []float32
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.vec, nil
}

func TestExactIdentifierStrategy(t *testing.T) {
	catalog := &mockCatalog{products: []model.Product{
		{ID: 1, Name: "Whole Milk Gallon", Brand: "Dairy Pure", Barcode: "012345678905"},
		{ID: 2, Name: "Skim Milk Gallon", Brand: "Dairy Pure", Barcode: "012345678912"},
	}}
	strategy := NewExactIdentifierStrategy(catalog)

	t.Run("matching barcode scores 1.0", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{
			ID:             "item-1",
			NormalizedName: "WHL MLK",
			ItemCode:       "012345678905",
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ProductID)
		assert.Equal(t, model.MethodExactIdentifier, got[0].Method)
		assert.InDelta(t, 1.0, got[0].RawScore, 1e-9)
	})

	t.Run("no item code skips the strategy", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{NormalizedName: "WHL MLK"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("catalog error propagates", func(t *testing.T) {
		broken := NewExactIdentifierStrategy(&mockCatalog{barcodeErr: errors.New("db locked")})
		_, err := broken.Generate(context.Background(), model.LineItem{ItemCode: "012345678905"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "barcode lookup failed")
	})
}

func TestVectorStrategy(t *testing.T) {
	nearest := []model.ScoredProduct{
		{Product: model.Product{ID: 7, Name: "Organic Fuji Apples", Brand: "Fresh Farms"}, Similarity: 0.91},
	}

	t.Run("re-scores hits by fuzzy name", func(t *testing.T) {
		catalog := &mockCatalog{nearest: nearest}
		strategy := NewVectorStrategy(catalog, &mockEmbedder{vec: []float32{0.1, 0.2}}, 0.7, 20)

		got, err := strategy.Generate(context.Background(), model.LineItem{
			ID:             "item-1",
			NormalizedName: "ORGANIC APPLES",
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, model.MethodVectorSimilarity, got[0].Method)
		assert.InDelta(t, 14.0/19.0, got[0].RawScore, 1e-9)
	})

	t.Run("item embedding avoids the embedder", func(t *testing.T) {
		catalog := &mockCatalog{nearest: nearest}
		strategy := NewVectorStrategy(catalog, nil, 0.7, 20)

		got, err := strategy.Generate(context.Background(), model.LineItem{
			NormalizedName: "ORGANIC APPLES",
			Embedding:      []float32{0.1, 0.2},
		})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("no embedder and no embedding skips", func(t *testing.T) {
		strategy := NewVectorStrategy(&mockCatalog{nearest: nearest}, nil, 0.7, 20)
		got, err := strategy.Generate(context.Background(), model.LineItem{NormalizedName: "ORGANIC APPLES"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("embedder failure degrades to skip", func(t *testing.T) {
		strategy := NewVectorStrategy(&mockCatalog{nearest: nearest}, &mockEmbedder{err: errors.New("provider down")}, 0.7, 20)
		got, err := strategy.Generate(context.Background(), model.LineItem{NormalizedName: "ORGANIC APPLES"})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("catalog error propagates", func(t *testing.T) {
		strategy := NewVectorStrategy(&mockCatalog{nearestErr: errors.New("db locked")}, &mockEmbedder{vec: []float32{0.1}}, 0.7, 20)
		_, err := strategy.Generate(context.Background(), model.LineItem{NormalizedName: "ORGANIC APPLES"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nearest-neighbor search failed")
	})
}

func TestBrandCategoryStrategy(t *testing.T) {
	catalog := &mockCatalog{products: []model.Product{
		{ID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms"},
		{ID: 2, Name: "Sparkling Water 12pk", Brand: "Fresh Farms"},
		{ID: 3, Name: "Cola 12pk", Brand: "Fizzco"},
	}}
	strategy := NewBrandCategoryStrategy(catalog, 50)

	t.Run("requires both brand and category", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{
			NormalizedName: "ORGANIC APPLES",
			Brand:          "Fresh Farms",
		})
		require.NoError(t, err)
		assert.Nil(t, got)

		got, err = strategy.Generate(context.Background(), model.LineItem{
			NormalizedName: "ORGANIC APPLES",
			Category:       "Produce",
		})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("base score boosted by name similarity", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{
			NormalizedName: "ORGANIC APPLES",
			Brand:          "Fresh Farms",
			Category:       "Produce",
		})
		require.NoError(t, err)
		require.Len(t, got, 2)

		for _, candidate := range got {
			assert.Equal(t, model.MethodBrandCategory, candidate.Method)
			switch candidate.ProductID {
			case 1:
				// Name similarity 14/19 beats the 0.6 base.
				assert.InDelta(t, 14.0/19.0, candidate.RawScore, 1e-9)
			case 2:
				// Base score holds when the names barely overlap.
				assert.InDelta(t, 0.6, candidate.RawScore, 1e-9)
			default:
				t.Fatalf("unexpected candidate product %d", candidate.ProductID)
			}
		}
	})
}

func TestNameSimilarityStrategy(t *testing.T) {
	catalog := &mockCatalog{products: []model.Product{
		{ID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms"},
		{ID: 2, Name: "Dish Soap Lemon", Brand: "Sudsy"},
	}}
	strategy := NewNameSimilarityStrategy(catalog, 25, 75)

	t.Run("scores the pool with the similarity formula", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{
			ID:             "item-1",
			NormalizedName: "ORGANIC APPLES",
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, model.MethodNameSimilarity, got[0].Method)
	})

	t.Run("empty name skips", func(t *testing.T) {
		got, err := strategy.Generate(context.Background(), model.LineItem{})
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("narrows oversized pools by jaro-winkler", func(t *testing.T) {
		narrow := NewNameSimilarityStrategy(catalog, 1, 75)
		got, err := narrow.Generate(context.Background(), model.LineItem{
			NormalizedName: "ORGANIC APPLES",
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(1), got[0].ProductID, "the apple product should survive the narrowing")
	})
}
