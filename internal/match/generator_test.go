package match

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// stubStrategy returns canned candidates or a canned error.
type stubStrategy struct {
	err        error
	name       string
	candidates model.Candidates
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Generate(_ context.Context, _ model.LineItem) (model.Candidates, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

func TestGeneratorMergesAndDedupes(t *testing.T) {
	generator := NewGeneratorWithStrategies(
		&stubStrategy{name: "exact_identifier", candidates: model.Candidates{
			{ProductID: 1, Name: "Whole Milk", Method: model.MethodExactIdentifier, RawScore: 1.0},
		}},
		&stubStrategy{name: "vector_similarity", candidates: model.Candidates{
			{ProductID: 1, Name: "Whole Milk", Method: model.MethodVectorSimilarity, RawScore: 0.9},
			{ProductID: 2, Name: "Skim Milk", Method: model.MethodVectorSimilarity, RawScore: 0.8},
		}},
		&stubStrategy{name: "name_similarity", candidates: model.Candidates{
			{ProductID: 2, Name: "Skim Milk", Method: model.MethodNameSimilarity, RawScore: 0.95},
		}},
	)

	got, err := generator.Generate(context.Background(), model.LineItem{ID: "item-1", NormalizedName: "WHL MLK"})
	require.NoError(t, err)
	require.Len(t, got, 2, "one candidate per product should survive")

	byProduct := make(map[int64]model.Candidate, len(got))
	for _, candidate := range got {
		byProduct[candidate.ProductID] = candidate
	}

	require.Contains(t, byProduct, int64(1))
	assert.Equal(t, model.MethodExactIdentifier, byProduct[1].Method, "the higher-scoring occurrence wins")
	assert.InDelta(t, 1.0, byProduct[1].RawScore, 1e-9)

	require.Contains(t, byProduct, int64(2))
	assert.Equal(t, model.MethodNameSimilarity, byProduct[2].Method)
	assert.InDelta(t, 0.95, byProduct[2].RawScore, 1e-9)
}

func TestGeneratorRejectsUnmatchableItems(t *testing.T) {
	generator := NewGeneratorWithStrategies(&stubStrategy{name: "exact_identifier"})

	_, err := generator.Generate(context.Background(), model.LineItem{
		ID:             "item-1",
		NormalizedName: "MEMBER DISCOUNT",
		IsDiscount:     true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not matchable")
}

func TestGeneratorPropagatesStrategyErrors(t *testing.T) {
	dbErr := errors.New("database is locked")
	generator := NewGeneratorWithStrategies(
		&stubStrategy{name: "exact_identifier", candidates: model.Candidates{
			{ProductID: 1, Name: "Whole Milk", Method: model.MethodExactIdentifier, RawScore: 1.0},
		}},
		&stubStrategy{name: "name_similarity", err: dbErr},
	)

	_, err := generator.Generate(context.Background(), model.LineItem{ID: "item-1", NormalizedName: "WHL MLK"})
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "name_similarity")
}

func TestGeneratorWiresAllFourStrategies(t *testing.T) {
	catalog := &mockCatalog{products: []model.Product{
		{ID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms", Barcode: "012345678905"},
	}}
	generator := NewGenerator(catalog, &mockEmbedder{vec: []float32{0.1}}, DefaultGeneratorConfig())

	got, err := generator.Generate(context.Background(), model.LineItem{
		ID:             "item-1",
		NormalizedName: "ORGANIC APPLES",
		ItemCode:       "012345678905",
		Brand:          "Fresh Farms",
		Category:       "Produce",
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.MethodExactIdentifier, got[0].Method,
		"the identifier hit should win the dedupe for its product")
	assert.InDelta(t, 1.0, got[0].RawScore, 1e-9)
}
