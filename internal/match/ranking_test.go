package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/brand"
	"github.com/openreceipts/shelfmatch/internal/model"
)

// zeroScorer flattens every brand to zero compatibility.
type zeroScorer struct{}

func (zeroScorer) Score(_, _ string) float64 { return 0 }

func defaultRanker() *Ranker {
	scorer, err := brand.NewDefaultScorer()
	if err != nil {
		panic(err)
	}
	return NewRanker(scorer, DefaultRankerConfig())
}

func TestRankerEvaluate(t *testing.T) {
	t.Run("no candidates means no identifier matched", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(model.LineItem{NormalizedName: "MYSTERY ITEM"}, nil)
		assert.False(t, outcome.Accepted)
		assert.Nil(t, outcome.Best)
		assert.Equal(t, model.ReasonNoIdentifierMatch, outcome.Reason)
	})

	t.Run("identifier hit with plausible brand accepts outright", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "KS ALMOND BUTTER", Brand: "Kirkland"},
			model.Candidates{
				{ProductID: 1, Name: "Almond Butter 27oz", Brand: "Kirkland", Method: model.MethodExactIdentifier, RawScore: 1.0},
			},
		)
		require.True(t, outcome.Accepted)
		require.NotNil(t, outcome.Best)
		assert.Equal(t, int64(1), outcome.Best.ProductID)
		assert.InDelta(t, 1.0, outcome.Best.AdjustedScore, 1e-9)
	})

	t.Run("identifier hit outranks a stronger text match", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ALMOND BUTTER", Brand: "Kirkland"},
			model.Candidates{
				{ProductID: 2, Name: "Almond Butter", Brand: "Kirkland", Method: model.MethodNameSimilarity, RawScore: 0.9},
				{ProductID: 1, Name: "Almond Butter 27oz", Brand: "Great Value", Method: model.MethodExactIdentifier, RawScore: 1.0},
			},
		)
		require.Len(t, outcome.Ranked, 2)
		assert.Equal(t, int64(1), outcome.Ranked[0].ProductID,
			"the identifier hit should lead despite its lower adjusted score")
		assert.Less(t, outcome.Ranked[0].AdjustedScore, outcome.Ranked[1].AdjustedScore)
		require.True(t, outcome.Accepted)
		assert.Equal(t, int64(1), outcome.Best.ProductID)
	})

	t.Run("identifier hit with zero brand compatibility sorts last and rejects", func(t *testing.T) {
		ranker := NewRanker(zeroScorer{}, DefaultRankerConfig())
		outcome := ranker.Evaluate(
			model.LineItem{NormalizedName: "ALMOND BUTTER", Brand: "Kirkland"},
			model.Candidates{
				{ProductID: 1, Name: "Almond Butter 27oz", Brand: "Great Value", Method: model.MethodExactIdentifier, RawScore: 1.0},
				{ProductID: 2, Name: "Almond Butter", Brand: "Kirkland", Method: model.MethodNameSimilarity, RawScore: 0.9},
			},
		)
		require.Len(t, outcome.Ranked, 2)
		assert.Equal(t, int64(1), outcome.Ranked[1].ProductID, "the zero-compatibility identifier hit sorts last")
		assert.False(t, outcome.Accepted)
		assert.Equal(t, model.ReasonLowSimilarityScore, outcome.Reason)
	})

	t.Run("embedding match clears its own threshold", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ORGANIC APPLES", Brand: "Fresh Farms"},
			model.Candidates{
				{ProductID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms", Method: model.MethodVectorSimilarity, RawScore: 0.86},
			},
		)
		require.True(t, outcome.Accepted)
		assert.InDelta(t, 0.86, outcome.Best.AdjustedScore, 1e-9)
	})

	t.Run("embedding match below its threshold is rejected, not rescued", func(t *testing.T) {
		// 0.84 adjusted clears the general threshold but the embedding
		// tier has its own bar.
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ORGANIC APPLES", Brand: "Fresh Farms"},
			model.Candidates{
				{ProductID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms", Method: model.MethodVectorSimilarity, RawScore: 0.84},
			},
		)
		assert.False(t, outcome.Accepted)
		assert.Equal(t, model.ReasonNoSimilarityMatch, outcome.Reason)
	})

	t.Run("missing item brand caps embedding matches below acceptance", func(t *testing.T) {
		// Neutral brand compatibility is 0.7, so even a perfect raw score
		// lands at 0.7 adjusted.
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ORGANIC APPLES"},
			model.Candidates{
				{ProductID: 1, Name: "Organic Apples", Brand: "Fresh Farms", Method: model.MethodVectorSimilarity, RawScore: 1.0},
			},
		)
		assert.False(t, outcome.Accepted)
		assert.InDelta(t, 0.7, outcome.Ranked[0].AdjustedScore, 1e-9)
		assert.Equal(t, model.ReasonNoSimilarityMatch, outcome.Reason)
	})

	t.Run("text match clears the general threshold", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ORGANIC APPLES", Brand: "Fresh Farms"},
			model.Candidates{
				{ProductID: 1, Name: "Organic Fuji Apples", Brand: "Fresh Farms", Method: model.MethodNameSimilarity, RawScore: 0.65},
			},
		)
		require.True(t, outcome.Accepted)
		assert.InDelta(t, 0.65, outcome.Best.AdjustedScore, 1e-9)
	})

	t.Run("text match below the general threshold is rejected", func(t *testing.T) {
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "ORGANIC APPLES", Brand: "Fresh Farms"},
			model.Candidates{
				{ProductID: 1, Name: "Organza Gift Bags", Brand: "Fresh Farms", Method: model.MethodNameSimilarity, RawScore: 0.55},
			},
		)
		assert.False(t, outcome.Accepted)
		assert.Equal(t, model.ReasonLowSimilarityScore, outcome.Reason)
	})

	t.Run("brand adjustment can drag a match below acceptance", func(t *testing.T) {
		// 0.7 raw against a related but not exact brand: 0.7 * 0.8 = 0.56.
		outcome := defaultRanker().Evaluate(
			model.LineItem{NormalizedName: "SPARKLING WATER", Brand: "Kirkland"},
			model.Candidates{
				{ProductID: 1, Name: "Sparkling Water 35ct", Brand: "Kirkland Signature", Method: model.MethodBrandCategory, RawScore: 0.7},
			},
		)
		assert.False(t, outcome.Accepted)
		assert.InDelta(t, 0.56, outcome.Ranked[0].AdjustedScore, 1e-9)
		assert.Equal(t, model.ReasonLowSimilarityScore, outcome.Reason)
	})
}

func TestRankerRankOrdering(t *testing.T) {
	ranker := defaultRanker()
	item := model.LineItem{NormalizedName: "SPARKLING WATER", Brand: "Kirkland"}

	ranked := ranker.Rank(item, model.Candidates{
		{ProductID: 1, Name: "Sparkling Water 35ct", Brand: "Great Value", Method: model.MethodNameSimilarity, RawScore: 0.8},
		{ProductID: 2, Name: "Sparkling Water 24ct", Brand: "Kirkland Signature", Method: model.MethodNameSimilarity, RawScore: 0.8},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].ProductID, "the compatible brand should lead at equal raw score")
	assert.InDelta(t, 0.64, ranked[0].AdjustedScore, 1e-9)
	assert.InDelta(t, 0.08, ranked[1].AdjustedScore, 1e-9)

	for _, candidate := range ranked {
		assert.GreaterOrEqual(t, candidate.AdjustedScore, 0.0)
		assert.LessOrEqual(t, candidate.AdjustedScore, 1.0)
		assert.GreaterOrEqual(t, candidate.BrandCompatibility, 0.0)
		assert.LessOrEqual(t, candidate.BrandCompatibility, 1.0)
	}
}

func TestRankerDoesNotMutateInput(t *testing.T) {
	ranker := defaultRanker()
	original := model.Candidates{
		{ProductID: 1, Name: "B Product", Brand: "Kirkland", Method: model.MethodNameSimilarity, RawScore: 0.7},
		{ProductID: 2, Name: "A Product", Brand: "Kirkland", Method: model.MethodExactIdentifier, RawScore: 1.0},
	}

	ranker.Rank(model.LineItem{Brand: "Kirkland"}, original)

	assert.Equal(t, int64(1), original[0].ProductID, "input order should be untouched")
	assert.Zero(t, original[0].AdjustedScore, "input scores should be untouched")
}
