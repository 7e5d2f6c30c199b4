package match

import (
	"github.com/openreceipts/shelfmatch/internal/model"
)

// Default acceptance thresholds. Each signal type has its own reliability:
// identifiers need only brand plausibility, embedding matches need a high
// bar, and the remaining text signals use the general threshold.
const (
	DefaultEmbeddingThreshold = 0.85
	DefaultGeneralThreshold   = 0.6
)

// RankerConfig holds the acceptance thresholds.
type RankerConfig struct {
	EmbeddingThreshold float64
	GeneralThreshold   float64
}

// DefaultRankerConfig returns the standard thresholds.
func DefaultRankerConfig() RankerConfig {
	return RankerConfig{
		EmbeddingThreshold: DefaultEmbeddingThreshold,
		GeneralThreshold:   DefaultGeneralThreshold,
	}
}

// Outcome is the ranked, decided result of one matching attempt.
type Outcome struct {
	Best     *model.Candidate
	Reason   model.UnmatchedReason
	Ranked   model.Candidates
	Accepted bool
}

// BrandScorer judges how plausible a candidate's brand is for the brand
// claimed on the item.
type BrandScorer interface {
	Score(claimed, candidate string) float64
}

// Ranker applies brand compatibility, orders candidates, and decides
// between automatic acceptance and rejection.
type Ranker struct {
	scorer BrandScorer
	cfg    RankerConfig
}

// NewRanker creates a ranker with the given brand scorer and thresholds.
func NewRanker(scorer BrandScorer, cfg RankerConfig) *Ranker {
	if cfg.EmbeddingThreshold <= 0 {
		cfg.EmbeddingThreshold = DefaultEmbeddingThreshold
	}
	if cfg.GeneralThreshold <= 0 {
		cfg.GeneralThreshold = DefaultGeneralThreshold
	}
	return &Ranker{scorer: scorer, cfg: cfg}
}

// Rank computes brand-adjusted scores and orders the candidates: exact
// identifier hits first unless their brand compatibility is exactly zero,
// everything else by adjusted score descending.
func (r *Ranker) Rank(item model.LineItem, candidates model.Candidates) model.Candidates {
	ranked := make(model.Candidates, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		compat := r.scorer.Score(item.Brand, ranked[i].Brand)
		ranked[i].BrandCompatibility = compat
		ranked[i].AdjustedScore = ranked[i].RawScore * compat
	}

	ranked.Sort()
	return ranked
}

// Evaluate ranks the candidates and applies the tiered acceptance policy:
//   - exact_identifier with non-zero brand compatibility: accept outright
//   - vector_similarity: accept only at or above the embedding threshold
//   - anything else: accept at or above the general threshold
//
// Rejections carry the reason the review queue records.
func (r *Ranker) Evaluate(item model.LineItem, candidates model.Candidates) Outcome {
	ranked := r.Rank(item, candidates)

	if len(ranked) == 0 {
		return Outcome{
			Ranked: ranked,
			Reason: model.ReasonNoIdentifierMatch,
		}
	}

	top := &ranked[0]
	switch top.Method.Base() {
	case model.MethodExactIdentifier:
		if top.BrandCompatibility > 0 {
			return Outcome{Ranked: ranked, Best: top, Accepted: true}
		}
		// A barcode hit with a flatly incompatible brand cannot carry
		// the match on its own.
		return Outcome{Ranked: ranked, Reason: model.ReasonLowSimilarityScore}
	case model.MethodVectorSimilarity:
		if top.AdjustedScore >= r.cfg.EmbeddingThreshold {
			return Outcome{Ranked: ranked, Best: top, Accepted: true}
		}
		return Outcome{Ranked: ranked, Reason: model.ReasonNoSimilarityMatch}
	default:
		if top.AdjustedScore >= r.cfg.GeneralThreshold {
			return Outcome{Ranked: ranked, Best: top, Accepted: true}
		}
		return Outcome{Ranked: ranked, Reason: model.ReasonLowSimilarityScore}
	}
}
