package brand

import "strings"

// Compatibility scores, in rule priority order.
const (
	// ScoreExact is an exact case-insensitive brand match.
	ScoreExact = 1.0
	// ScoreRelated covers substring matches and alias-family matches.
	ScoreRelated = 0.8
	// ScoreNeutral applies when either brand is missing: absence of
	// information neither penalizes nor rewards.
	ScoreNeutral = 0.7
	// ScoreMismatch is deliberately non-zero so a data error in the
	// claimed brand can still be corrected downstream.
	ScoreMismatch = 0.1
)

// minSubstringLen guards the substring rule against trivially short brands.
const minSubstringLen = 3

// Scorer computes a [0,1] compatibility multiplier between an item's
// claimed brand and a candidate product's brand.
type Scorer struct {
	table *AliasTable
}

// NewScorer creates a scorer with the given alias table.
func NewScorer(table *AliasTable) *Scorer {
	return &Scorer{table: table}
}

// NewDefaultScorer creates a scorer backed by the embedded alias table.
func NewDefaultScorer() (*Scorer, error) {
	table, err := DefaultAliasTable()
	if err != nil {
		return nil, err
	}
	return NewScorer(table), nil
}

// Score applies the compatibility rules in priority order: missing brand,
// exact match, substring containment, alias family, mismatch.
func (s *Scorer) Score(claimed, candidate string) float64 {
	a := normalizeBrand(claimed)
	b := normalizeBrand(candidate)

	if a == "" || b == "" {
		return ScoreNeutral
	}
	if a == b {
		return ScoreExact
	}
	if containsSubstring(a, b) {
		return ScoreRelated
	}
	if s.table != nil && s.table.SameFamily(a, b) {
		return ScoreRelated
	}
	return ScoreMismatch
}

// containsSubstring reports whether one brand contains the other, with the
// shorter brand at least minSubstringLen characters long.
func containsSubstring(a, b string) bool {
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(shorter) < minSubstringLen {
		return false
	}
	return strings.Contains(longer, shorter)
}
