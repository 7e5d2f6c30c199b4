// Package match generates and ranks catalog candidates for receipt line items.
package match

import (
	"math"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/openreceipts/shelfmatch/internal/normalize"
)

// NameSimilarity computes normalized edit-distance similarity between two
// names: (maxLen - editDistance) / maxLen over rune counts. Comparison is
// case-insensitive. The result is always within [0,1].
func NameSimilarity(a, b string) float64 {
	a = normalize.ForComparison(a)
	b = normalize.ForComparison(b)

	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 0
	}

	distance := levenshtein.ComputeDistance(a, b)
	return float64(maxLen-distance) / float64(maxLen)
}

// BestSimilarity returns the highest NameSimilarity between any comparison
// variant of the item name and the candidate name. Receipt shorthand often
// scores far better after abbreviation expansion, so every variant gets a
// chance.
func BestSimilarity(itemName, candidateName string) float64 {
	best := 0.0
	for _, variant := range normalize.ComparisonVariants(itemName) {
		if sim := NameSimilarity(variant, candidateName); sim > best {
			best = sim
		}
	}
	return best
}

// CosineSimilarity computes the cosine of the angle between two embedding
// vectors. Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
