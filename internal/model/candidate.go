package model

import (
	"fmt"
	"sort"
	"strings"
)

// MatchMethod identifies which strategy produced a candidate or linkage.
type MatchMethod string

// Match method constants.
const (
	MethodExactIdentifier  MatchMethod = "exact_identifier"
	MethodVectorSimilarity MatchMethod = "vector_similarity"
	MethodBrandCategory    MatchMethod = "brand_category"
	MethodNameSimilarity   MatchMethod = "name_similarity"
	MethodUserSelection    MatchMethod = "user_selection"
)

// BrandMatchSuffix tags a method when the selection resolver confirmed the
// candidate's brand against the item's claimed brand.
const BrandMatchSuffix = "_brand_match"

// WithBrandMatch returns the method tagged with the brand-match suffix.
func (m MatchMethod) WithBrandMatch() MatchMethod {
	if strings.HasSuffix(string(m), BrandMatchSuffix) {
		return m
	}
	return MatchMethod(string(m) + BrandMatchSuffix)
}

// Base strips the brand-match suffix, returning the producing strategy.
func (m MatchMethod) Base() MatchMethod {
	return MatchMethod(strings.TrimSuffix(string(m), BrandMatchSuffix))
}

// Candidate is one catalog product proposed as a possible match for a
// line item. Candidates live only for the duration of a matching attempt
// and are never persisted.
type Candidate struct {
	Name               string
	Brand              string
	Barcode            string
	Method             MatchMethod
	ProductID          int64
	RawScore           float64
	AdjustedScore      float64
	BrandCompatibility float64
}

// Validate ensures the candidate carries valid scores.
func (c *Candidate) Validate() error {
	if c.ProductID == 0 {
		return fmt.Errorf("candidate product id is required")
	}
	if c.RawScore < 0.0 || c.RawScore > 1.0 {
		return fmt.Errorf("raw score must be between 0.0 and 1.0, got %.2f", c.RawScore)
	}
	if c.AdjustedScore < 0.0 || c.AdjustedScore > 1.0 {
		return fmt.Errorf("adjusted score must be between 0.0 and 1.0, got %.2f", c.AdjustedScore)
	}
	return nil
}

// rankGroup orders candidates into ranking tiers: exact-identifier
// candidates come before everything else unless their brand compatibility
// is exactly zero, in which case they come after everything else.
func (c *Candidate) rankGroup() int {
	if c.Method.Base() != MethodExactIdentifier {
		return 1
	}
	if c.BrandCompatibility == 0 {
		return 2
	}
	return 0
}

// Candidates is a slice of Candidate that supports ranking and utility methods.
type Candidates []Candidate

// Len implements sort.Interface.
func (c Candidates) Len() int {
	return len(c)
}

// Less implements sort.Interface using the ranking order: tier first,
// then adjusted score descending, then name for a stable order.
func (c Candidates) Less(i, j int) bool {
	gi, gj := c[i].rankGroup(), c[j].rankGroup()
	if gi != gj {
		return gi < gj
	}
	if c[i].AdjustedScore != c[j].AdjustedScore {
		return c[i].AdjustedScore > c[j].AdjustedScore
	}
	return c[i].Name < c[j].Name
}

// Swap implements sort.Interface.
func (c Candidates) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

// Sort orders the candidates by ranking order.
func (c Candidates) Sort() {
	sort.Sort(c)
}

// Top returns the best-ranked candidate, or nil if empty.
func (c Candidates) Top() *Candidate {
	if len(c) == 0 {
		return nil
	}
	c.Sort()
	return &c[0]
}

// TopN returns the N best-ranked candidates.
func (c Candidates) TopN(n int) Candidates {
	if n <= 0 {
		return Candidates{}
	}

	c.Sort()

	if n > len(c) {
		n = len(c)
	}

	result := make(Candidates, n)
	copy(result, c[:n])
	return result
}

// AboveThreshold returns the candidates whose adjusted score meets the
// given threshold, in ranking order.
func (c Candidates) AboveThreshold(threshold float64) Candidates {
	c.Sort()

	var result Candidates
	for _, candidate := range c {
		if candidate.AdjustedScore >= threshold {
			result = append(result, candidate)
		}
	}
	return result
}

// DedupeByProduct collapses candidates sharing a product id, keeping the
// highest raw score per product. Order of first appearance is preserved
// for equal scores.
func (c Candidates) DedupeByProduct() Candidates {
	if len(c) <= 1 {
		return c
	}

	best := make(map[int64]int, len(c))
	result := make(Candidates, 0, len(c))
	for _, candidate := range c {
		idx, ok := best[candidate.ProductID]
		if !ok {
			best[candidate.ProductID] = len(result)
			result = append(result, candidate)
			continue
		}
		if candidate.RawScore > result[idx].RawScore {
			result[idx] = candidate
		}
	}
	return result
}

// Validate ensures all candidates in the slice are valid.
func (c Candidates) Validate() error {
	for i := range c {
		if err := c[i].Validate(); err != nil {
			return fmt.Errorf("invalid candidate at index %d: %w", i, err)
		}
	}
	return nil
}
