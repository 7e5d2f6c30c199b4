// Package model defines the core domain models used throughout the application.
package model

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultConfidence replaces corrupt confidence scores before any use.
const DefaultConfidence = 0.5

// LineItem is a normalized receipt line: the unit of work for matching.
// Upstream OCR/normalization produces these; the engine only mutates the
// link-related fields through SelectionResolver.
type LineItem struct {
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Price          decimal.Decimal
	ID             string
	RawText        string
	NormalizedName string
	Merchant       string
	ItemCode       string
	Brand          string
	Category       string
	Embedding      []float32
	Confidence     float64
	MatchCount     int
	IsDiscount     bool
	IsAdjustment   bool
	UserEdited     bool
}

// NormalizeConfidence validates a confidence score, coercing NaN or
// out-of-range values to DefaultConfidence. The second return reports
// whether a correction was applied so callers can log the self-healing.
func NormalizeConfidence(score float64) (float64, bool) {
	if math.IsNaN(score) || score < 0.0 || score > 1.0 {
		return DefaultConfidence, true
	}
	return score, false
}

// BoostConfidence raises a confidence score by the given amount, capped at 1.0.
func BoostConfidence(score, boost float64) float64 {
	boosted := score + boost
	if boosted > 1.0 {
		return 1.0
	}
	return boosted
}

// DisplayName returns the best human-readable name for the item.
func (li *LineItem) DisplayName() string {
	if li.NormalizedName != "" {
		return li.NormalizedName
	}
	return li.RawText
}

// IsMatchable reports whether the item is a regular product line that
// should be matched against the catalog. Discount and adjustment lines
// are never matched.
func (li *LineItem) IsMatchable() bool {
	return !li.IsDiscount && !li.IsAdjustment && li.DisplayName() != ""
}

// DedupeKey identifies the (normalized name, brand) pair used to collapse
// repeated match failures onto a single review entry.
func (li *LineItem) DedupeKey() (name, brand string) {
	return strings.ToLower(strings.TrimSpace(li.NormalizedName)),
		strings.ToLower(strings.TrimSpace(li.Brand))
}
