package model

import (
	"math"
	"testing"
)

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name       string
		score      float64
		want       float64
		wantHealed bool
	}{
		{name: "valid mid-range", score: 0.73, want: 0.73, wantHealed: false},
		{name: "edge case - zero", score: 0.0, want: 0.0, wantHealed: false},
		{name: "edge case - one", score: 1.0, want: 1.0, wantHealed: false},
		{name: "NaN coerced to default", score: math.NaN(), want: 0.5, wantHealed: true},
		{name: "negative coerced to default", score: -0.2, want: 0.5, wantHealed: true},
		{name: "above one coerced to default", score: 1.7, want: 0.5, wantHealed: true},
		{name: "positive infinity coerced", score: math.Inf(1), want: 0.5, wantHealed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, healed := NormalizeConfidence(tt.score)
			if got != tt.want {
				t.Errorf("NormalizeConfidence(%v) = %v, want %v", tt.score, got, tt.want)
			}
			if math.IsNaN(got) {
				t.Errorf("NormalizeConfidence(%v) propagated NaN", tt.score)
			}
			if healed != tt.wantHealed {
				t.Errorf("NormalizeConfidence(%v) healed = %v, want %v", tt.score, healed, tt.wantHealed)
			}
		})
	}
}

func TestBoostConfidence(t *testing.T) {
	if got := BoostConfidence(0.8, 0.1); got != 0.9 {
		t.Errorf("BoostConfidence(0.8, 0.1) = %v, want 0.9", got)
	}
	if got := BoostConfidence(0.95, 0.1); got != 1.0 {
		t.Errorf("BoostConfidence(0.95, 0.1) = %v, want capped 1.0", got)
	}
	if got := BoostConfidence(1.0, 0.1); got != 1.0 {
		t.Errorf("BoostConfidence(1.0, 0.1) = %v, want 1.0", got)
	}
}

func TestLineItem_IsMatchable(t *testing.T) {
	tests := []struct {
		name string
		item LineItem
		want bool
	}{
		{
			name: "regular product line",
			item: LineItem{NormalizedName: "ORGANIC APPLES"},
			want: true,
		},
		{
			name: "discount line",
			item: LineItem{NormalizedName: "MEMBER DISC", IsDiscount: true},
			want: false,
		},
		{
			name: "adjustment line",
			item: LineItem{NormalizedName: "TAX ADJ", IsAdjustment: true},
			want: false,
		},
		{
			name: "empty name falls back to raw text",
			item: LineItem{RawText: "ORG FUJI APL 3LB"},
			want: true,
		},
		{
			name: "nothing to match on",
			item: LineItem{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.IsMatchable(); got != tt.want {
				t.Errorf("IsMatchable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLineItem_DedupeKey(t *testing.T) {
	item := LineItem{NormalizedName: "  ORGANIC APPLES ", Brand: "Fresh Farms"}
	name, brand := item.DedupeKey()
	if name != "organic apples" {
		t.Errorf("DedupeKey() name = %q, want %q", name, "organic apples")
	}
	if brand != "fresh farms" {
		t.Errorf("DedupeKey() brand = %q, want %q", brand, "fresh farms")
	}
}
