package brand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorer_Score(t *testing.T) {
	scorer, err := NewDefaultScorer()
	require.NoError(t, err)

	tests := []struct {
		name      string
		claimed   string
		candidate string
		want      float64
	}{
		{name: "both missing", claimed: "", candidate: "", want: 0.7},
		{name: "claimed missing", claimed: "", candidate: "Fresh Farms", want: 0.7},
		{name: "candidate missing", claimed: "Fresh Farms", candidate: "", want: 0.7},
		{name: "exact match", claimed: "Fresh Farms", candidate: "Fresh Farms", want: 1.0},
		{name: "exact match ignores case", claimed: "FRESH FARMS", candidate: "fresh farms", want: 1.0},
		{name: "substring match", claimed: "Kirkland", candidate: "Kirkland Signature", want: 0.8},
		{name: "substring match reversed", claimed: "Kirkland Signature", candidate: "Kirkland", want: 0.8},
		{name: "short substring does not count", claimed: "KS", candidate: "Kirkland Signature", want: 0.8}, // alias family, not substring
		{name: "alias family costco", claimed: "Costco", candidate: "Kirkland", want: 0.8},
		{name: "alias family ks", claimed: "ks", candidate: "kirkland signature", want: 0.8},
		{name: "unrelated brands", claimed: "Kirkland", candidate: "Great Value", want: 0.1},
		{name: "unknown unrelated brands", claimed: "Acme", candidate: "Zenith", want: 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scorer.Score(tt.claimed, tt.candidate)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestScorer_ShortBrandWithoutAlias(t *testing.T) {
	// A two-letter brand that is not in any alias family must not match
	// by substring containment.
	scorer := NewScorer(&AliasTable{families: map[string]int{}})
	assert.InDelta(t, 0.1, scorer.Score("AB", "ABSOLUTELY FRESH"), 1e-9)
}

func TestLoadAliasTable(t *testing.T) {
	data := []byte(`
families:
  - canonical: house brand
    aliases: [hb, the house]
`)
	table, err := LoadAliasTable(data)
	require.NoError(t, err)

	assert.True(t, table.SameFamily("house brand", "hb"))
	assert.True(t, table.SameFamily("HB", "The House"))
	assert.False(t, table.SameFamily("house brand", "other"))
	assert.Len(t, table.Families(), 1)
}

func TestLoadAliasTable_Invalid(t *testing.T) {
	_, err := LoadAliasTable([]byte(`families: [{aliases: [x]}]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no canonical name")

	_, err = LoadAliasTable([]byte(`families: "not a list"`))
	require.Error(t, err)
}
