// Package brand scores how plausibly two brand strings refer to the same brand.
package brand

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var defaultAliasData []byte

// Family groups a canonical brand with the aliases seen for it on receipts.
type Family struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

type aliasFile struct {
	Families []Family `yaml:"families"`
}

// AliasTable answers whether two brand strings belong to one known
// store-brand family. Loaded once from static configuration data.
type AliasTable struct {
	families map[string]int
	names    []Family
}

// LoadAliasTable parses alias table data in YAML form.
func LoadAliasTable(data []byte) (*AliasTable, error) {
	var file aliasFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse brand alias table: %w", err)
	}

	table := &AliasTable{
		families: make(map[string]int),
		names:    file.Families,
	}
	for i, family := range file.Families {
		if family.Canonical == "" {
			return nil, fmt.Errorf("brand alias family %d has no canonical name", i)
		}
		table.families[normalizeBrand(family.Canonical)] = i
		for _, alias := range family.Aliases {
			table.families[normalizeBrand(alias)] = i
		}
	}
	return table, nil
}

// DefaultAliasTable loads the embedded alias table.
func DefaultAliasTable() (*AliasTable, error) {
	return LoadAliasTable(defaultAliasData)
}

// SameFamily reports whether both brands appear in one alias family.
func (t *AliasTable) SameFamily(a, b string) bool {
	ia, ok := t.families[normalizeBrand(a)]
	if !ok {
		return false
	}
	ib, ok := t.families[normalizeBrand(b)]
	if !ok {
		return false
	}
	return ia == ib
}

// Families returns the loaded alias families.
func (t *AliasTable) Families() []Family {
	return t.names
}

func normalizeBrand(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
