package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/model"
)

func TestParseCatalogCSV(t *testing.T) {
	t.Run("maps columns by header name", func(t *testing.T) {
		csvData := strings.Join([]string{
			"brand,name,category,barcode",
			"Kirkland Signature,Almond Butter,Pantry,096619347186",
			",Bananas,Produce,",
		}, "\n")

		products, rowErrors, err := parseCatalogCSV(strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Empty(t, rowErrors)
		require.Len(t, products, 2)

		assert.Equal(t, "Almond Butter", products[0].Name)
		assert.Equal(t, "Kirkland Signature", products[0].Brand)
		assert.Equal(t, "096619347186", products[0].Barcode)
		assert.Equal(t, "Pantry", products[0].Category)

		assert.Equal(t, "Bananas", products[1].Name)
		assert.Empty(t, products[1].Brand)
	})

	t.Run("header lookup is case-insensitive", func(t *testing.T) {
		csvData := "Name, Brand\nWhole Milk,Organic Valley\n"

		products, rowErrors, err := parseCatalogCSV(strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Empty(t, rowErrors)
		require.Len(t, products, 1)
		assert.Equal(t, "Whole Milk", products[0].Name)
		assert.Equal(t, "Organic Valley", products[0].Brand)
	})

	t.Run("missing name column fails the parse", func(t *testing.T) {
		csvData := "brand,barcode\nKirkland,123\n"

		_, _, err := parseCatalogCSV(strings.NewReader(csvData))
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no "name" column`)
	})

	t.Run("rows without a name become row errors", func(t *testing.T) {
		csvData := strings.Join([]string{
			"name,brand",
			"Almond Butter,Kirkland Signature",
			",Mystery Brand",
			"Bananas,",
		}, "\n")

		products, rowErrors, err := parseCatalogCSV(strings.NewReader(csvData))
		require.NoError(t, err)
		assert.Len(t, products, 2, "valid rows should survive a bad row")
		require.Len(t, rowErrors, 1)
		assert.Contains(t, rowErrors[0], "line 3")
	})
}

func TestProductEmbedText(t *testing.T) {
	tests := []struct {
		name    string
		product model.Product
		want    string
	}{
		{
			name:    "brand prefixes the name",
			product: model.Product{Name: "Almond Butter", Brand: "Kirkland Signature"},
			want:    "Kirkland Signature Almond Butter",
		},
		{
			name:    "brand already in the name is not repeated",
			product: model.Product{Name: "Kirkland Signature Almond Butter", Brand: "Kirkland Signature"},
			want:    "Kirkland Signature Almond Butter",
		},
		{
			name:    "brand match ignores case",
			product: model.Product{Name: "KIRKLAND almond butter", Brand: "Kirkland"},
			want:    "KIRKLAND almond butter",
		},
		{
			name:    "no brand",
			product: model.Product{Name: "Bananas"},
			want:    "Bananas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, productEmbedText(tt.product))
		})
	}
}

func TestCatalogCmd(t *testing.T) {
	cmd := catalogCmd()

	names := make(map[string]bool)
	for _, subcmd := range cmd.Commands() {
		names[subcmd.Name()] = true
	}

	for _, want := range []string{"add", "import", "list", "embed"} {
		assert.True(t, names[want], "%s subcommand should exist", want)
	}
}
