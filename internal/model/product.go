package model

import (
	"fmt"
	"time"
)

// Product is a canonical catalog entry. The matching engine treats the
// catalog as a read-only lookup target; products are only ever created
// through the review workflow or catalog imports.
type Product struct {
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string
	Brand        string
	Barcode      string
	Category     string
	NamePhonetic string
	Embedding    []float32
	ID           int64
}

// Validate ensures the product has the fields required for matching.
func (p *Product) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product name is required")
	}
	return nil
}

// ScoredProduct pairs a product with a similarity score from a
// nearest-neighbor lookup.
type ScoredProduct struct {
	Product    Product
	Similarity float64
}
