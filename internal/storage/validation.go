// Package storage provides the SQLite persistence layer for line items,
// catalog products, linkages, and the unmatched review queue.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrEmptySlice     = errors.New("slice cannot be empty")
	ErrInvalidItem    = errors.New("invalid line item")
	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidLinkage = errors.New("invalid linkage")
	ErrInvalidEntry   = errors.New("invalid unprocessed entry")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateItems validates a slice of line items.
func validateItems(items []model.LineItem) error {
	if items == nil {
		return fmt.Errorf("%w: items", ErrNilParameter)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: items", ErrEmptySlice)
	}

	for i := range items {
		if err := validateItem(&items[i]); err != nil {
			return fmt.Errorf("item at index %d: %w", i, err)
		}
	}
	return nil
}

// validateItem validates a single line item.
func validateItem(item *model.LineItem) error {
	if item == nil {
		return fmt.Errorf("%w: item", ErrNilParameter)
	}
	if item.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidItem)
	}
	if item.RawText == "" && item.NormalizedName == "" {
		return fmt.Errorf("%w: missing text", ErrInvalidItem)
	}
	return nil
}

// validateProduct validates a catalog product.
func validateProduct(product *model.Product) error {
	if product == nil {
		return fmt.Errorf("%w: product", ErrNilParameter)
	}
	if err := product.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	return nil
}

// validateLinkage validates a linkage record.
func validateLinkage(linkage *model.Linkage) error {
	if linkage == nil {
		return fmt.Errorf("%w: linkage", ErrNilParameter)
	}
	if err := linkage.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidLinkage, err)
	}
	return nil
}

// validateEntry validates an unprocessed queue entry.
func validateEntry(entry *model.UnprocessedEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}
