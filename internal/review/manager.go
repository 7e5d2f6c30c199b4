// Package review manages the unmatched review queue: recording match
// failures, walking entries through the reviewer state machine, and
// creating catalog products from approved entries.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// Manager owns the unmatched review queue.
type Manager struct {
	store  service.Storage
	logger *slog.Logger
}

// NewManager creates a review queue manager.
func NewManager(store service.Storage, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

// RecordFailure records a failed match attempt. Repeated failures for the
// same (normalized name, brand) pair accumulate on one entry: the
// occurrence count increments and the priority score is recomputed as
// occurrences times confidence. The item's confidence is validated first;
// corrupt values are coerced to the default and logged, never propagated.
func (m *Manager) RecordFailure(ctx context.Context, item model.LineItem, reason model.UnmatchedReason) (*model.UnprocessedEntry, error) {
	confidence, healed := model.NormalizeConfidence(item.Confidence)
	if healed {
		common.LogSelfHeal("confidence", item.Confidence, confidence, item.ID)
	}

	entry := model.UnprocessedEntry{
		NormalizedName:  item.DisplayName(),
		Brand:           item.Brand,
		Category:        item.Category,
		Merchant:        item.Merchant,
		RawText:         item.RawText,
		ItemCode:        item.ItemCode,
		Reason:          reason,
		Status:          model.ReviewPending,
		OccurrenceCount: 1,
		ConfidenceScore: confidence,
	}

	stored, err := m.store.RecordUnprocessed(ctx, &entry)
	if err != nil {
		return nil, fmt.Errorf("failed to record unmatched item: %w", err)
	}

	m.logger.Info("recorded unmatched item",
		"entry_id", stored.ID,
		"name", stored.NormalizedName,
		"reason", stored.Reason,
		"occurrences", stored.OccurrenceCount,
		"priority", stored.PriorityScore)
	return stored, nil
}

// BeginReview moves a pending entry under review. Every transition out of
// pending requires an explicit reviewer; nothing moves automatically.
func (m *Manager) BeginReview(ctx context.Context, entryID, reviewerID string) (*model.UnprocessedEntry, error) {
	return m.transition(ctx, entryID, model.ReviewPending, model.ReviewUnder, reviewerID)
}

// Approve marks an entry under review as approved for product creation.
func (m *Manager) Approve(ctx context.Context, entryID, reviewerID string) (*model.UnprocessedEntry, error) {
	return m.transition(ctx, entryID, model.ReviewUnder, model.ReviewApproved, reviewerID)
}

// Reject marks an entry under review as rejected. Rejected is terminal.
func (m *Manager) Reject(ctx context.Context, entryID, reviewerID string) (*model.UnprocessedEntry, error) {
	return m.transition(ctx, entryID, model.ReviewUnder, model.ReviewRejected, reviewerID)
}

func (m *Manager) transition(ctx context.Context, entryID string, from, to model.ReviewStatus, reviewerID string) (*model.UnprocessedEntry, error) {
	if reviewerID == "" {
		return nil, fmt.Errorf("%w: reviewer id is required", common.ErrInvalidTransition)
	}

	if err := m.store.UpdateUnprocessedStatus(ctx, entryID, from, to, reviewerID); err != nil {
		return nil, err
	}

	entry, err := m.store.GetUnprocessedByID(ctx, entryID)
	if err != nil {
		return nil, err
	}

	m.logger.Info("review status changed",
		"entry_id", entryID,
		"from", from,
		"to", to,
		"reviewer", reviewerID)
	return entry, nil
}

// CreateProduct creates a catalog product from an approved entry, links the
// new product back to the entry, and marks the entry processed. The
// product's fields default to the entry's descriptive fields; non-empty
// override fields win.
func (m *Manager) CreateProduct(ctx context.Context, entryID string, override model.Product) (*model.Product, error) {
	entry, err := m.store.GetUnprocessedByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != model.ReviewApproved {
		return nil, fmt.Errorf("%w: entry %s is %s, not %s",
			common.ErrInvalidTransition, entryID, entry.Status, model.ReviewApproved)
	}

	product := model.Product{
		Name:     entry.NormalizedName,
		Brand:    entry.Brand,
		Barcode:  entry.ItemCode,
		Category: entry.Category,
	}
	if override.Name != "" {
		product.Name = override.Name
	}
	if override.Brand != "" {
		product.Brand = override.Brand
	}
	if override.Barcode != "" {
		product.Barcode = override.Barcode
	}
	if override.Category != "" {
		product.Category = override.Category
	}

	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	productID, err := tx.CreateProduct(ctx, &product)
	if err != nil {
		return nil, fmt.Errorf("failed to create product from entry %s: %w", entryID, err)
	}
	if err := tx.CompleteUnprocessed(ctx, entryID, productID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	m.logger.Info("created product from review entry",
		"entry_id", entryID,
		"product_id", productID,
		"name", product.Name)
	return &product, nil
}

// List returns queue entries matching the filter.
func (m *Manager) List(ctx context.Context, filter service.UnprocessedFilter) ([]model.UnprocessedEntry, error) {
	return m.store.ListUnprocessed(ctx, filter)
}

// Get returns one queue entry.
func (m *Manager) Get(ctx context.Context, entryID string) (*model.UnprocessedEntry, error) {
	return m.store.GetUnprocessedByID(ctx, entryID)
}
