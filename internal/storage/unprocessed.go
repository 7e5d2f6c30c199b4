package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

const unprocessedColumns = `id, normalized_name, brand, category, merchant, raw_text, item_code,
		       reason, status, occurrence_count, confidence_score, priority_score,
		       reviewer_id, created_product_id, first_seen_at, last_seen_at`

// RecordUnprocessed records a match failure, deduplicating on the
// (normalized name, brand) pair: an existing entry accumulates an
// occurrence and a recomputed priority instead of duplicating the row.
// The returned entry reflects the stored state.
func (s *SQLiteStore) RecordUnprocessed(ctx context.Context, entry *model.UnprocessedEntry) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := s.recordUnprocessedTx(ctx, tx, entry)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit unprocessed entry: %w", err)
	}
	return stored, nil
}

func (s *SQLiteStore) recordUnprocessedTx(ctx context.Context, q queryable, entry *model.UnprocessedEntry) (*model.UnprocessedEntry, error) {
	name, brand := dedupeKey(entry.NormalizedName, entry.Brand)

	existing, err := s.getUnprocessedByKeyTx(ctx, q, name, brand)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		occurrences := existing.OccurrenceCount + 1
		priority := model.ComputePriority(occurrences, entry.ConfidenceScore)

		_, err = q.ExecContext(ctx, `
			UPDATE unprocessed_items
			SET occurrence_count = ?, confidence_score = ?, priority_score = ?,
			    reason = ?, last_seen_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, occurrences, entry.ConfidenceScore, priority, entry.Reason, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to accumulate unprocessed entry: %w", err)
		}

		return s.getUnprocessedByIDTx(ctx, q, existing.ID)
	}

	id := entry.ID
	if id == "" {
		id = uuid.New().String()
	}
	priority := model.ComputePriority(1, entry.ConfidenceScore)

	// The name column stores the dedupe key: normalized names are
	// lowercase throughout the pipeline. Brand keeps its display case;
	// the column's NOCASE collation handles dedupe.
	_, err = q.ExecContext(ctx, `
		INSERT INTO unprocessed_items (
			id, normalized_name, brand, category, merchant, raw_text, item_code,
			reason, status, occurrence_count, confidence_score, priority_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`,
		id,
		name,
		strings.TrimSpace(entry.Brand),
		entry.Category,
		entry.Merchant,
		entry.RawText,
		entry.ItemCode,
		entry.Reason,
		model.ReviewPending,
		entry.ConfidenceScore,
		priority,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert unprocessed entry: %w", err)
	}

	return s.getUnprocessedByIDTx(ctx, q, id)
}

// GetUnprocessedByID retrieves one review queue entry.
func (s *SQLiteStore) GetUnprocessedByID(ctx context.Context, id string) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getUnprocessedByIDTx(ctx, s.db, id)
}

func (s *SQLiteStore) getUnprocessedByIDTx(ctx context.Context, q queryable, id string) (*model.UnprocessedEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+unprocessedColumns+`
		FROM unprocessed_items
		WHERE id = ?
	`, id)

	entry, err := scanUnprocessed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unprocessed entry: %w", err)
	}
	return entry, nil
}

// GetUnprocessedByKey retrieves the entry for a (normalized name, brand)
// pair, or ErrNotFound.
func (s *SQLiteStore) GetUnprocessedByKey(ctx context.Context, normalizedName, brand string) (*model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(normalizedName, "normalizedName"); err != nil {
		return nil, err
	}
	name, brandKey := dedupeKey(normalizedName, brand)
	return s.getUnprocessedByKeyTx(ctx, s.db, name, brandKey)
}

func (s *SQLiteStore) getUnprocessedByKeyTx(ctx context.Context, q queryable, normalizedName, brand string) (*model.UnprocessedEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+unprocessedColumns+`
		FROM unprocessed_items
		WHERE normalized_name = ? AND brand = ?
	`, normalizedName, brand)

	entry, err := scanUnprocessed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get unprocessed entry by key: %w", err)
	}
	return entry, nil
}

// ListUnprocessed retrieves review queue entries matching the filter.
// ByPriority orders highest priority first; otherwise oldest first.
func (s *SQLiteStore) ListUnprocessed(ctx context.Context, filter service.UnprocessedFilter) ([]model.UnprocessedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listUnprocessedTx(ctx, s.db, filter)
}

func (s *SQLiteStore) listUnprocessedTx(ctx context.Context, q queryable, filter service.UnprocessedFilter) ([]model.UnprocessedEntry, error) {
	query := `
		SELECT ` + unprocessedColumns + `
		FROM unprocessed_items
	`
	args := []any{}

	var conditions []string
	if filter.Status != "" {
		conditions = append(conditions, `status = ?`)
		args = append(args, filter.Status)
	}
	if filter.Reason != "" {
		conditions = append(conditions, `reason = ?`)
		args = append(args, filter.Reason)
	}
	if filter.Merchant != "" {
		conditions = append(conditions, `merchant = ?`)
		args = append(args, filter.Merchant)
	}
	if filter.MinOccur > 0 {
		conditions = append(conditions, `occurrence_count >= ?`)
		args = append(args, filter.MinOccur)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	if filter.ByPriority {
		query += ` ORDER BY priority_score DESC, last_seen_at DESC`
	} else {
		query += ` ORDER BY first_seen_at ASC`
	}

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.UnprocessedEntry
	for rows.Next() {
		entry, scanErr := scanUnprocessed(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan unprocessed entry: %w", scanErr)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// UpdateUnprocessedStatus moves an entry through the review state machine.
// The transition must be legal and the entry must still hold the expected
// current status; a concurrent reviewer losing that race gets
// ErrInvalidTransition rather than silently overwriting.
func (s *SQLiteStore) UpdateUnprocessedStatus(ctx context.Context, id string, from, to model.ReviewStatus, reviewerID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateUnprocessedStatusTx(ctx, s.db, id, from, to, reviewerID)
}

func (s *SQLiteStore) updateUnprocessedStatusTx(ctx context.Context, q queryable, id string, from, to model.ReviewStatus, reviewerID string) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, from, to)
	}

	result, err := q.ExecContext(ctx, `
		UPDATE unprocessed_items
		SET status = ?, reviewer_id = ?, last_seen_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, to, reviewerID, id, from)
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check status update result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing entry from a lost status race.
		if _, getErr := s.getUnprocessedByIDTx(ctx, q, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: entry %s is no longer %s", common.ErrInvalidTransition, id, from)
	}
	return nil
}

// CompleteUnprocessed marks an approved entry processed and back-links the
// catalog product created from it.
func (s *SQLiteStore) CompleteUnprocessed(ctx context.Context, id string, productID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.completeUnprocessedTx(ctx, s.db, id, productID)
}

func (s *SQLiteStore) completeUnprocessedTx(ctx context.Context, q queryable, id string, productID int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE unprocessed_items
		SET status = ?, created_product_id = ?, last_seen_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status = ?
	`, model.ReviewProcessed, productID, id, model.ReviewApproved)
	if err != nil {
		return fmt.Errorf("failed to complete unprocessed entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completion result: %w", err)
	}
	if affected == 0 {
		if _, getErr := s.getUnprocessedByIDTx(ctx, q, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: entry %s is not approved for creation", common.ErrInvalidTransition, id)
	}
	return nil
}

// CountUnprocessedByStatus aggregates queue entry counts per status.
func (s *SQLiteStore) CountUnprocessedByStatus(ctx context.Context) (map[model.ReviewStatus]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.countUnprocessedByStatusTx(ctx, s.db)
}

func (s *SQLiteStore) countUnprocessedByStatusTx(ctx context.Context, q queryable) (map[model.ReviewStatus]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM unprocessed_items
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count unprocessed entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.ReviewStatus]int64)
	for rows.Next() {
		var status model.ReviewStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// dedupeKey lower-cases and trims the (name, brand) pair the queue
// deduplicates on.
func dedupeKey(name, brand string) (string, string) {
	return strings.ToLower(strings.TrimSpace(name)), strings.ToLower(strings.TrimSpace(brand))
}

func scanUnprocessed(row rowScanner) (*model.UnprocessedEntry, error) {
	var entry model.UnprocessedEntry
	var category, merchant, rawText, itemCode, reviewerID sql.NullString
	var createdProductID sql.NullInt64

	err := row.Scan(
		&entry.ID,
		&entry.NormalizedName,
		&entry.Brand,
		&category,
		&merchant,
		&rawText,
		&itemCode,
		&entry.Reason,
		&entry.Status,
		&entry.OccurrenceCount,
		&entry.ConfidenceScore,
		&entry.PriorityScore,
		&reviewerID,
		&createdProductID,
		&entry.FirstSeenAt,
		&entry.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Category = category.String
	entry.Merchant = merchant.String
	entry.RawText = rawText.String
	entry.ItemCode = itemCode.String
	entry.ReviewerID = reviewerID.String
	entry.CreatedProductID = createdProductID.Int64

	return &entry, nil
}
