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

const linkageColumns = `id, item_id, product_id, method, confidence, linked_at`

// SaveLinkage commits a linkage with first-committer-wins semantics: the
// UNIQUE index on item_id makes the insert a no-op when a linkage already
// exists, and that case surfaces as ErrAlreadyLinked. At most one linkage
// ever exists per item.
func (s *SQLiteStore) SaveLinkage(ctx context.Context, linkage *model.Linkage) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateLinkage(linkage); err != nil {
		return err
	}
	return s.saveLinkageTx(ctx, s.db, linkage)
}

func (s *SQLiteStore) saveLinkageTx(ctx context.Context, q queryable, linkage *model.Linkage) error {
	if linkage.ID == "" {
		linkage.ID = uuid.New().String()
	}

	result, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO linkages (id, item_id, product_id, method, confidence)
		VALUES (?, ?, ?, ?, ?)
	`,
		linkage.ID,
		linkage.ItemID,
		linkage.ProductID,
		linkage.Method,
		linkage.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert linkage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check linkage insert result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s: %w", linkage.ItemID, common.ErrAlreadyLinked)
	}
	return nil
}

// GetLinkageByItem retrieves the linkage for one item, or ErrNotFound.
func (s *SQLiteStore) GetLinkageByItem(ctx context.Context, itemID string) (*model.Linkage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(itemID, "itemID"); err != nil {
		return nil, err
	}
	return s.getLinkageByItemTx(ctx, s.db, itemID)
}

func (s *SQLiteStore) getLinkageByItemTx(ctx context.Context, q queryable, itemID string) (*model.Linkage, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+linkageColumns+`
		FROM linkages
		WHERE item_id = ?
	`, itemID)

	linkage, err := scanLinkage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get linkage: %w", err)
	}
	return linkage, nil
}

// GetLinkages retrieves linkages matching the filter, newest first.
func (s *SQLiteStore) GetLinkages(ctx context.Context, filter service.LinkageFilter) ([]model.Linkage, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getLinkagesTx(ctx, s.db, filter)
}

func (s *SQLiteStore) getLinkagesTx(ctx context.Context, q queryable, filter service.LinkageFilter) ([]model.Linkage, error) {
	query := `
		SELECT ` + prefixColumns("l", linkageColumns) + `
		FROM linkages l
	`
	args := []any{}

	var conditions []string
	if filter.Merchant != "" {
		query += ` JOIN items i ON l.item_id = i.id`
		conditions = append(conditions, `i.merchant = ?`)
		args = append(args, filter.Merchant)
	}
	if filter.Method != "" {
		conditions = append(conditions, `l.method = ?`)
		args = append(args, filter.Method)
	}
	if filter.Since != nil {
		conditions = append(conditions, `l.linked_at >= ?`)
		args = append(args, filter.Since)
	}
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}

	query += ` ORDER BY l.linked_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query linkages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var linkages []model.Linkage
	for rows.Next() {
		linkage, scanErr := scanLinkage(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan linkage: %w", scanErr)
		}
		linkages = append(linkages, *linkage)
	}
	return linkages, rows.Err()
}

// CountLinkagesByMethod aggregates linkage counts per match method.
func (s *SQLiteStore) CountLinkagesByMethod(ctx context.Context) (map[model.MatchMethod]int64, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.countLinkagesByMethodTx(ctx, s.db)
}

func (s *SQLiteStore) countLinkagesByMethodTx(ctx context.Context, q queryable) (map[model.MatchMethod]int64, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT method, COUNT(*)
		FROM linkages
		GROUP BY method
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count linkages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[model.MatchMethod]int64)
	for rows.Next() {
		var method model.MatchMethod
		var count int64
		if err := rows.Scan(&method, &count); err != nil {
			return nil, fmt.Errorf("failed to scan linkage count: %w", err)
		}
		counts[method] = count
	}
	return counts, rows.Err()
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = alias + "." + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}

func scanLinkage(row rowScanner) (*model.Linkage, error) {
	var linkage model.Linkage
	err := row.Scan(
		&linkage.ID,
		&linkage.ItemID,
		&linkage.ProductID,
		&linkage.Method,
		&linkage.Confidence,
		&linkage.LinkedAt,
	)
	if err != nil {
		return nil, err
	}
	return &linkage, nil
}
