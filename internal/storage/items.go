package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

const itemColumns = `id, raw_text, normalized_name, merchant, item_code, brand, category,
	       price, embedding, confidence, is_discount, is_adjustment, user_edited,
	       match_count, created_at, updated_at`

// SaveItems saves multiple line items to the database. Items already
// present (by ID) are left untouched so re-ingesting a receipt is safe.
func (s *SQLiteStore) SaveItems(ctx context.Context, items []model.LineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItems(items); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveItemsTx(ctx, tx, items); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) saveItemsTx(ctx context.Context, tx *sql.Tx, items []model.LineItem) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO items (
			id, raw_text, normalized_name, merchant, item_code, brand, category,
			price, embedding, confidence, is_discount, is_adjustment, user_edited, match_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, item := range items {
		confidence, healed := model.NormalizeConfidence(item.Confidence)
		if healed {
			common.LogSelfHeal("confidence", item.Confidence, confidence, item.ID)
		}

		price := ""
		if !item.Price.IsZero() {
			price = item.Price.String()
		}

		_, err = stmt.ExecContext(ctx,
			item.ID,
			item.RawText,
			item.NormalizedName,
			item.Merchant,
			item.ItemCode,
			item.Brand,
			item.Category,
			price,
			encodeVector(item.Embedding),
			confidence,
			item.IsDiscount,
			item.IsAdjustment,
			item.UserEdited,
			item.MatchCount,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ID, err)
		}
	}

	return nil
}

// GetItemByID retrieves a single line item.
func (s *SQLiteStore) GetItemByID(ctx context.Context, id string) (*model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getItemByIDTx(ctx, s.db, id)
}

func (s *SQLiteStore) getItemByIDTx(ctx context.Context, q queryable, id string) (*model.LineItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = ?
	`, id)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetItems retrieves line items matching the filter.
func (s *SQLiteStore) GetItems(ctx context.Context, filter service.ItemFilter) ([]model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getItemsTx(ctx, s.db, filter)
}

func (s *SQLiteStore) getItemsTx(ctx context.Context, q queryable, filter service.ItemFilter) ([]model.LineItem, error) {
	query := `
		SELECT ` + itemColumnsPrefixed("i") + `
		FROM items i
	`
	args := []any{}

	if filter.UnlinkedOnly {
		query += ` LEFT JOIN linkages l ON i.id = l.item_id WHERE l.item_id IS NULL`
	} else {
		query += ` WHERE 1=1`
	}

	if filter.Merchant != "" {
		query += ` AND i.merchant = ?`
		args = append(args, filter.Merchant)
	}

	query += ` ORDER BY i.created_at ASC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanItems(rows)
}

// GetItemsToMatch retrieves unlinked, matchable items, oldest first.
// Discount and adjustment lines never appear.
func (s *SQLiteStore) GetItemsToMatch(ctx context.Context, merchant string, limit int) ([]model.LineItem, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getItemsToMatchTx(ctx, s.db, merchant, limit)
}

func (s *SQLiteStore) getItemsToMatchTx(ctx context.Context, q queryable, merchant string, limit int) ([]model.LineItem, error) {
	query := `
		SELECT ` + itemColumnsPrefixed("i") + `
		FROM items i
		LEFT JOIN linkages l ON i.id = l.item_id
		WHERE l.item_id IS NULL
		  AND i.is_discount = 0
		  AND i.is_adjustment = 0
	`
	args := []any{}

	if merchant != "" {
		query += ` AND i.merchant = ?`
		args = append(args, merchant)
	}

	query += ` ORDER BY i.created_at ASC`

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items to match: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanItems(rows)
}

// UpdateItem persists changes to an existing line item.
func (s *SQLiteStore) UpdateItem(ctx context.Context, item *model.LineItem) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateItem(item); err != nil {
		return err
	}
	return s.updateItemTx(ctx, s.db, item)
}

func (s *SQLiteStore) updateItemTx(ctx context.Context, q queryable, item *model.LineItem) error {
	confidence, healed := model.NormalizeConfidence(item.Confidence)
	if healed {
		common.LogSelfHeal("confidence", item.Confidence, confidence, item.ID)
		item.Confidence = confidence
	}

	price := ""
	if !item.Price.IsZero() {
		price = item.Price.String()
	}

	result, err := q.ExecContext(ctx, `
		UPDATE items
		SET raw_text = ?, normalized_name = ?, merchant = ?, item_code = ?,
		    brand = ?, category = ?, price = ?, embedding = ?, confidence = ?,
		    is_discount = ?, is_adjustment = ?, user_edited = ?, match_count = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		item.RawText,
		item.NormalizedName,
		item.Merchant,
		item.ItemCode,
		item.Brand,
		item.Category,
		price,
		encodeVector(item.Embedding),
		confidence,
		item.IsDiscount,
		item.IsAdjustment,
		item.UserEdited,
		item.MatchCount,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return common.ErrItemNotFound
	}
	return nil
}

// itemColumnsPrefixed qualifies the item column list with a table alias.
func itemColumnsPrefixed(alias string) string {
	return alias + `.id, ` + alias + `.raw_text, ` + alias + `.normalized_name, ` +
		alias + `.merchant, ` + alias + `.item_code, ` + alias + `.brand, ` +
		alias + `.category, ` + alias + `.price, ` + alias + `.embedding, ` +
		alias + `.confidence, ` + alias + `.is_discount, ` + alias + `.is_adjustment, ` +
		alias + `.user_edited, ` + alias + `.match_count, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.LineItem, error) {
	var item model.LineItem
	var merchant, itemCode, brand, category, price sql.NullString
	var embedding []byte

	err := row.Scan(
		&item.ID,
		&item.RawText,
		&item.NormalizedName,
		&merchant,
		&itemCode,
		&brand,
		&category,
		&price,
		&embedding,
		&item.Confidence,
		&item.IsDiscount,
		&item.IsAdjustment,
		&item.UserEdited,
		&item.MatchCount,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.Merchant = merchant.String
	item.ItemCode = itemCode.String
	item.Brand = brand.String
	item.Category = category.String

	if price.Valid && price.String != "" {
		parsed, parseErr := decimal.NewFromString(price.String)
		if parseErr != nil {
			return nil, fmt.Errorf("failed to parse item price %q: %w", price.String, parseErr)
		}
		item.Price = parsed
	}

	vector, err := decodeVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode item embedding: %w", err)
	}
	item.Embedding = vector

	return &item, nil
}

func scanItems(rows *sql.Rows) ([]model.LineItem, error) {
	var items []model.LineItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
