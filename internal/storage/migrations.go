package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a
// fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS items (
					id TEXT PRIMARY KEY,
					raw_text TEXT NOT NULL,
					normalized_name TEXT NOT NULL,
					merchant TEXT,
					item_code TEXT,
					brand TEXT,
					category TEXT,
					price TEXT,
					embedding BLOB,
					confidence REAL DEFAULT 0.5,
					is_discount BOOLEAN DEFAULT 0,
					is_adjustment BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_items_merchant ON items(merchant)`,
				`CREATE INDEX idx_items_code ON items(item_code)`,

				`CREATE TABLE IF NOT EXISTS products (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					brand TEXT,
					barcode TEXT,
					category TEXT,
					embedding BLOB,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_products_barcode ON products(barcode)`,
				`CREATE INDEX idx_products_brand ON products(brand)`,
				`CREATE INDEX idx_products_name ON products(name)`,

				`CREATE TABLE IF NOT EXISTS linkages (
					id TEXT PRIMARY KEY,
					item_id TEXT NOT NULL UNIQUE,
					product_id INTEGER NOT NULL,
					method TEXT NOT NULL,
					confidence REAL NOT NULL,
					linked_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (item_id) REFERENCES items(id),
					FOREIGN KEY (product_id) REFERENCES products(id)
				)`,
				`CREATE INDEX idx_linkages_product ON linkages(product_id)`,
				`CREATE INDEX idx_linkages_method ON linkages(method)`,

				`CREATE TABLE IF NOT EXISTS unprocessed_items (
					id TEXT PRIMARY KEY,
					normalized_name TEXT NOT NULL,
					brand TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
					category TEXT,
					merchant TEXT,
					raw_text TEXT,
					item_code TEXT,
					reason TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending_review',
					occurrence_count INTEGER NOT NULL DEFAULT 1,
					confidence_score REAL NOT NULL DEFAULT 0.5,
					priority_score REAL NOT NULL DEFAULT 0,
					reviewer_id TEXT,
					first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(normalized_name, brand)
				)`,
				`CREATE INDEX idx_unprocessed_status ON unprocessed_items(status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add phonetic keys for product name prefiltering",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE products ADD COLUMN name_phonetic TEXT`,
				`CREATE INDEX idx_products_phonetic ON products(name_phonetic)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Track item edit state and match attempts",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE items ADD COLUMN user_edited BOOLEAN DEFAULT 0`,
				`ALTER TABLE items ADD COLUMN match_count INTEGER DEFAULT 0`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Link processed queue entries to created products",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE unprocessed_items ADD COLUMN created_product_id INTEGER`,
				`CREATE INDEX idx_unprocessed_priority ON unprocessed_items(priority_score DESC)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version without
// applying anything.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
