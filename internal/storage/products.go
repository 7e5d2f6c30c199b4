package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/normalize"
)

const productColumns = `id, name, brand, barcode, category, name_phonetic, embedding, created_at, updated_at`

// CreateProduct inserts a catalog product and returns its id. The phonetic
// key is computed here so every product is prefilterable the moment it
// exists.
func (s *SQLiteStore) CreateProduct(ctx context.Context, product *model.Product) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateProduct(product); err != nil {
		return 0, err
	}
	return s.createProductTx(ctx, s.db, product)
}

func (s *SQLiteStore) createProductTx(ctx context.Context, q queryable, product *model.Product) (int64, error) {
	if product.NamePhonetic == "" {
		product.NamePhonetic = normalize.PhoneticKey(product.Name)
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO products (name, brand, barcode, category, name_phonetic, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		product.Name,
		product.Brand,
		product.Barcode,
		product.Category,
		product.NamePhonetic,
		encodeVector(product.Embedding),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get product id: %w", err)
	}
	product.ID = id
	return id, nil
}

// GetProductByID retrieves one catalog product.
func (s *SQLiteStore) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getProductByIDTx(ctx, s.db, id)
}

func (s *SQLiteStore) getProductByIDTx(ctx context.Context, q queryable, id int64) (*model.Product, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ?
	`, id)

	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

// GetProductsByBarcode retrieves the products sharing an exact barcode.
func (s *SQLiteStore) GetProductsByBarcode(ctx context.Context, barcode string) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(barcode, "barcode"); err != nil {
		return nil, err
	}
	return s.getProductsByBarcodeTx(ctx, s.db, barcode)
}

func (s *SQLiteStore) getProductsByBarcodeTx(ctx context.Context, q queryable, barcode string) ([]model.Product, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE barcode = ?
		ORDER BY id ASC
	`, barcode)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by barcode: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// GetProductsByBrand retrieves products whose brand contains the given
// brand as a substring, case-insensitively.
func (s *SQLiteStore) GetProductsByBrand(ctx context.Context, brand string, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(brand, "brand"); err != nil {
		return nil, err
	}
	return s.getProductsByBrandTx(ctx, s.db, brand, limit)
}

func (s *SQLiteStore) getProductsByBrandTx(ctx context.Context, q queryable, brand string, limit int) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE brand LIKE ? ESCAPE '\'
		ORDER BY id ASC
	`
	args := []any{"%" + escapeLike(brand) + "%"}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by brand: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// SearchProductsByName returns a bounded prefilter pool for fuzzy name
// matching: products whose name contains any token of the query, or whose
// phonetic key shares a token with the query's phonetic key. The match
// strategies do the actual scoring; this only has to avoid a full scan.
func (s *SQLiteStore) SearchProductsByName(ctx context.Context, name string, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	return s.searchProductsByNameTx(ctx, s.db, name, limit)
}

func (s *SQLiteStore) searchProductsByNameTx(ctx context.Context, q queryable, name string, limit int) ([]model.Product, error) {
	if limit <= 0 {
		limit = 75
	}

	tokens := searchTokens(name)
	if len(tokens) == 0 {
		return nil, nil
	}

	var clauses []string
	var args []any
	for _, token := range tokens {
		clauses = append(clauses, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(token)+"%")
	}
	for _, key := range strings.Fields(normalize.PhoneticKey(name)) {
		clauses = append(clauses, `name_phonetic LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(key)+"%")
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ` + strings.Join(clauses, " OR ") + `
		ORDER BY id ASC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products by name: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// NearestProducts returns the products closest to the given embedding by
// cosine similarity, at or above minSimilarity, best first. Products
// without an embedding never appear. SQLite has no vector index, so this
// scans the stored embeddings; the recall threshold and limit keep the
// result bounded.
func (s *SQLiteStore) NearestProducts(ctx context.Context, embedding []float32, minSimilarity float64, limit int) ([]model.ScoredProduct, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.nearestProductsTx(ctx, s.db, embedding, minSimilarity, limit)
}

func (s *SQLiteStore) nearestProductsTx(ctx context.Context, q queryable, embedding []float32, minSimilarity float64, limit int) ([]model.ScoredProduct, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query product embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scored []model.ScoredProduct
	for rows.Next() {
		product, scanErr := scanProduct(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan product: %w", scanErr)
		}

		similarity := cosineSimilarity(embedding, product.Embedding)
		if similarity < minSimilarity {
			continue
		}
		scored = append(scored, model.ScoredProduct{Product: *product, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product embeddings: %w", err)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// GetProductsWithoutEmbedding returns products that still need a vector,
// oldest first, for backfill sweeps.
func (s *SQLiteStore) GetProductsWithoutEmbedding(ctx context.Context, limit int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getProductsWithoutEmbeddingTx(ctx, s.db, limit)
}

func (s *SQLiteStore) getProductsWithoutEmbeddingTx(ctx context.Context, q queryable, limit int) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE embedding IS NULL
		ORDER BY id ASC
	`
	args := []any{}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products without embedding: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// UpdateProductEmbedding stores the embedding vector for one product.
func (s *SQLiteStore) UpdateProductEmbedding(ctx context.Context, id int64, embedding []float32) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateProductEmbeddingTx(ctx, s.db, id, embedding)
}

func (s *SQLiteStore) updateProductEmbeddingTx(ctx context.Context, q queryable, id int64, embedding []float32) error {
	result, err := q.ExecContext(ctx, `
		UPDATE products
		SET embedding = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, encodeVector(embedding), id)
	if err != nil {
		return fmt.Errorf("failed to update product embedding: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check embedding update result: %w", err)
	}
	if affected == 0 {
		return common.ErrProductNotFound
	}
	return nil
}

// ListProducts returns a page of the catalog ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context, limit, offset int) ([]model.Product, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listProductsTx(ctx, s.db, limit, offset)
}

func (s *SQLiteStore) listProductsTx(ctx context.Context, q queryable, limit, offset int) ([]model.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY name COLLATE NOCASE ASC, id ASC
	`
	var args []any

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanProducts(rows)
}

// CountProducts returns the catalog size.
func (s *SQLiteStore) CountProducts(ctx context.Context) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return s.countProductsTx(ctx, s.db)
}

func (s *SQLiteStore) countProductsTx(ctx context.Context, q queryable) (int64, error) {
	var count int64
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// searchTokens splits a name into the tokens worth prefiltering on:
// cleaned, abbreviation-expanded, at least three characters, deduplicated.
func searchTokens(name string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, variant := range normalize.ComparisonVariants(name) {
		for _, token := range strings.Fields(variant) {
			if len(token) < 3 || seen[token] {
				continue
			}
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// escapeLike escapes LIKE wildcards in user-supplied text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func scanProduct(row rowScanner) (*model.Product, error) {
	var product model.Product
	var brand, barcode, category, phonetic sql.NullString
	var embedding []byte

	err := row.Scan(
		&product.ID,
		&product.Name,
		&brand,
		&barcode,
		&category,
		&phonetic,
		&embedding,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Brand = brand.String
	product.Barcode = barcode.String
	product.Category = category.String
	product.NamePhonetic = phonetic.String

	vector, err := decodeVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode product embedding: %w", err)
	}
	product.Embedding = vector

	return &product, nil
}

func scanProducts(rows *sql.Rows) ([]model.Product, error) {
	var products []model.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}
