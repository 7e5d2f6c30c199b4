package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/model"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog",
		Long:  `Add, import, list, and embed the catalog products that line items match against.`,
	}

	cmd.AddCommand(catalogAddCmd())
	cmd.AddCommand(catalogImportCmd())
	cmd.AddCommand(catalogListCmd())
	cmd.AddCommand(catalogEmbedCmd())

	return cmd
}

func catalogAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add one product to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brandName, _ := cmd.Flags().GetString("brand")
			barcode, _ := cmd.Flags().GetString("barcode")
			category, _ := cmd.Flags().GetString("category")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			product := model.Product{
				Name:     args[0],
				Brand:    brandName,
				Barcode:  barcode,
				Category: category,
			}
			id, err := store.CreateProduct(ctx, &product)
			if err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added product #%d %q", id, product.Name)))
			return nil
		},
	}

	cmd.Flags().String("brand", "", "Product brand")
	cmd.Flags().String("barcode", "", "Product barcode (GTIN/UPC)")
	cmd.Flags().String("category", "", "Product category")

	return cmd
}

func catalogImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import products from a CSV file",
		Long: `Import catalog products from a CSV export.

The file needs a header row naming at least a "name" column; "brand",
"barcode", and "category" columns are picked up when present. Rows
import independently: a bad row is reported and skipped, never aborting
the rest of the file.`,
		Args: cobra.ExactArgs(1),
		RunE: runCatalogImport,
	}

	cmd.Flags().Bool("dry-run", false, "Parse and validate without writing")

	return cmd
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	f, err := os.Open(args[0]) // #nosec G304 -- path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() { _ = f.Close() }()

	products, parseErrors, err := parseCatalogCSV(f)
	if err != nil {
		return err
	}
	if len(products) == 0 && len(parseErrors) == 0 {
		slog.Info("No products in file, nothing to import")
		return nil
	}

	if dryRun {
		content := fmt.Sprintf(`Rows parsed:  %d
Rows invalid: %d

Dry run: nothing written.`, len(products), len(parseErrors))
		fmt.Println(cli.RenderBox("Catalog Import (dry run)", content))
		showRowErrors(parseErrors)
		return nil
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := newProgressBar(len(products), "Importing products...")
	imported := 0
	rowErrors := parseErrors
	for i := range products {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := store.CreateProduct(ctx, &products[i]); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("%q: %v", products[i].Name, err))
		} else {
			imported++
		}
		_ = bar.Add(1)
	}

	content := fmt.Sprintf(`Rows imported: %d
Rows failed:   %d`, imported, len(rowErrors))
	fmt.Println(cli.RenderBox("Catalog Import Summary", content))
	showRowErrors(rowErrors)

	return nil
}

// parseCatalogCSV reads the header-mapped product rows. Rows missing a
// name are collected as errors rather than failing the parse.
func parseCatalogCSV(r io.Reader) ([]model.Product, []string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := columns["name"]; !ok {
		return nil, nil, fmt.Errorf("CSV header has no \"name\" column: %v", header)
	}

	field := func(record []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var products []model.Product
	var rowErrors []string
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		product := model.Product{
			Name:     field(record, "name"),
			Brand:    field(record, "brand"),
			Barcode:  field(record, "barcode"),
			Category: field(record, "category"),
		}
		if err := product.Validate(); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		products = append(products, product)
	}

	return products, rowErrors, nil
}

func catalogListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog products",
		RunE: func(cmd *cobra.Command, _ []string) error {
			search, _ := cmd.Flags().GetString("search")
			brandName, _ := cmd.Flags().GetString("brand")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var products []model.Product
			switch {
			case search != "":
				products, err = store.SearchProductsByName(ctx, search, limit)
			case brandName != "":
				products, err = store.GetProductsByBrand(ctx, brandName, limit)
			default:
				products, err = store.ListProducts(ctx, limit, offset)
			}
			if err != nil {
				return fmt.Errorf("failed to list products: %w", err)
			}

			if len(products) == 0 {
				fmt.Println(cli.FormatInfo("No products found. Use 'shelfmatch catalog add' or 'shelfmatch catalog import' to build the catalog."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Brand"),
				headerStyle.Render("Barcode"),
				headerStyle.Render("Category"),
				headerStyle.Render("Embedded"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 6),
				strings.Repeat("-", 30),
				strings.Repeat("-", 14),
				strings.Repeat("-", 14),
				strings.Repeat("-", 12),
				strings.Repeat("-", 8))

			for _, p := range products {
				embedded := ""
				if len(p.Embedding) > 0 {
					embedded = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					p.ID, p.Name, p.Brand, p.Barcode, p.Category, embedded)
			}

			count, err := store.CountProducts(ctx)
			if err == nil {
				fmt.Fprintf(w, "\n%d of %d products shown\n", len(products), count)
			}

			return nil
		},
	}

	cmd.Flags().String("search", "", "Filter by name tokens")
	cmd.Flags().String("brand", "", "Filter by brand substring")
	cmd.Flags().IntP("limit", "n", 50, "Maximum products to show (0 = all)")
	cmd.Flags().Int("offset", 0, "Skip this many products")

	return cmd
}

func catalogEmbedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Backfill embeddings for catalog products",
		Long: `Compute and store embedding vectors for products that do not have
one yet. Requires a configured embedding provider.

Receipt names usually carry the brand, so the embedded text is the
brand plus the product name.`,
		RunE: runCatalogEmbed,
	}

	cmd.Flags().IntP("limit", "n", 0, "Maximum products to embed (0 = all)")

	return cmd
}

func runCatalogEmbed(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	embedder, err := newEmbedder()
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}
	if embedder == nil {
		return fmt.Errorf("no embedding provider configured; set embedding.provider in the config")
	}
	defer embedder.Close()

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	products, err := store.GetProductsWithoutEmbedding(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load products without embedding: %w", err)
	}
	if len(products) == 0 {
		slog.Info("Every product already has an embedding")
		return nil
	}

	bar := newProgressBar(len(products), "Embedding products...")
	embedded := 0
	var rowErrors []string
	for _, product := range products {
		if err := ctx.Err(); err != nil {
			return err
		}

		vector, err := embedder.Embed(ctx, productEmbedText(product))
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("%q: %v", product.Name, err))
			_ = bar.Add(1)
			continue
		}
		if err := store.UpdateProductEmbedding(ctx, product.ID, vector); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("%q: %v", product.Name, err))
			_ = bar.Add(1)
			continue
		}
		embedded++
		_ = bar.Add(1)
	}

	content := fmt.Sprintf(`Products embedded: %d
Failed:            %d`, embedded, len(rowErrors))
	fmt.Println(cli.RenderBox("Embedding Backfill Summary", content))
	showRowErrors(rowErrors)

	return nil
}

// productEmbedText is the canonical text embedded for a product, matching
// the item side where receipt names usually carry the brand.
func productEmbedText(p model.Product) string {
	if p.Brand != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(p.Brand)) {
		return p.Brand + " " + p.Name
	}
	return p.Name
}

// showRowErrors prints per-row failures without drowning the summary.
func showRowErrors(rowErrors []string) {
	const maxShown = 5
	for i, msg := range rowErrors {
		if i == maxShown {
			slog.Warn("additional row failures omitted", "omitted", len(rowErrors)-maxShown)
			break
		}
		slog.Error("row failed", "error", msg)
	}
}
