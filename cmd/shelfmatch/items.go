package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/normalize"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// itemsSaveChunk bounds how many items go into one SaveItems call.
const itemsSaveChunk = 500

func itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Manage receipt line items",
		Long:  `Import and inspect the receipt line items the matching engine works on.`,
	}

	cmd.AddCommand(itemsImportCmd())
	cmd.AddCommand(itemsListCmd())

	return cmd
}

// itemLine is the JSON wire form of one imported line item, one object
// per line (the upstream OCR pipeline's export format).
type itemLine struct {
	ID             string   `json:"id,omitempty"`
	RawText        string   `json:"raw_text"`
	NormalizedName string   `json:"normalized_name,omitempty"`
	Merchant       string   `json:"merchant,omitempty"`
	ItemCode       string   `json:"item_code,omitempty"`
	Brand          string   `json:"brand,omitempty"`
	Category       string   `json:"category,omitempty"`
	Price          string   `json:"price,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
}

func itemsImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Import line items from a JSONL export",
		Long: `Import receipt line items, one JSON object per line:

  {"raw_text": "KS ALM BTTR 27oz", "merchant": "Costco", "price": "8.99", "confidence": 0.92}

Missing ids are generated, missing normalized names are derived from the
raw text, and discount/adjustment lines are flagged during import so the
engine skips them. Re-importing the same ids is a no-op. Bad lines are
reported and skipped, never aborting the rest of the file.`,
		Args: cobra.ExactArgs(1),
		RunE: runItemsImport,
	}

	cmd.Flags().String("merchant", "", "Merchant applied to lines that do not carry one")
	cmd.Flags().Bool("dry-run", false, "Parse and validate without writing")

	return cmd
}

func runItemsImport(cmd *cobra.Command, args []string) error {
	defaultMerchant, _ := cmd.Flags().GetString("merchant")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	classifier, err := normalize.NewDefaultLineClassifier()
	if err != nil {
		return fmt.Errorf("failed to build line classifier: %w", err)
	}

	f, err := os.Open(args[0]) // #nosec G304 -- path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to open items file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var items []model.LineItem
	var rowErrors []string
	discounts := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var raw itemLine
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		item, err := buildLineItem(classifier, raw, defaultMerchant)
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if item.IsDiscount || item.IsAdjustment {
			discounts++
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read items file: %w", err)
	}

	if len(items) == 0 && len(rowErrors) == 0 {
		slog.Info("No items in file, nothing to import")
		return nil
	}

	if dryRun {
		content := fmt.Sprintf(`Lines parsed:        %d
Discount/adjustment: %d
Lines invalid:       %d

Dry run: nothing written.`, len(items), discounts, len(rowErrors))
		fmt.Println(cli.RenderBox("Items Import (dry run)", content))
		showRowErrors(rowErrors)
		return nil
	}

	ctx := cmd.Context()
	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bar := newProgressBar(len(items), "Importing line items...")
	imported := 0
	for offset := 0; offset < len(items); offset += itemsSaveChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := offset + itemsSaveChunk
		if end > len(items) {
			end = len(items)
		}
		chunk := items[offset:end]
		if err := store.SaveItems(ctx, chunk); err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("lines %d-%d: %v", offset+1, end, err))
		} else {
			imported += len(chunk)
		}
		_ = bar.Add(len(chunk))
	}

	content := fmt.Sprintf(`Items imported:      %d
Discount/adjustment: %d
Failed:              %d`, imported, discounts, len(rowErrors))
	fmt.Println(cli.RenderBox("Items Import Summary", content))
	showRowErrors(rowErrors)

	if imported > 0 {
		fmt.Println(cli.FormatInfo("Match them with: shelfmatch match"))
	}

	return nil
}

// buildLineItem converts one wire line into a storable item, filling in
// what the export left out.
func buildLineItem(classifier *normalize.LineClassifier, raw itemLine, defaultMerchant string) (model.LineItem, error) {
	if raw.RawText == "" && raw.NormalizedName == "" {
		return model.LineItem{}, fmt.Errorf("line has neither raw_text nor normalized_name")
	}

	item := model.LineItem{
		ID:             raw.ID,
		RawText:        raw.RawText,
		NormalizedName: raw.NormalizedName,
		Merchant:       raw.Merchant,
		ItemCode:       raw.ItemCode,
		Brand:          raw.Brand,
		Category:       raw.Category,
		Confidence:     model.DefaultConfidence,
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.NormalizedName == "" {
		item.NormalizedName = normalize.CleanText(raw.RawText)
	}
	if item.Merchant == "" {
		item.Merchant = defaultMerchant
	}
	if raw.Confidence != nil {
		item.Confidence = *raw.Confidence
	}
	if raw.Price != "" {
		price, err := decimal.NewFromString(raw.Price)
		if err != nil {
			return model.LineItem{}, fmt.Errorf("bad price %q: %w", raw.Price, err)
		}
		item.Price = price
	}

	flags := classifier.Classify(raw.RawText)
	item.IsDiscount = flags.IsDiscount
	item.IsAdjustment = flags.IsAdjustment

	return item, nil
}

func itemsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List line items",
		RunE: func(cmd *cobra.Command, _ []string) error {
			merchant, _ := cmd.Flags().GetString("merchant")
			unlinked, _ := cmd.Flags().GetBool("unlinked")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			items, err := store.GetItems(ctx, service.ItemFilter{
				Merchant:     merchant,
				UnlinkedOnly: unlinked,
				Limit:        limit,
				Offset:       offset,
			})
			if err != nil {
				return fmt.Errorf("failed to list items: %w", err)
			}

			if len(items) == 0 {
				fmt.Println(cli.FormatInfo("No items found. Use 'shelfmatch items import' to load some."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Merchant"),
				headerStyle.Render("Price"),
				headerStyle.Render("Brand"),
				headerStyle.Render("Flags"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 36),
				strings.Repeat("-", 30),
				strings.Repeat("-", 14),
				strings.Repeat("-", 8),
				strings.Repeat("-", 14),
				strings.Repeat("-", 6))

			for _, item := range items {
				price := ""
				if !item.Price.IsZero() {
					price = "$" + item.Price.StringFixed(2)
				}
				var flags []string
				if item.IsDiscount {
					flags = append(flags, "discount")
				}
				if item.IsAdjustment {
					flags = append(flags, "adjustment")
				}
				if item.UserEdited {
					flags = append(flags, "edited")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					item.ID, item.DisplayName(), item.Merchant, price,
					item.Brand, strings.Join(flags, ","))
			}

			return nil
		},
	}

	cmd.Flags().StringP("merchant", "m", "", "Filter by merchant")
	cmd.Flags().Bool("unlinked", false, "Only items without a linkage")
	cmd.Flags().IntP("limit", "n", 50, "Maximum items to show (0 = all)")
	cmd.Flags().Int("offset", 0, "Skip this many items")

	return cmd
}
