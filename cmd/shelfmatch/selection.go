package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/model"
)

func selectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Inspect and resolve ambiguous matches",
		Long: `Work with selection proposals outside the interactive match flow.

Propose shows the ranked candidates for one item, commit links an item to
a chosen product, and bulk applies a file of choices in one pass. These
are the plumbing behind external review surfaces.`,
	}

	cmd.AddCommand(selectionProposeCmd())
	cmd.AddCommand(selectionCommitCmd())
	cmd.AddCommand(selectionBulkCmd())

	return cmd
}

func selectionProposeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "propose <item-id>",
		Short: "Show ranked candidates for an item",
		Args:  cobra.ExactArgs(1),
		RunE:  runSelectionPropose,
	}
}

func runSelectionPropose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	item, err := store.GetItemByID(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to load item: %w", err)
	}

	parts, err := newPipeline(store)
	if err != nil {
		return err
	}

	proposal, err := parts.resolver.Propose(ctx, *item, selectionConfig())
	if err != nil {
		return fmt.Errorf("failed to build proposal: %w", err)
	}

	fmt.Println(cli.FormatTitle(fmt.Sprintf("Candidates for %q", item.DisplayName())))
	if item.Brand != "" {
		fmt.Printf("  Brand: %s\n", item.Brand)
	}
	if item.Merchant != "" {
		fmt.Printf("  Merchant: %s\n", item.Merchant)
	}
	fmt.Println()

	if len(proposal.Options) == 0 {
		fmt.Println(cli.FormatWarning("No compatible candidates found."))
		return nil
	}

	for i, option := range proposal.Options {
		name := option.Name
		if option.Brand != "" {
			name = fmt.Sprintf("%s (%s)", option.Name, option.Brand)
		}
		marker := " "
		if proposal.Recommended != nil && option.ProductID == proposal.Recommended.ProductID {
			marker = "★"
		}
		fmt.Printf("  %s [%d] #%d %s  %s %s\n",
			marker, i+1, option.ProductID, name,
			cli.FormatScore(option.AdjustedScore), option.Method)
	}
	if hidden := proposal.TotalMatches - len(proposal.Options); hidden > 0 {
		fmt.Printf("  ... and %d more below the similarity floor\n", hidden)
	}
	fmt.Println()
	fmt.Println(cli.FormatInfo(fmt.Sprintf("Link with: shelfmatch selection commit %s <product-id>", item.ID)))

	return nil
}

func selectionCommitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit <item-id> <product-id>",
		Short: "Link an item to a chosen product",
		Args:  cobra.ExactArgs(2),
		RunE:  runSelectionCommit,
	}

	cmd.Flags().Float64("confidence", 0, "Confidence to record (default 1.0)")

	return cmd
}

func runSelectionCommit(cmd *cobra.Command, args []string) error {
	confidence, _ := cmd.Flags().GetFloat64("confidence")

	productID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid product id %q: %w", args[1], err)
	}

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	parts, err := newPipeline(store)
	if err != nil {
		return err
	}

	linkage, err := parts.resolver.Commit(ctx, args[0], productID, confidence)
	if err != nil {
		return fmt.Errorf("failed to commit selection: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Linked item %s to product #%d (confidence %.2f)",
		linkage.ItemID, linkage.ProductID, linkage.Confidence)))

	return nil
}

// bulkChoice is the JSON wire form of one selection decision.
type bulkChoice struct {
	ItemID     string  `json:"item_id"`
	ProductID  int64   `json:"product_id"`
	Confidence float64 `json:"confidence,omitempty"`
}

func selectionBulkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bulk <choices.json>",
		Short: "Apply a file of selection choices",
		Long: `Apply many selection decisions in one pass.

The file holds a JSON array of choices:

  [{"item_id": "abc", "product_id": 42, "confidence": 0.9}, ...]

Each choice commits independently; failures are reported per item and
never abort the rest of the file.`,
		Args: cobra.ExactArgs(1),
		RunE: runSelectionBulk,
	}
}

func runSelectionBulk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0]) // #nosec G304 -- path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to read choices file: %w", err)
	}

	var raw []bulkChoice
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse choices file: %w", err)
	}
	if len(raw) == 0 {
		slog.Info("No choices in file, nothing to do")
		return nil
	}

	choices := make([]model.SelectionChoice, len(raw))
	for i, c := range raw {
		choices[i] = model.SelectionChoice{
			ItemID:     c.ItemID,
			ProductID:  c.ProductID,
			Confidence: c.Confidence,
		}
	}

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	parts, err := newPipeline(store)
	if err != nil {
		return err
	}

	summary, err := parts.resolver.CommitBulk(ctx, choices)
	if err != nil {
		return fmt.Errorf("bulk commit failed: %w", err)
	}

	content := fmt.Sprintf(`Choices processed: %d
Linked:            %d
Failed:            %d`,
		summary.Processed, summary.Linked, len(summary.Errors))
	fmt.Println(cli.RenderBox("Bulk Selection Summary", content))
	logBulkErrors(summary.Errors)

	return nil
}
