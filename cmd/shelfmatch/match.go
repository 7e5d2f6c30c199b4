package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/engine"
	"github.com/openreceipts/shelfmatch/internal/service"
)

func matchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match unlinked line items against the catalog",
		Long: `Run unlinked receipt line items through the matching engine.

Items with a clear best match are linked automatically. Ambiguous items
prompt you to pick from the top candidates; with --batch they are parked
in the review queue instead.`,
		RunE: runMatch,
	}

	// Flags
	cmd.Flags().StringP("merchant", "m", "", "Only match items from this merchant")
	cmd.Flags().IntP("limit", "n", 0, "Maximum items to match (0 = all)")
	cmd.Flags().Bool("batch", false, "Never prompt; queue ambiguous items for review")
	cmd.Flags().Int("chunk-size", 0, "Items matched concurrently per chunk")

	_ = viper.BindPFlag("matching.chunk_size", cmd.Flags().Lookup("chunk-size"))

	return cmd
}

func runMatch(cmd *cobra.Command, _ []string) error {
	merchant, _ := cmd.Flags().GetString("merchant")
	limit, _ := cmd.Flags().GetInt("limit")
	batch, _ := cmd.Flags().GetBool("batch")

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	// Keep the prompter a nil interface in batch mode so ambiguous items
	// go straight to the review queue.
	var prompter engine.Prompter
	var cliPrompter *cli.Prompter
	if !batch {
		cliPrompter = cli.NewCLIPrompter(os.Stdin, os.Stdout)
		prompter = cliPrompter
	}

	matcher, err := newMatcher(store, prompter)
	if err != nil {
		return err
	}

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx = handler.HandleInterrupts(ctx, !batch)

	stats, bulkErrors, err := matcher.Rematch(ctx, merchant, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Matching interrupted; already-linked items are saved")
			return nil
		}
		return fmt.Errorf("matching failed: %w", err)
	}

	if handler.WasInterrupted() {
		slog.Warn("Matching interrupted; progress up to this point is saved",
			"matched", stats.AutoLinked+stats.UserLinked,
			"remaining", stats.TotalItems-stats.AutoLinked-stats.UserLinked-stats.Queued-stats.Skipped)
	}

	if cliPrompter != nil {
		cliPrompter.ShowCompletion(stats)
	} else {
		slog.Info("Matching complete",
			"total", stats.TotalItems,
			"auto_linked", stats.AutoLinked,
			"queued", stats.Queued,
			"failed", stats.FailedItems,
			"duration", stats.Duration)
	}
	logBulkErrors(bulkErrors)

	return nil
}

func rematchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rematch",
		Short: "Re-sweep unlinked items without prompting",
		Long: `Re-run the matching engine over every unlinked item, linking what
now matches and queueing the rest.

Useful after a catalog import or an embedding backfill: items that
previously failed may match against the enriched catalog.`,
		RunE: runRematch,
	}

	// Flags
	cmd.Flags().StringP("merchant", "m", "", "Only rematch items from this merchant")
	cmd.Flags().IntP("limit", "n", 0, "Maximum items to rematch (0 = all)")

	return cmd
}

func runRematch(cmd *cobra.Command, _ []string) error {
	merchant, _ := cmd.Flags().GetString("merchant")
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	matcher, err := newMatcher(store, nil)
	if err != nil {
		return err
	}

	slog.Info("🔁 Starting rematch sweep", "merchant", merchant)

	stats, bulkErrors, err := matcher.Rematch(ctx, merchant, limit)
	if err != nil {
		return fmt.Errorf("rematch failed: %w", err)
	}

	content := fmt.Sprintf(`Items swept:  %d
Auto-linked:  %d
Queued:       %d
Skipped:      %d
Failed:       %d
Duration:     %s`,
		stats.TotalItems, stats.AutoLinked, stats.Queued,
		stats.Skipped, stats.FailedItems, stats.Duration.Round(time.Millisecond))
	fmt.Println(cli.RenderBox("Rematch Summary", content))
	logBulkErrors(bulkErrors)

	return nil
}

// logBulkErrors surfaces per-item failures without drowning the summary.
func logBulkErrors(bulkErrors []service.BulkError) {
	const maxShown = 5
	for i, be := range bulkErrors {
		if i == maxShown {
			slog.Warn("additional item failures omitted", "omitted", len(bulkErrors)-maxShown)
			break
		}
		slog.Error("item failed", "item_id", be.ItemID, "error", be.Err)
	}
}
