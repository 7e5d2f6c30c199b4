package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
	"github.com/openreceipts/shelfmatch/internal/tui"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Work the unmatched review queue",
		Long: `Inspect and resolve line items that failed to match.

Entries are deduplicated on (normalized name, brand) and ranked by
priority: occurrence count times source confidence. Approving an entry
marks it for catalog creation; complete creates the product from it.`,
	}

	cmd.PersistentFlags().String("reviewer", "", "Reviewer recorded on state transitions (default: $USER)")

	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueShowCmd())
	cmd.AddCommand(queueReviewCmd())
	cmd.AddCommand(queueApproveCmd())
	cmd.AddCommand(queueRejectCmd())
	cmd.AddCommand(queueCompleteCmd())

	return cmd
}

func queueListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List review queue entries by priority",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			reason, _ := cmd.Flags().GetString("reason")
			merchant, _ := cmd.Flags().GetString("merchant")
			minOccur, _ := cmd.Flags().GetInt("min-occur")
			limit, _ := cmd.Flags().GetInt("limit")

			if status != "" && !model.ValidReviewStatus(model.ReviewStatus(status)) {
				return fmt.Errorf("unknown review status %q", status)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entries, err := newReviewQueue(store).List(ctx, service.UnprocessedFilter{
				Status:     model.ReviewStatus(status),
				Reason:     model.UnmatchedReason(reason),
				Merchant:   merchant,
				MinOccur:   minOccur,
				Limit:      limit,
				ByPriority: true,
			})
			if err != nil {
				return fmt.Errorf("failed to list queue: %w", err)
			}

			if len(entries) == 0 {
				fmt.Println(cli.FormatInfo("Review queue is empty. Run 'shelfmatch match' to populate it."))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				headerStyle.Render("ID"),
				headerStyle.Render("Name"),
				headerStyle.Render("Brand"),
				headerStyle.Render("Status"),
				headerStyle.Render("Reason"),
				headerStyle.Render("Seen"),
				headerStyle.Render("Priority"))
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				strings.Repeat("-", 36),
				strings.Repeat("-", 30),
				strings.Repeat("-", 14),
				strings.Repeat("-", 12),
				strings.Repeat("-", 20),
				strings.Repeat("-", 4),
				strings.Repeat("-", 8))

			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.2f\n",
					entry.ID,
					entry.NormalizedName,
					entry.Brand,
					entry.Status,
					entry.Reason,
					entry.OccurrenceCount,
					entry.PriorityScore)
			}

			return nil
		},
	}

	cmd.Flags().String("status", "", "Filter by status (pending_review, under_review, approved_for_creation, rejected, processed)")
	cmd.Flags().String("reason", "", "Filter by unmatched reason")
	cmd.Flags().StringP("merchant", "m", "", "Filter by merchant")
	cmd.Flags().Int("min-occur", 0, "Only entries seen at least this many times")
	cmd.Flags().IntP("limit", "n", 50, "Maximum entries to show (0 = all)")

	return cmd
}

func queueShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <entry-id>",
		Short: "Show one queue entry in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entry, err := newReviewQueue(store).Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load entry: %w", err)
			}

			fmt.Println(cli.RenderBox("Queue Entry", formatEntry(entry)))
			return nil
		},
	}
}

func queueReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review [entry-id]",
		Short: "Review queue entries",
		Long: `Start reviewing the queue.

With an entry id, claims that entry (pending_review -> under_review) for
follow-up with approve or reject. With no arguments, opens the
interactive review TUI over the whole queue.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer, _ := cmd.Flags().GetString("reviewer")
			theme, _ := cmd.Flags().GetString("theme")
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			queue := newReviewQueue(store)

			if len(args) == 1 {
				entry, err := queue.BeginReview(ctx, args[0], reviewerID(reviewer))
				if err != nil {
					return fmt.Errorf("failed to begin review: %w", err)
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf("Entry %q is now under review by %s", entry.NormalizedName, entry.ReviewerID)))
				fmt.Println(cli.RenderBox("Queue Entry", formatEntry(entry)))
				return nil
			}

			return tui.Run(ctx, tui.Config{
				Queue:      queue,
				ReviewerID: reviewerID(reviewer),
				Theme:      theme,
				Limit:      limit,
			})
		},
	}

	cmd.Flags().String("theme", "", "TUI color theme (default, catppuccin-mocha)")
	cmd.Flags().IntP("limit", "n", 0, "Maximum entries to load in the TUI (0 = 200)")

	return cmd
}

func queueApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <entry-id>",
		Short: "Approve an entry for catalog creation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer, _ := cmd.Flags().GetString("reviewer")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entry, err := newReviewQueue(store).Approve(ctx, args[0], reviewerID(reviewer))
			if err != nil {
				return fmt.Errorf("failed to approve entry: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Approved %q for catalog creation", entry.NormalizedName)))
			fmt.Println(cli.FormatInfo(fmt.Sprintf("Create the product with: shelfmatch queue complete %s", entry.ID)))
			return nil
		},
	}
}

func queueRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <entry-id>",
		Short: "Reject an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reviewer, _ := cmd.Flags().GetString("reviewer")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			entry, err := newReviewQueue(store).Reject(ctx, args[0], reviewerID(reviewer))
			if err != nil {
				return fmt.Errorf("failed to reject entry: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Rejected %q", entry.NormalizedName)))
			return nil
		},
	}
}

func queueCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <entry-id>",
		Short: "Create the catalog product from an approved entry",
		Long: `Create a catalog product from an approved_for_creation entry.

The product takes its name, brand, barcode, and category from the entry;
flags override individual fields. The entry is marked processed and
back-linked to the new product. Run 'shelfmatch rematch' afterwards to
link the items that were waiting on it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			brandName, _ := cmd.Flags().GetString("brand")
			barcode, _ := cmd.Flags().GetString("barcode")
			category, _ := cmd.Flags().GetString("category")

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			product, err := newReviewQueue(store).CreateProduct(ctx, args[0], model.Product{
				Name:     name,
				Brand:    brandName,
				Barcode:  barcode,
				Category: category,
			})
			if err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Created product #%d %q", product.ID, product.Name)))
			return nil
		},
	}

	cmd.Flags().String("name", "", "Override the product name")
	cmd.Flags().String("brand", "", "Override the product brand")
	cmd.Flags().String("barcode", "", "Override the product barcode")
	cmd.Flags().String("category", "", "Override the product category")

	return cmd
}

// formatEntry renders one queue entry for box display.
func formatEntry(entry *model.UnprocessedEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID:          %s\n", entry.ID)
	fmt.Fprintf(&b, "Name:        %s\n", entry.NormalizedName)
	if entry.Brand != "" {
		fmt.Fprintf(&b, "Brand:       %s\n", entry.Brand)
	}
	if entry.Merchant != "" {
		fmt.Fprintf(&b, "Merchant:    %s\n", entry.Merchant)
	}
	if entry.RawText != "" {
		fmt.Fprintf(&b, "Receipt:     %s\n", entry.RawText)
	}
	if entry.ItemCode != "" {
		fmt.Fprintf(&b, "Item code:   %s\n", entry.ItemCode)
	}
	fmt.Fprintf(&b, "Status:      %s\n", entry.Status)
	fmt.Fprintf(&b, "Reason:      %s\n", entry.Reason)
	fmt.Fprintf(&b, "Seen:        %d times (%s to %s)\n",
		entry.OccurrenceCount,
		entry.FirstSeenAt.Format("2006-01-02"),
		entry.LastSeenAt.Format("2006-01-02"))
	fmt.Fprintf(&b, "Priority:    %.2f", entry.PriorityScore)
	if entry.ReviewerID != "" {
		fmt.Fprintf(&b, "\nReviewer:    %s", entry.ReviewerID)
	}
	if entry.CreatedProductID != 0 {
		fmt.Fprintf(&b, "\nProduct:     #%d", entry.CreatedProductID)
	}
	return b.String()
}
