package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openreceipts/shelfmatch/internal/cli"
	"github.com/openreceipts/shelfmatch/internal/model"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show matching statistics",
		Long:  `Summarize the state of the store: catalog size, link rate, linkages by method, and the review queue by status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			matcher, err := newMatcher(store, nil)
			if err != nil {
				return err
			}

			stats, err := matcher.Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to collect stats: %w", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Catalog products:  %d\n", stats.TotalProducts)
			fmt.Fprintf(&b, "Line items:        %d\n", stats.TotalItems)
			fmt.Fprintf(&b, "Linked items:      %d\n", stats.TotalLinked)
			if stats.TotalItems > 0 {
				fmt.Fprintf(&b, "Link rate:         %.1f%%\n", float64(stats.TotalLinked)/float64(stats.TotalItems)*100)
			}

			if len(stats.LinkagesByMethod) > 0 {
				b.WriteString("\nLinkages by method:\n")
				for _, method := range sortMethodsByCount(stats.LinkagesByMethod) {
					fmt.Fprintf(&b, "  %-20s %d\n", method, stats.LinkagesByMethod[method])
				}
			}

			if len(stats.QueueByStatus) > 0 {
				b.WriteString("\nReview queue:\n")
				for _, status := range []model.ReviewStatus{
					model.ReviewPending,
					model.ReviewUnder,
					model.ReviewApproved,
					model.ReviewRejected,
					model.ReviewProcessed,
				} {
					if count := stats.QueueByStatus[status]; count > 0 {
						fmt.Fprintf(&b, "  %-22s %d\n", status, count)
					}
				}
			}

			fmt.Println(cli.RenderBox("Matching Stats", strings.TrimRight(b.String(), "\n")))
			return nil
		},
	}
}

// sortMethodsByCount orders methods by linkage count, busiest first.
func sortMethodsByCount(byMethod map[model.MatchMethod]int64) []model.MatchMethod {
	methods := make([]model.MatchMethod, 0, len(byMethod))
	for method := range byMethod {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool {
		if byMethod[methods[i]] != byMethod[methods[j]] {
			return byMethod[methods[i]] > byMethod[methods[j]]
		}
		return methods[i] < methods[j]
	})
	return methods
}
