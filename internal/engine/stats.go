package engine

import (
	"context"
	"fmt"

	"github.com/openreceipts/shelfmatch/internal/service"
)

// Stats assembles the matching totals for reporting: catalog size, link
// counts by method, and review queue depth by status.
func (m *Matcher) Stats(ctx context.Context) (service.MatchStats, error) {
	stats := service.MatchStats{}

	items, err := m.store.GetItems(ctx, service.ItemFilter{})
	if err != nil {
		return stats, fmt.Errorf("failed to count items: %w", err)
	}
	stats.TotalItems = int64(len(items))

	stats.TotalProducts, err = m.store.CountProducts(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count products: %w", err)
	}

	stats.LinkagesByMethod, err = m.store.CountLinkagesByMethod(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count linkages: %w", err)
	}
	for _, count := range stats.LinkagesByMethod {
		stats.TotalLinked += count
	}

	stats.QueueByStatus, err = m.store.CountUnprocessedByStatus(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return stats, nil
}
