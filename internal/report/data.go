package report

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// Data is everything one report run writes: aggregate totals plus the
// resolved linkage rows and the review queue.
type Data struct {
	GeneratedAt time.Time
	Stats       service.MatchStats
	Linkages    []LinkageRow
	Unmatched   []model.UnprocessedEntry
}

// LinkageRow is one linkage joined against its line item and catalog
// product for display.
type LinkageRow struct {
	LinkedAt    time.Time
	Price       decimal.Decimal
	ItemName    string
	Merchant    string
	ProductName string
	Brand       string
	Method      model.MatchMethod
	Confidence  float64
}

// CollectOptions narrows what Collect loads. Zero values mean no filter:
// all linkages, all queue entries.
type CollectOptions struct {
	Since        *time.Time
	Merchant     string
	Method       model.MatchMethod
	LinkageLimit int
	QueueLimit   int
}

// Collect gathers report data from storage: matching totals, linkages with
// their item and product resolved, and the review queue ordered by priority.
func Collect(ctx context.Context, store service.Storage, opts CollectOptions) (*Data, error) {
	data := &Data{GeneratedAt: time.Now()}

	var err error
	if data.Stats, err = collectStats(ctx, store); err != nil {
		return nil, err
	}

	linkages, err := store.GetLinkages(ctx, service.LinkageFilter{
		Since:    opts.Since,
		Method:   opts.Method,
		Merchant: opts.Merchant,
		Limit:    opts.LinkageLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load linkages: %w", err)
	}

	data.Linkages = make([]LinkageRow, 0, len(linkages))
	for i := range linkages {
		row, rowErr := resolveLinkage(ctx, store, &linkages[i])
		if rowErr != nil {
			return nil, rowErr
		}
		data.Linkages = append(data.Linkages, row)
	}

	data.Unmatched, err = store.ListUnprocessed(ctx, service.UnprocessedFilter{
		Merchant:   opts.Merchant,
		Limit:      opts.QueueLimit,
		ByPriority: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load review queue: %w", err)
	}

	return data, nil
}

// collectStats mirrors the engine's stats assembly so a report can run
// without constructing a full matcher.
func collectStats(ctx context.Context, store service.Storage) (service.MatchStats, error) {
	stats := service.MatchStats{}

	items, err := store.GetItems(ctx, service.ItemFilter{})
	if err != nil {
		return stats, fmt.Errorf("failed to count items: %w", err)
	}
	stats.TotalItems = int64(len(items))

	stats.TotalProducts, err = store.CountProducts(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count products: %w", err)
	}

	stats.LinkagesByMethod, err = store.CountLinkagesByMethod(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count linkages: %w", err)
	}
	for _, count := range stats.LinkagesByMethod {
		stats.TotalLinked += count
	}

	stats.QueueByStatus, err = store.CountUnprocessedByStatus(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to count queue entries: %w", err)
	}

	return stats, nil
}

func resolveLinkage(ctx context.Context, store service.Storage, linkage *model.Linkage) (LinkageRow, error) {
	item, err := store.GetItemByID(ctx, linkage.ItemID)
	if err != nil {
		return LinkageRow{}, fmt.Errorf("failed to resolve item %s: %w", linkage.ItemID, err)
	}

	product, err := store.GetProductByID(ctx, linkage.ProductID)
	if err != nil {
		return LinkageRow{}, fmt.Errorf("failed to resolve product %d: %w", linkage.ProductID, err)
	}

	return LinkageRow{
		LinkedAt:    linkage.LinkedAt,
		Price:       item.Price,
		ItemName:    item.DisplayName(),
		Merchant:    item.Merchant,
		ProductName: product.Name,
		Brand:       product.Brand,
		Method:      linkage.Method,
		Confidence:  linkage.Confidence,
	}, nil
}
