package report

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
	"github.com/openreceipts/shelfmatch/internal/testutil"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid oauth config",
			config: Config{
				ClientID:      "test-client",
				ClientSecret:  "test-secret",
				RefreshToken:  "test-token",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
			wantErr: false,
		},
		{
			name: "valid service account config",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
			wantErr: false,
		},
		{
			name: "missing auth",
			config: Config{
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "multiple auth methods",
			config: Config{
				ClientID:           "test-client",
				ClientSecret:       "test-secret",
				RefreshToken:       "test-token",
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
			wantErr: true,
			errMsg:  "multiple authentication methods configured",
		},
		{
			name: "partial oauth falls back to no auth",
			config: Config{
				ClientID:      "test-client",
				BatchSize:     100,
				RetryAttempts: 3,
				RetryDelay:    time.Second,
			},
			wantErr: true,
			errMsg:  "no authentication method configured",
		},
		{
			name: "invalid batch size",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          0,
				RetryAttempts:      3,
				RetryDelay:         time.Second,
			},
			wantErr: true,
			errMsg:  "batch size must be positive",
		},
		{
			name: "negative retry attempts",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      -1,
				RetryDelay:         time.Second,
			},
			wantErr: true,
			errMsg:  "retry attempts cannot be negative",
		},
		{
			name: "negative retry delay",
			config: Config{
				ServiceAccountPath: "/path/to/key.json",
				BatchSize:          100,
				RetryAttempts:      3,
				RetryDelay:         -time.Second,
			},
			wantErr: true,
			errMsg:  "retry delay cannot be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.EnableFormatting)
	assert.Equal(t, "Product Matching Report", config.SpreadsheetName)
	assert.Equal(t, "America/New_York", config.TimeZone)
	assert.Equal(t, 1000, config.BatchSize)
	assert.Equal(t, 3, config.RetryAttempts)
	assert.Equal(t, time.Second, config.RetryDelay)
}

func testWriter() *Writer {
	return &Writer{
		config: DefaultConfig(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

// findRow locates the first row whose leading cell equals label, or -1.
func findRow(values [][]any, label string) int {
	for i, row := range values {
		if len(row) > 0 && row[0] == label {
			return i
		}
	}
	return -1
}

func TestWriter_prepareSummaryValues(t *testing.T) {
	writer := testWriter()

	data := &Data{
		GeneratedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Stats: service.MatchStats{
			LinkagesByMethod: map[model.MatchMethod]int64{
				model.MethodExactIdentifier: 3,
				model.MethodNameSimilarity:  1,
			},
			QueueByStatus: map[model.ReviewStatus]int64{
				model.ReviewPending: 2,
			},
			TotalItems:    8,
			TotalProducts: 20,
			TotalLinked:   4,
		},
		Linkages: []LinkageRow{
			{
				LinkedAt:    time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
				Price:       decimal.NewFromFloat(4.99),
				ItemName:    "organic fuji apples",
				Merchant:    "Test Market",
				ProductName: "Organic Fuji Apples",
				Brand:       "Fresh Farms",
				Method:      model.MethodExactIdentifier,
				Confidence:  0.98,
			},
		},
	}

	values := writer.prepareSummaryValues(data)

	assert.Equal(t, "Product Matching Report", values[0][0])
	assert.Contains(t, values[0][1], "Mar 1, 2024")

	summaryStart := findRow(values, "Summary")
	require.NotEqual(t, -1, summaryStart, "should have summary section")
	assert.Equal(t, []any{"Catalog products", int64(20)}, values[summaryStart+1])
	assert.Equal(t, []any{"Line items", int64(8)}, values[summaryStart+2])
	assert.Equal(t, []any{"Linked items", int64(4)}, values[summaryStart+3])
	assert.Equal(t, []any{"Link rate", "50.0%"}, values[summaryStart+4])
	assert.Equal(t, []any{"Awaiting review", int64(2)}, values[summaryStart+5])

	// Method breakdown sorts by count descending
	methodStart := findRow(values, "Linkages by Method")
	require.NotEqual(t, -1, methodStart, "should have method breakdown")
	assert.Equal(t, []any{"exact_identifier", int64(3)}, values[methodStart+2])
	assert.Equal(t, []any{"name_similarity", int64(1)}, values[methodStart+3])

	detailStart := findRow(values, "Linkage Details")
	require.NotEqual(t, -1, detailStart, "should have linkage details")
	detailRow := values[detailStart+2]
	assert.Equal(t, "2024-02-28", detailRow[0])
	assert.Equal(t, "organic fuji apples", detailRow[1])
	assert.Equal(t, "Test Market", detailRow[2])
	assert.Equal(t, 4.99, detailRow[3])
	assert.Equal(t, "Organic Fuji Apples", detailRow[4])
	assert.Equal(t, "Fresh Farms", detailRow[5])
	assert.Equal(t, "exact_identifier", detailRow[6])
	assert.Equal(t, "0.98", detailRow[7])
}

func TestWriter_prepareSummaryValues_EmptyStore(t *testing.T) {
	writer := testWriter()

	values := writer.prepareSummaryValues(&Data{GeneratedAt: time.Now()})

	summaryStart := findRow(values, "Summary")
	require.NotEqual(t, -1, summaryStart)
	assert.Equal(t, []any{"Link rate", "n/a"}, values[summaryStart+4])
}

func TestWriter_prepareQueueValues(t *testing.T) {
	writer := testWriter()

	data := &Data{
		GeneratedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Unmatched: []model.UnprocessedEntry{
			{
				FirstSeenAt:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				LastSeenAt:      time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC),
				NormalizedName:  "mystery snack",
				Brand:           "Snackco",
				Merchant:        "Test Market",
				Status:          model.ReviewPending,
				Reason:          model.ReasonLowSimilarityScore,
				OccurrenceCount: 3,
				ConfidenceScore: 0.9,
				PriorityScore:   2.7,
			},
		},
	}

	values := writer.prepareQueueValues(data)
	require.Len(t, values, queueHeaderRows+1)

	assert.Equal(t, "Review Queue", values[0][0])
	assert.Equal(t, "Name", values[queueHeaderRows-1][0])
	assert.Equal(t, []any{
		"mystery snack",
		"Snackco",
		"Test Market",
		"pending_review",
		"low_similarity_score",
		3,
		"0.90",
		"2.70",
		"2024-02-01",
		"2024-02-20",
	}, values[queueHeaderRows])
}

func TestSortedMethods(t *testing.T) {
	counts := map[model.MatchMethod]int64{
		model.MethodNameSimilarity:   2,
		model.MethodExactIdentifier:  5,
		model.MethodVectorSimilarity: 2,
	}

	methods := sortedMethods(counts)

	assert.Equal(t, []model.MatchMethod{
		model.MethodExactIdentifier,
		model.MethodNameSimilarity,
		model.MethodVectorSimilarity,
	}, methods, "counts descending, ties broken by name")
}

func TestCollect(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)

	products := store.SeedProducts(testutil.GroceryCatalog()...)

	apples := testutil.Item("item-1", "organic fuji apples")
	apples.Price = decimal.NewFromFloat(4.99)
	store.SeedItems(apples, testutil.Item("item-2", "mystery snack"))

	require.NoError(t, store.SaveLinkage(ctx, &model.Linkage{
		ItemID:     "item-1",
		ProductID:  products[0].ID,
		Method:     model.MethodExactIdentifier,
		Confidence: 0.98,
	}))

	_, err := store.RecordUnprocessed(ctx, &model.UnprocessedEntry{
		NormalizedName:  "mystery snack",
		Merchant:        "Test Market",
		Status:          model.ReviewPending,
		Reason:          model.ReasonNoSimilarityMatch,
		OccurrenceCount: 1,
		ConfidenceScore: 0.9,
	})
	require.NoError(t, err)

	data, err := Collect(ctx, store, CollectOptions{})
	require.NoError(t, err)

	assert.False(t, data.GeneratedAt.IsZero())
	assert.Equal(t, int64(2), data.Stats.TotalItems)
	assert.Equal(t, int64(len(products)), data.Stats.TotalProducts)
	assert.Equal(t, int64(1), data.Stats.TotalLinked)
	assert.Equal(t, int64(1), data.Stats.LinkagesByMethod[model.MethodExactIdentifier])
	assert.Equal(t, int64(1), data.Stats.QueueByStatus[model.ReviewPending])

	require.Len(t, data.Linkages, 1)
	row := data.Linkages[0]
	assert.Equal(t, "organic fuji apples", row.ItemName)
	assert.Equal(t, "Test Market", row.Merchant)
	assert.Equal(t, "Organic Fuji Apples", row.ProductName)
	assert.Equal(t, "Fresh Farms", row.Brand)
	assert.Equal(t, model.MethodExactIdentifier, row.Method)
	assert.True(t, decimal.NewFromFloat(4.99).Equal(row.Price), "Price = %s", row.Price)

	require.Len(t, data.Unmatched, 1)
	assert.Equal(t, "mystery snack", data.Unmatched[0].NormalizedName)
}

func TestCollect_MethodFilter(t *testing.T) {
	ctx := context.Background()
	store := testutil.SetupTestStore(t)

	products := store.SeedProducts(testutil.GroceryCatalog()...)
	store.SeedItems(
		testutil.Item("item-1", "organic fuji apples"),
		testutil.Item("item-2", "whole milk 1 gallon"),
	)

	require.NoError(t, store.SaveLinkage(ctx, &model.Linkage{
		ItemID:     "item-1",
		ProductID:  products[0].ID,
		Method:     model.MethodExactIdentifier,
		Confidence: 0.98,
	}))
	require.NoError(t, store.SaveLinkage(ctx, &model.Linkage{
		ItemID:     "item-2",
		ProductID:  products[3].ID,
		Method:     model.MethodNameSimilarity,
		Confidence: 0.82,
	}))

	data, err := Collect(ctx, store, CollectOptions{Method: model.MethodNameSimilarity})
	require.NoError(t, err)

	require.Len(t, data.Linkages, 1)
	assert.Equal(t, "whole milk 1 gallon", data.Linkages[0].ItemName)
	assert.Equal(t, int64(2), data.Stats.TotalLinked, "stats cover the whole store, not the filter")
}
