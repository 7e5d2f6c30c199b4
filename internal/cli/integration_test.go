//go:build integration
// +build integration

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/openreceipts/shelfmatch/internal/brand"
	"github.com/openreceipts/shelfmatch/internal/engine"
	"github.com/openreceipts/shelfmatch/internal/match"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/review"
	"github.com/openreceipts/shelfmatch/internal/selection"
	"github.com/openreceipts/shelfmatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T, prompter engine.Prompter) (*engine.Matcher, *testutil.TestStore) {
	t.Helper()

	store := testutil.SetupTestStore(t)
	scorer, err := brand.NewDefaultScorer()
	require.NoError(t, err)

	generator := match.NewGenerator(store, nil, match.DefaultGeneratorConfig())
	ranker := match.NewRanker(scorer, match.DefaultRankerConfig())
	resolver := selection.NewResolver(store, generator, scorer, nil)
	queue := review.NewManager(store, nil)

	return engine.New(store, generator, ranker, resolver, queue, prompter, engine.DefaultConfig(), nil), store
}

// TestPrompterWithEngine drives the matcher end to end with decisions
// scripted through the CLI prompter.
func TestPrompterWithEngine(t *testing.T) {
	t.Run("pick links the chosen product", func(t *testing.T) {
		reader := strings.NewReader("1\n")
		var output bytes.Buffer
		prompter := NewCLIPrompter(reader, &output)

		matcher, store := newTestMatcher(t, prompter)
		products := store.SeedProducts(testutil.GroceryCatalog()...)

		item := testutil.Item("item-1", "ORGANIC APPLES")
		store.SeedItems(item)

		result := matcher.MatchItem(context.Background(), item)

		require.NoError(t, result.Err)
		assert.Equal(t, engine.StatusUserLinked, result.Status)
		assert.Equal(t, model.MethodUserSelection, result.Method)

		linkage, err := store.GetLinkageByItem(context.Background(), "item-1")
		require.NoError(t, err)
		assert.InDelta(t, 1.0, linkage.Confidence, 1e-9)

		outputStr := output.String()
		assert.Contains(t, outputStr, "Item Review: ORGANIC APPLES")
		assert.Contains(t, outputStr, "Candidate products:")
		assert.Contains(t, outputStr, "Linked to")

		// The linked product must be one of the offered apples.
		assert.Contains(t, []int64{products[0].ID, products[1].ID}, linkage.ProductID)
	})

	t.Run("skip defers to the review queue", func(t *testing.T) {
		reader := strings.NewReader("s\n")
		var output bytes.Buffer
		prompter := NewCLIPrompter(reader, &output)

		matcher, store := newTestMatcher(t, prompter)
		store.SeedProducts(testutil.GroceryCatalog()...)

		item := testutil.Item("item-1", "ORGANIC APPLES")
		store.SeedItems(item)

		result := matcher.MatchItem(context.Background(), item)

		require.NoError(t, result.Err)
		assert.Equal(t, engine.StatusQueued, result.Status)
		assert.Equal(t, model.ReasonMultipleMatches, result.Reason)

		entry, err := store.GetUnprocessedByKey(context.Background(), "organic apples", "")
		require.NoError(t, err)
		assert.Equal(t, model.ReviewPending, entry.Status)
	})

	t.Run("batch announces the review session", func(t *testing.T) {
		reader := strings.NewReader("1\n")
		var output bytes.Buffer
		prompter := NewCLIPrompter(reader, &output)

		matcher, store := newTestMatcher(t, prompter)
		store.SeedProducts(testutil.GroceryCatalog()...)

		items := []model.LineItem{
			testutil.Item("item-1", "ORGANIC APPLES"),
		}
		store.SeedItems(items...)

		stats, bulkErrors := matcher.MatchBatch(context.Background(), items)

		assert.Empty(t, bulkErrors)
		assert.Equal(t, 1, stats.UserLinked)
		assert.Contains(t, output.String(), "Reviewing ambiguous items")

		prompter.ShowCompletion(stats)
		assert.Contains(t, output.String(), "Matching Complete!")
	})
}
