package cli

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/openreceipts/shelfmatch/internal/engine"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandidates(count int) model.Candidates {
	candidates := make(model.Candidates, count)
	for i := 0; i < count; i++ {
		candidates[i] = model.Candidate{
			ProductID:     int64(i + 1),
			Name:          fmt.Sprintf("Product %d", i+1),
			Method:        model.MethodNameSimilarity,
			RawScore:      0.90 - float64(i)*0.05,
			AdjustedScore: 0.85 - float64(i)*0.05,
		}
	}
	return candidates
}

func testPendingSelection(itemID string, options model.Candidates) model.PendingSelection {
	proposal := model.SelectionProposal{
		Options:           options,
		TotalMatches:      len(options),
		RequiresSelection: len(options) >= 2,
	}
	if len(options) > 0 {
		proposal.Recommended = &options[0]
	}

	return model.PendingSelection{
		Item: model.LineItem{
			ID:             itemID,
			RawText:        "ORG FUJI APPL 2LB",
			NormalizedName: "ORGANIC FUJI APPLES",
			Merchant:       "Safeway",
			Price:          decimal.RequireFromString("4.99"),
			Confidence:     0.9,
		},
		Proposal: proposal,
	}
}

func TestCLIPrompter_ResolveSelection(t *testing.T) {
	tests := []struct {
		name              string
		input             string
		expectedAction    engine.DecisionAction
		optionCount       int
		expectedProductID int64
		expectError       bool
		contextCanceled   bool
	}{
		{
			name:              "pick first option",
			input:             "1\n",
			optionCount:       3,
			expectedAction:    engine.DecisionPick,
			expectedProductID: 1,
		},
		{
			name:              "pick last option",
			input:             "3\n",
			optionCount:       3,
			expectedAction:    engine.DecisionPick,
			expectedProductID: 3,
		},
		{
			name:           "skip",
			input:          "s\n",
			optionCount:    3,
			expectedAction: engine.DecisionSkip,
		},
		{
			name:           "uppercase skip",
			input:          "S\n",
			optionCount:    3,
			expectedAction: engine.DecisionSkip,
		},
		{
			name:           "queue for catalog creation",
			input:          "n\n",
			optionCount:    3,
			expectedAction: engine.DecisionCreateNew,
		},
		{
			name:              "invalid then out of range then valid",
			input:             "x\n9\n2\n",
			optionCount:       3,
			expectedAction:    engine.DecisionPick,
			expectedProductID: 2,
		},
		{
			name:            "context canceled",
			optionCount:     3,
			contextCanceled: true,
			expectError:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := strings.NewReader(tt.input)
			var output bytes.Buffer
			prompter := NewCLIPrompter(reader, &output)

			ctx := context.Background()
			if tt.contextCanceled {
				var cancel context.CancelFunc
				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			pending := testPendingSelection("item-1", testCandidates(tt.optionCount))
			decision, err := prompter.ResolveSelection(ctx, pending)

			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expectedAction, decision.Action)
			assert.Equal(t, tt.expectedProductID, decision.ProductID)

			outputStr := output.String()
			assert.Contains(t, outputStr, "ORGANIC FUJI APPLES")
			assert.Contains(t, outputStr, "Safeway")
			assert.Contains(t, outputStr, "Product 1")
			assert.Contains(t, outputStr, "$4.99")
		})
	}
}

func TestCLIPrompter_EmptyOptionsSkip(t *testing.T) {
	var output bytes.Buffer
	prompter := NewCLIPrompter(strings.NewReader(""), &output)

	pending := testPendingSelection("item-1", nil)
	decision, err := prompter.ResolveSelection(context.Background(), pending)

	require.NoError(t, err)
	assert.Equal(t, engine.DecisionSkip, decision.Action)
	assert.Empty(t, output.String(), "nothing should be rendered when there is nothing to choose")
}

func TestCLIPrompter_RendersCandidateDetails(t *testing.T) {
	options := model.Candidates{
		{
			ProductID:          1,
			Name:               "Organic Fuji Apples",
			Brand:              "Fresh Farms",
			Method:             model.MethodNameSimilarity.WithBrandMatch(),
			RawScore:           0.92,
			AdjustedScore:      0.88,
			BrandCompatibility: 1.0,
		},
		{
			ProductID:     2,
			Name:          "Organic Gala Apples",
			Method:        model.MethodNameSimilarity,
			RawScore:      0.80,
			AdjustedScore: 0.56,
		},
	}

	reader := strings.NewReader("1\n")
	var output bytes.Buffer
	prompter := NewCLIPrompter(reader, &output)

	decision, err := prompter.ResolveSelection(context.Background(), testPendingSelection("item-1", options))
	require.NoError(t, err)
	assert.Equal(t, engine.DecisionPick, decision.Action)

	outputStr := output.String()
	assert.Contains(t, outputStr, "Organic Fuji Apples (Fresh Farms)")
	assert.Contains(t, outputStr, "88%")
	assert.Contains(t, outputStr, "name match")
	assert.Contains(t, outputStr, "brand ✓")
	assert.Contains(t, outputStr, "recommended")
	assert.Contains(t, outputStr, "Linked to Organic Fuji Apples")
}

func TestCLIPrompter_ShowsHiddenMatchCount(t *testing.T) {
	pending := testPendingSelection("item-1", testCandidates(3))
	pending.Proposal.TotalMatches = 8

	reader := strings.NewReader("s\n")
	var output bytes.Buffer
	prompter := NewCLIPrompter(reader, &output)

	_, err := prompter.ResolveSelection(context.Background(), pending)
	require.NoError(t, err)

	assert.Contains(t, output.String(), "and 5 more not shown")
}

func TestCLIPrompter_BrandPatternDetection(t *testing.T) {
	options := model.Candidates{{
		ProductID:     1,
		Name:          "Almond Butter 27oz",
		Brand:         "Kirkland Signature",
		Method:        model.MethodNameSimilarity,
		RawScore:      0.9,
		AdjustedScore: 0.85,
	}}

	reader := strings.NewReader("1\n1\n1\n1\n")
	var output bytes.Buffer
	prompter := NewCLIPrompter(reader, &output)

	for i := 0; i < 4; i++ {
		pending := testPendingSelection(fmt.Sprintf("item-%d", i), options)
		pending.Item.Merchant = "Costco"

		decision, err := prompter.ResolveSelection(context.Background(), pending)
		require.NoError(t, err)
		assert.Equal(t, engine.DecisionPick, decision.Action)
	}

	assert.Contains(t, output.String(), "Last 3 picks here were Kirkland Signature products")
}

func TestCLIPrompter_ProgressBar(t *testing.T) {
	reader := strings.NewReader("1\n1\n")
	var output bytes.Buffer
	prompter := NewCLIPrompter(reader, &output)
	prompter.BeginSession(2)

	for i := 0; i < 2; i++ {
		pending := testPendingSelection(fmt.Sprintf("item-%d", i), testCandidates(2))
		_, err := prompter.ResolveSelection(context.Background(), pending)
		require.NoError(t, err)
	}

	outputStr := output.String()
	assert.Contains(t, outputStr, "Reviewing ambiguous items")
	assert.Contains(t, outputStr, "(2/2)")
}

func TestCLIPrompter_ShowCompletion(t *testing.T) {
	var output bytes.Buffer
	prompter := NewCLIPrompter(strings.NewReader(""), &output)

	prompter.ShowCompletion(service.CompletionStats{
		TotalItems: 10,
		AutoLinked: 6,
		UserLinked: 2,
		Queued:     1,
		Skipped:    1,
		Duration:   3 * time.Second,
	})

	outputStr := output.String()
	assert.Contains(t, outputStr, "Matching Complete!")
	assert.Contains(t, outputStr, "Total items: 10")
	assert.Contains(t, outputStr, "Auto-linked: 6")
	assert.Contains(t, outputStr, "Link rate: 80.0%")
	assert.Contains(t, outputStr, "Time saved: ~1.5 minutes")
}

func TestCLIPrompter_TimeSavedCalculation(t *testing.T) {
	tests := []struct {
		name           string
		expectedOutput string
		stats          service.CompletionStats
	}{
		{
			name: "seconds",
			stats: service.CompletionStats{
				TotalItems: 5,
				AutoLinked: 3,
			},
			expectedOutput: "45 seconds",
		},
		{
			name: "minutes",
			stats: service.CompletionStats{
				TotalItems: 50,
				AutoLinked: 40,
			},
			expectedOutput: "10.0 minutes",
		},
		{
			name: "hours",
			stats: service.CompletionStats{
				TotalItems: 1000,
				AutoLinked: 900,
			},
			expectedOutput: "3.8 hours",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompter := &Prompter{}
			timeSaved := prompter.calculateTimeSaved(tt.stats)
			assert.Equal(t, tt.expectedOutput, timeSaved)
		})
	}
}

func TestCLIPrompter_InputValidation(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		expectedIndex int
		expectError   bool
	}{
		{
			name:        "EOF during choice",
			input:       "",
			expectError: true,
		},
		{
			name:          "valid after multiple invalid",
			input:         "x\n0\n1\n",
			expectedIndex: 0,
		},
		{
			name:          "unterminated final line still counts",
			input:         "2",
			expectedIndex: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := strings.NewReader(tt.input)
			var output bytes.Buffer
			prompter := NewCLIPrompter(reader, &output)

			index, letter, err := prompter.promptChoice(context.Background(), 3)

			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Empty(t, letter)
			assert.Equal(t, tt.expectedIndex, index)
		})
	}
}
