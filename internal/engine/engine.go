// Package engine orchestrates matching receipt line items to catalog
// products: candidate generation, ranking, automatic linking, human
// selection for ambiguous items, and deferral to the review queue.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/match"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/review"
	"github.com/openreceipts/shelfmatch/internal/selection"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// editBoost is the confidence reward for a human-edited item: a human
// correction increases trust in the downstream match.
const editBoost = 0.1

// Config holds engine tuning options.
type Config struct {
	Selection selection.Config
	// ChunkSize bounds how many items match concurrently. Chunking is
	// backpressure on the embedding collaborator and the catalog store,
	// not a correctness requirement.
	ChunkSize int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 10,
		Selection: selection.DefaultConfig(),
	}
}

// ItemStatus describes the outcome of one item's matching attempt.
type ItemStatus string

// Item statuses.
const (
	StatusAutoLinked ItemStatus = "auto_linked"
	StatusUserLinked ItemStatus = "user_linked"
	StatusQueued     ItemStatus = "queued"
	StatusSkipped    ItemStatus = "skipped"
	StatusFailed     ItemStatus = "failed"
)

// ItemResult is the per-item outcome of a matching attempt.
type ItemResult struct {
	Err        error
	ItemID     string
	Status     ItemStatus
	Method     model.MatchMethod
	Reason     model.UnmatchedReason
	ProductID  int64
	Confidence float64
}

// Matcher runs the full matching flow for line items.
type Matcher struct {
	store     service.Storage
	source    CandidateSource
	evaluator Evaluator
	resolver  *selection.Resolver
	queue     *review.Manager
	prompter  Prompter
	logger    *slog.Logger
	cfg       Config
}

// New creates a matching engine. The prompter may be nil: ambiguous items
// are then deferred to the review queue instead of prompting.
func New(store service.Storage, source CandidateSource, evaluator Evaluator, resolver *selection.Resolver, queue *review.Manager, prompter Prompter, cfg Config, logger *slog.Logger) *Matcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		store:     store,
		source:    source,
		evaluator: evaluator,
		resolver:  resolver,
		queue:     queue,
		prompter:  prompter,
		logger:    logger,
		cfg:       cfg,
	}
}

// MatchItem runs one item through the full flow. Matching is side-effect
// free until the final linkage or queue write. Ambiguous items are
// returned as pending when a prompter exists; callers resolve them via
// ResolvePending.
func (m *Matcher) MatchItem(ctx context.Context, item model.LineItem) ItemResult {
	result, pending := m.matchOnce(ctx, item)
	if pending == nil {
		return result
	}
	return m.ResolvePending(ctx, *pending)
}

// matchOnce computes the automatic decision for one item. It returns a
// pending selection instead of a result when a human pick is both needed
// and possible.
func (m *Matcher) matchOnce(ctx context.Context, item model.LineItem) (ItemResult, *model.PendingSelection) {
	if !item.IsMatchable() {
		m.logger.Debug("skipping non-product line", "item_id", item.ID, "raw_text", item.RawText)
		return ItemResult{ItemID: item.ID, Status: StatusSkipped}, nil
	}

	// Idempotency: an item linked by an earlier run or a concurrent
	// worker is never matched again.
	if _, err := m.store.GetLinkageByItem(ctx, item.ID); err == nil {
		m.logger.Debug("item already linked", "item_id", item.ID)
		return ItemResult{ItemID: item.ID, Status: StatusSkipped}, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: err}, nil
	}

	item.Confidence = m.effectiveConfidence(item)

	candidates, err := m.source.Generate(ctx, item)
	if err != nil {
		// Candidate generation only fails when the catalog store itself
		// is unreachable; nothing can be matched then.
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: fmt.Errorf("candidate generation failed: %w", err)}, nil
	}

	outcome := m.evaluator.Evaluate(item, candidates)
	if outcome.Accepted {
		return m.autoLink(ctx, item, outcome), nil
	}

	proposal, err := m.resolver.Propose(ctx, item, m.cfg.Selection)
	if err != nil {
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: err}, nil
	}

	if proposal.RequiresSelection {
		if m.prompter != nil {
			return ItemResult{}, &model.PendingSelection{Item: item, Proposal: *proposal}
		}
		// Viable candidates exist but nobody is here to pick one.
		return m.recordFailure(ctx, item, model.ReasonMultipleMatches), nil
	}

	return m.recordFailure(ctx, item, outcome.Reason), nil
}

// ResolvePending prompts for one ambiguous item and applies the decision.
func (m *Matcher) ResolvePending(ctx context.Context, pending model.PendingSelection) ItemResult {
	item := pending.Item

	if m.prompter == nil {
		return m.recordFailure(ctx, item, model.ReasonMultipleMatches)
	}

	decision, err := m.prompter.ResolveSelection(ctx, pending)
	if err != nil {
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: fmt.Errorf("selection prompt failed: %w", err)}
	}

	switch decision.Action {
	case DecisionPick:
		linkage, commitErr := m.resolver.Commit(ctx, item.ID, decision.ProductID, 1.0)
		if commitErr != nil {
			if errors.Is(commitErr, common.ErrAlreadyLinked) {
				return ItemResult{ItemID: item.ID, Status: StatusSkipped}
			}
			return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: commitErr}
		}
		return ItemResult{
			ItemID:     item.ID,
			Status:     StatusUserLinked,
			ProductID:  linkage.ProductID,
			Method:     linkage.Method,
			Confidence: linkage.Confidence,
		}
	case DecisionCreateNew:
		return m.recordFailure(ctx, item, model.ReasonUserCreatedNewItem)
	default:
		return m.recordFailure(ctx, item, model.ReasonMultipleMatches)
	}
}

// autoLink commits an accepted match. Losing the first-committer race is
// not an error; the earlier linkage simply stands.
func (m *Matcher) autoLink(ctx context.Context, item model.LineItem, outcome match.Outcome) ItemResult {
	top := outcome.Best

	linkage := &model.Linkage{
		ItemID:     item.ID,
		ProductID:  top.ProductID,
		Method:     top.Method.Base(),
		Confidence: linkConfidence(top),
	}
	if err := m.store.SaveLinkage(ctx, linkage); err != nil {
		if errors.Is(err, common.ErrAlreadyLinked) {
			m.logger.Debug("lost linkage race", "item_id", item.ID)
			return ItemResult{ItemID: item.ID, Status: StatusSkipped}
		}
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: err}
	}

	m.logger.Info("auto-linked item",
		"item_id", item.ID,
		"item", item.DisplayName(),
		"product_id", top.ProductID,
		"product", top.Name,
		"method", linkage.Method,
		"confidence", linkage.Confidence)
	return ItemResult{
		ItemID:     item.ID,
		Status:     StatusAutoLinked,
		ProductID:  top.ProductID,
		Method:     linkage.Method,
		Confidence: linkage.Confidence,
	}
}

func (m *Matcher) recordFailure(ctx context.Context, item model.LineItem, reason model.UnmatchedReason) ItemResult {
	if _, err := m.queue.RecordFailure(ctx, item, reason); err != nil {
		return ItemResult{ItemID: item.ID, Status: StatusFailed, Err: err}
	}
	return ItemResult{ItemID: item.ID, Status: StatusQueued, Reason: reason}
}

// effectiveConfidence validates the item's confidence and applies the
// human-edit boost before any ranking decision.
func (m *Matcher) effectiveConfidence(item model.LineItem) float64 {
	confidence, healed := model.NormalizeConfidence(item.Confidence)
	if healed {
		common.LogSelfHeal("confidence", item.Confidence, confidence, item.ID)
	}
	if item.UserEdited {
		confidence = model.BoostConfidence(confidence, editBoost)
	}
	return confidence
}

// linkConfidence picks the confidence persisted on an automatic linkage.
// An identifier hit is trusted at its full raw score; everything else
// carries its brand-adjusted score.
func linkConfidence(top *model.Candidate) float64 {
	if top.Method.Base() == model.MethodExactIdentifier {
		return top.RawScore
	}
	return top.AdjustedScore
}

// MatchBatch matches items in two phases: automatic decisions run
// concurrently in chunks, then ambiguous items are resolved one at a time
// (prompting is interactive). One item's failure never aborts the batch;
// failures are collected into the returned error list.
func (m *Matcher) MatchBatch(ctx context.Context, items []model.LineItem) (service.CompletionStats, []service.BulkError) {
	start := time.Now()
	stats := service.CompletionStats{TotalItems: len(items)}
	var bulkErrors []service.BulkError

	m.logger.Info("starting match batch", "items", len(items), "chunk_size", m.cfg.ChunkSize)

	var pending []model.PendingSelection
	for offset := 0; offset < len(items); offset += m.cfg.ChunkSize {
		if err := ctx.Err(); err != nil {
			bulkErrors = append(bulkErrors, service.BulkError{Err: err.Error()})
			break
		}

		end := offset + m.cfg.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		chunkResults, chunkPending := m.matchChunk(ctx, items[offset:end])

		for _, result := range chunkResults {
			tally(&stats, result, &bulkErrors)
		}
		pending = append(pending, chunkPending...)
	}

	if len(pending) > 0 {
		if reporter, ok := m.prompter.(SessionReporter); ok {
			reporter.BeginSession(len(pending))
		}
	}

	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			bulkErrors = append(bulkErrors, service.BulkError{Err: err.Error()})
			break
		}
		tally(&stats, m.ResolvePending(ctx, p), &bulkErrors)
	}

	stats.Duration = time.Since(start)
	m.logger.Info("match batch finished",
		"total", stats.TotalItems,
		"auto_linked", stats.AutoLinked,
		"user_linked", stats.UserLinked,
		"queued", stats.Queued,
		"skipped", stats.Skipped,
		"failed", stats.FailedItems,
		"duration", stats.Duration)
	return stats, bulkErrors
}

// matchChunk runs the automatic phase for one chunk concurrently.
func (m *Matcher) matchChunk(ctx context.Context, chunk []model.LineItem) ([]ItemResult, []model.PendingSelection) {
	results := make([]ItemResult, len(chunk))
	pendings := make([]*model.PendingSelection, len(chunk))

	var wg sync.WaitGroup
	for i := range chunk {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], pendings[idx] = m.matchOnce(ctx, chunk[idx])
		}(i)
	}
	wg.Wait()

	kept := results[:0]
	var pending []model.PendingSelection
	for i := range chunk {
		if pendings[i] != nil {
			pending = append(pending, *pendings[i])
			continue
		}
		kept = append(kept, results[i])
	}
	return kept, pending
}

func tally(stats *service.CompletionStats, result ItemResult, bulkErrors *[]service.BulkError) {
	switch result.Status {
	case StatusAutoLinked:
		stats.AutoLinked++
	case StatusUserLinked:
		stats.UserLinked++
	case StatusQueued:
		stats.Queued++
	case StatusSkipped:
		stats.Skipped++
	case StatusFailed:
		stats.FailedItems++
		errText := "unknown failure"
		if result.Err != nil {
			errText = result.Err.Error()
		}
		*bulkErrors = append(*bulkErrors, service.BulkError{ItemID: result.ItemID, Err: errText})
	}
}

// Rematch sweeps unlinked matchable items for one merchant (or all when
// merchant is empty) through the batch flow.
func (m *Matcher) Rematch(ctx context.Context, merchant string, limit int) (service.CompletionStats, []service.BulkError, error) {
	items, err := m.store.GetItemsToMatch(ctx, merchant, limit)
	if err != nil {
		return service.CompletionStats{}, nil, fmt.Errorf("failed to load items to match: %w", err)
	}
	if len(items) == 0 {
		m.logger.Info("no unlinked items to match", "merchant", merchant)
		return service.CompletionStats{}, nil, nil
	}

	stats, bulkErrors := m.MatchBatch(ctx, items)
	return stats, bulkErrors, nil
}
