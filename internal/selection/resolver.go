// Package selection proposes ranked candidate choices for ambiguous items
// and commits human picks as linkages.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/openreceipts/shelfmatch/internal/brand"
	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// Defaults for selection proposals.
const (
	DefaultMinSimilarity = 0.5
	DefaultMaxOptions    = 5

	// brandMatchBoost rewards candidates whose brand the item confirms.
	brandMatchBoost = 0.1
)

// Config bounds a selection proposal.
type Config struct {
	MinSimilarity float64
	MaxOptions    int
}

// DefaultConfig returns the standard proposal bounds.
func DefaultConfig() Config {
	return Config{
		MinSimilarity: DefaultMinSimilarity,
		MaxOptions:    DefaultMaxOptions,
	}
}

// CandidateSource produces match candidates for an item. The match
// generator satisfies this.
type CandidateSource interface {
	Generate(ctx context.Context, item model.LineItem) (model.Candidates, error)
}

// BrandScorer judges brand compatibility, matching the ranking engine's.
type BrandScorer interface {
	Score(claimed, candidate string) float64
}

// Resolver builds selection proposals and records committed choices.
type Resolver struct {
	store  service.Storage
	source CandidateSource
	scorer BrandScorer
	logger *slog.Logger
}

// NewResolver creates a selection resolver.
func NewResolver(store service.Storage, source CandidateSource, scorer BrandScorer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, source: source, scorer: scorer, logger: logger}
}

// Propose generates the ranked options for a human pick. Candidates whose
// raw similarity falls below MinSimilarity are dropped. When the item
// claims a brand, candidates are partitioned: a conflicting brand excludes
// the candidate entirely, a missing brand keeps it ranked after the
// brand-confirmed ones, and a confirmed brand earns a small boost plus a
// method tag for traceability.
func (r *Resolver) Propose(ctx context.Context, item model.LineItem, cfg Config) (*model.SelectionProposal, error) {
	if cfg.MinSimilarity <= 0 {
		cfg.MinSimilarity = DefaultMinSimilarity
	}
	if cfg.MaxOptions <= 0 {
		cfg.MaxOptions = DefaultMaxOptions
	}

	candidates, err := r.source.Generate(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("failed to generate selection candidates: %w", err)
	}

	qualifying := r.partition(item, candidates, cfg.MinSimilarity)

	proposal := &model.SelectionProposal{
		TotalMatches:      len(qualifying),
		RequiresSelection: len(qualifying) >= 2,
	}
	if len(qualifying) > cfg.MaxOptions {
		qualifying = qualifying[:cfg.MaxOptions]
	}
	proposal.Options = qualifying
	if len(qualifying) > 0 {
		proposal.Recommended = &qualifying[0]
	}
	return proposal, nil
}

// partition scores, filters, and orders the candidates for a proposal.
func (r *Resolver) partition(item model.LineItem, candidates model.Candidates, minSimilarity float64) model.Candidates {
	itemHasBrand := item.Brand != ""

	confirmed := make(model.Candidates, 0, len(candidates))
	neutral := make(model.Candidates, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate.RawScore < minSimilarity {
			continue
		}

		compat := r.scorer.Score(item.Brand, candidate.Brand)
		candidate.BrandCompatibility = compat
		candidate.AdjustedScore = candidate.RawScore * compat

		if !itemHasBrand || candidate.Brand == "" {
			neutral = append(neutral, candidate)
			continue
		}

		// The item claims a brand and the candidate has one: anything
		// short of an exact, substring, or alias-family match is a
		// conflict, and conflicts are excluded rather than down-ranked.
		if compat < brand.ScoreRelated {
			continue
		}
		candidate.AdjustedScore = model.BoostConfidence(candidate.AdjustedScore, brandMatchBoost)
		candidate.Method = candidate.Method.WithBrandMatch()
		confirmed = append(confirmed, candidate)
	}

	byScore := func(c model.Candidates) {
		sort.SliceStable(c, func(i, j int) bool {
			if c[i].AdjustedScore != c[j].AdjustedScore {
				return c[i].AdjustedScore > c[j].AdjustedScore
			}
			return c[i].Name < c[j].Name
		})
	}
	byScore(confirmed)
	byScore(neutral)

	return append(confirmed, neutral...)
}

// Commit records a human's product choice as the item's linkage. It fails
// typed when the item is already linked or the product does not exist; a
// zero confidence means the default of 1.0. Storage enforces
// first-committer-wins, so a concurrent commit cannot double-link.
func (r *Resolver) Commit(ctx context.Context, itemID string, productID int64, confidence float64) (*model.Linkage, error) {
	item, err := r.store.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}

	if existing, linkErr := r.store.GetLinkageByItem(ctx, itemID); linkErr == nil {
		return nil, fmt.Errorf("item %s is linked to product %d: %w",
			itemID, existing.ProductID, common.ErrAlreadyLinked)
	} else if !errors.Is(linkErr, common.ErrNotFound) {
		return nil, linkErr
	}

	if _, err = r.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}

	if confidence == 0 {
		confidence = 1.0
	}
	validated, healed := model.NormalizeConfidence(confidence)
	if healed {
		common.LogSelfHeal("confidence", confidence, validated, itemID)
		confidence = validated
	}

	linkage := &model.Linkage{
		ItemID:     itemID,
		ProductID:  productID,
		Method:     model.MethodUserSelection,
		Confidence: confidence,
	}
	if err := r.store.SaveLinkage(ctx, linkage); err != nil {
		return nil, err
	}

	r.logger.Info("committed selection",
		"item_id", itemID,
		"product_id", productID,
		"item", item.DisplayName(),
		"confidence", confidence)
	return linkage, nil
}

// CommitBulk processes each choice independently: one failure never aborts
// the batch. The summary reports per-item errors alongside the counts.
func (r *Resolver) CommitBulk(ctx context.Context, choices []model.SelectionChoice) (*service.BulkSummary, error) {
	summary := &service.BulkSummary{}

	for _, choice := range choices {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		summary.Processed++
		if _, err := r.Commit(ctx, choice.ItemID, choice.ProductID, choice.Confidence); err != nil {
			summary.Errors = append(summary.Errors, service.BulkError{
				ItemID: choice.ItemID,
				Err:    err.Error(),
			})
			continue
		}
		summary.Linked++
	}

	r.logger.Info("bulk selection finished",
		"processed", summary.Processed,
		"linked", summary.Linked,
		"errors", len(summary.Errors))
	return summary, nil
}
