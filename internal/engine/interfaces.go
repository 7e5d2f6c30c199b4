package engine

import (
	"context"

	"github.com/openreceipts/shelfmatch/internal/match"
	"github.com/openreceipts/shelfmatch/internal/model"
)

// CandidateSource produces match candidates for an item. The match
// generator satisfies this.
type CandidateSource interface {
	Generate(ctx context.Context, item model.LineItem) (model.Candidates, error)
}

// Evaluator ranks candidates and decides acceptance. The match ranker
// satisfies this.
type Evaluator interface {
	Evaluate(item model.LineItem, candidates model.Candidates) match.Outcome
}

// DecisionAction is what a human decided for one ambiguous item.
type DecisionAction string

// Decision actions.
const (
	// DecisionPick links the item to the chosen product.
	DecisionPick DecisionAction = "pick"
	// DecisionSkip defers the item to the review queue.
	DecisionSkip DecisionAction = "skip"
	// DecisionCreateNew queues the item for catalog product creation.
	DecisionCreateNew DecisionAction = "create_new"
)

// Decision carries a human's choice for one ambiguous item.
type Decision struct {
	Action    DecisionAction
	ProductID int64
}

// Prompter collects human choices for ambiguous items. Implementations
// are interactive, so the engine only ever calls one prompt at a time.
type Prompter interface {
	ResolveSelection(ctx context.Context, pending model.PendingSelection) (Decision, error)
}

// SessionReporter is an optional Prompter extension. Before the first
// prompt of a batch, MatchBatch announces how many ambiguous items the
// review phase holds so the prompter can show progress.
type SessionReporter interface {
	BeginSession(total int)
}
