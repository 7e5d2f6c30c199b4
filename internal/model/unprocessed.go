package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ReviewStatus tracks an unprocessed entry through the human review workflow.
type ReviewStatus string

// Review status constants.
const (
	ReviewPending   ReviewStatus = "pending_review"
	ReviewUnder     ReviewStatus = "under_review"
	ReviewApproved  ReviewStatus = "approved_for_creation"
	ReviewRejected  ReviewStatus = "rejected"
	ReviewProcessed ReviewStatus = "processed"
)

// reviewTransitions enumerates every legal status transition. Rejected and
// processed are terminal; nothing transitions automatically.
var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewPending:  {ReviewUnder},
	ReviewUnder:    {ReviewApproved, ReviewRejected},
	ReviewApproved: {ReviewProcessed},
}

// CanTransitionTo reports whether moving from the current status to next
// is a legal reviewer action.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, allowed := range reviewTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions exist from this status.
func (s ReviewStatus) IsTerminal() bool {
	return len(reviewTransitions[s]) == 0
}

// ValidReviewStatus reports whether s is one of the known statuses.
func ValidReviewStatus(s ReviewStatus) bool {
	switch s {
	case ReviewPending, ReviewUnder, ReviewApproved, ReviewRejected, ReviewProcessed:
		return true
	default:
		return false
	}
}

// UnmatchedReason explains why an item failed to link.
type UnmatchedReason string

// Unmatched reason constants.
const (
	ReasonNoIdentifierMatch  UnmatchedReason = "no_identifier_match"
	ReasonNoSimilarityMatch  UnmatchedReason = "no_similarity_match"
	ReasonLowSimilarityScore UnmatchedReason = "low_similarity_score"
	ReasonMultipleMatches    UnmatchedReason = "multiple_matches_found"
	ReasonUserCreatedNewItem UnmatchedReason = "user_created_new_item"
)

// UnprocessedEntry is the durable review record for items that failed to
// link. Entries are deduplicated on (normalized name, brand): repeated
// failures increment the occurrence count instead of creating new rows.
type UnprocessedEntry struct {
	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	ID               string
	NormalizedName   string
	Brand            string
	Category         string
	Merchant         string
	RawText          string
	ItemCode         string
	ReviewerID       string
	Status           ReviewStatus
	Reason           UnmatchedReason
	CreatedProductID int64
	OccurrenceCount  int
	ConfidenceScore  float64
	PriorityScore    float64
}

// Validate ensures the entry has valid data before persistence.
func (e *UnprocessedEntry) Validate() error {
	if e.NormalizedName == "" {
		return fmt.Errorf("unprocessed entry name is required")
	}
	if !ValidReviewStatus(e.Status) {
		return fmt.Errorf("unknown review status %q", e.Status)
	}
	if e.Reason == "" {
		return fmt.Errorf("unmatched reason is required")
	}
	if e.OccurrenceCount < 1 {
		return fmt.Errorf("occurrence count must be at least 1, got %d", e.OccurrenceCount)
	}
	return nil
}

// ComputePriority returns occurrences times confidence, rounded to two
// decimal places. The score has no upper bound: very frequent items keep
// climbing the review queue.
func ComputePriority(occurrences int, confidence float64) float64 {
	priority := decimal.NewFromInt(int64(occurrences)).Mul(decimal.NewFromFloat(confidence))
	return priority.Round(2).InexactFloat64()
}
