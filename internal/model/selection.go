package model

// SelectionProposal is the ranked set of candidates offered for a human
// pick when automatic matching is ambiguous.
type SelectionProposal struct {
	Recommended       *Candidate
	Options           Candidates
	TotalMatches      int
	RequiresSelection bool
}

// SelectionChoice is one item-to-product decision submitted back by the
// client surface. A zero Confidence means the default of 1.0.
type SelectionChoice struct {
	ItemID     string
	ProductID  int64
	Confidence float64
}

// PendingSelection pairs an ambiguous item with its proposal for
// interactive confirmation.
type PendingSelection struct {
	Item     LineItem
	Proposal SelectionProposal
}
