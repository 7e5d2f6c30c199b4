package engine

import (
	"context"
	"sync"

	"github.com/openreceipts/shelfmatch/internal/model"
)

// MockPrompter is a test implementation of the Prompter interface. It
// picks the recommended candidate unless configured otherwise.
type MockPrompter struct {
	err       error
	decisions map[string]Decision
	calls     []model.PendingSelection
	mu        sync.Mutex
	autoPick  bool
}

// NewMockPrompter creates a mock prompter. With autoPick the recommended
// candidate is always chosen; otherwise every item is skipped.
func NewMockPrompter(autoPick bool) *MockPrompter {
	return &MockPrompter{
		autoPick:  autoPick,
		decisions: make(map[string]Decision),
	}
}

// SetDecision pins the decision returned for one item.
func (m *MockPrompter) SetDecision(itemID string, decision Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[itemID] = decision
}

// SetError makes every prompt fail.
func (m *MockPrompter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// ResolveSelection implements Prompter.
func (m *MockPrompter) ResolveSelection(_ context.Context, pending model.PendingSelection) (Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, pending)

	if m.err != nil {
		return Decision{}, m.err
	}
	if decision, ok := m.decisions[pending.Item.ID]; ok {
		return decision, nil
	}
	if m.autoPick && pending.Proposal.Recommended != nil {
		return Decision{Action: DecisionPick, ProductID: pending.Proposal.Recommended.ProductID}, nil
	}
	return Decision{Action: DecisionSkip}, nil
}

// Calls returns the prompts seen so far.
func (m *MockPrompter) Calls() []model.PendingSelection {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]model.PendingSelection, len(m.calls))
	copy(calls, m.calls)
	return calls
}
