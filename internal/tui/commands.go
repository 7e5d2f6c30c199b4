package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// loadEntries fetches the review queue ordered by priority.
func (m Model) loadEntries() tea.Cmd {
	return func() tea.Msg {
		entries, err := m.queue.List(m.ctx, service.UnprocessedFilter{
			ByPriority: true,
			Limit:      m.limit,
		})
		if err != nil {
			return entriesLoadedMsg{err: err}
		}
		return entriesLoadedMsg{entries: entries}
	}
}

// beginReview claims a pending entry for the current reviewer.
func (m Model) beginReview(entryID string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.queue.BeginReview(m.ctx, entryID, m.reviewerID)
		if err != nil {
			return errorMsg{err: err}
		}
		return entryUpdatedMsg{entry: entry, verb: "moved under review"}
	}
}

// approveEntry approves an entry under review for product creation.
func (m Model) approveEntry(entryID string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.queue.Approve(m.ctx, entryID, m.reviewerID)
		if err != nil {
			return errorMsg{err: err}
		}
		return entryUpdatedMsg{entry: entry, verb: "approved for creation"}
	}
}

// rejectEntry rejects an entry under review.
func (m Model) rejectEntry(entryID string) tea.Cmd {
	return func() tea.Msg {
		entry, err := m.queue.Reject(m.ctx, entryID, m.reviewerID)
		if err != nil {
			return errorMsg{err: err}
		}
		return entryUpdatedMsg{entry: entry, verb: "rejected"}
	}
}

// createProduct creates a catalog product from an approved entry. The
// name is the only override; brand, barcode, and category come from the
// entry itself.
func (m Model) createProduct(entryID, name string) tea.Cmd {
	return func() tea.Msg {
		product, err := m.queue.CreateProduct(m.ctx, entryID, model.Product{Name: name})
		if err != nil {
			return errorMsg{err: err}
		}
		return productCreatedMsg{product: product, entryID: entryID}
	}
}
