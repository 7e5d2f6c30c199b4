package tui

import "github.com/openreceipts/shelfmatch/internal/model"

// Data loading messages.
type entriesLoadedMsg struct {
	err     error
	entries []model.UnprocessedEntry
}

// State transition messages.
type entryUpdatedMsg struct {
	entry *model.UnprocessedEntry
	verb  string
}

type productCreatedMsg struct {
	product *model.Product
	entryID string
}

// Error handling.
type errorMsg struct {
	err error
}
