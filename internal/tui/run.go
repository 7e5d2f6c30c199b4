package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/openreceipts/shelfmatch/internal/review"
)

// Config holds the configuration for the review queue TUI.
type Config struct {
	// Queue is the review queue manager. Required.
	Queue *review.Manager
	// ReviewerID is recorded on every state transition. Required.
	ReviewerID string
	// Theme selects the color theme by name. Empty means the default.
	Theme string
	// Limit caps how many entries are loaded. Zero means 200.
	Limit int
}

// Run starts the review queue TUI and blocks until the reviewer quits
// or the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Queue == nil {
		return fmt.Errorf("review queue manager is required")
	}
	if cfg.ReviewerID == "" {
		return fmt.Errorf("reviewer id is required")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 200
	}

	program := tea.NewProgram(
		newModel(ctx, cfg),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("review queue TUI failed: %w", err)
	}
	return nil
}
