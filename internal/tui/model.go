// Package tui provides an interactive terminal browser for the
// unmatched review queue. Reviewers walk entries through the review
// state machine (claim, approve, reject) and create catalog products
// from approved entries without leaving the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/review"
)

// State represents the current state of the TUI.
type State int

const (
	StateList State = iota
	StateDetail
	StateCreate
	StateHelp
)

// queueItem adapts an UnprocessedEntry to the bubbles list.
type queueItem struct {
	entry model.UnprocessedEntry
}

// Title returns the entry's display line for the list.
func (i queueItem) Title() string {
	if i.entry.Brand != "" {
		return fmt.Sprintf("%s (%s)", i.entry.NormalizedName, i.entry.Brand)
	}
	return i.entry.NormalizedName
}

// Description returns the entry's status line for the list. Plain text:
// the delegate styles and truncates it, and nested ANSI sequences break
// truncation.
func (i queueItem) Description() string {
	return fmt.Sprintf("%s · seen %d× · priority %.2f · %s",
		statusLabel(i.entry.Status),
		i.entry.OccurrenceCount,
		i.entry.PriorityScore,
		reasonLabel(i.entry.Reason),
	)
}

// FilterValue returns the text matched by the built-in "/" filter.
func (i queueItem) FilterValue() string {
	return strings.TrimSpace(i.entry.NormalizedName + " " + i.entry.Brand)
}

// Model holds the review queue TUI state.
type Model struct {
	ctx        context.Context
	queue      *review.Manager
	selected   *model.UnprocessedEntry
	err        error
	reviewerID string
	statusLine string
	theme      Theme
	keys       KeyMap
	entryList  list.Model
	nameInput  textinput.Model
	limit      int
	width      int
	height     int
	state      State
	ready      bool
	quitting   bool
}

// newModel creates a new model with the given configuration.
func newModel(ctx context.Context, cfg Config) Model {
	theme := GetTheme(cfg.Theme)

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(theme.Primary).
		BorderLeftForeground(theme.Primary)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(theme.Secondary).
		BorderLeftForeground(theme.Primary)

	entryList := list.New(nil, delegate, 0, 0)
	entryList.Title = "Review Queue"
	entryList.Styles.Title = theme.Title.MarginBottom(0).Padding(0, 1)
	entryList.SetShowHelp(false)
	entryList.SetStatusBarItemName("entry", "entries")
	entryList.DisableQuitKeybindings()

	nameInput := textinput.New()
	nameInput.Prompt = "Product name: "
	nameInput.CharLimit = 200

	return Model{
		ctx:        ctx,
		queue:      cfg.Queue,
		reviewerID: cfg.ReviewerID,
		limit:      cfg.Limit,
		theme:      theme,
		keys:       DefaultKeyMap(),
		entryList:  entryList,
		nameInput:  nameInput,
		state:      StateList,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return m.loadEntries()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.entryList.SetSize(msg.Width-2, msg.Height-4)
		m.nameInput.Width = msg.Width - 20
		return m, nil

	case entriesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ready = true
		m.err = nil
		items := make([]list.Item, len(msg.entries))
		for i, entry := range msg.entries {
			items[i] = queueItem{entry: entry}
		}
		cmd := m.entryList.SetItems(items)
		m.refreshSelected(msg.entries)
		return m, cmd

	case entryUpdatedMsg:
		m.selected = msg.entry
		m.statusLine = fmt.Sprintf("%s %s", msg.entry.NormalizedName, msg.verb)
		m.err = nil
		return m, m.loadEntries()

	case productCreatedMsg:
		m.state = StateList
		m.selected = nil
		m.statusLine = fmt.Sprintf("Created product #%d: %s", msg.product.ID, msg.product.Name)
		m.err = nil
		m.nameInput.Blur()
		return m, m.loadEntries()

	case errorMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveComponent(msg)
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return m.renderLoading()
	}

	switch m.state {
	case StateDetail:
		return m.renderDetail()
	case StateCreate:
		return m.renderCreate()
	case StateHelp:
		return m.renderHelp()
	default:
		return m.renderList()
	}
}

// handleKey routes key presses by state.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.state {
	case StateCreate:
		return m.handleCreateKey(msg)
	case StateHelp:
		if key.Matches(msg, m.keys.Back, m.keys.ToggleHelp, m.keys.Quit) {
			m.state = StateList
		}
		return m, nil
	case StateDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

// handleListKey handles keys in the queue list.
func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While the built-in filter is open, every key belongs to it.
	if m.entryList.FilterState() == list.Filtering {
		return m.updateActiveComponent(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleHelp):
		m.state = StateHelp
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.statusLine = ""
		return m, m.loadEntries()

	case key.Matches(msg, m.keys.Open):
		if entry, ok := m.currentEntry(); ok {
			m.selected = entry
			m.state = StateDetail
		}
		return m, nil

	case key.Matches(msg, m.keys.Review):
		if entry, ok := m.currentEntry(); ok {
			return m, m.beginReview(entry.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Approve):
		if entry, ok := m.currentEntry(); ok {
			return m, m.approveEntry(entry.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Reject):
		if entry, ok := m.currentEntry(); ok {
			return m, m.rejectEntry(entry.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Create):
		if entry, ok := m.currentEntry(); ok {
			m.selected = entry
			return m.enterCreate()
		}
		return m, nil
	}

	return m.updateActiveComponent(msg)
}

// handleDetailKey handles keys in the entry detail view.
func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back, m.keys.Quit):
		m.state = StateList
		return m, nil

	case key.Matches(msg, m.keys.ToggleHelp):
		m.state = StateHelp
		return m, nil

	case key.Matches(msg, m.keys.Review):
		if m.selected != nil {
			return m, m.beginReview(m.selected.ID)
		}

	case key.Matches(msg, m.keys.Approve):
		if m.selected != nil {
			return m, m.approveEntry(m.selected.ID)
		}

	case key.Matches(msg, m.keys.Reject):
		if m.selected != nil {
			return m, m.rejectEntry(m.selected.ID)
		}

	case key.Matches(msg, m.keys.Create):
		return m.enterCreate()
	}
	return m, nil
}

// handleCreateKey handles keys in the product creation form.
func (m Model) handleCreateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.state = StateDetail
		m.nameInput.Blur()
		return m, nil

	case tea.KeyEnter:
		if m.selected == nil {
			m.state = StateList
			return m, nil
		}
		name := strings.TrimSpace(m.nameInput.Value())
		if name == "" {
			m.err = fmt.Errorf("product name is required")
			return m, nil
		}
		return m, m.createProduct(m.selected.ID, name)
	}

	var cmd tea.Cmd
	m.nameInput, cmd = m.nameInput.Update(msg)
	return m, cmd
}

// enterCreate opens the product creation form prefilled from the entry.
func (m Model) enterCreate() (tea.Model, tea.Cmd) {
	if m.selected == nil {
		return m, nil
	}
	if m.selected.Status != model.ReviewApproved {
		m.err = fmt.Errorf("entry must be %s before creating a product, currently %s",
			model.ReviewApproved, m.selected.Status)
		return m, nil
	}
	m.state = StateCreate
	m.err = nil
	m.nameInput.SetValue(m.selected.NormalizedName)
	m.nameInput.CursorEnd()
	return m, m.nameInput.Focus()
}

// updateActiveComponent forwards messages to the focused component.
func (m Model) updateActiveComponent(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.state {
	case StateCreate:
		m.nameInput, cmd = m.nameInput.Update(msg)
	case StateList:
		m.entryList, cmd = m.entryList.Update(msg)
	}
	return m, cmd
}

// currentEntry returns the entry under the list cursor.
func (m Model) currentEntry() (*model.UnprocessedEntry, bool) {
	item, ok := m.entryList.SelectedItem().(queueItem)
	if !ok {
		return nil, false
	}
	entry := item.entry
	return &entry, true
}

// refreshSelected re-resolves the detail view's entry after a reload so
// status changes made from the list show up without reopening it.
func (m *Model) refreshSelected(entries []model.UnprocessedEntry) {
	if m.selected == nil {
		return
	}
	for i := range entries {
		if entries[i].ID == m.selected.ID {
			m.selected = &entries[i]
			return
		}
	}
}
