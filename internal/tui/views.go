package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/openreceipts/shelfmatch/internal/model"
)

// renderLoading renders the loading screen.
func (m Model) renderLoading() string {
	content := lipgloss.JoinVertical(
		lipgloss.Center,
		m.theme.Title.Render("Review Queue"),
		lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Loading unmatched items..."),
	)
	return m.center(content)
}

// renderList renders the queue list with the status footer.
func (m Model) renderList() string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.entryList.View(),
		m.renderFooter(),
	)
}

// renderDetail renders the full record for one entry.
func (m Model) renderDetail() string {
	entry := m.selected
	if entry == nil {
		return m.renderList()
	}

	title := m.theme.Title.Render("Queue Entry")
	status := m.statusStyle(entry.Status).Render(statusLabel(entry.Status))

	rows := []string{
		m.detailRow("Name", entry.NormalizedName),
	}
	if entry.Brand != "" {
		rows = append(rows, m.detailRow("Brand", entry.Brand))
	}
	if entry.Category != "" {
		rows = append(rows, m.detailRow("Category", entry.Category))
	}
	if entry.Merchant != "" {
		rows = append(rows, m.detailRow("Merchant", entry.Merchant))
	}
	if entry.RawText != "" && entry.RawText != entry.NormalizedName {
		rows = append(rows, m.detailRow("Receipt text", entry.RawText))
	}
	if entry.ItemCode != "" {
		rows = append(rows, m.detailRow("Item code", entry.ItemCode))
	}
	rows = append(rows,
		"",
		fmt.Sprintf("%s %s", m.detailLabel("Status"), status),
		m.detailRow("Reason", reasonLabel(entry.Reason)),
		m.detailRow("Occurrences", fmt.Sprintf("%d", entry.OccurrenceCount)),
		m.detailRow("Priority", fmt.Sprintf("%.2f", entry.PriorityScore)),
		m.detailRow("Confidence", fmt.Sprintf("%.2f", entry.ConfidenceScore)),
	)
	if !entry.FirstSeenAt.IsZero() {
		rows = append(rows, m.detailRow("First seen", entry.FirstSeenAt.Format("2006-01-02 15:04")))
	}
	if !entry.LastSeenAt.IsZero() {
		rows = append(rows, m.detailRow("Last seen", entry.LastSeenAt.Format("2006-01-02 15:04")))
	}
	if entry.ReviewerID != "" {
		rows = append(rows, m.detailRow("Reviewer", entry.ReviewerID))
	}
	if entry.CreatedProductID != 0 {
		rows = append(rows, m.detailRow("Product", fmt.Sprintf("#%d", entry.CreatedProductID)))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, rows...)
	box := m.theme.RoundedBox.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		body,
		"",
		m.detailHints(entry.Status),
	))

	return m.center(lipgloss.JoinVertical(lipgloss.Left, box, m.renderFooter()))
}

// renderCreate renders the product creation form.
func (m Model) renderCreate() string {
	entry := m.selected
	if entry == nil {
		return m.renderList()
	}

	title := m.theme.Title.Render("Create Catalog Product")
	source := lipgloss.NewStyle().Foreground(m.theme.Muted).Render(
		fmt.Sprintf("From review entry: %s", entry.NormalizedName))

	var carried []string
	if entry.Brand != "" {
		carried = append(carried, "brand "+entry.Brand)
	}
	if entry.ItemCode != "" {
		carried = append(carried, "barcode "+entry.ItemCode)
	}
	if entry.Category != "" {
		carried = append(carried, "category "+entry.Category)
	}
	carryNote := ""
	if len(carried) > 0 {
		carryNote = lipgloss.NewStyle().Foreground(m.theme.Muted).Render(
			"Carried from entry: " + strings.Join(carried, ", "))
	}

	hint := lipgloss.NewStyle().Foreground(m.theme.Muted).Render("enter create · esc cancel")

	parts := []string{title, source, "", m.nameInput.View(), ""}
	if carryNote != "" {
		parts = append(parts, carryNote)
	}
	parts = append(parts, hint)

	box := m.theme.RoundedBox.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return m.center(lipgloss.JoinVertical(lipgloss.Left, box, m.renderFooter()))
}

// renderHelp renders the help screen.
func (m Model) renderHelp() string {
	title := m.theme.Title.Render("Review Queue Help")

	sections := []struct {
		title string
		items [][2]string
	}{
		{
			"Navigation",
			[][2]string{
				{"↑/k, ↓/j", "move up/down"},
				{"pgup/pgdn", "page up/down"},
				{"g/G", "go to start/end"},
				{"/", "filter by name or brand"},
				{"enter", "open entry details"},
				{"esc", "back"},
			},
		},
		{
			"Review",
			[][2]string{
				{"r", "start reviewing a pending entry"},
				{"a", "approve the entry for product creation"},
				{"x", "reject the entry"},
				{"c", "create a product from an approved entry"},
			},
		},
		{
			"Application",
			[][2]string{
				{"R", "reload the queue"},
				{"?", "toggle help"},
				{"q", "quit"},
				{"ctrl+c", "force quit"},
			},
		},
	}

	var content []string
	for _, section := range sections {
		content = append(content, m.theme.Subtitle.Render(section.title))
		for _, item := range section.items {
			content = append(content, fmt.Sprintf("  %s %s",
				lipgloss.NewStyle().Foreground(m.theme.Primary).Width(12).Render(item[0]),
				m.theme.Normal.Render(item[1]),
			))
		}
		content = append(content, "")
	}

	footer := lipgloss.NewStyle().Foreground(m.theme.Muted).Render("Press ? or esc to close help")

	return m.center(m.theme.BorderedBox.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		lipgloss.JoinVertical(lipgloss.Left, content...),
		footer,
	)))
}

// renderFooter renders the one-line status footer: the latest error, the
// latest action confirmation, or the key hint line.
func (m Model) renderFooter() string {
	if m.err != nil {
		return m.theme.StatusError.Render("✗ " + m.err.Error())
	}
	if m.statusLine != "" {
		return m.theme.StatusSuccess.Render("✓ " + m.statusLine)
	}
	hint := "enter details · r review · a approve · x reject · c create · ? help · q quit"
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render(hint)
}

// detailHints returns the actions available for an entry's status.
func (m Model) detailHints(status model.ReviewStatus) string {
	var actions string
	switch status {
	case model.ReviewPending:
		actions = "r start review"
	case model.ReviewUnder:
		actions = "a approve · x reject"
	case model.ReviewApproved:
		actions = "c create product"
	case model.ReviewRejected, model.ReviewProcessed:
		actions = "no actions remain"
	}
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Render(actions + " · esc back")
}

// detailRow renders an aligned label/value pair.
func (m Model) detailRow(label, value string) string {
	return fmt.Sprintf("%s %s", m.detailLabel(label), m.theme.Normal.Render(value))
}

func (m Model) detailLabel(label string) string {
	return lipgloss.NewStyle().Foreground(m.theme.Muted).Width(13).Render(label)
}

// center places content in the middle of the terminal when the size is
// known, and returns it unchanged before the first WindowSizeMsg.
func (m Model) center(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// statusStyle maps a review status to its theme style.
func (m Model) statusStyle(status model.ReviewStatus) lipgloss.Style {
	switch status {
	case model.ReviewPending:
		return m.theme.StatusPending
	case model.ReviewUnder:
		return m.theme.StatusInfo
	case model.ReviewApproved, model.ReviewProcessed:
		return m.theme.StatusSuccess
	case model.ReviewRejected:
		return m.theme.StatusError
	default:
		return m.theme.Normal
	}
}

// statusLabel returns the short human label for a review status.
func statusLabel(status model.ReviewStatus) string {
	switch status {
	case model.ReviewPending:
		return "pending"
	case model.ReviewUnder:
		return "in review"
	case model.ReviewApproved:
		return "approved"
	case model.ReviewRejected:
		return "rejected"
	case model.ReviewProcessed:
		return "processed"
	default:
		return string(status)
	}
}

// reasonLabel returns the short human label for an unmatched reason.
func reasonLabel(reason model.UnmatchedReason) string {
	switch reason {
	case model.ReasonNoIdentifierMatch:
		return "no identifier match"
	case model.ReasonNoSimilarityMatch:
		return "no similar products"
	case model.ReasonLowSimilarityScore:
		return "similarity below threshold"
	case model.ReasonMultipleMatches:
		return "ambiguous candidates"
	case model.ReasonUserCreatedNewItem:
		return "queued by reviewer"
	default:
		return string(reason)
	}
}
