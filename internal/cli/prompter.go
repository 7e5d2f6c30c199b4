package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openreceipts/shelfmatch/internal/engine"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
	"github.com/schollz/progressbar/v3"
)

// Prompter implements the interactive CLI prompting interface for
// ambiguous item selections.
type Prompter struct {
	writer         io.Writer
	reader         *CancelableReader
	progressBar    *progressbar.ProgressBar
	brandHistory   map[string][]string
	totalPending   int
	processedCount int
	historyMutex   sync.RWMutex
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader:       NewCancelableReader(reader),
		writer:       writer,
		brandHistory: make(map[string][]string),
	}
}

// BeginSession announces how many ambiguous items the review phase will
// prompt for, enabling progress display.
func (p *Prompter) BeginSession(total int) {
	p.totalPending = total
	p.initProgressBar()
}

// ResolveSelection renders one ambiguous item with its ranked candidates
// and collects the human decision.
func (p *Prompter) ResolveSelection(ctx context.Context, pending model.PendingSelection) (engine.Decision, error) {
	select {
	case <-ctx.Done():
		return engine.Decision{}, ctx.Err()
	default:
	}

	options := pending.Proposal.Options
	if len(options) == 0 {
		return engine.Decision{Action: engine.DecisionSkip}, nil
	}

	p.updateProgress()

	content := p.formatPendingItem(pending)
	if _, err := fmt.Fprintln(p.writer, RenderBox("Item Review", content)); err != nil {
		return engine.Decision{}, fmt.Errorf("failed to write item box: %w", err)
	}

	if _, err := fmt.Fprintln(p.writer, FormatPrompt("Options:")); err != nil {
		return engine.Decision{}, fmt.Errorf("failed to write options prompt: %w", err)
	}

	if len(options) == 1 {
		if _, err := fmt.Fprintln(p.writer, "  [1] Link to the product above"); err != nil {
			return engine.Decision{}, fmt.Errorf("failed to write link option: %w", err)
		}
	} else {
		if _, err := fmt.Fprintf(p.writer, "  [1-%d] Link to the numbered product\n", len(options)); err != nil {
			return engine.Decision{}, fmt.Errorf("failed to write link option: %w", err)
		}
	}
	if _, err := fmt.Fprintln(p.writer, "  [N] None of these, queue for catalog creation"); err != nil {
		return engine.Decision{}, fmt.Errorf("failed to write new product option: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, "  [S] Skip for now"); err != nil {
		return engine.Decision{}, fmt.Errorf("failed to write skip option: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer); err != nil {
		return engine.Decision{}, fmt.Errorf("failed to write newline: %w", err)
	}

	index, letter, err := p.promptChoice(ctx, len(options))
	if err != nil {
		return engine.Decision{}, err
	}

	switch letter {
	case "s":
		if _, err := fmt.Fprintln(p.writer, FormatWarning("Skipped for now")); err != nil {
			slog.Warn("Failed to write skip message", "error", err)
		}
		return engine.Decision{Action: engine.DecisionSkip}, nil
	case "n":
		if _, err := fmt.Fprintln(p.writer, FormatSuccess("Queued for catalog creation")); err != nil {
			slog.Warn("Failed to write queue message", "error", err)
		}
		return engine.Decision{Action: engine.DecisionCreateNew}, nil
	}

	picked := options[index]
	p.trackPick(pending.Item.Merchant, picked.Brand)
	if _, err := fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("Linked to %s", picked.Name))); err != nil {
		slog.Warn("Failed to write link message", "error", err)
	}

	return engine.Decision{Action: engine.DecisionPick, ProductID: picked.ProductID}, nil
}

// ShowCompletion displays the end-of-run summary to the user.
func (p *Prompter) ShowCompletion(stats service.CompletionStats) {
	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(p.writer); err != nil {
			slog.Warn("Failed to write newline", "error", err)
		}
	}

	timeSaved := p.calculateTimeSaved(stats)

	linkRate := 0.0
	if stats.TotalItems > 0 {
		linkRate = float64(stats.AutoLinked+stats.UserLinked) / float64(stats.TotalItems) * 100
	}

	summary := fmt.Sprintf("%s Matching Complete!\n\n", CartIcon) +
		fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Total items: %d\n", stats.TotalItems) +
		fmt.Sprintf("  • Auto-linked: %d\n", stats.AutoLinked) +
		fmt.Sprintf("  • Linked by you: %d\n", stats.UserLinked) +
		fmt.Sprintf("  • Queued for review: %d\n", stats.Queued) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Failed: %d\n", stats.FailedItems) +
		fmt.Sprintf("  • Link rate: %.1f%%\n", linkRate) +
		fmt.Sprintf("  • Time taken: %s\n", stats.Duration.Round(time.Second)) +
		fmt.Sprintf("  • Time saved: ~%s\n", timeSaved)

	if _, err := fmt.Fprintln(p.writer, RenderBox("Matching Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

func (p *Prompter) initProgressBar() {
	p.progressBar = progressbar.NewOptions(p.totalPending,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing ambiguous items...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *Prompter) updateProgress() {
	p.processedCount++
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) formatPendingItem(pending model.PendingSelection) string {
	item := pending.Item

	header := TitleStyle.Render(fmt.Sprintf("Item Review: %s", item.DisplayName()))

	details := fmt.Sprintf("%s Details:\n", InfoIcon)
	if item.Merchant != "" {
		details += fmt.Sprintf("  Merchant: %s\n", item.Merchant)
	}
	if item.RawText != "" && item.RawText != item.DisplayName() {
		details += fmt.Sprintf("  Receipt text: %s\n", item.RawText)
	}
	if item.Brand != "" {
		details += fmt.Sprintf("  Brand: %s\n", item.Brand)
	}
	if item.Price.IsPositive() {
		details += fmt.Sprintf("  Price: $%s\n", item.Price.StringFixed(2))
	}
	if item.ItemCode != "" {
		details += fmt.Sprintf("  Item code: %s\n", item.ItemCode)
	}

	body := details + p.formatOptions(pending.Proposal)

	if pattern := p.detectBrandPattern(item.Merchant); pattern != "" {
		body += fmt.Sprintf("\n%s %s", CheckIcon, pattern)
	}

	return header + "\n\n" + body
}

func (p *Prompter) formatOptions(proposal model.SelectionProposal) string {
	out := fmt.Sprintf("\n%s Candidate products:\n", LinkIcon)

	for i, option := range proposal.Options {
		name := option.Name
		if option.Brand != "" {
			name = fmt.Sprintf("%s (%s)", option.Name, option.Brand)
		}

		line := fmt.Sprintf("  [%d] %s  %s %s",
			i+1, name, FormatScore(option.AdjustedScore), SubtleStyle.Render(methodLabel(option.Method)))
		if option.Method != option.Method.Base() {
			line += " " + SuccessStyle.Render("brand ✓")
		}
		if proposal.Recommended != nil && option.ProductID == proposal.Recommended.ProductID {
			line += " " + WarningStyle.Render("★ recommended")
		}
		out += line + "\n"
	}

	if hidden := proposal.TotalMatches - len(proposal.Options); hidden > 0 {
		out += SubtleStyle.Render(fmt.Sprintf("  ... and %d more not shown", hidden)) + "\n"
	}

	return out
}

// methodLabel humanizes a match method for display.
func methodLabel(method model.MatchMethod) string {
	switch method.Base() {
	case model.MethodExactIdentifier:
		return "barcode"
	case model.MethodVectorSimilarity:
		return "vector match"
	case model.MethodBrandCategory:
		return "brand/category"
	case model.MethodNameSimilarity:
		return "name match"
	case model.MethodUserSelection:
		return "user pick"
	default:
		return string(method)
	}
}

// detectBrandPattern surfaces a streak of same-brand picks at a merchant,
// a common situation with store brands.
func (p *Prompter) detectBrandPattern(merchant string) string {
	p.historyMutex.RLock()
	defer p.historyMutex.RUnlock()

	history, exists := p.brandHistory[merchant]
	if !exists || len(history) < 3 {
		return ""
	}

	lastBrand := history[len(history)-1]
	count := 0
	for i := len(history) - 1; i >= 0 && history[i] == lastBrand; i-- {
		count++
	}

	if count >= 3 {
		return fmt.Sprintf("Last %d picks here were %s products", count, lastBrand)
	}

	return ""
}

func (p *Prompter) trackPick(merchant, brand string) {
	if brand == "" {
		return
	}

	p.historyMutex.Lock()
	defer p.historyMutex.Unlock()

	p.brandHistory[merchant] = append(p.brandHistory[merchant], brand)
}

// promptChoice reads input until the user enters a valid option number,
// "n", or "s". Picks return the zero-based option index; letter choices
// return -1 and the letter.
func (p *Prompter) promptChoice(ctx context.Context, optionCount int) (int, string, error) {
	rangeLabel := "1"
	if optionCount > 1 {
		rangeLabel = fmt.Sprintf("1-%d", optionCount)
	}
	prompt := fmt.Sprintf("Choice [%s/N/S]", rangeLabel)

	for {
		select {
		case <-ctx.Done():
			return 0, "", ctx.Err()
		default:
		}

		if _, err := fmt.Fprintf(p.writer, "%s: ", FormatPrompt(prompt)); err != nil {
			return 0, "", fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := p.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, ErrInputCanceled) {
				return 0, "", ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return 0, "", fmt.Errorf("input terminated")
			}
			return 0, "", err
		}

		choice := strings.ToLower(line)
		switch choice {
		case "s", "n":
			return -1, choice, nil
		}

		if index, convErr := strconv.Atoi(choice); convErr == nil && index >= 1 && index <= optionCount {
			return index - 1, "", nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (p *Prompter) calculateTimeSaved(stats service.CompletionStats) string {
	// Looking one product up in a catalog by hand takes around 15 seconds.
	avgSecondsPerItem := 15.0

	timeSavedSeconds := float64(stats.AutoLinked) * avgSecondsPerItem

	switch {
	case timeSavedSeconds < 60:
		return fmt.Sprintf("%.0f seconds", timeSavedSeconds)
	case timeSavedSeconds < 3600:
		return fmt.Sprintf("%.1f minutes", timeSavedSeconds/60)
	default:
		return fmt.Sprintf("%.1f hours", timeSavedSeconds/3600)
	}
}

// Ensure Prompter implements the engine prompting interfaces.
var (
	_ engine.Prompter        = (*Prompter)(nil)
	_ engine.SessionReporter = (*Prompter)(nil)
)
