package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/openreceipts/shelfmatch/internal/common"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/service"
)

// Tab titles within the report spreadsheet.
const (
	summarySheet = "Matching Summary"
	queueSheet   = "Review Queue"
)

// queueHeaderRows counts the title, spacer, and column header rows above
// the first queue entry.
const queueHeaderRows = 3

// Writer exports report data to a Google Sheets spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter creates a Google Sheets report writer.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	service, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Writer{
		config:  config,
		service: service,
		logger:  logger,
	}, nil
}

// Write exports the report: a matching summary tab and a review queue tab.
// Data writes are retried; formatting is best effort and never fails the run.
func (w *Writer) Write(ctx context.Context, data *Data) error {
	w.logger.Info("starting report export",
		"linkages", len(data.Linkages),
		"queue_entries", len(data.Unmatched))

	spreadsheet, err := w.getOrCreateSpreadsheet(ctx)
	if err != nil {
		return fmt.Errorf("failed to get spreadsheet: %w", err)
	}
	spreadsheetID := spreadsheet.SpreadsheetId

	sheetIDs, err := w.ensureSheets(ctx, spreadsheet)
	if err != nil {
		return fmt.Errorf("failed to prepare report tabs: %w", err)
	}

	summary := w.prepareSummaryValues(data)
	queue := w.prepareQueueValues(data)

	retryOpts := service.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	for _, tab := range []struct {
		title  string
		values [][]any
	}{
		{summarySheet, summary},
		{queueSheet, queue},
	} {
		err = common.WithRetry(ctx, func() error {
			return w.writeSheet(ctx, spreadsheetID, tab.title, tab.values)
		}, retryOpts)
		if err != nil {
			return fmt.Errorf("failed to write %q: %w", tab.title, err)
		}
	}

	if w.config.EnableFormatting {
		err = common.WithRetry(ctx, func() error {
			return w.applyFormatting(ctx, spreadsheetID, sheetIDs, len(summary))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("report export completed",
		"spreadsheet_id", spreadsheetID,
		"summary_rows", len(summary),
		"queue_rows", len(queue))

	return nil
}

// createSheetsService builds the Sheets API client from whichever
// authentication method the config carries.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}
		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}
		tokenSource = oauthConfig.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// getOrCreateSpreadsheet opens the configured spreadsheet, or creates a new
// one with both report tabs when no ID is configured.
func (w *Writer) getOrCreateSpreadsheet(ctx context.Context) (*sheets.Spreadsheet, error) {
	if w.config.SpreadsheetID != "" {
		spreadsheet, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
		}
		return spreadsheet, nil
	}

	spreadsheet := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{
			Title:    w.config.SpreadsheetName,
			TimeZone: w.config.TimeZone,
		},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: summarySheet}},
			{Properties: &sheets.SheetProperties{Title: queueSheet}},
		},
	}

	created, err := w.service.Spreadsheets.Create(spreadsheet).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to create spreadsheet: %w", err)
	}

	w.logger.Info("created new spreadsheet",
		"id", created.SpreadsheetId,
		"url", created.SpreadsheetUrl)

	return created, nil
}

// ensureSheets adds any missing report tab to an existing spreadsheet and
// returns the sheet ID for each tab title.
func (w *Writer) ensureSheets(ctx context.Context, spreadsheet *sheets.Spreadsheet) (map[string]int64, error) {
	ids := make(map[string]int64, 2)
	for _, sheet := range spreadsheet.Sheets {
		ids[sheet.Properties.Title] = sheet.Properties.SheetId
	}

	var requests []*sheets.Request
	for _, title := range []string{summarySheet, queueSheet} {
		if _, ok := ids[title]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			})
		}
	}
	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(spreadsheet.SpreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to add report tabs: %w", err)
	}

	for _, reply := range resp.Replies {
		if reply.AddSheet != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}

	return ids, nil
}

// prepareSummaryValues lays out the matching summary tab.
func (w *Writer) prepareSummaryValues(data *Data) [][]any {
	stats := data.Stats

	// Title(2) + Summary(7) + Method header(2) + methods + spacer(1) +
	// Details header(2) + detail rows.
	estimatedRows := 14 + len(stats.LinkagesByMethod) + len(data.Linkages)
	values := make([][]any, 0, estimatedRows)

	values = append(values,
		[]any{"Product Matching Report", data.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{},
		[]any{"Summary"},
		[]any{"Catalog products", stats.TotalProducts},
		[]any{"Line items", stats.TotalItems},
		[]any{"Linked items", stats.TotalLinked},
		[]any{"Link rate", linkRate(stats)},
		[]any{"Awaiting review", stats.QueueByStatus[model.ReviewPending]},
		[]any{},
		[]any{"Linkages by Method"},
		[]any{"Method", "Count"},
	)

	for _, method := range sortedMethods(stats.LinkagesByMethod) {
		values = append(values, []any{string(method), stats.LinkagesByMethod[method]})
	}

	values = append(values,
		[]any{},
		[]any{"Linkage Details"},
		[]any{"Date", "Item", "Merchant", "Price", "Product", "Brand", "Method", "Confidence"},
	)

	for _, row := range data.Linkages {
		values = append(values, []any{
			row.LinkedAt.Format("2006-01-02"),
			row.ItemName,
			row.Merchant,
			row.Price.InexactFloat64(),
			row.ProductName,
			row.Brand,
			string(row.Method),
			fmt.Sprintf("%.2f", row.Confidence),
		})
	}

	return values
}

// prepareQueueValues lays out the review queue tab. Entries arrive already
// ordered by priority.
func (w *Writer) prepareQueueValues(data *Data) [][]any {
	values := make([][]any, 0, queueHeaderRows+len(data.Unmatched))

	values = append(values,
		[]any{"Review Queue", data.GeneratedAt.Format("Jan 2, 2006 15:04")},
		[]any{},
		[]any{"Name", "Brand", "Merchant", "Status", "Reason", "Seen", "Confidence", "Priority", "First Seen", "Last Seen"},
	)

	for i := range data.Unmatched {
		entry := &data.Unmatched[i]
		values = append(values, []any{
			entry.NormalizedName,
			entry.Brand,
			entry.Merchant,
			string(entry.Status),
			string(entry.Reason),
			entry.OccurrenceCount,
			fmt.Sprintf("%.2f", entry.ConfidenceScore),
			fmt.Sprintf("%.2f", entry.PriorityScore),
			entry.FirstSeenAt.Format("2006-01-02"),
			entry.LastSeenAt.Format("2006-01-02"),
		})
	}

	return values
}

// writeSheet clears one tab and rewrites it in batches.
func (w *Writer) writeSheet(ctx context.Context, spreadsheetID, title string, values [][]any) error {
	clearRange := fmt.Sprintf("'%s'!A:Z", title)
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to clear %q: %w", title, err)
	}

	for i := 0; i < len(values); i += w.config.BatchSize {
		end := i + w.config.BatchSize
		if end > len(values) {
			end = len(values)
		}

		valueRange := &sheets.ValueRange{Values: values[i:end]}
		rangeStr := fmt.Sprintf("'%s'!A%d", title, i+1)
		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, rangeStr, valueRange).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("wrote batch", "sheet", title, "start_row", i+1, "rows", end-i)
	}

	return nil
}

// applyFormatting applies cosmetic formatting to both tabs.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetIDs map[string]int64, summaryRows int) error {
	summaryID := sheetIDs[summarySheet]
	queueID := sheetIDs[queueSheet]

	requests := []*sheets.Request{
		// Bold the title row on both tabs
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          summaryID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold:     true,
							FontSize: 14,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          queueID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   2,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold:     true,
							FontSize: 14,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Bold the summary section labels
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          summaryID,
					StartRowIndex:    2,
					EndRowIndex:      int64(summaryRows),
					StartColumnIndex: 0,
					EndColumnIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Bold the queue column header
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          queueID,
					StartRowIndex:    queueHeaderRows - 1,
					EndRowIndex:      queueHeaderRows,
					StartColumnIndex: 0,
					EndColumnIndex:   10,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat: &sheets.TextFormat{
							Bold: true,
						},
					},
				},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		// Currency format on the linkage price column
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          summaryID,
					StartRowIndex:    0,
					EndRowIndex:      int64(summaryRows),
					StartColumnIndex: 3,
					EndColumnIndex:   4,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						NumberFormat: &sheets.NumberFormat{
							Type:    "CURRENCY",
							Pattern: "$#,##0.00",
						},
					},
				},
				Fields: "userEnteredFormat.numberFormat",
			},
		},
		// Auto-resize columns on both tabs
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    summaryID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   8,
				},
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    queueID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   10,
				},
			},
		},
		// Freeze the title on the summary and the full header on the queue
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: summaryID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: 1,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId: queueID,
					GridProperties: &sheets.GridProperties{
						FrozenRowCount: queueHeaderRows,
					},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

// linkRate formats linked items over total items as a percentage.
func linkRate(stats service.MatchStats) string {
	if stats.TotalItems == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", float64(stats.TotalLinked)/float64(stats.TotalItems)*100)
}

// sortedMethods orders match methods by count descending, then by name, so
// the breakdown renders deterministically.
func sortedMethods(counts map[model.MatchMethod]int64) []model.MatchMethod {
	methods := make([]model.MatchMethod, 0, len(counts))
	for method := range counts {
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool {
		if counts[methods[i]] != counts[methods[j]] {
			return counts[methods[i]] > counts[methods[j]]
		}
		return methods[i] < methods[j]
	})
	return methods
}
