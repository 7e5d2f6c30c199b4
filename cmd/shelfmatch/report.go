package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openreceipts/shelfmatch/internal/config"
	"github.com/openreceipts/shelfmatch/internal/model"
	"github.com/openreceipts/shelfmatch/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export matching results to Google Sheets",
		Long: `Export a matching report to Google Sheets: a summary tab with
totals, link rate, and linkage details, plus a review queue tab of
unmatched items by priority.

Authentication uses OAuth2 (run 'shelfmatch report authorize' once) or a
service account key via report.service_account_path.`,
		RunE: runReport,
	}

	// Flags
	cmd.Flags().String("since", "", "Only linkages on or after this date (format: 2006-01-02)")
	cmd.Flags().StringP("merchant", "m", "", "Only linkages for this merchant")
	cmd.Flags().String("method", "", "Only linkages made by this method")
	cmd.Flags().Int("linkage-limit", 0, "Maximum linkage detail rows (0 = all)")
	cmd.Flags().Int("queue-limit", 100, "Maximum review queue rows (0 = all)")

	cmd.AddCommand(reportAuthorizeCmd())

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	sinceStr, _ := cmd.Flags().GetString("since")
	merchant, _ := cmd.Flags().GetString("merchant")
	method, _ := cmd.Flags().GetString("method")
	linkageLimit, _ := cmd.Flags().GetInt("linkage-limit")
	queueLimit, _ := cmd.Flags().GetInt("queue-limit")

	opts := report.CollectOptions{
		Merchant:     merchant,
		Method:       model.MatchMethod(method),
		LinkageLimit: linkageLimit,
		QueueLimit:   queueLimit,
	}
	if sinceStr != "" {
		since, err := time.Parse("2006-01-02", sinceStr)
		if err != nil {
			return fmt.Errorf("invalid --since date %q: %w", sinceStr, err)
		}
		opts.Since = &since
	}

	reportCfg, err := config.LoadReportConfig()
	if err != nil {
		return fmt.Errorf("report configuration invalid: %w\nRun 'shelfmatch report authorize' to set up OAuth2 access", err)
	}

	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	writer, err := report.NewWriter(ctx, *reportCfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create sheets writer: %w", err)
	}

	slog.Info("📊 Collecting report data...")
	data, err := report.Collect(ctx, store, opts)
	if err != nil {
		return fmt.Errorf("failed to collect report data: %w", err)
	}

	if err := writer.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	slog.Info("✅ Report exported",
		"spreadsheet", reportCfg.SpreadsheetName,
		"linkages", len(data.Linkages),
		"queue_entries", len(data.Unmatched))

	return nil
}

func reportAuthorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Authorize Google Sheets access",
		Long: `Authorize report exports with Google Sheets using OAuth2.

This command will:
1. Print a Google consent URL to visit in your browser
2. Save the refresh token for future use
3. Update your config file with the token

You'll need to run this once before the first export.`,
		RunE: runReportAuthorize,
	}

	cmd.Flags().String("client-id", "", "OAuth2 Client ID (overrides config)")
	cmd.Flags().String("client-secret", "", "OAuth2 Client Secret (overrides config)")

	return cmd
}

func runReportAuthorize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// Get OAuth2 config
	clientID := viper.GetString("report.client_id")
	clientSecret := viper.GetString("report.client_secret")

	// Override with flags if provided
	if flagID, _ := cmd.Flags().GetString("client-id"); flagID != "" {
		clientID = flagID
	}
	if flagSecret, _ := cmd.Flags().GetString("client-secret"); flagSecret != "" {
		clientSecret = flagSecret
	}

	// Check for environment variables as fallback
	if clientID == "" {
		clientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}

	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("OAuth2 credentials not found. Please set report.client_id and report.client_secret in config or use --client-id and --client-secret flags")
	}

	tokenFile, err := config.TokenFilePath()
	if err != nil {
		return err
	}

	slog.Info("Starting Google Sheets authorization", "token_file", tokenFile)

	token, err := report.Authorize(ctx, report.OAuthApp{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenFile:    tokenFile,
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	// Update config file with refresh token
	viper.Set("report.refresh_token", token.RefreshToken)

	if err := saveConfig(); err != nil {
		slog.Warn("Failed to update config file with refresh token", "error", err)
		slog.Warn("⚠️  Could not save refresh token to config file")
		slog.Info("Please add this to your config.yaml manually:")
		slog.Info(fmt.Sprintf("report:\n  refresh_token: %q", token.RefreshToken))
	} else {
		slog.Info("Updated config file with refresh token")
		slog.Info("✅ Authorization successful!")
	}

	slog.Info("📊 Google Sheets is now configured and ready to use.")
	slog.Info("Run 'shelfmatch report' to export a matching report.")

	return nil
}

func saveConfig() error {
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		dir, err := config.AppConfigDir()
		if err != nil {
			return err
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(configFile), 0750); err != nil {
		return err
	}

	return viper.WriteConfigAs(configFile)
}
