package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/openreceipts/shelfmatch/internal/report"
)

// LoadReportConfig loads Google Sheets export configuration from Viper and
// environment variables. It follows this precedence:
// 1. Viper configuration (from config file or SHELFMATCH_ env vars)
// 2. Direct environment variables (GOOGLE_SHEETS_*)
// 3. A refresh token previously cached by `shelfmatch report authorize`
func LoadReportConfig() (*report.Config, error) {
	defaults := report.DefaultConfig()
	config := defaults

	// Load from Viper first
	if v := viper.GetString("report.service_account_path"); v != "" {
		config.ServiceAccountPath = ExpandPath(v)
	}
	if v := viper.GetString("report.client_id"); v != "" {
		config.ClientID = v
	}
	if v := viper.GetString("report.client_secret"); v != "" {
		config.ClientSecret = v
	}
	if v := viper.GetString("report.refresh_token"); v != "" {
		config.RefreshToken = v
	}
	if v := viper.GetString("report.spreadsheet_id"); v != "" {
		config.SpreadsheetID = v
	}
	if v := viper.GetString("report.spreadsheet_name"); v != "" {
		config.SpreadsheetName = v
	}
	if v := viper.GetString("report.time_zone"); v != "" {
		config.TimeZone = v
	}

	// Override with direct environment variables if not set
	if config.ServiceAccountPath == "" {
		if v := os.Getenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
			config.ServiceAccountPath = ExpandPath(v)
		}
	}
	if config.ClientID == "" {
		config.ClientID = os.Getenv("GOOGLE_SHEETS_CLIENT_ID")
	}
	if config.ClientSecret == "" {
		config.ClientSecret = os.Getenv("GOOGLE_SHEETS_CLIENT_SECRET")
	}
	if config.RefreshToken == "" {
		config.RefreshToken = os.Getenv("GOOGLE_SHEETS_REFRESH_TOKEN")
	}
	if config.SpreadsheetID == "" {
		config.SpreadsheetID = os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID")
	}
	if config.SpreadsheetName == defaults.SpreadsheetName {
		if v := os.Getenv("GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
			config.SpreadsheetName = v
		}
	}

	// Fall back to a cached token when the config carries only client
	// credentials. The authorize command writes this file.
	if config.RefreshToken == "" && config.ServiceAccountPath == "" && config.ClientID != "" {
		if tokenFile, err := TokenFilePath(); err == nil {
			if token, err := report.LoadToken(tokenFile); err == nil && token.RefreshToken != "" {
				config.RefreshToken = token.RefreshToken
			}
		}
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}
