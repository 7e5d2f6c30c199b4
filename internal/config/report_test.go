package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("SHELFMATCH_TEST_DIR", "/srv/data")

	tests := []struct {
		name string
		path string
		want string
	}{
		{name: "empty", path: "", want: ""},
		{name: "plain path", path: "/var/lib/shelfmatch.db", want: "/var/lib/shelfmatch.db"},
		{name: "tilde prefix", path: "~/shelfmatch.db", want: filepath.Join(home, "shelfmatch.db")},
		{name: "bare tilde", path: "~", want: home},
		{name: "env var", path: "$SHELFMATCH_TEST_DIR/shelfmatch.db", want: "/srv/data/shelfmatch.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.path))
		})
	}
}

func TestTokenFilePath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	path, err := TokenFilePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "shelfmatch", "sheets-token.json"), path)
}

// clearSheetsEnv blanks the GOOGLE_SHEETS_* variables so results do not
// depend on the host environment.
func clearSheetsEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH",
		"GOOGLE_SHEETS_CLIENT_ID",
		"GOOGLE_SHEETS_CLIENT_SECRET",
		"GOOGLE_SHEETS_REFRESH_TOKEN",
		"GOOGLE_SHEETS_SPREADSHEET_ID",
		"GOOGLE_SHEETS_SPREADSHEET_NAME",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadReportConfig(t *testing.T) {
	t.Run("service account from environment", func(t *testing.T) {
		viper.Reset()
		clearSheetsEnv(t)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH", "/etc/shelfmatch/key.json")

		config, err := LoadReportConfig()
		require.NoError(t, err)
		assert.Equal(t, "/etc/shelfmatch/key.json", config.ServiceAccountPath)
		assert.Equal(t, "Product Matching Report", config.SpreadsheetName)
	})

	t.Run("viper credentials win over environment", func(t *testing.T) {
		viper.Reset()
		clearSheetsEnv(t)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "env-client")
		viper.Set("report.client_id", "file-client")
		viper.Set("report.client_secret", "file-secret")
		viper.Set("report.refresh_token", "file-token")
		viper.Set("report.spreadsheet_name", "Q3 Matching")
		defer viper.Reset()

		config, err := LoadReportConfig()
		require.NoError(t, err)
		assert.Equal(t, "file-client", config.ClientID)
		assert.Equal(t, "Q3 Matching", config.SpreadsheetName)
	})

	t.Run("cached token fills missing refresh token", func(t *testing.T) {
		viper.Reset()
		clearSheetsEnv(t)
		configHome := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", configHome)
		tokenDir := filepath.Join(configHome, "shelfmatch")
		require.NoError(t, os.MkdirAll(tokenDir, 0o700))
		tokenJSON := `{"access_token":"at","refresh_token":"cached-token","token_type":"Bearer"}`
		require.NoError(t, os.WriteFile(filepath.Join(tokenDir, "sheets-token.json"), []byte(tokenJSON), 0o600))
		viper.Set("report.client_id", "file-client")
		viper.Set("report.client_secret", "file-secret")
		defer viper.Reset()

		config, err := LoadReportConfig()
		require.NoError(t, err)
		assert.Equal(t, "cached-token", config.RefreshToken)
	})

	t.Run("no credentials anywhere", func(t *testing.T) {
		viper.Reset()
		clearSheetsEnv(t)
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		_, err := LoadReportConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no authentication method configured")
	})
}
