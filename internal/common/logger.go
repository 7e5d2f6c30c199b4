package common

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// ParseLogLevel converts a level name to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger configures the process-wide default logger.
func SetupLogger(level, format string) error {
	opts := &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "console", "":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// LogSelfHeal records an input defect that was corrected in place rather
// than surfaced as a failure. Every coercion of corrupt data goes through
// here so the corrections stay visible in the logs.
func LogSelfHeal(field string, original, corrected any, itemID string) {
	slog.Warn("self-healed corrupt input",
		"field", field,
		"original", fmt.Sprintf("%v", original),
		"corrected", corrected,
		"item_id", itemID)
}
