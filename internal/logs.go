package internal

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString builds the root logger from a level name. Unknown
// levels fall back to INFO rather than failing startup.
func GetLoggerFromString(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		l = slog.LevelDebug
	case "WARN":
		l = slog.LevelWarn
	case "ERROR":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
