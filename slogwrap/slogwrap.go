package slogwrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/indexdata/go-utils/utils"
)

func logLevel(value string) slog.Level {
	switch strings.ToUpper(value) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func slogHandler(enableJson bool, level string) slog.Handler {
	opts := &slog.HandlerOptions{Level: logLevel(level)}
	if enableJson {
		return slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.NewTextHandler(os.Stdout, opts)
}

// SlogWrap builds the process logger from ENABLE_JSON_LOG and LOG_LEVEL.
func SlogWrap() *slog.Logger {
	return slog.New(Handler())
}

// Handler exposes the configured handler so context-bound child loggers can
// share it.
func Handler() slog.Handler {
	return slogHandler(utils.GetEnvBool("ENABLE_JSON_LOG", false), utils.GetEnv("LOG_LEVEL", "INFO"))
}
