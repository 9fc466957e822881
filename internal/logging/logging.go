package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dzlatency/internal/config"
)

// New builds the process logger. Diagnostics go to stderr so that report
// tables on stdout stay machine-readable.
func New(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	var logger zerolog.Logger
	if strings.ToLower(cfg.Format) == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}
