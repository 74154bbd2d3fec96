package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"texwatch/src/features/config"
)

func SetupLogger(cfg *config.Config) *slog.Logger {
	var formatter log.Formatter
	switch cfg.Logger.Format {
	case "json":
		formatter = log.JSONFormatter
	case "text":
		formatter = log.TextFormatter
	default:
		formatter = log.LogfmtFormatter
	}

	level := log.InfoLevel
	switch cfg.Logger.Level {
	case "debug":
		level = log.DebugLevel
	case "info":
		level = log.InfoLevel
	}

	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "TexWatch",
		Formatter:       formatter,
		Level:           level,
	})

	return slog.New(handler)
}
