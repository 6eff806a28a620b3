// Package logging builds the service's *slog.Logger on top of a
// charmbracelet/log handler.
package logging

import (
	"io"
	"log/slog"
	"time"

	"deposito-ledger/config"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

var (
	infoColor  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnColor  = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorColor = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugColor = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

var formatters = map[string]log.Formatter{
	"text":   log.TextFormatter,
	"json":   log.JSONFormatter,
	"logfmt": log.LogfmtFormatter,
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	level := func(name string, color lipgloss.AdaptiveColor) lipgloss.Style {
		return lipgloss.NewStyle().SetString(name).Bold(true).Padding(0, 1).Foreground(color)
	}
	s.Levels[log.DebugLevel] = level("DEBUG", debugColor)
	s.Levels[log.InfoLevel] = level("INFO", infoColor)
	s.Levels[log.WarnLevel] = level("WARN", warnColor)
	s.Levels[log.ErrorLevel] = level("ERROR", errorColor)

	s.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	s.Values["error"] = lipgloss.NewStyle().Bold(true)
	s.Keys["account_id"] = lipgloss.NewStyle().Foreground(debugColor)
	s.Values["account_id"] = lipgloss.NewStyle().Bold(true)
	return s
}

// New returns a logger writing to w. Unknown levels fall back to info and
// unknown formats to text.
func New(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	formatter, ok := formatters[cfg.Format]
	if !ok {
		formatter = log.TextFormatter
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Formatter:       formatter,
	})
	logger.SetStyles(styles())

	return slog.New(logger)
}
