package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"

	"karolbroda.com/overlyric/internal/config"
)

// DefaultFile is where logs go while the overlay owns the terminal.
func DefaultFile() string {
	return filepath.Join(xdg.StateHome, "overlyric", "overlyric.log")
}

// SetupLogger builds the slog logger for the process. When toFile is set the
// output goes to cfg.Log.File (or DefaultFile) instead of stderr; the returned
// closer must be called on exit.
func SetupLogger(cfg config.LogConfig, toFile bool) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if toFile {
		path := cfg.File
		if path == "" {
			path = DefaultFile()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closer = f
	}

	return New(out, cfg), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func New(out io.Writer, cfg config.LogConfig) *slog.Logger {
	var formatter log.Formatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		formatter = log.TextFormatter
	}

	handler := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          "overlyric",
		Formatter:       formatter,
		Level:           ParseLevel(cfg.Level),
	})

	return slog.New(handler)
}

func ParseLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
