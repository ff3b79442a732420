// Package logger builds the *slog.Logger the CLI hands to the library
// packages. Logging is discarded unless a log directory or console output is
// requested.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	logPrefix = "autorunkit-"
	logSuffix = ".log"

	// DefaultRetentionDays is used when Options.RetentionDays is zero.
	DefaultRetentionDays = 30
)

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// discardHandler mirrors slog.DiscardHandler (Go 1.24+) for older toolchains.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Options configures New.
type Options struct {
	Dir           string     // Directory for dated JSON log files. Empty disables file logging.
	RetentionDays int        // Log files older than this are removed on start.
	Level         slog.Level // Minimum level for the file log.
	Console       io.Writer  // If set, records at ConsoleLevel or above are also written here as text.
	ConsoleLevel  slog.Level
	Now           func() time.Time
}

// ParseLevel accepts debug, info, warn/warning and error, case-insensitively.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// New returns a logger and a close function for the underlying file. The
// close function is never nil.
func New(opts Options) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	var handlers []slog.Handler
	closeFn := noop

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, noop, err
		}
		retention := opts.RetentionDays
		if retention <= 0 {
			retention = DefaultRetentionDays
		}
		// best-effort
		cleanOldLogs(opts.Dir, now().AddDate(0, 0, -retention))

		filename := filepath.Join(opts.Dir, logPrefix+now().Format("2006-01-02")+logSuffix)
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, noop, err
		}
		closeFn = f.Close
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: opts.Level}))
	}
	if opts.Console != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: opts.ConsoleLevel}))
	}

	switch len(handlers) {
	case 0:
		return Discard(), closeFn, nil
	case 1:
		return slog.New(handlers[0]), closeFn, nil
	default:
		return slog.New(fanout(handlers)), closeFn, nil
	}
}

// cleanOldLogs removes dated log files older than cutoff.
func cleanOldLogs(logDir string, cutoff time.Time) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// autorunkit-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
