package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Log file rotation settings.
const (
	logFileMaxSizeMB  = 50
	logFileMaxBackups = 5
	logFileMaxAgeDays = 30
)

// Options configures NewLogger.
type Options struct {
	// Verbose lowers the console level from Warn to Debug and the file
	// level from Info to Debug.
	Verbose bool

	// JSON switches console output from text to JSON.
	JSON bool

	// LogFile, when set, also writes JSON logs to this file with rotation.
	LogFile string

	// Writer is the console output. It defaults to os.Stderr.
	Writer io.Writer
}

// NewLogger builds the application logger. Every sink is wrapped in a
// SecureHandler. The returned close function flushes and closes the log
// file, if any; it is safe to call when no file was configured.
func NewLogger(opts Options) (*slog.Logger, func() error, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	consoleLevel := slog.LevelWarn
	fileLevel := slog.LevelInfo
	if opts.Verbose {
		consoleLevel = slog.LevelDebug
		fileLevel = slog.LevelDebug
	}

	var console slog.Handler
	if opts.JSON {
		console = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: consoleLevel})
	} else {
		console = slog.NewTextHandler(w, &slog.HandlerOptions{Level: consoleLevel})
	}

	if opts.LogFile == "" {
		return slog.New(NewSecureHandler(console)), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.LogFile), 0750); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   opts.LogFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
		Compress:   true,
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: fileLevel})

	handler := NewSecureHandler(fanout{console, fileHandler})
	return slog.New(handler), file.Close, nil
}

// NewSecureLogger creates a text logger with secure handling.
// verbose sets the level to Debug; otherwise Warn.
func NewSecureLogger(w io.Writer, verbose bool) *slog.Logger {
	logger, _, _ := NewLogger(Options{Verbose: verbose, Writer: w}) //nolint:errcheck // no file, cannot fail
	return logger
}

// NewSecureJSONLogger creates a JSON logger with secure handling.
// verbose sets the level to Debug; otherwise Warn.
func NewSecureJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	logger, _, _ := NewLogger(Options{Verbose: verbose, JSON: true, Writer: w}) //nolint:errcheck // no file, cannot fail
	return logger
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
