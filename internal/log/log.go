// Package log is the process-wide structured logger. Warnings and errors go
// to stderr; with a debug directory configured every record is also kept in
// a daily JSONL file.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

var (
	logger     = slog.Default()
	fileWriter *FileWriter
)

// Options configures the logger.
type Options struct {
	// Verbose lowers the stderr level to Debug unless Interactive is set.
	Verbose    bool
	JSONFormat bool
	// Interactive keeps stderr at Warn while the agent owns the terminal.
	Interactive bool
	// DebugDir receives daily JSONL files; empty disables them.
	DebugDir string
	// RetentionDays removes older files at Init; 0 keeps everything.
	RetentionDays int
	Stderr        io.Writer
}

// Init replaces the process logger. It may be called more than once; the
// previous debug file is closed first.
func Init(opts Options) error {
	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	stderrLevel := slog.LevelWarn
	if opts.Verbose && !opts.Interactive {
		stderrLevel = slog.LevelDebug
	}
	stderrOpts := &slog.HandlerOptions{Level: stderrLevel, ReplaceAttr: maskSensitive}

	handlers := []slog.Handler{slog.NewTextHandler(stderr, stderrOpts)}
	if opts.JSONFormat {
		handlers[0] = slog.NewJSONHandler(stderr, stderrOpts)
	}

	Close()
	if opts.DebugDir != "" {
		if opts.RetentionDays > 0 {
			Cleanup(opts.DebugDir, opts.RetentionDays)
		}
		fw, err := NewFileWriter(opts.DebugDir)
		if err != nil {
			return err
		}
		fileWriter = fw
		handlers = append(handlers, slog.NewJSONHandler(fileWriter, &slog.HandlerOptions{
			Level:       slog.LevelDebug,
			ReplaceAttr: maskSensitive,
		}))
	}

	logger = slog.New(fanout(handlers))
	slog.SetDefault(logger)
	return nil
}

// Close releases the debug file, if any.
func Close() {
	if fileWriter != nil {
		fileWriter.Close()
		fileWriter = nil
	}
}

// sensitiveKeys are attribute keys whose plain string values are never
// logged. Secret values normally arrive as secrets.Value, which masks
// itself; this catches strings logged by mistake.
var sensitiveKeys = []string{"token", "password", "secret", "api_key", "apikey"}

// mask matches secrets.Mask.
const mask = "********"

func maskSensitive(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, mask)
		}
	}
	return a
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) derive(fn func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	logger.Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

// SetOutput replaces every handler with a Debug-level text handler on w.
func SetOutput(w io.Writer) {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug, ReplaceAttr: maskSensitive})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// SetInvocation tags every later record with the container name so one
// invocation's records can be picked out of the shared daily file.
func SetInvocation(containerName string) {
	logger = slog.New(logger.Handler().WithAttrs([]slog.Attr{
		slog.String("container", containerName),
	}))
	slog.SetDefault(logger)
}
