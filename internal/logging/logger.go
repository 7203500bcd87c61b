// Package logging provides centralized logging for the test harness.
package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// contextKey is used for storing loggers in context.
type contextKey struct{}

var loggerKey = contextKey{}

// caseCounter numbers test cases for log correlation.
var caseCounter atomic.Uint64

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new slog.Logger writing to stderr with the specified level.
func NewLogger(level string) *slog.Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a new slog.Logger writing text records to w.
func NewLoggerTo(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}
	handler := slog.NewTextHandler(w, opts)
	return slog.New(handler)
}

// WithCase returns a new logger with test-case attributes.
// It assigns a sequential case ID for log correlation.
func WithCase(logger *slog.Logger, name, protocol string) *slog.Logger {
	caseID := caseCounter.Add(1)
	return logger.With(
		slog.Uint64("case_id", caseID),
		slog.String("case", name),
		slog.String("protocol", protocol),
	)
}

// FromContext retrieves the logger from the context.
// Returns the default logger if none is found.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// NewContext returns a new context with the logger attached.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// OutputWriter is an io.Writer that logs each complete line written to it at
// debug level. It is used to route the output of external commands (service
// control, sendmail) into the harness log.
type OutputWriter struct {
	logger  *slog.Logger
	command string
	buf     bytes.Buffer
}

// NewOutputWriter creates a writer that logs lines tagged with command.
func NewOutputWriter(logger *slog.Logger, command string) *OutputWriter {
	return &OutputWriter{
		logger:  logger,
		command: command,
	}
}

// Write buffers p and logs every complete line.
func (w *OutputWriter) Write(p []byte) (n int, err error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line; keep it for the next write.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.log(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *OutputWriter) Flush() {
	if w.buf.Len() > 0 {
		w.log(w.buf.String())
		w.buf.Reset()
	}
}

func (w *OutputWriter) log(line string) {
	w.logger.Debug("command output",
		slog.String("command", w.command),
		slog.String("line", line),
	)
}
