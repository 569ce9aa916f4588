package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

// LogFileName is the name of the log file created by NewFileConsoleLogger
// inside the configured log directory.
const LogFileName = "agent.log"

// NewFileConsoleLogger creates a Logger that fans every record out to stderr
// and to <logDir>/agent.log. The directory is created if missing and the file
// is opened for append. The returned close function releases the file handle
// and must be called when the logger is no longer needed.
func NewFileConsoleLogger(level LogLevel, format, logDir string) (Logger, func() error, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory %q: %w", logDir, err)
	}

	path := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %q: %w", path, err)
	}

	opts := &slog.HandlerOptions{Level: level.slogLevel()}
	handlers := []slog.Handler{
		newHandler(os.Stderr, format, opts),
		newGuardedHandler(newHandler(file, format, opts), file),
	}

	logger := NewSlogAdapter(slog.New(slogmulti.Fanout(handlers...)))
	return logger, file.Close, nil
}

// newHandler builds a text or json slog handler for the given writer.
func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

var _ slog.Handler = (*guardedHandler)(nil)

// guardedHandler is a slog.Handler that guards writes to a file with a mutex.
// This keeps log lines from interleaving when several goroutines log to the
// same file. It assumes:
// 1. that the underlying handler is thread-safe and
// 2. the file is opened with the O_SYNC flag to ensure that writes are atomic.
type guardedHandler struct {
	handler slog.Handler
	writer  io.Writer
	mu      sync.Mutex
}

func newGuardedHandler(handler slog.Handler, writer io.Writer) *guardedHandler {
	return &guardedHandler{
		handler: handler,
		writer:  writer,
	}
}

// Enabled implements slog.Handler.
func (s *guardedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return s.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (s *guardedHandler) Handle(ctx context.Context, record slog.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler.Handle(ctx, record)
}

// WithAttrs implements slog.Handler.
func (s *guardedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &guardedHandler{
		handler: s.handler.WithAttrs(attrs),
		writer:  s.writer,
	}
}

// WithGroup implements slog.Handler.
func (s *guardedHandler) WithGroup(name string) slog.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &guardedHandler{
		handler: s.handler.WithGroup(name),
		writer:  s.writer,
	}
}
