package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger writes timestamped lines to a file or writer. Loggers derived
// with ForRank share the destination and tag each line with the rank.
type DebugLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	closer io.Closer
	prefix string
}

// NewDebugLogger creates a logger appending to the specified path.
// If the path is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{mu: &sync.Mutex{}, out: f, closer: f}
	l.Log("=== hubspoke debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger logs to w. The caller owns w.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{mu: &sync.Mutex{}, out: w}
}

// NopLogger returns a no-op logger for testing or when logging is disabled.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// ForRank returns a logger that tags every line with the global rank.
func (l *DebugLogger) ForRank(rank int) *DebugLogger {
	if l == nil {
		return nil
	}
	c := *l
	c.prefix = fmt.Sprintf("[rank %d] ", rank)
	c.closer = nil
	return &c
}

// Log writes a timestamped message.
// If the logger is nil or has no destination, this is a no-op.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.out, "[%s] %s%s\n", timestamp, l.prefix, msg)
	if f, ok := l.out.(*os.File); ok {
		f.Sync()
	}
}

// Close closes the log file. Derived loggers do not own the file.
// Safe to call on nil logger or logger without file.
func (l *DebugLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
