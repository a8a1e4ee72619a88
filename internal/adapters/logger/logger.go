// Package logger implements ports.Logger on log/slog, with a colored
// handler for terminals and JSON for machines.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"go.trai.ch/synapse/internal/core/ports"
)

var _ ports.Logger = (*Logger)(nil)

// Logger implements ports.Logger.
type Logger struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	output   io.Writer
	jsonMode bool
	level    slog.LevelVar
}

// New creates a Logger writing pretty lines to stderr at info level.
func New() *Logger {
	l := &Logger{output: os.Stderr}
	l.rebuildLocked()
	return l
}

func (l *Logger) rebuildLocked() {
	opts := &slog.HandlerOptions{Level: &l.level}
	if l.jsonMode {
		l.logger = slog.New(slog.NewJSONHandler(l.output, opts))
		return
	}
	l.logger = slog.New(NewPrettyHandler(l.output, opts))
}

// SetOutput redirects the logger to w, keeping the current mode.
// A nil w writes to stderr.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		w = os.Stderr
	}
	l.output = w
	l.rebuildLocked()
}

// SetJSON switches between JSON and pretty records.
func (l *Logger) SetJSON(enable bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jsonMode = enable
	l.rebuildLocked()
}

// SetVerbose enables debug records.
func (l *Logger) SetVerbose(enable bool) {
	if enable {
		l.level.Set(slog.LevelDebug)
		return
	}
	l.level.Set(slog.LevelInfo)
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Info(msg)
}

// Warn logs a warning.
func (l *Logger) Warn(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Warn(msg)
}

// Debug logs a message shown only in verbose mode.
func (l *Logger) Debug(msg string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.logger.Debug(msg)
}

// Error logs err. Pretty mode prints the whole zerr chain with its metadata.
func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.jsonMode {
		l.logger.Error("operation failed", "error", err.Error())
		return
	}
	l.logger.Error(formatErrorEntries(collectErrorEntries(err)))
}
