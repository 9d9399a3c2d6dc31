package adapters

import (
	"io"
	"log"
	"strings"
	"sync"

	"github.com/kerlexov/applog/pkg/logger"
)

// StandardLogAdapter turns writes from a *log.Logger into entries at a
// fixed level.
type StandardLogAdapter struct {
	writer *logWriter
}

type logWriter struct {
	target logger.Logger
	prefix string

	mu    sync.RWMutex
	level logger.LogLevel
}

// NewStandardLogAdapter returns an adapter without touching the global
// logger. Use Install to redirect the log package's default output.
func NewStandardLogAdapter(target logger.Logger) *StandardLogAdapter {
	return &StandardLogAdapter{
		writer: &logWriter{
			target: target,
			level:  logger.LogLevelInfo,
		},
	}
}

// Install points the standard library's default logger at the adapter.
func (a *StandardLogAdapter) Install() {
	a.writer.prefix = log.Prefix()
	log.SetOutput(a.writer)
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSpace(string(p))
	if w.prefix != "" {
		message = strings.TrimSpace(strings.TrimPrefix(message, w.prefix))
	}
	if message == "" {
		return len(p), nil
	}

	w.mu.RLock()
	level := w.level
	w.mu.RUnlock()

	w.target.Log(level, message)
	return len(p), nil
}

func (a *StandardLogAdapter) SetLevel(level logger.LogLevel) {
	a.writer.mu.Lock()
	a.writer.level = level
	a.writer.mu.Unlock()
}

func (a *StandardLogAdapter) Writer() io.Writer {
	return a.writer
}

// NewStdLogger builds a *log.Logger with no flags, since the pipeline
// stamps its own timestamps.
func (a *StandardLogAdapter) NewStdLogger() *log.Logger {
	return log.New(a.writer, "", 0)
}
