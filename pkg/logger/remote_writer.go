package logger

import (
	"context"
	"sync"

	"github.com/kerlexov/applog/pkg/buffer"
	"github.com/kerlexov/applog/pkg/metrics"
	"go.uber.org/zap"
)

// RemoteWriter buffers entries at or above its minimum level and ships them
// in batches. A batch is sent once BufferSize entries are pending or a fatal
// entry arrives. Failed batches stay buffered until the next flush.
//
// The send happens on the caller's goroutine with mu held, so a flush can
// block every concurrent Write for up to Remote.Timeout.
type RemoteWriter struct {
	enabled bool
	config  RemoteConfig
	sender  Sender
	buffer  *buffer.MemoryBuffer[LogEntry]
	log     *zap.Logger
	metrics *metrics.Pipeline

	// mu serializes Write and Flush so a flush never races an append.
	mu sync.Mutex
}

func NewRemoteWriter(enabled bool, config RemoteConfig, sender Sender, log *zap.Logger) *RemoteWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RemoteWriter{
		enabled: enabled,
		config:  config,
		sender:  sender,
		buffer:  buffer.NewMemoryBuffer[LogEntry](config.MaxPending),
		log:     log,
	}
}

func (w *RemoteWriter) Write(entry LogEntry) {
	if !w.enabled || entry.Level() < w.config.MinLevel {
		return
	}

	// An entry that cannot be encoded would fail every later batch.
	if _, err := entry.ToJSON(); err != nil {
		w.metrics.ObserveDrop("encode")
		w.log.Warn("dropping log entry that cannot be encoded",
			zap.String("message", entry.Message()),
			zap.Error(err),
		)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if evicted := w.buffer.Add(entry); evicted {
		w.metrics.ObserveDrop("remote_buffer_overflow")
	}
	w.metrics.ObserveEntry("remote")

	if w.buffer.Size() >= w.config.BufferSize || entry.Level() == LogLevelFatal {
		w.flushLocked()
	}
}

// Flush sends every pending entry now, regardless of the buffer threshold.
func (w *RemoteWriter) Flush() {
	if !w.enabled {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *RemoteWriter) flushLocked() {
	entries := w.buffer.Snapshot()
	if len(entries) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.config.Timeout)
	defer cancel()

	if err := w.sender.Send(ctx, entries); err != nil {
		w.metrics.ObserveFlush(false)
		w.log.Warn("failed to send remote log batch",
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
		return
	}

	w.buffer.Discard(len(entries))
	w.metrics.ObserveFlush(true)
}

// Pending is the number of entries waiting to be sent.
func (w *RemoteWriter) Pending() int {
	return w.buffer.Size()
}

// Close performs one final flush.
func (w *RemoteWriter) Close() error {
	w.Flush()
	if w.sender != nil {
		return w.sender.Close()
	}
	return nil
}
