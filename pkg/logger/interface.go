package logger

import (
	"context"
)

type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warning(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	Log(level LogLevel, msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Sink receives every entry that passes the service's level filter. Sinks
// never report write failures to the caller.
type Sink interface {
	Write(entry LogEntry)
	Close() error
}

// Sender delivers a batch of entries to a remote endpoint.
type Sender interface {
	Send(ctx context.Context, entries []LogEntry) error
	Close() error
}

var (
	_ Logger = (*Service)(nil)
	_ Logger = (*fieldLogger)(nil)
	_ Sink   = (*ConsoleWriter)(nil)
	_ Sink   = (*FileWriter)(nil)
	_ Sink   = (*RemoteWriter)(nil)
	_ Sender = (*HTTPSender)(nil)
)
