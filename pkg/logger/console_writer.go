package logger

import (
	"io"
	"os"
	"sort"

	"github.com/kerlexov/applog/pkg/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleWriter pretty-prints entries through a zap console encoder.
type ConsoleWriter struct {
	enabled bool
	core    zapcore.Core
	metrics *metrics.Pipeline
}

func NewConsoleWriter(enabled, color bool, output io.Writer) *ConsoleWriter {
	if output == nil {
		output = os.Stdout
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	encoderConfig.CallerKey = zapcore.OmitKey
	encoderConfig.NameKey = zapcore.OmitKey

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.Lock(zapcore.AddSync(output)),
		zapcore.DebugLevel,
	)

	return &ConsoleWriter{
		enabled: enabled,
		core:    core,
	}
}

func (w *ConsoleWriter) Write(entry LogEntry) {
	if !w.enabled {
		return
	}

	ent := zapcore.Entry{
		Level:   zapLevel(entry.Level()),
		Time:    entry.Timestamp(),
		Message: entry.Message(),
	}

	context := entry.Context()
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zapcore.Field, 0, len(keys)+1)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, context[k]))
	}

	// error and fatal entries carry the error and stack as structured
	// attachments instead of folding them into the message.
	if entry.Level() >= LogLevelError {
		switch v := entry.ErrorValue().(type) {
		case nil:
		case error:
			fields = append(fields, zap.NamedError("error", v))
		default:
			fields = append(fields, zap.String("error", entry.ErrorString()))
		}
		ent.Stack = entry.StackTrace()
	}

	// core.Write never exits the process, even at FatalLevel.
	_ = w.core.Write(ent, fields)
	w.metrics.ObserveEntry("console")
}

// Close flushes the encoder. Sync errors are ignored: syncing a terminal
// stdout fails with EINVAL on several platforms.
func (w *ConsoleWriter) Close() error {
	_ = w.core.Sync()
	return nil
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarning:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	case LogLevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
