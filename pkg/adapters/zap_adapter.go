package adapters

import (
	"sort"

	"github.com/kerlexov/applog/pkg/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapCore is a zapcore.Core that forwards every entry to a logger.Logger,
// so code already written against zap feeds the applog pipeline.
type ZapCore struct {
	target logger.Logger
	level  zapcore.LevelEnabler
}

func NewZapCore(target logger.Logger, level zapcore.LevelEnabler) zapcore.Core {
	if level == nil {
		level = zapcore.DebugLevel
	}
	return &ZapCore{
		target: target,
		level:  level,
	}
}

func (zc *ZapCore) Enabled(level zapcore.Level) bool {
	return zc.level.Enabled(level)
}

func (zc *ZapCore) With(fields []zapcore.Field) zapcore.Core {
	return &ZapCore{
		target: zc.target.WithFields(convertZapFields(fields)...),
		level:  zc.level,
	}
}

func (zc *ZapCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if zc.Enabled(entry.Level) {
		return checked.AddCore(entry, zc)
	}
	return checked
}

func (zc *ZapCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	converted := convertZapFields(fields)
	if entry.Stack != "" {
		converted = append(converted, logger.Stack(entry.Stack))
	}
	zc.target.Log(fromZapLevel(entry.Level), entry.Message, converted...)
	return nil
}

func (zc *ZapCore) Sync() error {
	return nil
}

func fromZapLevel(level zapcore.Level) logger.LogLevel {
	switch {
	case level <= zapcore.DebugLevel:
		return logger.LogLevelDebug
	case level == zapcore.InfoLevel:
		return logger.LogLevelInfo
	case level == zapcore.WarnLevel:
		return logger.LogLevelWarning
	case level == zapcore.ErrorLevel:
		return logger.LogLevelError
	default:
		return logger.LogLevelFatal
	}
}

// convertZapFields renders typed zap fields into plain values. zap.Error
// lands under the "error" key and so becomes the entry's error.
func convertZapFields(fields []zapcore.Field) []logger.Field {
	if len(fields) == 0 {
		return nil
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, field := range fields {
		field.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	converted := make([]logger.Field, 0, len(keys))
	for _, k := range keys {
		converted = append(converted, logger.F(k, enc.Fields[k]))
	}
	return converted
}

func NewZapLogger(target logger.Logger) *zap.Logger {
	return zap.New(NewZapCore(target, zapcore.DebugLevel))
}

func NewZapSugaredLogger(target logger.Logger) *zap.SugaredLogger {
	return NewZapLogger(target).Sugar()
}
