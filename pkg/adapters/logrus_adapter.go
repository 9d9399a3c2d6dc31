package adapters

import (
	"fmt"
	"sort"

	"github.com/kerlexov/applog/pkg/logger"
	"github.com/sirupsen/logrus"
)

// LogrusHook forwards logrus entries to a logger.Logger.
type LogrusHook struct {
	target logger.Logger
	levels []logrus.Level
}

func NewLogrusHook(target logger.Logger) *LogrusHook {
	return &LogrusHook{
		target: target,
		levels: logrus.AllLevels,
	}
}

func (hook *LogrusHook) Levels() []logrus.Level {
	return hook.levels
}

func (hook *LogrusHook) Fire(entry *logrus.Entry) error {
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]logger.Field, 0, len(keys))
	for _, key := range keys {
		value := entry.Data[key]
		// logrus.ErrorKey is "error", which the pipeline already treats as
		// the entry's error.
		if err, ok := value.(error); ok && key == logrus.ErrorKey {
			fields = append(fields, logger.Err(err))
			continue
		}
		fields = append(fields, logger.F(key, value))
	}

	hook.target.Log(fromLogrusLevel(entry.Level), entry.Message, fields...)
	return nil
}

func fromLogrusLevel(level logrus.Level) logger.LogLevel {
	switch level {
	case logrus.TraceLevel, logrus.DebugLevel:
		return logger.LogLevelDebug
	case logrus.InfoLevel:
		return logger.LogLevelInfo
	case logrus.WarnLevel:
		return logger.LogLevelWarning
	case logrus.ErrorLevel:
		return logger.LogLevelError
	case logrus.FatalLevel, logrus.PanicLevel:
		return logger.LogLevelFatal
	default:
		return logger.LogLevelInfo
	}
}

func InstallLogrusHook(target logger.Logger) {
	logrus.AddHook(NewLogrusHook(target))
}

// LogrusFormatter forwards each entry and then renders it with the wrapped
// formatter, or a bare "[level] message" line without one.
type LogrusFormatter struct {
	hook     *LogrusHook
	original logrus.Formatter
}

func NewLogrusFormatter(target logger.Logger, original logrus.Formatter) *LogrusFormatter {
	return &LogrusFormatter{
		hook:     NewLogrusHook(target),
		original: original,
	}
}

func (f *LogrusFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	if err := f.hook.Fire(entry); err != nil {
		return nil, err
	}

	if f.original != nil {
		return f.original.Format(entry)
	}

	return []byte(fmt.Sprintf("[%s] %s\n", entry.Level.String(), entry.Message)), nil
}
