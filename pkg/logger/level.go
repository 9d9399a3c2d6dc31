package logger

import (
	"fmt"
	"strings"
)

// LogLevel is the severity of an entry. Levels are ordered so they can be
// compared directly: LogLevelDebug < LogLevelInfo < ... < LogLevelFatal.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelFatal
)

var levelNames = [...]string{
	LogLevelDebug:   "debug",
	LogLevelInfo:    "info",
	LogLevelWarning: "warning",
	LogLevelError:   "error",
	LogLevelFatal:   "fatal",
}

func (l LogLevel) String() string {
	if l.Valid() {
		return levelNames[l]
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l LogLevel) Valid() bool {
	return l >= LogLevelDebug && l <= LogLevelFatal
}

func (l LogLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, ErrInvalidConfig(fmt.Sprintf("unknown log level %d", int(l)))
	}
	return []byte(levelNames[l]), nil
}

func (l *LogLevel) UnmarshalText(text []byte) error {
	level, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// ParseLevel accepts the lower-case level names, case-insensitively, and
// "warn" as an alias for warning.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warning", "warn":
		return LogLevelWarning, nil
	case "error":
		return LogLevelError, nil
	case "fatal":
		return LogLevelFatal, nil
	}
	return LogLevelDebug, ErrInvalidConfig(fmt.Sprintf("unknown log level %q", s))
}
