package logger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// LogEntry is a single immutable log event. Use NewEntry and the With*
// methods, which return modified copies, to build one.
type LogEntry struct {
	timestamp  time.Time
	level      LogLevel
	message    string
	context    map[string]interface{}
	err        interface{}
	stackTrace string
}

type entryJSON struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Message    string                 `json:"message"`
	Context    map[string]interface{} `json:"context,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StackTrace []string               `json:"stackTrace,omitempty"`
}

const timestampLayout = time.RFC3339Nano

func NewEntry(level LogLevel, message string) LogEntry {
	return NewEntryAt(time.Now().UTC(), level, message)
}

func NewEntryAt(ts time.Time, level LogLevel, message string) LogEntry {
	return LogEntry{
		timestamp: ts.Round(0),
		level:     level,
		message:   message,
	}
}

func (e LogEntry) WithContext(context map[string]interface{}) LogEntry {
	e.context = copyContext(context)
	return e
}

func (e LogEntry) WithError(err interface{}) LogEntry {
	e.err = err
	return e
}

func (e LogEntry) WithStackTrace(stackTrace string) LogEntry {
	e.stackTrace = stackTrace
	return e
}

func (e LogEntry) Timestamp() time.Time { return e.timestamp }
func (e LogEntry) Level() LogLevel      { return e.level }
func (e LogEntry) Message() string      { return e.message }
func (e LogEntry) ErrorValue() interface{} {
	return e.err
}
func (e LogEntry) StackTrace() string { return e.stackTrace }

// Context returns a copy of the entry's context map, or nil when empty.
func (e LogEntry) Context() map[string]interface{} {
	return copyContext(e.context)
}

// ErrorString is the serialized form of the error value.
func (e LogEntry) ErrorString() string {
	switch v := e.err.(type) {
	case nil:
		return ""
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func (e LogEntry) StackLines() []string {
	if e.stackTrace == "" {
		return nil
	}
	return strings.Split(e.stackTrace, "\n")
}

func (e LogEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Timestamp:  e.timestamp.Format(timestampLayout),
		Level:      e.level,
		Message:    e.message,
		Context:    e.context,
		Error:      e.ErrorString(),
		StackTrace: e.StackLines(),
	})
}

func (e *LogEntry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ts, err := time.Parse(timestampLayout, raw.Timestamp)
	if err != nil {
		return ErrParse("invalid timestamp", err)
	}

	*e = LogEntry{
		timestamp:  ts,
		level:      raw.Level,
		message:    raw.Message,
		context:    raw.Context,
		stackTrace: strings.Join(raw.StackTrace, "\n"),
	}
	if raw.Error != "" {
		e.err = raw.Error
	}
	return nil
}

// ToJSON renders the entry as one line of the local file format.
func (e LogEntry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ParseEntry(data []byte) (LogEntry, error) {
	var e LogEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return LogEntry{}, err
	}
	return e, nil
}

// FormattedString renders the entry for humans, one section per line.
func (e LogEntry) FormattedString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", e.timestamp.Format(timestampLayout), strings.ToUpper(e.level.String()), e.message)

	if len(e.context) > 0 {
		b.WriteString("\nContext: ")
		keys := make([]string, 0, len(e.context))
		for k := range e.context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, e.context[k])
		}
	}
	if s := e.ErrorString(); s != "" {
		b.WriteString("\nError: ")
		b.WriteString(s)
	}
	if e.stackTrace != "" {
		b.WriteString("\nStack Trace:\n")
		b.WriteString(e.stackTrace)
	}
	return b.String()
}

func copyContext(src map[string]interface{}) map[string]interface{} {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Field is a key/value pair attached to a log call. The keys FieldKeyError
// and FieldKeyStackTrace populate the entry's error and stack trace instead
// of its context.
type Field struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

const (
	FieldKeyError      = "error"
	FieldKeyStackTrace = "stackTrace"
)

func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

func Err(err error) Field {
	return Field{Key: FieldKeyError, Value: err}
}

func Stack(trace string) Field {
	return Field{Key: FieldKeyStackTrace, Value: trace}
}
