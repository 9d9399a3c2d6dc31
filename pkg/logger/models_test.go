package logger

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"warning", LogLevelWarning, false},
		{"warn", LogLevelWarning, false},
		{" error ", LogLevelError, false},
		{"fatal", LogLevelFatal, false},
		{"verbose", LogLevelDebug, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", test.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if level != test.expected {
				t.Errorf("Expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelOrdering(t *testing.T) {
	levels := []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelFatal}
	for i := 1; i < len(levels); i++ {
		if !(levels[i-1] < levels[i]) {
			t.Errorf("Expected %v < %v", levels[i-1], levels[i])
		}
	}
	if LogLevel(9).Valid() {
		t.Error("Expected level 9 to be invalid")
	}
}

func TestEntryJSONRoundTrip(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)
	entry := NewEntryAt(ts, LogLevelError, "payment failed").
		WithContext(map[string]interface{}{"userId": "u1", "amount": 12.5}).
		WithError(errors.New("card declined")).
		WithStackTrace("main.pay\nmain.main")

	data, err := entry.ToJSON()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !strings.Contains(string(data), `"level":"error"`) {
		t.Errorf("Expected level name in JSON, got %s", data)
	}
	if !strings.Contains(string(data), `"stackTrace":["main.pay","main.main"]`) {
		t.Errorf("Expected stack trace as line array, got %s", data)
	}

	parsed, err := ParseEntry(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !parsed.Timestamp().Equal(ts) {
		t.Errorf("Expected timestamp %v, got %v", ts, parsed.Timestamp())
	}
	if parsed.Level() != LogLevelError {
		t.Errorf("Expected level error, got %v", parsed.Level())
	}
	if parsed.Message() != "payment failed" {
		t.Errorf("Expected message, got %q", parsed.Message())
	}
	if parsed.ErrorString() != "card declined" {
		t.Errorf("Expected error string, got %q", parsed.ErrorString())
	}
	if parsed.StackTrace() != "main.pay\nmain.main" {
		t.Errorf("Expected stack trace, got %q", parsed.StackTrace())
	}
	ctx := parsed.Context()
	if ctx["userId"] != "u1" || ctx["amount"] != 12.5 {
		t.Errorf("Expected context to survive, got %v", ctx)
	}
}

func TestEntryOmitsEmptyOptionalFields(t *testing.T) {
	entry := NewEntryAt(time.Unix(0, 0).UTC(), LogLevelInfo, "hello")
	data, err := entry.ToJSON()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	for _, key := range []string{"context", "error", "stackTrace"} {
		if strings.Contains(string(data), `"`+key+`"`) {
			t.Errorf("Expected %s to be omitted, got %s", key, data)
		}
	}
}

func TestParseEntryRejectsGarbage(t *testing.T) {
	inputs := []string{
		"not json",
		`{"timestamp":"yesterday","level":"info","message":"x"}`,
		`{"timestamp":"2024-01-01T00:00:00Z","level":"loud","message":"x"}`,
	}
	for _, input := range inputs {
		if _, err := ParseEntry([]byte(input)); err == nil {
			t.Errorf("Expected parse error for %s", input)
		}
	}
}

func TestEntryContextIsCopied(t *testing.T) {
	source := map[string]interface{}{"k": "v"}
	entry := NewEntry(LogLevelInfo, "msg").WithContext(source)

	source["k"] = "changed"
	if entry.Context()["k"] != "v" {
		t.Error("Expected entry to be unaffected by later changes to the source map")
	}

	view := entry.Context()
	view["k"] = "mutated"
	if entry.Context()["k"] != "v" {
		t.Error("Expected Context to return a copy")
	}
}

func TestFormattedString(t *testing.T) {
	entry := NewEntryAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), LogLevelWarning, "disk low").
		WithContext(map[string]interface{}{"b": 2, "a": 1}).
		WithError("quota").
		WithStackTrace("frame")

	expected := "[2024-01-02T03:04:05Z] WARNING: disk low\nContext: a=1, b=2\nError: quota\nStack Trace:\nframe"
	if got := entry.FormattedString(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}
