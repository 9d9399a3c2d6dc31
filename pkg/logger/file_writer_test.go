package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestFileWriter(t *testing.T, config FileConfig, now time.Time) *FileWriter {
	t.Helper()
	if config.Dir == "" {
		config.Dir = t.TempDir()
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 1 << 20
	}
	if config.MaxFiles == 0 {
		config.MaxFiles = 5
	}
	w := NewFileWriter(true, "app_", config, nil)
	w.now = func() time.Time { return now }
	w.Initialize()
	return w
}

func TestFileWriterCreatesDailyFile(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.Local)
	w := newTestFileWriter(t, FileConfig{}, now)

	expected := filepath.Join(w.Dir(), "app_2024-05-17.log")
	if w.CurrentFile() != expected {
		t.Errorf("Expected current file %s, got %s", expected, w.CurrentFile())
	}
	if _, err := os.Stat(expected); err != nil {
		t.Errorf("Expected file to exist after Initialize, got %v", err)
	}
}

func TestFileWriterAppendsJSONLines(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	w := newTestFileWriter(t, FileConfig{}, now)

	w.Write(NewEntryAt(now, LogLevelInfo, "first"))
	w.Write(NewEntryAt(now, LogLevelError, "second").WithError("boom"))

	data, err := os.ReadFile(w.CurrentFile())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d", len(lines))
	}

	entries, err := w.ReadLogs()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message() != "first" || entries[1].ErrorString() != "boom" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestFileWriterRotatesOnSize(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	entry := NewEntryAt(now, LogLevelInfo, "fixed size message")
	data, err := entry.ToJSON()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	lineLen := int64(len(data) + 1)

	w := newTestFileWriter(t, FileConfig{MaxFileSize: lineLen*5/2, MaxFiles: 5}, now)
	first := w.CurrentFile()

	w.Write(entry)
	w.Write(entry)
	if w.Rotations() != 0 {
		t.Fatalf("Expected no rotation after two writes, got %d", w.Rotations())
	}

	w.Write(entry)
	if w.Rotations() != 1 {
		t.Fatalf("Expected one rotation after the third write, got %d", w.Rotations())
	}

	expected := filepath.Join(w.Dir(), "app_2024-05-17.1.log")
	if w.CurrentFile() != expected {
		t.Errorf("Expected rollover to %s, got %s", expected, w.CurrentFile())
	}

	info, err := os.Stat(first)
	if err != nil {
		t.Fatalf("Expected rotated file to remain, got %v", err)
	}
	if info.Size() != 3*lineLen {
		t.Errorf("Expected rotated file to hold 3 lines, got %d bytes", info.Size())
	}

	w.Write(entry)
	entries, err := w.ReadLogs()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected new file to hold 1 entry, got %d", len(entries))
	}
}

func TestFileWriterPrunesToMaxFiles(t *testing.T) {
	dir := t.TempDir()
	old := time.Now().Add(-48 * time.Hour)

	for i := 0; i < 7; i++ {
		path := filepath.Join(dir, fmt.Sprintf("app_2020-01-%02d.log", i+1))
		if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
		mod := old.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	w := newTestFileWriter(t, FileConfig{Dir: dir, MaxFiles: 3}, time.Now())

	files, err := w.LogFiles()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("Expected 3 files after pruning, got %d: %v", len(files), files)
	}
	if files[0] != w.CurrentFile() {
		t.Errorf("Expected current file first, got %v", files)
	}
	for _, name := range []string{"app_2020-01-07.log", "app_2020-01-06.log"} {
		found := false
		for _, f := range files {
			if filepath.Base(f) == name {
				found = true
			}
		}
		if !found {
			t.Errorf("Expected newest file %s to survive, got %v", name, files)
		}
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("Expected non-log file to be untouched, got %v", err)
	}
}

func TestFileWriterResumesLatestRollover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"app_2024-05-17.log", "app_2024-05-17.1.log", "app_2024-05-17.2.log"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	now := time.Date(2024, 5, 17, 18, 0, 0, 0, time.Local)
	w := newTestFileWriter(t, FileConfig{Dir: dir}, now)

	expected := filepath.Join(dir, "app_2024-05-17.2.log")
	if w.CurrentFile() != expected {
		t.Errorf("Expected %s, got %s", expected, w.CurrentFile())
	}
}

func TestFileWriterDayRollover(t *testing.T) {
	now := time.Date(2024, 5, 17, 23, 59, 0, 0, time.Local)
	w := newTestFileWriter(t, FileConfig{}, now)
	w.Write(NewEntry(LogLevelInfo, "late"))

	w.mu.Lock()
	w.now = func() time.Time { return now.Add(2 * time.Minute) }
	w.mu.Unlock()
	w.Write(NewEntry(LogLevelInfo, "early"))

	if filepath.Base(w.CurrentFile()) != "app_2024-05-18.log" {
		t.Errorf("Expected next day's file, got %s", w.CurrentFile())
	}
	files, err := w.LogFiles()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %v", files)
	}
}

func TestFileWriterReadPolicy(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		policy      ReadPolicy
		expectError bool
		expectCount int
	}{
		{name: "skip", policy: ReadPolicySkip, expectError: false, expectCount: 2},
		{name: "strict", policy: ReadPolicyStrict, expectError: true, expectCount: 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			w := newTestFileWriter(t, FileConfig{ReadPolicy: test.policy}, now)
			w.Write(NewEntryAt(now, LogLevelInfo, "before"))
			if err := appendFile(w.CurrentFile(), []byte("{broken\n")); err != nil {
				t.Fatal(err)
			}
			w.Write(NewEntryAt(now, LogLevelInfo, "after"))

			entries, err := w.ReadLogs()
			if test.expectError && err == nil {
				t.Error("Expected parse error, got nil")
			}
			if !test.expectError && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if len(entries) != test.expectCount {
				t.Errorf("Expected %d entries, got %d", test.expectCount, len(entries))
			}
		})
	}
}

func TestFileWriterClearLogs(t *testing.T) {
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)
	w := newTestFileWriter(t, FileConfig{}, now)
	w.Write(NewEntryAt(now, LogLevelInfo, "to be cleared"))

	if err := w.ClearLogs(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	entries, err := w.ReadLogs()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries after clear, got %d", len(entries))
	}
	files, _ := w.LogFiles()
	if len(files) != 1 {
		t.Errorf("Expected a fresh current file after clear, got %v", files)
	}
}

func TestFileWriterDisabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := NewFileWriter(false, "app_", FileConfig{Dir: dir, MaxFileSize: 1024, MaxFiles: 2}, nil)
	w.Initialize()
	w.Write(NewEntry(LogLevelError, "ignored"))

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("Expected disabled writer not to create %s", dir)
	}
	entries, err := w.ReadLogs()
	if err != nil || len(entries) != 0 {
		t.Errorf("Expected no entries and no error, got %d, %v", len(entries), err)
	}
}
