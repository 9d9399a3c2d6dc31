package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kerlexov/applog/pkg/metrics"
	"go.uber.org/zap"
)

const (
	logFileExt = ".log"
	dayLayout  = "2006-01-02"
)

// FileWriter appends JSON lines to one file per calendar day under a
// dedicated directory. A file that grows past MaxFileSize rolls over to a
// numbered sibling for the same day, and only the MaxFiles most recently
// modified *.log files are kept.
type FileWriter struct {
	enabled bool
	config  FileConfig
	prefix  string
	log     *zap.Logger
	metrics *metrics.Pipeline
	now     func() time.Time

	mu          sync.Mutex
	dir         string
	currentFile string
	currentDay  string
	rotations   int
}

func NewFileWriter(enabled bool, prefix string, config FileConfig, log *zap.Logger) *FileWriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileWriter{
		enabled: enabled,
		config:  config,
		prefix:  prefix,
		log:     log,
		now:     time.Now,
	}
}

// Initialize creates the log directory and the current day's file, then
// prunes old files. Failures are logged, never returned.
func (w *FileWriter) Initialize() {
	if !w.enabled {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.initializeLocked()
}

func (w *FileWriter) initializeLocked() {
	dir, err := w.resolveDir()
	if err != nil {
		w.log.Warn("failed to resolve log directory", zap.Error(err))
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.log.Warn("failed to create log directory", zap.String("dir", dir), zap.Error(err))
		return
	}
	w.dir = dir

	day := w.now().Format(dayLayout)
	path := w.latestFileForDay(day)
	if err := touch(path); err != nil {
		w.log.Warn("failed to create log file", zap.String("file", path), zap.Error(err))
		return
	}
	w.currentFile = path
	w.currentDay = day

	w.pruneLocked()
}

func (w *FileWriter) resolveDir() (string, error) {
	if w.config.Dir != "" {
		return w.config.Dir, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", ErrIO("no log directory configured and no user cache directory available", err)
	}
	return filepath.Join(cacheDir, "applog", "logs"), nil
}

func (w *FileWriter) Write(entry LogEntry) {
	if !w.enabled {
		return
	}

	data, err := entry.ToJSON()
	if err != nil {
		w.log.Warn("failed to encode log entry", zap.Error(err))
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == "" || w.currentDay != w.now().Format(dayLayout) {
		w.initializeLocked()
		if w.currentFile == "" {
			return
		}
	}

	if err := appendFile(w.currentFile, data); err != nil {
		w.log.Warn("failed to append log file", zap.String("file", w.currentFile), zap.Error(err))
		return
	}
	w.metrics.ObserveEntry("file")

	info, err := os.Stat(w.currentFile)
	if err != nil {
		w.log.Warn("failed to stat log file", zap.String("file", w.currentFile), zap.Error(err))
		return
	}
	if info.Size() > w.config.MaxFileSize {
		w.rotateLocked()
	}
}

func (w *FileWriter) rotateLocked() {
	w.rotations++
	w.metrics.ObserveRotation()

	next := w.nextRolloverFile(w.currentDay)
	if err := touch(next); err != nil {
		w.log.Warn("failed to roll over log file", zap.String("file", next), zap.Error(err))
	} else {
		w.currentFile = next
	}
	w.pruneLocked()
}

// pruneLocked keeps the newest MaxFiles log files. The current file always
// survives.
func (w *FileWriter) pruneLocked() {
	files, err := w.listLogFiles()
	if err != nil {
		w.log.Warn("failed to list log files", zap.String("dir", w.dir), zap.Error(err))
		return
	}
	if len(files) <= w.config.MaxFiles {
		return
	}

	kept := 0
	for _, file := range files {
		if file == w.currentFile || kept < w.config.MaxFiles-1 {
			if file != w.currentFile {
				kept++
			}
			continue
		}
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			w.log.Warn("failed to delete old log file", zap.String("file", file), zap.Error(err))
		}
	}
}

func (w *FileWriter) baseName(day string) string {
	return w.prefix + day
}

// latestFileForDay returns the highest-numbered rollover file for day, or
// the plain dated file when none exists.
func (w *FileWriter) latestFileForDay(day string) string {
	base := w.baseName(day)
	path := filepath.Join(w.dir, base+logFileExt)

	matches, _ := filepath.Glob(filepath.Join(w.dir, base+".*"+logFileExt))
	highest := 0
	for _, match := range matches {
		n := rolloverIndex(filepath.Base(match), base)
		if n > highest {
			highest = n
			path = match
		}
	}
	return path
}

func (w *FileWriter) nextRolloverFile(day string) string {
	base := w.baseName(day)
	for n := 1; ; n++ {
		path := filepath.Join(w.dir, fmt.Sprintf("%s.%d%s", base, n, logFileExt))
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path
		}
	}
}

func rolloverIndex(name, base string) int {
	middle := strings.TrimSuffix(strings.TrimPrefix(name, base+"."), logFileExt)
	n, err := strconv.Atoi(middle)
	if err != nil {
		return 0
	}
	return n
}

// ReadLogs parses the current file back into entries. Malformed lines are
// skipped or abort the read depending on the configured ReadPolicy.
func (w *FileWriter) ReadLogs() ([]LogEntry, error) {
	w.mu.Lock()
	path := w.currentFile
	w.mu.Unlock()

	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, ErrIO("failed to open log file", err)
	}
	defer f.Close()

	var entries []LogEntry
	skipped := 0
	lineNo := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := ParseEntry([]byte(line))
		if err != nil {
			if w.config.ReadPolicy == ReadPolicyStrict {
				return entries, ErrParse(fmt.Sprintf("malformed log line %d", lineNo), err)
			}
			skipped++
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return entries, ErrIO("failed to read log file", err)
	}
	if skipped > 0 {
		w.log.Warn("skipped malformed log lines", zap.String("file", path), zap.Int("count", skipped))
	}
	return entries, nil
}

// ClearLogs deletes every log file and starts a fresh current file.
func (w *FileWriter) ClearLogs() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := w.listLogFiles()
	if err != nil {
		return ErrIO("failed to list log files", err)
	}
	var firstErr error
	for _, file := range files {
		if err := os.Remove(file); err != nil && !errors.Is(err, os.ErrNotExist) && firstErr == nil {
			firstErr = ErrIO("failed to delete log file", err)
		}
	}

	w.currentFile = ""
	w.currentDay = ""
	if w.enabled {
		w.initializeLocked()
	}
	return firstErr
}

// LogFiles returns every *.log file in the log directory, newest first.
func (w *FileWriter) LogFiles() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.listLogFiles()
}

func (w *FileWriter) CurrentFile() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentFile
}

func (w *FileWriter) Dir() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir
}

// Rotations is the number of size-triggered rotations since construction.
func (w *FileWriter) Rotations() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rotations
}

func (w *FileWriter) Close() error {
	return nil
}

func (w *FileWriter) listLogFiles() ([]string, error) {
	if w.dir == "" {
		return nil, nil
	}
	dirEntries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type logFile struct {
		path    string
		modTime time.Time
	}
	files := make([]logFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || filepath.Ext(de.Name()) != logFileExt {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(w.dir, de.Name()), modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].modTime.Equal(files[j].modTime) {
			return files[i].modTime.After(files[j].modTime)
		}
		return files[i].path > files[j].path
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func appendFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
