package uploader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kerlexov/applog/pkg/metrics"
	"github.com/kerlexov/applog/pkg/retry"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const maxLineSize = 10 << 20

// Uploader pushes already-written log files to a remote collector. Only one
// batch operation runs at a time; a concurrent call is rejected, not queued.
type Uploader struct {
	config  Config
	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Pipeline
	sleep   retry.SleepFunc
	now     func() time.Time

	uploading atomic.Bool

	mu         sync.RWMutex
	lastUpload time.Time
}

type Option func(*Uploader)

func WithHTTPClient(client *http.Client) Option {
	return func(u *Uploader) { u.client = client }
}

func WithLogger(log *zap.Logger) Option {
	return func(u *Uploader) { u.log = log }
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(u *Uploader) { u.metrics = m }
}

func WithSleep(sleep retry.SleepFunc) Option {
	return func(u *Uploader) { u.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

func New(config Config, opts ...Option) (*Uploader, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	u := &Uploader{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    zap.NewNop(),
		sleep:  retry.ContextSleep,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func (u *Uploader) Config() Config {
	return u.config
}

func (u *Uploader) LastUpload() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.lastUpload
}

func (u *Uploader) IsUploading() bool {
	return u.uploading.Load()
}

// ShouldUploadNow reports whether nothing was uploaded yet or the configured
// interval has elapsed since the last successful upload.
func (u *Uploader) ShouldUploadNow() bool {
	last := u.LastUpload()
	if last.IsZero() {
		return true
	}
	return u.now().Sub(last) >= u.config.UploadInterval
}

// Upload sends files using the configured format.
func (u *Uploader) Upload(ctx context.Context, files []string) Result {
	if u.config.Format == FormatJSON {
		return u.UploadAsJSON(ctx, files)
	}
	return u.UploadLogFiles(ctx, files)
}

func busyResult(total int) Result {
	return Result{
		Success:    false,
		Message:    "upload already in progress",
		TotalCount: total,
	}
}

// UploadLogFile sends a single file as multipart/form-data.
func (u *Uploader) UploadLogFile(ctx context.Context, path string) Result {
	if err := u.sendMultipart(ctx, path); err != nil {
		return Result{
			Success:    false,
			Message:    err.Error(),
			TotalCount: 1,
		}
	}
	return Result{
		Success:       true,
		Message:       fmt.Sprintf("uploaded %s", filepath.Base(path)),
		UploadedCount: 1,
		TotalCount:    1,
	}
}

// UploadLogFiles uploads each file in turn, retrying a failed file with a
// linear backoff before counting it as failed.
func (u *Uploader) UploadLogFiles(ctx context.Context, files []string) Result {
	if !u.uploading.CompareAndSwap(false, true) {
		return busyResult(len(files))
	}
	defer u.uploading.Store(false)

	result := Result{TotalCount: len(files)}
	if len(files) == 0 {
		result.Success = true
		result.Message = "no log files to upload"
		u.markUploaded()
		return result
	}

	backoff := retry.NewLinearBackoff(retry.LinearBackoffConfig{
		Step:        u.config.RetryStep,
		MaxAttempts: u.config.MaxRetries,
	})
	if u.sleep != nil {
		backoff.Sleep = u.sleep
	}

	var errs error
	var details []string
	for _, file := range files {
		name := filepath.Base(file)
		attempt := 0
		var lastMessage string
		err := backoff.Do(ctx, func() error {
			attempt++
			single := u.UploadLogFile(ctx, file)
			if single.Success {
				return nil
			}
			lastMessage = single.Message
			u.log.Warn("log file upload attempt failed",
				zap.String("file", name),
				zap.Int("attempt", attempt),
				zap.String("reason", single.Message),
			)
			return ErrServerError(single.Message, nil)
		})
		if err != nil {
			if lastMessage == "" {
				lastMessage = err.Error()
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			result.FailedFiles = append(result.FailedFiles, name)
			details = append(details, fmt.Sprintf("%s: %s", name, lastMessage))
			continue
		}
		result.UploadedCount++
	}

	if len(result.FailedFiles) == 0 {
		result.Success = true
		result.Message = fmt.Sprintf("uploaded %d files", result.UploadedCount)
		u.markUploaded()
	} else {
		result.Message = fmt.Sprintf("%d files failed: %s", len(result.FailedFiles), strings.Join(details, "; "))
		u.log.Warn("log upload finished with failures",
			zap.Int("uploaded", result.UploadedCount),
			zap.Int("total", result.TotalCount),
			zap.Error(errs),
		)
	}
	u.metrics.ObserveUpload(string(FormatMultipart), result.Success)
	return result
}

type jsonEnvelope struct {
	Logs       []map[string]interface{} `json:"logs"`
	UploadTime string                   `json:"uploadTime"`
	FileCount  int                      `json:"fileCount"`
	LogCount   int                      `json:"logCount"`
}

// UploadAsJSON merges the records of every file into one JSON document and
// posts it once. Lines that are not valid JSON objects are counted and
// skipped.
func (u *Uploader) UploadAsJSON(ctx context.Context, files []string) Result {
	if !u.uploading.CompareAndSwap(false, true) {
		return busyResult(len(files))
	}
	defer u.uploading.Store(false)

	result := Result{TotalCount: len(files)}
	logs := make([]map[string]interface{}, 0)
	fileCount := 0

	for _, file := range files {
		records, parseErrors, err := readRecords(file)
		if err != nil {
			u.log.Warn("failed to read log file for upload", zap.String("file", file), zap.Error(err))
			result.FailedFiles = append(result.FailedFiles, filepath.Base(file))
			continue
		}
		fileCount++
		result.ParseErrors += parseErrors
		logs = append(logs, records...)
	}

	if result.ParseErrors > 0 {
		u.log.Warn("skipped malformed log lines", zap.Int("count", result.ParseErrors))
	}

	if len(logs) == 0 {
		result.Message = fmt.Sprintf("no valid logs to upload (%d parse errors)", result.ParseErrors)
		u.metrics.ObserveUpload(string(FormatJSON), false)
		return result
	}

	envelope := jsonEnvelope{
		Logs:       logs,
		UploadTime: u.now().UTC().Format(time.RFC3339Nano),
		FileCount:  fileCount,
		LogCount:   len(logs),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		result.Message = ErrIO("failed to encode upload", err).Error()
		u.metrics.ObserveUpload(string(FormatJSON), false)
		return result
	}

	if err := u.post(ctx, "application/json", bytes.NewReader(body)); err != nil {
		result.Message = err.Error()
		u.log.Warn("json log upload failed", zap.Error(err))
		u.metrics.ObserveUpload(string(FormatJSON), false)
		return result
	}

	result.Success = true
	result.UploadedCount = fileCount
	result.LogCount = len(logs)
	result.Message = fmt.Sprintf("uploaded %d logs from %d files", len(logs), fileCount)
	if result.ParseErrors > 0 {
		result.Message += fmt.Sprintf(" (%d malformed lines skipped)", result.ParseErrors)
	}
	u.markUploaded()
	u.metrics.ObserveUpload(string(FormatJSON), true)
	return result
}

func (u *Uploader) markUploaded() {
	u.mu.Lock()
	u.lastUpload = u.now()
	u.mu.Unlock()
}

func (u *Uploader) sendMultipart(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrIO("failed to read log file", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := [][2]string{
		{"fileName", filepath.Base(path)},
		{"uploadTime", u.now().UTC().Format(time.RFC3339Nano)},
		{"fileSize", strconv.Itoa(len(data))},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return ErrIO("failed to build multipart body", err)
		}
	}
	part, err := writer.CreateFormFile("logFile", filepath.Base(path))
	if err != nil {
		return ErrIO("failed to build multipart body", err)
	}
	if _, err := part.Write(data); err != nil {
		return ErrIO("failed to build multipart body", err)
	}
	if err := writer.Close(); err != nil {
		return ErrIO("failed to build multipart body", err)
	}

	return u.post(ctx, writer.FormDataContentType(), &body)
}

func (u *Uploader) post(ctx context.Context, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, u.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.config.Endpoint, body)
	if err != nil {
		return ErrNetworkError("failed to create request", err)
	}
	for key, value := range u.config.Headers {
		req.Header.Set(key, value)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return ErrNetworkError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ErrServerError(
			fmt.Sprintf("server returned status %d", resp.StatusCode),
			fmt.Errorf("response body: %s", strings.TrimSpace(string(respBody))),
		)
	}
	return nil
}

func readRecords(path string) ([]map[string]interface{}, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var records []map[string]interface{}
	parseErrors := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record map[string]interface{}
		if err := json.Unmarshal([]byte(line), &record); err != nil || record == nil {
			parseErrors++
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}
	return records, parseErrors, nil
}
