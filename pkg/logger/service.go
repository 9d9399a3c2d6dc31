package logger

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerlexov/applog/pkg/metrics"
	"github.com/kerlexov/applog/pkg/uploader"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	ContextKeyUserID    = "userId"
	ContextKeySessionID = "sessionId"
	ContextKeyScreen    = "screen"
)

// Service is the logging facade a host application creates once and passes
// down. It owns the console, file and remote sinks and the uploader.
//
// Log calls are synchronous: each entry is written to console, file and
// remote in that order before the call returns. Uploads run on a single
// background worker fed by a one-slot queue, so an upload trigger that
// arrives while another is pending is dropped rather than queued.
type Service struct {
	mu          sync.RWMutex
	initialized bool
	closed      bool
	config      Config

	console  *ConsoleWriter
	file     *FileWriter
	remote   *RemoteWriter
	uploader *uploader.Uploader

	userID    string
	sessionID string
	screen    string

	log           *zap.Logger
	metrics       *metrics.Pipeline
	consoleOutput io.Writer
	sender        Sender
	uploaderOpts  []uploader.Option
	now           func() time.Time

	uploadCh chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type Option func(*Service)

// WithDiagnostics sets the logger used for the pipeline's own warnings.
func WithDiagnostics(log *zap.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m *metrics.Pipeline) Option {
	return func(s *Service) { s.metrics = m }
}

func WithConsoleOutput(w io.Writer) Option {
	return func(s *Service) { s.consoleOutput = w }
}

// WithRemoteSender replaces the HTTP sender used by the remote sink.
func WithRemoteSender(sender Sender) Option {
	return func(s *Service) { s.sender = sender }
}

func WithUploaderOptions(opts ...uploader.Option) Option {
	return func(s *Service) { s.uploaderOpts = append(s.uploaderOpts, opts...) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(opts ...Option) *Service {
	s := &Service{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		log, err := zap.NewProduction()
		if err != nil {
			log = zap.NewNop()
		}
		s.log = log.Named("applog")
	}
	return s
}

// Initialize builds the sinks from config. It runs once; later calls are
// no-ops and return nil.
func (s *Service) Initialize(config Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	if err := config.Validate(); err != nil {
		return err
	}

	s.console = NewConsoleWriter(config.EnableConsole, config.ConsoleColor, s.consoleOutput)
	s.console.metrics = s.metrics

	s.file = NewFileWriter(config.EnableFile, config.FilePrefix, config.File, s.log)
	s.file.metrics = s.metrics
	s.file.now = s.now
	s.file.Initialize()

	sender := s.sender
	if sender == nil && config.EnableRemote {
		sender = NewHTTPSender(config.RemoteEndpoint, config.RemoteHeaders, config.Remote.Timeout)
	}
	s.remote = NewRemoteWriter(config.EnableRemote, config.Remote, sender, s.log)
	s.remote.metrics = s.metrics

	if config.Upload != nil {
		opts := append([]uploader.Option{
			uploader.WithLogger(s.log),
			uploader.WithMetrics(s.metrics),
		}, s.uploaderOpts...)
		up, err := uploader.New(*config.Upload, opts...)
		if err != nil {
			return err
		}
		s.uploader = up
		upload := up.Config()
		config.Upload = &upload

		if config.Upload.UploadDaily || config.Upload.UploadOnError {
			ctx, cancel := context.WithCancel(context.Background())
			s.cancel = cancel
			s.uploadCh = make(chan struct{}, 1)

			s.wg.Add(2)
			go s.uploadWorker(ctx)
			go s.uploadTimer(ctx, config.Upload.UploadInterval)
		}
	}

	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}

	s.config = config
	s.initialized = true
	return nil
}

func (s *Service) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Service) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

func (s *Service) SetUserID(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Service) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Service) SetSessionID(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
}

func (s *Service) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *Service) SetScreen(screen string) {
	s.mu.Lock()
	s.screen = screen
	s.mu.Unlock()
}

func (s *Service) Screen() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.screen
}

func (s *Service) ClearContext() {
	s.mu.Lock()
	s.userID = ""
	s.sessionID = ""
	s.screen = ""
	s.mu.Unlock()
}

func (s *Service) Debug(msg string, fields ...Field) {
	s.Log(LogLevelDebug, msg, fields...)
}

func (s *Service) Info(msg string, fields ...Field) {
	s.Log(LogLevelInfo, msg, fields...)
}

func (s *Service) Warning(msg string, fields ...Field) {
	s.Log(LogLevelWarning, msg, fields...)
}

func (s *Service) Error(msg string, fields ...Field) {
	s.Log(LogLevelError, msg, fields...)
}

func (s *Service) Fatal(msg string, fields ...Field) {
	s.Log(LogLevelFatal, msg, fields...)
}

func (s *Service) WithFields(fields ...Field) Logger {
	return newFieldLogger(s, fields)
}

func (s *Service) Log(level LogLevel, msg string, fields ...Field) {
	s.logWith(level, msg, nil, fields)
}

func (s *Service) logWith(level LogLevel, msg string, defaults, fields []Field) {
	s.mu.RLock()
	initialized, closed := s.initialized, s.closed
	minLevel := s.config.MinLevel
	uploadOnError := s.config.Upload != nil && s.config.Upload.UploadOnError
	base := s.contextLocked()
	s.mu.RUnlock()

	if !initialized {
		s.log.Warn("dropping log entry",
			zap.String("level", level.String()),
			zap.String("message", msg),
			zap.Error(ErrNotInitialized()),
		)
		return
	}
	if closed {
		return
	}
	if level < minLevel {
		s.metrics.ObserveDrop("level")
		return
	}

	entry := buildEntry(s.now().UTC(), level, msg, base, defaults, fields)

	s.console.Write(entry)
	s.file.Write(entry)
	s.remote.Write(entry)

	if uploadOnError && level >= LogLevelError {
		s.requestUpload()
	}
}

func (s *Service) contextLocked() map[string]interface{} {
	base := make(map[string]interface{}, 3)
	if s.userID != "" {
		base[ContextKeyUserID] = s.userID
	}
	if s.sessionID != "" {
		base[ContextKeySessionID] = s.sessionID
	}
	if s.screen != "" {
		base[ContextKeyScreen] = s.screen
	}
	return base
}

// buildEntry merges process context, logger defaults and per-call fields,
// later sources winning on key collisions.
func buildEntry(ts time.Time, level LogLevel, msg string, base map[string]interface{}, groups ...[]Field) LogEntry {
	merged := base
	var errValue interface{}
	var stack string

	for _, fields := range groups {
		for _, field := range fields {
			switch field.Key {
			case FieldKeyError:
				errValue = field.Value
			case FieldKeyStackTrace:
				if trace, ok := field.Value.(string); ok {
					stack = trace
				}
			default:
				merged[field.Key] = field.Value
			}
		}
	}

	entry := NewEntryAt(ts, level, msg).WithContext(merged)
	if errValue != nil {
		entry = entry.WithError(errValue)
	}
	if stack != "" {
		entry = entry.WithStackTrace(stack)
	}
	return entry
}

// UploadLogs uploads every local log file now, in the configured format.
func (s *Service) UploadLogs(ctx context.Context) uploader.Result {
	s.mu.RLock()
	up, file := s.uploader, s.file
	s.mu.RUnlock()

	if up == nil || file == nil {
		return uploader.Result{Success: false, Message: "log upload is not configured"}
	}

	files, err := file.LogFiles()
	if err != nil {
		s.log.Warn("failed to list log files for upload", zap.Error(err))
		return uploader.Result{Success: false, Message: err.Error()}
	}
	return up.Upload(ctx, files)
}

// Flush forces the remote sink to send its buffer.
func (s *Service) Flush() {
	s.mu.RLock()
	remote := s.remote
	s.mu.RUnlock()
	if remote != nil {
		remote.Flush()
	}
}

func (s *Service) FileWriter() *FileWriter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

func (s *Service) RemoteWriter() *RemoteWriter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remote
}

func (s *Service) Uploader() *uploader.Uploader {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uploader
}

func (s *Service) requestUpload() {
	if s.uploadCh == nil {
		return
	}
	select {
	case s.uploadCh <- struct{}{}:
	default:
		s.metrics.ObserveDrop("upload_pending")
	}
}

func (s *Service) uploadWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.uploadCh:
			result := s.UploadLogs(ctx)
			if !result.Success {
				s.log.Warn("automatic log upload failed", zap.String("reason", result.Message))
			}
		}
	}
}

func (s *Service) uploadTimer(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if s.uploader.ShouldUploadNow() {
				s.requestUpload()
			}
			timer.Reset(interval)
		}
	}
}

// Close stops the upload goroutines, flushes the remote buffer and releases
// the console. The file sink needs no teardown.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	initialized := s.initialized
	cancel := s.cancel
	s.mu.Unlock()

	if !initialized {
		return nil
	}

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	var err error
	err = multierr.Append(err, s.remote.Close())
	err = multierr.Append(err, s.console.Close())
	err = multierr.Append(err, s.file.Close())
	_ = s.log.Sync()
	return err
}
