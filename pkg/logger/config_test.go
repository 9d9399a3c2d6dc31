package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kerlexov/applog/pkg/uploader"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if !config.EnableConsole || !config.EnableFile || config.EnableRemote {
		t.Errorf("Expected console and file on, remote off, got %+v", config)
	}
	if config.MinLevel != LogLevelDebug {
		t.Errorf("Expected debug min level, got %v", config.MinLevel)
	}
	if config.FilePrefix != "app_" {
		t.Errorf("Expected default prefix app_, got %s", config.FilePrefix)
	}
	if config.File.MaxFileSize != 10*1024*1024 || config.File.MaxFiles != 5 {
		t.Errorf("Unexpected file defaults: %+v", config.File)
	}
	if config.Remote.MinLevel != LogLevelError || config.Remote.BufferSize != 10 {
		t.Errorf("Unexpected remote defaults: %+v", config.Remote)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		expectError bool
	}{
		{
			name:        "Valid default config",
			modify:      func(c *Config) {},
			expectError: false,
		},
		{
			name:        "Remote without endpoint",
			modify:      func(c *Config) { c.EnableRemote = true },
			expectError: true,
		},
		{
			name: "Malformed remote endpoint",
			modify: func(c *Config) {
				c.EnableRemote = true
				c.RemoteEndpoint = "not a url"
			},
			expectError: true,
		},
		{
			name:        "Unknown min level",
			modify:      func(c *Config) { c.MinLevel = LogLevel(7) },
			expectError: true,
		},
		{
			name:        "Unknown read policy",
			modify:      func(c *Config) { c.File.ReadPolicy = "lenient" },
			expectError: true,
		},
		{
			name:        "Upload without endpoint",
			modify:      func(c *Config) { c.Upload = &uploader.Config{} },
			expectError: true,
		},
		{
			name: "Valid upload config",
			modify: func(c *Config) {
				c.Upload = &uploader.Config{Endpoint: "https://logs.example.com/upload", Format: uploader.FormatJSON}
			},
			expectError: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.modify(&config)
			err := config.Validate()
			if test.expectError && err == nil {
				t.Error("Expected validation error, got nil")
			}
			if !test.expectError && err != nil {
				t.Errorf("Expected no validation error, got %v", err)
			}
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	config := Config{
		Remote: RemoteConfig{BufferSize: 50, MaxPending: 20},
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.FilePrefix != "app_" {
		t.Errorf("Expected prefix default, got %q", config.FilePrefix)
	}
	if config.File.MaxFiles != 5 || config.File.ReadPolicy != ReadPolicySkip {
		t.Errorf("Expected file defaults, got %+v", config.File)
	}
	if config.Remote.MaxPending != 50 {
		t.Errorf("Expected max pending raised to buffer size, got %d", config.Remote.MaxPending)
	}
	if config.Remote.Timeout != 10*time.Second {
		t.Errorf("Expected timeout default, got %v", config.Remote.Timeout)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applog.yaml")
	content := `
min_level: warning
enable_remote: true
remote_endpoint: https://logs.example.com/batch
file_prefix: mobile_
file:
  max_files: 3
remote:
  buffer_size: 25
  timeout: 5s
upload:
  endpoint: https://logs.example.com/upload
  format: json
  upload_on_error: true
  upload_interval: 12h
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	logDir := filepath.Join(dir, "logs")
	t.Setenv("APPLOG_LOG_DIR", logDir)
	t.Setenv("APPLOG_CONSOLE", "false")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if config.MinLevel != LogLevelWarning {
		t.Errorf("Expected warning level, got %v", config.MinLevel)
	}
	if !config.EnableRemote || config.RemoteEndpoint != "https://logs.example.com/batch" {
		t.Errorf("Expected remote settings from file, got %v %s", config.EnableRemote, config.RemoteEndpoint)
	}
	if config.FilePrefix != "mobile_" || config.File.MaxFiles != 3 {
		t.Errorf("Expected file settings from file, got %s %d", config.FilePrefix, config.File.MaxFiles)
	}
	if config.File.MaxFileSize != 10*1024*1024 {
		t.Errorf("Expected untouched defaults to survive, got %d", config.File.MaxFileSize)
	}
	if config.Remote.BufferSize != 25 || config.Remote.Timeout != 5*time.Second {
		t.Errorf("Expected remote tuning from file, got %+v", config.Remote)
	}
	if config.File.Dir != logDir || config.EnableConsole {
		t.Errorf("Expected environment overrides, got dir=%s console=%v", config.File.Dir, config.EnableConsole)
	}
	if config.Upload == nil || config.Upload.Format != uploader.FormatJSON || config.Upload.UploadInterval != 12*time.Hour {
		t.Errorf("Expected upload settings, got %+v", config.Upload)
	}
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("APPLOG_MIN_LEVEL", "error")
	t.Setenv("APPLOG_REMOTE_ENDPOINT", "https://logs.example.com/batch")
	t.Setenv("APPLOG_UPLOAD_ENDPOINT", "https://logs.example.com/upload")

	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if config.MinLevel != LogLevelError || !config.EnableRemote {
		t.Errorf("Expected env overrides, got level=%v remote=%v", config.MinLevel, config.EnableRemote)
	}
	if config.Upload == nil || config.Upload.Endpoint != "https://logs.example.com/upload" || !config.Upload.UploadDaily {
		t.Errorf("Expected default upload config with env endpoint, got %+v", config.Upload)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}

	t.Setenv("APPLOG_MIN_LEVEL", "chatty")
	if _, err := LoadConfig(""); err == nil {
		t.Error("Expected error for unknown level")
	}
}
