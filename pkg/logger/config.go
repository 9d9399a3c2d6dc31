package logger

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kerlexov/applog/pkg/uploader"
	"gopkg.in/yaml.v3"
)

type ReadPolicy string

const (
	// ReadPolicySkip drops malformed lines and keeps reading.
	ReadPolicySkip ReadPolicy = "skip"
	// ReadPolicyStrict aborts the read at the first malformed line.
	ReadPolicyStrict ReadPolicy = "strict"
)

type Config struct {
	EnableConsole  bool              `json:"enable_console" yaml:"enable_console"`
	EnableFile     bool              `json:"enable_file" yaml:"enable_file"`
	EnableRemote   bool              `json:"enable_remote" yaml:"enable_remote"`
	MinLevel       LogLevel          `json:"min_level" yaml:"min_level" validate:"gte=0,lte=4"`
	RemoteEndpoint string            `json:"remote_endpoint" yaml:"remote_endpoint" validate:"omitempty,url"`
	RemoteHeaders  map[string]string `json:"remote_headers" yaml:"remote_headers"`
	Upload         *uploader.Config  `json:"upload,omitempty" yaml:"upload,omitempty"`
	FilePrefix     string            `json:"file_prefix" yaml:"file_prefix"`
	ConsoleColor   bool              `json:"console_color" yaml:"console_color"`
	File           FileConfig        `json:"file" yaml:"file"`
	Remote         RemoteConfig      `json:"remote" yaml:"remote"`
}

type FileConfig struct {
	Dir         string     `json:"dir" yaml:"dir"`
	MaxFileSize int64      `json:"max_file_size" yaml:"max_file_size" validate:"gte=0"`
	MaxFiles    int        `json:"max_files" yaml:"max_files" validate:"gte=0"`
	ReadPolicy  ReadPolicy `json:"read_policy" yaml:"read_policy" validate:"omitempty,oneof=skip strict"`
}

type RemoteConfig struct {
	MinLevel   LogLevel      `json:"min_level" yaml:"min_level" validate:"gte=0,lte=4"`
	BufferSize int           `json:"buffer_size" yaml:"buffer_size" validate:"gte=0"`
	MaxPending int           `json:"max_pending" yaml:"max_pending" validate:"gte=0"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		EnableConsole: true,
		EnableFile:    true,
		EnableRemote:  false,
		MinLevel:      LogLevelDebug,
		FilePrefix:    "app_",
		ConsoleColor:  true,
		File: FileConfig{
			MaxFileSize: 10 * 1024 * 1024,
			MaxFiles:    5,
			ReadPolicy:  ReadPolicySkip,
		},
		Remote: RemoteConfig{
			MinLevel:   LogLevelError,
			BufferSize: 10,
			MaxPending: 1000,
			Timeout:    10 * time.Second,
		},
	}
}

// Validate checks the config and back-fills zero values with defaults.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ErrInvalidConfig(err.Error())
	}
	if c.EnableRemote && c.RemoteEndpoint == "" {
		return ErrInvalidConfig("remote_endpoint is required when the remote sink is enabled")
	}
	if c.Upload != nil {
		if err := c.Upload.Validate(); err != nil {
			return ErrInvalidConfig(fmt.Sprintf("upload: %v", err))
		}
	}
	if c.FilePrefix == "" {
		c.FilePrefix = "app_"
	}
	if c.File.MaxFileSize <= 0 {
		c.File.MaxFileSize = 10 * 1024 * 1024
	}
	if c.File.MaxFiles <= 0 {
		c.File.MaxFiles = 5
	}
	if c.File.ReadPolicy == "" {
		c.File.ReadPolicy = ReadPolicySkip
	}
	if c.Remote.BufferSize <= 0 {
		c.Remote.BufferSize = 10
	}
	if c.Remote.MaxPending <= 0 {
		c.Remote.MaxPending = 1000
	}
	if c.Remote.MaxPending < c.Remote.BufferSize {
		c.Remote.MaxPending = c.Remote.BufferSize
	}
	if c.Remote.Timeout <= 0 {
		c.Remote.Timeout = 10 * time.Second
	}
	return nil
}

// LoadConfig reads a YAML config file on top of DefaultConfig and then
// applies APPLOG_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(&config); err != nil {
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func loadFromEnv(config *Config) error {
	if level := os.Getenv("APPLOG_MIN_LEVEL"); level != "" {
		parsed, err := ParseLevel(level)
		if err != nil {
			return err
		}
		config.MinLevel = parsed
	}

	if endpoint := os.Getenv("APPLOG_REMOTE_ENDPOINT"); endpoint != "" {
		config.RemoteEndpoint = endpoint
		config.EnableRemote = true
	}

	if dir := os.Getenv("APPLOG_LOG_DIR"); dir != "" {
		config.File.Dir = dir
	}

	if prefix := os.Getenv("APPLOG_FILE_PREFIX"); prefix != "" {
		config.FilePrefix = prefix
	}

	if console := os.Getenv("APPLOG_CONSOLE"); console != "" {
		enabled, err := strconv.ParseBool(console)
		if err != nil {
			return ErrInvalidConfig(fmt.Sprintf("APPLOG_CONSOLE: %v", err))
		}
		config.EnableConsole = enabled
	}

	if endpoint := os.Getenv("APPLOG_UPLOAD_ENDPOINT"); endpoint != "" {
		if config.Upload == nil {
			upload := uploader.DefaultConfig()
			config.Upload = &upload
		}
		config.Upload.Endpoint = endpoint
	}

	return nil
}
