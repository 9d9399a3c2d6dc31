package uploader

import (
	"time"

	"github.com/go-playground/validator/v10"
)

type Format string

const (
	FormatMultipart Format = "multipart"
	FormatJSON      Format = "json"
)

type Config struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint" validate:"required,url"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	UploadOnError  bool              `json:"upload_on_error" yaml:"upload_on_error"`
	UploadDaily    bool              `json:"upload_daily" yaml:"upload_daily"`
	UploadInterval time.Duration     `json:"upload_interval" yaml:"upload_interval" validate:"gte=0"`
	MaxRetries     int               `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=100"`
	Format         Format            `json:"format" yaml:"format" validate:"omitempty,oneof=multipart json"`
	Timeout        time.Duration     `json:"timeout" yaml:"timeout" validate:"gte=0"`
	RetryStep      time.Duration     `json:"retry_step" yaml:"retry_step" validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		UploadDaily:    true,
		UploadInterval: 24 * time.Hour,
		MaxRetries:     3,
		Format:         FormatMultipart,
		Timeout:        30 * time.Second,
		RetryStep:      2 * time.Second,
	}
}

// Validate checks the config and back-fills zero values with defaults.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return ErrInvalidConfig(err.Error())
	}
	if c.UploadInterval <= 0 {
		c.UploadInterval = 24 * time.Hour
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Format == "" {
		c.Format = FormatMultipart
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.RetryStep <= 0 {
		c.RetryStep = 2 * time.Second
	}
	return nil
}

// Result is the outcome of an upload operation. Upload methods report
// every failure through a Result rather than an error.
type Result struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	UploadedCount int      `json:"uploaded_count"`
	TotalCount    int      `json:"total_count"`
	FailedFiles   []string `json:"failed_files,omitempty"`
	LogCount      int      `json:"log_count,omitempty"`
	ParseErrors   int      `json:"parse_errors,omitempty"`
}
