package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig contains HTTP listener configuration
type ServerConfig struct {
	Port         int           `yaml:"port" validate:"required,min=1024,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"min=1s,max=10m"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"min=1s,max=10m"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" validate:"min=1024"`
}

// StorageConfig contains storage-specific configuration
type StorageConfig struct {
	Type             string `yaml:"type" validate:"required,oneof=sqlite"`
	ConnectionString string `yaml:"connection_string" validate:"required"`
	MaxConnections   int    `yaml:"max_connections" validate:"min=1,max=1000"`
}

// RateLimitConfig contains per-client rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" validate:"min=1"`
	BurstSize         int  `yaml:"burst_size" validate:"min=1"`
}

// IngestConfig limits what a single request may carry
type IngestConfig struct {
	MaxBatchSize int `yaml:"max_batch_size" validate:"min=1,max=100000"`
}

// Config represents the complete collector configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" validate:"required"`
	Storage   StorageConfig   `yaml:"storage" validate:"required"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Ingest    IngestConfig    `yaml:"ingest" validate:"required"`
	Metrics   bool            `yaml:"metrics"`
}

// Validate validates the configuration using struct tags
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 32 * 1024 * 1024,
		},
		Storage: StorageConfig{
			Type:             "sqlite",
			ConnectionString: "./applog.db",
			MaxConnections:   10,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 600,
			BurstSize:         50,
		},
		Ingest: IngestConfig{
			MaxBatchSize: 1000,
		},
		Metrics: true,
	}
}

// Load loads configuration from path, or from the first config file found
// in the usual locations when path is empty, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	configPath := path
	if configPath == "" {
		configPath = os.Getenv("APPLOG_COLLECTOR_CONFIG")
	}
	if configPath == "" {
		possiblePaths := []string{
			"./collector.yaml",
			"./collector.yml",
			"/etc/applog/collector.yaml",
		}
		if home, err := os.UserHomeDir(); err == nil {
			possiblePaths = append(possiblePaths, filepath.Join(home, ".applog", "collector.yaml"))
		}

		for _, p := range possiblePaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configPath, err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, config)
}

func loadFromEnv(config *Config) error {
	if port := os.Getenv("APPLOG_COLLECTOR_PORT"); port != "" {
		p, err := parsePort(port)
		if err != nil {
			return fmt.Errorf("APPLOG_COLLECTOR_PORT: %w", err)
		}
		config.Server.Port = p
	}

	if connStr := os.Getenv("APPLOG_COLLECTOR_DB"); connStr != "" {
		config.Storage.ConnectionString = connStr
	}

	if rpm := os.Getenv("APPLOG_COLLECTOR_RATE_LIMIT"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("APPLOG_COLLECTOR_RATE_LIMIT: %w", err)
		}
		// zero or negative switches the limiter off
		config.RateLimit.Enabled = n > 0
		if n > 0 {
			config.RateLimit.RequestsPerMinute = n
		}
	}

	return nil
}

func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	if port < 1024 || port > 65535 {
		return 0, fmt.Errorf("port must be between 1024 and 65535")
	}
	return port, nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
