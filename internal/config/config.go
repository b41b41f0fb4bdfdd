package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postmark PostmarkConfig `yaml:"postmark"`
	Storage  StorageConfig  `yaml:"storage"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with ECS detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// PostmarkConfig holds Postmark API configuration
type PostmarkConfig struct {
	ServerToken    string `yaml:"server_token"`
	BaseURL        string `yaml:"base_url"`
	MessageStream  string `yaml:"message_stream"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FanoutWorkers  int    `yaml:"fanout_workers"`
}

// Timeout returns the configured timeout as a duration
func (c PostmarkConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Storage backends for the suppression list.
const (
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// StorageConfig selects and configures the suppression store backend.
type StorageConfig struct {
	Type          string `yaml:"type"`
	DatabaseURL   string `yaml:"database_url"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// EventsConfig configures the optional SQS stream of applied suppression actions.
type EventsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	SQSQueueURL string `yaml:"sqs_queue_url"`
	AWSRegion   string `yaml:"aws_region"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (c LoggingConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Postmark.BaseURL == "" {
		cfg.Postmark.BaseURL = "https://api.postmarkapp.com"
	}
	if cfg.Postmark.TimeoutSeconds == 0 {
		cfg.Postmark.TimeoutSeconds = 30
	}
	if cfg.Postmark.FanoutWorkers == 0 {
		cfg.Postmark.FanoutWorkers = 1
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = StoragePostgres
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Events.AWSRegion == "" {
		cfg.Events.AWSRegion = "us-east-1"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POSTMARK_SERVER_TOKEN"); v != "" {
		cfg.Postmark.ServerToken = v
	}
	if v := os.Getenv("POSTMARK_BASE_URL"); v != "" {
		cfg.Postmark.BaseURL = v
	}
	if v := os.Getenv("POSTMARK_MESSAGE_STREAM"); v != "" {
		cfg.Postmark.MessageStream = v
	}
	if v := os.Getenv("POSTMARK_FANOUT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("POSTMARK_FANOUT_WORKERS: %w", err)
		}
		cfg.Postmark.FanoutWorkers = n
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Storage.RedisPassword = v
	}
	if v := os.Getenv("SQS_SUPPRESSION_QUEUE_URL"); v != "" {
		cfg.Events.SQSQueueURL = v
		cfg.Events.Enabled = true
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// Validate checks settings that have no usable default.
func (cfg *Config) Validate() error {
	if cfg.Postmark.MessageStream == "" {
		return fmt.Errorf("postmark.message_stream is required")
	}
	if cfg.Postmark.FanoutWorkers < 0 {
		return fmt.Errorf("postmark.fanout_workers must not be negative")
	}
	switch cfg.Storage.Type {
	case StoragePostgres:
		if cfg.Storage.DatabaseURL == "" {
			return fmt.Errorf("storage.database_url is required for the postgres backend")
		}
	case StorageRedis:
	default:
		return fmt.Errorf("unknown storage.type %q", cfg.Storage.Type)
	}
	if cfg.Events.Enabled && cfg.Events.SQSQueueURL == "" {
		return fmt.Errorf("events.sqs_queue_url is required when events are enabled")
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
