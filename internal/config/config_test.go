package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

postmark:
  server_token: "test-token"
  message_stream: "outbound"
  timeout_seconds: 45
  fanout_workers: 4

storage:
  type: "redis"
  redis_addr: "redis:6379"
  redis_db: 2

logging:
  level: "debug"
  redact_pii: false
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "test-token", cfg.Postmark.ServerToken)
	assert.Equal(t, "https://api.postmarkapp.com", cfg.Postmark.BaseURL)
	assert.Equal(t, "outbound", cfg.Postmark.MessageStream)
	assert.Equal(t, 45, cfg.Postmark.TimeoutSeconds)
	assert.Equal(t, 4, cfg.Postmark.FanoutWorkers)

	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 2, cfg.Storage.RedisDB)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Redact())
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "postmark:\n  message_stream: outbound\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 30, cfg.Postmark.TimeoutSeconds)
	assert.Equal(t, 1, cfg.Postmark.FanoutWorkers)
	assert.Equal(t, StoragePostgres, cfg.Storage.Type)
	assert.Equal(t, "us-east-1", cfg.Events.AWSRegion)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redact())
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "postmark: [unclosed"))
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	path := writeConfig(t, "postmark:\n  message_stream: outbound\n")
	t.Setenv("POSTMARK_SERVER_TOKEN", "env-token")
	t.Setenv("POSTMARK_MESSAGE_STREAM", "broadcast")
	t.Setenv("POSTMARK_FANOUT_WORKERS", "8")
	t.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	t.Setenv("SQS_SUPPRESSION_QUEUE_URL", "https://sqs.example/queue")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://ops.example.com, ,http://localhost:5173")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Postmark.ServerToken)
	assert.Equal(t, "broadcast", cfg.Postmark.MessageStream)
	assert.Equal(t, 8, cfg.Postmark.FanoutWorkers)
	assert.Equal(t, "postgres://localhost/bridge", cfg.Storage.DatabaseURL)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, []string{"https://ops.example.com", "http://localhost:5173"}, cfg.Server.AllowedOrigins)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_BadWorkerCount(t *testing.T) {
	path := writeConfig(t, "postmark:\n  message_stream: outbound\n")
	t.Setenv("POSTMARK_FANOUT_WORKERS", "many")

	_, err := LoadFromEnv(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing stream", func(c *Config) { c.Postmark.MessageStream = "" }, "message_stream"},
		{"postgres without url", func(c *Config) { c.Storage.DatabaseURL = "" }, "database_url"},
		{"unknown backend", func(c *Config) { c.Storage.Type = "dynamodb" }, "unknown storage.type"},
		{"events without queue", func(c *Config) { c.Events.Enabled = true }, "sqs_queue_url"},
		{"negative workers", func(c *Config) { c.Postmark.FanoutWorkers = -1 }, "fanout_workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Postmark: PostmarkConfig{MessageStream: "outbound"},
				Storage:  StorageConfig{Type: StoragePostgres, DatabaseURL: "postgres://x"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_GetHost(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")
	assert.Equal(t, "localhost:8080", ServerConfig{Host: "localhost", Port: 8080}.Addr())

	t.Setenv("SERVER_HOST", "10.0.0.1")
	assert.Equal(t, "10.0.0.1", ServerConfig{Host: "localhost"}.GetHost())

	t.Setenv("ECS_CONTAINER_METADATA_URI", "http://169.254.170.2/v4")
	assert.Equal(t, "0.0.0.0", ServerConfig{Host: "localhost"}.GetHost())
}
