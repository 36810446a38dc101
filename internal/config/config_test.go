package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Clear any existing config files from search path
	originalDir, _ := os.Getwd()
	tmpDir := t.TempDir()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 8081, cfg.Server.AdminPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "", cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 100, cfg.Redis.PoolSize)
	assert.Equal(t, 10, cfg.Redis.MinIdleConns)
	assert.Equal(t, 3, cfg.Redis.MaxRetries)

	assert.Equal(t, "scheduler", cfg.Queue.KeyPrefix)

	assert.Equal(t, 60*time.Second, cfg.Manager.CleanupInterval)
	assert.Equal(t, 5*time.Minute, cfg.Manager.StaleRequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.Manager.RetryCheckInterval)
	assert.Equal(t, 10*time.Second, cfg.Manager.RetryDelay)
	assert.Equal(t, 3, cfg.Manager.MaxRetries)

	assert.Equal(t, 2, cfg.Pool.MinWorkers)
	assert.Equal(t, 10, cfg.Pool.MaxWorkers)
	assert.Equal(t, 5, cfg.Pool.QueueItemsPerWorker)

	assert.Equal(t, 30*time.Second, cfg.Worker.ProcessingTimeout)
	assert.Equal(t, 3, cfg.Worker.MaxRetries)

	assert.Equal(t, "anthropic", cfg.Providers.Default)
	assert.True(t, cfg.Providers.Anthropic.Enabled)
	assert.False(t, cfg.Providers.Bedrock.Enabled)
	assert.Equal(t, uint32(5), cfg.Providers.CircuitThreshold)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.False(t, cfg.Auth.Enabled)

	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := tmpDir + "/config.yaml"

	configContent := `
server:
  host: "127.0.0.1"
  port: 9090

redis:
  addr: "custom-redis:6380"
  password: "secret"
  db: 1

pool:
  minworkers: 3
  maxworkers: 20

providers:
  default: "bedrock"

loglevel: "warn"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	originalDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(originalDir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "custom-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, 3, cfg.Pool.MinWorkers)
	assert.Equal(t, 20, cfg.Pool.MaxWorkers)
	assert.Equal(t, "bedrock", cfg.Providers.Default)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestServerConfig_Fields(t *testing.T) {
	cfg := ServerConfig{
		Host:         "localhost",
		Port:         8080,
		AdminPort:    8081,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8081, cfg.AdminPort)
}

func TestRedisConfig_Fields(t *testing.T) {
	cfg := RedisConfig{
		Addr:         "redis:6379",
		Password:     "pass",
		DB:           1,
		PoolSize:     50,
		MinIdleConns: 5,
		MaxRetries:   5,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	assert.Equal(t, "redis:6379", cfg.Addr)
	assert.Equal(t, "pass", cfg.Password)
	assert.Equal(t, 1, cfg.DB)
}

func TestPoolConfig_Fields(t *testing.T) {
	cfg := PoolConfig{
		MinWorkers:                2,
		MaxWorkers:                10,
		QueueItemsPerWorker:       5,
		QueuePollInterval:         time.Second,
		WorkerHealthCheckInterval: 10 * time.Second,
	}

	assert.Equal(t, 2, cfg.MinWorkers)
	assert.Equal(t, 10, cfg.MaxWorkers)
}

func TestProvidersConfig_Fields(t *testing.T) {
	cfg := ProvidersConfig{
		Default:          "anthropic",
		AdmissionRPS:     50,
		AdmissionBurst:   10,
		CircuitThreshold: 5,
		CircuitTimeout:   30 * time.Second,
		Anthropic:        AnthropicConfig{Enabled: true, APIKey: "key", Models: []string{"m1"}},
		Bedrock:          BedrockConfig{Enabled: false, Region: "us-east-1"},
	}

	assert.Equal(t, "anthropic", cfg.Default)
	assert.True(t, cfg.Anthropic.Enabled)
	assert.False(t, cfg.Bedrock.Enabled)
}
