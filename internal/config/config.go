// Package config loads scheduler-core's configuration via viper, the way
// the teacher's config package does: defaults first, then an optional
// YAML file, then environment variables, unmarshalled into a typed
// struct tree mirroring spec.md §6's configuration inputs.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Manager   ManagerConfig
	Pool      PoolConfig
	Worker    WorkerConfig
	Providers ProvidersConfig
	Metrics   MetricsConfig
	Auth      AuthConfig
	LogLevel  string
}

type ServerConfig struct {
	Host         string
	Port         int
	AdminPort    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// QueueConfig configures the Priority Queue, spec.md §4.A.
type QueueConfig struct {
	KeyPrefix string
}

// ManagerConfig configures the Queue Manager's background tasks,
// spec.md §4.B / §6.
type ManagerConfig struct {
	CleanupInterval      time.Duration
	StaleRequestTimeout  time.Duration
	RetryCheckInterval   time.Duration
	RetryDelay           time.Duration
	MaxRetries           int
	GracefulShutdownWait time.Duration
}

// PoolConfig configures the elastic Worker Pool, spec.md §4.F / §6.
type PoolConfig struct {
	MinWorkers                int
	MaxWorkers                int
	QueueItemsPerWorker       int
	QueuePollInterval         time.Duration
	WorkerHealthCheckInterval time.Duration
}

// WorkerConfig configures a single Worker, spec.md §4.E / §6.
type WorkerConfig struct {
	ProcessingTimeout   time.Duration
	MaxRetries          int
	HealthCheckInterval time.Duration
}

// ProvidersConfig holds per-provider credentials and tunables, spec.md
// §4.C / §6. Anthropic and Bedrock are the two concrete providers
// wired per SPEC_FULL.md's DOMAIN STACK section.
type ProvidersConfig struct {
	Default          string
	Anthropic        AnthropicConfig
	Bedrock          BedrockConfig
	AdmissionRPS     float64
	AdmissionBurst   int
	CircuitThreshold uint32
	CircuitTimeout   time.Duration
}

type AnthropicConfig struct {
	Enabled bool
	APIKey  string
	Models  []string
}

type BedrockConfig struct {
	Enabled bool
	Region  string
	Models  []string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
	APIKeys   []string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/scheduler-core")

	setDefaults()

	viper.SetEnvPrefix("SCHEDCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.adminport", 8081)
	viper.SetDefault("server.readtimeout", 30*time.Second)
	viper.SetDefault("server.writetimeout", 30*time.Second)
	viper.SetDefault("server.idletimeout", 120*time.Second)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.poolsize", 100)
	viper.SetDefault("redis.minidleconns", 10)
	viper.SetDefault("redis.maxretries", 3)
	viper.SetDefault("redis.dialtimeout", 5*time.Second)
	viper.SetDefault("redis.readtimeout", 3*time.Second)
	viper.SetDefault("redis.writetimeout", 3*time.Second)

	viper.SetDefault("queue.keyprefix", "scheduler")

	viper.SetDefault("manager.cleanupinterval", 60*time.Second)
	viper.SetDefault("manager.stalerequesttimeout", 5*time.Minute)
	viper.SetDefault("manager.retrycheckinterval", 30*time.Second)
	viper.SetDefault("manager.retrydelay", 10*time.Second)
	viper.SetDefault("manager.maxretries", 3)
	viper.SetDefault("manager.gracefulshutdownwait", 30*time.Second)

	viper.SetDefault("pool.minworkers", 2)
	viper.SetDefault("pool.maxworkers", 10)
	viper.SetDefault("pool.queueitemsperworker", 5)
	viper.SetDefault("pool.queuepollinterval", 1*time.Second)
	viper.SetDefault("pool.workerhealthcheckinterval", 10*time.Second)

	viper.SetDefault("worker.processingtimeout", 30*time.Second)
	viper.SetDefault("worker.maxretries", 3)
	viper.SetDefault("worker.healthcheckinterval", 5*time.Second)

	viper.SetDefault("providers.default", "anthropic")
	viper.SetDefault("providers.admissionrps", 50.0)
	viper.SetDefault("providers.admissionburst", 10)
	viper.SetDefault("providers.circuitthreshold", uint32(5))
	viper.SetDefault("providers.circuittimeout", 30*time.Second)
	viper.SetDefault("providers.anthropic.enabled", true)
	viper.SetDefault("providers.anthropic.apikey", "")
	viper.SetDefault("providers.anthropic.models", []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"})
	viper.SetDefault("providers.bedrock.enabled", false)
	viper.SetDefault("providers.bedrock.region", "us-east-1")
	viper.SetDefault("providers.bedrock.models", []string{"anthropic.claude-3-sonnet-20240229-v1:0"})

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.jwtsecret", "")
	viper.SetDefault("auth.apikeys", []string{})

	viper.SetDefault("loglevel", "info")
}
