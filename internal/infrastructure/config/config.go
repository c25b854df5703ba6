package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Retry          RetryConfig          `mapstructure:"retry"`
	Sources        SourcesConfig        `mapstructure:"sources"`
	Consumer       ConsumerConfig       `mapstructure:"consumer"`
	Alerting       AlertingConfig       `mapstructure:"alerting"`
	Classification ClassificationConfig `mapstructure:"classification"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	InstanceID     string               `mapstructure:"instance_id"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SSLMode         string        `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	ConnectRetries    int           `mapstructure:"connect_retries"`
	ConnectRetryDelay time.Duration `mapstructure:"connect_retry_delay"`
}

// RetryConfig bounds retry attempt execution.
type RetryConfig struct {
	// MaxAttempts is the retry budget per exception before it fails terminally.
	MaxAttempts int `mapstructure:"max_attempts"`
	// AttemptTimeout bounds one whole attempt (payload fetch + submit).
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	// ClientTimeout bounds each individual source-service request.
	ClientTimeout time.Duration `mapstructure:"client_timeout"`
	// FailureWindow is the rolling window for repeated-failure escalation.
	FailureWindow time.Duration `mapstructure:"failure_window"`
	// LockTTL guards one transaction's execution across worker instances.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// SourcesConfig points at the upstream interface services.
type SourcesConfig struct {
	OrderBaseURL        string `mapstructure:"order_base_url"`
	CollectionBaseURL   string `mapstructure:"collection_base_url"`
	DistributionBaseURL string `mapstructure:"distribution_base_url"`
	// UseMocks replaces HTTP clients with mocks for local runs.
	UseMocks bool `mapstructure:"use_mocks"`
}

type ConsumerConfig struct {
	BatchSize          int64         `mapstructure:"batch_size"`
	BlockDuration      time.Duration `mapstructure:"block_duration"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	OutboxPollInterval time.Duration `mapstructure:"outbox_poll_interval"`
	// ClaimInterval is how often each consumer sweeps the group's pending
	// entries; ClaimMinIdle is how long an entry must sit unacked before
	// it is taken over from its original consumer.
	ClaimInterval time.Duration `mapstructure:"claim_interval"`
	ClaimMinIdle  time.Duration `mapstructure:"claim_min_idle"`
	Backoff       BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig is the inbound redelivery policy.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	MaxAttempts     uint          `mapstructure:"max_attempts"`
}

type AlertingConfig struct {
	RepeatedFailureThreshold int           `mapstructure:"repeated_failure_threshold"`
	Cooldown                 time.Duration `mapstructure:"cooldown"`
	MonitorSchedule          string        `mapstructure:"monitor_schedule"`
	P95ResponseTime          time.Duration `mapstructure:"p95_response_time"`
	ErrorRatePct             float64       `mapstructure:"error_rate_pct"`
	CacheMissRatePct         float64       `mapstructure:"cache_miss_rate_pct"`
	ConnSaturationPct        float64       `mapstructure:"conn_saturation_pct"`
}

// ClassificationConfig optionally overrides the classifier rule table.
// Keys are category/severity names; values are keyword lists.
type ClassificationConfig struct {
	CategoryRules map[string][]string `mapstructure:"category_rules"`
	SeverityRules map[string][]string `mapstructure:"severity_rules"`
}

type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	EnableMetrics  bool   `mapstructure:"enable_metrics"`
	EnableTracing  bool   `mapstructure:"enable_tracing"`
}

func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("EXCEPTIONS")
	v.AutomaticEnv()

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/exception-collector")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must be positive"))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.write_timeout must be positive"))
	}
	if c.Database.Host == "" {
		errs = append(errs, fmt.Errorf("database.host is required"))
	}
	if c.Database.Port <= 0 {
		errs = append(errs, fmt.Errorf("database.port must be positive"))
	}
	if c.Redis.Port <= 0 {
		errs = append(errs, fmt.Errorf("redis.port must be positive"))
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be positive"))
	}
	if c.Retry.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("retry.attempt_timeout must be positive"))
	}
	if c.Retry.ClientTimeout >= c.Retry.AttemptTimeout {
		errs = append(errs, fmt.Errorf("retry.client_timeout must be shorter than retry.attempt_timeout"))
	}
	if c.Consumer.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("consumer.batch_size must be positive"))
	}
	if c.Consumer.ClaimInterval <= 0 {
		errs = append(errs, fmt.Errorf("consumer.claim_interval must be positive"))
	}
	if c.Consumer.ClaimMinIdle <= 0 {
		errs = append(errs, fmt.Errorf("consumer.claim_min_idle must be positive"))
	}
	if c.Consumer.Backoff.MaxAttempts == 0 {
		errs = append(errs, fmt.Errorf("consumer.backoff.max_attempts must be positive"))
	}
	if c.Consumer.Backoff.Multiplier < 1 {
		errs = append(errs, fmt.Errorf("consumer.backoff.multiplier must be >= 1"))
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.cors.allowed_origins", []string{"*"})
	v.SetDefault("server.cors.allow_credentials", false)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "exceptions")
	v.SetDefault("database.database", "exceptions")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_connections", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.connect_retries", 5)
	v.SetDefault("redis.connect_retry_delay", "1s")

	// Retry defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.attempt_timeout", "30s")
	v.SetDefault("retry.client_timeout", "5s")
	v.SetDefault("retry.failure_window", "1h")
	v.SetDefault("retry.lock_ttl", "60s")

	// Source service defaults
	v.SetDefault("sources.order_base_url", "http://order-service:8080")
	v.SetDefault("sources.collection_base_url", "http://collection-service:8080")
	v.SetDefault("sources.distribution_base_url", "http://distribution-service:8080")
	v.SetDefault("sources.use_mocks", false)

	// Consumer defaults
	v.SetDefault("consumer.batch_size", 10)
	v.SetDefault("consumer.block_duration", "1s")
	v.SetDefault("consumer.consumer_group", "exception-collectors")
	v.SetDefault("consumer.outbox_poll_interval", "2s")
	v.SetDefault("consumer.claim_interval", "30s")
	v.SetDefault("consumer.claim_min_idle", "60s")
	v.SetDefault("consumer.backoff.initial_interval", "500ms")
	v.SetDefault("consumer.backoff.multiplier", 2.0)
	v.SetDefault("consumer.backoff.max_interval", "30s")
	v.SetDefault("consumer.backoff.max_attempts", 5)

	// Alerting defaults
	v.SetDefault("alerting.repeated_failure_threshold", 3)
	v.SetDefault("alerting.cooldown", "5m")
	v.SetDefault("alerting.monitor_schedule", "@every 30s")
	v.SetDefault("alerting.p95_response_time", "2s")
	v.SetDefault("alerting.error_rate_pct", 5.0)
	v.SetDefault("alerting.cache_miss_rate_pct", 40.0)
	v.SetDefault("alerting.conn_saturation_pct", 85.0)

	// Observability defaults
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("observability.enable_metrics", true)
	v.SetDefault("observability.enable_tracing", true)

	// Instance ID
	v.SetDefault("instance_id", "exception-collector-1")
}

func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
