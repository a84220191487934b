// Package config loads the service configuration from the environment
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Queue    QueueConfig
	Cron     CronConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Secrets  SecretsConfig
	Channels ChannelsConfig
	Logger   LoggerConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
	RateLimitRPS    float64       `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST" envDefault:"40"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string        `env:"DB_HOST" envDefault:"localhost"`
	Port          int           `env:"DB_PORT" envDefault:"5432"`
	User          string        `env:"DB_USER" envDefault:"postgres"`
	Password      string        `env:"DB_PASSWORD,required"`
	Database      string        `env:"DB_NAME" envDefault:"subscription_billing"`
	SSLMode       string        `env:"DB_SSL_MODE" envDefault:"disable"`
	MaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"25"`
	MinConns      int32         `env:"DB_MIN_CONNS" envDefault:"5"`
	AutoMigrate   bool          `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	MonitorPeriod time.Duration `env:"DB_MONITOR_INTERVAL" envDefault:"30s"`
}

// ProviderConfig holds the billing provider API settings shared by every channel
type ProviderConfig struct {
	BaseURL            string        `env:"STRIPE_BASE_URL" envDefault:"https://api.stripe.com"`
	APIVersion         string        `env:"STRIPE_API_VERSION" envDefault:"2023-10-16"`
	SignatureTolerance time.Duration `env:"STRIPE_SIGNATURE_TOLERANCE" envDefault:"5m"`
	Timeout            time.Duration `env:"STRIPE_TIMEOUT" envDefault:"30s"`
}

// QueueConfig holds job queue worker settings
type QueueConfig struct {
	PollInterval time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"2s"`
	LockTimeout  time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
}

// CronConfig holds maintenance schedule settings
type CronConfig struct {
	Secret string `env:"CRON_SECRET"`
	// ReleaseLocksSpec is a robfig/cron spec; empty disables the in-process schedule
	ReleaseLocksSpec string `env:"CRON_RELEASE_LOCKS_SPEC" envDefault:"@every 1m"`
	QueueStatsSpec   string `env:"CRON_QUEUE_STATS_SPEC" envDefault:"@every 5m"`
}

// RedisConfig holds the job notifier connection. An empty URL disables the notifier.
type RedisConfig struct {
	URL    string `env:"REDIS_URL"`
	Prefix string `env:"REDIS_PREFIX" envDefault:"billing"`
}

// KafkaConfig holds the commerce events consumer settings. No brokers disables it.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"commerce.events"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"subscription-billing"`
}

// Enabled reports whether a consumer should be started
func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

// SecretsConfig selects and configures the secret backend
type SecretsConfig struct {
	Backend   string        `env:"SECRET_MANAGER" envDefault:"local"`
	LocalPath string        `env:"SECRETS_PATH" envDefault:"./secrets"`
	CacheSize int           `env:"SECRET_CACHE_SIZE" envDefault:"256"`
	CacheTTL  time.Duration `env:"SECRET_CACHE_TTL" envDefault:"5m"`

	AWSRegion   string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSProfile  string `env:"AWS_PROFILE"`
	AWSEndpoint string `env:"AWS_SECRETS_ENDPOINT"`

	VaultAddress    string `env:"VAULT_ADDR" envDefault:"http://127.0.0.1:8200"`
	VaultAuthMethod string `env:"VAULT_AUTH_METHOD" envDefault:"token"`
	VaultToken      string `env:"VAULT_TOKEN"`
	VaultRoleID     string `env:"VAULT_ROLE_ID"`
	VaultSecretID   string `env:"VAULT_SECRET_ID"`
	VaultNamespace  string `env:"VAULT_NAMESPACE"`
	VaultMountPath  string `env:"VAULT_MOUNT_PATH" envDefault:"secret"`
}

// ChannelsConfig points at the channel registry file
type ChannelsConfig struct {
	File string `env:"CHANNELS_FILE" envDefault:"./channels.yaml"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"` // debug, info, warn, error
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Development reports whether the console encoder should be used
func (c LoggerConfig) Development() bool {
	return c.Environment != "production"
}

// MetricsConfig holds the metrics and health server settings
type MetricsConfig struct {
	Port          string        `env:"METRICS_PORT" envDefault:"9090"`
	HealthTimeout time.Duration `env:"HEALTH_TIMEOUT" envDefault:"3s"`
}

var (
	errUnknownSecretBackend = errors.New("SECRET_MANAGER must be one of local, aws, vault")
	errInvalidPort          = errors.New("SERVER_PORT must be between 1 and 65535")
)

// LoadFromEnv loads configuration from environment variables, reading .env first when present
func LoadFromEnv() (*Config, error) {
	// a missing .env is fine; real deployments set the environment directly
	_ = godotenv.Load()
	return Parse(env.Options{})
}

// Parse parses configuration with explicit options. Tests pass Environment to avoid touching the process env.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the tags cannot express
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errInvalidPort
	}
	switch c.Secrets.Backend {
	case "local", "aws", "vault":
	default:
		return fmt.Errorf("%w, got %q", errUnknownSecretBackend, c.Secrets.Backend)
	}
	if c.Queue.LockTimeout <= 0 {
		return errors.New("QUEUE_LOCK_TIMEOUT must be positive")
	}
	return nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
