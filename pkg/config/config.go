package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Billing configuration
	Billing BillingConfig

	// Reporter configuration
	Reporter ReporterConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// BillingConfig holds billing and feature-gating settings
type BillingConfig struct {
	// UpgradeURL is included in paywall and usage-limit responses so
	// clients can link callers to the plan picker.
	UpgradeURL string

	// WebhookSecret verifies payment gateway webhook signatures.
	// Empty disables verification (local development only).
	WebhookSecret string

	// GateCacheTTL bounds how long a stale tier can be served by the
	// in-process feature gate cache.
	GateCacheTTL time.Duration

	// GatewayAPIURL and GatewayAPIKey configure the outbound payment
	// gateway client. Empty URL disables checkout, portal, and remote
	// plan-change calls.
	GatewayAPIURL string
	GatewayAPIKey string
}

// ReporterConfig holds usage-reporter settings
type ReporterConfig struct {
	// ReportSchedule is the cron expression for monthly metered-usage
	// reporting to the payment gateway.
	ReportSchedule string

	// ReconcileSchedule is the cron expression for drift reconciliation
	// between the ledger and subscription accumulators.
	ReconcileSchedule string

	// RunTimeout bounds a single reporter run across all accounts.
	RunTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Billing:       loadBillingConfig(),
		Reporter:      loadReporterConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ADGATE_HOST", "0.0.0.0"),
		Port:            getEnv("ADGATE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ADGATE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ADGATE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ADGATE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ADGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ADGATE_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	// PostgreSQL config
	if pgURL := getEnv("ADGATE_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if replicaURLs := getEnv("ADGATE_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = replicaURLs
	}
	if maxConns := getEnvInt("ADGATE_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("ADGATE_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("ADGATE_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// Redis config
	if redisURL := getEnv("ADGATE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("ADGATE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("ADGATE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("ADGATE_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("ADGATE_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	if cacheEnabled := getEnv("ADGATE_CACHE_ENABLED", ""); cacheEnabled != "" {
		cfg.CacheEnabled = strings.ToLower(cacheEnabled) == "true"
	}
	if cacheTTL := getEnvDuration("ADGATE_CACHE_TTL", 0); cacheTTL > 0 {
		cfg.CacheTTL = cacheTTL
	}

	return cfg
}

// loadBillingConfig loads billing configuration from environment
func loadBillingConfig() BillingConfig {
	return BillingConfig{
		UpgradeURL:    getEnv("ADGATE_UPGRADE_URL", "/settings/billing"),
		WebhookSecret: getEnv("ADGATE_WEBHOOK_SECRET", ""),
		GateCacheTTL:  getEnvDuration("ADGATE_GATE_CACHE_TTL", 30*time.Second),
		GatewayAPIURL: getEnv("ADGATE_GATEWAY_API_URL", ""),
		GatewayAPIKey: getEnv("ADGATE_GATEWAY_API_KEY", ""),
	}
}

// loadReporterConfig loads reporter configuration from environment
func loadReporterConfig() ReporterConfig {
	return ReporterConfig{
		// First of the month, 02:00 UTC.
		ReportSchedule:    getEnv("ADGATE_REPORT_SCHEDULE", "0 2 1 * *"),
		ReconcileSchedule: getEnv("ADGATE_RECONCILE_SCHEDULE", "0 */6 * * *"),
		RunTimeout:        getEnvDuration("ADGATE_REPORTER_RUN_TIMEOUT", 30*time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("ADGATE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ADGATE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config
	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.CacheEnabled && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required when caching is enabled")
	}

	// Validate billing config
	if c.Billing.UpgradeURL == "" {
		return fmt.Errorf("upgrade URL is required")
	}

	// Validate reporter config
	if c.Reporter.ReportSchedule == "" {
		return fmt.Errorf("report schedule is required")
	}
	if c.Reporter.RunTimeout <= 0 {
		return fmt.Errorf("reporter run timeout must be positive")
	}

	return nil
}

// parseLogLevel converts a string log level to observability.LogLevel
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
