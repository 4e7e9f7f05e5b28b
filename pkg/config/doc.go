// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	ADGATE_HOST="0.0.0.0"
//	ADGATE_PORT="8080"
//	ADGATE_HEALTH_PORT="9090"
//	ADGATE_READ_TIMEOUT="15s"
//	ADGATE_WRITE_TIMEOUT="15s"
//
// Storage settings:
//
//	ADGATE_POSTGRES_URL="postgres://localhost/adgate"
//	ADGATE_POSTGRES_REPLICA_URLS="postgres://replica-1/adgate,postgres://replica-2/adgate"
//	ADGATE_POSTGRES_MAX_CONNS="20"
//
// Cache settings:
//
//	ADGATE_CACHE_ENABLED="true"
//	ADGATE_REDIS_URL="redis://localhost:6379"
//	ADGATE_CACHE_TTL="5m"
//
// Billing settings:
//
//	ADGATE_UPGRADE_URL="/settings/billing"
//	ADGATE_WEBHOOK_SECRET="whsec_..."
//	ADGATE_GATE_CACHE_TTL="30s"
//
// Reporter settings:
//
//	ADGATE_REPORT_SCHEDULE="0 2 1 * *"
//	ADGATE_RECONCILE_SCHEDULE="0 */6 * * *"
//
// Observability settings:
//
//	ADGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	ADGATE_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Log level: %v\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
