package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/api"
	"github.com/marketerhq/adgate/pkg/billing"
	"github.com/marketerhq/adgate/pkg/config"
	"github.com/marketerhq/adgate/pkg/gate"
	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/middleware"
	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/storage/postgres"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("Starting adgate billing service")

	// Database
	connConfig := postgres.ConnectionConfig{
		PrimaryURL: cfg.Storage.PostgresURL,
		MaxConns:   cfg.Storage.PostgresMaxConns,
		MinConns:   cfg.Storage.PostgresMinConns,
		Timeout:    cfg.Storage.PostgresTimeout,
	}
	if cfg.Storage.PostgresReplicaURLs != "" {
		connConfig.ReplicaURLs = strings.Split(cfg.Storage.PostgresReplicaURLs, ",")
	}

	cm, err := postgres.NewConnectionManager(connConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer cm.Close()

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, cm.Primary()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Database migrations applied")

	// Redis is optional; without it the subscription cache and distributed
	// rate limiting are disabled.
	redisClient := newRedisClient(cfg, logger)

	var subs subscriptions.Service = subscriptions.NewPostgresService(cm.Primary())
	if redisClient != nil && cfg.Storage.CacheEnabled {
		subs = subscriptions.NewCachedService(subs, redisClient, cfg.Storage.CacheTTL)
		logger.Info("Subscription cache enabled")
	}

	ledger := adspend.NewPostgresLedger(cm.Primary(), subs)

	// Projections and history are read-only and tolerate replica lag.
	readLedger := adspend.NewPostgresLedger(cm.Replica(), subs)
	engine := billing.NewEngine(subs, readLedger)
	accessGate := gate.New(subs, gate.WithCacheTTL(cfg.Billing.GateCacheTTL))
	adapter := gateway.NewAdapter(cm.Primary(), subs, logger)

	var gatewayClient gateway.PaymentGatewayClient
	if cfg.Billing.GatewayAPIURL != "" {
		gatewayClient = gateway.NewHTTPClient(cfg.Billing.GatewayAPIURL, cfg.Billing.GatewayAPIKey)
	} else {
		logger.Warn("Gateway API URL not set, checkout and remote plan changes disabled")
	}

	var rateLimiter *middleware.DistributedRateLimitMiddleware
	deps := api.Dependencies{
		Subscriptions: subs,
		Ledger:        ledger,
		Engine:        engine,
		Gate:          accessGate,
		Adapter:       adapter,
		Logger:        logger,
		Gateway:       gatewayClient,
		UpgradeURL:    cfg.Billing.UpgradeURL,
		WebhookSecret: cfg.Billing.WebhookSecret,
	}
	if redisClient != nil {
		rateLimiter = middleware.NewDistributedRateLimitMiddleware(redisClient)
		deps.WebhookMiddleware = rateLimiter.WebhookHandler
	}
	server := api.NewServer(deps)

	// Middleware chain, innermost first
	var handler http.Handler = server.Router()
	handler = httputil.MaxBytesMiddleware(1<<20)(handler)

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
		handler = observability.HTTPMetricsMiddleware(metrics)(handler)
	}

	if rateLimiter != nil {
		handler = rateLimiter.Handler(handler)
	} else {
		handler = middleware.NewRateLimitMiddleware().Handler(handler)
	}

	handler = middleware.RequestLoggingMiddleware(logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = httputil.RecoveryMiddleware(handler)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port for k8s probes
	healthChecker := observability.NewHealthChecker(cm.Primary(), redisClient)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, healthChecker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.WithField("addr", addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("storage", func(ctx context.Context) error {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				return err
			}
		}
		return cm.Close()
	})
	shutdown.RegisterShutdownFunc("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
	}
	if err := group.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// newRedisClient connects to Redis when configured, returning nil otherwise.
// A failed connection degrades to no cache and in-process rate limiting.
func newRedisClient(cfg *config.Config, logger *observability.Logger) *redis.Client {
	if cfg.Storage.RedisURL == "" {
		return nil
	}

	client, err := postgres.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, continuing without cache or distributed rate limits")
		return nil
	}
	return client
}
