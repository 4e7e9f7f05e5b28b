// Package storage holds the persistence configuration shared by the server
// and the reporter binaries.
//
// The actual data access lives with the domain packages (pkg/subscriptions,
// pkg/adspend, pkg/gateway); this package owns connection management, the
// schema migrations, and the Redis client used by the subscription cache.
//
// # Usage
//
//	cfg := storage.DefaultConfig()
//	cfg.PostgresURL = "postgres://localhost/adgate"
//
//	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
//		PrimaryURL: cfg.PostgresURL,
//		MaxConns:   cfg.PostgresMaxConns,
//	})
//	err = postgres.RunMigrations(ctx, cm.Primary())
package storage
