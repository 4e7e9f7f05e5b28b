package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create subscriptions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS subscriptions (
					account_id VARCHAR(255) PRIMARY KEY,
					tier VARCHAR(32) NOT NULL DEFAULT 'free',
					status VARCHAR(32) NOT NULL DEFAULT 'active',
					gateway_customer_id VARCHAR(255),
					gateway_subscription_id VARCHAR(255),
					current_period_start TIMESTAMPTZ NOT NULL,
					current_period_end TIMESTAMPTZ NOT NULL,
					ad_spend_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
					managed_ad_spend_this_month DOUBLE PRECISION NOT NULL DEFAULT 0,
					platform_fee_this_month DOUBLE PRECISION NOT NULL DEFAULT 0,
					limits JSONB NOT NULL DEFAULT '{}',
					trial_ends_at TIMESTAMPTZ,
					cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
					canceled_at TIMESTAMPTZ,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_subscriptions_tier ON subscriptions(tier);
				CREATE INDEX idx_subscriptions_status ON subscriptions(status);
				CREATE INDEX idx_subscriptions_gateway_subscription_id ON subscriptions(gateway_subscription_id);
			`,
		},
		{
			Version:     2,
			Description: "Create ad_spend_entries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS ad_spend_entries (
					id VARCHAR(512) PRIMARY KEY,
					account_id VARCHAR(255) NOT NULL,
					platform VARCHAR(32) NOT NULL,
					integration_id VARCHAR(255) NOT NULL,
					campaign_id VARCHAR(255),
					date TIMESTAMPTZ NOT NULL,
					spend DOUBLE PRECISION NOT NULL,
					currency VARCHAR(8) NOT NULL DEFAULT 'USD',
					calculated_fee DOUBLE PRECISION NOT NULL,
					synced BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_ad_spend_entries_account_date ON ad_spend_entries(account_id, date);
				CREATE INDEX idx_ad_spend_entries_synced ON ad_spend_entries(account_id, synced);
			`,
		},
		{
			Version:     3,
			Description: "Create ad_spend_summaries table",
			SQL: `
				CREATE TABLE IF NOT EXISTS ad_spend_summaries (
					id VARCHAR(300) PRIMARY KEY,
					account_id VARCHAR(255) NOT NULL,
					month VARCHAR(7) NOT NULL,
					total_spend DOUBLE PRECISION NOT NULL DEFAULT 0,
					total_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
					platform_breakdown JSONB NOT NULL DEFAULT '{}',
					entry_count INT NOT NULL DEFAULT 0,
					reported_to_gateway BOOLEAN NOT NULL DEFAULT FALSE,
					reported_at TIMESTAMPTZ,
					computed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_ad_spend_summaries_account ON ad_spend_summaries(account_id);
				CREATE INDEX idx_ad_spend_summaries_month ON ad_spend_summaries(month);
			`,
		},
		{
			Version:     4,
			Description: "Create gateway_events table",
			SQL: `
				CREATE TABLE IF NOT EXISTS gateway_events (
					id VARCHAR(255) PRIMARY KEY,
					event_type VARCHAR(64) NOT NULL,
					processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_gateway_events_processed_at ON gateway_events(processed_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS adgate_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM adgate_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO adgate_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
