package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

var (
	dbURL             = flag.String("db-url", getEnv("ADGATE_POSTGRES_URL", "postgres://localhost/adgate?sslmode=disable"), "PostgreSQL connection URL")
	gatewayAPIURL     = flag.String("gateway-api-url", getEnv("ADGATE_GATEWAY_API_URL", ""), "Payment gateway API base URL")
	gatewayAPIKey     = flag.String("gateway-api-key", getEnv("ADGATE_GATEWAY_API_KEY", ""), "Payment gateway API key")
	reportSchedule    = flag.String("report-schedule", getEnv("ADGATE_REPORT_SCHEDULE", "0 2 1 * *"), "Cron schedule for monthly usage reporting (default: 1st day 02:00 UTC)")
	reconcileSchedule = flag.String("reconcile-schedule", getEnv("ADGATE_RECONCILE_SCHEDULE", "0 */6 * * *"), "Cron schedule for ledger reconciliation (default: every 6 hours)")
	runTimeout        = flag.Duration("run-timeout", 30*time.Minute, "Timeout for a single run across all accounts")
	runOnce           = flag.Bool("run-once", false, "Run the usage report once and exit (for testing or backfilling)")
	reportMonth       = flag.String("month", "", "Month to report (YYYY-MM format). If empty, reports the previous month. Only used with --run-once")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	if *gatewayAPIURL == "" || *gatewayAPIKey == "" {
		log.Fatal("Gateway API URL and key are required (--gateway-api-url, --gateway-api-key)")
	}

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	obsLogger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	subs := subscriptions.NewPostgresService(db)
	ledger := adspend.NewPostgresLedger(db, subs)
	client := gateway.NewHTTPClient(*gatewayAPIURL, *gatewayAPIKey)
	reporter := gateway.NewReporter(subs, ledger, client, obsLogger)

	// Run once mode (for testing or backfilling a month)
	if *runOnce {
		month := *reportMonth
		if month == "" {
			month = previousMonth()
		}
		if _, _, err := adspend.MonthWindow(month); err != nil {
			log.Fatalf("Invalid month: %v", err)
		}

		logger.WithField("month", month).Info("Running usage report")
		if err := runReport(reporter, logger, month); err != nil {
			log.Fatalf("Usage report failed: %v", err)
		}

		logger.Info("Usage report completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(*reportSchedule, func() {
		defer observability.RecoverPanic(obsLogger, "usage report")
		month := previousMonth()
		logger.WithField("month", month).Info("Starting monthly usage report")

		if err := runReport(reporter, logger, month); err != nil {
			logger.WithError(err).Error("Monthly usage report failed")
		} else {
			logger.Info("Monthly usage report completed")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule usage reporting: %v", err)
	}

	_, err = c.AddFunc(*reconcileSchedule, func() {
		defer observability.RecoverPanic(obsLogger, "ledger reconciliation")
		logger.Info("Starting ledger reconciliation")

		if err := runReconciliation(subs, ledger, logger); err != nil {
			logger.WithError(err).Error("Ledger reconciliation failed")
		} else {
			logger.Info("Ledger reconciliation completed")
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule reconciliation: %v", err)
	}

	c.Start()
	logger.Info("Adgate usage reporter started")
	logger.WithField("schedule", *reportSchedule).Info("Usage report schedule")
	logger.WithField("schedule", *reconcileSchedule).Info("Reconciliation schedule")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	logger.Info("Reporter stopped")
}

// runReport pushes one month's fee totals to the gateway for every account
func runReport(reporter *gateway.Reporter, logger *logrus.Logger, month string) error {
	ctx, cancel := context.WithTimeout(context.Background(), *runTimeout)
	defer cancel()

	results, err := reporter.ReportAllUsage(ctx, month)

	var reported, skipped int
	for _, result := range results {
		if result.Skipped {
			skipped++
			continue
		}
		reported++
	}
	logger.WithFields(logrus.Fields{
		"month":    month,
		"reported": reported,
		"skipped":  skipped,
	}).Info("Usage report summary")

	return err
}

// runReconciliation corrects drift between the ledger and the subscription
// accumulators for every account
func runReconciliation(subs subscriptions.Service, ledger adspend.Ledger, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), *runTimeout)
	defer cancel()

	accountIDs, err := subs.ListAccountIDs(ctx)
	if err != nil {
		return err
	}

	var corrected int
	var firstErr error
	for _, accountID := range accountIDs {
		result, err := ledger.Reconcile(ctx, accountID)
		if err != nil {
			logger.WithError(err).WithField("account_id", accountID).Error("Reconciliation failed for account")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if result.Corrected {
			corrected++
			logger.WithFields(logrus.Fields{
				"account_id":  accountID,
				"spend_drift": result.SpendDrift,
				"fee_drift":   result.FeeDrift,
			}).Warn("Corrected accumulator drift")
		}
	}

	logger.WithFields(logrus.Fields{
		"accounts":  len(accountIDs),
		"corrected": corrected,
	}).Info("Reconciliation summary")

	return firstErr
}

// previousMonth returns the prior calendar month in YYYY-MM format
func previousMonth() string {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0).Format("2006-01")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
