package gateway

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// Reporter pushes monthly fee totals to the payment gateway as metered usage
type Reporter struct {
	subs   subscriptions.Service
	ledger adspend.Ledger
	client Client
	logger *observability.Logger
}

// NewReporter creates a usage reporter
func NewReporter(subs subscriptions.Service, ledger adspend.Ledger, client Client, logger *observability.Logger) *Reporter {
	return &Reporter{subs: subs, ledger: ledger, client: client, logger: logger}
}

// ReportResult describes what one account's report did
type ReportResult struct {
	AccountID     string  `json:"account_id"`
	Month         string  `json:"month"`
	TotalFee      float64 `json:"total_fee"`
	Quantity      int64   `json:"quantity"`
	EntriesSynced int64   `json:"entries_synced"`
	Skipped       bool    `json:"skipped"`
	SkipReason    string  `json:"skip_reason,omitempty"`
}

// ReportUsage reports one account's fee total for a calendar month. The
// quantity is the fee in cents and replaces any previously reported value
// for the period. Already-reported months, zero-fee months, and accounts
// without a gateway subscription are skipped, not failed.
func (r *Reporter) ReportUsage(ctx context.Context, accountID, month string) (*ReportResult, error) {
	result := &ReportResult{AccountID: accountID, Month: month}

	sub, err := r.subs.GetSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}
	if sub.GatewaySubscriptionID == "" {
		result.Skipped = true
		result.SkipReason = "no gateway subscription"
		return result, nil
	}

	summary, err := r.ledger.CalculateMonthlySummary(ctx, accountID, month)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize month: %w", err)
	}
	if summary.ReportedToGateway {
		result.Skipped = true
		result.SkipReason = adspend.ErrSummaryReported.Error()
		result.TotalFee = summary.TotalFee
		return result, nil
	}
	if summary.TotalFee <= 0 {
		result.Skipped = true
		result.SkipReason = "no fees for month"
		return result, nil
	}

	result.TotalFee = summary.TotalFee
	result.Quantity = int64(math.Round(summary.TotalFee * 100))

	if err := r.client.ReportMeteredUsage(ctx, sub.GatewaySubscriptionID, result.Quantity, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to report usage: %w", err)
	}

	if err := r.ledger.MarkSummaryReported(ctx, accountID, month); err != nil {
		return nil, err
	}

	synced, err := r.ledger.MarkEntriesSynced(ctx, accountID, month)
	if err != nil {
		return nil, err
	}
	result.EntriesSynced = synced

	r.logger.WithFields(map[string]interface{}{
		"account_id": accountID,
		"month":      month,
		"quantity":   result.Quantity,
	}).Info("metered usage reported")

	return result, nil
}

// ReportAllUsage reports the given month for every account, continuing past
// per-account failures. It returns the per-account results and the first
// error encountered, if any.
func (r *Reporter) ReportAllUsage(ctx context.Context, month string) ([]*ReportResult, error) {
	accountIDs, err := r.subs.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	var results []*ReportResult
	var firstErr error
	for _, accountID := range accountIDs {
		result, err := r.ReportUsage(ctx, accountID, month)
		if err != nil {
			r.logger.WithAccount(accountID).WithError(err).Error("usage report failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, result)
	}

	return results, firstErr
}
