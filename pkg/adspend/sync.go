package adspend

import (
	"context"
	"fmt"
	"math"
)

// integrationPlatforms maps integration types, as reported by sync jobs, to
// ad platforms. Types absent from this map are not advertising integrations
// and their metrics carry no billable spend.
var integrationPlatforms = map[string]Platform{
	"meta":       PlatformMeta,
	"facebook":   PlatformMeta,
	"instagram":  PlatformMeta,
	"google":     PlatformGoogleAds,
	"google_ads": PlatformGoogleAds,
	"tiktok":     PlatformTikTokAds,
	"tiktok_ads": PlatformTikTokAds,
	"pinterest":  PlatformPinterest,
}

// reconcileEpsilon absorbs float accumulation noise when comparing the
// ledger sums against the counters
const reconcileEpsilon = 0.005

// SyncFromMetrics converts raw integration metrics into ledger entries.
// Non-advertising integrations and rows without positive spend are skipped.
func (l *PostgresLedger) SyncFromMetrics(ctx context.Context, accountID string, metrics []PlatformMetric) (*BatchResult, error) {
	var inputs []EntryInput
	for _, metric := range metrics {
		platform, ok := integrationPlatforms[metric.IntegrationType]
		if !ok || metric.Spend <= 0 {
			continue
		}
		inputs = append(inputs, EntryInput{
			Platform:      platform,
			IntegrationID: metric.IntegrationID,
			CampaignID:    metric.CampaignID,
			Date:          metric.Date,
			Spend:         metric.Spend,
			Currency:      metric.Currency,
		})
	}

	return l.RecordAdSpendBatch(ctx, accountID, inputs)
}

// Reconcile compares the subscription's period accumulators against the
// ledger's sums over the same billing window and corrects any drift by
// applying the difference. With delta-corrected upserts drift only appears
// after a crash between an entry write and its counter update.
func (l *PostgresLedger) Reconcile(ctx context.Context, accountID string) (*ReconcileResult, error) {
	sub, err := l.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	var ledgerSpend, ledgerFee float64
	err = l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(spend), 0), COALESCE(SUM(calculated_fee), 0)
		 FROM ad_spend_entries
		 WHERE account_id = $1 AND date >= $2 AND date < $3`,
		accountID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
	).Scan(&ledgerSpend, &ledgerFee)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger period: %w", err)
	}

	result := &ReconcileResult{
		AccountID:    accountID,
		LedgerSpend:  ledgerSpend,
		LedgerFee:    ledgerFee,
		CounterSpend: sub.ManagedAdSpendThisMonth,
		CounterFee:   sub.PlatformFeeThisMonth,
		SpendDrift:   ledgerSpend - sub.ManagedAdSpendThisMonth,
		FeeDrift:     ledgerFee - sub.PlatformFeeThisMonth,
	}

	if math.Abs(result.SpendDrift) > reconcileEpsilon || math.Abs(result.FeeDrift) > reconcileEpsilon {
		if err := l.subs.ApplyAdSpendDeltas(ctx, accountID, result.SpendDrift, result.FeeDrift); err != nil {
			return nil, fmt.Errorf("failed to correct drift: %w", err)
		}
		result.Corrected = true
	}

	return result, nil
}
