package subscriptions

import (
	"context"
	"fmt"

	"github.com/marketerhq/adgate/pkg/plans"
)

// UpdateAdSpendTracking adds spendDelta to the period accumulator and derives
// the fee delta from the subscription's snapshotted ad-spend rate. Both
// counters move in a single statement so concurrent writers never lose an
// increment.
func (s *PostgresService) UpdateAdSpendTracking(ctx context.Context, accountID string, spendDelta float64) error {
	query := `
		UPDATE subscriptions
		SET managed_ad_spend_this_month = managed_ad_spend_this_month + $1,
		    platform_fee_this_month = platform_fee_this_month + $1 * ad_spend_percentage,
		    updated_at = NOW()
		WHERE account_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, spendDelta, accountID)
	if err != nil {
		return fmt.Errorf("failed to update ad spend tracking: %w", err)
	}

	return requireRow(result)
}

// ApplyAdSpendDeltas adds explicit spend and fee deltas to the period
// accumulators. The ledger uses this when an upsert corrects a prior entry
// and the fee delta was computed against the rate in effect at write time.
func (s *PostgresService) ApplyAdSpendDeltas(ctx context.Context, accountID string, spendDelta, feeDelta float64) error {
	query := `
		UPDATE subscriptions
		SET managed_ad_spend_this_month = managed_ad_spend_this_month + $1,
		    platform_fee_this_month = platform_fee_this_month + $2,
		    updated_at = NOW()
		WHERE account_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, spendDelta, feeDelta, accountID)
	if err != nil {
		return fmt.Errorf("failed to apply ad spend deltas: %w", err)
	}

	return requireRow(result)
}

// ResetMonthlyAdSpend zeroes the period accumulators at the start of a new
// billing period
func (s *PostgresService) ResetMonthlyAdSpend(ctx context.Context, accountID string) error {
	query := `
		UPDATE subscriptions
		SET managed_ad_spend_this_month = 0, platform_fee_this_month = 0, updated_at = NOW()
		WHERE account_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to reset monthly ad spend: %w", err)
	}

	return requireRow(result)
}

// CanAccessFeature reports whether the account's snapshotted limits grant a
// limit key. Boolean limits are returned as-is; numeric limits grant access
// when unlimited or positive.
func (s *PostgresService) CanAccessFeature(ctx context.Context, accountID string, limitKey plans.LimitKey) (bool, error) {
	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return false, err
	}

	if v, ok := sub.Limits.Bool(limitKey); ok {
		return v, nil
	}
	if v, ok := sub.Limits.Numeric(limitKey); ok {
		return v == plans.Unlimited || v > 0, nil
	}

	return false, fmt.Errorf("unknown limit key %q", limitKey)
}
