package billing

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// fakeSubs serves a single canned subscription
type fakeSubs struct {
	sub *subscriptions.Subscription
}

func (f *fakeSubs) GetSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubs) CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *subscriptions.CreateOptions) (*subscriptions.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubs) GetOrCreateSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubs) UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*subscriptions.Subscription, error) {
	return f.sub, nil
}

func (f *fakeSubs) UpdateStatus(ctx context.Context, accountID string, status subscriptions.Status, opts *subscriptions.StatusOptions) error {
	return nil
}

func (f *fakeSubs) UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error {
	return nil
}

func (f *fakeSubs) UpdateBillingPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) error {
	return nil
}

func (f *fakeSubs) UpdateAdSpendTracking(ctx context.Context, accountID string, spendDelta float64) error {
	return nil
}

func (f *fakeSubs) ApplyAdSpendDeltas(ctx context.Context, accountID string, spendDelta, feeDelta float64) error {
	return nil
}

func (f *fakeSubs) ResetMonthlyAdSpend(ctx context.Context, accountID string) error { return nil }

func (f *fakeSubs) CanAccessFeature(ctx context.Context, accountID string, limitKey plans.LimitKey) (bool, error) {
	return true, nil
}

func (f *fakeSubs) CancelAtPeriodEnd(ctx context.Context, accountID string) error { return nil }
func (f *fakeSubs) Reactivate(ctx context.Context, accountID string) error        { return nil }

func (f *fakeSubs) ListByTier(ctx context.Context, tier plans.Tier) ([]*subscriptions.Subscription, error) {
	return nil, nil
}

func (f *fakeSubs) ListAccountIDs(ctx context.Context) ([]string, error) { return nil, nil }

// fakeLedger serves canned aggregates
type fakeLedger struct {
	periodSpend float64
	totalSpend  float64
	totalFees   float64
	summaries   map[string]*adspend.MonthlySummary
	failMonths  map[string]bool
}

func (f *fakeLedger) RecordAdSpend(ctx context.Context, accountID string, input adspend.EntryInput) (*adspend.Entry, error) {
	return nil, nil
}

func (f *fakeLedger) RecordAdSpendBatch(ctx context.Context, accountID string, inputs []adspend.EntryInput) (*adspend.BatchResult, error) {
	return nil, nil
}

func (f *fakeLedger) GetEntries(ctx context.Context, accountID string, start, end time.Time, platform adspend.Platform) ([]*adspend.Entry, error) {
	return nil, nil
}

func (f *fakeLedger) CalculateMonthlySummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	if f.failMonths[month] {
		return nil, errors.New("storage unavailable")
	}
	if summary, ok := f.summaries[month]; ok {
		return summary, nil
	}
	return &adspend.MonthlySummary{AccountID: accountID, Month: month}, nil
}

func (f *fakeLedger) RecalculateSummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	return f.CalculateMonthlySummary(ctx, accountID, month)
}

func (f *fakeLedger) MarkEntriesSynced(ctx context.Context, accountID, month string) (int64, error) {
	return 0, nil
}

func (f *fakeLedger) MarkSummaryReported(ctx context.Context, accountID, month string) error {
	return nil
}

func (f *fakeLedger) GetCurrentPeriodSpend(ctx context.Context, accountID string) (float64, error) {
	return f.periodSpend, nil
}

func (f *fakeLedger) GetAdSpendTrend(ctx context.Context, accountID string, days int) ([]adspend.DailySpend, error) {
	return nil, nil
}

func (f *fakeLedger) GetTotalAdSpend(ctx context.Context, accountID string) (float64, error) {
	return f.totalSpend, nil
}

func (f *fakeLedger) GetTotalFees(ctx context.Context, accountID string) (float64, error) {
	return f.totalFees, nil
}

func (f *fakeLedger) SyncFromMetrics(ctx context.Context, accountID string, metrics []adspend.PlatformMetric) (*adspend.BatchResult, error) {
	return nil, nil
}

func (f *fakeLedger) Reconcile(ctx context.Context, accountID string) (*adspend.ReconcileResult, error) {
	return nil, nil
}

func subOnTier(tier plans.Tier) *subscriptions.Subscription {
	now := time.Now().UTC()
	config, _ := plans.GetConfig(tier)
	return &subscriptions.Subscription{
		AccountID:          "acct_1",
		Tier:               tier,
		Status:             subscriptions.StatusActive,
		CurrentPeriodStart: now.Add(-9*24*time.Hour - 12*time.Hour),
		CurrentPeriodEnd:   now.Add(19*24*time.Hour + 12*time.Hour),
		AdSpendPercentage:  config.AdSpendPercentage,
		Limits:             config.Limits,
		CreatedAt:          now.Add(-75 * 24 * time.Hour),
		UpdatedAt:          now,
	}
}

func TestCalculateBillingBreakdown(t *testing.T) {
	ctx := context.Background()

	t.Run("starter", func(t *testing.T) {
		sub := subOnTier(plans.TierStarter)
		sub.ManagedAdSpendThisMonth = 1500
		sub.PlatformFeeThisMonth = 30
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{})

		breakdown, err := engine.CalculateBillingBreakdown(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, 99.0, breakdown.BaseFee)
		assert.Equal(t, 1500.0, breakdown.ManagedAdSpend)
		assert.Equal(t, 30.0, breakdown.AdSpendFee)
		assert.Equal(t, 129.0, breakdown.Total)
		assert.False(t, breakdown.RequiresManualInvoicing)
	})

	t.Run("enterprise is manually invoiced", func(t *testing.T) {
		sub := subOnTier(plans.TierEnterprise)
		sub.PlatformFeeThisMonth = 750
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{})

		breakdown, err := engine.CalculateBillingBreakdown(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, 0.0, breakdown.BaseFee)
		assert.Equal(t, 750.0, breakdown.Total)
		assert.True(t, breakdown.RequiresManualInvoicing)
	})
}

func TestProjectBilling(t *testing.T) {
	ctx := context.Background()

	t.Run("mid period", func(t *testing.T) {
		sub := subOnTier(plans.TierStarter)
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{periodSpend: 500})

		projection, err := engine.ProjectBilling(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, 10, projection.DaysPassed)
		assert.Equal(t, 20, projection.DaysRemaining)
		assert.Equal(t, 50.0, projection.AvgDailySpend)
		assert.Equal(t, 1500.0, projection.ProjectedMonthlySpend)
		assert.Equal(t, 30.0, projection.ProjectedFee)
		assert.Equal(t, 129.0, projection.ProjectedTotal)
	})

	t.Run("day one never divides by zero", func(t *testing.T) {
		sub := subOnTier(plans.TierStarter)
		now := time.Now().UTC()
		sub.CurrentPeriodStart = now
		sub.CurrentPeriodEnd = now.AddDate(0, 1, 0)
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{periodSpend: 0})

		projection, err := engine.ProjectBilling(ctx, "acct_1")
		require.NoError(t, err)
		assert.Equal(t, 1, projection.DaysPassed)
		assert.Equal(t, 0.0, projection.AvgDailySpend)
		assert.Equal(t, 0.0, projection.ProjectedFee)
	})
}

func TestCalculateUpgradeSavings(t *testing.T) {
	ctx := context.Background()

	t.Run("same spend under both rate cards", func(t *testing.T) {
		sub := subOnTier(plans.TierStarter)
		sub.ManagedAdSpendThisMonth = 10000
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{})

		savings, err := engine.CalculateUpgradeSavings(ctx, "acct_1", plans.TierPro)
		require.NoError(t, err)
		assert.InDelta(t, 299.0, savings.CurrentCost, 1e-9)  // 99 + 10000*0.02
		assert.InDelta(t, 549.0, savings.TargetCost, 1e-9)   // 299 + 10000*0.025
		assert.InDelta(t, -250.0, savings.Savings, 1e-9)
		assert.False(t, savings.Worthwhile)
	})

	t.Run("zero current cost means zero percent", func(t *testing.T) {
		sub := subOnTier(plans.TierFree)
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{})

		savings, err := engine.CalculateUpgradeSavings(ctx, "acct_1", plans.TierStarter)
		require.NoError(t, err)
		assert.Equal(t, 0.0, savings.CurrentCost)
		assert.Equal(t, 0.0, savings.SavingsPercent)
	})

	t.Run("enterprise target rejected", func(t *testing.T) {
		sub := subOnTier(plans.TierStarter)
		engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{})

		_, err := engine.CalculateUpgradeSavings(ctx, "acct_1", plans.TierEnterprise)
		assert.Error(t, err)
	})
}

func TestCalculateBreakEvenSpend(t *testing.T) {
	engine := NewEngine(&fakeSubs{sub: subOnTier(plans.TierStarter)}, &fakeLedger{})

	t.Run("no break-even when the target rate is not lower", func(t *testing.T) {
		breakEven, err := engine.CalculateBreakEvenSpend(plans.TierStarter, plans.TierPro)
		require.NoError(t, err)
		assert.True(t, math.IsInf(breakEven, 1))
	})

	t.Run("finite when the target rate is lower", func(t *testing.T) {
		breakEven, err := engine.CalculateBreakEvenSpend(plans.TierPro, plans.TierStarter)
		require.NoError(t, err)
		// baseDiff (99-299) / rateDiff (0.025-0.02)
		assert.InDelta(t, -40000.0, breakEven, 1e-6)
	})

	t.Run("custom pricing rejected", func(t *testing.T) {
		_, err := engine.CalculateBreakEvenSpend(plans.TierStarter, plans.TierEnterprise)
		assert.Error(t, err)
	})
}

func TestGetBillingHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	currentMonth := now.Format("2006-01")
	lastMonth := now.AddDate(0, -1, 0).Format("2006-01")

	sub := subOnTier(plans.TierStarter)
	ledger := &fakeLedger{
		summaries: map[string]*adspend.MonthlySummary{
			currentMonth: {Month: currentMonth, TotalSpend: 1000, TotalFee: 20, EntryCount: 4},
		},
		failMonths: map[string]bool{lastMonth: true},
	}
	engine := NewEngine(&fakeSubs{sub: sub}, ledger)

	history, err := engine.GetBillingHistory(ctx, "acct_1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)

	// oldest first
	assert.Equal(t, now.AddDate(0, -2, 0).Format("2006-01"), history[0].Month)
	assert.Equal(t, currentMonth, history[2].Month)

	// failed month falls back to a zero row with the base fee intact
	assert.Equal(t, lastMonth, history[1].Month)
	assert.Equal(t, 0.0, history[1].TotalFee)
	assert.Equal(t, 99.0, history[1].Total)

	assert.Equal(t, 119.0, history[2].Total)
	assert.Equal(t, 1000.0, history[2].TotalSpend)
}

func TestGetAccountLifetimeValue(t *testing.T) {
	sub := subOnTier(plans.TierStarter) // created 75 days ago
	engine := NewEngine(&fakeSubs{sub: sub}, &fakeLedger{totalFees: 150})

	ltv, err := engine.GetAccountLifetimeValue(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 3, ltv.MonthsActive) // ceil(75/30)
	assert.Equal(t, 297.0, ltv.BaseRevenue)
	assert.Equal(t, 150.0, ltv.FeeRevenue)
	assert.Equal(t, 447.0, ltv.TotalRevenue)
}
