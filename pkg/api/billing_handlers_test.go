package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/billing"
	"github.com/marketerhq/adgate/pkg/plans"
)

func TestGetBreakdown(t *testing.T) {
	subs := newFakeSubs()
	sub := subs.add("acct_1", plans.TierStarter)
	sub.ManagedAdSpendThisMonth = 5_000
	sub.PlatformFeeThisMonth = 100
	server := newTestServer(subs, newFakeLedger())

	rec := doRequest(server, http.MethodGet, "/api/v1/billing/breakdown", "acct_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var breakdown billing.Breakdown
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &breakdown))
	assert.Equal(t, plans.TierStarter, breakdown.Tier)
	assert.Equal(t, 99.0, breakdown.BaseFee)
	assert.Equal(t, 5_000.0, breakdown.ManagedAdSpend)
	assert.Equal(t, 100.0, breakdown.AdSpendFee)
	assert.Equal(t, 199.0, breakdown.Total)
	assert.False(t, breakdown.RequiresManualInvoicing)
}

func TestGetProjection(t *testing.T) {
	subs := newFakeSubs()
	subs.add("acct_1", plans.TierStarter)
	ledger := newFakeLedger()
	ledger.periodSpend = 1_000
	server := newTestServer(subs, ledger)

	rec := doRequest(server, http.MethodGet, "/api/v1/billing/projection", "acct_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var projection billing.Projection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projection))
	assert.Equal(t, 1_000.0, projection.CurrentPeriodSpend)
	assert.GreaterOrEqual(t, projection.DaysPassed, 1)
	assert.Greater(t, projection.ProjectedMonthlySpend, 0.0)
	// projected total always includes the base fee
	assert.Greater(t, projection.ProjectedTotal, 99.0)
}

func TestGetHistory(t *testing.T) {
	subs := newFakeSubs()
	subs.add("acct_1", plans.TierStarter)
	ledger := newFakeLedger()
	currentMonth := time.Now().UTC().Format("2006-01")
	ledger.summaries[currentMonth] = &adspend.MonthlySummary{
		AccountID:  "acct_1",
		Month:      currentMonth,
		TotalSpend: 2_500,
		TotalFee:   50,
		EntryCount: 12,
	}
	server := newTestServer(subs, ledger)

	rec := doRequest(server, http.MethodGet, "/api/v1/billing/history?months=3", "acct_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []billing.HistoryRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 3)

	// oldest first, current month last
	latest := history[2]
	assert.Equal(t, currentMonth, latest.Month)
	assert.Equal(t, 2_500.0, latest.TotalSpend)
	assert.Equal(t, 149.0, latest.Total)
}

func TestGetUpgradeSavings(t *testing.T) {
	subs := newFakeSubs()
	sub := subs.add("acct_1", plans.TierStarter)
	sub.ManagedAdSpendThisMonth = 10_000
	server := newTestServer(subs, newFakeLedger())

	t.Run("compares rate cards at the same spend", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/upgrade-savings/pro", "acct_1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var savings billing.UpgradeSavings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &savings))
		assert.Equal(t, plans.TierStarter, savings.CurrentTier)
		assert.Equal(t, plans.TierPro, savings.TargetTier)
		assert.Equal(t, 299.0, savings.CurrentCost)
		assert.Equal(t, 549.0, savings.TargetCost)
		assert.False(t, savings.Worthwhile)
	})

	t.Run("rejects custom-priced targets", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/upgrade-savings/enterprise", "acct_1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown tiers", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/upgrade-savings/platinum", "acct_1", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetBreakEven(t *testing.T) {
	subs := newFakeSubs()
	subs.add("acct_starter", plans.TierStarter)
	subs.add("acct_pro", plans.TierPro)
	server := newTestServer(subs, newFakeLedger())

	t.Run("no break-even when the target rate is higher", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/break-even/pro", "acct_starter", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			CurrentTier    string   `json:"current_tier"`
			TargetTier     string   `json:"target_tier"`
			Attainable     bool     `json:"attainable"`
			BreakEvenSpend *float64 `json:"break_even_spend"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "starter", resp.CurrentTier)
		assert.Equal(t, "pro", resp.TargetTier)
		assert.False(t, resp.Attainable)
		assert.Nil(t, resp.BreakEvenSpend)
	})

	t.Run("downgrade to a cheaper rate card", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/break-even/starter", "acct_pro", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Attainable     bool     `json:"attainable"`
			BreakEvenSpend *float64 `json:"break_even_spend"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Attainable)
		require.NotNil(t, resp.BreakEvenSpend)
		// base fees drop by $200 while the rate rises 0.5 points
		assert.Equal(t, -40_000.0, *resp.BreakEvenSpend)
	})

	t.Run("rejects custom-priced targets", func(t *testing.T) {
		rec := doRequest(server, http.MethodGet, "/api/v1/billing/break-even/enterprise", "acct_starter", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetLifetimeValue(t *testing.T) {
	subs := newFakeSubs()
	subs.add("acct_1", plans.TierStarter)
	ledger := newFakeLedger()
	ledger.periodSpend = 1_000
	server := newTestServer(subs, ledger)

	rec := doRequest(server, http.MethodGet, "/api/v1/billing/lifetime-value", "acct_1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ltv billing.LifetimeValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ltv))
	assert.Equal(t, plans.TierStarter, ltv.Tier)
	assert.GreaterOrEqual(t, ltv.MonthsActive, 2)
	assert.Equal(t, 20.0, ltv.FeeRevenue)
	assert.Equal(t, ltv.BaseRevenue+ltv.FeeRevenue, ltv.TotalRevenue)
}
