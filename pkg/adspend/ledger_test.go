package adspend

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// mockSubs is a minimal subscriptions.Service recording accumulator deltas
type mockSubs struct {
	sub        *subscriptions.Subscription
	spendDelta float64
	feeDelta   float64
	deltaCalls int
}

func newStarterSubs() *mockSubs {
	now := time.Now().UTC()
	limits, _ := plans.GetLimits(plans.TierStarter)
	return &mockSubs{
		sub: &subscriptions.Subscription{
			AccountID:          "acct_1",
			Tier:               plans.TierStarter,
			Status:             subscriptions.StatusActive,
			CurrentPeriodStart: now.AddDate(0, 0, -10),
			CurrentPeriodEnd:   now.AddDate(0, 0, 20),
			AdSpendPercentage:  0.02,
			Limits:             limits,
			CreatedAt:          now.AddDate(0, -3, 0),
			UpdatedAt:          now,
		},
	}
}

func (m *mockSubs) GetSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	return m.sub, nil
}

func (m *mockSubs) CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *subscriptions.CreateOptions) (*subscriptions.Subscription, error) {
	return m.sub, nil
}

func (m *mockSubs) GetOrCreateSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	return m.sub, nil
}

func (m *mockSubs) UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*subscriptions.Subscription, error) {
	return m.sub, nil
}

func (m *mockSubs) UpdateStatus(ctx context.Context, accountID string, status subscriptions.Status, opts *subscriptions.StatusOptions) error {
	return nil
}

func (m *mockSubs) UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error {
	return nil
}

func (m *mockSubs) UpdateBillingPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) error {
	return nil
}

func (m *mockSubs) UpdateAdSpendTracking(ctx context.Context, accountID string, spendDelta float64) error {
	m.deltaCalls++
	m.spendDelta += spendDelta
	m.feeDelta += spendDelta * m.sub.AdSpendPercentage
	return nil
}

func (m *mockSubs) ApplyAdSpendDeltas(ctx context.Context, accountID string, spendDelta, feeDelta float64) error {
	m.deltaCalls++
	m.spendDelta += spendDelta
	m.feeDelta += feeDelta
	return nil
}

func (m *mockSubs) ResetMonthlyAdSpend(ctx context.Context, accountID string) error { return nil }

func (m *mockSubs) CanAccessFeature(ctx context.Context, accountID string, limitKey plans.LimitKey) (bool, error) {
	return true, nil
}

func (m *mockSubs) CancelAtPeriodEnd(ctx context.Context, accountID string) error { return nil }
func (m *mockSubs) Reactivate(ctx context.Context, accountID string) error        { return nil }

func (m *mockSubs) ListByTier(ctx context.Context, tier plans.Tier) ([]*subscriptions.Subscription, error) {
	return nil, nil
}

func (m *mockSubs) ListAccountIDs(ctx context.Context) ([]string, error) { return nil, nil }

func TestEntryID(t *testing.T) {
	date := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	id := EntryID("acct_1", PlatformMeta, date, "int_42")
	assert.Equal(t, "acct_1_meta_2024-03-15_int_42", id)
}

func TestMonthWindow(t *testing.T) {
	start, end, err := MonthWindow("2024-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), start)
	// leap year, day zero of March
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), end)

	_, _, err = MonthWindow("not-a-month")
	assert.Error(t, err)
}

func TestRecordAdSpend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)
	ctx := context.Background()

	t.Run("starter $1000 prices a $20 fee", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT spend, calculated_fee FROM ad_spend_entries").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec("INSERT INTO ad_spend_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		entry, err := ledger.RecordAdSpend(ctx, "acct_1", EntryInput{
			Platform:      PlatformMeta,
			IntegrationID: "int_42",
			Date:          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Spend:         1000,
		})
		require.NoError(t, err)
		assert.Equal(t, 20.0, entry.CalculatedFee)
		assert.Equal(t, "acct_1_meta_2024-03-15_int_42", entry.ID)
		assert.Equal(t, "USD", entry.Currency)

		// accumulators moved by the full amounts
		assert.Equal(t, 1000.0, subs.spendDelta)
		assert.Equal(t, 20.0, subs.feeDelta)
		assert.Equal(t, 1, subs.deltaCalls)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("re-sync of identical data moves nothing", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT spend, calculated_fee FROM ad_spend_entries").
			WillReturnRows(sqlmock.NewRows([]string{"spend", "calculated_fee"}).AddRow(1000.0, 20.0))
		mock.ExpectExec("INSERT INTO ad_spend_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		before := subs.deltaCalls
		_, err := ledger.RecordAdSpend(ctx, "acct_1", EntryInput{
			Platform:      PlatformMeta,
			IntegrationID: "int_42",
			Date:          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Spend:         1000,
		})
		require.NoError(t, err)
		assert.Equal(t, before, subs.deltaCalls)
		assert.Equal(t, 1000.0, subs.spendDelta)
		assert.Equal(t, 20.0, subs.feeDelta)
	})

	t.Run("corrected amount applies only the difference", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT spend, calculated_fee FROM ad_spend_entries").
			WillReturnRows(sqlmock.NewRows([]string{"spend", "calculated_fee"}).AddRow(1000.0, 20.0))
		mock.ExpectExec("INSERT INTO ad_spend_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		_, err := ledger.RecordAdSpend(ctx, "acct_1", EntryInput{
			Platform:      PlatformMeta,
			IntegrationID: "int_42",
			Date:          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Spend:         1200,
		})
		require.NoError(t, err)
		assert.Equal(t, 1200.0, subs.spendDelta)
		assert.Equal(t, 24.0, subs.feeDelta)
	})
}

func TestRecordAdSpendBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)
	ctx := context.Background()

	inputs := []EntryInput{
		{Platform: PlatformMeta, IntegrationID: "int_1", Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Spend: 300},
		{Platform: PlatformGoogleAds, IntegrationID: "int_2", Date: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), Spend: 700},
	}

	expectBatch := func(existing []float64) {
		mock.ExpectBegin()
		for _, prior := range existing {
			q := mock.ExpectQuery("SELECT spend, calculated_fee FROM ad_spend_entries")
			if prior < 0 {
				q.WillReturnError(sql.ErrNoRows)
			} else {
				q.WillReturnRows(sqlmock.NewRows([]string{"spend", "calculated_fee"}).
					AddRow(prior, prior*0.02))
			}
			mock.ExpectExec("INSERT INTO ad_spend_entries").
				WillReturnResult(sqlmock.NewResult(0, 1))
		}
		mock.ExpectCommit()
	}

	// first sync: both entries new
	expectBatch([]float64{-1, -1})
	result, err := ledger.RecordAdSpendBatch(ctx, "acct_1", inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 1000.0, result.SpendDelta)
	assert.Equal(t, 20.0, result.FeeDelta)
	assert.Equal(t, 1000.0, subs.spendDelta)
	assert.Equal(t, 20.0, subs.feeDelta)

	// identical second sync: the ledger stays correct and the accumulators
	// do not drift
	expectBatch([]float64{300, 700})
	result, err = ledger.RecordAdSpendBatch(ctx, "acct_1", inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recorded)
	assert.Equal(t, 0.0, result.SpendDelta)
	assert.Equal(t, 0.0, result.FeeDelta)
	assert.Equal(t, 1000.0, subs.spendDelta)
	assert.Equal(t, 20.0, subs.feeDelta)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAdSpendBatchEmpty(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)

	result, err := ledger.RecordAdSpendBatch(context.Background(), "acct_1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Recorded)
	assert.Equal(t, 0, subs.deltaCalls)
}

func TestCalculateMonthlySummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)
	ctx := context.Background()

	t.Run("empty month is a zero summary", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM ad_spend_summaries").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT platform, (.+) FROM ad_spend_entries").
			WillReturnRows(sqlmock.NewRows([]string{"platform", "spend", "fee", "count"}))
		mock.ExpectExec("INSERT INTO ad_spend_summaries").
			WillReturnResult(sqlmock.NewResult(0, 1))

		summary, err := ledger.CalculateMonthlySummary(ctx, "acct_1", "2024-03")
		require.NoError(t, err)
		assert.Equal(t, 0.0, summary.TotalSpend)
		assert.Equal(t, 0.0, summary.TotalFee)
		assert.Equal(t, 0, summary.EntryCount)
		assert.False(t, summary.ReportedToGateway)
	})

	t.Run("aggregates per platform", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM ad_spend_summaries").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery("SELECT platform, (.+) FROM ad_spend_entries").
			WillReturnRows(sqlmock.NewRows([]string{"platform", "spend", "fee", "count"}).
				AddRow("meta", 600.0, 12.0, 3).
				AddRow("google_ads", 400.0, 8.0, 2))
		mock.ExpectExec("INSERT INTO ad_spend_summaries").
			WillReturnResult(sqlmock.NewResult(0, 1))

		summary, err := ledger.CalculateMonthlySummary(ctx, "acct_1", "2024-03")
		require.NoError(t, err)
		assert.Equal(t, 1000.0, summary.TotalSpend)
		assert.Equal(t, 20.0, summary.TotalFee)
		assert.Equal(t, 5, summary.EntryCount)
		assert.Equal(t, PlatformTotals{Spend: 600, Fee: 12}, summary.PlatformBreakdown[PlatformMeta])
	})

	t.Run("reported summary is returned as stored", func(t *testing.T) {
		now := time.Now()
		breakdown := []byte(`{"meta":{"spend":500,"fee":10}}`)
		mock.ExpectQuery("SELECT (.+) FROM ad_spend_summaries").
			WillReturnRows(sqlmock.NewRows([]string{
				"total_spend", "total_fee", "platform_breakdown", "entry_count",
				"reported_to_gateway", "reported_at", "computed_at",
			}).AddRow(500.0, 10.0, breakdown, 2, true, now, now))

		summary, err := ledger.CalculateMonthlySummary(ctx, "acct_1", "2024-02")
		require.NoError(t, err)
		assert.True(t, summary.ReportedToGateway)
		assert.Equal(t, 500.0, summary.TotalSpend)

		// no recompute query, no overwrite
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recalculate overrides the reported freeze", func(t *testing.T) {
		mock.ExpectQuery("SELECT platform, (.+) FROM ad_spend_entries").
			WillReturnRows(sqlmock.NewRows([]string{"platform", "spend", "fee", "count"}).
				AddRow("meta", 550.0, 11.0, 2))
		mock.ExpectExec("INSERT INTO ad_spend_summaries").
			WillReturnResult(sqlmock.NewResult(0, 1))

		summary, err := ledger.RecalculateSummary(ctx, "acct_1", "2024-02")
		require.NoError(t, err)
		assert.Equal(t, 550.0, summary.TotalSpend)
		assert.False(t, summary.ReportedToGateway)
	})
}

func TestGetCurrentPeriodSpend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs("acct_1", subs.sub.CurrentPeriodStart, subs.sub.CurrentPeriodEnd).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(1234.5))

	total, err := ledger.GetCurrentPeriodSpend(context.Background(), "acct_1")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, total)
}

func TestGetAdSpendTrend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)

	mock.ExpectQuery("SELECT to_char").
		WillReturnRows(sqlmock.NewRows([]string{"date", "spend", "fee"}).
			AddRow("2024-03-01", 100.0, 2.0).
			AddRow("2024-03-02", 150.0, 3.0))

	trend, err := ledger.GetAdSpendTrend(context.Background(), "acct_1", 30)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "2024-03-01", trend[0].Date)
	assert.Equal(t, 150.0, trend[1].Spend)
}

func TestSyncFromMetrics(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	subs := newStarterSubs()
	ledger := NewPostgresLedger(db, subs)
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	// only the facebook row survives the filter
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT spend, calculated_fee FROM ad_spend_entries").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO ad_spend_entries").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := ledger.SyncFromMetrics(context.Background(), "acct_1", []PlatformMetric{
		{IntegrationID: "int_1", IntegrationType: "facebook", Date: date, Spend: 500},
		{IntegrationID: "int_2", IntegrationType: "shopify", Date: date, Spend: 900},
		{IntegrationID: "int_3", IntegrationType: "google", Date: date, Spend: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Recorded)
	assert.Equal(t, 500.0, result.SpendDelta)
	assert.Equal(t, 10.0, result.FeeDelta)
}

func TestReconcile(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	t.Run("no drift", func(t *testing.T) {
		subs := newStarterSubs()
		subs.sub.ManagedAdSpendThisMonth = 1000
		subs.sub.PlatformFeeThisMonth = 20
		ledger := NewPostgresLedger(db, subs)

		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"spend", "fee"}).AddRow(1000.0, 20.0))

		result, err := ledger.Reconcile(ctx, "acct_1")
		require.NoError(t, err)
		assert.False(t, result.Corrected)
		assert.Equal(t, 0.0, result.SpendDrift)
		assert.Equal(t, 0, subs.deltaCalls)
	})

	t.Run("drift corrected from the ledger", func(t *testing.T) {
		subs := newStarterSubs()
		subs.sub.ManagedAdSpendThisMonth = 800
		subs.sub.PlatformFeeThisMonth = 16
		ledger := NewPostgresLedger(db, subs)

		mock.ExpectQuery("SELECT COALESCE").
			WillReturnRows(sqlmock.NewRows([]string{"spend", "fee"}).AddRow(1000.0, 20.0))

		result, err := ledger.Reconcile(ctx, "acct_1")
		require.NoError(t, err)
		assert.True(t, result.Corrected)
		assert.Equal(t, 200.0, result.SpendDrift)
		assert.Equal(t, 4.0, result.FeeDrift)
		assert.Equal(t, 200.0, subs.spendDelta)
		assert.Equal(t, 4.0, subs.feeDelta)
	})
}
