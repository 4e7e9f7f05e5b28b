package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketerhq/adgate/pkg/adspend"
)

// fakeReportLedger serves one canned summary and records reporting marks
type fakeReportLedger struct {
	summary       *adspend.MonthlySummary
	markedMonths  []string
	syncedMonths  []string
	entriesInMonth int64
}

func (f *fakeReportLedger) RecordAdSpend(ctx context.Context, accountID string, input adspend.EntryInput) (*adspend.Entry, error) {
	return nil, nil
}

func (f *fakeReportLedger) RecordAdSpendBatch(ctx context.Context, accountID string, inputs []adspend.EntryInput) (*adspend.BatchResult, error) {
	return nil, nil
}

func (f *fakeReportLedger) GetEntries(ctx context.Context, accountID string, start, end time.Time, platform adspend.Platform) ([]*adspend.Entry, error) {
	return nil, nil
}

func (f *fakeReportLedger) CalculateMonthlySummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	return f.summary, nil
}

func (f *fakeReportLedger) RecalculateSummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	return f.summary, nil
}

func (f *fakeReportLedger) MarkEntriesSynced(ctx context.Context, accountID, month string) (int64, error) {
	f.syncedMonths = append(f.syncedMonths, month)
	return f.entriesInMonth, nil
}

func (f *fakeReportLedger) MarkSummaryReported(ctx context.Context, accountID, month string) error {
	f.markedMonths = append(f.markedMonths, month)
	return nil
}

func (f *fakeReportLedger) GetCurrentPeriodSpend(ctx context.Context, accountID string) (float64, error) {
	return 0, nil
}

func (f *fakeReportLedger) GetAdSpendTrend(ctx context.Context, accountID string, days int) ([]adspend.DailySpend, error) {
	return nil, nil
}

func (f *fakeReportLedger) GetTotalAdSpend(ctx context.Context, accountID string) (float64, error) {
	return 0, nil
}

func (f *fakeReportLedger) GetTotalFees(ctx context.Context, accountID string) (float64, error) {
	return 0, nil
}

func (f *fakeReportLedger) SyncFromMetrics(ctx context.Context, accountID string, metrics []adspend.PlatformMetric) (*adspend.BatchResult, error) {
	return nil, nil
}

func (f *fakeReportLedger) Reconcile(ctx context.Context, accountID string) (*adspend.ReconcileResult, error) {
	return nil, nil
}

// fakeClient records reported quantities
type fakeClient struct {
	quantities []int64
	subIDs     []string
}

func (f *fakeClient) ReportMeteredUsage(ctx context.Context, gatewaySubscriptionID string, quantity int64, at time.Time) error {
	f.subIDs = append(f.subIDs, gatewaySubscriptionID)
	f.quantities = append(f.quantities, quantity)
	return nil
}

func TestReportUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("fee reported in cents with absolute-set semantics", func(t *testing.T) {
		ledger := &fakeReportLedger{
			summary: &adspend.MonthlySummary{
				AccountID:  "acct_1",
				Month:      "2024-03",
				TotalSpend: 1000,
				TotalFee:   20.456,
			},
			entriesInMonth: 7,
		}
		client := &fakeClient{}
		reporter := NewReporter(&recordingSubs{}, ledger, client, testLogger())

		result, err := reporter.ReportUsage(ctx, "acct_1", "2024-03")
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.Equal(t, int64(2046), result.Quantity) // round(20.456 * 100)
		assert.Equal(t, []int64{2046}, client.quantities)
		assert.Equal(t, []string{"sub_123"}, client.subIDs)
		assert.Equal(t, []string{"2024-03"}, ledger.markedMonths)
		assert.Equal(t, []string{"2024-03"}, ledger.syncedMonths)
		assert.Equal(t, int64(7), result.EntriesSynced)
	})

	t.Run("already-reported month skipped", func(t *testing.T) {
		ledger := &fakeReportLedger{
			summary: &adspend.MonthlySummary{
				AccountID:         "acct_1",
				Month:             "2024-02",
				TotalFee:          15,
				ReportedToGateway: true,
			},
		}
		client := &fakeClient{}
		reporter := NewReporter(&recordingSubs{}, ledger, client, testLogger())

		result, err := reporter.ReportUsage(ctx, "acct_1", "2024-02")
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Empty(t, client.quantities)
		assert.Empty(t, ledger.markedMonths)
	})

	t.Run("zero-fee month skipped", func(t *testing.T) {
		ledger := &fakeReportLedger{
			summary: &adspend.MonthlySummary{
				AccountID:  "acct_1",
				Month:      "2024-01",
				TotalSpend: 0,
				TotalFee:   0,
			},
		}
		client := &fakeClient{}
		reporter := NewReporter(&recordingSubs{}, ledger, client, testLogger())

		result, err := reporter.ReportUsage(ctx, "acct_1", "2024-01")
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, "no fees for month", result.SkipReason)
		assert.Empty(t, client.quantities)
		assert.Empty(t, ledger.markedMonths)
		assert.Empty(t, ledger.syncedMonths)
	})
}

func TestReportAllUsage(t *testing.T) {
	ledger := &fakeReportLedger{
		summary: &adspend.MonthlySummary{AccountID: "acct_1", Month: "2024-03", TotalFee: 10},
	}
	client := &fakeClient{}
	reporter := NewReporter(&recordingSubs{}, ledger, client, testLogger())

	results, err := reporter.ReportAllUsage(context.Background(), "2024-03")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(1000), results[0].Quantity)
}
