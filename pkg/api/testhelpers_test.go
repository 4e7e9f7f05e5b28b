package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/billing"
	"github.com/marketerhq/adgate/pkg/gate"
	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// fakeSubs is an in-memory subscriptions.Service for handler tests.
type fakeSubs struct {
	subs        map[string]*subscriptions.Subscription
	cancelCalls int
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{subs: make(map[string]*subscriptions.Subscription)}
}

func (f *fakeSubs) add(accountID string, tier plans.Tier) *subscriptions.Subscription {
	cfg, _ := plans.GetConfig(tier)
	now := time.Now()
	sub := &subscriptions.Subscription{
		AccountID:          accountID,
		Tier:               tier,
		Status:             subscriptions.StatusActive,
		AdSpendPercentage:  cfg.AdSpendPercentage,
		CurrentPeriodStart: now.AddDate(0, 0, -10),
		CurrentPeriodEnd:   now.AddDate(0, 0, 20),
		Limits:             cfg.Limits,
		CreatedAt:          now.AddDate(0, -2, 0),
		UpdatedAt:          now,
	}
	f.subs[accountID] = sub
	return sub
}

func (f *fakeSubs) GetSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	sub, ok := f.subs[accountID]
	if !ok {
		return nil, subscriptions.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubs) CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *subscriptions.CreateOptions) (*subscriptions.Subscription, error) {
	return f.add(accountID, tier), nil
}

func (f *fakeSubs) GetOrCreateSubscription(ctx context.Context, accountID string) (*subscriptions.Subscription, error) {
	if sub, ok := f.subs[accountID]; ok {
		return sub, nil
	}
	return f.add(accountID, plans.TierFree), nil
}

func (f *fakeSubs) UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*subscriptions.Subscription, error) {
	sub, ok := f.subs[accountID]
	if !ok {
		return nil, subscriptions.ErrNotFound
	}
	cfg, err := plans.GetConfig(newTier)
	if err != nil {
		return nil, err
	}
	sub.Tier = newTier
	sub.AdSpendPercentage = cfg.AdSpendPercentage
	sub.Limits = cfg.Limits
	if gatewaySubscriptionID != "" {
		sub.GatewaySubscriptionID = gatewaySubscriptionID
	}
	return sub, nil
}

func (f *fakeSubs) UpdateStatus(ctx context.Context, accountID string, status subscriptions.Status, opts *subscriptions.StatusOptions) error {
	sub, ok := f.subs[accountID]
	if !ok {
		return subscriptions.ErrNotFound
	}
	sub.Status = status
	return nil
}

func (f *fakeSubs) UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error {
	if sub, ok := f.subs[accountID]; ok {
		sub.GatewayCustomerID = customerID
		sub.GatewaySubscriptionID = subscriptionID
	}
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
	return false, nil
}

func (f *fakeSubs) CancelAtPeriodEnd(ctx context.Context, accountID string) error {
	sub, ok := f.subs[accountID]
	if !ok {
		return subscriptions.ErrNotFound
	}
	f.cancelCalls++
	sub.CancelAtPeriodEnd = true
	return nil
}

func (f *fakeSubs) Reactivate(ctx context.Context, accountID string) error {
	sub, ok := f.subs[accountID]
	if !ok {
		return subscriptions.ErrNotFound
	}
	sub.CancelAtPeriodEnd = false
	sub.Status = subscriptions.StatusActive
	return nil
}

func (f *fakeSubs) ListByTier(ctx context.Context, tier plans.Tier) ([]*subscriptions.Subscription, error) {
	return nil, nil
}

func (f *fakeSubs) ListAccountIDs(ctx context.Context) ([]string, error) { return nil, nil }

// fakeLedger is an in-memory adspend.Ledger for handler tests.
type fakeLedger struct {
	entries     []*adspend.Entry
	periodSpend float64
	trend       []adspend.DailySpend
	summaries   map[string]*adspend.MonthlySummary
	recalcs     int
	failAll     bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{summaries: make(map[string]*adspend.MonthlySummary)}
}

func (f *fakeLedger) RecordAdSpend(ctx context.Context, accountID string, input adspend.EntryInput) (*adspend.Entry, error) {
	if f.failAll {
		return nil, fmt.Errorf("ledger unavailable")
	}
	entry := &adspend.Entry{
		ID:            adspend.EntryID(accountID, input.Platform, input.Date, input.IntegrationID),
		AccountID:     accountID,
		Platform:      input.Platform,
		IntegrationID: input.IntegrationID,
		CampaignID:    input.CampaignID,
		Date:          input.Date,
		Spend:         input.Spend,
		Currency:      input.Currency,
		CalculatedFee: input.Spend * 0.02,
	}
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeLedger) RecordAdSpendBatch(ctx context.Context, accountID string, inputs []adspend.EntryInput) (*adspend.BatchResult, error) {
	if f.failAll {
		return nil, fmt.Errorf("ledger unavailable")
	}
	result := &adspend.BatchResult{}
	for _, input := range inputs {
		entry, err := f.RecordAdSpend(ctx, accountID, input)
		if err != nil {
			return nil, err
		}
		result.Recorded++
		result.SpendDelta += entry.Spend
		result.FeeDelta += entry.CalculatedFee
	}
	return result, nil
}

func (f *fakeLedger) GetEntries(ctx context.Context, accountID string, start, end time.Time, platform adspend.Platform) ([]*adspend.Entry, error) {
	var out []*adspend.Entry
	for _, e := range f.entries {
		if platform != "" && e.Platform != platform {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeLedger) CalculateMonthlySummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	if summary, ok := f.summaries[month]; ok {
		return summary, nil
	}
	return &adspend.MonthlySummary{AccountID: accountID, Month: month}, nil
}

func (f *fakeLedger) RecalculateSummary(ctx context.Context, accountID, month string) (*adspend.MonthlySummary, error) {
	f.recalcs++
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
	return f.trend, nil
}

func (f *fakeLedger) GetTotalAdSpend(ctx context.Context, accountID string) (float64, error) {
	return f.periodSpend, nil
}

func (f *fakeLedger) GetTotalFees(ctx context.Context, accountID string) (float64, error) {
	return f.periodSpend * 0.02, nil
}

func (f *fakeLedger) SyncFromMetrics(ctx context.Context, accountID string, metrics []adspend.PlatformMetric) (*adspend.BatchResult, error) {
	var inputs []adspend.EntryInput
	for _, m := range metrics {
		if m.Spend <= 0 {
			continue
		}
		inputs = append(inputs, adspend.EntryInput{
			Platform:      adspend.PlatformMeta,
			IntegrationID: m.IntegrationID,
			Date:          m.Date,
			Spend:         m.Spend,
		})
	}
	return f.RecordAdSpendBatch(ctx, accountID, inputs)
}

func (f *fakeLedger) Reconcile(ctx context.Context, accountID string) (*adspend.ReconcileResult, error) {
	return &adspend.ReconcileResult{AccountID: accountID}, nil
}

// newTestServer wires a server around the fakes with no webhook handling.
func newTestServer(subs *fakeSubs, ledger *fakeLedger) *Server {
	return NewServer(Dependencies{
		Subscriptions: subs,
		Ledger:        ledger,
		Engine:        billing.NewEngine(subs, ledger),
		Gate:          gate.New(subs),
		Logger:        observability.NewLogger(observability.ErrorLevel, io.Discard),
		UpgradeURL:    "/settings/billing",
	})
}

// doRequest issues a request with the account header set.
func doRequest(server *Server, method, path, accountID string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if accountID != "" {
		req.Header.Set("X-Account-ID", accountID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

var _ http.Handler = (*Server)(nil)
