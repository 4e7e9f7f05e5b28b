package adspend

import (
	"errors"
	"fmt"
	"time"
)

// Platform identifies a connected advertising platform
type Platform string

// Supported ad platforms
const (
	PlatformMeta      Platform = "meta"
	PlatformGoogleAds Platform = "google_ads"
	PlatformTikTokAds Platform = "tiktok_ads"
	PlatformPinterest Platform = "pinterest"
)

// ErrSummaryReported is returned when a calendar month's summary has already
// been reported to the payment gateway and can no longer be silently
// overwritten
var ErrSummaryReported = errors.New("summary already reported to gateway")

// Entry is a single day of spend for one platform integration. Entries are
// upsertable by their deterministic id; only the synced flag and the
// spend/fee figures ever change after creation.
type Entry struct {
	ID            string    `json:"id"`
	AccountID     string    `json:"account_id"`
	Platform      Platform  `json:"platform"`
	IntegrationID string    `json:"integration_id"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	Date          time.Time `json:"date"`
	Spend         float64   `json:"spend"`
	Currency      string    `json:"currency"`
	CalculatedFee float64   `json:"calculated_fee"`
	Synced        bool      `json:"synced"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EntryInput describes one spend figure to record
type EntryInput struct {
	Platform      Platform  `json:"platform"`
	IntegrationID string    `json:"integration_id"`
	CampaignID    string    `json:"campaign_id,omitempty"`
	Date          time.Time `json:"date"`
	Spend         float64   `json:"spend"`
	Currency      string    `json:"currency,omitempty"`
}

// BatchResult reports what a batch write changed
type BatchResult struct {
	Recorded   int     `json:"recorded"`
	SpendDelta float64 `json:"spend_delta"`
	FeeDelta   float64 `json:"fee_delta"`
}

// DailySpend is one bucket of the spend trend series
type DailySpend struct {
	Date  string  `json:"date"`
	Spend float64 `json:"spend"`
	Fee   float64 `json:"fee"`
}

// PlatformTotals is the per-platform slice of a monthly summary
type PlatformTotals struct {
	Spend float64 `json:"spend"`
	Fee   float64 `json:"fee"`
}

// MonthlySummary is the cached aggregate for one account and calendar month.
// Month is formatted "YYYY-MM".
type MonthlySummary struct {
	AccountID         string                      `json:"account_id"`
	Month             string                      `json:"month"`
	TotalSpend        float64                     `json:"total_spend"`
	TotalFee          float64                     `json:"total_fee"`
	PlatformBreakdown map[Platform]PlatformTotals `json:"platform_breakdown"`
	EntryCount        int                         `json:"entry_count"`
	ReportedToGateway bool                        `json:"reported_to_gateway"`
	ReportedAt        *time.Time                  `json:"reported_at,omitempty"`
	ComputedAt        time.Time                   `json:"computed_at"`
}

// PlatformMetric is a raw metrics row from an integration sync job. Rows for
// non-advertising integrations or with no spend are skipped.
type PlatformMetric struct {
	IntegrationID   string    `json:"integration_id"`
	IntegrationType string    `json:"integration_type"`
	CampaignID      string    `json:"campaign_id,omitempty"`
	Date            time.Time `json:"date"`
	Spend           float64   `json:"spend"`
	Currency        string    `json:"currency,omitempty"`
}

// ReconcileResult compares the ledger's billing-period sums against the
// subscription's accumulators
type ReconcileResult struct {
	AccountID    string  `json:"account_id"`
	LedgerSpend  float64 `json:"ledger_spend"`
	LedgerFee    float64 `json:"ledger_fee"`
	CounterSpend float64 `json:"counter_spend"`
	CounterFee   float64 `json:"counter_fee"`
	SpendDrift   float64 `json:"spend_drift"`
	FeeDrift     float64 `json:"fee_drift"`
	Corrected    bool    `json:"corrected"`
}

// EntryID builds the deterministic composite id for an entry. The date
// component uses the UTC calendar day.
func EntryID(accountID string, platform Platform, date time.Time, integrationID string) string {
	return fmt.Sprintf("%s_%s_%s_%s", accountID, platform, date.UTC().Format("2006-01-02"), integrationID)
}

// SummaryID builds the id for a monthly summary record
func SummaryID(accountID, month string) string {
	return fmt.Sprintf("%s_%s", accountID, month)
}

// MonthWindow returns the inclusive start and end instants of a calendar
// month given in "YYYY-MM" form. The end is the last day at 23:59:59, found
// through day zero of the following month.
func MonthWindow(month string) (time.Time, time.Time, error) {
	t, err := time.Parse("2006-01", month)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", month, err)
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(t.Year(), t.Month()+1, 0, 23, 59, 59, 0, time.UTC)
	return start, end, nil
}
