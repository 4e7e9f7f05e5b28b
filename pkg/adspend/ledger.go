package adspend

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// Ledger records managed ad spend and produces billing aggregates
type Ledger interface {
	RecordAdSpend(ctx context.Context, accountID string, input EntryInput) (*Entry, error)
	RecordAdSpendBatch(ctx context.Context, accountID string, inputs []EntryInput) (*BatchResult, error)
	GetEntries(ctx context.Context, accountID string, start, end time.Time, platform Platform) ([]*Entry, error)
	CalculateMonthlySummary(ctx context.Context, accountID, month string) (*MonthlySummary, error)
	RecalculateSummary(ctx context.Context, accountID, month string) (*MonthlySummary, error)
	MarkEntriesSynced(ctx context.Context, accountID, month string) (int64, error)
	MarkSummaryReported(ctx context.Context, accountID, month string) error
	GetCurrentPeriodSpend(ctx context.Context, accountID string) (float64, error)
	GetAdSpendTrend(ctx context.Context, accountID string, days int) ([]DailySpend, error)
	GetTotalAdSpend(ctx context.Context, accountID string) (float64, error)
	GetTotalFees(ctx context.Context, accountID string) (float64, error)
	SyncFromMetrics(ctx context.Context, accountID string, metrics []PlatformMetric) (*BatchResult, error)
	Reconcile(ctx context.Context, accountID string) (*ReconcileResult, error)
}

// PostgresLedger implements Ledger using PostgreSQL. The subscription
// service prices fees at write time and owns the period accumulators the
// ledger feeds.
type PostgresLedger struct {
	db   *sql.DB
	subs subscriptions.Service
}

// NewPostgresLedger creates a new PostgresLedger
func NewPostgresLedger(db *sql.DB, subs subscriptions.Service) *PostgresLedger {
	return &PostgresLedger{db: db, subs: subs}
}

// upsertEntry writes one entry inside tx and returns the spend and fee
// deltas against whatever was stored under the same id before. Re-syncing
// identical data produces zero deltas.
func (l *PostgresLedger) upsertEntry(ctx context.Context, tx *sql.Tx, entry *Entry) (spendDelta, feeDelta float64, err error) {
	var oldSpend, oldFee float64
	err = tx.QueryRowContext(ctx,
		`SELECT spend, calculated_fee FROM ad_spend_entries WHERE id = $1 FOR UPDATE`,
		entry.ID,
	).Scan(&oldSpend, &oldFee)
	if err != nil && err != sql.ErrNoRows {
		return 0, 0, fmt.Errorf("failed to read existing entry: %w", err)
	}

	query := `
		INSERT INTO ad_spend_entries (
			id, account_id, platform, integration_id, campaign_id,
			date, spend, currency, calculated_fee
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			spend = EXCLUDED.spend,
			currency = EXCLUDED.currency,
			calculated_fee = EXCLUDED.calculated_fee,
			campaign_id = EXCLUDED.campaign_id,
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.Platform, entry.IntegrationID, entry.CampaignID,
		entry.Date, entry.Spend, entry.Currency, entry.CalculatedFee,
	); err != nil {
		return 0, 0, fmt.Errorf("failed to upsert entry: %w", err)
	}

	return entry.Spend - oldSpend, entry.CalculatedFee - oldFee, nil
}

func (l *PostgresLedger) buildEntry(accountID string, rate float64, input EntryInput) *Entry {
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}
	date := input.Date.UTC().Truncate(24 * time.Hour)

	return &Entry{
		ID:            EntryID(accountID, input.Platform, input.Date, input.IntegrationID),
		AccountID:     accountID,
		Platform:      input.Platform,
		IntegrationID: input.IntegrationID,
		CampaignID:    input.CampaignID,
		Date:          date,
		Spend:         input.Spend,
		Currency:      currency,
		CalculatedFee: input.Spend * rate,
	}
}

// RecordAdSpend records one spend figure, pricing the fee from the account's
// current subscription rate, then moves the period accumulators by the
// resulting deltas
func (l *PostgresLedger) RecordAdSpend(ctx context.Context, accountID string, input EntryInput) (*Entry, error) {
	sub, err := l.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	entry := l.buildEntry(accountID, sub.AdSpendPercentage, input)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	spendDelta, feeDelta, err := l.upsertEntry(ctx, tx, entry)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit entry: %w", err)
	}

	if spendDelta != 0 || feeDelta != 0 {
		if err := l.subs.ApplyAdSpendDeltas(ctx, accountID, spendDelta, feeDelta); err != nil {
			return nil, fmt.Errorf("failed to update accumulators: %w", err)
		}
	}

	return entry, nil
}

// RecordAdSpendBatch writes a batch of entries in one transaction, then moves
// the period accumulators once with the summed deltas
func (l *PostgresLedger) RecordAdSpendBatch(ctx context.Context, accountID string, inputs []EntryInput) (*BatchResult, error) {
	result := &BatchResult{}
	if len(inputs) == 0 {
		return result, nil
	}

	sub, err := l.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, input := range inputs {
		entry := l.buildEntry(accountID, sub.AdSpendPercentage, input)
		spendDelta, feeDelta, err := l.upsertEntry(ctx, tx, entry)
		if err != nil {
			return nil, err
		}
		result.Recorded++
		result.SpendDelta += spendDelta
		result.FeeDelta += feeDelta
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}

	if result.SpendDelta != 0 || result.FeeDelta != 0 {
		if err := l.subs.ApplyAdSpendDeltas(ctx, accountID, result.SpendDelta, result.FeeDelta); err != nil {
			return nil, fmt.Errorf("failed to update accumulators: %w", err)
		}
	}

	return result, nil
}

// GetEntries returns entries in the inclusive date range, optionally filtered
// to one platform
func (l *PostgresLedger) GetEntries(ctx context.Context, accountID string, start, end time.Time, platform Platform) ([]*Entry, error) {
	query := `
		SELECT id, account_id, platform, integration_id, campaign_id,
		       date, spend, currency, calculated_fee, synced, created_at, updated_at
		FROM ad_spend_entries
		WHERE account_id = $1 AND date >= $2 AND date <= $3
	`
	args := []interface{}{accountID, start, end}
	if platform != "" {
		query += ` AND platform = $4`
		args = append(args, platform)
	}
	query += ` ORDER BY date, platform, integration_id`

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry := &Entry{}
		var campaignID sql.NullString
		err := rows.Scan(
			&entry.ID, &entry.AccountID, &entry.Platform, &entry.IntegrationID, &campaignID,
			&entry.Date, &entry.Spend, &entry.Currency, &entry.CalculatedFee,
			&entry.Synced, &entry.CreatedAt, &entry.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		if campaignID.Valid {
			entry.CampaignID = campaignID.String
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// GetCurrentPeriodSpend sums spend over the subscription's rolling billing
// period. This is deliberately a different window than the calendar month a
// summary covers.
func (l *PostgresLedger) GetCurrentPeriodSpend(ctx context.Context, accountID string) (float64, error) {
	sub, err := l.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to load subscription: %w", err)
	}

	var total float64
	err = l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(spend), 0) FROM ad_spend_entries
		 WHERE account_id = $1 AND date >= $2 AND date < $3`,
		accountID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum period spend: %w", err)
	}

	return total, nil
}

// GetAdSpendTrend returns a daily spend/fee series over the last days days,
// ascending by date
func (l *PostgresLedger) GetAdSpendTrend(ctx context.Context, accountID string, days int) ([]DailySpend, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	rows, err := l.db.QueryContext(ctx,
		`SELECT to_char(date, 'YYYY-MM-DD'), COALESCE(SUM(spend), 0), COALESCE(SUM(calculated_fee), 0)
		 FROM ad_spend_entries
		 WHERE account_id = $1 AND date >= $2
		 GROUP BY 1 ORDER BY 1`,
		accountID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	var trend []DailySpend
	for rows.Next() {
		var day DailySpend
		if err := rows.Scan(&day.Date, &day.Spend, &day.Fee); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		trend = append(trend, day)
	}

	return trend, rows.Err()
}

// GetTotalAdSpend sums all-time spend for an account
func (l *PostgresLedger) GetTotalAdSpend(ctx context.Context, accountID string) (float64, error) {
	var total float64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(spend), 0) FROM ad_spend_entries WHERE account_id = $1`,
		accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum total spend: %w", err)
	}
	return total, nil
}

// GetTotalFees sums all-time calculated fees for an account
func (l *PostgresLedger) GetTotalFees(ctx context.Context, accountID string) (float64, error) {
	var total float64
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(calculated_fee), 0) FROM ad_spend_entries WHERE account_id = $1`,
		accountID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum total fees: %w", err)
	}
	return total, nil
}

// MarkEntriesSynced flips synced=true for every entry in the calendar month
// and returns how many rows changed
func (l *PostgresLedger) MarkEntriesSynced(ctx context.Context, accountID, month string) (int64, error) {
	start, end, err := MonthWindow(month)
	if err != nil {
		return 0, err
	}

	result, err := l.db.ExecContext(ctx,
		`UPDATE ad_spend_entries SET synced = TRUE, updated_at = NOW()
		 WHERE account_id = $1 AND date >= $2 AND date <= $3`,
		accountID, start, end,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries synced: %w", err)
	}

	return result.RowsAffected()
}
