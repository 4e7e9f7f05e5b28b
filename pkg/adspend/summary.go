package adspend

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// CalculateMonthlySummary aggregates the calendar month into a persisted
// AdSpendSummary. Months with no entries produce a zero summary, not an
// error. A summary already reported to the gateway is returned as stored;
// corrections must go through RecalculateSummary.
func (l *PostgresLedger) CalculateMonthlySummary(ctx context.Context, accountID, month string) (*MonthlySummary, error) {
	existing, err := l.getSummary(ctx, accountID, month)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if existing != nil && existing.ReportedToGateway {
		return existing, nil
	}
	return l.computeAndStoreSummary(ctx, accountID, month)
}

// RecalculateSummary recomputes a month unconditionally, including months
// already reported to the gateway. The reported flag is cleared so the
// corrected figures get reported again.
func (l *PostgresLedger) RecalculateSummary(ctx context.Context, accountID, month string) (*MonthlySummary, error) {
	return l.computeAndStoreSummary(ctx, accountID, month)
}

func (l *PostgresLedger) computeAndStoreSummary(ctx context.Context, accountID, month string) (*MonthlySummary, error) {
	start, end, err := MonthWindow(month)
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT platform, COALESCE(SUM(spend), 0), COALESCE(SUM(calculated_fee), 0), COUNT(*)
		 FROM ad_spend_entries
		 WHERE account_id = $1 AND date >= $2 AND date <= $3
		 GROUP BY platform`,
		accountID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate month: %w", err)
	}
	defer rows.Close()

	summary := &MonthlySummary{
		AccountID:         accountID,
		Month:             month,
		PlatformBreakdown: make(map[Platform]PlatformTotals),
		ComputedAt:        time.Now().UTC(),
	}
	for rows.Next() {
		var platform Platform
		var spend, fee float64
		var count int
		if err := rows.Scan(&platform, &spend, &fee, &count); err != nil {
			return nil, fmt.Errorf("failed to scan platform totals: %w", err)
		}
		summary.PlatformBreakdown[platform] = PlatformTotals{Spend: spend, Fee: fee}
		summary.TotalSpend += spend
		summary.TotalFee += fee
		summary.EntryCount += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	breakdownJSON, err := json.Marshal(summary.PlatformBreakdown)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	query := `
		INSERT INTO ad_spend_summaries (
			id, account_id, month, total_spend, total_fee,
			platform_breakdown, entry_count, computed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			total_spend = EXCLUDED.total_spend,
			total_fee = EXCLUDED.total_fee,
			platform_breakdown = EXCLUDED.platform_breakdown,
			entry_count = EXCLUDED.entry_count,
			computed_at = EXCLUDED.computed_at,
			reported_to_gateway = FALSE,
			reported_at = NULL
	`
	if _, err := l.db.ExecContext(ctx, query,
		SummaryID(accountID, month), accountID, month,
		summary.TotalSpend, summary.TotalFee, breakdownJSON,
		summary.EntryCount, summary.ComputedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to store summary: %w", err)
	}

	return summary, nil
}

func (l *PostgresLedger) getSummary(ctx context.Context, accountID, month string) (*MonthlySummary, error) {
	summary := &MonthlySummary{AccountID: accountID, Month: month}
	var breakdownJSON []byte
	var reportedAt sql.NullTime

	err := l.db.QueryRowContext(ctx,
		`SELECT total_spend, total_fee, platform_breakdown, entry_count,
		        reported_to_gateway, reported_at, computed_at
		 FROM ad_spend_summaries WHERE id = $1`,
		SummaryID(accountID, month),
	).Scan(
		&summary.TotalSpend, &summary.TotalFee, &breakdownJSON, &summary.EntryCount,
		&summary.ReportedToGateway, &reportedAt, &summary.ComputedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}

	if reportedAt.Valid {
		t := reportedAt.Time
		summary.ReportedAt = &t
	}
	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &summary.PlatformBreakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}

	return summary, nil
}

// MarkSummaryReported freezes a month's summary after its fee has been
// reported to the gateway as metered usage
func (l *PostgresLedger) MarkSummaryReported(ctx context.Context, accountID, month string) error {
	result, err := l.db.ExecContext(ctx,
		`UPDATE ad_spend_summaries SET reported_to_gateway = TRUE, reported_at = NOW()
		 WHERE id = $1`,
		SummaryID(accountID, month),
	)
	if err != nil {
		return fmt.Errorf("failed to mark summary reported: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no summary for %s %s", accountID, month)
	}
	return nil
}
