package billing

import (
	"time"

	"github.com/marketerhq/adgate/pkg/plans"
)

// Breakdown is the current state of an account's invoice-in-progress. Fees
// are dollars; the base fee comes from the plan's monthly price in cents.
type Breakdown struct {
	AccountID               string     `json:"account_id"`
	Tier                    plans.Tier `json:"tier"`
	BaseFee                 float64    `json:"base_fee"`
	ManagedAdSpend          float64    `json:"managed_ad_spend"`
	AdSpendFee              float64    `json:"ad_spend_fee"`
	AdSpendPercentage       float64    `json:"ad_spend_percentage"`
	Total                   float64    `json:"total"`
	PeriodStart             time.Time  `json:"period_start"`
	PeriodEnd               time.Time  `json:"period_end"`
	RequiresManualInvoicing bool       `json:"requires_manual_invoicing,omitempty"`
}

// Projection forecasts the period's total from the average daily spend so far
type Projection struct {
	AccountID             string  `json:"account_id"`
	DaysPassed            int     `json:"days_passed"`
	DaysRemaining         int     `json:"days_remaining"`
	CurrentPeriodSpend    float64 `json:"current_period_spend"`
	AvgDailySpend         float64 `json:"avg_daily_spend"`
	ProjectedMonthlySpend float64 `json:"projected_monthly_spend"`
	ProjectedFee          float64 `json:"projected_fee"`
	ProjectedTotal        float64 `json:"projected_total"`
}

// UpgradeSavings compares what this month's usage would have cost on another
// plan. It is a comparison of the same spend under two rate cards, not a
// forecast.
type UpgradeSavings struct {
	AccountID      string     `json:"account_id"`
	CurrentTier    plans.Tier `json:"current_tier"`
	TargetTier     plans.Tier `json:"target_tier"`
	CurrentCost    float64    `json:"current_cost"`
	TargetCost     float64    `json:"target_cost"`
	Savings        float64    `json:"savings"`
	SavingsPercent float64    `json:"savings_percent"`
	Worthwhile     bool       `json:"worthwhile"`
}

// HistoryRow is one month of the billing history series
type HistoryRow struct {
	Month      string  `json:"month"`
	TotalSpend float64 `json:"total_spend"`
	TotalFee   float64 `json:"total_fee"`
	BaseFee    float64 `json:"base_fee"`
	Total      float64 `json:"total"`
	EntryCount int     `json:"entry_count"`
}

// LifetimeValue is the revenue attributed to an account since signup
type LifetimeValue struct {
	AccountID    string     `json:"account_id"`
	Tier         plans.Tier `json:"tier"`
	MonthsActive int        `json:"months_active"`
	BaseRevenue  float64    `json:"base_revenue"`
	FeeRevenue   float64    `json:"fee_revenue"`
	TotalRevenue float64    `json:"total_revenue"`
}
