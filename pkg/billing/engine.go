package billing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// Engine derives billing views from the subscription store and the ad-spend
// ledger. It holds no state of its own and never writes.
type Engine struct {
	subs   subscriptions.Service
	ledger adspend.Ledger
}

// NewEngine creates a billing engine
func NewEngine(subs subscriptions.Service, ledger adspend.Ledger) *Engine {
	return &Engine{subs: subs, ledger: ledger}
}

// baseFeeDollars converts a plan's monthly price to dollars. Custom-priced
// plans report zero; their invoices are raised manually.
func baseFeeDollars(config plans.Config) float64 {
	if config.CustomPricing() {
		return 0
	}
	return float64(config.MonthlyPriceCents) / 100
}

// CalculateBillingBreakdown reports the invoice-in-progress for the current
// billing period. The ad-spend fee is read from the subscription's
// accumulator, which the reconciliation job keeps aligned with the ledger.
func (e *Engine) CalculateBillingBreakdown(ctx context.Context, accountID string) (*Breakdown, error) {
	sub, err := e.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	config, err := plans.GetConfig(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	baseFee := baseFeeDollars(config)
	return &Breakdown{
		AccountID:               accountID,
		Tier:                    sub.Tier,
		BaseFee:                 baseFee,
		ManagedAdSpend:          sub.ManagedAdSpendThisMonth,
		AdSpendFee:              sub.PlatformFeeThisMonth,
		AdSpendPercentage:       sub.AdSpendPercentage,
		Total:                   baseFee + sub.PlatformFeeThisMonth,
		PeriodStart:             sub.CurrentPeriodStart,
		PeriodEnd:               sub.CurrentPeriodEnd,
		RequiresManualInvoicing: config.CustomPricing(),
	}, nil
}

// ProjectBilling forecasts the period total from the average daily spend so
// far. DaysPassed is floored at 1 so a projection on day one of a period
// never divides by zero.
func (e *Engine) ProjectBilling(ctx context.Context, accountID string) (*Projection, error) {
	sub, err := e.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	config, err := plans.GetConfig(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	currentSpend, err := e.ledger.GetCurrentPeriodSpend(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum period spend: %w", err)
	}

	now := time.Now().UTC()
	daysPassed := int(math.Max(1, math.Ceil(now.Sub(sub.CurrentPeriodStart).Hours()/24)))
	daysRemaining := int(math.Max(0, math.Ceil(sub.CurrentPeriodEnd.Sub(now).Hours()/24)))

	avgDailySpend := currentSpend / float64(daysPassed)
	projectedSpend := avgDailySpend * float64(daysPassed+daysRemaining)
	projectedFee := projectedSpend * sub.AdSpendPercentage

	return &Projection{
		AccountID:             accountID,
		DaysPassed:            daysPassed,
		DaysRemaining:         daysRemaining,
		CurrentPeriodSpend:    currentSpend,
		AvgDailySpend:         avgDailySpend,
		ProjectedMonthlySpend: projectedSpend,
		ProjectedFee:          projectedFee,
		ProjectedTotal:        baseFeeDollars(config) + projectedFee,
	}, nil
}

// CalculateUpgradeSavings answers "what would this month have cost on the
// target plan", using the same accumulated spend under both rate cards
func (e *Engine) CalculateUpgradeSavings(ctx context.Context, accountID string, targetTier plans.Tier) (*UpgradeSavings, error) {
	sub, err := e.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	currentConfig, err := plans.GetConfig(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve current plan: %w", err)
	}
	targetConfig, err := plans.GetConfig(targetTier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target plan: %w", err)
	}
	if currentConfig.CustomPricing() || targetConfig.CustomPricing() {
		return nil, fmt.Errorf("custom-priced plans are invoiced manually")
	}

	spend := sub.ManagedAdSpendThisMonth
	currentCost := baseFeeDollars(currentConfig) + spend*currentConfig.AdSpendPercentage
	targetCost := baseFeeDollars(targetConfig) + spend*targetConfig.AdSpendPercentage
	savings := currentCost - targetCost

	savingsPercent := 0.0
	if currentCost > 0 {
		savingsPercent = savings / currentCost * 100
	}

	return &UpgradeSavings{
		AccountID:      accountID,
		CurrentTier:    sub.Tier,
		TargetTier:     targetTier,
		CurrentCost:    currentCost,
		TargetCost:     targetCost,
		Savings:        savings,
		SavingsPercent: savingsPercent,
		Worthwhile:     savings > 0,
	}, nil
}

// GetBillingHistory walks back months calendar months and returns one row per
// month. A month whose summary cannot be computed contributes a zero row
// instead of failing the whole series.
func (e *Engine) GetBillingHistory(ctx context.Context, accountID string, months int) ([]HistoryRow, error) {
	if months <= 0 {
		months = 6
	}

	sub, err := e.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	config, err := plans.GetConfig(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}
	baseFee := baseFeeDollars(config)

	now := time.Now().UTC()
	history := make([]HistoryRow, 0, months)
	for i := months - 1; i >= 0; i-- {
		month := now.AddDate(0, -i, 0).Format("2006-01")
		row := HistoryRow{Month: month, BaseFee: baseFee, Total: baseFee}

		summary, err := e.ledger.CalculateMonthlySummary(ctx, accountID, month)
		if err == nil {
			row.TotalSpend = summary.TotalSpend
			row.TotalFee = summary.TotalFee
			row.EntryCount = summary.EntryCount
			row.Total = baseFee + summary.TotalFee
		}

		history = append(history, row)
	}

	return history, nil
}

// CalculateBreakEvenSpend returns the monthly managed spend at which the
// target plan's higher base fee is offset by its lower fee rate. When the
// target rate is not lower there is no break-even point and the result is
// +Inf.
func (e *Engine) CalculateBreakEvenSpend(currentTier, targetTier plans.Tier) (float64, error) {
	currentConfig, err := plans.GetConfig(currentTier)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve current plan: %w", err)
	}
	targetConfig, err := plans.GetConfig(targetTier)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve target plan: %w", err)
	}
	if currentConfig.CustomPricing() || targetConfig.CustomPricing() {
		return 0, fmt.Errorf("custom-priced plans are invoiced manually")
	}

	rateDiff := currentConfig.AdSpendPercentage - targetConfig.AdSpendPercentage
	if rateDiff <= 0 {
		return math.Inf(1), nil
	}

	baseDiff := baseFeeDollars(targetConfig) - baseFeeDollars(currentConfig)
	return baseDiff / rateDiff, nil
}

// GetAccountLifetimeValue estimates total revenue since signup. The fee
// component comes from the ledger's all-time sum, not the monthly
// accumulator.
func (e *Engine) GetAccountLifetimeValue(ctx context.Context, accountID string) (*LifetimeValue, error) {
	sub, err := e.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription: %w", err)
	}

	config, err := plans.GetConfig(sub.Tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	totalFees, err := e.ledger.GetTotalFees(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum lifetime fees: %w", err)
	}

	age := time.Now().UTC().Sub(sub.CreatedAt)
	monthsActive := int(math.Max(1, math.Ceil(age.Hours()/(24*30))))

	baseRevenue := baseFeeDollars(config) * float64(monthsActive)
	return &LifetimeValue{
		AccountID:    accountID,
		Tier:         sub.Tier,
		MonthsActive: monthsActive,
		BaseRevenue:  baseRevenue,
		FeeRevenue:   totalFees,
		TotalRevenue: baseRevenue + totalFees,
	}, nil
}
