package subscriptions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketerhq/adgate/pkg/plans"
)

// PostgresService implements Service using PostgreSQL
type PostgresService struct {
	db *sql.DB
}

// NewPostgresService creates a new PostgresService
func NewPostgresService(db *sql.DB) *PostgresService {
	return &PostgresService{db: db}
}

const subscriptionColumns = `
	account_id, tier, status, gateway_customer_id, gateway_subscription_id,
	current_period_start, current_period_end, ad_spend_percentage,
	managed_ad_spend_this_month, platform_fee_this_month, limits,
	trial_ends_at, cancel_at_period_end, canceled_at, created_at, updated_at
`

// rowScanner abstracts *sql.Row and *sql.Rows for scanSubscription
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row rowScanner) (*Subscription, error) {
	sub := &Subscription{}
	var (
		gatewayCustomerID     sql.NullString
		gatewaySubscriptionID sql.NullString
		limitsJSON            []byte
		trialEndsAt           sql.NullTime
		canceledAt            sql.NullTime
	)

	err := row.Scan(
		&sub.AccountID, &sub.Tier, &sub.Status, &gatewayCustomerID, &gatewaySubscriptionID,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.AdSpendPercentage,
		&sub.ManagedAdSpendThisMonth, &sub.PlatformFeeThisMonth, &limitsJSON,
		&trialEndsAt, &sub.CancelAtPeriodEnd, &canceledAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if gatewayCustomerID.Valid {
		sub.GatewayCustomerID = gatewayCustomerID.String
	}
	if gatewaySubscriptionID.Valid {
		sub.GatewaySubscriptionID = gatewaySubscriptionID.String
	}
	if trialEndsAt.Valid {
		t := trialEndsAt.Time
		sub.TrialEndsAt = &t
	}
	if canceledAt.Valid {
		t := canceledAt.Time
		sub.CanceledAt = &t
	}

	if len(limitsJSON) > 0 {
		if err := json.Unmarshal(limitsJSON, &sub.Limits); err != nil {
			return nil, fmt.Errorf("failed to unmarshal limits: %w", err)
		}
	}

	return sub, nil
}

// GetSubscription retrieves the subscription for an account
func (s *PostgresService) GetSubscription(ctx context.Context, accountID string) (*Subscription, error) {
	query := `SELECT` + subscriptionColumns + `FROM subscriptions WHERE account_id = $1`

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query, accountID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return sub, nil
}

// CreateSubscription creates a subscription for an account.
// The limits and ad-spend rate are snapshotted from the plan catalog.
func (s *PostgresService) CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *CreateOptions) (*Subscription, error) {
	config, err := plans.GetConfig(tier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	if opts == nil {
		opts = &CreateOptions{}
	}

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 1, 0)

	status := StatusActive
	var trialEndsAt *time.Time
	if opts.TrialDays > 0 {
		status = StatusTrialing
		t := now.Add(time.Duration(opts.TrialDays) * 24 * time.Hour)
		trialEndsAt = &t
	}

	limitsJSON, err := json.Marshal(config.Limits)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal limits: %w", err)
	}

	query := `
		INSERT INTO subscriptions (
			account_id, tier, status, gateway_customer_id, gateway_subscription_id,
			current_period_start, current_period_end, ad_spend_percentage, limits, trial_ends_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	sub := &Subscription{
		AccountID:             accountID,
		Tier:                  tier,
		Status:                status,
		GatewayCustomerID:     opts.GatewayCustomerID,
		GatewaySubscriptionID: opts.GatewaySubscriptionID,
		CurrentPeriodStart:    now,
		CurrentPeriodEnd:      periodEnd,
		AdSpendPercentage:     config.AdSpendPercentage,
		Limits:                config.Limits,
		TrialEndsAt:           trialEndsAt,
	}

	err = s.db.QueryRowContext(ctx, query,
		accountID, tier, status,
		nullString(opts.GatewayCustomerID), nullString(opts.GatewaySubscriptionID),
		now, periodEnd, config.AdSpendPercentage, limitsJSON, trialEndsAt,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}

// GetOrCreateSubscription returns the account's subscription, creating a free
// one on first access
func (s *PostgresService) GetOrCreateSubscription(ctx context.Context, accountID string) (*Subscription, error) {
	sub, err := s.GetSubscription(ctx, accountID)
	if err == nil {
		return sub, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.CreateSubscription(ctx, accountID, plans.TierFree, nil)
}

// UpdateTier changes the subscription tier, re-snapshotting the limits and
// ad-spend rate together. A trialing or canceled subscription becomes active.
func (s *PostgresService) UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*Subscription, error) {
	config, err := plans.GetConfig(newTier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve plan: %w", err)
	}

	sub, err := s.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}

	limitsJSON, err := json.Marshal(config.Limits)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal limits: %w", err)
	}

	status := sub.Status
	if status == StatusTrialing || status == StatusCanceled {
		status = StatusActive
	}

	query := `
		UPDATE subscriptions
		SET tier = $1, limits = $2, ad_spend_percentage = $3, status = $4,
		    gateway_subscription_id = COALESCE($5, gateway_subscription_id),
		    updated_at = NOW()
		WHERE account_id = $6
	`
	if _, err := s.db.ExecContext(ctx, query,
		newTier, limitsJSON, config.AdSpendPercentage, status,
		nullString(gatewaySubscriptionID), accountID,
	); err != nil {
		return nil, fmt.Errorf("failed to update tier: %w", err)
	}

	return s.GetSubscription(ctx, accountID)
}

// UpdateStatus sets the subscription status, called by the gateway adapter
func (s *PostgresService) UpdateStatus(ctx context.Context, accountID string, status Status, opts *StatusOptions) error {
	if opts == nil {
		opts = &StatusOptions{}
	}

	query := `
		UPDATE subscriptions
		SET status = $1,
		    cancel_at_period_end = COALESCE($2, cancel_at_period_end),
		    canceled_at = COALESCE($3, canceled_at),
		    updated_at = NOW()
		WHERE account_id = $4
	`
	result, err := s.db.ExecContext(ctx, query, status, nullBool(opts.CancelAtPeriodEnd), nullTime(opts.CanceledAt), accountID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	return requireRow(result)
}

// UpdateGatewayIDs sets the gateway customer and subscription ids
func (s *PostgresService) UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error {
	query := `
		UPDATE subscriptions
		SET gateway_customer_id = $1,
		    gateway_subscription_id = COALESCE($2, gateway_subscription_id),
		    updated_at = NOW()
		WHERE account_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, customerID, nullString(subscriptionID), accountID)
	if err != nil {
		return fmt.Errorf("failed to update gateway ids: %w", err)
	}

	return requireRow(result)
}

// UpdateBillingPeriod sets the current billing period, called by the gateway
// adapter on subscription lifecycle events
func (s *PostgresService) UpdateBillingPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) error {
	query := `
		UPDATE subscriptions
		SET current_period_start = $1, current_period_end = $2, updated_at = NOW()
		WHERE account_id = $3
	`
	result, err := s.db.ExecContext(ctx, query, periodStart, periodEnd, accountID)
	if err != nil {
		return fmt.Errorf("failed to update billing period: %w", err)
	}

	return requireRow(result)
}

// CancelAtPeriodEnd schedules cancellation at the end of the billing period
func (s *PostgresService) CancelAtPeriodEnd(ctx context.Context, accountID string) error {
	query := `
		UPDATE subscriptions
		SET cancel_at_period_end = TRUE, canceled_at = NOW(), updated_at = NOW()
		WHERE account_id = $1
	`
	result, err := s.db.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	return requireRow(result)
}

// Reactivate clears a scheduled cancellation and restores active status
func (s *PostgresService) Reactivate(ctx context.Context, accountID string) error {
	query := `
		UPDATE subscriptions
		SET cancel_at_period_end = FALSE, canceled_at = NULL, status = $1, updated_at = NOW()
		WHERE account_id = $2
	`
	result, err := s.db.ExecContext(ctx, query, StatusActive, accountID)
	if err != nil {
		return fmt.Errorf("failed to reactivate subscription: %w", err)
	}

	return requireRow(result)
}

// ListByTier returns all subscriptions on a tier
func (s *PostgresService) ListByTier(ctx context.Context, tier plans.Tier) ([]*Subscription, error) {
	query := `SELECT` + subscriptionColumns + `FROM subscriptions WHERE tier = $1 ORDER BY account_id`

	rows, err := s.db.QueryContext(ctx, query, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// ListAccountIDs returns every account with a subscription record
func (s *PostgresService) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM subscriptions ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullBool(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
