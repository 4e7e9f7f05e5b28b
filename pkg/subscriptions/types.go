package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/marketerhq/adgate/pkg/plans"
)

// Status represents the lifecycle status of a subscription
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// ErrNotFound is returned when no subscription exists for an account
var ErrNotFound = errors.New("subscription not found")

// Subscription is the per-account billing record.
//
// AdSpendPercentage and Limits are snapshots taken at the last tier change;
// they deliberately do not track later catalog edits. The two ThisMonth
// accumulators only ever grow until ResetMonthlyAdSpend zeroes them on an
// invoice-paid event.
type Subscription struct {
	AccountID             string     `json:"account_id"`
	Tier                  plans.Tier `json:"tier"`
	Status                Status     `json:"status"`
	GatewayCustomerID     string     `json:"gateway_customer_id,omitempty"`
	GatewaySubscriptionID string     `json:"gateway_subscription_id,omitempty"`
	CurrentPeriodStart    time.Time  `json:"current_period_start"`
	CurrentPeriodEnd      time.Time  `json:"current_period_end"`

	AdSpendPercentage       float64 `json:"ad_spend_percentage"`
	ManagedAdSpendThisMonth float64 `json:"managed_ad_spend_this_month"`
	PlatformFeeThisMonth    float64 `json:"platform_fee_this_month"`

	Limits plans.Limits `json:"limits"`

	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateOptions customizes subscription creation
type CreateOptions struct {
	GatewayCustomerID     string
	GatewaySubscriptionID string
	TrialDays             int
}

// StatusOptions carries the optional fields of a status update
type StatusOptions struct {
	CancelAtPeriodEnd *bool
	CanceledAt        *time.Time
}

// Service defines subscription record operations
type Service interface {
	GetSubscription(ctx context.Context, accountID string) (*Subscription, error)
	CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *CreateOptions) (*Subscription, error)
	GetOrCreateSubscription(ctx context.Context, accountID string) (*Subscription, error)

	UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, accountID string, status Status, opts *StatusOptions) error
	UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error
	UpdateBillingPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) error

	UpdateAdSpendTracking(ctx context.Context, accountID string, spendDelta float64) error
	ApplyAdSpendDeltas(ctx context.Context, accountID string, spendDelta, feeDelta float64) error
	ResetMonthlyAdSpend(ctx context.Context, accountID string) error

	CanAccessFeature(ctx context.Context, accountID string, limitKey plans.LimitKey) (bool, error)

	CancelAtPeriodEnd(ctx context.Context, accountID string) error
	Reactivate(ctx context.Context, accountID string) error

	ListByTier(ctx context.Context, tier plans.Tier) ([]*Subscription, error)
	ListAccountIDs(ctx context.Context) ([]string, error)
}
