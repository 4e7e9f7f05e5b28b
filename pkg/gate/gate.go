package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

const (
	defaultCacheSize = 4096
	defaultCacheTTL  = 30 * time.Second
)

// Gate evaluates feature and usage-limit entitlements for accounts
type Gate struct {
	subs  subscriptions.Service
	tiers *expirable.LRU[string, plans.Tier]
}

// Option configures a Gate
type Option func(*options)

type options struct {
	cacheSize int
	cacheTTL  time.Duration
}

// WithCacheTTL sets how long a resolved tier may be served from cache
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.cacheTTL = ttl }
}

// WithCacheSize sets the maximum number of cached account tiers
func WithCacheSize(size int) Option {
	return func(o *options) { o.cacheSize = size }
}

// New creates a Gate over a subscription service
func New(subs subscriptions.Service, opts ...Option) *Gate {
	o := &options{cacheSize: defaultCacheSize, cacheTTL: defaultCacheTTL}
	for _, opt := range opts {
		opt(o)
	}
	return &Gate{
		subs:  subs,
		tiers: expirable.NewLRU[string, plans.Tier](o.cacheSize, nil, o.cacheTTL),
	}
}

// accountTier resolves the account's tier, serving from the decision cache
// when fresh
func (g *Gate) accountTier(ctx context.Context, accountID string) (plans.Tier, error) {
	if tier, ok := g.tiers.Get(accountID); ok {
		return tier, nil
	}

	sub, err := g.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve account tier: %w", err)
	}

	g.tiers.Add(accountID, sub.Tier)
	return sub.Tier, nil
}

// Invalidate drops an account's cached tier, called after tier changes
func (g *Gate) Invalidate(accountID string) {
	g.tiers.Remove(accountID)
}

// RequireFeature returns a PaywallError when the account's tier rank is below
// the feature's required tier
func (g *Gate) RequireFeature(ctx context.Context, accountID string, feature plans.FeatureKey) error {
	tier, err := g.accountTier(ctx, accountID)
	if err != nil {
		return err
	}

	required := plans.RequiredTierForFeature(feature)
	if plans.IsTierHigherOrEqual(tier, required) {
		return nil
	}

	return &PaywallError{Feature: feature, RequiredTier: required, CurrentTier: tier}
}

// RequireWithinLimit returns a UsageLimitError when currentUsage has reached
// the account's numeric limit. Unlimited and non-numeric limits always pass.
func (g *Gate) RequireWithinLimit(ctx context.Context, accountID string, limitKey plans.LimitKey, currentUsage int) error {
	sub, err := g.subs.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	limit, ok := sub.Limits.Numeric(limitKey)
	if !ok || limit == plans.Unlimited {
		return nil
	}

	if currentUsage >= limit {
		return &UsageLimitError{LimitKey: limitKey, Limit: limit, CurrentUsage: currentUsage}
	}
	return nil
}

// AccessResult is the non-throwing form of a feature check
type AccessResult struct {
	Allowed      bool             `json:"allowed"`
	Feature      plans.FeatureKey `json:"feature"`
	RequiredTier plans.Tier       `json:"required_tier,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// CheckFeatureAccess mirrors RequireFeature without an error on denial
func (g *Gate) CheckFeatureAccess(ctx context.Context, accountID string, feature plans.FeatureKey) (*AccessResult, error) {
	err := g.RequireFeature(ctx, accountID, feature)
	if err == nil {
		return &AccessResult{Allowed: true, Feature: feature}, nil
	}

	var paywallErr *PaywallError
	if !errors.As(err, &paywallErr) {
		return nil, err
	}

	return &AccessResult{
		Allowed:      false,
		Feature:      feature,
		RequiredTier: paywallErr.RequiredTier,
		Message:      plans.UpgradeMessage(feature),
	}, nil
}

// LimitResult is the non-throwing form of a usage-limit check
type LimitResult struct {
	Allowed      bool           `json:"allowed"`
	LimitKey     plans.LimitKey `json:"limit_key"`
	Limit        int            `json:"limit,omitempty"`
	CurrentUsage int            `json:"current_usage"`
	Message      string         `json:"message,omitempty"`
}

// CheckUsageLimit mirrors RequireWithinLimit without an error on denial
func (g *Gate) CheckUsageLimit(ctx context.Context, accountID string, limitKey plans.LimitKey, currentUsage int) (*LimitResult, error) {
	err := g.RequireWithinLimit(ctx, accountID, limitKey, currentUsage)
	if err == nil {
		return &LimitResult{Allowed: true, LimitKey: limitKey, CurrentUsage: currentUsage}, nil
	}

	var limitErr *UsageLimitError
	if !errors.As(err, &limitErr) {
		return nil, err
	}

	return &LimitResult{
		Allowed:      false,
		LimitKey:     limitKey,
		Limit:        limitErr.Limit,
		CurrentUsage: currentUsage,
		Message:      limitErr.Error(),
	}, nil
}

// CheckMultipleFeatures evaluates a set of features by tier rank alone,
// returning a feature→allowed map. Numeric quotas are not consulted.
func (g *Gate) CheckMultipleFeatures(ctx context.Context, accountID string, features []plans.FeatureKey) (map[plans.FeatureKey]bool, error) {
	tier, err := g.accountTier(ctx, accountID)
	if err != nil {
		return nil, err
	}

	results := make(map[plans.FeatureKey]bool, len(features))
	for _, feature := range features {
		results[feature] = plans.IsTierHigherOrEqual(tier, plans.RequiredTierForFeature(feature))
	}
	return results, nil
}
