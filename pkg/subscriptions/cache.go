package subscriptions

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/marketerhq/adgate/pkg/plans"
)

// CachedService wraps a Service with a Redis read-through cache for
// subscription lookups. Every mutating operation invalidates the cached
// subscription so readers never observe a stale tier or accumulator for
// longer than a single round trip.
type CachedService struct {
	next  Service
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedService creates a caching layer over an existing Service
func NewCachedService(next Service, client *redis.Client, ttl time.Duration) *CachedService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedService{next: next, redis: client, ttl: ttl}
}

func subscriptionCacheKey(accountID string) string {
	return fmt.Sprintf("subscription:%s", accountID)
}

// GetSubscription gets a subscription with caching
func (c *CachedService) GetSubscription(ctx context.Context, accountID string) (*Subscription, error) {
	cacheKey := subscriptionCacheKey(accountID)

	// Try cache first
	cached, err := c.redis.Get(ctx, cacheKey).Result()
	if err == nil {
		var sub Subscription
		if err := json.Unmarshal([]byte(cached), &sub); err == nil {
			return &sub, nil
		}
	}

	// Cache miss - fetch from database
	sub, err := c.next.GetSubscription(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Store in cache
	data, err := json.Marshal(sub)
	if err == nil {
		c.redis.Set(ctx, cacheKey, data, c.ttl)
	}

	return sub, nil
}

// CreateSubscription creates a subscription and primes the cache
func (c *CachedService) CreateSubscription(ctx context.Context, accountID string, tier plans.Tier, opts *CreateOptions) (*Subscription, error) {
	sub, err := c.next.CreateSubscription(ctx, accountID, tier, opts)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(sub)
	if err == nil {
		c.redis.Set(ctx, subscriptionCacheKey(accountID), data, c.ttl)
	}

	return sub, nil
}

// GetOrCreateSubscription returns the account's subscription, creating a free
// one on first access
func (c *CachedService) GetOrCreateSubscription(ctx context.Context, accountID string) (*Subscription, error) {
	sub, err := c.GetSubscription(ctx, accountID)
	if err == nil {
		return sub, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return c.CreateSubscription(ctx, accountID, plans.TierFree, nil)
}

// UpdateTier changes the tier and invalidates the cached subscription
func (c *CachedService) UpdateTier(ctx context.Context, accountID string, newTier plans.Tier, gatewaySubscriptionID string) (*Subscription, error) {
	sub, err := c.next.UpdateTier(ctx, accountID, newTier, gatewaySubscriptionID)
	if err != nil {
		return nil, err
	}

	data, merr := json.Marshal(sub)
	if merr == nil {
		c.redis.Set(ctx, subscriptionCacheKey(accountID), data, c.ttl)
	} else {
		c.redis.Del(ctx, subscriptionCacheKey(accountID))
	}

	return sub, nil
}

// UpdateStatus sets the status and invalidates the cached subscription
func (c *CachedService) UpdateStatus(ctx context.Context, accountID string, status Status, opts *StatusOptions) error {
	if err := c.next.UpdateStatus(ctx, accountID, status, opts); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// UpdateGatewayIDs sets the gateway ids and invalidates the cached subscription
func (c *CachedService) UpdateGatewayIDs(ctx context.Context, accountID, customerID, subscriptionID string) error {
	if err := c.next.UpdateGatewayIDs(ctx, accountID, customerID, subscriptionID); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// UpdateBillingPeriod sets the billing period and invalidates the cached
// subscription
func (c *CachedService) UpdateBillingPeriod(ctx context.Context, accountID string, periodStart, periodEnd time.Time) error {
	if err := c.next.UpdateBillingPeriod(ctx, accountID, periodStart, periodEnd); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// UpdateAdSpendTracking moves the accumulators and invalidates the cached
// subscription
func (c *CachedService) UpdateAdSpendTracking(ctx context.Context, accountID string, spendDelta float64) error {
	if err := c.next.UpdateAdSpendTracking(ctx, accountID, spendDelta); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// ApplyAdSpendDeltas moves the accumulators and invalidates the cached
// subscription
func (c *CachedService) ApplyAdSpendDeltas(ctx context.Context, accountID string, spendDelta, feeDelta float64) error {
	if err := c.next.ApplyAdSpendDeltas(ctx, accountID, spendDelta, feeDelta); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// ResetMonthlyAdSpend zeroes the accumulators and invalidates the cached
// subscription
func (c *CachedService) ResetMonthlyAdSpend(ctx context.Context, accountID string) error {
	if err := c.next.ResetMonthlyAdSpend(ctx, accountID); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// CanAccessFeature checks a limit key against the cached subscription's limits
func (c *CachedService) CanAccessFeature(ctx context.Context, accountID string, limitKey plans.LimitKey) (bool, error) {
	sub, err := c.GetOrCreateSubscription(ctx, accountID)
	if err != nil {
		return false, err
	}

	if v, ok := sub.Limits.Bool(limitKey); ok {
		return v, nil
	}
	if v, ok := sub.Limits.Numeric(limitKey); ok {
		return v == plans.Unlimited || v > 0, nil
	}

	return false, fmt.Errorf("unknown limit key %q", limitKey)
}

// CancelAtPeriodEnd schedules cancellation and invalidates the cached
// subscription
func (c *CachedService) CancelAtPeriodEnd(ctx context.Context, accountID string) error {
	if err := c.next.CancelAtPeriodEnd(ctx, accountID); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// Reactivate clears a scheduled cancellation and invalidates the cached
// subscription
func (c *CachedService) Reactivate(ctx context.Context, accountID string) error {
	if err := c.next.Reactivate(ctx, accountID); err != nil {
		return err
	}
	c.redis.Del(ctx, subscriptionCacheKey(accountID))
	return nil
}

// ListByTier is not cached; list results change too often to be worth keeping
func (c *CachedService) ListByTier(ctx context.Context, tier plans.Tier) ([]*Subscription, error) {
	return c.next.ListByTier(ctx, tier)
}

// ListAccountIDs is not cached
func (c *CachedService) ListAccountIDs(ctx context.Context) ([]string, error) {
	return c.next.ListAccountIDs(ctx)
}

// Invalidate removes an account's subscription from the cache
func (c *CachedService) Invalidate(ctx context.Context, accountID string) error {
	return c.redis.Del(ctx, subscriptionCacheKey(accountID)).Err()
}
