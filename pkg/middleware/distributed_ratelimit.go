package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/marketerhq/adgate/pkg/contextkeys"
)

// DistributedRateLimiter counts requests in Redis so the limit holds across
// every instance behind the load balancer. Fixed-window counters: one INCR
// per request, expiring a window after the first hit.
type DistributedRateLimiter struct {
	redis  *redis.Client
	config *RateLimitConfig
	prefix string
}

func NewDistributedRateLimiter(redisClient *redis.Client, config *RateLimitConfig, prefix string) *DistributedRateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &DistributedRateLimiter{
		redis:  redisClient,
		config: config,
		prefix: prefix,
	}
}

func (rl *DistributedRateLimiter) counterKey(key string) string {
	return rl.prefix + ":" + key
}

// Allow counts one request for key. A Redis error is returned alongside
// allowed=true; the caller decides whether to fail open.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	counter := rl.counterKey(key)

	pipe := rl.redis.Pipeline()
	incr := pipe.Incr(ctx, counter)
	pipe.Expire(ctx, counter, rl.config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("rate limit counter %s: %w", counter, err)
	}

	return incr.Val() <= int64(rl.config.RequestsPerWindow), nil
}

// Remaining reports the unspent quota for key in the current window.
func (rl *DistributedRateLimiter) Remaining(ctx context.Context, key string) (int, error) {
	count, err := rl.redis.Get(ctx, rl.counterKey(key)).Int()
	if err == redis.Nil {
		return rl.config.RequestsPerWindow, nil
	}
	if err != nil {
		return 0, err
	}

	if remaining := rl.config.RequestsPerWindow - count; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

// TTL reports how long until the current window for key resets.
func (rl *DistributedRateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return rl.redis.TTL(ctx, rl.counterKey(key)).Result()
}

// Reset clears the counter for key. Used by admin tooling and tests.
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.counterKey(key)).Err()
}

// DistributedRateLimitMiddleware applies Redis-backed limits per account with
// a per-IP fallback, plus a dedicated bucket for the payment gateway webhook.
// Redis outages fail open: billing enforcement must not take the API down.
type DistributedRateLimitMiddleware struct {
	accountLimiter   *DistributedRateLimiter
	webhookLimiter   *DistributedRateLimiter
	anonymousLimiter *DistributedRateLimiter
}

func NewDistributedRateLimitMiddleware(redisClient *redis.Client) *DistributedRateLimitMiddleware {
	return &DistributedRateLimitMiddleware{
		accountLimiter:   NewDistributedRateLimiter(redisClient, PerAccountRateLimitConfig(), "ratelimit:account"),
		webhookLimiter:   NewDistributedRateLimiter(redisClient, WebhookRateLimitConfig(), "ratelimit:webhook"),
		anonymousLimiter: NewDistributedRateLimiter(redisClient, DefaultRateLimitConfig(), "ratelimit:anon"),
	}
}

// Handler enforces the account (or per-IP) limit on the wrapped handler.
func (m *DistributedRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var key string
		var limiter *DistributedRateLimiter

		if accountID := contextkeys.GetAccountID(ctx); accountID != "" {
			key = "account:" + accountID
			limiter = m.accountLimiter
		} else {
			key = "ip:" + getClientIP(r)
			limiter = m.anonymousLimiter
		}

		allowed, err := limiter.Allow(ctx, key)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			m.writeLimited(ctx, w, limiter, key)
			return
		}

		if remaining, err := limiter.Remaining(ctx, key); err == nil {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// WebhookHandler wraps the payment gateway webhook route. Keyed by source IP
// with the generous webhook quota, since gateway retries arrive in bursts.
func (m *DistributedRateLimitMiddleware) WebhookHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := "ip:" + getClientIP(r)

		allowed, err := m.webhookLimiter.Allow(ctx, key)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			m.writeLimited(ctx, w, m.webhookLimiter, key)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *DistributedRateLimitMiddleware) writeLimited(ctx context.Context, w http.ResponseWriter, limiter *DistributedRateLimiter, key string) {
	retryAfter := int(limiter.config.WindowDuration.Seconds())
	if ttl, err := limiter.TTL(ctx, key); err == nil && ttl > 0 {
		retryAfter = int(ttl.Seconds())
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
}
