package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marketerhq/adgate/pkg/contextkeys"
)

// RateLimitConfig tunes a token-bucket limiter. A bucket starts full at
// RequestsPerWindow+BurstSize tokens and refills at a steady
// RequestsPerWindow-per-WindowDuration rate.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
	BurstSize         int
}

// DefaultRateLimitConfig covers unattributed (per-IP) traffic.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 100,
		WindowDuration:    time.Minute,
		BurstSize:         10,
	}
}

// PerAccountRateLimitConfig covers authenticated account traffic. Gate
// checks sit on every campaign mutation, so this is deliberately loose.
func PerAccountRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 1000,
		WindowDuration:    time.Minute,
		BurstSize:         50,
	}
}

// WebhookRateLimitConfig covers the payment gateway webhook endpoint.
// Gateway retries arrive in bursts after an outage, so the ceiling is high.
func WebhookRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 5000,
		WindowDuration:    time.Minute,
		BurstSize:         100,
	}
}

// RateLimiter is an in-process token-bucket limiter keyed by caller.
// Single-instance deployments only; multi-instance setups should use
// DistributedRateLimitMiddleware backed by Redis instead.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*tokenBucket
	mu      sync.RWMutex
}

type tokenBucket struct {
	mu       sync.Mutex
	tokens   float64
	refilled time.Time
}

// NewRateLimiter creates a limiter; a nil config falls back to defaults.
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
	}
}

func (rl *RateLimiter) capacity() float64 {
	return float64(rl.config.RequestsPerWindow + rl.config.BurstSize)
}

func (rl *RateLimiter) bucket(key string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: rl.capacity(), refilled: time.Now()}
		rl.buckets[key] = b
	}
	return b
}

// refillLocked tops up the bucket for the time elapsed since the last
// refill. Caller must hold b.mu.
func (rl *RateLimiter) refillLocked(b *tokenBucket) {
	now := time.Now()
	rate := float64(rl.config.RequestsPerWindow) / rl.config.WindowDuration.Seconds()
	b.tokens += now.Sub(b.refilled).Seconds() * rate
	if full := rl.capacity(); b.tokens > full {
		b.tokens = full
	}
	b.refilled = now
}

// Allow spends one token for key, reporting whether the request may proceed.
func (rl *RateLimiter) Allow(key string) bool {
	b := rl.bucket(key)

	b.mu.Lock()
	defer b.mu.Unlock()

	rl.refillLocked(b)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Remaining reports how many whole tokens key has left.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, ok := rl.buckets[key]
	rl.mu.RUnlock()

	if !ok {
		return rl.config.RequestsPerWindow + rl.config.BurstSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.tokens)
}

// Cleanup drops buckets idle for more than two windows.
func (rl *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-2 * rl.config.WindowDuration)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		b.mu.Lock()
		stale := b.refilled.Before(cutoff)
		b.mu.Unlock()
		if stale {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanup prunes idle buckets once per window until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per account, falling back to per-IP
// buckets for requests that carry no account identity.
type RateLimitMiddleware struct {
	accountLimiter   *RateLimiter
	anonymousLimiter *RateLimiter
}

func NewRateLimitMiddleware() *RateLimitMiddleware {
	return &RateLimitMiddleware{
		accountLimiter:   NewRateLimiter(PerAccountRateLimitConfig()),
		anonymousLimiter: NewRateLimiter(DefaultRateLimitConfig()),
	}
}

// Handler enforces the limit and stamps X-RateLimit-* headers on responses.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		var limiter *RateLimiter

		if accountID := contextkeys.GetAccountID(r.Context()); accountID != "" {
			key = "account:" + accountID
			limiter = m.accountLimiter
		} else {
			key = "ip:" + getClientIP(r)
			limiter = m.anonymousLimiter
		}

		if !limiter.Allow(key) {
			writeRateLimited(w, limiter.config)
			return
		}

		reset := time.Now().Add(limiter.config.WindowDuration).Unix()
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.config.RequestsPerWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		next.ServeHTTP(w, r)
	})
}

func writeRateLimited(w http.ResponseWriter, config *RateLimitConfig) {
	retryAfter := int(config.WindowDuration.Seconds())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(config.WindowDuration).Unix(), 10))
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate limit exceeded","retry_after":%d}`, retryAfter)
}

// getClientIP resolves the caller address, preferring proxy headers. Only
// the first hop of X-Forwarded-For is trusted.
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		if idx := strings.IndexByte(forwarded, ','); idx >= 0 {
			return strings.TrimSpace(forwarded[:idx])
		}
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
