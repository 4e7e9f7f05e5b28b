// Package middleware provides HTTP middleware for request context, feature gating, and rate limiting.
//
// # Overview
//
// This package implements request processing middleware including request ID
// propagation, account extraction, paywall/usage-limit enforcement, and rate
// limiting (in-memory and Redis-backed).
//
// # Middleware Components
//
// RequestIDMiddleware: UUID request IDs
//
//	router.Use(middleware.RequestIDMiddleware)
//	// Honors X-Request-ID, otherwise generates a UUID
//
// AccountMiddleware: Account extraction
//
//	router.Use(middleware.AccountMiddleware)
//	// Requires X-Account-ID, adds it to the request context
//
// GateMiddleware: Paywall enforcement
//
//	gm := middleware.NewGateMiddleware(featureGate, cfg.Billing.UpgradeURL)
//	router.Handle("/ai-cmo", gm.RequireFeature(plans.FeatureAICMO)(handler))
//	// Denials return 403 feature_locked or 429 usage_limit_exceeded
//
// RateLimitMiddleware: In-memory rate limiting
//
//	router.Use(middleware.NewRateLimitMiddleware().Handler)
//
// DistributedRateLimitMiddleware: Redis-backed rate limiting
//
//	router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient).Handler)
//
// # Rate Limiting
//
// Default (Anonymous): 100 req/min, 10 burst
// Per-Account: 1000 req/min, 50 burst
// Webhook endpoint: 5000 req/min, 100 burst
//
// # Related Packages
//
//   - pkg/gate: Feature authorization decisions
//   - pkg/contextkeys: Context key definitions
//   - pkg/httputil: Response payloads
package middleware
