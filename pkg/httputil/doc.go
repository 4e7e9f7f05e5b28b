// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// This package offers helper functions for JSON encoding/decoding, error
// responses, parameter parsing, and the billing denial payloads, plus a few
// generic middleware building blocks.
//
// # Response Helpers
//
// JSON responses:
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteSuccess(w, "Operation completed")
//	httputil.WriteCreated(w, resource)
//
// Error responses:
//
//	httputil.WriteError(w, http.StatusBadRequest, err)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteUnauthorized(w, "missing X-Account-ID header")
//
// # Request Parsing
//
// JSON parsing:
//
//	var req RecordAdSpendRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // Error response already written
//	}
//
// Query parameters:
//
//	limit := httputil.ParseQueryInt(r, "limit", 20)
//	offset := httputil.ParseQueryInt(r, "offset", 0)
//	since := httputil.ParseQueryDate(r, "since", defaultStart)
//
// # Billing Responses
//
// Paywall and usage-limit denials:
//
//	httputil.WriteFeatureLocked(w, "has_ai_cmo", "starter", upgradeURL)
//	httputil.WriteUsageLimitExceeded(w, "max_campaigns_per_month", 20, 20, upgradeURL)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1024*1024), // 1MB
//	)
//
// # Related Packages
//
//   - pkg/middleware: Request context and feature gate middleware
package httputil
