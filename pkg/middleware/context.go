package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/marketerhq/adgate/pkg/contextkeys"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/observability"
)

// RequestIDMiddleware assigns each request a UUID, honoring an inbound
// X-Request-ID header when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", requestID)

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountMiddleware extracts the account ID from the X-Account-ID header and
// stores it in the request context. Requests without an account ID are
// rejected; account-agnostic routes (health, webhook) should not be wrapped.
func AccountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accountID := r.Header.Get("X-Account-ID")
		if accountID == "" {
			httputil.WriteUnauthorized(w, "missing X-Account-ID header")
			return
		}

		ctx := contextkeys.WithAccountID(r.Context(), accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAccountID returns the account ID stored on the request context.
func GetAccountID(r *http.Request) string {
	return contextkeys.GetAccountID(r.Context())
}

// RequestLoggingMiddleware logs each request with method, path, status,
// duration, and the request/account IDs from context.
func RequestLoggingMiddleware(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			entry := logger.WithFields(map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
				entry = entry.WithField("request_id", requestID)
			}
			if accountID := contextkeys.GetAccountID(ctx); accountID != "" {
				entry = entry.WithField("account_id", accountID)
			}
			entry.Info("request completed")
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
