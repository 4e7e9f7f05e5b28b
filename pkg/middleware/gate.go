package middleware

import (
	"errors"
	"net/http"

	"github.com/marketerhq/adgate/pkg/gate"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/plans"
)

// GateMiddleware converts feature gate denials into HTTP responses. Paywall
// denials return 403 with an upgrade pointer, usage limit denials return 429.
type GateMiddleware struct {
	gate       *gate.Gate
	upgradeURL string
}

// NewGateMiddleware creates a new gate middleware
func NewGateMiddleware(g *gate.Gate, upgradeURL string) *GateMiddleware {
	return &GateMiddleware{
		gate:       g,
		upgradeURL: upgradeURL,
	}
}

// RequireFeature guards a route behind a tier-gated feature. The account ID
// must already be on the request context (see AccountMiddleware).
func (m *GateMiddleware) RequireFeature(feature plans.FeatureKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := GetAccountID(r)
			if accountID == "" {
				httputil.WriteUnauthorized(w, "missing X-Account-ID header")
				return
			}

			if err := m.gate.RequireFeature(r.Context(), accountID, feature); err != nil {
				m.writeDenial(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeDenial maps gate errors onto the wire format
func (m *GateMiddleware) writeDenial(w http.ResponseWriter, err error) {
	var paywallErr *gate.PaywallError
	if errors.As(err, &paywallErr) {
		httputil.WriteFeatureLocked(w, string(paywallErr.Feature), string(paywallErr.RequiredTier), m.upgradeURL)
		return
	}

	var limitErr *gate.UsageLimitError
	if errors.As(err, &limitErr) {
		httputil.WriteUsageLimitExceeded(w, string(limitErr.LimitKey), int64(limitErr.Limit), int64(limitErr.CurrentUsage), m.upgradeURL)
		return
	}

	httputil.WriteInternalError(w, err)
}

// WriteGateError exposes the denial mapping to handlers that call the gate
// directly (e.g. usage limit checks that need a request-derived usage count).
func (m *GateMiddleware) WriteGateError(w http.ResponseWriter, err error) {
	m.writeDenial(w, err)
}
