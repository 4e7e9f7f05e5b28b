package gate

import (
	"errors"
	"fmt"

	"github.com/marketerhq/adgate/pkg/plans"
)

// PaywallError is returned when an account's tier does not grant a feature.
// It carries enough to render an upgrade prompt and maps to HTTP 403.
type PaywallError struct {
	Feature      plans.FeatureKey
	RequiredTier plans.Tier
	CurrentTier  plans.Tier
}

func (e *PaywallError) Error() string {
	return fmt.Sprintf("feature %q requires the %s plan (current plan: %s)", e.Feature, e.RequiredTier, e.CurrentTier)
}

// StatusCode returns the HTTP status this error maps to
func (e *PaywallError) StatusCode() int { return 403 }

// IsPaywall checks if an error is a PaywallError
func IsPaywall(err error) bool {
	var paywallErr *PaywallError
	return errors.As(err, &paywallErr)
}

// UsageLimitError is returned when a numeric quota is exhausted. The boundary
// is inclusive: usage at the limit is already a denial. Maps to HTTP 429.
type UsageLimitError struct {
	LimitKey     plans.LimitKey
	Limit        int
	CurrentUsage int
}

func (e *UsageLimitError) Error() string {
	return fmt.Sprintf("usage limit reached for %q: %d of %d used", e.LimitKey, e.CurrentUsage, e.Limit)
}

// StatusCode returns the HTTP status this error maps to
func (e *UsageLimitError) StatusCode() int { return 429 }

// IsUsageLimit checks if an error is a UsageLimitError
func IsUsageLimit(err error) bool {
	var limitErr *UsageLimitError
	return errors.As(err, &limitErr)
}
