package httputil

import (
	"net/http"
)

// FeatureLockedResponse is the payload returned when a paywall denies access.
type FeatureLockedResponse struct {
	Error        string `json:"error"`
	Feature      string `json:"feature"`
	RequiredTier string `json:"requiredTier"`
	UpgradeURL   string `json:"upgradeUrl"`
}

// UsageLimitResponse is the payload returned when a usage limit is exhausted.
type UsageLimitResponse struct {
	Error        string `json:"error"`
	LimitKey     string `json:"limitKey"`
	Limit        int64  `json:"limit"`
	CurrentUsage int64  `json:"currentUsage"`
	UpgradeURL   string `json:"upgradeUrl"`
}

// WriteFeatureLocked writes a paywall denial (403 Forbidden)
func WriteFeatureLocked(w http.ResponseWriter, feature, requiredTier, upgradeURL string) {
	WriteJSON(w, http.StatusForbidden, FeatureLockedResponse{
		Error:        "feature_locked",
		Feature:      feature,
		RequiredTier: requiredTier,
		UpgradeURL:   upgradeURL,
	})
}

// WriteUsageLimitExceeded writes a usage limit denial (429 Too Many Requests)
func WriteUsageLimitExceeded(w http.ResponseWriter, limitKey string, limit, currentUsage int64, upgradeURL string) {
	WriteJSON(w, http.StatusTooManyRequests, UsageLimitResponse{
		Error:        "usage_limit_exceeded",
		LimitKey:     limitKey,
		Limit:        limit,
		CurrentUsage: currentUsage,
		UpgradeURL:   upgradeURL,
	})
}
