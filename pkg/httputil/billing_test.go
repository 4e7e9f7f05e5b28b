package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFeatureLocked(t *testing.T) {
	w := httptest.NewRecorder()

	WriteFeatureLocked(w, "has_ai_cmo", "starter", "/settings/billing")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp FeatureLockedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "feature_locked", resp.Error)
	assert.Equal(t, "has_ai_cmo", resp.Feature)
	assert.Equal(t, "starter", resp.RequiredTier)
	assert.Equal(t, "/settings/billing", resp.UpgradeURL)
}

func TestWriteUsageLimitExceeded(t *testing.T) {
	w := httptest.NewRecorder()

	WriteUsageLimitExceeded(w, "max_campaigns_per_month", 20, 20, "/settings/billing")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var resp UsageLimitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "usage_limit_exceeded", resp.Error)
	assert.Equal(t, "max_campaigns_per_month", resp.LimitKey)
	assert.Equal(t, int64(20), resp.Limit)
	assert.Equal(t, int64(20), resp.CurrentUsage)
	assert.Equal(t, "/settings/billing", resp.UpgradeURL)
}
