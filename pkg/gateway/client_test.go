package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientReportMeteredUsage(t *testing.T) {
	t.Run("posts a set-action usage record", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody usageRecordRequest

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		at := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
		err := client.ReportMeteredUsage(context.Background(), "gwsub_1", 8000, at)
		require.NoError(t, err)

		assert.Equal(t, "/subscriptions/gwsub_1/usage_records", gotPath)
		assert.Equal(t, "Bearer sk_test_123", gotAuth)
		assert.Equal(t, int64(8000), gotBody.Quantity)
		assert.Equal(t, at.Unix(), gotBody.Timestamp)
		assert.Equal(t, "set", gotBody.Action)
	})

	t.Run("surfaces non-2xx responses", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no such subscription", http.StatusNotFound)
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		err := client.ReportMeteredUsage(context.Background(), "gwsub_missing", 100, time.Now())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Drain the body so the server notices the client disconnect and
			// cancels the request context; otherwise Close blocks forever.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
		}))
		defer server.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		client := NewHTTPClient(server.URL, "sk_test_123")
		err := client.ReportMeteredUsage(ctx, "gwsub_1", 100, time.Now())
		assert.Error(t, err)
	})
}

func TestHTTPClientCustomerAndSessions(t *testing.T) {
	t.Run("creates customer and returns its id", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{"id": "cus_42"})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		id, err := client.CreateCustomer(context.Background(), "acct-1", "owner@acme.test")
		require.NoError(t, err)

		assert.Equal(t, "cus_42", id)
		assert.Equal(t, "/customers", gotPath)
		assert.Equal(t, "acct-1", gotBody["account_id"])
		assert.Equal(t, "owner@acme.test", gotBody["email"])
	})

	t.Run("rejects empty customer id in response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		_, err := client.CreateCustomer(context.Background(), "acct-1", "")
		require.Error(t, err)
	})

	t.Run("checkout session carries account metadata", func(t *testing.T) {
		var gotBody map[string]any

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/checkout/sessions", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			json.NewEncoder(w).Encode(map[string]string{"url": "https://gw.test/c/1"})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		url, err := client.CreateCheckoutSession(context.Background(), CheckoutParams{
			GatewayCustomerID: "cus_42",
			PriceID:           "price_pro_monthly",
			AccountID:         "acct-1",
			SuccessURL:        "https://app.test/done",
			CancelURL:         "https://app.test/plans",
		})
		require.NoError(t, err)

		assert.Equal(t, "https://gw.test/c/1", url)
		assert.Equal(t, "cus_42", gotBody["customer"])
		assert.Equal(t, "price_pro_monthly", gotBody["price"])
		meta, ok := gotBody["metadata"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "acct-1", meta["account_id"])
	})

	t.Run("billing portal session", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/billing_portal/sessions", r.URL.Path)
			json.NewEncoder(w).Encode(map[string]string{"url": "https://gw.test/portal"})
		}))
		defer server.Close()

		client := NewHTTPClient(server.URL, "sk_test_123")
		url, err := client.CreateBillingPortalSession(context.Background(), "cus_42", "https://app.test/settings")
		require.NoError(t, err)
		assert.Equal(t, "https://gw.test/portal", url)
	})
}

func TestHTTPClientSubscriptionMutations(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody = map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "sk_test_123")

	t.Run("plan change posts the new price", func(t *testing.T) {
		require.NoError(t, client.UpdateSubscriptionPlan(context.Background(), "gwsub_1", "price_pro_monthly"))
		assert.Equal(t, "/subscriptions/gwsub_1", gotPath)
		assert.Equal(t, "price_pro_monthly", gotBody["price"])
	})

	t.Run("cancel sets the period-end flag", func(t *testing.T) {
		require.NoError(t, client.CancelAtPeriodEnd(context.Background(), "gwsub_1"))
		assert.Equal(t, true, gotBody["cancel_at_period_end"])
	})

	t.Run("resume clears the period-end flag", func(t *testing.T) {
		require.NoError(t, client.Resume(context.Background(), "gwsub_1"))
		assert.Equal(t, false, gotBody["cancel_at_period_end"])
	})
}
