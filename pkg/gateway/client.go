package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultClientTimeout = 15 * time.Second

// PaymentGatewayClient is the full outbound surface of the payment gateway.
// The adapter only depends on the narrower Client; HTTP handlers that start
// checkout and portal flows use the rest.
type PaymentGatewayClient interface {
	Client

	CreateCustomer(ctx context.Context, accountID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreateBillingPortalSession(ctx context.Context, gatewayCustomerID, returnURL string) (string, error)
	UpdateSubscriptionPlan(ctx context.Context, gatewaySubscriptionID, priceID string) error
	CancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string) error
	Resume(ctx context.Context, gatewaySubscriptionID string) error
}

// CheckoutParams describes a hosted checkout session
type CheckoutParams struct {
	GatewayCustomerID string
	PriceID           string
	AccountID         string
	SuccessURL        string
	CancelURL         string
}

// HTTPClient talks to the payment gateway's REST API
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ PaymentGatewayClient = (*HTTPClient)(nil)

// NewHTTPClient creates a gateway API client
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
}

// post sends an authenticated JSON request and decodes the response into out
// when out is non-nil.
func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}

// usageRecordRequest is the wire shape of a metered usage report. The "set"
// action replaces any quantity previously reported for the period.
type usageRecordRequest struct {
	Quantity  int64  `json:"quantity"`
	Timestamp int64  `json:"timestamp"`
	Action    string `json:"action"`
}

// ReportMeteredUsage sets the billed quantity for a gateway subscription
func (c *HTTPClient) ReportMeteredUsage(ctx context.Context, gatewaySubscriptionID string, quantity int64, at time.Time) error {
	path := fmt.Sprintf("/subscriptions/%s/usage_records", gatewaySubscriptionID)
	return c.post(ctx, path, usageRecordRequest{
		Quantity:  quantity,
		Timestamp: at.Unix(),
		Action:    "set",
	}, nil)
}

// CreateCustomer registers the account with the gateway and returns the
// gateway customer id.
func (c *HTTPClient) CreateCustomer(ctx context.Context, accountID, email string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/customers", map[string]string{
		"account_id": accountID,
		"email":      email,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("gateway returned empty customer id")
	}
	return out.ID, nil
}

// CreateCheckoutSession starts a hosted checkout flow and returns its URL
func (c *HTTPClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.post(ctx, "/checkout/sessions", map[string]any{
		"customer":    params.GatewayCustomerID,
		"price":       params.PriceID,
		"success_url": params.SuccessURL,
		"cancel_url":  params.CancelURL,
		"metadata":    map[string]string{"account_id": params.AccountID},
	}, &out)
	if err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("gateway returned empty checkout url")
	}
	return out.URL, nil
}

// CreateBillingPortalSession returns a URL where the customer manages their
// own subscription and payment methods.
func (c *HTTPClient) CreateBillingPortalSession(ctx context.Context, gatewayCustomerID, returnURL string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.post(ctx, "/billing_portal/sessions", map[string]string{
		"customer":   gatewayCustomerID,
		"return_url": returnURL,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.URL, nil
}

// UpdateSubscriptionPlan moves the gateway subscription to a new price
func (c *HTTPClient) UpdateSubscriptionPlan(ctx context.Context, gatewaySubscriptionID, priceID string) error {
	path := fmt.Sprintf("/subscriptions/%s", gatewaySubscriptionID)
	return c.post(ctx, path, map[string]string{"price": priceID}, nil)
}

// CancelAtPeriodEnd schedules the gateway subscription to end with the
// current period.
func (c *HTTPClient) CancelAtPeriodEnd(ctx context.Context, gatewaySubscriptionID string) error {
	path := fmt.Sprintf("/subscriptions/%s", gatewaySubscriptionID)
	return c.post(ctx, path, map[string]bool{"cancel_at_period_end": true}, nil)
}

// Resume clears a scheduled cancellation on the gateway side
func (c *HTTPClient) Resume(ctx context.Context, gatewaySubscriptionID string) error {
	path := fmt.Sprintf("/subscriptions/%s", gatewaySubscriptionID)
	return c.post(ctx, path, map[string]bool{"cancel_at_period_end": false}, nil)
}
