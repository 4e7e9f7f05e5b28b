package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/middleware"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// CheckoutHandlers starts hosted checkout and billing-portal flows on the
// payment gateway. All routes return 503 when no gateway client is
// configured.
type CheckoutHandlers struct {
	subs    subscriptions.Service
	gateway gateway.PaymentGatewayClient
}

// NewCheckoutHandlers creates a new CheckoutHandlers
func NewCheckoutHandlers(subs subscriptions.Service, gw gateway.PaymentGatewayClient) *CheckoutHandlers {
	return &CheckoutHandlers{subs: subs, gateway: gw}
}

// RegisterRoutes registers checkout routes
func (h *CheckoutHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/billing/checkout", h.CreateCheckout).Methods("POST")
	router.HandleFunc("/billing/portal", h.CreatePortal).Methods("POST")
}

// CreateCheckoutRequest is the body for starting a checkout session
type CreateCheckoutRequest struct {
	Tier       string `json:"tier"`
	Annual     bool   `json:"annual,omitempty"`
	Email      string `json:"email,omitempty"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

// CheckoutSessionResponse carries the hosted page URL the caller redirects to
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// CreateCheckout starts a hosted checkout session for a paid tier. The
// gateway confirms the tier change via the checkout.completed webhook; this
// endpoint never mutates the subscription tier itself.
func (h *CheckoutHandlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		httputil.WriteServiceUnavailable(w, "payment gateway is not configured")
		return
	}
	accountID := middleware.GetAccountID(r)

	var req CreateCheckoutRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tier, err := plans.ParseTier(req.Tier)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	cfg, err := plans.GetConfig(tier)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	priceID := cfg.GatewayPriceID
	if req.Annual {
		priceID = cfg.GatewayAnnualPriceID
	}
	if priceID == "" {
		httputil.WriteValidationError(w, "tier is not purchasable through checkout")
		return
	}

	sub, err := h.subs.GetOrCreateSubscription(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	customerID := sub.GatewayCustomerID
	if customerID == "" {
		customerID, err = h.gateway.CreateCustomer(r.Context(), accountID, req.Email)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		if err := h.subs.UpdateGatewayIDs(r.Context(), accountID, customerID, sub.GatewaySubscriptionID); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	url, err := h.gateway.CreateCheckoutSession(r.Context(), gateway.CheckoutParams{
		GatewayCustomerID: customerID,
		PriceID:           priceID,
		AccountID:         accountID,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
	})
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, CheckoutSessionResponse{URL: url})
}

// CreatePortalRequest is the body for opening the billing portal
type CreatePortalRequest struct {
	ReturnURL string `json:"return_url"`
}

// CreatePortal returns a billing-portal URL for an account that already has
// a gateway customer.
func (h *CheckoutHandlers) CreatePortal(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil {
		httputil.WriteServiceUnavailable(w, "payment gateway is not configured")
		return
	}
	accountID := middleware.GetAccountID(r)

	var req CreatePortalRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sub, err := h.subs.GetSubscription(r.Context(), accountID)
	if err != nil {
		httputil.WriteNotFoundError(w, "subscription not found")
		return
	}
	if sub.GatewayCustomerID == "" {
		httputil.WriteValidationError(w, "account has no billing profile yet")
		return
	}

	url, err := h.gateway.CreateBillingPortalSession(r.Context(), sub.GatewayCustomerID, req.ReturnURL)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, CheckoutSessionResponse{URL: url})
}
