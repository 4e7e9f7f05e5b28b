package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/gate"
	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/middleware"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// SubscriptionHandlers handles subscription and feature-gate HTTP requests
type SubscriptionHandlers struct {
	subs       subscriptions.Service
	gate       *gate.Gate
	gateway    gateway.PaymentGatewayClient
	upgradeURL string
	gateMW     *middleware.GateMiddleware
}

// NewSubscriptionHandlers creates a new SubscriptionHandlers
func NewSubscriptionHandlers(subs subscriptions.Service, g *gate.Gate, gw gateway.PaymentGatewayClient, upgradeURL string, gateMW *middleware.GateMiddleware) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		subs:       subs,
		gate:       g,
		gateway:    gw,
		upgradeURL: upgradeURL,
		gateMW:     gateMW,
	}
}

// RegisterRoutes registers subscription routes
func (h *SubscriptionHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/subscription", h.GetSubscription).Methods("GET")
	router.HandleFunc("/subscription/tier", h.ChangeTier).Methods("PUT")
	router.HandleFunc("/subscription/cancel", h.CancelSubscription).Methods("POST")
	router.HandleFunc("/subscription/reactivate", h.ReactivateSubscription).Methods("POST")

	router.HandleFunc("/plans", h.ListPlans).Methods("GET")

	router.HandleFunc("/features", h.CheckFeatures).Methods("GET")
	router.HandleFunc("/features/{feature}", h.CheckFeature).Methods("GET")
	router.HandleFunc("/limits/{limit_key}", h.CheckLimit).Methods("GET")
}

// GetSubscription returns the account's subscription, defaulting to free
func (h *SubscriptionHandlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	sub, err := h.subs.GetOrCreateSubscription(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, sub)
}

// ChangeTierRequest is the body for tier changes
type ChangeTierRequest struct {
	Tier                  string `json:"tier"`
	GatewaySubscriptionID string `json:"gateway_subscription_id,omitempty"`
}

// ChangeTier moves the subscription to a new tier, re-snapshotting plan limits
func (h *SubscriptionHandlers) ChangeTier(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	var req ChangeTierRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tier, err := plans.ParseTier(req.Tier)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	// Push the plan change to the gateway first so a local update never
	// outruns a failed remote one.
	if h.gateway != nil {
		current, err := h.subs.GetSubscription(r.Context(), accountID)
		if err == nil && current.GatewaySubscriptionID != "" {
			if cfg, cfgErr := plans.GetConfig(tier); cfgErr == nil && cfg.GatewayPriceID != "" {
				if err := h.gateway.UpdateSubscriptionPlan(r.Context(), current.GatewaySubscriptionID, cfg.GatewayPriceID); err != nil {
					httputil.WriteInternalError(w, err)
					return
				}
			}
		}
	}

	sub, err := h.subs.UpdateTier(r.Context(), accountID, tier, req.GatewaySubscriptionID)
	if err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			httputil.WriteNotFoundError(w, "subscription not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	// Tier changes must be visible to gate checks immediately
	h.gate.Invalidate(accountID)

	httputil.WriteSuccess(w, sub)
}

// CancelSubscription schedules cancellation at the end of the billing period
func (h *SubscriptionHandlers) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	if err := h.syncGatewayCancellation(r, accountID, true); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.subs.CancelAtPeriodEnd(r.Context(), accountID); err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			httputil.WriteNotFoundError(w, "subscription not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// syncGatewayCancellation mirrors a cancellation flag change to the gateway
// for accounts on a paid gateway subscription. No-op when no gateway client
// is configured.
func (h *SubscriptionHandlers) syncGatewayCancellation(r *http.Request, accountID string, cancel bool) error {
	if h.gateway == nil {
		return nil
	}
	sub, err := h.subs.GetSubscription(r.Context(), accountID)
	if err != nil || sub.GatewaySubscriptionID == "" {
		return nil
	}
	if cancel {
		return h.gateway.CancelAtPeriodEnd(r.Context(), sub.GatewaySubscriptionID)
	}
	return h.gateway.Resume(r.Context(), sub.GatewaySubscriptionID)
}

// ReactivateSubscription clears a scheduled cancellation
func (h *SubscriptionHandlers) ReactivateSubscription(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	if err := h.syncGatewayCancellation(r, accountID, false); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if err := h.subs.Reactivate(r.Context(), accountID); err != nil {
		if errors.Is(err, subscriptions.ErrNotFound) {
			httputil.WriteNotFoundError(w, "subscription not found")
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	h.gate.Invalidate(accountID)

	httputil.WriteNoContent(w)
}

// planView is a plan config plus the display strings marketing surfaces
// render verbatim.
type planView struct {
	plans.Config
	PriceDisplay         string `json:"price_display"`
	AnnualPriceDisplay   string `json:"annual_price_display"`
	FeeDisplay           string `json:"fee_display"`
	CampaignLimitDisplay string `json:"campaign_limit_display"`
}

// ListPlans returns the full plan catalog
func (h *SubscriptionHandlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	catalog := make([]planView, 0, len(plans.AllTiers()))
	for _, tier := range plans.AllTiers() {
		cfg, err := plans.GetConfig(tier)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		catalog = append(catalog, planView{
			Config:               cfg,
			PriceDisplay:         plans.FormatPrice(cfg.MonthlyPriceCents),
			AnnualPriceDisplay:   plans.FormatPrice(cfg.AnnualPriceCents),
			FeeDisplay:           plans.FormatPercent(cfg.AdSpendPercentage),
			CampaignLimitDisplay: plans.FormatLimit(cfg.Limits.MaxCampaignsPerMonth),
		})
	}
	httputil.WriteSuccess(w, catalog)
}

// CheckFeatures evaluates a comma-separated set of features for the account
func (h *SubscriptionHandlers) CheckFeatures(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	var features []plans.FeatureKey
	if keys := httputil.ParseQueryString(r, "keys", ""); keys != "" {
		for _, key := range strings.Split(keys, ",") {
			features = append(features, plans.FeatureKey(strings.TrimSpace(key)))
		}
	} else {
		for _, def := range plans.AllFeatures() {
			features = append(features, def.Key)
		}
	}

	results, err := h.gate.CheckMultipleFeatures(r.Context(), accountID, features)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, results)
}

// CheckFeature evaluates a single feature, returning allow/deny with upgrade info
func (h *SubscriptionHandlers) CheckFeature(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)
	feature := plans.FeatureKey(mux.Vars(r)["feature"])

	result, err := h.gate.CheckFeatureAccess(r.Context(), accountID, feature)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// CheckLimit evaluates a usage limit with ?current=N as the usage count
func (h *SubscriptionHandlers) CheckLimit(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)
	limitKey := plans.LimitKey(mux.Vars(r)["limit_key"])

	current, err := httputil.ParseQueryInt(r, "current", 0)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	result, checkErr := h.gate.CheckUsageLimit(r.Context(), accountID, limitKey, current)
	if checkErr != nil {
		httputil.WriteInternalError(w, checkErr)
		return
	}

	httputil.WriteSuccess(w, result)
}
