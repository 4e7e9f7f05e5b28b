package api

import (
	"math"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/billing"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/middleware"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// BillingHandlers handles billing derivation HTTP requests
type BillingHandlers struct {
	engine *billing.Engine
	subs   subscriptions.Service
}

// NewBillingHandlers creates a new BillingHandlers
func NewBillingHandlers(engine *billing.Engine, subs subscriptions.Service) *BillingHandlers {
	return &BillingHandlers{
		engine: engine,
		subs:   subs,
	}
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/billing/breakdown", h.GetBreakdown).Methods("GET")
	router.HandleFunc("/billing/projection", h.GetProjection).Methods("GET")
	router.HandleFunc("/billing/history", h.GetHistory).Methods("GET")
	router.HandleFunc("/billing/upgrade-savings/{tier}", h.GetUpgradeSavings).Methods("GET")
	router.HandleFunc("/billing/break-even/{tier}", h.GetBreakEven).Methods("GET")
	router.HandleFunc("/billing/lifetime-value", h.GetLifetimeValue).Methods("GET")
}

// GetBreakdown returns the current month's charge composition
func (h *BillingHandlers) GetBreakdown(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	breakdown, err := h.engine.CalculateBillingBreakdown(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, breakdown)
}

// GetProjection extrapolates current spend velocity to end of period
func (h *BillingHandlers) GetProjection(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	projection, err := h.engine.ProjectBilling(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, projection)
}

// GetHistory returns per-month billing rows, oldest first
func (h *BillingHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	months, err := httputil.ParseQueryInt(r, "months", 6)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	history, err := h.engine.GetBillingHistory(r.Context(), accountID, months)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, history)
}

// GetUpgradeSavings compares the current month's cost against a target tier's
// rate card at the same spend
func (h *BillingHandlers) GetUpgradeSavings(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	targetTier, err := plans.ParseTier(mux.Vars(r)["tier"])
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	savings, err := h.engine.CalculateUpgradeSavings(r.Context(), accountID, targetTier)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteSuccess(w, savings)
}

// GetBreakEven returns the monthly spend at which the target tier becomes
// cheaper than the account's current tier
func (h *BillingHandlers) GetBreakEven(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	targetTier, err := plans.ParseTier(mux.Vars(r)["tier"])
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	sub, err := h.subs.GetOrCreateSubscription(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	breakEven, err := h.engine.CalculateBreakEvenSpend(sub.Tier, targetTier)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	// +Inf means the target is never cheaper; it has no JSON encoding.
	resp := map[string]interface{}{
		"current_tier": sub.Tier,
		"target_tier":  targetTier,
		"attainable":   !math.IsInf(breakEven, 1),
	}
	if !math.IsInf(breakEven, 1) {
		resp["break_even_spend"] = breakEven
	}

	httputil.WriteSuccess(w, resp)
}

// GetLifetimeValue returns cumulative revenue attribution for the account
func (h *BillingHandlers) GetLifetimeValue(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	ltv, err := h.engine.GetAccountLifetimeValue(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, ltv)
}
