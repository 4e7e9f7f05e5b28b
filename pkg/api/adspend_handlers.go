package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/middleware"
)

// AdSpendHandlers handles ad-spend ledger HTTP requests
type AdSpendHandlers struct {
	ledger adspend.Ledger
}

// NewAdSpendHandlers creates a new AdSpendHandlers
func NewAdSpendHandlers(ledger adspend.Ledger) *AdSpendHandlers {
	return &AdSpendHandlers{ledger: ledger}
}

// RegisterRoutes registers ad-spend routes
func (h *AdSpendHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ad-spend", h.RecordAdSpend).Methods("POST")
	router.HandleFunc("/ad-spend/batch", h.RecordAdSpendBatch).Methods("POST")
	router.HandleFunc("/ad-spend/sync", h.SyncFromMetrics).Methods("POST")
	router.HandleFunc("/ad-spend/reconcile", h.Reconcile).Methods("POST")
	router.HandleFunc("/ad-spend/entries", h.ListEntries).Methods("GET")
	router.HandleFunc("/ad-spend/trend", h.GetTrend).Methods("GET")
	router.HandleFunc("/ad-spend/current-period", h.GetCurrentPeriodSpend).Methods("GET")
	router.HandleFunc("/ad-spend/summary/{month}", h.GetMonthlySummary).Methods("GET")
	router.HandleFunc("/ad-spend/summary/{month}/recalculate", h.RecalculateSummary).Methods("POST")
}

// RecordAdSpend records a single daily spend observation
func (h *AdSpendHandlers) RecordAdSpend(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	var input adspend.EntryInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}
	if input.Spend < 0 {
		httputil.WriteValidationError(w, "spend must be non-negative")
		return
	}
	if input.Platform == "" {
		httputil.WriteValidationError(w, "platform is required")
		return
	}

	entry, err := h.ledger.RecordAdSpend(r.Context(), accountID, input)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, entry)
}

// RecordAdSpendBatch records a batch of observations in one transaction
func (h *AdSpendHandlers) RecordAdSpendBatch(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	var inputs []adspend.EntryInput
	if !httputil.ParseJSONOrError(w, r, &inputs) {
		return
	}
	for _, input := range inputs {
		if input.Spend < 0 {
			httputil.WriteValidationError(w, "spend must be non-negative")
			return
		}
		if input.Platform == "" {
			httputil.WriteValidationError(w, "platform is required")
			return
		}
	}

	result, err := h.ledger.RecordAdSpendBatch(r.Context(), accountID, inputs)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteCreated(w, result)
}

// SyncFromMetrics ingests raw platform metric rows, mapping integration types
// onto ledger platforms and dropping unusable rows
func (h *AdSpendHandlers) SyncFromMetrics(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	var metrics []adspend.PlatformMetric
	if !httputil.ParseJSONOrError(w, r, &metrics) {
		return
	}

	result, err := h.ledger.SyncFromMetrics(r.Context(), accountID, metrics)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// Reconcile compares ledger sums against the subscription accumulators and
// corrects drift
func (h *AdSpendHandlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	result, err := h.ledger.Reconcile(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, result)
}

// ListEntries returns ledger entries in a date range, optionally filtered by platform
func (h *AdSpendHandlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	now := time.Now().UTC()
	start, err := httputil.ParseQueryDate(r, "start", now.AddDate(0, -1, 0))
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	end, err := httputil.ParseQueryDate(r, "end", now)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}
	if end.Before(start) {
		httputil.WriteValidationError(w, "end must not be before start")
		return
	}

	platform := adspend.Platform(httputil.ParseQueryString(r, "platform", ""))

	entries, err := h.ledger.GetEntries(r.Context(), accountID, start, end, platform)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}

// GetTrend returns daily spend totals for the trailing N days
func (h *AdSpendHandlers) GetTrend(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	days, err := httputil.ParseQueryInt(r, "days", 30)
	if err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	trend, err := h.ledger.GetAdSpendTrend(r.Context(), accountID, days)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, trend)
}

// GetCurrentPeriodSpend returns total spend inside the current billing period
func (h *AdSpendHandlers) GetCurrentPeriodSpend(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)

	spend, err := h.ledger.GetCurrentPeriodSpend(r.Context(), accountID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]float64{"spend": spend})
}

// GetMonthlySummary returns the calendar-month summary, computing and storing
// it when absent
func (h *AdSpendHandlers) GetMonthlySummary(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)
	month := mux.Vars(r)["month"]

	if _, _, err := adspend.MonthWindow(month); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	summary, err := h.ledger.CalculateMonthlySummary(r.Context(), accountID, month)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}

// RecalculateSummary forces a recomputation, clearing the reported flag
func (h *AdSpendHandlers) RecalculateSummary(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r)
	month := mux.Vars(r)["month"]

	if _, _, err := adspend.MonthWindow(month); err != nil {
		httputil.WriteValidationError(w, err.Error())
		return
	}

	summary, err := h.ledger.RecalculateSummary(r.Context(), accountID, month)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, summary)
}
