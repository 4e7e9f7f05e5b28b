package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/httputil"
	"github.com/marketerhq/adgate/pkg/observability"
)

// maxWebhookBody bounds gateway payload size (1 MB)
const maxWebhookBody = 1 << 20

// WebhookHandlers handles payment gateway webhook deliveries
type WebhookHandlers struct {
	adapter *gateway.Adapter
	logger  *observability.Logger
	secret  string
}

// NewWebhookHandlers creates a new WebhookHandlers. An empty secret disables
// signature verification (local development only).
func NewWebhookHandlers(adapter *gateway.Adapter, logger *observability.Logger, secret string) *WebhookHandlers {
	return &WebhookHandlers{
		adapter: adapter,
		logger:  logger,
		secret:  secret,
	}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/webhooks/gateway", h.HandleWebhook).Methods("POST")
}

// HandleWebhook ingests one gateway event. Duplicate deliveries are
// acknowledged with 200 and produce no side effects.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteBadRequest(w, "failed to read request body")
		return
	}

	if h.secret != "" {
		signature := r.Header.Get("Gateway-Signature")
		if !h.verifySignature(body, signature) {
			h.logger.WithField("remote_addr", r.RemoteAddr).Warn("webhook signature verification failed")
			httputil.WriteUnauthorized(w, "invalid signature")
			return
		}
	}

	event, err := gateway.ParseEvent(body)
	if err != nil {
		h.logger.WithError(err).Warn("unparseable webhook payload")
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.adapter.HandleEvent(r.Context(), event); err != nil {
		// Non-2xx asks the gateway to redeliver; the adapter released the
		// event id, so the retry re-applies the side effects.
		h.logger.WithFields(map[string]interface{}{
			"event_id":   event.ID,
			"event_type": string(event.Type),
		}).WithError(err).Error("webhook processing failed")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "processed", "event_id": event.ID})
}

// verifySignature checks an HMAC-SHA256 hex digest of the raw body
func (h *WebhookHandlers) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
