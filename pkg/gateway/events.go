package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// EventType enumerates the webhook event types the adapter handles
type EventType string

// Handled webhook event types
const (
	EventCheckoutCompleted   EventType = "checkout.completed"
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventInvoicePaid         EventType = "invoice.paid"
	EventPaymentFailed       EventType = "invoice.payment_failed"
)

// Event is one inbound webhook delivery. Exactly one payload field is set,
// matching Type.
type Event struct {
	ID                  string
	Type                EventType
	CheckoutCompleted   *CheckoutCompleted
	SubscriptionChanged *SubscriptionChanged
	SubscriptionDeleted *SubscriptionDeleted
	InvoicePaid         *InvoicePaid
	PaymentFailed       *PaymentFailed
}

// CheckoutCompleted carries a finished checkout session
type CheckoutCompleted struct {
	AccountID             string     `json:"account_id"`
	CustomerID            string     `json:"customer_id"`
	GatewaySubscriptionID string     `json:"subscription_id"`
	Tier                  plans.Tier `json:"tier"`
}

// SubscriptionChanged carries a created or updated gateway subscription
type SubscriptionChanged struct {
	AccountID             string     `json:"account_id"`
	GatewaySubscriptionID string     `json:"subscription_id"`
	Tier                  plans.Tier `json:"tier,omitempty"`
	GatewayStatus         string     `json:"status"`
	PeriodStart           time.Time  `json:"period_start"`
	PeriodEnd             time.Time  `json:"period_end"`
	CancelAtPeriodEnd     bool       `json:"cancel_at_period_end"`
}

// SubscriptionDeleted carries a canceled gateway subscription
type SubscriptionDeleted struct {
	AccountID             string `json:"account_id"`
	GatewaySubscriptionID string `json:"subscription_id"`
}

// InvoicePaid carries a successfully settled invoice and the next period
type InvoicePaid struct {
	AccountID   string    `json:"account_id"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// PaymentFailed carries a failed invoice payment
type PaymentFailed struct {
	AccountID string `json:"account_id"`
}

// rawEvent is the wire shape of a webhook delivery
type rawEvent struct {
	ID   string          `json:"id"`
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes a webhook body into a typed Event. Unknown event types
// return an error; the HTTP layer acknowledges them without processing.
func ParseEvent(body []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("event has no id")
	}

	event := &Event{ID: raw.ID, Type: raw.Type}
	var payload interface{}
	switch raw.Type {
	case EventCheckoutCompleted:
		event.CheckoutCompleted = &CheckoutCompleted{}
		payload = event.CheckoutCompleted
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		event.SubscriptionChanged = &SubscriptionChanged{}
		payload = event.SubscriptionChanged
	case EventSubscriptionDeleted:
		event.SubscriptionDeleted = &SubscriptionDeleted{}
		payload = event.SubscriptionDeleted
	case EventInvoicePaid:
		event.InvoicePaid = &InvoicePaid{}
		payload = event.InvoicePaid
	case EventPaymentFailed:
		event.PaymentFailed = &PaymentFailed{}
		payload = event.PaymentFailed
	default:
		return nil, fmt.Errorf("unhandled event type %q", raw.Type)
	}

	if err := json.Unmarshal(raw.Data, payload); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", raw.Type, err)
	}
	return event, nil
}

// mapGatewayStatus translates the gateway's subscription status vocabulary
// into ours. Unknown statuses conservatively map to active.
func mapGatewayStatus(status string) subscriptions.Status {
	switch status {
	case "trialing":
		return subscriptions.StatusTrialing
	case "active":
		return subscriptions.StatusActive
	case "past_due", "unpaid", "incomplete":
		return subscriptions.StatusPastDue
	case "canceled", "cancelled":
		return subscriptions.StatusCanceled
	default:
		return subscriptions.StatusActive
	}
}
