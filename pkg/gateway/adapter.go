package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/plans"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// Client is the outbound surface of the payment gateway this package needs.
// ReportMeteredUsage uses absolute-set semantics: the quantity replaces any
// previously reported value for the period rather than adding to it.
type Client interface {
	ReportMeteredUsage(ctx context.Context, gatewaySubscriptionID string, quantity int64, at time.Time) error
}

// Adapter applies inbound webhook events to the subscription store
type Adapter struct {
	db     *sql.DB
	subs   subscriptions.Service
	logger *observability.Logger
}

// NewAdapter creates a webhook adapter
func NewAdapter(db *sql.DB, subs subscriptions.Service, logger *observability.Logger) *Adapter {
	return &Adapter{db: db, subs: subs, logger: logger}
}

// markProcessed records the event id and reports whether this delivery is the
// first. Duplicates are acknowledged without side effects.
func (a *Adapter) markProcessed(ctx context.Context, event *Event) (bool, error) {
	result, err := a.db.ExecContext(ctx,
		`INSERT INTO gateway_events (id, event_type) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Type,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record event: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// unmarkProcessed releases an event id whose side effects did not apply, so
// the gateway's redelivery is processed instead of deduplicated.
func (a *Adapter) unmarkProcessed(ctx context.Context, eventID string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM gateway_events WHERE id = $1`, eventID)
	if err != nil {
		return fmt.Errorf("failed to release event id: %w", err)
	}
	return nil
}

// HandleEvent processes one webhook delivery. Redelivered events return nil
// without repeating their side effects. When a handler fails, the event id is
// released before returning so the redelivery retries the side effects.
func (a *Adapter) HandleEvent(ctx context.Context, event *Event) error {
	first, err := a.markProcessed(ctx, event)
	if err != nil {
		return err
	}
	if !first {
		a.logger.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"type":     event.Type,
		}).Info("duplicate webhook delivery ignored")
		return nil
	}

	if err := a.dispatch(ctx, event); err != nil {
		if relErr := a.unmarkProcessed(ctx, event.ID); relErr != nil {
			// the id stays claimed; redeliveries of this event will be lost
			a.logger.WithFields(map[string]interface{}{
				"event_id": event.ID,
				"type":     event.Type,
			}).WithError(relErr).Error("could not release failed event for redelivery")
		}
		return err
	}
	return nil
}

func (a *Adapter) dispatch(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return a.handleCheckoutCompleted(ctx, event.CheckoutCompleted)
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return a.handleSubscriptionChanged(ctx, event.SubscriptionChanged)
	case EventSubscriptionDeleted:
		return a.handleSubscriptionDeleted(ctx, event.SubscriptionDeleted)
	case EventInvoicePaid:
		return a.handleInvoicePaid(ctx, event.InvoicePaid)
	case EventPaymentFailed:
		return a.handlePaymentFailed(ctx, event.PaymentFailed)
	default:
		return fmt.Errorf("unhandled event type %q", event.Type)
	}
}

func (a *Adapter) handleCheckoutCompleted(ctx context.Context, payload *CheckoutCompleted) error {
	attachErr := a.subs.UpdateGatewayIDs(ctx, payload.AccountID, payload.CustomerID, payload.GatewaySubscriptionID)
	if attachErr != nil && !errors.Is(attachErr, subscriptions.ErrNotFound) {
		return fmt.Errorf("failed to attach gateway ids: %w", attachErr)
	}

	if _, err := a.subs.UpdateTier(ctx, payload.AccountID, payload.Tier, payload.GatewaySubscriptionID); err != nil {
		return fmt.Errorf("failed to set purchased tier: %w", err)
	}

	// first purchase before any free-tier access: the tier update above
	// created the record, so the customer id can be attached now
	if errors.Is(attachErr, subscriptions.ErrNotFound) {
		if err := a.subs.UpdateGatewayIDs(ctx, payload.AccountID, payload.CustomerID, payload.GatewaySubscriptionID); err != nil {
			return fmt.Errorf("failed to attach gateway ids: %w", err)
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"account_id": payload.AccountID,
		"tier":       payload.Tier,
	}).Info("checkout completed")
	return nil
}

func (a *Adapter) handleSubscriptionChanged(ctx context.Context, payload *SubscriptionChanged) error {
	if payload.Tier != "" {
		if _, err := a.subs.UpdateTier(ctx, payload.AccountID, payload.Tier, payload.GatewaySubscriptionID); err != nil {
			return fmt.Errorf("failed to update tier: %w", err)
		}
	}

	cancelAtPeriodEnd := payload.CancelAtPeriodEnd
	err := a.subs.UpdateStatus(ctx, payload.AccountID, mapGatewayStatus(payload.GatewayStatus), &subscriptions.StatusOptions{
		CancelAtPeriodEnd: &cancelAtPeriodEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}

	if !payload.PeriodStart.IsZero() && !payload.PeriodEnd.IsZero() {
		if err := a.subs.UpdateBillingPeriod(ctx, payload.AccountID, payload.PeriodStart, payload.PeriodEnd); err != nil {
			return fmt.Errorf("failed to update billing period: %w", err)
		}
	}

	return nil
}

func (a *Adapter) handleSubscriptionDeleted(ctx context.Context, payload *SubscriptionDeleted) error {
	// losing the gateway subscription means losing paid entitlements. The
	// downgrade runs first: UpdateTier promotes a canceled subscription back
	// to active, so canceling before it would leave the record active.
	if _, err := a.subs.UpdateTier(ctx, payload.AccountID, plans.TierFree, ""); err != nil {
		return fmt.Errorf("failed to downgrade to free: %w", err)
	}

	now := time.Now().UTC()
	err := a.subs.UpdateStatus(ctx, payload.AccountID, subscriptions.StatusCanceled, &subscriptions.StatusOptions{
		CanceledAt: &now,
	})
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	a.logger.WithAccount(payload.AccountID).Info("subscription deleted, account downgraded")
	return nil
}

func (a *Adapter) handleInvoicePaid(ctx context.Context, payload *InvoicePaid) error {
	if err := a.subs.UpdateStatus(ctx, payload.AccountID, subscriptions.StatusActive, nil); err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	if !payload.PeriodStart.IsZero() && !payload.PeriodEnd.IsZero() {
		if err := a.subs.UpdateBillingPeriod(ctx, payload.AccountID, payload.PeriodStart, payload.PeriodEnd); err != nil {
			return fmt.Errorf("failed to roll billing period: %w", err)
		}
	}

	if err := a.subs.ResetMonthlyAdSpend(ctx, payload.AccountID); err != nil {
		return fmt.Errorf("failed to reset accumulators: %w", err)
	}

	a.logger.WithAccount(payload.AccountID).Info("invoice paid, period rolled")
	return nil
}

func (a *Adapter) handlePaymentFailed(ctx context.Context, payload *PaymentFailed) error {
	if err := a.subs.UpdateStatus(ctx, payload.AccountID, subscriptions.StatusPastDue, nil); err != nil {
		return fmt.Errorf("failed to mark past due: %w", err)
	}
	a.logger.WithAccount(payload.AccountID).Warn("invoice payment failed")
	return nil
}
