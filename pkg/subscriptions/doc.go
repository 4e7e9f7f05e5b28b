// Package subscriptions manages the per-account subscription record.
//
// # Overview
//
// Every account has exactly one subscription, created lazily on first access
// and defaulting to the free tier. The record carries the tier, the gateway
// customer/subscription ids, the current billing period, and two running
// accumulators for the month's managed ad spend and platform fee.
//
// The tier, the limits snapshot, and the ad-spend rate snapshot are always
// written together. The rate snapshot prices fees at write time and is never
// recomputed retroactively when the tier later changes.
//
// # Status State Machine
//
// States: trialing, active, past_due, canceled.
//
//	trialing -> active     (tier update or payment succeeded)
//	active   -> past_due   (payment failed)
//	any      -> canceled   (subscription deleted; tier drops to free)
//	canceled -> active     (reactivation or new tier update)
//
// cancel_at_period_end is an orthogonal flag on the active state.
//
// # Usage Example
//
//	sub, err := service.GetOrCreateSubscription(ctx, accountID)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("tier=%s fee=%.2f\n", sub.Tier, sub.PlatformFeeThisMonth)
//
// # Related Packages
//
//   - pkg/plans: tier catalog and limits snapshots
//   - pkg/adspend: the ledger feeding the accumulators
//   - pkg/gateway: webhook-driven lifecycle mutations
package subscriptions
