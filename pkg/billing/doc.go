// Package billing derives invoices-in-progress from the subscription store
// and the ad-spend ledger.
//
// Nothing here writes: the engine combines the plan catalog's pricing, the
// subscription's period accumulators, and the ledger's aggregates into
// read-only views.
//
//   - CalculateBillingBreakdown: base fee plus the accumulated platform fee
//   - ProjectBilling: forward projection from average daily spend
//   - CalculateUpgradeSavings: what this month would have cost on another plan
//   - GetBillingHistory: per-month series from persisted summaries
//   - CalculateBreakEvenSpend: spend level where a pricier base fee pays off
//   - GetAccountLifetimeValue: months active times base fee plus all-time fees
//
// Enterprise accounts carry custom pricing. Their base fee is reported as
// zero with RequiresManualInvoicing set, and they never flow through the
// upgrade-savings or break-even arithmetic.
package billing
