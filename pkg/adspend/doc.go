// Package adspend is the ledger of managed advertising spend.
//
// # Overview
//
// Every sync from a connected ad platform lands here as an AdSpendEntry,
// keyed by the deterministic composite id
//
//	{accountID}_{platform}_{YYYY-MM-DD}_{integrationID}
//
// so re-syncing a day's numbers merges into the existing entry instead of
// appending a duplicate. The platform fee for an entry is priced at write
// time from the subscription's snapshotted rate and never recomputed.
//
// Upserts are delta-corrected: when a key is re-synced with a different
// amount, only the difference between the new and old values is applied to
// the subscription's period accumulators, so repeated syncs of the same data
// leave both the ledger and the running totals unchanged.
//
// The ledger produces three distinct aggregation windows:
//
//   - CalculateMonthlySummary: calendar month, persisted as an AdSpendSummary
//   - GetCurrentPeriodSpend: the subscription's rolling billing period
//   - GetTotalAdSpend / GetTotalFees: all-time sums
//
// A summary becomes immutable once it has been reported to the payment
// gateway; corrections go through RecalculateSummary explicitly.
//
// # Usage
//
//	ledger := adspend.NewPostgresLedger(db, subscriptionService)
//	result, err := ledger.RecordAdSpend(ctx, accountID, adspend.EntryInput{
//		Platform:      adspend.PlatformMeta,
//		IntegrationID: "int_42",
//		Spend:         1000,
//		Date:          time.Now(),
//	})
//
// Related packages:
//   - pkg/subscriptions: owns the period accumulators this ledger feeds
//   - pkg/billing: derives projections and history from these aggregates
//   - pkg/gateway: reports monthly summaries as metered usage
package adspend
