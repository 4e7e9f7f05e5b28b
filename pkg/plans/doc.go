// Package plans defines the subscription plan catalog for adgate.
//
// # Overview
//
// This package is pure and I/O-free: it defines the ordered plan tiers, their
// feature limits and pricing, the ad-spend fee rate per tier, and the feature
// definitions used by the gate package for entitlement checks.
//
// # Plan Tiers
//
// Free:
//   - $0/month, no ad-spend fee
//   - 5 campaigns/month, 50 assets, 1 team member, 1 integration
//
// Starter ($99/month):
//   - 2% of managed ad spend
//   - 20 campaigns/month, 500 assets, 3 team members, 3 integrations
//
// Pro ($299/month):
//   - 2.5% of managed ad spend
//   - Unlimited campaigns, 2000 assets, 10 team members, 10 integrations
//
// Enterprise (custom pricing):
//   - 1.5% of managed ad spend (volume rate)
//   - Unlimited everything
//
// A numeric limit of -1 means unlimited. A price of -1 means custom pricing
// (contact sales).
//
// # Usage Example
//
// Fee calculation:
//
//	fee := plans.CalculateAdSpendFee(1000, plans.TierStarter) // 20.00
//
// Entitlement comparison:
//
//	if plans.IsTierHigherOrEqual(sub.Tier, plans.TierPro) {
//		// account may use pro features
//	}
//
// # Related Packages
//
//   - pkg/subscriptions: per-account subscription records
//   - pkg/gate: feature and usage-limit enforcement
package plans
