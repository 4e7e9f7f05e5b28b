// Package gate is the authorization layer between product features and the
// plan an account pays for.
//
// Checks come in throwing and non-throwing pairs. RequireFeature and
// RequireWithinLimit return typed errors carrying everything an upgrade
// prompt needs (PaywallError for tier denials, UsageLimitError for exhausted
// numeric quotas); CheckFeatureAccess and CheckUsageLimit return the same
// decision as a value.
//
// Numeric limits deny once usage reaches the limit, so a plan with
// max_campaigns_per_month=20 allows the 20th create call at usage 19 and
// denies the 21st at usage 20. The unlimited sentinel always passes.
//
// Tier lookups go through a short-TTL in-process cache; a tier change can
// take up to the TTL to be enforced, which is acceptable for entitlement
// checks that gate UI actions.
package gate
