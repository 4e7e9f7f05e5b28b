// Package gateway connects the billing engine to the payment gateway in both
// directions.
//
// Inbound, it turns webhook events into subscription mutations: checkouts
// attach gateway ids and set the purchased tier, subscription lifecycle
// events drive the status state machine, a paid invoice rolls the billing
// period and resets the period accumulators, and a deleted subscription
// downgrades the account to free. Every event id is recorded before
// processing, so a redelivered webhook is acknowledged without repeating its
// side effects.
//
// Outbound, HTTPClient covers the gateway's REST surface (customers,
// checkout and portal sessions, plan changes, cancellation flags, usage
// records), and the reporter turns a month's fee total into a metered usage
// quantity (cents, absolute-set semantics), freezing the summary once
// reported.
package gateway
