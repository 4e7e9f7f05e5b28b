// Package api provides the HTTP REST API server for the billing and feature-gating engine.
//
// # Overview
//
// This package implements the HTTP API layer that exposes subscription state,
// the ad-spend ledger, billing projections, and feature gate checks as RESTful
// endpoints, plus the payment gateway webhook receiver.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into domain-specific handler groups:
//
//   - Subscription Management: Read subscription state, change tiers, cancel and reactivate
//   - Ad-Spend Ledger: Record spend, query entries and trends, monthly summaries
//   - Billing: Current breakdown, end-of-month projection, history, upgrade analysis
//   - Checkout: Hosted checkout and billing-portal sessions on the payment gateway
//   - Feature Gates: Feature access and usage limit checks
//   - Gateway Webhooks: Payment gateway event ingestion with idempotent processing
//
// Account-scoped routes read the account from the X-Account-ID header (see
// pkg/middleware.AccountMiddleware); the webhook route is account-agnostic.
//
// # Key Types
//
// Server is the main API server that coordinates all handler groups:
//
//	server := api.NewServer(api.Dependencies{
//		Subscriptions: subs,
//		Ledger:        ledger,
//		Engine:        engine,
//		Gate:          featureGate,
//		Adapter:       adapter,
//		Logger:        logger,
//		UpgradeURL:    cfg.Billing.UpgradeURL,
//	})
//	http.ListenAndServe(":8080", server.Router())
//
// # Related Packages
//
//   - pkg/subscriptions: Subscription state machine
//   - pkg/adspend: Ad-spend ledger
//   - pkg/billing: Billing derivations
//   - pkg/gate: Feature authorization
//   - pkg/gateway: Webhook event processing
package api
