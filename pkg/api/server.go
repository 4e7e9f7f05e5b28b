package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/marketerhq/adgate/pkg/adspend"
	"github.com/marketerhq/adgate/pkg/billing"
	"github.com/marketerhq/adgate/pkg/gate"
	"github.com/marketerhq/adgate/pkg/gateway"
	"github.com/marketerhq/adgate/pkg/middleware"
	"github.com/marketerhq/adgate/pkg/observability"
	"github.com/marketerhq/adgate/pkg/subscriptions"
)

// Dependencies carries everything the API server needs.
type Dependencies struct {
	Subscriptions subscriptions.Service
	Ledger        adspend.Ledger
	Engine        *billing.Engine
	Gate          *gate.Gate
	Adapter       *gateway.Adapter
	Logger        *observability.Logger

	// Gateway is optional; checkout and portal routes answer 503 without
	// it, and tier mutations apply locally only.
	Gateway gateway.PaymentGatewayClient

	// UpgradeURL is embedded in paywall and usage-limit denials.
	UpgradeURL string

	// WebhookSecret enables signature verification on the webhook route
	// when non-empty.
	WebhookSecret string

	// WebhookMiddleware optionally wraps the webhook route, e.g. with the
	// dedicated webhook rate limit bucket.
	WebhookMiddleware mux.MiddlewareFunc
}

// Server represents the API server
type Server struct {
	router *mux.Router
	deps   Dependencies
	gateMW *middleware.GateMiddleware

	subscriptionHandlers *SubscriptionHandlers
	adSpendHandlers      *AdSpendHandlers
	billingHandlers      *BillingHandlers
	checkoutHandlers     *CheckoutHandlers
	webhookHandlers      *WebhookHandlers
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		gateMW: middleware.NewGateMiddleware(deps.Gate, deps.UpgradeURL),
	}

	s.subscriptionHandlers = NewSubscriptionHandlers(deps.Subscriptions, deps.Gate, deps.Gateway, deps.UpgradeURL, s.gateMW)
	s.adSpendHandlers = NewAdSpendHandlers(deps.Ledger)
	s.billingHandlers = NewBillingHandlers(deps.Engine, deps.Subscriptions)
	s.checkoutHandlers = NewCheckoutHandlers(deps.Subscriptions, deps.Gateway)
	s.webhookHandlers = NewWebhookHandlers(deps.Adapter, deps.Logger, deps.WebhookSecret)

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Webhook route is account-agnostic; the gateway signs requests itself.
	webhookRouter := s.router.NewRoute().Subrouter()
	if s.deps.WebhookMiddleware != nil {
		webhookRouter.Use(s.deps.WebhookMiddleware)
	}
	s.webhookHandlers.RegisterRoutes(webhookRouter)

	// Account-scoped API
	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.AccountMiddleware)

	s.subscriptionHandlers.RegisterRoutes(apiRouter)
	s.adSpendHandlers.RegisterRoutes(apiRouter)
	s.billingHandlers.RegisterRoutes(apiRouter)
	s.checkoutHandlers.RegisterRoutes(apiRouter)
}

// Router returns the underlying mux router for wrapping with middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
