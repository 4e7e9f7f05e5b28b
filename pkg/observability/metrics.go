package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Ad-spend ledger metrics
	AdSpendEntriesTotal    *prometheus.CounterVec
	AdSpendRecordedDollars *prometheus.CounterVec
	PlatformFeesDollars    *prometheus.CounterVec
	ReconcileDriftTotal    *prometheus.CounterVec

	// Feature gate metrics
	GateChecksTotal     *prometheus.CounterVec
	GateDenialsTotal    *prometheus.CounterVec
	UsageLimitHitsTotal *prometheus.CounterVec

	// Gateway webhook metrics
	WebhookEventsTotal     *prometheus.CounterVec
	WebhookDuplicatesTotal prometheus.Counter
	UsageReportsTotal      *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Business metrics
	SubscriptionsByTier *prometheus.GaugeVec
	ActiveAccountsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPRequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adgate_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adgate_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		// Ad-spend ledger metrics
		AdSpendEntriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_ad_spend_entries_total",
				Help: "Total number of ad spend entries recorded",
			},
			[]string{"platform"},
		),
		AdSpendRecordedDollars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_ad_spend_recorded_dollars",
				Help: "Total ad spend recorded in dollars",
			},
			[]string{"platform"},
		),
		PlatformFeesDollars: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_platform_fees_dollars",
				Help: "Total platform fees accrued in dollars",
			},
			[]string{"tier"},
		),
		ReconcileDriftTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_reconcile_drift_total",
				Help: "Total number of reconciliation runs that corrected drift",
			},
			[]string{"kind"},
		),

		// Feature gate metrics
		GateChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_gate_checks_total",
				Help: "Total number of feature gate checks",
			},
			[]string{"feature", "result"},
		),
		GateDenialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_gate_denials_total",
				Help: "Total number of paywall denials",
			},
			[]string{"feature", "current_tier", "required_tier"},
		),
		UsageLimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_usage_limit_hits_total",
				Help: "Total number of usage limit denials",
			},
			[]string{"limit_key", "tier"},
		),

		// Gateway webhook metrics
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_webhook_events_total",
				Help: "Total number of gateway webhook events processed",
			},
			[]string{"event_type", "status"},
		),
		WebhookDuplicatesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "adgate_webhook_duplicates_total",
				Help: "Total number of duplicate webhook deliveries acknowledged",
			},
		),
		UsageReportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_usage_reports_total",
				Help: "Total number of metered usage reports to the payment gateway",
			},
			[]string{"status"},
		),

		// Cache metrics
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adgate_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Database metrics
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adgate_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adgate_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adgate_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adgate_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		// Business metrics
		SubscriptionsByTier: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adgate_subscriptions_by_tier",
				Help: "Number of subscriptions per tier",
			},
			[]string{"tier"},
		),
		ActiveAccountsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adgate_active_accounts_total",
				Help: "Total number of accounts with an active subscription",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.AdSpendEntriesTotal,
		m.AdSpendRecordedDollars,
		m.PlatformFeesDollars,
		m.ReconcileDriftTotal,
		m.GateChecksTotal,
		m.GateDenialsTotal,
		m.UsageLimitHitsTotal,
		m.WebhookEventsTotal,
		m.WebhookDuplicatesTotal,
		m.UsageReportsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.SubscriptionsByTier,
		m.ActiveAccountsTotal,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status and size
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			// Record request size
			if r.ContentLength > 0 {
				metrics.HTTPRequestSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(r.ContentLength))
			}

			// Serve the request
			next.ServeHTTP(rw, r)

			// Record metrics
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, r.URL.Path).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
