package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPResponseTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "naano_http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_redirects_total",
			Help: "Tracked link redirects by outcome (resolved, unknown_hash)",
		},
		[]string{"outcome"},
	)

	ClickLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "naano_click_log_failures_total",
			Help: "Click events that could not be persisted",
		},
	)

	LinkCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_link_cache_total",
			Help: "Link resolution cache lookups by result",
		},
		[]string{"result"},
	)

	DwellReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_dwell_reports_total",
			Help: "Dwell-time beacons by outcome (recorded, duplicate, below_minimum)",
		},
		[]string{"outcome"},
	)

	LeadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_leads_total",
			Help: "Lead decisions by outcome and skip reason",
		},
		[]string{"outcome", "reason"},
	)

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_enrichments_total",
			Help: "Enrichment runs by resolved network type",
		},
		[]string{"network_type"},
	)

	IPLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "naano_ip_lookup_duration_seconds",
			Help:    "IP to organisation lookup latency",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 3},
		},
		[]string{"result"},
	)

	BillingOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "naano_billing_outcomes_total",
			Help: "Billing attempts by invoice status",
		},
		[]string{"status"},
	)
)
