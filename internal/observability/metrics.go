package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Claim outcomes recorded by RecordClaim.
const (
	ClaimWon       = "won"
	ClaimConflict  = "conflict"
	ClaimForbidden = "forbidden"
	ClaimError     = "error"
)

// Webhook delivery outcomes recorded by RecordWebhookDelivery.
const (
	WebhookDelivered = "delivered"
	WebhookFailed    = "failed"
	WebhookDropped   = "dropped"
)

// Metrics holds the service's Prometheus collectors on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	claims          *prometheus.CounterVec
	releases        prometheus.Counter
	slaBreaches     prometheus.Counter
	capabilityCache *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
}

// NewMetrics registers all collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_errors_total",
			Help: "Errors returned to callers by domain error code.",
		}, []string{"route", "method", "code"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ticket_claims_total",
			Help: "Claim attempts by outcome.",
		}, []string{"outcome"}),
		releases: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_releases_total",
			Help: "Successful ticket releases.",
		}),
		slaBreaches: factory.NewCounter(prometheus.CounterOpts{
			Name: "ticket_sla_breaches_total",
			Help: "Tickets flagged as past their SLA deadline.",
		}),
		capabilityCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "capability_lookups_total",
			Help: "Capability set lookups by source.",
		}, []string{"source"}),
		webhooks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Outbound event webhooks by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(route, method, code).Inc()
}

// RecordClaim counts a claim attempt.
func (m *Metrics) RecordClaim(outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(outcome).Inc()
}

// RecordRelease counts a successful release.
func (m *Metrics) RecordRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

// RecordSLABreach counts a newly flagged breach.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.slaBreaches.Inc()
}

// RecordCapabilityLookup counts where a role's capability set was served from.
func (m *Metrics) RecordCapabilityLookup(source string) {
	if m == nil {
		return
	}
	m.capabilityCache.WithLabelValues(source).Inc()
}

// RecordWebhookDelivery counts a finished webhook delivery.
func (m *Metrics) RecordWebhookDelivery(outcome string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(outcome).Inc()
}
