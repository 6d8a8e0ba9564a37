package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the outreach service.
type Metrics struct {
	// Tracking events
	OpensTotal        *prometheus.CounterVec
	ClicksTotal       *prometheus.CounterVec
	UnknownTokenTotal *prometheus.CounterVec

	// Outbound sending
	SendsTotal         *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec

	// HTTP surface
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		OpensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_opens_total",
				Help: "Total number of accepted pixel-open events",
			},
			[]string{"campaign"},
		),
		ClicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_clicks_total",
				Help: "Total number of accepted link-click events",
			},
			[]string{"campaign", "marker"},
		),
		UnknownTokenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_unknown_token_total",
				Help: "Total number of tracking requests with an unresolvable token",
			},
			[]string{"campaign", "event"},
		),
		SendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_sends_total",
				Help: "Total number of outbound send attempts by outcome",
			},
			[]string{"campaign", "outcome"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_notifications_total",
				Help: "Total number of operator notifications fired",
			},
			[]string{"campaign", "kind"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outreach_http_request_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.OpensTotal,
		m.ClicksTotal,
		m.UnknownTokenTotal,
		m.SendsTotal,
		m.NotificationsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
	)

	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
