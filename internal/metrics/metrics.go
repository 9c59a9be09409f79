// Package metrics exposes the gateway's Prometheus instrumentation.
// These gauges/counters/histograms are purely observational: no
// admission, auth, or queueing decision depends on reading them back.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the gateway's metric collectors behind a single
// handler, grounded on the teacher's dependency on
// prometheus/client_golang (present in its go.mod with no surface of its
// own in this gateway's scope until wired here).
type Registry struct {
	QueueDepth       *prometheus.GaugeVec
	Inflight         *prometheus.GaugeVec
	UpstreamLatency  *prometheus.HistogramVec
	RequestsTotal    *prometheus.CounterVec
	registry         *prometheus.Registry
}

// New builds a Registry with its own prometheus.Registry, avoiding the
// global default registry so tests can construct fresh instances per
// case, matching the rest of this gateway's no-singleton convention.
func New() *Registry {
	reg := prometheus.NewRegistry()

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_queue_depth",
		Help: "Current number of items waiting in a target's queue.",
	}, []string{"target"})

	inflight := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gateway_inflight",
		Help: "Current number of items executing against a target.",
	}, []string{"target"})

	upstreamLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_upstream_latency_ms",
		Help:    "Upstream call latency in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"target", "protocol"})

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Total proxied requests by target, protocol, and outcome.",
	}, []string{"target", "protocol", "outcome"})

	reg.MustRegister(queueDepth, inflight, upstreamLatency, requestsTotal)

	return &Registry{
		QueueDepth:      queueDepth,
		Inflight:        inflight,
		UpstreamLatency: upstreamLatency,
		RequestsTotal:   requestsTotal,
		registry:        reg,
	}
}

// Handler returns the /metrics HTTP handler serving this registry's
// collectors in the Prometheus text exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
