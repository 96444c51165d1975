// Package metrics exposes Prometheus collectors for API calls and pipeline
// outcomes. Each Registry owns its collectors so tests can use fresh ones.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for API requests.
const (
	OutcomeOK          = "ok"
	OutcomeAuth        = "auth"
	OutcomeRateLimited = "rate_limited"
	OutcomeTransport   = "transport"
	OutcomeCache       = "cache"
)

// Registry holds the tracker's collectors.
type Registry struct {
	reg *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	recordsSkipped  prometheus.Counter
	dateWarnings    prometheus.Counter
	duplicateGroups prometheus.Gauge
	eventsLoaded    prometheus.Gauge
	lastSuccessTS   prometheus.Gauge
}

// New creates a Registry with all collectors registered.
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.apiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tariff",
		Name:      "api_requests_total",
		Help:      "Events API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	r.apiDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tariff",
		Name:      "api_request_duration_seconds",
		Help:      "Events API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	r.recordsSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tariff",
		Name:      "records_skipped_total",
		Help:      "Raw records dropped as malformed during normalization",
	})
	r.dateWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tariff",
		Name:      "date_warnings_total",
		Help:      "Date fields that could not be parsed",
	})
	r.duplicateGroups = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tariff",
		Name:      "duplicate_groups",
		Help:      "Duplicate groups found by the last detector run",
	})
	r.eventsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tariff",
		Name:      "events_loaded",
		Help:      "Events held after the last pipeline run",
	})
	r.lastSuccessTS = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "tariff",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful pipeline run",
	})

	r.reg.MustRegister(
		r.apiRequests,
		r.apiDuration,
		r.recordsSkipped,
		r.dateWarnings,
		r.duplicateGroups,
		r.eventsLoaded,
		r.lastSuccessTS,
		prometheus.NewGoCollector(),
	)
	return r
}

// ObserveAPICall records one API request. A nil Registry is a no-op.
func (r *Registry) ObserveAPICall(endpoint, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	if outcome != OutcomeCache {
		r.apiDuration.WithLabelValues(endpoint).Observe(d.Seconds())
	}
}

// ObserveRun records the outcome of a pipeline run.
func (r *Registry) ObserveRun(events, skipped, dateWarnings, groups int) {
	if r == nil {
		return
	}
	r.recordsSkipped.Add(float64(skipped))
	r.dateWarnings.Add(float64(dateWarnings))
	r.duplicateGroups.Set(float64(groups))
	r.eventsLoaded.Set(float64(events))
	r.lastSuccessTS.SetToCurrentTime()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
