// Package metrics collects request metrics with Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the request pipeline and the dev backend report to.
type Recorder interface {
	// ObserveRequest records one finished request. status is 0 when no response arrived.
	ObserveRequest(method, route, outcome string, status int, d time.Duration)
	// RecordSessionInvalidated counts forced logouts after an authorization failure.
	RecordSessionInvalidated()
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	requests     *prometheus.CounterVec
	statuses     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	invalidation prometheus.Counter
}

// NewCollector creates a Collector and registers it. namespace prefixes every metric name.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests by method, route and outcome.",
		}, []string{"method", "route", "outcome"}),
		statuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_status_total",
			Help:      "Responses by HTTP status code.",
		}, []string{"status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		invalidation: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_invalidations_total",
			Help:      "Sessions torn down after an authorization failure.",
		}),
	}

	reg.MustRegister(c.requests, c.statuses, c.latency, c.invalidation)
	return c
}

// ObserveRequest implements Recorder.
func (c *Collector) ObserveRequest(method, route, outcome string, status int, d time.Duration) {
	c.requests.WithLabelValues(method, route, outcome).Inc()
	if status > 0 {
		c.statuses.WithLabelValues(strconv.Itoa(status)).Inc()
	}
	c.latency.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordSessionInvalidated implements Recorder.
func (c *Collector) RecordSessionInvalidated() { c.invalidation.Inc() }

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveRequest(string, string, string, int, time.Duration) {}
func (Nop) RecordSessionInvalidated()                                 {}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
