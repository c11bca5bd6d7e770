// Package metrics exposes Prometheus instruments for the zone API.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests     *prometheus.HistogramVec
	generation   prometheus.Histogram
	pointsLoaded prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	zones        *prometheus.CounterVec
}

// New registers the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "itssafe",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		generation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "itssafe",
			Name:      "zone_generation_seconds",
			Help:      "Time spent clustering and building zone polygons.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		pointsLoaded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "itssafe",
			Name:      "zone_input_points",
			Help:      "Occurrences fed into one zone generation.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itssafe",
			Name:      "tile_cache_lookups_total",
			Help:      "Tile cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		zones: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "itssafe",
			Name:      "zones_generated_total",
			Help:      "Zone polygons produced by risk level.",
		}, []string{"risk_level"}),
	}
	m.registry.MustRegister(
		m.requests, m.generation, m.pointsLoaded, m.cacheLookups, m.zones,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, status).Observe(d.Seconds())
}

// ObserveGeneration records one zone generation over points inputs.
func (m *Metrics) ObserveGeneration(points int, d time.Duration) {
	if m == nil {
		return
	}
	m.generation.Observe(d.Seconds())
	m.pointsLoaded.Observe(float64(points))
}

// CacheLookup counts a cache lookup; result is hit, miss or error.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ZoneProduced counts an emitted zone polygon.
func (m *Metrics) ZoneProduced(level string) {
	if m == nil {
		return
	}
	m.zones.WithLabelValues(level).Inc()
}
