// Package metrics holds the Prometheus collectors for loads, simulations
// and HTTP traffic on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns every epaview collector.
type Registry struct {
	registry *prometheus.Registry

	LoadsTotal         *prometheus.CounterVec
	LoadDuration       *prometheus.HistogramVec
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration *prometheus.HistogramVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimited          prometheus.Counter
}

// simulationBuckets covers sub-second toy networks up to long extended-period runs.
var simulationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

// NewRegistry creates a registry with all collectors registered.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initEngineMetrics()
	r.initHTTPMetrics()
	return r
}

func (r *Registry) initEngineMetrics() {
	r.LoadsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epaview_network_loads_total",
			Help: "Total number of network load attempts",
		},
		[]string{"engine", "status"},
	)
	r.LoadDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epaview_network_load_duration_seconds",
			Help:    "Network load latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine"},
	)
	r.SimulationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epaview_simulations_total",
			Help: "Total number of simulation runs",
		},
		[]string{"engine", "status"},
	)
	r.SimulationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epaview_simulation_duration_seconds",
			Help:    "Simulation latency in seconds",
			Buckets: simulationBuckets,
		},
		[]string{"engine"},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "epaview_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "epaview_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "epaview_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)
	r.RateLimited = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "epaview_http_rate_limited_total",
			Help: "Requests rejected by the per-client rate limiter",
		},
	)
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveLoad records a network load.
func (r *Registry) ObserveLoad(engine string, d time.Duration, err error) {
	r.LoadsTotal.WithLabelValues(engine, status(err)).Inc()
	r.LoadDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// ObserveSimulation records a simulation run.
func (r *Registry) ObserveSimulation(engine string, d time.Duration, err error) {
	r.SimulationsTotal.WithLabelValues(engine, status(err)).Inc()
	r.SimulationDuration.WithLabelValues(engine).Observe(d.Seconds())
}

// RecordHTTPRequest records an HTTP request with its duration.
func (r *Registry) RecordHTTPRequest(method, path, status string, d time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

// IncHTTPRequestsInFlight increments the in-flight gauge.
func (r *Registry) IncHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Inc() }

// DecHTTPRequestsInFlight decrements the in-flight gauge.
func (r *Registry) DecHTTPRequestsInFlight() { r.HTTPRequestsInFlight.Dec() }

// IncRateLimited counts one rejected request.
func (r *Registry) IncRateLimited() { r.RateLimited.Inc() }

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry for tests and custom exporters.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.registry }
