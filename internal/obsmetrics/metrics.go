// Package obsmetrics exposes per-controller operational counters and
// histograms over HTTP for scraping, via github.com/prometheus/client_golang
// — the metrics-exposition half of the dependency the teacher's own
// control-actuator-go pulls in (there, client_golang's v1 query API reads
// FROM Prometheus; here, promauto/promhttp expose TO it).
package obsmetrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the daemon's operational instruments, all labeled by
// controller id so a single process running many controllers reports them
// separately.
type Registry struct {
	registry *prometheus.Registry

	ticks       *prometheus.CounterVec
	tickFailed  *prometheus.CounterVec
	tickSeconds *prometheus.HistogramVec
	output      *prometheus.GaugeVec
	dropped     *prometheus.CounterVec
}

// NewRegistry builds a fresh, isolated Prometheus registry (not the global
// default one) so tests can create independent instances.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,
		ticks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pidctl_controller_ticks_total",
			Help: "Number of completed supervisor ticks per controller.",
		}, []string{"controller_id"}),
		tickFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pidctl_controller_tick_failures_total",
			Help: "Number of supervisor ticks that failed to obtain a fresh measurement.",
		}, []string{"controller_id"}),
		tickSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pidctl_controller_tick_duration_seconds",
			Help:    "Wall-clock duration of a single supervisor tick.",
			Buckets: prometheus.DefBuckets,
		}, []string{"controller_id"}),
		output: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pidctl_controller_output",
			Help: "Most recent PID engine output (the raw, signed control variable).",
		}, []string{"controller_id"}),
		dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pidctl_metrics_sink_dropped_total",
			Help: "Number of time-series writes dropped because the metrics sink queue was full.",
		}, []string{"controller_id"}),
	}
}

// Handler returns the HTTP handler to mount at /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Registry) ObserveTick(controllerID string, seconds float64, output float64) {
	r.ticks.WithLabelValues(controllerID).Inc()
	r.tickSeconds.WithLabelValues(controllerID).Observe(seconds)
	r.output.WithLabelValues(controllerID).Set(output)
}

func (r *Registry) ObserveTickFailure(controllerID string) {
	r.tickFailed.WithLabelValues(controllerID).Inc()
}

func (r *Registry) ObserveDropped(controllerID string) {
	r.dropped.WithLabelValues(controllerID).Inc()
}
