// Package metrics exports sweep metrics to a Prometheus textfile and hop
// spans through OpenTelemetry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atrtrace/atr/internal/trace"
)

// Recorder holds the collectors of one trace run.
type Recorder struct {
	registry *prometheus.Registry
	hops     *prometheus.CounterVec
	elapsed  *prometheus.HistogramVec
	traces   *prometheus.CounterVec
	length   prometheus.Gauge
}

// New creates a Recorder whose collectors carry protocol as a constant
// label and registers them on a fresh registry.
func New(protocol string) *Recorder {
	labels := prometheus.Labels{"protocol": protocol}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		hops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "atr_hops_total",
				Help:        "Number of emitted hops by status.",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		elapsed: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "atr_hop_elapsed_seconds",
				Help:        "Time from probe send to classified outcome.",
				ConstLabels: labels,
				Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"status"},
		),
		traces: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "atr_traces_total",
				Help:        "Number of finished sweeps and whether they reached the destination.",
				ConstLabels: labels,
			},
			[]string{"completed"},
		),
		length: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "atr_path_length_hops",
				Help:        "Number of hops in the last report.",
				ConstLabels: labels,
			},
		),
	}
	r.registry.MustRegister(r.GetCollectors()...)
	return r
}

// GetRegistry returns the registry holding the collectors.
func (r *Recorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// GetCollectors returns all metric collectors
func (r *Recorder) GetCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.hops,
		r.elapsed,
		r.traces,
		r.length,
	}
}

// ObserveHop records one emitted hop. It is safe for concurrent use.
func (r *Recorder) ObserveHop(hop trace.HopResult) {
	status := hop.Status.String()
	r.hops.WithLabelValues(status).Inc()
	r.elapsed.WithLabelValues(status).Observe(hop.Elapsed.Seconds())
}

// ObserveTrace records a finished sweep.
func (r *Recorder) ObserveTrace(result *trace.TraceResult) {
	completed := "false"
	if result.Completed {
		completed = "true"
	}
	r.traces.WithLabelValues(completed).Inc()
	r.length.Set(float64(len(result.Hops)))
}

// WriteToTextfile writes the registry in the text exposition format, for
// node_exporter's textfile collector.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
