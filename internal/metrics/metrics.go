// Package metrics provides Prometheus metrics for assembly jobs.
//
// The CLI runs as a batch process, so metrics are not scraped: they are
// written once per run in the node_exporter textfile format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Job outcomes.
const (
	OutcomeDone   = "done"
	OutcomeFailed = "failed"
)

// Metrics is a private registry plus the collectors the assembler feeds.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	JobsTotal        *prometheus.CounterVec
	ClipsBuiltTotal  *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
	RenderSeconds    prometheus.Histogram
	OutputSeconds    prometheus.Histogram
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instavideo_jobs_total",
			Help: "Assembly jobs finished, by outcome.",
		}, []string{"outcome"}),
		ClipsBuiltTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instavideo_clips_built_total",
			Help: "Clips built from source media, by kind.",
		}, []string{"kind"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "instavideo_job_state_transitions_total",
			Help: "Assembly job state transitions, by entered state.",
		}, []string{"state"}),
		RenderSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "instavideo_render_seconds",
			Help:    "Wall time of the ffmpeg render step.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		OutputSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "instavideo_output_duration_seconds",
			Help:    "Planned duration of rendered videos.",
			Buckets: prometheus.LinearBuckets(10, 10, 12),
		}),
	}

	m.Registry.MustRegister(
		m.JobsTotal,
		m.ClipsBuiltTotal,
		m.StateTransitions,
		m.RenderSeconds,
		m.OutputSeconds,
	)
	return m
}

// JobFinished counts a finished job.
func (m *Metrics) JobFinished(outcome string) {
	if m == nil {
		return
	}
	m.JobsTotal.WithLabelValues(outcome).Inc()
}

// ClipBuilt counts a built clip of kind.
func (m *Metrics) ClipBuilt(kind string) {
	if m == nil {
		return
	}
	m.ClipsBuiltTotal.WithLabelValues(kind).Inc()
}

// StateEntered counts a job entering state.
func (m *Metrics) StateEntered(state string) {
	if m == nil {
		return
	}
	m.StateTransitions.WithLabelValues(state).Inc()
}

// Rendered records one successful render.
func (m *Metrics) Rendered(took time.Duration, outputSeconds float64) {
	if m == nil {
		return
	}
	m.RenderSeconds.Observe(took.Seconds())
	m.OutputSeconds.Observe(outputSeconds)
}

// WriteTextfile writes every registered metric to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
