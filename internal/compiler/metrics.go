package compiler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ia-eknorr/stoker-bundler/internal/builder"
)

// Metrics holds Prometheus metrics for compilations.
// It uses a standalone registry; the CLI writes it out as a textfile.
type Metrics struct {
	registry *prometheus.Registry

	BuilderDuration  *prometheus.HistogramVec
	RecordsTotal     *prometheus.CounterVec
	BuildsTotal      *prometheus.CounterVec
	BundlesTotal     *prometheus.CounterVec
	IgnoredOverrides prometheus.Counter
	LastBuildSuccess prometheus.Gauge
}

// NewMetrics creates and registers all compiler metrics on a standalone registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		BuilderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "builder_duration_seconds",
				Help:      "Duration of a single builder run in seconds.",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"builder", "mode"},
		),
		RecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "records_total",
				Help:      "Total number of entity records emitted.",
			},
			[]string{"type", "mode"},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "builds_total",
				Help:      "Total number of compilations.",
			},
			[]string{"result"},
		),
		BundlesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "bundles_total",
				Help:      "Total number of bundles produced.",
			},
			[]string{"kind"},
		),
		IgnoredOverrides: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "ignored_overrides_total",
				Help:      "Total number of invalid id or guid overrides that were ignored.",
			},
		),
		LastBuildSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "stoker",
				Subsystem: "bundler",
				Name:      "last_build_success",
				Help:      "Whether the last compilation was successful (1=success, 0=error).",
			},
		),
	}

	reg.MustRegister(
		m.BuilderDuration,
		m.RecordsTotal,
		m.BuildsTotal,
		m.BundlesTotal,
		m.IgnoredOverrides,
		m.LastBuildSuccess,
	)

	return m
}

// observe records one builder run.
func (m *Metrics) observe(name string, mode builder.Mode, elapsed time.Duration, records []builder.Record, err error) {
	m.BuilderDuration.WithLabelValues(name, mode.String()).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	for _, r := range records {
		m.RecordsTotal.WithLabelValues(r.Type, mode.String()).Inc()
	}
}

// buildFinished records the outcome of a whole compilation.
func (m *Metrics) buildFinished(err error) {
	if err != nil {
		m.BuildsTotal.WithLabelValues("error").Inc()
		m.LastBuildSuccess.Set(0)
		return
	}
	m.BuildsTotal.WithLabelValues("success").Inc()
	m.LastBuildSuccess.Set(1)
}

// WriteTextfile writes the current metric values in the Prometheus text
// format, for node_exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
