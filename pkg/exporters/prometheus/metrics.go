package prometheus

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all the Prometheus metrics published by Fleet Doctor.
type Metrics struct {
	// Counter metrics
	CyclesTotal       prometheus.Counter
	ResultsTotal      *prometheus.CounterVec
	ExportErrorsTotal *prometheus.CounterVec

	// Gauge metrics
	ServiceState     *prometheus.GaugeVec
	ServiceMetric    *prometheus.GaugeVec
	ServicesByState  *prometheus.GaugeVec
	HostsEvaluated   prometheus.Gauge
	ServicesTotal    prometheus.Gauge
	Info             *prometheus.GaugeVec
	StartTimeSeconds prometheus.Gauge
	UptimeSeconds    prometheus.Gauge

	// Histogram metrics
	CycleDuration  prometheus.Histogram
	ExportDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metric definitions.
func NewMetrics(namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "fleet_doctor"
	}

	m := &Metrics{
		CyclesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Total number of completed evaluation cycles",
			},
		),

		ResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "results_total",
				Help:      "Total number of service results produced, by state",
			},
			[]string{"state"},
		),

		ExportErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "export_errors_total",
				Help:      "Total number of export errors encountered",
			},
			[]string{"error_type"},
		),

		ServiceState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "service_state",
				Help:      "Current state per service (0=OK, 1=WARN, 2=CRIT, 3=UNKNOWN)",
			},
			[]string{"host", "check", "service"},
		),

		ServiceMetric: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "service_metric",
				Help:      "Metric values reported by checks, per service and metric name",
			},
			[]string{"host", "service", "metric"},
		),

		ServicesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_by_state",
				Help:      "Number of services in each state after the last cycle",
			},
			[]string{"state"},
		),

		HostsEvaluated: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "hosts_evaluated",
				Help:      "Number of hosts evaluated in the last cycle",
			},
		),

		ServicesTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_total",
				Help:      "Number of services that produced a result in the last cycle",
			},
		),

		Info: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "info",
				Help:      "Fleet Doctor version and build information",
			},
			[]string{"version", "git_commit", "go_version"},
		),

		StartTimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "start_time_seconds",
				Help:      "Unix timestamp when Fleet Doctor was started",
			},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Number of seconds Fleet Doctor has been running",
			},
		),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of evaluation cycles in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
		),

		ExportDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "export_duration_seconds",
				Help:      "Duration of metric export operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	return m, nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CyclesTotal,
		m.ResultsTotal,
		m.ExportErrorsTotal,
		m.ServiceState,
		m.ServiceMetric,
		m.ServicesByState,
		m.HostsEvaluated,
		m.ServicesTotal,
		m.Info,
		m.StartTimeSeconds,
		m.UptimeSeconds,
		m.CycleDuration,
		m.ExportDuration,
	}
}

// Register registers all metrics with the provided registry.
func (m *Metrics) Register(registry *prometheus.Registry) error {
	for _, collector := range m.collectors() {
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return nil
}

// Unregister removes all metrics from the provided registry.
func (m *Metrics) Unregister(registry *prometheus.Registry) {
	for _, collector := range m.collectors() {
		registry.Unregister(collector)
	}
}
