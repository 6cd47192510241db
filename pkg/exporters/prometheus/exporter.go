// Package prometheus exports evaluation outcomes and engine internals as
// Prometheus metrics on an HTTP endpoint. The exporter owns its own
// registry so that tests and embedding applications never collide with
// the global default registry.
package prometheus

import (
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/supporttools/fleet-doctor/pkg/evaluator"
	"github.com/supporttools/fleet-doctor/pkg/logger"
	"github.com/supporttools/fleet-doctor/pkg/types"
)

// BuildInfo identifies the running binary in the info metric.
type BuildInfo struct {
	Version   string
	GitCommit string
}

// Exporter publishes Fleet Doctor metrics to Prometheus.
type Exporter struct {
	config    *types.PrometheusExporterConfig
	build     BuildInfo
	registry  *prometheus.Registry
	metrics   *Metrics
	server    *http.Server
	startTime time.Time
	mu        sync.Mutex
	started   bool
}

// NewExporter creates a new Prometheus exporter with the given configuration.
func NewExporter(config *types.PrometheusExporterConfig, build BuildInfo) (*Exporter, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !config.Enabled {
		return nil, fmt.Errorf("prometheus exporter is disabled")
	}
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	registry := NewRegistry()

	metrics, err := NewMetrics(config.Namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if err := metrics.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return &Exporter{
		config:    config,
		build:     build,
		registry:  registry,
		metrics:   metrics,
		startTime: time.Now(),
	}, nil
}

// Start initializes the static metrics and starts the HTTP server.
func (e *Exporter) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("prometheus exporter already started")
	}

	e.initializeStaticMetrics()

	addr := fmt.Sprintf("0.0.0.0:%d", e.config.Port)
	server, err := startHTTPServer(addr, e.config.Path, e.registry)
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	e.server = server
	e.started = true

	logger.Infof("Prometheus exporter started on %s%s", addr, e.config.Path)
	return nil
}

// Stop gracefully stops the Prometheus exporter.
func (e *Exporter) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return nil
	}

	if err := shutdownServer(e.server, 30*time.Second); err != nil {
		logger.Warnf("Error stopping Prometheus HTTP server: %v", err)
	}

	e.started = false
	return nil
}

// ExportCycle publishes the outcome of one evaluation cycle. Per-service
// gauges are rebuilt from scratch so that vanished services disappear
// from the endpoint instead of reporting their last value forever.
func (e *Exporter) ExportCycle(results map[string][]types.ServiceResult, stats evaluator.CycleStats, cycleDuration time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	timer := prometheus.NewTimer(e.metrics.ExportDuration)
	defer timer.ObserveDuration()

	e.metrics.ServiceState.Reset()
	e.metrics.ServiceMetric.Reset()

	hosts := make([]string, 0, len(results))
	for host := range results {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	for _, host := range hosts {
		for _, sr := range results[host] {
			e.metrics.ServiceState.WithLabelValues(
				host, sr.CheckName, sr.ServiceName).Set(float64(sr.Result.State))
			e.metrics.ResultsTotal.WithLabelValues(sr.Result.State.String()).Inc()

			for _, m := range sr.Result.Metrics {
				e.metrics.ServiceMetric.WithLabelValues(
					host, sr.ServiceName, m.Name).Set(m.Value)
			}
		}
	}

	e.metrics.ServicesByState.Reset()
	for _, state := range []types.State{types.StateOK, types.StateWarn, types.StateCrit, types.StateUnknown} {
		e.metrics.ServicesByState.WithLabelValues(state.String()).Set(float64(stats.StatesByName[state]))
	}

	e.metrics.HostsEvaluated.Set(float64(stats.HostsEvaluated))
	e.metrics.ServicesTotal.Set(float64(stats.ServicesTotal))
	e.metrics.CyclesTotal.Inc()
	e.metrics.CycleDuration.Observe(cycleDuration.Seconds())
	e.metrics.UptimeSeconds.Set(time.Since(e.startTime).Seconds())
}

// Registry exposes the exporter's registry for embedding and tests.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// validateConfig validates the Prometheus exporter configuration.
func validateConfig(config *types.PrometheusExporterConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("invalid port: %d", config.Port)
	}
	if config.Path != "" && config.Path[0] != '/' {
		return fmt.Errorf("path must start with '/'")
	}
	if config.Namespace != "" && !isValidMetricName(config.Namespace) {
		return fmt.Errorf("invalid namespace: %s", config.Namespace)
	}
	return nil
}

// isValidMetricName checks if a string is a valid Prometheus metric name component.
func isValidMetricName(name string) bool {
	if len(name) == 0 {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' || r == ':') {
				return false
			}
		} else {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == ':') {
				return false
			}
		}
	}
	return true
}

// initializeStaticMetrics sets the metrics that never change at runtime.
func (e *Exporter) initializeStaticMetrics() {
	e.metrics.StartTimeSeconds.Set(float64(e.startTime.Unix()))

	version := e.build.Version
	if version == "" {
		version = "unknown"
	}
	commit := e.build.GitCommit
	if commit == "" {
		commit = "unknown"
	}
	e.metrics.Info.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
