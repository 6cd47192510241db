// Fleet Doctor - fleet-wide monitoring check evaluation daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/evaluator"
	"github.com/supporttools/fleet-doctor/pkg/exporters/prometheus"
	"github.com/supporttools/fleet-doctor/pkg/health"
	"github.com/supporttools/fleet-doctor/pkg/logger"
	"github.com/supporttools/fleet-doctor/pkg/reload"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/util"

	// Import check plugins to register their sections and checks
	_ "github.com/supporttools/fleet-doctor/pkg/checks/dbmetrics"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/ipsecvpn"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/iptables"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/lvm"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/policy"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/ports"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/uptime"
)

// Build-time variables set by goreleaser or make
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Command-line flags
var (
	configPath = flag.String("config", "/etc/fleet-doctor/config.yaml", "Path to configuration file")
	spoolDir   = flag.String("spool-dir", "", "Override spool directory")
	stateDir   = flag.String("state-dir", "", "Override state directory")
	logLevel   = flag.String("log-level", "", "Override log level (debug, info, warn, error, fatal)")
	logFormat  = flag.String("log-format", "", "Override log format (json, text)")
	once       = flag.Bool("once", false, "Run a single evaluation cycle, print results to stdout and exit")
	version    = flag.Bool("version", false, "Show version information and exit")
)

func main() {
	flag.Parse()

	if *version {
		printVersion()
		os.Exit(0)
	}

	config, err := loadConfiguration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	settings := config.Settings
	if err := logger.Initialize(settings.LogLevel, settings.LogFormat, settings.LogOutput, settings.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	logger.Infof("Fleet Doctor %s starting", Version)
	logger.WithFields(map[string]interface{}{
		"spoolDirectory": settings.SpoolDirectory,
		"stateDirectory": settings.StateDirectory,
		"cycleInterval":  settings.CycleInterval.String(),
		"checks":         len(check.RegisteredNames()),
		"sections":       len(section.RegisteredNames()),
	}).Info("Configuration loaded")

	engine := evaluator.New(section.DefaultRegistry, check.DefaultRegistry, settings.StateDirectory)
	engine.SetRules(config.Rules)
	inventory := evaluator.NewInventory()

	if *once {
		os.Exit(runOnce(engine, inventory, config))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter, healthServer, err := startServers(config)
	if err != nil {
		logger.Fatalf("Failed to start servers: %v", err)
	}

	changes, watcher, coordinator, err := startReload(ctx, config, engine)
	if err != nil {
		logger.Fatalf("Failed to start config reload: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	logger.Info("Fleet Doctor started")
	runDaemon(ctx, engine, inventory, coordinator, config, exporter, healthServer, changes, sigChan)

	cancel()
	if watcher != nil {
		watcher.Stop()
	}
	if healthServer != nil {
		if err := healthServer.Stop(); err != nil {
			logger.Warnf("Health server shutdown: %v", err)
		}
	}
	if exporter != nil {
		if err := exporter.Stop(); err != nil {
			logger.Warnf("Prometheus exporter shutdown: %v", err)
		}
	}
	logger.Info("Fleet Doctor stopped")
}

// runDaemon is the main cycle loop. It evaluates immediately on startup,
// then on every tick, and reloads the configuration when the watcher
// reports a change.
func runDaemon(
	ctx context.Context,
	engine *evaluator.Engine,
	inventory *evaluator.Inventory,
	coordinator *reload.Coordinator,
	config *types.FleetDoctorConfig,
	exporter *prometheus.Exporter,
	healthServer *health.Server,
	changes <-chan struct{},
	sigChan <-chan os.Signal,
) {
	current := config
	runCycle(ctx, engine, inventory, current, exporter, healthServer)

	ticker := time.NewTicker(current.Settings.CycleInterval)
	defer ticker.Stop()

	for {
		select {
		case sig := <-sigChan:
			logger.Infof("Received signal %v, shutting down", sig)
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			runCycle(ctx, engine, inventory, current, exporter, healthServer)

		case _, ok := <-changes:
			if !ok {
				continue
			}
			if err := coordinator.TriggerReload(ctx); err != nil {
				logger.Warnf("Configuration reload failed, keeping previous configuration: %v", err)
				continue
			}
			reloaded := coordinator.CurrentConfig()
			if reloaded == current {
				continue
			}
			if reloaded.Settings.CycleInterval != current.Settings.CycleInterval {
				ticker.Reset(reloaded.Settings.CycleInterval)
			}
			current = reloaded
		}
	}
}

// runCycle reads the spool, evaluates the fleet and hands the outcome to
// the exporters. The host timeout bounds every host's evaluation; hosts
// run concurrently, so it bounds the data-dependent part of the cycle.
func runCycle(
	ctx context.Context,
	engine *evaluator.Engine,
	inventory *evaluator.Inventory,
	config *types.FleetDoctorConfig,
	exporter *prometheus.Exporter,
	healthServer *health.Server,
) {
	start := time.Now()

	inputs, err := section.ReadSpoolDirectory(config.Settings.SpoolDirectory)
	if err != nil {
		logger.Errorf("Skipping cycle: %v", err)
		return
	}

	cycleCtx, cancel := context.WithTimeout(ctx, config.Settings.HostTimeout)
	defer cancel()

	results, stats := engine.EvaluateFleet(cycleCtx, inputs, inventory, config.Settings.MaxConcurrency)
	duration := time.Since(start)

	logger.WithFields(map[string]interface{}{
		"hosts":    stats.HostsEvaluated,
		"services": stats.ServicesTotal,
		"duration": duration.String(),
	}).Info("Evaluation cycle completed")

	if exporter != nil {
		exporter.ExportCycle(results, stats, duration)
	}
	if healthServer != nil {
		healthServer.RecordCycle(stats)
	}
}

// runOnce evaluates a single cycle and prints the results to stdout. The
// exit code is the worst state observed, matching monitoring plugin
// conventions.
func runOnce(engine *evaluator.Engine, inventory *evaluator.Inventory, config *types.FleetDoctorConfig) int {
	inputs, err := section.ReadSpoolDirectory(config.Settings.SpoolDirectory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read spool directory: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Settings.HostTimeout)
	defer cancel()

	results, stats := engine.EvaluateFleet(ctx, inputs, inventory, config.Settings.MaxConcurrency)

	hosts := make([]string, 0, len(results))
	for host := range results {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	worst := types.StateOK
	for _, host := range hosts {
		fmt.Printf("%s:\n", host)
		for _, sr := range results[host] {
			fmt.Printf("  %-7s %s - %s\n", sr.Result.State.String(), sr.ServiceName, sr.Result.Summary)
			if sr.Result.Details != "" {
				fmt.Printf("          %s\n", sr.Result.Details)
			}
			worst = types.WorstState(worst, sr.Result.State)
		}
	}
	fmt.Printf("\n%d hosts, %d services evaluated\n", stats.HostsEvaluated, stats.ServicesTotal)

	return int(worst)
}

// startServers starts the enabled Prometheus exporter and health server.
func startServers(config *types.FleetDoctorConfig) (*prometheus.Exporter, *health.Server, error) {
	var exporter *prometheus.Exporter
	if config.Exporters.Prometheus.Enabled {
		var err error
		exporter, err = prometheus.NewExporter(&config.Exporters.Prometheus, prometheus.BuildInfo{
			Version:   Version,
			GitCommit: GitCommit,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating prometheus exporter: %w", err)
		}
		if err := exporter.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting prometheus exporter: %w", err)
		}
	}

	var healthServer *health.Server
	if config.Exporters.Health.Enabled {
		var err error
		healthServer, err = health.NewServer(&health.Config{
			Enabled:     true,
			BindAddress: config.Exporters.Health.BindAddress,
			Port:        config.Exporters.Health.Port,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("creating health server: %w", err)
		}
		if err := healthServer.Start(); err != nil {
			return nil, nil, fmt.Errorf("starting health server: %w", err)
		}
	}

	return exporter, healthServer, nil
}

// startReload wires up the config file watcher and reload coordinator.
// The coordinator is always created so the daemon loop has one source of
// truth for the active configuration; the watcher only runs when reload
// is enabled.
func startReload(ctx context.Context, config *types.FleetDoctorConfig, engine *evaluator.Engine) (<-chan struct{}, *reload.ConfigWatcher, *reload.Coordinator, error) {
	callback := func(ctx context.Context, newConfig *types.FleetDoctorConfig, diff *reload.ConfigDiff) error {
		if diff.RulesChanged {
			engine.SetRules(newConfig.Rules)
		}
		if diff.ExportersChanged {
			logger.Warn("Exporter configuration changed; restart required for it to take effect")
		}
		return nil
	}

	validator := reload.NewConfigValidator(check.DefaultRegistry)
	coordinator := reload.NewCoordinator(*configPath, config, callback, validator)

	if !config.Reload.Enabled {
		return nil, nil, coordinator, nil
	}

	watcher, err := reload.NewConfigWatcher(*configPath, config.Reload.Debounce)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating config watcher: %w", err)
	}
	changes, err := watcher.Start(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("starting config watcher: %w", err)
	}

	logger.WithField("path", *configPath).Info("Configuration hot reload enabled")
	return changes, watcher, coordinator, nil
}

// loadConfiguration loads the configuration with proper precedence:
// file config or defaults, then CLI flag overrides, then re-validation.
func loadConfiguration() (*types.FleetDoctorConfig, error) {
	config, err := util.LoadConfigOrDefault(*configPath)
	if err != nil {
		return nil, err
	}

	applyFlagOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after applying overrides: %w", err)
	}
	if err := config.ValidateWithRegistry(check.DefaultRegistry); err != nil {
		return nil, err
	}

	return config, nil
}

// applyFlagOverrides applies command-line flag overrides to the configuration.
func applyFlagOverrides(config *types.FleetDoctorConfig) {
	if *spoolDir != "" {
		config.Settings.SpoolDirectory = *spoolDir
	}
	if *stateDir != "" {
		config.Settings.StateDirectory = *stateDir
	}
	if *logLevel != "" {
		config.Settings.LogLevel = *logLevel
	}
	if *logFormat != "" {
		config.Settings.LogFormat = *logFormat
	}
}

// printVersion prints version information to stdout.
func printVersion() {
	fmt.Printf("fleet-doctor %s\n", Version)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
	fmt.Printf("  Built: %s\n", BuildTime)
	fmt.Printf("  Go Version: %s\n", runtime.Version())
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
