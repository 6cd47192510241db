// Package types defines configuration types for Fleet Doctor.
package types

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Package-level defaults
const (
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultLogOutput         = "stdout"
	DefaultCycleInterval     = "60s"
	DefaultHostTimeout       = "110s"
	DefaultMaxConcurrency    = 8
	DefaultSpoolDirectory    = "/var/lib/fleet-doctor/spool"
	DefaultStateDirectory    = "/var/lib/fleet-doctor/state"
	DefaultPrometheusPort    = 9575
	DefaultPrometheusPath    = "/metrics"
	DefaultHealthPort        = 8080
	DefaultHealthBindAddress = "0.0.0.0"
)

// Package-level variables for validation
var (
	// Prometheus namespace validation regex
	prometheusNamespaceRegex = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)

	// Valid log levels
	validLogLevels = map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	// Valid log formats
	validLogFormats = map[string]bool{
		"json": true,
		"text": true,
	}

	// Valid log outputs
	validLogOutputs = map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}

	// MinCycleInterval is the minimum time between evaluation cycles.
	MinCycleInterval = 1 * time.Second
)

// CheckRegistryValidator validates check names referenced by rules without
// creating an import cycle between the config and check packages. It is
// implemented by check.Registry.
type CheckRegistryValidator interface {
	// IsRegistered returns true if the given check name is registered
	IsRegistered(checkName string) bool

	// RegisteredNames returns a sorted list of all registered check names
	RegisteredNames() []string
}

// FleetDoctorConfig is the top-level configuration structure.
type FleetDoctorConfig struct {
	// APIVersion of the configuration schema
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`

	// Kind of resource (always "FleetDoctorConfig")
	Kind string `json:"kind" yaml:"kind"`

	// Settings contains global configuration
	Settings GlobalSettings `json:"settings" yaml:"settings"`

	// Rules contains threshold/parameter rules applied to checks
	Rules []RuleConfig `json:"rules,omitempty" yaml:"rules,omitempty"`

	// Exporters contains exporter configurations
	Exporters ExporterConfigs `json:"exporters,omitempty" yaml:"exporters,omitempty"`

	// Reload contains configuration hot reload settings
	Reload ReloadConfig `json:"reload,omitempty" yaml:"reload,omitempty"`
}

// GlobalSettings contains global configuration settings.
type GlobalSettings struct {
	// Logging configuration
	LogLevel  string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty" yaml:"logFormat,omitempty"`
	LogOutput string `json:"logOutput,omitempty" yaml:"logOutput,omitempty"`
	LogFile   string `json:"logFile,omitempty" yaml:"logFile,omitempty"`

	// SpoolDirectory is where the fetch layer drops one raw-input file
	// per host.
	SpoolDirectory string `json:"spoolDirectory,omitempty" yaml:"spoolDirectory,omitempty"`

	// StateDirectory holds the persisted per-host value stores.
	StateDirectory string `json:"stateDirectory,omitempty" yaml:"stateDirectory,omitempty"`

	// Intervals (stored as strings, parsed to time.Duration)
	CycleIntervalString string `json:"cycleInterval,omitempty" yaml:"cycleInterval,omitempty"`
	HostTimeoutString   string `json:"hostTimeout,omitempty" yaml:"hostTimeout,omitempty"`

	// Parsed duration fields (not in JSON/YAML)
	CycleInterval time.Duration `json:"-" yaml:"-"`
	HostTimeout   time.Duration `json:"-" yaml:"-"`

	// MaxConcurrency bounds how many hosts are evaluated in parallel.
	MaxConcurrency int `json:"maxConcurrency,omitempty" yaml:"maxConcurrency,omitempty"`
}

// RuleConfig binds explicit check parameters to matching services.
// Parameters from matching rules take precedence over the check's
// built-in defaults; among several matching rules the first wins per key.
type RuleConfig struct {
	// Check is the check name the rule applies to (required).
	Check string `json:"check" yaml:"check"`

	// Hosts restricts the rule to the listed hosts. Empty matches all.
	Hosts []string `json:"hosts,omitempty" yaml:"hosts,omitempty"`

	// Items restricts the rule to the listed item identities. Empty
	// matches all items of the check.
	Items []string `json:"items,omitempty" yaml:"items,omitempty"`

	// Params holds the parameter values set by this rule.
	Params map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
}

// ExporterConfigs contains the configuration for all exporters.
type ExporterConfigs struct {
	Prometheus PrometheusExporterConfig `json:"prometheus,omitempty" yaml:"prometheus,omitempty"`
	Health     HealthServerConfig       `json:"health,omitempty" yaml:"health,omitempty"`
}

// PrometheusExporterConfig configures the Prometheus metrics endpoint.
type PrometheusExporterConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Port      int    `json:"port,omitempty" yaml:"port,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// HealthServerConfig configures the liveness/readiness HTTP server.
type HealthServerConfig struct {
	Enabled     bool   `json:"enabled" yaml:"enabled"`
	Port        int    `json:"port,omitempty" yaml:"port,omitempty"`
	BindAddress string `json:"bindAddress,omitempty" yaml:"bindAddress,omitempty"`
}

// ReloadConfig configures hot reload of the configuration file.
type ReloadConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// DebounceString is how long to wait for the file to settle before
	// reloading (stored as string, parsed to time.Duration).
	DebounceString string        `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	Debounce       time.Duration `json:"-" yaml:"-"`
}

// ApplyDefaults fills unset fields with their default values and parses
// the string duration fields.
func (c *FleetDoctorConfig) ApplyDefaults() error {
	if c.APIVersion == "" {
		c.APIVersion = "fleetdoctor.supporttools.io/v1"
	}
	if c.Kind == "" {
		c.Kind = "FleetDoctorConfig"
	}

	s := &c.Settings
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}
	if s.LogFormat == "" {
		s.LogFormat = DefaultLogFormat
	}
	if s.LogOutput == "" {
		s.LogOutput = DefaultLogOutput
	}
	if s.SpoolDirectory == "" {
		s.SpoolDirectory = DefaultSpoolDirectory
	}
	if s.StateDirectory == "" {
		s.StateDirectory = DefaultStateDirectory
	}
	if s.CycleIntervalString == "" {
		s.CycleIntervalString = DefaultCycleInterval
	}
	if s.HostTimeoutString == "" {
		s.HostTimeoutString = DefaultHostTimeout
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = DefaultMaxConcurrency
	}

	var err error
	if s.CycleInterval, err = time.ParseDuration(s.CycleIntervalString); err != nil {
		return fmt.Errorf("invalid cycleInterval %q: %w", s.CycleIntervalString, err)
	}
	if s.HostTimeout, err = time.ParseDuration(s.HostTimeoutString); err != nil {
		return fmt.Errorf("invalid hostTimeout %q: %w", s.HostTimeoutString, err)
	}

	p := &c.Exporters.Prometheus
	if p.Port == 0 {
		p.Port = DefaultPrometheusPort
	}
	if p.Path == "" {
		p.Path = DefaultPrometheusPath
	}
	if p.Namespace == "" {
		p.Namespace = "fleet_doctor"
	}

	h := &c.Exporters.Health
	if h.Port == 0 {
		h.Port = DefaultHealthPort
	}
	if h.BindAddress == "" {
		h.BindAddress = DefaultHealthBindAddress
	}

	r := &c.Reload
	if r.DebounceString == "" {
		r.DebounceString = "2s"
	}
	if r.Debounce, err = time.ParseDuration(r.DebounceString); err != nil {
		return fmt.Errorf("invalid reload debounce %q: %w", r.DebounceString, err)
	}

	return nil
}

// Validate checks the configuration for consistency. It must be called
// after ApplyDefaults.
func (c *FleetDoctorConfig) Validate() error {
	s := &c.Settings

	if !validLogLevels[s.LogLevel] {
		return fmt.Errorf("invalid logLevel %q", s.LogLevel)
	}
	if !validLogFormats[s.LogFormat] {
		return fmt.Errorf("invalid logFormat %q", s.LogFormat)
	}
	if !validLogOutputs[s.LogOutput] {
		return fmt.Errorf("invalid logOutput %q", s.LogOutput)
	}
	if s.LogOutput == "file" && s.LogFile == "" {
		return fmt.Errorf("logFile must be set when logOutput is \"file\"")
	}
	if !filepath.IsAbs(s.SpoolDirectory) {
		return fmt.Errorf("spoolDirectory must be absolute, got %q", s.SpoolDirectory)
	}
	if !filepath.IsAbs(s.StateDirectory) {
		return fmt.Errorf("stateDirectory must be absolute, got %q", s.StateDirectory)
	}
	if s.CycleInterval < MinCycleInterval {
		return fmt.Errorf("cycleInterval %v below minimum %v", s.CycleInterval, MinCycleInterval)
	}
	if s.HostTimeout <= 0 {
		return fmt.Errorf("hostTimeout must be positive, got %v", s.HostTimeout)
	}
	if s.HostTimeout >= 2*s.CycleInterval {
		return fmt.Errorf("hostTimeout (%v) must stay below twice the cycleInterval (%v)",
			s.HostTimeout, s.CycleInterval)
	}

	for i, rule := range c.Rules {
		if rule.Check == "" {
			return fmt.Errorf("rule %d: check name is required", i)
		}
	}

	if p := c.Exporters.Prometheus; p.Enabled {
		if p.Port < 1 || p.Port > 65535 {
			return fmt.Errorf("prometheus port %d out of range", p.Port)
		}
		if !prometheusNamespaceRegex.MatchString(p.Namespace) {
			return fmt.Errorf("invalid prometheus namespace %q", p.Namespace)
		}
	}
	if h := c.Exporters.Health; h.Enabled {
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("health port %d out of range", h.Port)
		}
	}

	return nil
}

// ValidateWithRegistry additionally verifies that every rule references a
// registered check name.
func (c *FleetDoctorConfig) ValidateWithRegistry(registry CheckRegistryValidator) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for i, rule := range c.Rules {
		if !registry.IsRegistered(rule.Check) {
			return fmt.Errorf("rule %d references unknown check %q, available checks: %v",
				i, rule.Check, registry.RegisteredNames())
		}
	}
	return nil
}

// SubstituteEnvVars expands ${VAR} references in string configuration
// values that are commonly templated in deployments.
func (c *FleetDoctorConfig) SubstituteEnvVars() {
	s := &c.Settings
	s.SpoolDirectory = os.ExpandEnv(s.SpoolDirectory)
	s.StateDirectory = os.ExpandEnv(s.StateDirectory)
	s.LogFile = os.ExpandEnv(s.LogFile)
}
