package examples_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/util"

	// Import check plugins to register them
	_ "github.com/supporttools/fleet-doctor/pkg/checks/dbmetrics"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/ipsecvpn"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/iptables"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/lvm"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/policy"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/ports"
	_ "github.com/supporttools/fleet-doctor/pkg/checks/uptime"
)

// TestExampleConfigs loads every example configuration and verifies it
// passes full validation, including that every rule references a
// registered check.
func TestExampleConfigs(t *testing.T) {
	os.Setenv("SPOOL_DIR", "/var/lib/fleet-doctor/spool")

	testCases := []struct {
		name     string
		filename string
	}{
		{name: "Minimal", filename: "minimal.yaml"},
		{name: "Production", filename: "production.yaml"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := util.LoadConfig(filepath.Join(".", tc.filename))
			if err != nil {
				t.Fatalf("Failed to load %s: %v", tc.filename, err)
			}

			if config.Kind != "FleetDoctorConfig" {
				t.Errorf("kind = %q, expected 'FleetDoctorConfig'", config.Kind)
			}
			if config.Settings.CycleInterval == 0 {
				t.Error("cycleInterval not applied")
			}
			if config.Settings.HostTimeout == 0 {
				t.Error("hostTimeout not applied")
			}

			if err := config.ValidateWithRegistry(check.DefaultRegistry); err != nil {
				t.Errorf("%s references unregistered checks: %v", tc.filename, err)
			}

			if config.Exporters.Prometheus.Enabled {
				if config.Exporters.Prometheus.Port < 1 || config.Exporters.Prometheus.Port > 65535 {
					t.Errorf("prometheus port %d out of range", config.Exporters.Prometheus.Port)
				}
			}
		})
	}
}

// TestProductionConfigDetails pins the parts of the production example
// that documentation refers to.
func TestProductionConfigDetails(t *testing.T) {
	os.Setenv("SPOOL_DIR", "/var/lib/fleet-doctor/spool")

	config, err := util.LoadConfig("production.yaml")
	if err != nil {
		t.Fatalf("Failed to load production config: %v", err)
	}

	if config.Settings.SpoolDirectory != "/var/lib/fleet-doctor/spool" {
		t.Errorf("spoolDirectory = %q, env substitution failed", config.Settings.SpoolDirectory)
	}
	if !config.Reload.Enabled {
		t.Error("hot reload should be enabled in the production example")
	}
	if len(config.Rules) == 0 {
		t.Fatal("production example has no rules")
	}

	// The host-scoped ipsecvpn rule must come before the catch-all one,
	// otherwise first-match-wins hides it.
	var sawScoped bool
	for _, rule := range config.Rules {
		if rule.Check != "ipsecvpn" {
			continue
		}
		if len(rule.Hosts) > 0 {
			sawScoped = true
		} else if !sawScoped {
			t.Error("catch-all ipsecvpn rule ordered before the host-scoped one")
		}
	}
}

// TestConfigRoundTrip saves a loaded config and loads it back.
func TestConfigRoundTrip(t *testing.T) {
	os.Setenv("SPOOL_DIR", "/var/lib/fleet-doctor/spool")

	original, err := util.LoadConfig("production.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := util.SaveConfig(original, tmpFile); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	reloaded, err := util.LoadConfig(tmpFile)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}

	if original.Kind != reloaded.Kind {
		t.Errorf("Kind mismatch: %q != %q", original.Kind, reloaded.Kind)
	}
	if len(original.Rules) != len(reloaded.Rules) {
		t.Errorf("Rule count mismatch: %d != %d", len(original.Rules), len(reloaded.Rules))
	}
	if original.Settings.CycleIntervalString != reloaded.Settings.CycleIntervalString {
		t.Errorf("cycleInterval mismatch: %q != %q",
			original.Settings.CycleIntervalString, reloaded.Settings.CycleIntervalString)
	}
}
