package reload

import (
	"fmt"

	"github.com/supporttools/fleet-doctor/pkg/types"
)

// ConfigDiff represents the differences between two configurations.
type ConfigDiff struct {
	RulesChanged     bool
	RulesAdded       int
	RulesRemoved     int
	SettingsChanged  bool
	ExportersChanged bool
}

// ComputeConfigDiff calculates the differences between old and new configurations.
func ComputeConfigDiff(oldConfig, newConfig *types.FleetDoctorConfig) *ConfigDiff {
	diff := &ConfigDiff{}

	oldRules := ruleFingerprints(oldConfig.Rules)
	newRules := ruleFingerprints(newConfig.Rules)

	for fp := range newRules {
		if !oldRules[fp] {
			diff.RulesAdded++
		}
	}
	for fp := range oldRules {
		if !newRules[fp] {
			diff.RulesRemoved++
		}
	}
	// Reordering matters: among multiple matching rules the first wins,
	// so a pure permutation is still a change.
	diff.RulesChanged = diff.RulesAdded > 0 || diff.RulesRemoved > 0 ||
		!rulesEqualOrdered(oldConfig.Rules, newConfig.Rules)

	diff.SettingsChanged = !settingsEqual(&oldConfig.Settings, &newConfig.Settings)
	diff.ExportersChanged = !exportersEqual(&oldConfig.Exporters, &newConfig.Exporters)

	return diff
}

// HasChanges returns true if there are any configuration changes.
func (d *ConfigDiff) HasChanges() bool {
	return d.RulesChanged || d.SettingsChanged || d.ExportersChanged
}

// ruleFingerprints maps each rule to a stable textual form for set
// comparison. Params are rendered with fmt, which is sufficient for the
// primitive and list values rules carry.
func ruleFingerprints(rules []types.RuleConfig) map[string]bool {
	m := make(map[string]bool, len(rules))
	for _, r := range rules {
		m[ruleFingerprint(r)] = true
	}
	return m
}

func ruleFingerprint(r types.RuleConfig) string {
	return fmt.Sprintf("%s|%v|%v|%v", r.Check, r.Hosts, r.Items, r.Params)
}

func rulesEqualOrdered(a, b []types.RuleConfig) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if ruleFingerprint(a[i]) != ruleFingerprint(b[i]) {
			return false
		}
	}
	return true
}

// settingsEqual checks if global settings are equal.
func settingsEqual(a, b *types.GlobalSettings) bool {
	return a.LogLevel == b.LogLevel &&
		a.LogFormat == b.LogFormat &&
		a.LogOutput == b.LogOutput &&
		a.LogFile == b.LogFile &&
		a.SpoolDirectory == b.SpoolDirectory &&
		a.StateDirectory == b.StateDirectory &&
		a.CycleInterval == b.CycleInterval &&
		a.HostTimeout == b.HostTimeout &&
		a.MaxConcurrency == b.MaxConcurrency
}

// exportersEqual checks if exporter configurations are equal.
func exportersEqual(a, b *types.ExporterConfigs) bool {
	if a.Prometheus != b.Prometheus {
		return false
	}
	return a.Health == b.Health
}
