// Package ipsecvpn monitors IPSec VPN tunnel availability on firewall
// appliances. The section is SNMP-sourced: one row per phase-2 tunnel
// with its name and state. The check counts down tunnels, subtracts an
// operator-maintained ignore list, and applies (warn, crit) levels to
// the remainder.
package ipsecvpn

import (
	"fmt"
	"sort"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

const sysObjectID = ".1.3.6.1.2.1.1.2.0"

// tunnelDown is the wire encoding of a down tunnel: down(1), up(2).
const tunnelDown = "1"

func init() {
	section.MustRegister(section.Info{
		Name:        "ipsecvpn",
		Parse:       parseTunnels,
		Detect:      section.StartsWith(sysObjectID, ".1.3.6.1.4.1.12356"),
		Description: "IPSec phase-2 tunnel table: name and state per row",
	})
	check.MustRegister(check.Info{
		Name:        "ipsecvpn",
		ServiceName: "VPN IPSec Tunnels",
		Discover:    discoverTunnels,
		Check:       checkTunnels,
		DefaultParams: check.Parameters{
			"levels": []interface{}{1, 2},
		},
		Description: "Counts down VPN tunnels against warn/crit levels, honoring an ignore list",
	})
}

// Tunnel is one phase-2 tunnel row.
type Tunnel struct {
	Name   string
	Status string
}

// parseTunnels keeps rows with at least two fields; tunnel names may
// contain no whitespace on the wire, so the first field is the name and
// the last the state.
func parseTunnels(table section.StringTable) (interface{}, error) {
	var tunnels []Tunnel
	for _, row := range table {
		if len(row) < 2 {
			continue
		}
		tunnels = append(tunnels, Tunnel{Name: row[0], Status: row[len(row)-1]})
	}
	return tunnels, nil
}

func discoverTunnels(parsed interface{}) []check.Service {
	if len(parsed.([]Tunnel)) == 0 {
		return nil
	}
	return []check.Service{{Item: ""}}
}

func checkTunnels(_ string, params check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	tunnels := parsed.([]Tunnel)

	ignoreList := params.Strings("ignored_tunnels")
	ignored := make(map[string]bool, len(ignoreList))
	for _, name := range ignoreList {
		ignored[name] = true
	}

	var down, downIgnored []string
	for _, t := range tunnels {
		if t.Status != tunnelDown {
			continue
		}
		down = append(down, t.Name)
		if ignored[t.Name] {
			downIgnored = append(downIgnored, t.Name)
		}
	}

	numTotal := len(tunnels)
	numDown := len(down)
	numUp := numTotal - numDown
	numIgnored := len(downIgnored)
	numRelevant := numDown - numIgnored

	state := types.StateOK
	if levels, ok := params.Levels("levels"); ok {
		switch {
		case levels.Crit != nil && float64(numRelevant) >= *levels.Crit:
			state = types.StateCrit
		case levels.Warn != nil && float64(numRelevant) >= *levels.Warn:
			state = types.StateWarn
		}
	}

	results := []types.Result{{
		State: state,
		Summary: fmt.Sprintf("Total: %d, Up: %d, Down: %d, Ignored: %d",
			numTotal, numUp, numDown, numIgnored),
		Metrics: []types.Metric{{
			Name:  "active_vpn_tunnels",
			Value: float64(numUp),
			Min:   types.Float(0),
			Max:   types.Float(float64(numTotal)),
		}},
	}}

	if detail := tunnelGroups(down, downIgnored); detail != "" {
		results = append(results, types.Result{State: types.StateOK, Details: detail})
	}

	return results, nil
}

// tunnelGroups renders the long output: the affected tunnel names by
// category, in a fixed order. Names are sorted so repeated cycles render
// identically.
func tunnelGroups(down, downIgnored []string) string {
	ignored := make(map[string]bool, len(downIgnored))
	for _, name := range downIgnored {
		ignored[name] = true
	}
	var relevant []string
	for _, name := range down {
		if !ignored[name] {
			relevant = append(relevant, name)
		}
	}

	var lines []string
	for _, group := range []struct {
		title   string
		tunnels []string
	}{
		{"Down and not ignored", relevant},
		{"Down", down},
		{"Ignored", downIgnored},
	} {
		if len(group.tunnels) == 0 {
			continue
		}
		names := append([]string(nil), group.tunnels...)
		sort.Strings(names)
		lines = append(lines, group.title+":", strings.Join(names, ", "))
	}
	return strings.Join(lines, "\n")
}
