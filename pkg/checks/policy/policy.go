// Package policy monitors firewall policy synchronization on network
// security appliances. The SNMP-sourced section carries one row per
// policy slot: name, slot identifier and sync flag.
package policy

import (
	"fmt"
	"sort"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

const sysObjectID = ".1.3.6.1.2.1.1.2.0"

const policySynced = "1"

func init() {
	section.MustRegister(section.Info{
		Name:        "policy",
		Parse:       parsePolicies,
		Detect:      section.StartsWith(sysObjectID, ".1.3.6.1.4.1.11256"),
		Description: "Firewall policy slots: name, slot and sync flag per row",
	})
	check.MustRegister(check.Info{
		Name:        "policy",
		ServiceName: "Policy %s",
		Discover:    discoverPolicies,
		Check:       checkPolicy,
		Description: "Reports whether a firewall policy slot is synchronized",
	})
}

// Policy is one policy slot row.
type Policy struct {
	Name     string
	SlotName string
	Sync     string
}

func parsePolicies(table section.StringTable) (interface{}, error) {
	policies := make(map[string]Policy)
	for _, row := range table {
		if len(row) < 3 {
			continue
		}
		policies[row[0]] = Policy{Name: row[0], SlotName: row[1], Sync: row[2]}
	}
	return policies, nil
}

func discoverPolicies(parsed interface{}) []check.Service {
	policies := parsed.(map[string]Policy)
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make([]check.Service, 0, len(names))
	for _, name := range names {
		services = append(services, check.Service{Item: name})
	}
	return services
}

func checkPolicy(item string, _ check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	policies := parsed.(map[string]Policy)
	policy, ok := policies[item]
	if !ok {
		return nil, nil
	}

	state := types.StateCrit
	summary := "Policy is not synchronized"
	if policy.Sync == policySynced {
		state = types.StateOK
		summary = "Policy is synchronized"
	}

	return []types.Result{
		{State: state, Summary: summary},
		{State: types.StateOK, Summary: fmt.Sprintf("Slot Name: %s", policy.SlotName)},
	}, nil
}
