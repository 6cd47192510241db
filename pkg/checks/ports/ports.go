// Package ports monitors SAN controller port state. Discovery enumerates
// only ports that are up at discovery time; a port that later leaves the
// section makes its service vanish rather than alarm.
package ports

import (
	"fmt"
	"sort"
	"strings"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

const portUp = "Connected"

func init() {
	section.MustRegister(section.Info{
		Name:        "san_ports",
		ParsedName:  "ports",
		Parse:       parsePorts,
		Description: "SAN controller ports: name, type and connection state per row",
	})
	check.MustRegister(check.Info{
		Name:        "ports",
		ServiceName: "Port %s",
		Discover:    discoverPorts,
		Check:       checkPort,
		Description: "Reports SAN port connection state for ports discovered as up",
	})
}

// Port is one controller port row.
type Port struct {
	Name  string
	Type  string
	State string
}

func parsePorts(table section.StringTable) (interface{}, error) {
	ports := make(map[string]Port)
	for _, row := range table {
		if len(row) < 3 {
			continue
		}
		// Port names may contain spaces; the type and state are the two
		// trailing fields.
		name := strings.Join(row[:len(row)-2], " ")
		ports[name] = Port{Name: name, Type: row[len(row)-2], State: row[len(row)-1]}
	}
	return ports, nil
}

func discoverPorts(parsed interface{}) []check.Service {
	ports := parsed.(map[string]Port)
	names := make([]string, 0, len(ports))
	for name, port := range ports {
		if port.State == portUp {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	services := make([]check.Service, 0, len(names))
	for _, name := range names {
		services = append(services, check.Service{Item: name})
	}
	return services
}

func checkPort(item string, _ check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	ports := parsed.(map[string]Port)
	port, ok := ports[item]
	if !ok {
		// Port left the section entirely: the service vanishes.
		return nil, nil
	}

	if port.State == portUp {
		return []types.Result{{
			State:   types.StateOK,
			Summary: fmt.Sprintf("%s port %s is up", port.Type, port.Name),
		}}, nil
	}
	return []types.Result{{
		State:   types.StateCrit,
		Summary: fmt.Sprintf("%s port %s is down (%s)", port.Type, port.Name, port.State),
	}}, nil
}
