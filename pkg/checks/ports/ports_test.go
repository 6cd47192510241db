package ports

import (
	"reflect"
	"testing"

	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
)

func sampleTable() section.StringTable {
	return section.StringTable{
		{"Server", "iSCSI", "Port", "1", "iSCSI", "Connected"},
		{"Server", "iSCSI", "Port", "2", "iSCSI", "Disconnected"},
		{"FC", "Port", "1", "FibreChannel", "Connected"},
	}
}

func mustParse(t *testing.T, table section.StringTable) map[string]Port {
	t.Helper()
	parsed, err := parsePorts(table)
	if err != nil {
		t.Fatalf("parsePorts() error = %v", err)
	}
	return parsed.(map[string]Port)
}

func TestParsePorts(t *testing.T) {
	ports := mustParse(t, sampleTable())

	if len(ports) != 3 {
		t.Fatalf("got %d ports, want 3", len(ports))
	}
	port, ok := ports["Server iSCSI Port 2"]
	if !ok {
		t.Fatal("multi-word port name not reassembled")
	}
	if port.Type != "iSCSI" || port.State != "Disconnected" {
		t.Errorf("port = %+v", port)
	}
}

func TestDiscoverPortsOnlyUp(t *testing.T) {
	services := discoverPorts(mustParse(t, sampleTable()))

	var items []string
	for _, s := range services {
		items = append(items, s.Item)
	}
	want := []string{"FC Port 1", "Server iSCSI Port 1"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %v, want only up ports, sorted: %v", items, want)
	}
}

func TestCheckPort(t *testing.T) {
	ports := mustParse(t, sampleTable())

	results, err := checkPort("Server iSCSI Port 1", nil, ports, nil)
	if err != nil {
		t.Fatalf("checkPort() error = %v", err)
	}
	if len(results) != 1 || results[0].State != types.StateOK {
		t.Fatalf("up port = %+v, want single OK", results)
	}
	if results[0].Summary != "iSCSI port Server iSCSI Port 1 is up" {
		t.Errorf("summary = %q", results[0].Summary)
	}

	results, err = checkPort("Server iSCSI Port 2", nil, ports, nil)
	if err != nil {
		t.Fatalf("checkPort() error = %v", err)
	}
	if len(results) != 1 || results[0].State != types.StateCrit {
		t.Fatalf("down port = %+v, want single CRIT", results)
	}
	if results[0].Summary != "iSCSI port Server iSCSI Port 2 is down (Disconnected)" {
		t.Errorf("summary = %q", results[0].Summary)
	}
}

func TestCheckPortVanished(t *testing.T) {
	results, err := checkPort("gone", nil, mustParse(t, sampleTable()), nil)
	if err != nil {
		t.Fatalf("checkPort() error = %v", err)
	}
	if results != nil {
		t.Errorf("results = %+v, want none for a vanished port", results)
	}
}

func TestSectionRename(t *testing.T) {
	info := section.Get("san_ports")
	if info == nil {
		t.Fatal("section not registered")
	}
	if info.ParsedName != "ports" {
		t.Errorf("ParsedName = %q, want %q", info.ParsedName, "ports")
	}
}
