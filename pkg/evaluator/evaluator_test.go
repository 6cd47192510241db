package evaluator

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

// testRegistries builds isolated registries with a "tunnels" section and
// check family resembling a VPN tunnel counter.
func testRegistries(t *testing.T) (*section.Registry, *check.Registry) {
	t.Helper()

	sections := section.NewRegistry()
	sections.MustRegister(section.Info{
		Name: "tunnels",
		Parse: func(table section.StringTable) (interface{}, error) {
			for _, row := range table {
				if len(row) != 2 {
					return nil, fmt.Errorf("expected 2 fields, got %d", len(row))
				}
			}
			return table, nil
		},
	})

	checks := check.NewRegistry()
	checks.MustRegister(check.Info{
		Name:        "tunnels",
		ServiceName: "VPN Tunnels",
		Discover: func(parsed interface{}) []check.Service {
			if len(parsed.(section.StringTable)) == 0 {
				return nil
			}
			return []check.Service{{Item: ""}}
		},
		Check: func(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
			table := parsed.(section.StringTable)
			down := 0
			for _, row := range table {
				if row[1] == "down" {
					down++
				}
			}
			state := types.StateOK
			if down > 0 {
				state = types.StateWarn
			}
			return []types.Result{{
				State:   state,
				Summary: fmt.Sprintf("Down: %d", down),
			}}, nil
		},
	})

	return sections, checks
}

func rawTunnels(rows ...string) section.RawInput {
	chunk := section.Chunk{Name: "tunnels"}
	for _, r := range rows {
		chunk.Rows = append(chunk.Rows, strings.Fields(r))
	}
	return section.RawInput{chunk}
}

func TestDiscoverHost(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())

	services := engine.DiscoverHost(rawTunnels("t1 up", "t2 down"))
	if len(services) != 1 {
		t.Fatalf("got %d services, want 1", len(services))
	}
	if services[0].CheckName != "tunnels" || services[0].Item != "" {
		t.Errorf("service = %+v", services[0])
	}
	if services[0].ServiceName != "VPN Tunnels" {
		t.Errorf("service name = %q", services[0].ServiceName)
	}

	// Empty section data must not produce phantom services.
	if services := engine.DiscoverHost(rawTunnels()); len(services) != 0 {
		t.Errorf("empty section discovered %d services, want 0", len(services))
	}
}

func TestEvaluateHost(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())

	raw := rawTunnels("t1 up", "t2 down")
	services := engine.DiscoverHost(raw)
	results := engine.EvaluateHost(context.Background(), "fw01", raw, services)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Host != "fw01" || r.ServiceName != "VPN Tunnels" {
		t.Errorf("result identity = %+v", r)
	}
	if r.Result.State != types.StateWarn || r.Result.Summary != "Down: 1" {
		t.Errorf("result = %+v", r.Result)
	}
}

func TestEvaluateHostStaleSection(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())

	// Service known from an earlier cycle, but no tunnel data arrives now.
	known := []DiscoveredService{{CheckName: "tunnels", ServiceName: "VPN Tunnels"}}
	results := engine.EvaluateHost(context.Background(), "fw01", section.RawInput{}, known)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 stale result", len(results))
	}
	if results[0].Result.State != types.StateUnknown {
		t.Errorf("state = %v, want UNKNOWN", results[0].Result.State)
	}
	if !strings.Contains(results[0].Result.Summary, "stale") {
		t.Errorf("summary = %q, want stale marker", results[0].Result.Summary)
	}
}

func TestEvaluateHostParseFailureIsolated(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())

	// Malformed rows: parser fails, service gets a diagnostic UNKNOWN.
	raw := rawTunnels("only-one-field")
	known := []DiscoveredService{{CheckName: "tunnels", ServiceName: "VPN Tunnels"}}
	results := engine.EvaluateHost(context.Background(), "fw01", raw, known)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Result.State != types.StateUnknown {
		t.Errorf("state = %v, want UNKNOWN", results[0].Result.State)
	}
	if !strings.Contains(results[0].Result.Summary, "cannot parse") {
		t.Errorf("summary = %q, want parse diagnostic", results[0].Result.Summary)
	}
}

func TestEvaluateHostVanishedItemYieldsNothing(t *testing.T) {
	sections := section.NewRegistry()
	sections.MustRegister(section.Info{
		Name:  "ports",
		Parse: func(table section.StringTable) (interface{}, error) { return table, nil },
	})

	checks := check.NewRegistry()
	checks.MustRegister(check.Info{
		Name:        "ports",
		ServiceName: "Port %s",
		Discover: func(parsed interface{}) []check.Service {
			var services []check.Service
			for _, row := range parsed.(section.StringTable) {
				services = append(services, check.Service{Item: row[0]})
			}
			return services
		},
		Check: func(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
			for _, row := range parsed.(section.StringTable) {
				if row[0] == item {
					return []types.Result{{State: types.StateOK, Summary: "up"}}, nil
				}
			}
			return nil, nil // vanished
		},
	})

	engine := New(sections, checks, t.TempDir())
	raw := section.RawInput{{Name: "ports", Rows: [][]string{{"fc1"}}}}
	known := []DiscoveredService{
		{CheckName: "ports", Item: "fc1", ServiceName: "Port fc1"},
		{CheckName: "ports", Item: "fc2", ServiceName: "Port fc2"},
	}

	results := engine.EvaluateHost(context.Background(), "san01", raw, known)
	if len(results) != 1 {
		t.Fatalf("got %d results, want only the present item", len(results))
	}
	if results[0].Item != "fc1" {
		t.Errorf("result item = %q, want fc1", results[0].Item)
	}
}

func TestEvaluateHostInsufficientDataSkipsAndCommits(t *testing.T) {
	sections := section.NewRegistry()
	sections.MustRegister(section.Info{
		Name:  "counter",
		Parse: func(table section.StringTable) (interface{}, error) { return table, nil },
	})

	invocation := 0
	checks := check.NewRegistry()
	checks.MustRegister(check.Info{
		Name:        "counter",
		ServiceName: "Counter",
		Discover: func(parsed interface{}) []check.Service {
			return []check.Service{{Item: ""}}
		},
		Check: func(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
			invocation++
			var prev int
			if !store.Get("seen", &prev) {
				if err := store.Set("seen", invocation); err != nil {
					return nil, err
				}
				return nil, valuestore.InsufficientData("first sample stored")
			}
			return []types.Result{{
				State:   types.StateOK,
				Summary: fmt.Sprintf("previous invocation: %d", prev),
			}}, nil
		},
	})

	stateDir := t.TempDir()
	engine := New(sections, checks, stateDir)
	raw := section.RawInput{{Name: "counter", Rows: [][]string{{"x"}}}}
	known := []DiscoveredService{{CheckName: "counter", ServiceName: "Counter"}}

	// First cycle: skipped, no result, but the sample must be committed.
	results := engine.EvaluateHost(context.Background(), "h1", raw, known)
	if len(results) != 0 {
		t.Fatalf("first cycle produced %d results, want 0 (skip)", len(results))
	}

	// Second cycle observes the first cycle's staged write.
	results = engine.EvaluateHost(context.Background(), "h1", raw, known)
	if len(results) != 1 {
		t.Fatalf("second cycle produced %d results, want 1", len(results))
	}
	if results[0].Result.Summary != "previous invocation: 1" {
		t.Errorf("summary = %q", results[0].Result.Summary)
	}
}

func TestEvaluateHostCheckPanicBecomesUnknown(t *testing.T) {
	sections, _ := testRegistries(t)
	checks := check.NewRegistry()
	checks.MustRegister(check.Info{
		Name:        "tunnels",
		ServiceName: "VPN Tunnels",
		Discover: func(parsed interface{}) []check.Service {
			return []check.Service{{Item: ""}}
		},
		Check: func(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
			panic("plugin bug")
		},
	})

	engine := New(sections, checks, t.TempDir())
	raw := rawTunnels("t1 up")
	results := engine.EvaluateHost(context.Background(), "fw01", raw, engine.DiscoverHost(raw))

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Result.State != types.StateUnknown {
		t.Errorf("state = %v, want UNKNOWN", results[0].Result.State)
	}
	if !strings.Contains(results[0].Result.Summary, "panicked") {
		t.Errorf("summary = %q, want panic diagnostic", results[0].Result.Summary)
	}
}

func TestEvaluateHostRulesOverrideDefaults(t *testing.T) {
	sections := section.NewRegistry()
	sections.MustRegister(section.Info{
		Name:  "thing",
		Parse: func(table section.StringTable) (interface{}, error) { return table, nil },
	})

	checks := check.NewRegistry()
	checks.MustRegister(check.Info{
		Name:          "thing",
		ServiceName:   "Thing",
		DefaultParams: check.Parameters{"mode": "default"},
		Discover: func(parsed interface{}) []check.Service {
			return []check.Service{{Item: ""}}
		},
		Check: func(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
			mode, _ := params.String("mode")
			return []types.Result{{State: types.StateOK, Summary: "mode: " + mode}}, nil
		},
	})

	engine := New(sections, checks, t.TempDir())
	engine.SetRules([]types.RuleConfig{
		{Check: "thing", Params: map[string]interface{}{"mode": "from-rule"}},
	})

	raw := section.RawInput{{Name: "thing", Rows: [][]string{{"x"}}}}
	results := engine.EvaluateHost(context.Background(), "h1", raw, engine.DiscoverHost(raw))

	if len(results) != 1 || results[0].Result.Summary != "mode: from-rule" {
		t.Fatalf("results = %+v, want rule to override default", results)
	}
}

func TestEvaluateHostContextCancelled(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	raw := rawTunnels("t1 up")
	results := engine.EvaluateHost(ctx, "fw01", raw, engine.DiscoverHost(raw))
	if len(results) != 0 {
		t.Errorf("cancelled evaluation produced %d results, want 0", len(results))
	}
}

func TestEvaluateFleet(t *testing.T) {
	sections, checks := testRegistries(t)
	engine := New(sections, checks, t.TempDir())
	inv := NewInventory()

	inputs := map[string]section.RawInput{
		"fw01": rawTunnels("t1 up"),
		"fw02": rawTunnels("t1 down", "t2 down"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, stats := engine.EvaluateFleet(ctx, inputs, inv, 4)

	if stats.HostsEvaluated != 2 || stats.ServicesTotal != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if results["fw01"][0].Result.State != types.StateOK {
		t.Errorf("fw01 state = %v, want OK", results["fw01"][0].Result.State)
	}
	if results["fw02"][0].Result.State != types.StateWarn {
		t.Errorf("fw02 state = %v, want WARN", results["fw02"][0].Result.State)
	}

	// Second cycle without data for fw02: its service goes stale.
	delete(inputs, "fw02")
	inputs["fw02"] = section.RawInput{}
	results, _ = engine.EvaluateFleet(ctx, inputs, inv, 4)
	if got := results["fw02"]; len(got) != 1 || got[0].Result.State != types.StateUnknown {
		t.Errorf("fw02 after data loss = %+v, want stale UNKNOWN", got)
	}
}

func TestInventoryUpdate(t *testing.T) {
	inv := NewInventory()

	inv.Update("h1", []DiscoveredService{{CheckName: "a", Item: "1"}})
	inv.Update("h1", []DiscoveredService{{CheckName: "a", Item: "1"}, {CheckName: "b", Item: ""}})

	services := inv.Services("h1")
	if len(services) != 2 {
		t.Fatalf("got %d services, want 2 (no duplicates)", len(services))
	}
	if services[0].CheckName != "a" || services[1].CheckName != "b" {
		t.Errorf("services out of order: %+v", services)
	}
}
