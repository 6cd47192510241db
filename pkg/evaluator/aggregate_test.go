package evaluator

import (
	"reflect"
	"testing"

	"github.com/supporttools/fleet-doctor/pkg/types"
)

func TestAggregateEmptyIsNoResult(t *testing.T) {
	if _, ok := Aggregate(nil); ok {
		t.Error("Aggregate(nil) ok = true, want the no-result sentinel")
	}
	if _, ok := Aggregate([]types.Result{}); ok {
		t.Error("Aggregate([]) ok = true, want the no-result sentinel")
	}
}

func TestAggregateWorstState(t *testing.T) {
	tests := []struct {
		name   string
		states []types.State
		want   types.State
	}{
		{"single ok", []types.State{types.StateOK}, types.StateOK},
		{"warn wins over ok", []types.State{types.StateOK, types.StateWarn}, types.StateWarn},
		{"crit wins", []types.State{types.StateWarn, types.StateCrit, types.StateOK}, types.StateCrit},
		{"unknown wins over crit", []types.State{types.StateCrit, types.StateUnknown}, types.StateUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var results []types.Result
			for _, s := range tt.states {
				results = append(results, types.Result{State: s, Summary: s.String()})
			}

			agg, ok := Aggregate(results)
			if !ok {
				t.Fatal("Aggregate() ok = false")
			}
			if agg.State != tt.want {
				t.Errorf("state = %v, want %v", agg.State, tt.want)
			}
		})
	}
}

func TestAggregateSummaryOrder(t *testing.T) {
	agg, ok := Aggregate([]types.Result{
		{State: types.StateOK, Summary: "Total: 5"},
		{State: types.StateWarn, Summary: "Down: 2"},
		{State: types.StateOK, Details: "Down:\ntunnel-3, tunnel-4"},
	})
	if !ok {
		t.Fatal("Aggregate() ok = false")
	}

	if agg.Summary != "Total: 5, Down: 2" {
		t.Errorf("summary = %q, want summaries joined in yield order", agg.Summary)
	}
	if agg.Details != "Down:\ntunnel-3, tunnel-4" {
		t.Errorf("details = %q", agg.Details)
	}
}

func TestAggregateKeepsDuplicateMetrics(t *testing.T) {
	agg, ok := Aggregate([]types.Result{
		{Metrics: []types.Metric{{Name: "connections", Value: 1}}},
		{Metrics: []types.Metric{{Name: "connections", Value: 2}, {Name: "deadlocks", Value: 0}}},
	})
	if !ok {
		t.Fatal("Aggregate() ok = false")
	}

	var names []string
	for _, m := range agg.Metrics {
		names = append(names, m.Name)
	}
	want := []string{"connections", "connections", "deadlocks"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("metric names = %v, want %v (duplicates preserved in order)", names, want)
	}
}
