// Package dbmetrics monitors managed database resources from a metrics
// feed. The agent ships one compact JSON document per row, one row per
// database resource; a family of subchecks evaluates storage usage,
// deadlocks and connection health per resource, each as its own service.
package dbmetrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/render"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// Metric names as they appear in the feed.
const (
	metricStorage        = "storage_percent"
	metricDeadlocks      = "deadlock"
	metricConnSuccessful = "connection_successful"
	metricConnFailed     = "connection_failed"
)

func init() {
	section.MustRegister(section.Info{
		Name:        "dbmetrics",
		Parse:       parseResources,
		Description: "Database resources with their metric samples, one JSON document per row",
	})
	check.MustRegister(check.Info{
		Name:        "dbmetrics.storage",
		ServiceName: "DB %s Storage",
		Discover:    discoverFor(metricStorage),
		Check:       checkStorage,
		DefaultParams: check.Parameters{
			"storage_percent": []interface{}{85, 95},
		},
		Description: "Checks database storage usage against percent levels",
	})
	check.MustRegister(check.Info{
		Name:        "dbmetrics.deadlocks",
		ServiceName: "DB %s Deadlocks",
		Discover:    discoverFor(metricDeadlocks),
		Check:       checkDeadlocks,
		Description: "Checks the database deadlock count against optional levels",
	})
	check.MustRegister(check.Info{
		Name:        "dbmetrics.connections",
		ServiceName: "DB %s Connections",
		Discover:    discoverFor(metricConnSuccessful),
		Check:       checkConnections,
		Description: "Reports successful connections and the failed-connection rate",
	})
}

// Resource is one database resource and its latest metric samples.
type Resource struct {
	Name    string             `json:"name"`
	Metrics map[string]float64 `json:"metrics"`
}

func parseResources(table section.StringTable) (interface{}, error) {
	resources := make(map[string]Resource)
	for _, row := range table {
		raw := strings.Join(row, " ")
		var res Resource
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return nil, fmt.Errorf("decoding resource row: %w", err)
		}
		if res.Name == "" {
			continue
		}
		resources[res.Name] = res
	}
	return resources, nil
}

// discoverFor builds a discovery function that enumerates only resources
// carrying the given metric, so a feed without deadlock data never
// creates deadlock services.
func discoverFor(metric string) check.DiscoverFunc {
	return func(parsed interface{}) []check.Service {
		resources := parsed.(map[string]Resource)
		var names []string
		for name, res := range resources {
			if _, ok := res.Metrics[metric]; ok {
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
}

func resourceMetric(parsed interface{}, item, metric string) (float64, bool) {
	res, ok := parsed.(map[string]Resource)[item]
	if !ok {
		return 0, false
	}
	value, ok := res.Metrics[metric]
	return value, ok
}

func checkStorage(item string, params check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	value, ok := resourceMetric(parsed, item, metricStorage)
	if !ok {
		return nil, nil
	}

	levels, _ := params.Levels("storage_percent")
	return []types.Result{
		check.CheckUpperLevels(value, "storage_percent", "Storage", levels, render.Percent),
	}, nil
}

func checkDeadlocks(item string, params check.Parameters, parsed interface{}, _ *valuestore.ScopedStore) ([]types.Result, error) {
	value, ok := resourceMetric(parsed, item, metricDeadlocks)
	if !ok {
		return nil, nil
	}

	levels, _ := params.Levels("deadlocks")
	return []types.Result{
		check.CheckUpperLevels(value, "deadlocks", "Deadlocks", levels, render.Count),
	}, nil
}

// checkConnections yields the successful-connection gauge first and the
// failed-connection rate second. The rate needs two samples, so the
// first invocation on a fresh value store skips the service for one
// cycle.
func checkConnections(item string, params check.Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error) {
	successful, ok := resourceMetric(parsed, item, metricConnSuccessful)
	if !ok {
		return nil, nil
	}

	results := []types.Result{{
		State:   types.StateOK,
		Summary: fmt.Sprintf("Successful connections: %s", render.Count(successful)),
		Metrics: []types.Metric{{Name: "connections", Value: successful, Min: types.Float(0)}},
	}}

	failed, ok := resourceMetric(parsed, item, metricConnFailed)
	if !ok {
		return results, nil
	}

	rate, err := store.Rate("connections_failed", timeNow(), failed)
	if err != nil {
		return nil, err
	}

	levels, _ := params.Levels("connections_failed_rate")
	results = append(results,
		check.CheckUpperLevels(rate, "connections_failed_rate", "Failed connections", levels, render.PerSecond))
	return results, nil
}
