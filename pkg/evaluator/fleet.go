package evaluator

import (
	"context"
	"sort"
	"sync"

	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
)

// Inventory is the persisted "known services" set per host. Discovery
// results are merged into it each cycle; services stay known once seen,
// which is what makes vanished sections detectable as stale. Pruning of
// long-gone services is an operator action, not engine behavior.
type Inventory struct {
	mu       sync.Mutex
	services map[string][]DiscoveredService
}

// NewInventory creates an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{services: make(map[string][]DiscoveredService)}
}

// Update merges newly discovered services for a host into the known set.
// Existing services keep their position and discovered parameters; new
// ones are appended in discovery order.
func (inv *Inventory) Update(host string, discovered []DiscoveredService) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	known := inv.services[host]
	index := make(map[string]bool, len(known))
	for _, svc := range known {
		index[svc.CheckName+"\x00"+svc.Item] = true
	}

	for _, svc := range discovered {
		key := svc.CheckName + "\x00" + svc.Item
		if !index[key] {
			index[key] = true
			known = append(known, svc)
		}
	}
	inv.services[host] = known
}

// Services returns the known services for a host.
func (inv *Inventory) Services(host string) []DiscoveredService {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	known := inv.services[host]
	out := make([]DiscoveredService, len(known))
	copy(out, known)
	return out
}

// CycleStats summarizes one fleet evaluation cycle for exporters.
type CycleStats struct {
	HostsEvaluated int
	ServicesTotal  int
	StatesByName   map[types.State]int
}

// EvaluateFleet evaluates all hosts concurrently with at most
// maxConcurrency in flight. Hosts are independent; within one host all
// services run sequentially, which serializes value-store access per key
// by construction.
//
// Each host's discovery is merged into the inventory before evaluation,
// so services from earlier cycles stay checked (and go stale) when their
// data stops arriving.
func (e *Engine) EvaluateFleet(
	ctx context.Context,
	inputs map[string]section.RawInput,
	inv *Inventory,
	maxConcurrency int,
) (map[string][]types.ServiceResult, CycleStats) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	hosts := make([]string, 0, len(inputs))
	for host := range inputs {
		hosts = append(hosts, host)
	}
	sort.Strings(hosts)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string][]types.ServiceResult, len(hosts))
		sem     = make(chan struct{}, maxConcurrency)
	)

	for _, host := range hosts {
		host := host
		raw := inputs[host]

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			inv.Update(host, e.DiscoverHost(raw))
			hostResults := e.EvaluateHost(ctx, host, raw, inv.Services(host))

			mu.Lock()
			results[host] = hostResults
			mu.Unlock()
		}()
	}
	wg.Wait()

	stats := CycleStats{
		HostsEvaluated: len(hosts),
		StatesByName:   make(map[types.State]int),
	}
	for _, hostResults := range results {
		stats.ServicesTotal += len(hostResults)
		for _, r := range hostResults {
			stats.StatesByName[r.Result.State]++
		}
	}

	return results, stats
}
