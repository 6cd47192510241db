// Package evaluator wires the Fleet Doctor engine stages together: raw
// input is parsed via the section registry, services are discovered,
// checks run against merged parameters with value-store access, and the
// partial results are aggregated into per-service outcomes.
//
// The evaluator owns the failure isolation policy: a parse failure,
// check error, or panic affects exactly one section or service and is
// converted into an UNKNOWN result with diagnostic text. Only registry
// misconfiguration is fatal, and that happens at startup, not here.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/supporttools/fleet-doctor/pkg/check"
	"github.com/supporttools/fleet-doctor/pkg/logger"
	"github.com/supporttools/fleet-doctor/pkg/section"
	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

// DiscoveredService identifies one service to evaluate: a check, an item
// within it, and the parameters discovery proposed.
type DiscoveredService struct {
	CheckName   string
	Item        string
	ServiceName string
	Params      check.Parameters
}

// Engine evaluates hosts against the registered sections and checks.
// The registries are read-only after startup; rules may be swapped as a
// whole by a config reload.
type Engine struct {
	sections *section.Registry
	checks   *check.Registry
	stateDir string

	mu    sync.RWMutex
	rules []types.RuleConfig
}

// New creates an evaluation engine using the given registries. stateDir
// is where per-host value stores are persisted.
func New(sections *section.Registry, checks *check.Registry, stateDir string) *Engine {
	return &Engine{
		sections: sections,
		checks:   checks,
		stateDir: stateDir,
	}
}

// SetRules replaces the parameter rules. Safe to call between cycles.
func (e *Engine) SetRules(rules []types.RuleConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

func (e *Engine) currentRules() []types.RuleConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// DiscoverHost enumerates the services present in a host's raw input.
// Discovery is a pure function of the current data: no value store, no
// prior state. Duplicate (check, item) pairs are dropped; the first wins.
func (e *Engine) DiscoverHost(raw section.RawInput) []DiscoveredService {
	parsed, _ := section.ParseAll(e.sections, raw)

	names := make([]string, 0, len(parsed))
	for name := range parsed {
		names = append(names, name)
	}
	sort.Strings(names)

	seenCheck := make(map[string]bool)
	seenService := make(map[string]bool)
	var services []DiscoveredService

	for _, name := range names {
		for _, info := range e.checks.ChecksForSection(name) {
			if seenCheck[info.Name] {
				continue
			}
			seenCheck[info.Name] = true

			value, ok := e.sectionValue(info, parsed)
			if !ok {
				continue
			}

			for _, svc := range safeDiscover(info, value) {
				key := info.Name + "\x00" + svc.Item
				if seenService[key] {
					continue
				}
				seenService[key] = true
				services = append(services, DiscoveredService{
					CheckName:   info.Name,
					Item:        svc.Item,
					ServiceName: info.ServiceDescription(svc.Item),
					Params:      svc.Params,
				})
			}
		}
	}

	return services
}

// EvaluateHost runs the given services against a host's raw input and
// returns one aggregated result per service that produced output.
//
// Services whose section is absent this cycle yield a stale UNKNOWN
// result; services whose item vanished from present data yield nothing;
// a check error or panic yields UNKNOWN with diagnostics. Value-store
// writes are committed per completed invocation only, so an abandoned
// evaluation (context cancelled) never leaves partial state.
func (e *Engine) EvaluateHost(ctx context.Context, host string, raw section.RawInput, services []DiscoveredService) []types.ServiceResult {
	parsed, failures := section.ParseAll(e.sections, raw)
	for _, f := range failures {
		logger.WithFields(map[string]interface{}{
			"host":    host,
			"section": f.Section,
		}).Warnf("Section parse failed: %v", f.Err)
	}

	store := valuestore.Load(e.stateDir, host)
	defer func() {
		if err := store.Flush(); err != nil {
			logger.WithField("host", host).Errorf("Value store flush failed: %v", err)
		}
	}()

	rules := e.currentRules()
	var results []types.ServiceResult

	for _, svc := range services {
		if ctx.Err() != nil {
			logger.WithField("host", host).Warnf(
				"Evaluation abandoned after %d of %d services: %v", len(results), len(services), ctx.Err())
			break
		}

		result, ok := e.evaluateService(host, svc, parsed, failures, rules, store)
		if ok {
			results = append(results, result)
		}
	}

	return results
}

// evaluateService runs one service through the guard, check, and
// aggregation stages. ok=false means the service produced no result this
// cycle (vanished item or insufficient data).
func (e *Engine) evaluateService(
	host string,
	svc DiscoveredService,
	parsed section.Parsed,
	failures []section.ParseFailure,
	rules []types.RuleConfig,
	store *valuestore.HostStore,
) (types.ServiceResult, bool) {
	now := time.Now()
	serviceResult := func(agg types.AggregatedResult) (types.ServiceResult, bool) {
		name := svc.ServiceName
		if name == "" {
			if info := e.checks.Get(svc.CheckName); info != nil {
				name = info.ServiceDescription(svc.Item)
			}
		}
		return types.ServiceResult{
			Host:        host,
			CheckName:   svc.CheckName,
			ServiceName: name,
			Item:        svc.Item,
			Result:      agg,
			Timestamp:   now,
		}, true
	}

	info := e.checks.Get(svc.CheckName)
	if info == nil {
		return serviceResult(types.AggregatedResult{
			State:   types.StateUnknown,
			Summary: fmt.Sprintf("check %q is not registered", svc.CheckName),
		})
	}

	// Guard stage: a known service whose section carries no data this
	// cycle is stale. This runs before the plugin body so plugins never
	// see missing sections.
	value, present := e.sectionValue(info, parsed)
	if !present {
		if f, failed := parseFailureFor(info, failures, e.sections); failed {
			return serviceResult(types.AggregatedResult{
				State:   types.StateUnknown,
				Summary: fmt.Sprintf("cannot parse section %q: %v", f.Section, f.Err),
			})
		}
		return serviceResult(types.AggregatedResult{
			State:   types.StateUnknown,
			Summary: fmt.Sprintf("no data received for section %q, service is stale", info.MainSection()),
		})
	}

	defaults := make(check.Parameters, len(info.DefaultParams)+len(svc.Params))
	for k, v := range info.DefaultParams {
		defaults[k] = v
	}
	for k, v := range svc.Params {
		defaults[k] = v
	}
	params := check.MergeParams(defaults, rules, info.Name, host, svc.Item)

	scope := store.Begin(info.Name, svc.Item)
	partials, err := safeCheck(info, svc.Item, params, value, scope)

	switch {
	case err == nil:
		scope.Commit()
	case errors.Is(err, valuestore.ErrInsufficientData):
		// Not an error: the first sample was staged and must survive so
		// the next cycle has a reference.
		scope.Commit()
		logger.WithFields(map[string]interface{}{
			"host":  host,
			"check": info.Name,
			"item":  svc.Item,
		}).Debugf("Skipping this cycle: %v", err)
		return types.ServiceResult{}, false
	default:
		scope.Discard()
		return serviceResult(types.AggregatedResult{
			State:   types.StateUnknown,
			Summary: fmt.Sprintf("check failed: %v", err),
		})
	}

	agg, ok := Aggregate(partials)
	if !ok {
		// No results: the item vanished from current data.
		return types.ServiceResult{}, false
	}
	return serviceResult(agg)
}

// sectionValue finds the first of the check's declared sections present
// in the parsed data.
func (e *Engine) sectionValue(info *check.Info, parsed section.Parsed) (interface{}, bool) {
	for _, name := range info.Sections {
		if value, ok := parsed[name]; ok {
			return value, true
		}
	}
	return nil, false
}

// parseFailureFor reports whether one of the check's sections failed to
// parse this cycle. Failures are recorded under raw section names, so
// they are mapped through the registry to logical names first.
func parseFailureFor(info *check.Info, failures []section.ParseFailure, sections *section.Registry) (section.ParseFailure, bool) {
	for _, f := range failures {
		logical := f.Section
		if si := sections.Get(f.Section); si != nil {
			logical = si.ParsedName
		}
		for _, name := range info.Sections {
			if name == logical {
				return f, true
			}
		}
	}
	return section.ParseFailure{}, false
}

// safeDiscover invokes a discovery function with panic recovery.
func safeDiscover(info *check.Info, parsed interface{}) (services []check.Service) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("check", info.Name).Errorf("Discovery panicked: %v", r)
			services = nil
		}
	}()
	return info.Discover(parsed)
}

// safeCheck invokes a check function with panic recovery.
func safeCheck(info *check.Info, item string, params check.Parameters, parsed interface{}, scope *valuestore.ScopedStore) (results []types.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("check function panicked: %v", r)
		}
	}()
	return info.Check(item, params, parsed, scope)
}
