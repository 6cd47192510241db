// Package check defines the check plugin contract of the Fleet Doctor
// engine: discovery and check functions, their registration metadata,
// parameter handling, and generic threshold evaluation.
//
// Check plugins self-register via init(), mirroring the section registry.
// The registry is populated once at startup; the evaluation engine only
// reads it.
package check

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/supporttools/fleet-doctor/pkg/types"
	"github.com/supporttools/fleet-doctor/pkg/valuestore"
)

// Service is one discovered monitored item plus the parameters discovery
// proposed for it.
type Service struct {
	// Item identifies the monitored sub-object within its section. Empty
	// for singular entities (at most one per host). The identity must be
	// stable across cycles for the same logical entity.
	Item string

	// Params are the discovered default parameters for this service.
	Params Parameters
}

// DiscoverFunc enumerates the services present in a parsed section. It
// must be a pure function of the section value: no value-store access, no
// prior discovery state. Degenerate input must yield no phantom services.
type DiscoverFunc func(parsed interface{}) []Service

// CheckFunc evaluates one item against the parsed section and merged
// parameters, producing partial results in a fixed, deterministic order.
//
// Outcomes:
//   - results, nil: normal evaluation.
//   - nil, nil: the item is absent from the current section ("vanished").
//   - nil, err matching valuestore.ErrInsufficientData: skip this cycle.
//   - nil, other err: check failure, reported as UNKNOWN by the engine.
type CheckFunc func(item string, params Parameters, parsed interface{}, store *valuestore.ScopedStore) ([]types.Result, error)

// Info contains metadata and the plugin functions for one check type.
type Info struct {
	// Name is the unique check name, e.g. "ipsecvpn" or
	// "dbmetrics.connections".
	Name string

	// ServiceName is the service description template. A "%s" is
	// replaced by the item identity; a template without "%s" denotes a
	// singular service.
	ServiceName string

	// Sections lists the logical (parsed) section names this check
	// consumes. Defaults to the first dot-component of Name.
	Sections []string

	// Discover enumerates services (required).
	Discover DiscoverFunc

	// Check evaluates one service (required).
	Check CheckFunc

	// DefaultParams are the built-in parameter defaults, overridden by
	// matching rules.
	DefaultParams Parameters

	// Description provides human-readable documentation for this check.
	Description string
}

// MainSection returns the primary section the check consumes.
func (i *Info) MainSection() string {
	if len(i.Sections) > 0 {
		return i.Sections[0]
	}
	if idx := strings.IndexByte(i.Name, '.'); idx > 0 {
		return i.Name[:idx]
	}
	return i.Name
}

// ServiceDescription renders the service name for an item.
func (i *Info) ServiceDescription(item string) string {
	if strings.Contains(i.ServiceName, "%s") {
		return fmt.Sprintf(i.ServiceName, item)
	}
	return i.ServiceName
}

// Registry manages check registration and lookup. Safe for concurrent
// reads; registration happens at init time only.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]*Info
}

// DefaultRegistry is the process-wide check registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new empty check registry. Tests use this for
// isolation; production code uses DefaultRegistry.
func NewRegistry() *Registry {
	return &Registry{checks: make(map[string]*Info)}
}

// ErrEmptyCheckName is returned when registering a check without a name.
var ErrEmptyCheckName = errors.New("check name cannot be empty")

// ErrNilCheckFunc is returned when registering a check without discovery or check function.
var ErrNilCheckFunc = errors.New("check and discovery functions cannot be nil")

// ErrDuplicateCheck is returned when a check name is registered twice.
var ErrDuplicateCheck = errors.New("check is already registered")

// Register adds a check type to the registry.
func (r *Registry) Register(info Info) error {
	if info.Name == "" {
		return ErrEmptyCheckName
	}
	if info.Check == nil || info.Discover == nil {
		return fmt.Errorf("%w for check %q", ErrNilCheckFunc, info.Name)
	}
	if info.ServiceName == "" {
		return fmt.Errorf("check %q: service name template is required", info.Name)
	}
	if len(info.Sections) == 0 {
		info.Sections = []string{info.MainSection()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checks[info.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCheck, info.Name)
	}

	infoCopy := info
	r.checks[info.Name] = &infoCopy
	return nil
}

// MustRegister adds a check type and panics on error. Intended for use
// in init() functions.
func (r *Registry) MustRegister(info Info) {
	if err := r.Register(info); err != nil {
		panic(fmt.Sprintf("check registration failed: %v", err))
	}
}

// Get returns a copy of the registration info for a check name, or nil.
func (r *Registry) Get(name string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.checks[name]
	if !exists {
		return nil
	}
	infoCopy := *info
	return &infoCopy
}

// IsRegistered checks whether a check name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.checks[name]
	return exists
}

// RegisteredNames returns a sorted list of all registered check names.
func (r *Registry) RegisteredNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChecksForSection returns the checks consuming the given logical section
// name, sorted by check name for deterministic evaluation order.
func (r *Registry) ChecksForSection(parsedName string) []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []*Info
	for _, info := range r.checks {
		for _, s := range info.Sections {
			if s == parsedName {
				infoCopy := *info
				infos = append(infos, &infoCopy)
				break
			}
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Package-level convenience functions operating on the DefaultRegistry.

// Register registers a check type with the default registry.
func Register(info Info) error { return DefaultRegistry.Register(info) }

// MustRegister registers a check type with the default registry and
// panics on error.
func MustRegister(info Info) { DefaultRegistry.MustRegister(info) }

// Get returns check info from the default registry.
func Get(name string) *Info { return DefaultRegistry.Get(name) }

// IsRegistered checks a check name against the default registry.
func IsRegistered(name string) bool { return DefaultRegistry.IsRegistered(name) }

// RegisteredNames lists the default registry's check names.
func RegisteredNames() []string { return DefaultRegistry.RegisteredNames() }
