// Section registry: maps raw section names to parse functions and
// metadata. Modeled after the pluggable monitor registry pattern:
// sections self-register via init() and the engine looks them up at
// evaluation time. The registry is populated once at startup and is
// effectively immutable afterwards.
package section

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ParseFunc transforms the merged rows of one section into a typed value.
// It must be pure: identical input yields an equal value, no ambient
// state. Returning an error marks the section as unparseable this cycle
// without affecting sibling sections.
type ParseFunc func(table StringTable) (interface{}, error)

// Info contains metadata and the parse function for one section type.
type Info struct {
	// Name is the raw section name as it appears in the input (required,
	// unique).
	Name string

	// ParsedName is the logical name the parsed value is published
	// under. Defaults to Name. Several sections may publish under the
	// same parsed name (renaming), enabling one check family to consume
	// data from different sources; at most one of them is expected to
	// carry data per host.
	ParsedName string

	// Parse is the parse function (required).
	Parse ParseFunc

	// Detect is the optional detection predicate for protocol-probed
	// sources. Nil means agent-sourced.
	Detect DetectFunc

	// Description provides human-readable documentation for this section.
	Description string
}

// Registry manages section registration and lookup. All methods are safe
// for concurrent use; registration is expected to happen at init time
// only.
type Registry struct {
	mu       sync.RWMutex
	sections map[string]*Info
}

// DefaultRegistry is the process-wide section registry. Sections register
// with it from their package init(); tests that need isolation construct
// their own registry with NewRegistry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new empty section registry.
func NewRegistry() *Registry {
	return &Registry{sections: make(map[string]*Info)}
}

// ErrEmptySectionName is returned when registering a section without a name.
var ErrEmptySectionName = errors.New("section name cannot be empty")

// ErrNilParseFunc is returned when registering a section without a parse function.
var ErrNilParseFunc = errors.New("section parse function cannot be nil")

// ErrDuplicateSection is returned when a section name is registered twice.
var ErrDuplicateSection = errors.New("section is already registered")

// Register adds a section type to the registry.
func (r *Registry) Register(info Info) error {
	if info.Name == "" {
		return ErrEmptySectionName
	}
	if info.Parse == nil {
		return fmt.Errorf("%w for section %q", ErrNilParseFunc, info.Name)
	}
	if info.ParsedName == "" {
		info.ParsedName = info.Name
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sections[info.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSection, info.Name)
	}

	infoCopy := info
	r.sections[info.Name] = &infoCopy
	return nil
}

// MustRegister adds a section type and panics on error. Intended for use
// in init() functions where a failure is a programming error.
func (r *Registry) MustRegister(info Info) {
	if err := r.Register(info); err != nil {
		panic(fmt.Sprintf("section registration failed: %v", err))
	}
}

// Get returns a copy of the registration info for a section name, or nil
// if unregistered.
func (r *Registry) Get(name string) *Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.sections[name]
	if !exists {
		return nil
	}
	infoCopy := *info
	return &infoCopy
}

// IsRegistered checks whether a section name is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.sections[name]
	return exists
}

// RegisteredNames returns a sorted list of all registered section names.
func (r *Registry) RegisteredNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sections))
	for name := range r.sections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Package-level convenience functions operating on the DefaultRegistry.

// Register registers a section type with the default registry.
func Register(info Info) error { return DefaultRegistry.Register(info) }

// MustRegister registers a section type with the default registry and
// panics on error.
func MustRegister(info Info) { DefaultRegistry.MustRegister(info) }

// Get returns section info from the default registry.
func Get(name string) *Info { return DefaultRegistry.Get(name) }

// IsRegistered checks a section name against the default registry.
func IsRegistered(name string) bool { return DefaultRegistry.IsRegistered(name) }

// RegisteredNames lists the default registry's section names.
func RegisteredNames() []string { return DefaultRegistry.RegisteredNames() }
