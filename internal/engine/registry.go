package engine

import (
	"fmt"
	"sort"

	"github.com/nostalgiatan/see/internal/types"
)

// Registry holds the immutable adapter catalog and the health store that
// gates dispatch. The catalog is fixed after startup registration; only
// health rows mutate at runtime.
type Registry struct {
	catalog  map[string]Adapter
	order    []string
	defaults []string
	health   *HealthStore
}

// NewRegistry creates a registry whose default engine set is defaults,
// in the given display order.
func NewRegistry(defaults []string, health *HealthStore) *Registry {
	return &Registry{
		catalog:  make(map[string]Adapter),
		defaults: append([]string(nil), defaults...),
		health:   health,
	}
}

// Register adds an adapter to the catalog. Registration happens once at
// startup; duplicate names are a programming error.
func (r *Registry) Register(a Adapter) error {
	name := a.Info().Name
	if name == "" {
		return fmt.Errorf("adapter has empty name")
	}
	if _, exists := r.catalog[name]; exists {
		return fmt.Errorf("engine %q already registered", name)
	}
	r.catalog[name] = a
	r.order = append(r.order, name)
	r.health.Track(name)
	return nil
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrEngineUnknown, name)
	}
	return a, nil
}

// Has reports whether name is in the catalog.
func (r *Registry) Has(name string) bool {
	_, ok := r.catalog[name]
	return ok
}

// Names returns every catalog name in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Defaults returns the global default engine list in display order.
func (r *Registry) Defaults() []string {
	return append([]string(nil), r.defaults...)
}

// Health exposes the health store for executors and listings.
func (r *Registry) Health() *HealthStore {
	return r.health
}

// Resolve maps a request's engine selection to concrete catalog names.
// An explicit list wins and is filtered against the catalog with unknown
// names silently discarded. Otherwise count > 0 takes the first count
// defaults, and count <= 0 the whole default set.
func (r *Registry) Resolve(explicit []string, count int) []string {
	if len(explicit) > 0 {
		out := make([]string, 0, len(explicit))
		for _, name := range explicit {
			if r.Has(name) {
				out = append(out, name)
			}
		}
		return out
	}

	defaults := r.Defaults()
	if count > 0 && count < len(defaults) {
		return defaults[:count]
	}
	return defaults
}

// SelectAvailable resolves names to adapters, dropping engines the
// health store currently gates out.
func (r *Registry) SelectAvailable(names []string) []Adapter {
	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		a, ok := r.catalog[name]
		if !ok {
			continue
		}
		if !r.health.IsAvailable(name) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Descriptors returns every catalog descriptor joined with its health
// snapshot, sorted by name for stable listings.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		a := r.catalog[name]
		out = append(out, Descriptor{
			Info:   a.Info(),
			Health: r.health.Snapshot(name),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Info.Name < out[j].Info.Name })
	return out
}

// Descriptor pairs an adapter's static info with its live health row.
type Descriptor struct {
	Info   *EngineInfo    `json:"info"`
	Health HealthSnapshot `json:"health"`
}
