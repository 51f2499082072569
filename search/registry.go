package search

import (
	"fmt"
	"sort"
)

// Registry maps provider names to Provider implementations.
type Registry struct {
	providers map[string]Provider
	fallback  string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider. The first registered provider becomes the
// default.
func (r *Registry) Register(p Provider) {
	if len(r.providers) == 0 {
		r.fallback = p.Name()
	}
	r.providers[p.Name()] = p
}

// Get returns the provider with the given name. An empty name selects the
// default provider.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.fallback
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown search provider %q", name)
	}
	return p, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
