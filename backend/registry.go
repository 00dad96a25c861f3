package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps kinds to adapter factories and caches one instance per kind.
type Registry struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	instances map[Kind]Provider
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[Kind]Factory),
		instances: make(map[Kind]Provider),
	}
}

// Register adds a factory for kind, replacing any earlier one.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
	delete(r.instances, kind)
}

// Get returns the adapter for kind, building it on first use.
func (r *Registry) Get(kind Kind) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[kind]; ok {
		return p, nil
	}
	factory, ok := r.factories[kind]
	if !ok {
		return nil, fmt.Errorf("backend %q not registered", kind)
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("build backend %q: %w", kind, err)
	}
	if p == nil {
		return nil, fmt.Errorf("build backend %q: factory returned nil", kind)
	}
	r.instances[kind] = p
	return p, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[kind]
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
