// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package effect

import (
	"slices"
	"sync"
)

// Registry maps effect ids to effects. The zero value is not usable; create
// one with NewRegistry. Most code uses the package-level default registry.
type Registry struct {
	mu      sync.RWMutex
	effects map[string]Effect
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{effects: make(map[string]Effect)}
}

// Register adds e to the registry. It panics on an empty or duplicate id,
// both of which are programming mistakes in init code.
func (r *Registry) Register(e Effect) {
	if e.ID == "" {
		panic("effect: register with empty id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.effects[e.ID]; exists {
		panic("effect: duplicate registration for " + e.ID)
	}
	if e.Name == "" {
		e.Name = e.ID
	}
	r.effects[e.ID] = e
}

// Lookup returns the effect registered under id.
func (r *Registry) Lookup(id string) (Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effects[id]
	return e, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.Lookup(id)
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.effects))
	for id := range r.effects {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry holding the builtin effects.
func Default() *Registry { return defaultRegistry }

// Register adds e to the default registry.
func Register(e Effect) { defaultRegistry.Register(e) }

// Lookup returns the effect registered under id in the default registry.
func Lookup(id string) (Effect, bool) { return defaultRegistry.Lookup(id) }

// Has reports whether id is registered in the default registry.
func Has(id string) bool { return defaultRegistry.Has(id) }

// IDs returns the ids registered in the default registry, sorted.
func IDs() []string { return defaultRegistry.IDs() }

// MustLookup returns the effect registered under id in the default registry
// and panics if there is none.
func MustLookup(id string) Effect {
	e, ok := defaultRegistry.Lookup(id)
	if !ok {
		panic("effect: unknown effect " + id)
	}
	return e
}
