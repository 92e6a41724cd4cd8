package canonical

import (
	"fmt"
	"sync"

	"github.com/kailas-cloud/matchdex/internal/domain"
)

// Registry resolves canonical type names to configurations. Static built-in
// configurations are fixed at construction; dynamic ones are populated by an
// external loader and may change at runtime.
type Registry struct {
	mu      sync.RWMutex
	static  map[string]*TypeConfiguration
	dynamic *ConfigurationMap
}

// NewRegistry creates a registry with the given built-in configurations.
func NewRegistry(builtin ...*TypeConfiguration) *Registry {
	static := make(map[string]*TypeConfiguration, len(builtin))
	for _, c := range builtin {
		static[c.Type()] = c
	}
	return &Registry{static: static, dynamic: NewConfigurationMap()}
}

// Put registers or replaces a dynamic configuration.
func (r *Registry) Put(name string, cfg *TypeConfiguration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic.Put(name, cfg)
}

// Remove drops a dynamic configuration.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic.Remove(name)
}

// Replace swaps the whole dynamic map, for loaders that reload in bulk.
func (r *Registry) Replace(cm *ConfigurationMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dynamic = NewConfigurationMap()
	r.dynamic.PutAll(cm)
}

// Lookup resolves a type name, preferring dynamic configurations over
// built-ins. A name that is neither is a validation error.
func (r *Registry) Lookup(name string) (*TypeConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.dynamic.Get(name); ok {
		return c, nil
	}
	if c, ok := r.static[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("canonical type %q: %w", name, domain.ErrUnknownType)
}

// Names lists all resolvable type names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	var names []string
	for _, k := range r.dynamic.Keys() {
		seen[k] = true
		names = append(names, k)
	}
	for k := range r.static {
		if !seen[k] {
			names = append(names, k)
		}
	}
	return names
}
