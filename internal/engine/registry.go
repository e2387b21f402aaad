package engine

import (
	"fmt"
	"sort"
	"sync"
)

// EngineAuto is the pseudo-name that resolves to the default engine.
const EngineAuto = "auto"

// defaultEngine is the implementation EngineAuto resolves to.
const defaultEngine = "nethttp"

// Factory constructs an engine from shared configuration.
type Factory func(cfg Config) (Engine, error)

// Registry holds registered engine factories and resolves which one to use
// by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds an engine factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Resolve builds the engine registered under name. The name "auto" picks
// the default implementation. Returns an error if the name is not
// registered.
func (r *Registry) Resolve(name string, cfg Config) (Engine, error) {
	target := name
	if target == EngineAuto {
		target = defaultEngine
	}

	r.mu.RLock()
	f, ok := r.factories[target]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("engine %q is not registered", target)
	}
	return f(cfg)
}

// List returns the names of all registered engines, sorted for stable
// output.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
