// Package backend maps runtime names to native runtime constructors.
package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/born-ml/gpustream/internal/backend/sim"
	"github.com/born-ml/gpustream/internal/native"
)

// Factory opens a native runtime.
type Factory func() (native.Runtime, error)

// Registry holds named runtime factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Open creates the runtime registered under name.
func (r *Registry) Open(name string) (native.Runtime, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("backend %q is not registered (available: %v)", name, r.Names())
	}
	rt, err := f()
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", name, err)
	}
	return rt, nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a registry with every backend compiled into this binary.
func Default() *Registry {
	r := NewRegistry()
	r.Register("sim", func() (native.Runtime, error) {
		return sim.New(), nil
	})
	registerPlatform(r)
	return r
}
