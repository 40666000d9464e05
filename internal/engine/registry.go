package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Factory creates an engine instance.
type Factory func() (Engine, error)

// Registry maps engine names to factory functions.
// It is not safe for concurrent use; registration should happen at startup.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named engine factory. Overwrites if name already exists.
// Panics if name is empty or f is nil (programmer error).
func (r *Registry) Register(name string, f Factory) {
	if name == "" {
		panic("engine: Register called with empty name")
	}
	if f == nil {
		panic("engine: Register called with nil factory")
	}
	r.factories[name] = f
}

// NewEngine instantiates an engine by name.
func (r *Registry) NewEngine(name string) (Engine, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &UnknownEngineError{
			Name:      name,
			Available: r.AvailableEngines(),
		}
	}
	e, err := f()
	if err != nil {
		return nil, fmt.Errorf("engine factory %q: %w", name, err)
	}
	return e, nil
}

// AvailableEngines returns registered engine names in sorted order.
func (r *Registry) AvailableEngines() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownEngineError indicates an engine name is not registered.
type UnknownEngineError struct {
	Name      string
	Available []string
}

func (e *UnknownEngineError) Error() string {
	return fmt.Sprintf("unknown engine %q (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
