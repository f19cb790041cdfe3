package runtime

import (
	"context"
	"fmt"
	"sync"
)

// Backend executes compiled graphs.
type Backend interface {
	// Name is the identifier used in backend order lists.
	Name() string
	// Available returns nil when the backend can run on this host.
	Available() error
	// Compile allocates slot buffers and prepares g for execution.
	Compile(g *Graph, weights []float32) (Program, error)
}

// Describer is implemented by backends that can report host details.
type Describer interface {
	Describe() string
}

// Program is a compiled, ready-to-run network.
type Program interface {
	Inputs() []*Slot
	Outputs() []*Slot
	// Run reads the input slots and fills the output slots.
	Run(ctx context.Context) error
	Close() error
}

// Registry maps backend identifiers to implementations.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
	names    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// DefaultRegistry returns a registry holding the built-in cpu and fallback backends.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(NewCPUBackend(0))
	r.MustRegister(NewFallbackBackend())
	return r
}

// Register adds b. Names must be unique.
func (r *Registry) Register(b Backend) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := b.Name()
	if name == "" {
		return fmt.Errorf("backend with empty name")
	}
	if _, dup := r.backends[name]; dup {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.backends[name] = b
	r.names = append(r.names, name)
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(b Backend) {
	if err := r.Register(b); err != nil {
		panic(err)
	}
}

// Lookup returns the backend registered under name.
func (r *Registry) Lookup(name string) (Backend, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	return b, ok
}

// Names lists registered backends in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Select returns the first backend in order that is registered and available.
// Unregistered identifiers are ignored.
func (r *Registry) Select(order []string) (Backend, error) {
	reasons := make(map[string]string)
	for _, name := range order {
		b, ok := r.Lookup(name)
		if !ok {
			continue
		}
		if err := b.Available(); err != nil {
			reasons[name] = err.Error()
			continue
		}
		return b, nil
	}
	return nil, &BackendUnavailableError{Order: append([]string(nil), order...), Reasons: reasons}
}
