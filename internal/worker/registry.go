package worker

import (
	"context"
	"fmt"
	"sync"
)

// Func is an executable task body. Args and kwargs are the deserialized
// parameters the task was scheduled with.
type Func func(ctx context.Context, args []any, kwargs map[string]any) error

// Registry maps task names to their executable functions. Task names are
// opaque to the scheduler; only the worker resolves them.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register binds a task name to a function. Registering the same name twice
// is an error.
func (r *Registry) Register(name string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("task %q is already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Resolve returns the function registered under name.
func (r *Registry) Resolve(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.funcs[name]
	return fn, ok
}

// DefaultRegistry is the registry the stock worker command runs with.
// Embedding applications register their tasks here, typically from init.
var DefaultRegistry = NewRegistry()

// Register binds a task name to a function in the DefaultRegistry.
func Register(name string, fn Func) error {
	return DefaultRegistry.Register(name, fn)
}
