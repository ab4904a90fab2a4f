// Package observer keeps a set of lifecycle observers and starts or stops each
// exactly once per transition.
package observer

import (
	"log/slog"
	"reflect"
	"sync"
)

// Observer is notified when it joins or leaves a Registry.
type Observer interface {
	Start()
	Stop()
}

// Func adapts a pair of callbacks to Observer. Register it by pointer; two
// pointers to equal Funcs are distinct observers.
type Func struct {
	OnStart func()
	OnStop  func()
}

// Start calls OnStart when set.
func (f *Func) Start() {
	if f.OnStart != nil {
		f.OnStart()
	}
}

// Stop calls OnStop when set.
func (f *Func) Stop() {
	if f.OnStop != nil {
		f.OnStop()
	}
}

// Registry is a set of observers compared by identity: pointers by address,
// other comparable values with ==. Start and Stop run outside the registry
// lock, so observers may call back into the registry.
type Registry struct {
	mu      sync.Mutex
	members map[Observer]struct{}
	order   []Observer
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		members: make(map[Observer]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Insert registers o and calls its Start. It reports false, without calling
// Start, when o is nil, not comparable, or already present.
func (r *Registry) Insert(o Observer) bool {
	if !identifiable(o) {
		r.logger.Warn("observer rejected: not comparable", "type", reflect.TypeOf(o))
		return false
	}

	r.mu.Lock()
	if _, ok := r.members[o]; ok {
		r.mu.Unlock()
		return false
	}
	r.members[o] = struct{}{}
	r.order = append(r.order, o)
	r.mu.Unlock()

	o.Start()
	return true
}

// Remove unregisters o and calls its Stop. It reports false when o was not
// present.
func (r *Registry) Remove(o Observer) bool {
	if !identifiable(o) {
		return false
	}

	r.mu.Lock()
	if _, ok := r.members[o]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.members, o)
	for i, m := range r.order {
		if m == o {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	o.Stop()
	return true
}

// Contains reports whether o is registered.
func (r *Registry) Contains(o Observer) bool {
	if !identifiable(o) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[o]
	return ok
}

// Len returns the number of registered observers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// RemoveAll unregisters every observer and stops them in reverse insertion
// order. It returns the number stopped.
func (r *Registry) RemoveAll() int {
	r.mu.Lock()
	removed := r.order
	r.order = nil
	r.members = make(map[Observer]struct{})
	r.mu.Unlock()

	for i := len(removed) - 1; i >= 0; i-- {
		removed[i].Stop()
	}
	return len(removed)
}

func identifiable(o Observer) bool {
	if o == nil {
		return false
	}
	// Value.Comparable also checks the dynamic values held in interface
	// fields, which a comparable type does not guarantee.
	return reflect.ValueOf(o).Comparable()
}
