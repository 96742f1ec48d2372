package interop

import (
	"fmt"
	"strings"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/backend/gotls"
	"github.com/pqinterop/tls-interop-harness/backend/utls"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/framework/helpers"
)

// Registry is an ordered set of backends addressed by name.
type Registry struct {
	backends []backend.Backend
}

// DefaultRegistry contains every backend this module provides.
func DefaultRegistry() *Registry {
	return NewRegistry(gotls.New(), utls.New())
}

func NewRegistry(backends ...backend.Backend) *Registry {
	return &Registry{backends: helpers.CopyOf(backends)}
}

// Backends returns the backends in registration order.
func (r *Registry) Backends() []backend.Backend {
	return helpers.CopyOf(r.backends)
}

func (r *Registry) Names() []string {
	ret := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		ret = append(ret, string(b.Kind()))
	}
	return ret
}

func (r *Registry) Lookup(name string) (backend.Backend, error) {
	for _, b := range r.backends {
		if string(b.Kind()) == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("unknown backend %q (available: %s)", name, strings.Join(r.Names(), ", "))
}

// Select returns a registry limited to the named backends, in the order given. An empty list
// selects everything.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	selected := make([]backend.Backend, 0, len(names))
	for _, name := range names {
		b, err := r.Lookup(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, b)
	}
	return NewRegistry(selected...), nil
}

// Capabilities returns the capabilities shared by every backend in the registry.
func (r *Registry) Capabilities() framework.Capabilities {
	if len(r.backends) == 0 {
		return nil
	}
	caps := r.backends[0].Capabilities()
	for _, b := range r.backends[1:] {
		caps = caps.Intersect(b.Capabilities())
	}
	return caps
}
