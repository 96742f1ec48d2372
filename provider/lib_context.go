package provider

import (
	"errors"
	"sync"
)

// DefaultProviderName is the provider that publishes the classical groups. It is always
// available as a builtin and never needs AddBuiltin.
const DefaultProviderName = "default"

// InitFunc initializes a provider. It publishes the provider's groups through the Registrar.
type InitFunc func(r *Registrar) error

// Registrar collects what a provider publishes while its InitFunc runs.
type Registrar struct {
	provider string
	groups   []Group
}

// AddGroup publishes a group. The group's Provider field is set to the registering provider.
func (r *Registrar) AddGroup(g Group) {
	g.Provider = r.provider
	g.Aliases = append([]string(nil), g.Aliases...)
	r.groups = append(r.groups, g)
}

// Provider is the handle returned by a successful Load.
type Provider struct {
	name   string
	groups []Group
}

func (p *Provider) Name() string { return p.name }

// Groups returns the groups this provider published, in registration order.
func (p *Provider) Groups() []Group {
	return append([]Group(nil), p.groups...)
}

// LibContext scopes provider registrations. A nil *LibContext refers to the process-wide
// default context.
type LibContext struct {
	builtins map[string]InitFunc
	loaded   map[string]*Provider
	order    []*Provider
	closed   bool
	lock     sync.RWMutex
}

var globalContext = NewLibContext() //nolint:gochecknoglobals

// NewLibContext creates an isolated context with only the default provider available.
func NewLibContext() *LibContext {
	return &LibContext{
		builtins: map[string]InitFunc{DefaultProviderName: initDefaultProvider},
		loaded:   make(map[string]*Provider),
	}
}

func resolve(ctx *LibContext) *LibContext {
	if ctx == nil {
		return globalContext
	}
	return ctx
}

var errContextClosed = errors.New("library context is closed")

// AddBuiltin registers a named provider initializer in the context. It does not run the
// initializer; see Load.
func AddBuiltin(ctx *LibContext, name string, init InitFunc) error {
	c := resolve(ctx)
	fail := func(err error) error {
		return &RegistrationError{Op: "add", Provider: name, Err: err}
	}
	if name == "" {
		return fail(errors.New("provider name must not be empty"))
	}
	if init == nil {
		return fail(errors.New("provider initializer must not be nil"))
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return fail(errContextClosed)
	}
	if _, exists := c.builtins[name]; exists {
		return fail(errors.New("a provider with this name is already registered"))
	}
	c.builtins[name] = init
	return nil
}

// Load runs the named provider's initializer and publishes its groups into the context. Loading
// an already-loaded provider returns the existing handle.
func Load(ctx *LibContext, name string) (*Provider, error) {
	c := resolve(ctx)
	fail := func(err error) (*Provider, error) {
		return nil, &RegistrationError{Op: "load", Provider: name, Err: err}
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.closed {
		return fail(errContextClosed)
	}
	if p, ok := c.loaded[name]; ok {
		return p, nil
	}
	init, ok := c.builtins[name]
	if !ok {
		return fail(errors.New("no such provider has been added"))
	}
	r := &Registrar{provider: name}
	if err := init(r); err != nil {
		return fail(err)
	}
	for _, g := range r.groups {
		if existing, found := c.findByName(g.Name); found {
			return fail(&duplicateGroupError{name: g.Name, owner: existing.Provider})
		}
	}
	p := &Provider{name: name, groups: r.groups}
	c.loaded[name] = p
	c.order = append(c.order, p)
	return p, nil
}

type duplicateGroupError struct {
	name, owner string
}

func (e *duplicateGroupError) Error() string {
	return "group " + e.name + " is already defined by provider " + e.owner
}

// IsLoaded reports whether the named provider has been loaded into the context.
func IsLoaded(ctx *LibContext, name string) bool {
	c := resolve(ctx)
	c.lock.RLock()
	defer c.lock.RUnlock()
	_, ok := c.loaded[name]
	return ok
}

// LookupGroup finds a group by canonical name or alias.
func LookupGroup(ctx *LibContext, name string) (Group, error) {
	c := resolve(ctx)
	c.lock.RLock()
	defer c.lock.RUnlock()
	if len(c.order) == 0 {
		return Group{}, ErrNotLoaded
	}
	if g, ok := c.findByName(name); ok {
		return g, nil
	}
	return Group{}, &UnknownGroupError{Name: name}
}

// GroupByID finds a group by its TLS code point.
func GroupByID(ctx *LibContext, id uint16) (Group, bool) {
	c := resolve(ctx)
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, p := range c.order {
		for _, g := range p.groups {
			if g.ID == id {
				return g, true
			}
		}
	}
	return Group{}, false
}

// GroupName returns the canonical name for a code point, or UnknownGroupName if no loaded
// provider defines it.
func GroupName(ctx *LibContext, id uint16) string {
	if g, ok := GroupByID(ctx, id); ok {
		return g.Name
	}
	return UnknownGroupName(id)
}

// AllGroups returns every published group, in provider load order.
func AllGroups(ctx *LibContext) []Group {
	c := resolve(ctx)
	c.lock.RLock()
	defer c.lock.RUnlock()
	var ret []Group
	for _, p := range c.order {
		ret = append(ret, p.groups...)
	}
	return ret
}

func (c *LibContext) findByName(name string) (Group, bool) {
	for _, p := range c.order {
		for _, g := range p.groups {
			if g.matches(name) {
				return g, true
			}
		}
	}
	return Group{}, false
}

// Close unloads every provider. Any later Load or AddBuiltin on this context fails. The global
// context cannot be closed.
func (c *LibContext) Close() error {
	if c == nil || c == globalContext {
		return &RegistrationError{Op: "close", Provider: "*", Err: errors.New("the global context cannot be closed")}
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.closed = true
	c.loaded = make(map[string]*Provider)
	c.order = nil
	return nil
}
