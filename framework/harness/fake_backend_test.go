package harness

import (
	"errors"
	"sync"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/provider"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// fakeBackend plays back a fixed sequence of step results per role. In socket mode the server
// connection is created on another goroutine, so conns is guarded by mu.
type fakeBackend struct {
	clientScript []backend.StepResult
	serverScript []backend.StepResult
	group        ldvalue.OptionalString

	mu    sync.Mutex
	conns []*fakeConn
}

func (b *fakeBackend) Kind() backend.Kind                   { return "fake" }
func (b *fakeBackend) Capabilities() framework.Capabilities { return nil }
func (b *fakeBackend) Executes(provider.Group) bool         { return true }

func (b *fakeBackend) NewConnection(cfg *config.ConnectionConfig, _ framework.Logger) (backend.Connection, error) {
	script := b.clientScript
	if cfg.Role() == config.RoleServer {
		script = b.serverScript
	}
	c := &fakeConn{role: cfg.Role(), script: script, group: b.group}
	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()
	return c, nil
}

func (b *fakeBackend) connections() []*fakeConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*fakeConn(nil), b.conns...)
}

func (b *fakeBackend) conn(role config.Role) *fakeConn {
	for _, c := range b.connections() {
		if c.role == role {
			return c
		}
	}
	return nil
}

type fakeConn struct {
	role   config.Role
	script []backend.StepResult
	group  ldvalue.OptionalString
	state  backend.State
	last   backend.StepResult
	steps  int
	closes int
	end    transport.End
}

func (c *fakeConn) Kind() backend.Kind  { return "fake" }
func (c *fakeConn) Role() config.Role   { return c.role }
func (c *fakeConn) State() backend.State { return c.state }

func (c *fakeConn) Start(end transport.End) error {
	c.end = end
	c.state = backend.StateHandshaking
	return nil
}

func (c *fakeConn) Step() backend.StepResult {
	if c.last.Terminal() {
		return c.last
	}
	r := c.script[min(c.steps, len(c.script)-1)]
	c.steps++
	c.last = r
	switch r.Status {
	case backend.StepEstablished:
		c.state = backend.StateEstablished
	case backend.StepFailed:
		c.state = backend.StateFailed
	}
	return r
}

func (c *fakeConn) Steps() int { return c.steps }

func (c *fakeConn) NegotiatedGroup() ldvalue.OptionalString {
	if c.state != backend.StateEstablished {
		return ldvalue.OptionalString{}
	}
	return c.group
}

func (c *fakeConn) Close() error {
	c.closes++
	if c.end != nil {
		_ = c.end.Close()
	}
	return nil
}

func results(statuses ...backend.StepStatus) []backend.StepResult {
	ret := make([]backend.StepResult, 0, len(statuses))
	for _, s := range statuses {
		r := backend.StepResult{Status: s}
		if s == backend.StepFailed {
			r.Err = &backend.HandshakeError{Kind: backend.BackendFault, Err: errors.New("scripted failure")}
		}
		ret = append(ret, r)
	}
	return ret
}
