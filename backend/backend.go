package backend

import (
	"fmt"

	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/provider"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Kind identifies a TLS stack.
type Kind string

// Capabilities a backend may report.
const (
	CapabilityClient          = "client"
	CapabilityServer          = "server"
	CapabilityTLS12           = "tls1.2"
	CapabilityTLS13           = "tls1.3"
	CapabilityNegotiatedGroup = "negotiated-group"
)

// State is the lifecycle state of a Connection.
type State int

const (
	StateUnstarted State = iota
	StateHandshaking
	StateEstablished
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "Unstarted"
	case StateHandshaking:
		return "Handshaking"
	case StateEstablished:
		return "Established"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// StepStatus is the outcome of one Step.
type StepStatus int

const (
	// StepWouldBlock means the session is waiting for bytes and none moved during this step.
	StepWouldBlock StepStatus = iota
	// StepProgressed means bytes were consumed or produced but the handshake is not finished.
	StepProgressed
	StepEstablished
	StepFailed
)

func (s StepStatus) String() string {
	switch s {
	case StepWouldBlock:
		return "WouldBlock"
	case StepProgressed:
		return "Progressed"
	case StepEstablished:
		return "Established"
	case StepFailed:
		return "Failed"
	default:
		return fmt.Sprintf("StepStatus(%d)", int(s))
	}
}

// StepResult is returned by Connection.Step. Err is set only when Status is StepFailed.
type StepResult struct {
	Status StepStatus
	Err    *HandshakeError
}

// Terminal reports whether the result is Established or Failed.
func (r StepResult) Terminal() bool {
	return r.Status == StepEstablished || r.Status == StepFailed
}

func (r StepResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s(%s)", r.Status, r.Err.Kind)
	}
	return r.Status.String()
}

// Connection wraps one backend-native TLS session.
type Connection interface {
	Kind() Kind
	Role() config.Role
	State() State
	// Start binds the connection to a transport end. It allocates the session and never blocks.
	Start(end transport.End) error
	// Step performs one round of handshake processing.
	Step() StepResult
	// NegotiatedGroup is defined only once Established, and never for a backend that cannot
	// report it.
	NegotiatedGroup() ldvalue.OptionalString
	// Close releases the session and the transport end. It is safe to call more than once and in
	// any state.
	Close() error
}

// Backend creates Connections for one TLS stack.
type Backend interface {
	Kind() Kind
	Capabilities() framework.Capabilities
	// Executes reports whether the stack can perform key exchange with the group.
	Executes(g provider.Group) bool
	// NewConnection allocates an Unstarted connection.
	NewConnection(cfg *config.ConnectionConfig, logger framework.Logger) (Connection, error)
}

// Start allocates a connection and binds it to a transport end.
func Start(b Backend, end transport.End, cfg *config.ConnectionConfig, logger framework.Logger) (Connection, error) {
	c, err := b.NewConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Start(end); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// ExecutableGroups filters the configured groups to those the backend can execute, keeping the
// configured preference order.
func ExecutableGroups(b Backend, cfg *config.ConnectionConfig) []provider.Group {
	var ret []provider.Group
	for _, g := range cfg.Groups() {
		if b.Executes(g) {
			ret = append(ret, g)
		}
	}
	return ret
}
