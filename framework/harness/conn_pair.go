// Package harness drives a client Connection and a server Connection through a TLS handshake.
//
// A ConnPair owns both connections and the transport between them. Over the in-memory transport
// the two sides are stepped alternately on the calling goroutine. Over loopback sockets the
// server handshake runs on one extra goroutine that is always joined before Handshake returns;
// there is no timeout, so a backend that never finishes blocks the caller.
package harness

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/transport"

	"github.com/hashicorp/go-multierror"
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

var (
	// ErrPairUsed is returned by Handshake on a pair that has already run.
	ErrPairUsed = errors.New("connection pair has already been used")

	// ErrGroupMismatch means both sides completed the handshake but report different groups.
	ErrGroupMismatch = errors.New("client and server report different negotiated groups")
)

// Endpoint is one side of a pair: the stack to use and how to configure it.
type Endpoint struct {
	Backend backend.Backend
	Config  *config.ConnectionConfig
}

func (e Endpoint) String() string {
	if e.Backend == nil {
		return "<no backend>"
	}
	return string(e.Backend.Kind())
}

// ConnPair is single-use: Handshake runs once, and Close releases everything it created.
type ConnPair struct {
	client   Endpoint
	server   Endpoint
	settings pairSettings
	logger   framework.Logger

	clientConn backend.Connection
	serverConn backend.Connection
	duplex     *transport.Duplex
	listener   *transport.Listener
	// Ends that were opened but not handed to a connection.
	orphans []transport.End

	used      bool
	rounds    int
	closeOnce sync.Once
	closeErr  error
}

// NewConnPair checks that each endpoint carries a config for its role. Nothing is allocated
// until Handshake.
func NewConnPair(client, server Endpoint, options ...PairOption) (*ConnPair, error) {
	settings := defaultPairSettings()
	if err := applyPairOptions(&settings, options); err != nil {
		return nil, err
	}
	if err := checkEndpoint(client, config.RoleClient); err != nil {
		return nil, err
	}
	if err := checkEndpoint(server, config.RoleServer); err != nil {
		return nil, err
	}
	return &ConnPair{
		client:   client,
		server:   server,
		settings: settings,
		logger:   framework.OrNull(settings.logger),
	}, nil
}

func checkEndpoint(e Endpoint, role config.Role) error {
	if e.Backend == nil || e.Config == nil {
		return fmt.Errorf("%s endpoint needs both a backend and a config", role)
	}
	if e.Config.Role() != role {
		return &config.RoleMismatchError{Role: e.Config.Role(), Reason: "config used as the " + role.String() + " endpoint"}
	}
	return nil
}

// Transport returns the kind of transport the pair uses.
func (p *ConnPair) Transport() transport.Kind { return p.settings.transport }

// Client returns the client connection, or nil before Handshake has allocated it.
func (p *ConnPair) Client() backend.Connection { return p.clientConn }

// Server returns the server connection, or nil before Handshake has allocated it.
func (p *ConnPair) Server() backend.Connection { return p.serverConn }

// Rounds is the number of driving rounds the last Handshake used.
func (p *ConnPair) Rounds() int { return p.rounds }

// Handshake drives both sides to completion. It returns nil only if both are Established and
// their negotiated groups agree. A failed handshake is reported as a *backend.HandshakeError
// from the side that failed; other errors concern the pair itself.
func (p *ConnPair) Handshake() error {
	if p.used {
		return ErrPairUsed
	}
	p.used = true
	p.logger.Printf("handshake %s client -> %s server over %s transport", p.client, p.server, p.settings.transport)

	var err error
	if p.settings.transport == transport.KindSocket {
		err = p.runSocket()
	} else {
		err = p.runCooperative()
	}
	if err != nil {
		err = p.explainUnexecutable(err)
		p.logger.Printf("handshake failed: %s", err)
		return err
	}
	group, err := p.NegotiatedGroup()
	if err != nil {
		return err
	}
	p.logger.Printf("handshake established, group %s", describeGroup(group))
	return nil
}

// NegotiatedGroup returns the group the two sides agreed on. If only one side can report the
// group, its value is used. It fails with ErrGroupMismatch if both report a group and they
// differ.
func (p *ConnPair) NegotiatedGroup() (ldvalue.OptionalString, error) {
	if p.clientConn == nil || p.serverConn == nil {
		return ldvalue.OptionalString{}, nil
	}
	c, s := p.clientConn.NegotiatedGroup(), p.serverConn.NegotiatedGroup()
	switch {
	case c.IsDefined() && s.IsDefined() && c != s:
		return ldvalue.OptionalString{}, fmt.Errorf("%w: client %s, server %s", ErrGroupMismatch,
			describeGroup(c), describeGroup(s))
	case c.IsDefined():
		return c, nil
	default:
		return s, nil
	}
}

// explainUnexecutable reports a failure raised before any bytes were sent as a BackendFault, rather
// than a NegotiationFailure, when the two configs have a group in common.
func (p *ConnPair) explainUnexecutable(err error) error {
	var he *backend.HandshakeError
	if !errors.As(err, &he) || he.Kind != backend.NegotiationFailure || !errors.Is(he.Err, backend.ErrNoExecutableGroup) {
		return err
	}
	shared := sharedGroups(p.client.Config, p.server.Config)
	if len(shared) == 0 {
		return err
	}
	return &backend.HandshakeError{
		Kind:    backend.BackendFault,
		Side:    he.Side,
		Backend: he.Backend,
		Err:     fmt.Errorf("%w (%s): %w", backend.ErrSharedGroupNotExecutable, strings.Join(shared, ", "), he.Err),
	}
}

func sharedGroups(client, server *config.ConnectionConfig) []string {
	offered := make(map[uint16]bool)
	for _, g := range client.Groups() {
		offered[g.ID] = true
	}
	var ret []string
	for _, g := range server.Groups() {
		if offered[g.ID] {
			ret = append(ret, g.Name)
		}
	}
	return ret
}

func describeGroup(g ldvalue.OptionalString) string {
	return g.OrElse("<not reported>")
}

// Close closes both connections and the transport. Only the first call has any effect; later
// calls return the same result.
func (p *ConnPair) Close() error {
	p.closeOnce.Do(func() {
		var result *multierror.Error
		for _, c := range []backend.Connection{p.clientConn, p.serverConn} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing %s %s: %w", c.Role(), c.Kind(), err))
			}
		}
		for _, end := range p.orphans {
			if err := end.Close(); err != nil && !errors.Is(err, transport.ErrClosed) {
				result = multierror.Append(result, err)
			}
		}
		if p.duplex != nil {
			_ = p.duplex.Local().Close()
			_ = p.duplex.Peer().Close()
		}
		if p.listener != nil {
			if err := p.listener.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("closing listener: %w", err))
			}
		}
		p.closeErr = result.ErrorOrNil()
	})
	return p.closeErr
}

func stalled(format string, args ...interface{}) *backend.HandshakeError {
	return &backend.HandshakeError{Kind: backend.HandshakeStalled, Err: fmt.Errorf(format, args...)}
}
