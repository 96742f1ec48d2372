// Package gotls is the crypto/tls backend.
package gotls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"strings"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/provider"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const Kind backend.Kind = "gotls"

// Backend creates crypto/tls connections.
type Backend struct{}

func New() *Backend { return &Backend{} }

func (b *Backend) Kind() backend.Kind { return Kind }

func (b *Backend) Capabilities() framework.Capabilities {
	return framework.Capabilities{
		backend.CapabilityClient,
		backend.CapabilityServer,
		backend.CapabilityTLS12,
		backend.CapabilityTLS13,
		backend.CapabilityNegotiatedGroup,
	}
}

func (b *Backend) Executes(g provider.Group) bool {
	switch tls.CurveID(g.ID) {
	case tls.CurveP256, tls.CurveP384, tls.CurveP521, tls.X25519, tls.X25519MLKEM768:
		return true
	}
	return false
}

func (b *Backend) NewConnection(cfg *config.ConnectionConfig, logger framework.Logger) (backend.Connection, error) {
	groups := backend.ExecutableGroups(b, cfg)
	var preflight error
	if len(groups) == 0 {
		preflight = fmt.Errorf("%w: %s", backend.ErrNoExecutableGroup, strings.Join(cfg.GroupNames(), ", "))
	}
	c := &Connection{}
	tc := makeTLSConfig(cfg, groups)
	c.Engine = backend.NewEngine(Kind, cfg.Role(), logger, func(nc net.Conn) (backend.Session, error) {
		if cfg.Role() == config.RoleClient {
			c.conn = tls.Client(nc, tc)
		} else {
			c.conn = tls.Server(nc, tc)
		}
		return c.conn, nil
	}, preflight)
	return c, nil
}

func makeTLSConfig(cfg *config.ConnectionConfig, groups []provider.Group) *tls.Config {
	tc := &tls.Config{
		MinVersion:             cfg.MinVersion(),
		MaxVersion:             cfg.MaxVersion(),
		SessionTicketsDisabled: true,
	}
	for _, g := range groups {
		tc.CurvePreferences = append(tc.CurvePreferences, tls.CurveID(g.ID))
	}
	if cfg.Role() == config.RoleClient {
		tc.ServerName = cfg.ServerName()
		// The chain and host name are checked by VerifyPeerCertificate so that every backend
		// applies the same verification.
		tc.InsecureSkipVerify = true //nolint:gosec
		tc.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return cfg.VerifyPeer(rawCerts)
		}
	} else {
		tc.Certificates = []tls.Certificate{{
			Certificate: cfg.CertificateChain(),
			PrivateKey:  cfg.PrivateKey(),
			Leaf:        cfg.Leaf(),
		}}
	}
	return tc
}

// Connection is a crypto/tls session driven by a backend.Engine.
type Connection struct {
	*backend.Engine
	conn *tls.Conn
}

// NegotiatedGroup reads the group from the session's connection state.
func (c *Connection) NegotiatedGroup() ldvalue.OptionalString {
	if c.State() != backend.StateEstablished || c.conn == nil {
		return ldvalue.OptionalString{}
	}
	id := c.conn.ConnectionState().CurveID
	if id == 0 {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(provider.GroupName(nil, uint16(id)))
}

// ConnectionState exposes the crypto/tls state once the handshake has finished.
func (c *Connection) ConnectionState() (tls.ConnectionState, bool) {
	if c.State() != backend.StateEstablished || c.conn == nil {
		return tls.ConnectionState{}, false
	}
	return c.conn.ConnectionState(), true
}
