// Package utls is the backend built on github.com/refraction-networking/utls.
//
// utls does not export the key-exchange group it negotiated. This backend therefore installs a
// wire.GroupObserver on its transport adapter: the client watches the bytes it receives and the
// server watches the bytes it sends, and the group is read from the plaintext ServerHello (or
// ServerKeyExchange). WithoutGroupIntrospection disables the observer, after which
// NegotiatedGroup is always undefined.
package utls

import (
	"crypto/x509"
	"fmt"
	"net"
	"strings"

	"github.com/pqinterop/tls-interop-harness/backend"
	"github.com/pqinterop/tls-interop-harness/backend/internal/wire"
	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework"
	"github.com/pqinterop/tls-interop-harness/provider"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	tls "github.com/refraction-networking/utls"
)

const Kind backend.Kind = "utls"

// Backend creates utls connections.
type Backend struct {
	introspect bool
	helloID    tls.ClientHelloID
}

// Option configures a Backend.
type Option func(*Backend)

// WithoutGroupIntrospection turns off the wire observer.
func WithoutGroupIntrospection() Option {
	return func(b *Backend) { b.introspect = false }
}

func New(options ...Option) *Backend {
	b := &Backend{introspect: true, helloID: tls.HelloGolang}
	for _, o := range options {
		o(b)
	}
	return b
}

func (b *Backend) Kind() backend.Kind { return Kind }

func (b *Backend) Capabilities() framework.Capabilities {
	caps := framework.Capabilities{
		backend.CapabilityClient,
		backend.CapabilityServer,
		backend.CapabilityTLS12,
		backend.CapabilityTLS13,
	}
	if b.introspect {
		caps = append(caps, backend.CapabilityNegotiatedGroup)
	}
	return caps
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
	c := &Connection{introspect: b.introspect}
	uc := makeUTLSConfig(cfg, groups)
	c.Engine = backend.NewEngine(Kind, cfg.Role(), logger, func(nc net.Conn) (backend.Session, error) {
		if cfg.Role() == config.RoleClient {
			return tls.UClient(nc, uc, b.helloID), nil
		}
		return tls.Server(nc, uc), nil
	}, preflight)
	if b.introspect {
		if cfg.Role() == config.RoleClient {
			c.SetTaps(c.observer.Observe, nil)
		} else {
			c.SetTaps(nil, c.observer.Observe)
		}
	}
	return c, nil
}

func makeUTLSConfig(cfg *config.ConnectionConfig, groups []provider.Group) *tls.Config {
	uc := &tls.Config{
		MinVersion:             cfg.MinVersion(),
		MaxVersion:             cfg.MaxVersion(),
		SessionTicketsDisabled: true,
	}
	for _, g := range groups {
		uc.CurvePreferences = append(uc.CurvePreferences, tls.CurveID(g.ID))
	}
	if cfg.Role() == config.RoleClient {
		uc.ServerName = cfg.ServerName()
		uc.InsecureSkipVerify = true //nolint:gosec
		uc.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return cfg.VerifyPeer(rawCerts)
		}
	} else {
		uc.Certificates = []tls.Certificate{{
			Certificate: cfg.CertificateChain(),
			PrivateKey:  cfg.PrivateKey(),
			Leaf:        cfg.Leaf(),
		}}
	}
	return uc
}

// Connection is a utls session driven by a backend.Engine.
type Connection struct {
	*backend.Engine
	introspect bool
	observer   wire.GroupObserver
}

// NegotiatedGroup reports the group seen on the wire, if introspection is enabled.
func (c *Connection) NegotiatedGroup() ldvalue.OptionalString {
	if !c.introspect || c.State() != backend.StateEstablished {
		return ldvalue.OptionalString{}
	}
	id, ok := c.observer.Group()
	if !ok {
		return ldvalue.OptionalString{}
	}
	return ldvalue.NewOptionalString(provider.GroupName(nil, id))
}
