package config

import (
	"crypto"
	"crypto/x509"

	"github.com/pqinterop/tls-interop-harness/provider"
)

// ConnectionConfig is the immutable result of Builder.Build. Accessors return copies.
type ConnectionConfig struct {
	role       Role
	policy     Policy
	groups     []provider.Group
	roots      *x509.CertPool
	pair       keyPair
	serverName string
	verifier   HostNameVerifier
}

func (c *ConnectionConfig) Role() Role { return c.role }

func (c *ConnectionConfig) PolicyName() string { return c.policy.Name }

func (c *ConnectionConfig) MinVersion() uint16 { return c.policy.MinVersion }

func (c *ConnectionConfig) MaxVersion() uint16 { return c.policy.MaxVersion }

// Groups returns the resolved key-exchange groups in preference order.
func (c *ConnectionConfig) Groups() []provider.Group {
	return append([]provider.Group(nil), c.groups...)
}

// GroupNames returns the canonical names of Groups.
func (c *ConnectionConfig) GroupNames() []string {
	ret := make([]string, 0, len(c.groups))
	for _, g := range c.groups {
		ret = append(ret, g.Name)
	}
	return ret
}

// RootCAs returns the trusted roots, or nil if none were configured, in which case the system
// roots apply.
func (c *ConnectionConfig) RootCAs() *x509.CertPool {
	if c.roots == nil {
		return nil
	}
	return c.roots.Clone()
}

// CertificateChain returns the DER certificates presented to the peer, leaf first.
func (c *ConnectionConfig) CertificateChain() [][]byte {
	ret := make([][]byte, 0, len(c.pair.chain))
	for _, der := range c.pair.chain {
		ret = append(ret, append([]byte(nil), der...))
	}
	return ret
}

func (c *ConnectionConfig) PrivateKey() crypto.PrivateKey { return c.pair.key }

// Leaf returns the parsed leaf certificate, or nil for a client configuration.
func (c *ConnectionConfig) Leaf() *x509.Certificate { return c.pair.leaf }

func (c *ConnectionConfig) ServerName() string { return c.serverName }

// HasHostNameVerifier reports whether a verifier replaces default host-name checks.
func (c *ConnectionConfig) HasHostNameVerifier() bool { return c.verifier != nil }
