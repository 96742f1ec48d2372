package config

import (
	"crypto/x509"
	"errors"
	"strings"

	"github.com/pqinterop/tls-interop-harness/framework/helpers"
	"github.com/pqinterop/tls-interop-harness/provider"
)

// DefaultServerName is the name a client verifies the server's certificate against when no
// verifier and no explicit server name are configured.
const DefaultServerName = "localhost"

// Builder accumulates configuration calls. Trust material is checked as soon as it is supplied;
// groups and role invariants are checked by Build.
type Builder struct {
	role        Role
	policy      Policy
	roots       []*x509.Certificate
	pair        *keyPair
	groupTokens []string
	groupsSet   bool
	serverName  string
	verifier    HostNameVerifier
	libContext  *provider.LibContext
}

// Option is a configuration call in functional-option form, for use with New.
type Option = helpers.ConfigOption[Builder]

// NewBuilder starts a configuration for the given role with the default policy.
func NewBuilder(role Role) *Builder {
	p, _ := LookupPolicy(DefaultPolicyName)
	return &Builder{role: role, policy: p}
}

// New builds a configuration from options.
func New(role Role, options ...Option) (*ConnectionConfig, error) {
	b := NewBuilder(role)
	if err := helpers.ApplyOptions(b, options...); err != nil {
		return nil, err
	}
	return b.Build()
}

// SetSecurityPolicy selects a named policy preset.
func (b *Builder) SetSecurityPolicy(name string) error {
	p, err := LookupPolicy(name)
	if err != nil {
		return err
	}
	b.policy = p
	return nil
}

// TrustPEM adds every certificate in a PEM bundle to the trusted roots.
func (b *Builder) TrustPEM(bundle []byte) error {
	return b.trust("PEM buffer", bundle)
}

// TrustFile adds every certificate in a PEM file to the trusted roots.
func (b *Builder) TrustFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	return b.trust(path, data)
}

func (b *Builder) trust(source string, bundle []byte) error {
	certs, err := parseRoots(source, bundle)
	if err != nil {
		return err
	}
	b.roots = append(b.roots, certs...)
	return nil
}

// LoadPEM sets the certificate chain and private key presented to the peer.
func (b *Builder) LoadPEM(certPEM, keyPEM []byte) error {
	pair, err := parseKeyPair("PEM buffer", certPEM, keyPEM)
	if err != nil {
		return err
	}
	b.pair = &pair
	return nil
}

// LoadFiles is LoadPEM for PEM files on disk.
func (b *Builder) LoadFiles(certPath, keyPath string) error {
	certPEM, err := readFile(certPath)
	if err != nil {
		return err
	}
	keyPEM, err := readFile(keyPath)
	if err != nil {
		return err
	}
	pair, err := parseKeyPair(certPath, certPEM, keyPEM)
	if err != nil {
		return err
	}
	b.pair = &pair
	return nil
}

// SetGroups sets the key-exchange groups in preference order, replacing the policy's groups.
func (b *Builder) SetGroups(names []string) error {
	b.groupTokens = helpers.CopyOf(names)
	b.groupsSet = true
	return nil
}

// SetGroupsList is SetGroups for a colon-separated list such as "X25519MLKEM768:X25519".
func (b *Builder) SetGroupsList(list string) error {
	return b.SetGroups(strings.Split(list, ":"))
}

// SetServerName sets the name the client sends and verifies the server certificate against.
func (b *Builder) SetServerName(name string) error {
	b.serverName = name
	return nil
}

// SetVerifyHostCallback installs a host-name verifier, replacing default host-name checks.
func (b *Builder) SetVerifyHostCallback(v HostNameVerifier) error {
	b.verifier = v
	return nil
}

// SetLibContext selects the provider context that group names are resolved in. The default is
// the global context.
func (b *Builder) SetLibContext(ctx *provider.LibContext) error {
	b.libContext = ctx
	return nil
}

// Build validates the accumulated calls and returns an immutable configuration.
func (b *Builder) Build() (*ConnectionConfig, error) {
	switch {
	case b.role == RoleServer && b.pair == nil:
		return nil, &RoleMismatchError{Role: b.role, Reason: "a certificate and private key are required"}
	case b.role == RoleClient && b.pair != nil:
		return nil, &RoleMismatchError{Role: b.role, Reason: "a private key must not be attached"}
	case b.role != RoleClient && b.role != RoleServer:
		return nil, &RoleMismatchError{Role: b.role, Reason: "unknown role"}
	}

	tokens := b.policy.Groups
	if b.groupsSet {
		tokens = b.groupTokens
	}
	groups, err := resolveGroups(b.libContext, tokens)
	if err != nil {
		return nil, err
	}

	c := &ConnectionConfig{
		role:       b.role,
		policy:     b.policy,
		groups:     groups,
		serverName: b.serverName,
		verifier:   b.verifier,
	}
	if c.serverName == "" {
		c.serverName = DefaultServerName
	}
	if len(b.roots) > 0 {
		c.roots = x509.NewCertPool()
		for _, cert := range b.roots {
			c.roots.AddCert(cert)
		}
	}
	if b.pair != nil {
		c.pair = *b.pair
	}
	return c, nil
}

func resolveGroups(ctx *provider.LibContext, tokens []string) ([]provider.Group, error) {
	if len(tokens) == 0 {
		return nil, &UnsupportedGroupError{}
	}
	ret := make([]provider.Group, 0, len(tokens))
	seen := make(map[uint16]bool)
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" || strings.ContainsAny(token, ": \t") {
			return nil, &UnsupportedGroupError{Token: token}
		}
		g, err := provider.LookupGroup(ctx, token)
		if err != nil {
			var unknown *provider.UnknownGroupError
			if errors.As(err, &unknown) {
				return nil, &UnsupportedGroupError{Token: token, Known: knownGroupNames(ctx)}
			}
			return nil, err
		}
		if !seen[g.ID] {
			seen[g.ID] = true
			ret = append(ret, g)
		}
	}
	return ret, nil
}

func knownGroupNames(ctx *provider.LibContext) []string {
	all := provider.AllGroups(ctx)
	ret := make([]string, 0, len(all))
	for _, g := range all {
		ret = append(ret, g.Name)
	}
	return ret
}

// WithSecurityPolicy is the Option form of Builder.SetSecurityPolicy.
func WithSecurityPolicy(name string) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.SetSecurityPolicy(name) })
}

// WithTrustedPEM is the Option form of Builder.TrustPEM.
func WithTrustedPEM(bundle []byte) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.TrustPEM(bundle) })
}

// WithTrustedFile is the Option form of Builder.TrustFile.
func WithTrustedFile(path string) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.TrustFile(path) })
}

// WithKeyPairPEM is the Option form of Builder.LoadPEM.
func WithKeyPairPEM(certPEM, keyPEM []byte) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.LoadPEM(certPEM, keyPEM) })
}

// WithKeyPairFiles is the Option form of Builder.LoadFiles.
func WithKeyPairFiles(certPath, keyPath string) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.LoadFiles(certPath, keyPath) })
}

// WithGroups is the Option form of Builder.SetGroups.
func WithGroups(names ...string) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.SetGroups(names) })
}

// WithServerName is the Option form of Builder.SetServerName.
func WithServerName(name string) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.SetServerName(name) })
}

// WithHostNameVerifier is the Option form of Builder.SetVerifyHostCallback.
func WithHostNameVerifier(v HostNameVerifier) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.SetVerifyHostCallback(v) })
}

// WithLibContext is the Option form of Builder.SetLibContext.
func WithLibContext(ctx *provider.LibContext) Option {
	return helpers.ConfigOptionFunc[Builder](func(b *Builder) error { return b.SetLibContext(ctx) })
}
