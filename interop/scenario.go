package interop

import (
	"fmt"
	"strings"

	"github.com/pqinterop/tls-interop-harness/certs"
	"github.com/pqinterop/tls-interop-harness/config"
	"github.com/pqinterop/tls-interop-harness/framework/harness"
)

// Names of the trust material and identities a scenario can refer to.
const (
	MaterialLeaf  = "leaf"
	MaterialOther = "other"
	MaterialNone  = "none"
)

// EndpointSpec describes one side of a scenario in terms that can be written in a data file.
type EndpointSpec struct {
	Backend string   `json:"backend"`
	Policy  string   `json:"policy,omitempty"`
	Groups  []string `json:"groups,omitempty"`

	// Trust selects the roots a client trusts: "leaf" (default), "other", or "none".
	Trust string `json:"trust,omitempty"`
	// Identity selects the certificate a server presents: "leaf" (default) or "other".
	Identity string `json:"identity,omitempty"`

	ServerName string `json:"serverName,omitempty"`
	// ExpectHostName installs a host-name verifier that accepts only this name.
	ExpectHostName string `json:"expectHostName,omitempty"`
}

func (s EndpointSpec) String() string {
	desc := s.Backend
	if len(s.Groups) != 0 {
		desc += "[" + strings.Join(s.Groups, ",") + "]"
	} else if s.Policy != "" {
		desc += "{" + s.Policy + "}"
	}
	return desc
}

// Scenario is one client/server combination and the result it must produce.
type Scenario struct {
	Name   string       `json:"name"`
	Client EndpointSpec `json:"client"`
	Server EndpointSpec `json:"server"`
	Expect Expectation  `json:"expect"`

	// KnownIssue, if set, reports a failure of this scenario separately instead of failing the run.
	KnownIssue string `json:"knownIssue,omitempty"`
}

func (s Scenario) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("%s vs %s", s.Client, s.Server)
}

// Endpoints resolves both sides against the registry and builds their configs. Any error here is
// a configuration error and means the scenario itself is invalid.
func (s Scenario) Endpoints(registry *Registry) (client, server harness.Endpoint, err error) {
	client, err = s.Client.endpoint(registry, config.RoleClient)
	if err != nil {
		return client, server, fmt.Errorf("client: %w", err)
	}
	server, err = s.Server.endpoint(registry, config.RoleServer)
	if err != nil {
		return client, server, fmt.Errorf("server: %w", err)
	}
	return client, server, nil
}

func (s EndpointSpec) endpoint(registry *Registry, role config.Role) (harness.Endpoint, error) {
	b, err := registry.Lookup(s.Backend)
	if err != nil {
		return harness.Endpoint{}, err
	}
	opts, err := s.options(role)
	if err != nil {
		return harness.Endpoint{}, err
	}
	cfg, err := config.New(role, opts...)
	if err != nil {
		return harness.Endpoint{}, err
	}
	return harness.Endpoint{Backend: b, Config: cfg}, nil
}

func (s EndpointSpec) options(role config.Role) ([]config.Option, error) {
	var opts []config.Option
	if s.Policy != "" {
		opts = append(opts, config.WithSecurityPolicy(s.Policy))
	}
	if len(s.Groups) != 0 {
		opts = append(opts, config.WithGroups(s.Groups...))
	}
	if s.ServerName != "" {
		opts = append(opts, config.WithServerName(s.ServerName))
	}
	if s.ExpectHostName != "" {
		opts = append(opts, config.WithHostNameVerifier(config.ExpectHostName(s.ExpectHostName)))
	}

	if role == config.RoleClient {
		if s.Identity != "" {
			return nil, fmt.Errorf("a client cannot present an identity (%q)", s.Identity)
		}
		switch s.Trust {
		case "", MaterialLeaf:
			opts = append(opts, config.WithTrustedPEM(certs.LeafCertPEM()))
		case MaterialOther:
			opts = append(opts, config.WithTrustedPEM(certs.OtherCertPEM()))
		case MaterialNone:
		default:
			return nil, fmt.Errorf("unknown trust material %q", s.Trust)
		}
		return opts, nil
	}

	if s.Trust != "" {
		return nil, fmt.Errorf("a server does not verify its peer (trust %q)", s.Trust)
	}
	switch s.Identity {
	case "", MaterialLeaf:
		opts = append(opts, config.WithKeyPairPEM(certs.LeafCertPEM(), certs.LeafKeyPEM()))
	case MaterialOther:
		opts = append(opts, config.WithKeyPairPEM(certs.OtherCertPEM(), certs.OtherKeyPEM()))
	default:
		return nil, fmt.Errorf("unknown identity %q", s.Identity)
	}
	return opts, nil
}
