package config

import (
	"crypto/tls"

	"github.com/pqinterop/tls-interop-harness/framework/helpers"

	"golang.org/x/exp/maps"
)

// DefaultPolicyName is used when no policy is selected.
const DefaultPolicyName = "default_tls13"

// Policy is a named security policy preset: a protocol version range and the groups used when
// no explicit group list is given.
type Policy struct {
	Name       string
	MinVersion uint16
	MaxVersion uint16
	Groups     []string
}

var policies = map[string]Policy{ //nolint:gochecknoglobals
	"default": {
		Name:       "default",
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
		Groups:     []string{"X25519", "P-256", "P-384"},
	},
	"compat_tls12": {
		Name:       "compat_tls12",
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
		Groups:     []string{"X25519", "P-256", "P-384"},
	},
	"default_tls13": {
		Name:       "default_tls13",
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
		Groups:     []string{"X25519", "P-256", "P-384"},
	},
	"default_pq": {
		Name:       "default_pq",
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
		Groups:     []string{"X25519MLKEM768", "X25519", "P-256"},
	},
	"pq_only": {
		Name:       "pq_only",
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,
		Groups:     []string{"X25519MLKEM768"},
	},
}

// LookupPolicy returns the named policy.
func LookupPolicy(name string) (Policy, error) {
	p, ok := policies[name]
	if !ok {
		return Policy{}, &UnknownPolicyError{Name: name}
	}
	p.Groups = append([]string(nil), p.Groups...)
	return p, nil
}

// PolicyNames returns the names of all policies in sorted order.
func PolicyNames() []string {
	return helpers.Sorted(maps.Keys(policies))
}
