// Package config builds immutable, backend-neutral descriptions of one TLS endpoint: its role,
// security policy, key-exchange groups, trust material, and host-name verification.
//
// Every problem with a configuration is reported when it is built, never during a handshake.
package config
