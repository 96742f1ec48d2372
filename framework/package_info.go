// Package framework holds the pieces of the interop harness that do not depend on any particular
// TLS stack: the Logger interface and its implementations, and the Capabilities list that a
// backend reports about itself.
//
// Subpackages:
//
//   - itest runs named, nested test scopes and collects their results, much like Go's testing
//     package but as ordinary application code.
//   - harness drives a pair of connections through a handshake over a chosen transport.
//   - helpers contains small generic utilities shared by the others.
package framework
