// Package itest runs interop checks as a tree of named test scopes. It resembles Go's testing
// package but runs as regular application code, so a command-line tool can filter, annotate and
// report on the checks it performs.
package itest
