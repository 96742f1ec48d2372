// Package transport carries handshake bytes between two connection ends, either through an
// in-memory duplex with non-blocking reads or through a loopback TCP connection.
package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrWouldBlock is returned by a non-blocking end when a read finds no bytes, or a write finds
	// the peer's inbound buffer at its flow-control ceiling. It is recoverable.
	ErrWouldBlock = errors.New("transport operation would block")

	// ErrClosed is returned by every operation on a closed end, and by writes toward a closed
	// peer. It is fatal to the pair.
	ErrClosed = errors.New("transport end is closed")
)

// Kind selects a transport model.
type Kind string

const (
	KindMemory Kind = "memory"
	KindSocket Kind = "socket"
)

// ParseKind accepts "memory" or "socket".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMemory, KindSocket:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown transport %q (must be %q or %q)", s, KindMemory, KindSocket)
	}
}

// End is one end of a transport. An End is used by exactly one connection.
type End interface {
	// Read drains available inbound bytes. A non-blocking end returns ErrWouldBlock when none are
	// available; a blocking end waits for at least one byte. io.EOF means the peer closed.
	Read(p []byte) (int, error)
	// Write sends bytes to the peer. A non-blocking end may accept only part of p, returning the
	// count accepted with ErrWouldBlock.
	Write(p []byte) (int, error)
	// Close is terminal. Closing twice is harmless.
	Close() error
	// Blocking reports whether Read and Write suspend the caller instead of returning
	// ErrWouldBlock.
	Blocking() bool
	// Name identifies the end in diagnostics.
	Name() string
}
