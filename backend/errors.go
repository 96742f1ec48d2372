package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a handshake failure.
type ErrorKind int

const (
	// NegotiationFailure means the peers had no group, cipher suite, or version in common.
	NegotiationFailure ErrorKind = iota + 1
	// VerificationFailure means a certificate chain or host-name check rejected the peer.
	VerificationFailure
	// HandshakeStalled means neither side could make progress before the round limit.
	HandshakeStalled
	// BackendFault is any other failure inside a TLS stack or the transport.
	BackendFault
)

func (k ErrorKind) String() string {
	switch k {
	case NegotiationFailure:
		return "NegotiationFailure"
	case VerificationFailure:
		return "VerificationFailure"
	case HandshakeStalled:
		return "HandshakeStalled"
	case BackendFault:
		return "BackendFault"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Sentinels for errors.Is against a *HandshakeError of the corresponding kind.
var (
	ErrNegotiationFailure  = errors.New("negotiation failure")
	ErrVerificationFailure = errors.New("verification failure")
	ErrHandshakeStalled    = errors.New("handshake stalled")
	ErrBackendFault        = errors.New("backend fault")
)

var (
	// ErrNoExecutableGroup is the cause of a NegotiationFailure raised before any bytes are sent,
	// when none of the configured groups can be executed by the backend.
	ErrNoExecutableGroup = errors.New("none of the configured groups can be executed by this backend")

	// ErrSharedGroupNotExecutable is the cause of a BackendFault reported for a pair whose configs
	// share a group that the failing backend cannot execute. It is not a negotiation failure: the
	// two sides would agree if the stack implemented the group.
	ErrSharedGroupNotExecutable = errors.New("groups configured on both sides cannot be executed")

	ErrNotStarted     = errors.New("connection has not been started")
	ErrAlreadyStarted = errors.New("connection has already been started")
)

// HandshakeError describes why a handshake did not reach Established.
type HandshakeError struct {
	Kind ErrorKind
	// Side is "client", "server", or empty when the failure belongs to the pair.
	Side    string
	Backend Kind
	Err     error
}

func (e *HandshakeError) Error() string {
	prefix := "handshake"
	if e.Side != "" {
		prefix = fmt.Sprintf("%s (%s) handshake", e.Side, e.Backend)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s failed: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s failed: %s: %s", prefix, e.Kind, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func (e *HandshakeError) Is(target error) bool {
	switch e.Kind {
	case NegotiationFailure:
		return target == ErrNegotiationFailure
	case VerificationFailure:
		return target == ErrVerificationFailure
	case HandshakeStalled:
		return target == ErrHandshakeStalled
	case BackendFault:
		return target == ErrBackendFault
	}
	return false
}

// KindOf returns the ErrorKind of a *HandshakeError anywhere in err's chain, or zero.
func KindOf(err error) ErrorKind {
	var he *HandshakeError
	if errors.As(err, &he) {
		return he.Kind
	}
	return 0
}
