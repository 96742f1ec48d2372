package backend

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"strings"
	"syscall"

	"github.com/pqinterop/tls-interop-harness/backend/internal/wire"
	"github.com/pqinterop/tls-interop-harness/config"
)

// TLS stacks report most negotiation problems only as error text, so classification falls back
// to matching the messages (and peer alert descriptions) that crypto/tls and its forks produce.
var negotiationMessages = []string{ //nolint:gochecknoglobals
	"no ECDHE curve supported by both client and server",
	"no key exchanges supported by both client and server",
	"no mutually supported group",
	"no cipher suite supported by both client and server",
	"no mutual cipher suite",
	"client offered only unsupported versions",
	"server selected unsupported protocol version",
	"server selected unsupported group",
	"CurvePreferences includes unsupported curve",
	"no supported elliptic curves",
	"remote error: tls: handshake failure",
	"remote error: tls: insufficient security",
	"remote error: tls: protocol version not supported",
}

var verificationMessages = []string{ //nolint:gochecknoglobals
	"remote error: tls: bad certificate",
	"remote error: tls: unsupported certificate",
	"remote error: tls: revoked certificate",
	"remote error: tls: expired certificate",
	"remote error: tls: unknown certificate",
	"remote error: tls: unknown certificate authority",
	"remote error: tls: certificate required",
	"remote error: tls: access denied",
	"x509: ",
}

// Classify maps an error from a TLS stack to a HandshakeError. A nil error yields nil.
func Classify(err error) *HandshakeError {
	if err == nil {
		return nil
	}
	var he *HandshakeError
	if errors.As(err, &he) {
		return he
	}
	return &HandshakeError{Kind: classifyKind(err), Err: err}
}

// classifyWithSentAlert is Classify for a failure that the local stack reported after sending
// the given plaintext alert. When the error text is not recognized, the alert decides.
func classifyWithSentAlert(err error, description uint8, sent bool) *HandshakeError {
	he := Classify(err)
	if he == nil || he.Kind != BackendFault || !sent || IsPeerReported(err) {
		return he
	}
	switch description {
	case wire.AlertHandshakeFailure, wire.AlertInsufficientSecurity, wire.AlertProtocolVersion:
		return &HandshakeError{Kind: NegotiationFailure, Err: err}
	case wire.AlertBadCertificate, wire.AlertUnsupportedCertificate, wire.AlertCertificateUnknown,
		wire.AlertUnknownCA:
		return &HandshakeError{Kind: VerificationFailure, Err: err}
	}
	return he
}

func classifyKind(err error) ErrorKind {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
		verification     *tls.CertificateVerificationError
	)
	switch {
	case errors.Is(err, ErrNoExecutableGroup):
		return NegotiationFailure
	case errors.Is(err, config.ErrHostNameRejected),
		errors.As(err, &unknownAuthority),
		errors.As(err, &hostname),
		errors.As(err, &invalid),
		errors.As(err, &verification):
		return VerificationFailure
	}
	msg := err.Error()
	for _, m := range verificationMessages {
		if strings.Contains(msg, m) {
			return VerificationFailure
		}
	}
	for _, m := range negotiationMessages {
		if strings.Contains(msg, m) {
			return NegotiationFailure
		}
	}
	return BackendFault
}

// IsPeerReported reports whether err describes something the peer told us about (an alert or a
// hang-up or reset) rather than a failure detected locally.
func IsPeerReported(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) ||
		strings.Contains(err.Error(), "remote error:")
}
