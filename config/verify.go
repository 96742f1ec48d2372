package config

import (
	"crypto/x509"
	"errors"
)

// HostNameVerifier decides whether a verified peer identity is acceptable. It is called
// synchronously, exactly once per successful chain verification, and must not call back into
// the connection.
type HostNameVerifier interface {
	VerifyHostName(hostName string) bool
}

// HostNameVerifierFunc adapts a function to HostNameVerifier.
type HostNameVerifierFunc func(hostName string) bool

func (f HostNameVerifierFunc) VerifyHostName(hostName string) bool { return f(hostName) }

// ExpectHostName returns a verifier that accepts only the given name.
func ExpectHostName(name string) HostNameVerifier {
	return HostNameVerifierFunc(func(hostName string) bool { return hostName == name })
}

// VerifyPeer checks a peer's certificate chain, as presented on the wire, against this
// configuration's trusted roots.
//
// With a HostNameVerifier, the chain is verified without a host name and the leaf's identity
// (first DNS name, or common name) is passed to the verifier. Without one, the chain is verified
// for ServerName.
func (c *ConnectionConfig) VerifyPeer(rawCerts [][]byte) error {
	if len(rawCerts) == 0 {
		return errors.New("peer presented no certificate")
	}
	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return err
		}
		certs = append(certs, cert)
	}
	opts := x509.VerifyOptions{
		Roots:         c.roots,
		Intermediates: x509.NewCertPool(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	for _, cert := range certs[1:] {
		opts.Intermediates.AddCert(cert)
	}
	if c.verifier == nil {
		opts.DNSName = c.serverName
	}
	if _, err := certs[0].Verify(opts); err != nil {
		return err
	}
	if c.verifier != nil {
		name := peerIdentity(certs[0])
		if !c.verifier.VerifyHostName(name) {
			return &HostNameRejectedError{Name: name}
		}
	}
	return nil
}

func peerIdentity(cert *x509.Certificate) string {
	if len(cert.DNSNames) > 0 {
		return cert.DNSNames[0]
	}
	return cert.Subject.CommonName
}
