package config

import (
	"crypto/x509"
	"testing"

	"github.com/pqinterop/tls-interop-harness/certs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serverChain(t *testing.T, certPEM, keyPEM []byte) [][]byte {
	s, err := New(RoleServer, WithKeyPairPEM(certPEM, keyPEM))
	require.NoError(t, err)
	return s.CertificateChain()
}

func TestVerifyPeerWithCallback(t *testing.T) {
	var seen []string
	verifier := HostNameVerifierFunc(func(name string) bool {
		seen = append(seen, name)
		return name == certs.LeafHostName
	})
	c := makeClient(t, WithHostNameVerifier(verifier))

	require.NoError(t, c.VerifyPeer(serverChain(t, certs.LeafCertPEM(), certs.LeafKeyPEM())))
	assert.Equal(t, []string{certs.LeafHostName}, seen)
}

func TestVerifyPeerCallbackRejection(t *testing.T) {
	c := makeClient(t, WithHostNameVerifier(ExpectHostName("example.org")))
	err := c.VerifyPeer(serverChain(t, certs.LeafCertPEM(), certs.LeafKeyPEM()))
	assert.ErrorIs(t, err, ErrHostNameRejected)
	var hre *HostNameRejectedError
	require.ErrorAs(t, err, &hre)
	assert.Equal(t, certs.LeafHostName, hre.Name)
}

func TestVerifyPeerCallbackNotCalledForUntrustedChain(t *testing.T) {
	calls := 0
	c := makeClient(t, WithHostNameVerifier(HostNameVerifierFunc(func(string) bool {
		calls++
		return true
	})))
	err := c.VerifyPeer(serverChain(t, certs.OtherCertPEM(), certs.OtherKeyPEM()))
	var uae x509.UnknownAuthorityError
	assert.ErrorAs(t, err, &uae)
	assert.Equal(t, 0, calls)
}

func TestVerifyPeerDefaultHostName(t *testing.T) {
	chain := serverChain(t, certs.LeafCertPEM(), certs.LeafKeyPEM())

	require.NoError(t, makeClient(t).VerifyPeer(chain))
	require.NoError(t, makeClient(t, WithServerName(certs.LeafHostName)).VerifyPeer(chain))

	err := makeClient(t, WithServerName("example.org")).VerifyPeer(chain)
	var he x509.HostnameError
	assert.ErrorAs(t, err, &he)
}

func TestVerifyPeerWithoutCertificate(t *testing.T) {
	assert.Error(t, makeClient(t).VerifyPeer(nil))
	assert.Error(t, makeClient(t).VerifyPeer([][]byte{{1, 2, 3}}))
}
