package config

import (
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

type keyPair struct {
	chain [][]byte
	key   crypto.PrivateKey
	leaf  *x509.Certificate
}

func parseKeyPair(source string, certPEM, keyPEM []byte) (keyPair, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return keyPair{}, &TrustMaterialError{Source: source, Err: err}
	}
	leaf := cert.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return keyPair{}, &TrustMaterialError{Source: source, Err: err}
		}
	}
	return keyPair{chain: cert.Certificate, key: cert.PrivateKey, leaf: leaf}, nil
}

// parseRoots decodes every CERTIFICATE block in data. Unlike CertPool.AppendCertsFromPEM it
// reports malformed input instead of skipping it.
func parseRoots(source string, data []byte) ([]*x509.Certificate, error) {
	var ret []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			return nil, &TrustMaterialError{Source: source, Err: fmt.Errorf("unexpected PEM block type %q", block.Type)}
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, &TrustMaterialError{Source: source, Err: err}
		}
		ret = append(ret, cert)
	}
	if len(ret) == 0 {
		return nil, &TrustMaterialError{Source: source, Err: errors.New("no PEM certificates found")}
	}
	return ret, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, &TrustMaterialError{Source: path, Err: err}
	}
	return data, nil
}
