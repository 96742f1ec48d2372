// Package certs embeds the PEM trust material used by the interop scenarios.
//
// The "leaf" pair is a self-signed ECDSA P-256 certificate for foobar.com, localhost, and
// 127.0.0.1; it doubles as its own trust root. The "other" pair is an unrelated self-signed
// certificate used to exercise untrusted-peer and key-mismatch paths.
package certs

import (
	_ "embed" // this is required in order for go:embed to work
	"fmt"
	"os"
	"path/filepath"
)

//go:embed pem/leaf_public.pem
var leafCertPEM []byte

//go:embed pem/leaf_private.pem
var leafKeyPEM []byte

//go:embed pem/other_public.pem
var otherCertPEM []byte

//go:embed pem/other_private.pem
var otherKeyPEM []byte

// LeafHostName is the first DNS name in the leaf certificate.
const LeafHostName = "foobar.com"

func LeafCertPEM() []byte  { return clone(leafCertPEM) }
func LeafKeyPEM() []byte   { return clone(leafKeyPEM) }
func OtherCertPEM() []byte { return clone(otherCertPEM) }
func OtherKeyPEM() []byte  { return clone(otherKeyPEM) }

// Files is the set of paths produced by ExportToDir.
type Files struct {
	LeafCert  string
	LeafKey   string
	OtherCert string
	OtherKey  string
}

// ExportToDir writes the embedded PEM files into dir, for code paths that load trust material
// from the filesystem.
func ExportToDir(dir string) (Files, error) {
	files := Files{
		LeafCert:  filepath.Join(dir, "leaf_public.pem"),
		LeafKey:   filepath.Join(dir, "leaf_private.pem"),
		OtherCert: filepath.Join(dir, "other_public.pem"),
		OtherKey:  filepath.Join(dir, "other_private.pem"),
	}
	for path, data := range map[string][]byte{
		files.LeafCert:  leafCertPEM,
		files.LeafKey:   leafKeyPEM,
		files.OtherCert: otherCertPEM,
		files.OtherKey:  otherKeyPEM,
	} {
		if err := os.WriteFile(path, data, 0600); err != nil {
			return Files{}, fmt.Errorf("can't write certificate file %s: %w", path, err)
		}
	}
	return files, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
