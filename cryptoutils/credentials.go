// Package cryptoutils provides the cryptographic primitives used by the QKD
// client: TLS credential bundles for mutual authentication against KMEs and
// the opaque key material container with zero-on-release semantics.
package cryptoutils

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// CredentialBundle holds the TLS credential paths for one QKD link endpoint.
// A bundle is either fully populated or unusable: all three paths are
// required for mutual TLS against a KME.
type CredentialBundle struct {
	// CACertPath is the PEM file with the CA certificate(s) that signed the
	// KME's server certificate.
	CACertPath string

	// ClientCertPath is the PEM file with this endpoint's client certificate.
	ClientCertPath string

	// ClientKeyPath is the PEM file with the private key matching
	// ClientCertPath.
	ClientKeyPath string
}

// NewCredentialBundle creates a bundle with validation. It fails if any of
// the three paths is empty, so a bundle value is never partially populated.
func NewCredentialBundle(caCertPath, clientCertPath, clientKeyPath string) (CredentialBundle, error) {
	bundle := CredentialBundle{
		CACertPath:     caCertPath,
		ClientCertPath: clientCertPath,
		ClientKeyPath:  clientKeyPath,
	}
	if err := bundle.Validate(); err != nil {
		return CredentialBundle{}, err
	}
	return bundle, nil
}

// Validate checks that all three credential paths are set.
func (b CredentialBundle) Validate() error {
	if b.CACertPath == "" {
		return errors.New("CA certificate path is not set")
	}
	if b.ClientCertPath == "" {
		return errors.New("client certificate path is not set")
	}
	if b.ClientKeyPath == "" {
		return errors.New("client key path is not set")
	}
	return nil
}

// TLSConfig loads the credentials from disk and builds a mutual-TLS client
// configuration: the CA pool for verifying the KME's server certificate and
// the client keypair presented during the handshake.
func (b CredentialBundle) TLSConfig() (*tls.Config, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	caPEM, err := os.ReadFile(b.CACertPath)
	if err != nil {
		return nil, fmt.Errorf("could not read CA certificate %s: %w", b.CACertPath, err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no valid CA certificates in %s", b.CACertPath)
	}

	clientCert, err := tls.LoadX509KeyPair(b.ClientCertPath, b.ClientKeyPath)
	if err != nil {
		return nil, fmt.Errorf("could not load client keypair: %w", err)
	}

	return &tls.Config{
		RootCAs:      caPool,
		Certificates: []tls.Certificate{clientCert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
