package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestCredentials generates a CA and a client keypair signed by it,
// writes them as PEM files under dir, and returns the three paths.
func writeTestCredentials(t *testing.T, dir string) (caPath, certPath, keyPath string) {
	t.Helper()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-qkd-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, caKey.Public(), caKey)
	require.NoError(t, err)

	clientKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	clientTemplate := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test-qkd-client"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	clientDER, err := x509.CreateCertificate(rand.Reader, clientTemplate, caCert, clientKey.Public(), caKey)
	require.NoError(t, err)

	clientKeyDER, err := x509.MarshalPKCS8PrivateKey(clientKey)
	require.NoError(t, err)

	caPath = filepath.Join(dir, "ca.crt")
	certPath = filepath.Join(dir, "client.crt")
	keyPath = filepath.Join(dir, "client.key")

	require.NoError(t, os.WriteFile(caPath,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER}), 0o600))
	require.NoError(t, os.WriteFile(certPath,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: clientDER}), 0o600))
	require.NoError(t, os.WriteFile(keyPath,
		pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: clientKeyDER}), 0o600))

	return caPath, certPath, keyPath
}

func TestNewCredentialBundle(t *testing.T) {
	bundle, err := NewCredentialBundle("/tmp/ca.crt", "/tmp/client.crt", "/tmp/client.key")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ca.crt", bundle.CACertPath)
	assert.Equal(t, "/tmp/client.crt", bundle.ClientCertPath)
	assert.Equal(t, "/tmp/client.key", bundle.ClientKeyPath)
}

func TestNewCredentialBundle_MissingPath(t *testing.T) {
	cases := []struct {
		name          string
		ca, cert, key string
	}{
		{"missing CA", "", "/tmp/client.crt", "/tmp/client.key"},
		{"missing cert", "/tmp/ca.crt", "", "/tmp/client.key"},
		{"missing key", "/tmp/ca.crt", "/tmp/client.crt", ""},
		{"all missing", "", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bundle, err := NewCredentialBundle(tc.ca, tc.cert, tc.key)
			require.Error(t, err)
			// The bundle must never be partially populated.
			assert.Equal(t, CredentialBundle{}, bundle)
		})
	}
}

func TestCredentialBundle_TLSConfig(t *testing.T) {
	caPath, certPath, keyPath := writeTestCredentials(t, t.TempDir())

	bundle, err := NewCredentialBundle(caPath, certPath, keyPath)
	require.NoError(t, err)

	tlsConfig, err := bundle.TLSConfig()
	require.NoError(t, err)
	assert.NotNil(t, tlsConfig.RootCAs)
	assert.Len(t, tlsConfig.Certificates, 1)
	assert.EqualValues(t, 0x0303, tlsConfig.MinVersion) // TLS 1.2
}

func TestCredentialBundle_TLSConfig_MissingFiles(t *testing.T) {
	dir := t.TempDir()
	bundle := CredentialBundle{
		CACertPath:     filepath.Join(dir, "absent-ca.crt"),
		ClientCertPath: filepath.Join(dir, "absent.crt"),
		ClientKeyPath:  filepath.Join(dir, "absent.key"),
	}

	_, err := bundle.TLSConfig()
	assert.Error(t, err)
}

func TestCredentialBundle_TLSConfig_BadCA(t *testing.T) {
	dir := t.TempDir()
	_, certPath, keyPath := writeTestCredentials(t, dir)

	badCA := filepath.Join(dir, "bad-ca.crt")
	require.NoError(t, os.WriteFile(badCA, []byte("not a certificate"), 0o600))

	bundle := CredentialBundle{CACertPath: badCA, ClientCertPath: certPath, ClientKeyPath: keyPath}
	_, err := bundle.TLSConfig()
	assert.ErrorContains(t, err, "no valid CA certificates")
}
