package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, hosts ...string) CertRequest {
	dir := t.TempDir()
	return CertRequest{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
		Hosts:    hosts,
	}
}

func loadLeaf(t *testing.T, req CertRequest) *x509.Certificate {
	pair, err := cryptotls.LoadX509KeyPair(req.CertFile, req.KeyFile)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	return leaf
}

func TestEnsureCertificate_GeneratesOnce(t *testing.T) {
	req := newRequest(t, "localhost", "127.0.0.1")

	generated, err := EnsureCertificate(req)
	require.NoError(t, err)
	assert.True(t, generated)

	leaf := loadLeaf(t, req)
	assert.Equal(t, "localhost", leaf.Subject.CommonName)
	assert.Contains(t, leaf.DNSNames, "localhost")
	require.Len(t, leaf.IPAddresses, 1)
	assert.Equal(t, "127.0.0.1", leaf.IPAddresses[0].String())
	assert.WithinDuration(t, leaf.NotBefore.Add(DefaultValidity), leaf.NotAfter, 2*time.Minute)

	generated, err = EnsureCertificate(req)
	require.NoError(t, err)
	assert.False(t, generated)
}

func TestEnsureCertificate_HonoursValidity(t *testing.T) {
	req := newRequest(t, "dev.local")
	req.ValidFor = 72 * time.Hour

	_, err := EnsureCertificate(req)
	require.NoError(t, err)

	leaf := loadLeaf(t, req)
	assert.WithinDuration(t, time.Now().Add(72*time.Hour), leaf.NotAfter, time.Minute)
}

func TestEnsureCertificate_ReplacesExpired(t *testing.T) {
	req := newRequest(t, "localhost")
	req.ValidFor = time.Hour
	require.NoError(t, writeSelfSigned(req, time.Now().Add(-48*time.Hour)))
	expired := loadLeaf(t, req)

	generated, err := EnsureCertificate(req)
	require.NoError(t, err)
	assert.True(t, generated)

	fresh := loadLeaf(t, req)
	assert.NotEqual(t, expired.SerialNumber, fresh.SerialNumber)
	assert.True(t, time.Now().Before(fresh.NotAfter))
}

func TestEnsureCertificate_Errors(t *testing.T) {
	t.Run("no hostnames for a missing cert", func(t *testing.T) {
		_, err := EnsureCertificate(newRequest(t))
		assert.Error(t, err)
	})

	t.Run("paths required", func(t *testing.T) {
		_, err := EnsureCertificate(CertRequest{Hosts: []string{"localhost"}})
		assert.Error(t, err)
	})

	t.Run("unreadable certificate is not overwritten", func(t *testing.T) {
		req := newRequest(t, "localhost")
		require.NoError(t, os.WriteFile(req.CertFile, []byte("not a certificate"), 0o644))

		_, err := EnsureCertificate(req)
		assert.Error(t, err)

		raw, err := os.ReadFile(req.CertFile)
		require.NoError(t, err)
		assert.Equal(t, "not a certificate", string(raw))
	})
}
