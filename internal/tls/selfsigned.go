package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"
)

// DefaultValidity is used when CertRequest.ValidFor is zero.
const DefaultValidity = 365 * 24 * time.Hour

// CertRequest describes the development certificate the server listens with.
type CertRequest struct {
	CertFile string
	KeyFile  string
	Hosts    []string
	ValidFor time.Duration
}

func (r CertRequest) validity() time.Duration {
	if r.ValidFor <= 0 {
		return DefaultValidity
	}
	return r.ValidFor
}

// EnsureCertificate makes sure a usable certificate exists at req.CertFile.
// A missing or expired certificate is replaced by a fresh self-signed pair
// covering req.Hosts. It reports whether a new pair was written.
func EnsureCertificate(req CertRequest) (bool, error) {
	if req.CertFile == "" || req.KeyFile == "" {
		return false, errors.New("tls: cert_file and key_file are required")
	}

	now := time.Now()
	existing, err := readCertificate(req.CertFile)
	switch {
	case err == nil && now.Before(existing.NotAfter):
		return false, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return false, err
	}

	if len(req.Hosts) == 0 {
		return false, fmt.Errorf("tls: %s needs (re)generating and no hostnames are configured", req.CertFile)
	}
	if err := writeSelfSigned(req, now); err != nil {
		return false, err
	}
	return true, nil
}

func readCertificate(path string) (*x509.Certificate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tls: read %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("tls: %s holds no PEM certificate", path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("tls: parse %s: %w", path, err)
	}
	return cert, nil
}

// writeSelfSigned issues a P-256 certificate valid from now for the request's
// validity and overwrites both files.
func writeSelfSigned(req CertRequest, now time.Time) error {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("tls: generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("tls: serial number: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"Nodebase Dev"},
			CommonName:   req.Hosts[0],
		},
		// tolerate small clock skew between the server and local clients
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(req.validity()),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range req.Hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
			continue
		}
		tmpl.DNSNames = append(tmpl.DNSNames, h)
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("tls: create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("tls: marshal key: %w", err)
	}

	if err := writePEM(req.KeyFile, 0o600, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}); err != nil {
		return err
	}
	return writePEM(req.CertFile, 0o644, &pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func writePEM(path string, perm os.FileMode, block *pem.Block) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("tls: open %s: %w", path, err)
	}
	if err := pem.Encode(f, block); err != nil {
		_ = f.Close()
		return fmt.Errorf("tls: write %s: %w", path, err)
	}
	return f.Close()
}
