package trust

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"
)

// MaxPinnedValidity is the longest validity period a hash-pinned certificate
// may have for WebTransport clients that enforce the browser rules.
const MaxPinnedValidity = 14 * 24 * time.Hour

// SelfSigned generates an ECDSA P-256 self-signed identity for the given
// host names and IP addresses. The certificate is valid for slightly less than
// MaxPinnedValidity.
func SelfSigned(hosts ...string) (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "bistream self-signed"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(MaxPinnedValidity - time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("parse certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// IdentityHash returns the descriptor digest of an identity's leaf certificate.
func IdentityHash(cert tls.Certificate) ([HashSize]byte, error) {
	if len(cert.Certificate) == 0 {
		return [HashSize]byte{}, fmt.Errorf("identity has no certificate")
	}
	return Fingerprint(cert.Certificate[0]), nil
}
