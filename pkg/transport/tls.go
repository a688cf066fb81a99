package transport

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"github.com/quic-go/quic-go/http3"
)

// ALPNProtocol is the negotiated application protocol (HTTP/3).
const ALPNProtocol = http3.NextProtoH3

// DefaultPort is the default port of the echo server.
const DefaultPort = 3030

// VerifyFunc matches tls.Config.VerifyPeerCertificate.
type VerifyFunc func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

// NewClientTLSConfig creates a client TLS configuration whose only trust
// decision is verify. Chain and hostname verification are disabled.
func NewClientTLSConfig(serverName string, verify VerifyFunc) (*tls.Config, error) {
	if verify == nil {
		return nil, fmt.Errorf("certificate verification callback is required")
	}

	return &tls.Config{
		// TLS 1.3 only - QUIC requires it
		MinVersion: tls.VersionTLS13,
		MaxVersion: tls.VersionTLS13,

		ServerName: serverName,
		NextProtos: []string{ALPNProtocol},

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		// No resumption: every session re-verifies the pinned hash
		SessionTicketsDisabled: true,

		// Pinning replaces chain building
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verify,
	}, nil
}

// NewServerTLSConfig creates the TLS configuration of a WebTransport server.
func NewServerTLSConfig(cert tls.Certificate) (*tls.Config, error) {
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("server certificate is required")
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS13,
		MaxVersion:   tls.VersionTLS13,
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPNProtocol},
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},
		VerifyConnection: VerifyTLS13,
	}, nil
}

// VerifyTLS13 checks that a handshake negotiated TLS 1.3.
func VerifyTLS13(state tls.ConnectionState) error {
	if state.Version != tls.VersionTLS13 {
		return fmt.Errorf("TLS version %x is not TLS 1.3 (0x0304)", state.Version)
	}
	return nil
}
