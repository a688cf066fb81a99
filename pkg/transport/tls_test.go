package transport

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"slices"
	"testing"

	"github.com/bistream/bistream-go/pkg/trust"
)

func TestNewClientTLSConfig(t *testing.T) {
	errNope := errors.New("nope")
	called := false
	verify := func([][]byte, [][]*x509.Certificate) error {
		called = true
		return errNope
	}

	conf, err := NewClientTLSConfig("localhost", verify)
	if err != nil {
		t.Fatalf("NewClientTLSConfig failed: %v", err)
	}

	if conf.MinVersion != tls.VersionTLS13 || conf.MaxVersion != tls.VersionTLS13 {
		t.Errorf("versions = %x..%x, want TLS 1.3 only", conf.MinVersion, conf.MaxVersion)
	}
	if !slices.Equal(conf.NextProtos, []string{ALPNProtocol}) {
		t.Errorf("NextProtos = %v, want [%s]", conf.NextProtos, ALPNProtocol)
	}
	if conf.ServerName != "localhost" {
		t.Errorf("ServerName = %q", conf.ServerName)
	}
	if !conf.InsecureSkipVerify {
		t.Error("chain verification must be replaced by the callback")
	}
	if conf.RootCAs != nil {
		t.Error("RootCAs must not be set")
	}
	if !conf.SessionTicketsDisabled {
		t.Error("session tickets must be disabled")
	}

	if err := conf.VerifyPeerCertificate(nil, nil); !errors.Is(err, errNope) || !called {
		t.Errorf("VerifyPeerCertificate did not run the callback: %v", err)
	}
}

func TestNewClientTLSConfigRequiresCallback(t *testing.T) {
	if _, err := NewClientTLSConfig("localhost", nil); err == nil {
		t.Error("expected error without callback")
	}
}

func TestNewServerTLSConfig(t *testing.T) {
	cert, err := trust.SelfSigned("localhost")
	if err != nil {
		t.Fatal(err)
	}

	conf, err := NewServerTLSConfig(cert)
	if err != nil {
		t.Fatalf("NewServerTLSConfig failed: %v", err)
	}
	if conf.MinVersion != tls.VersionTLS13 {
		t.Errorf("MinVersion = %x, want TLS 1.3", conf.MinVersion)
	}
	if len(conf.Certificates) != 1 {
		t.Errorf("got %d certificates, want 1", len(conf.Certificates))
	}
	if conf.VerifyConnection == nil {
		t.Error("VerifyConnection not set")
	}

	if _, err := NewServerTLSConfig(tls.Certificate{}); err == nil {
		t.Error("expected error without certificate")
	}
}

func TestVerifyTLS13(t *testing.T) {
	tests := []struct {
		version uint16
		wantErr bool
	}{
		{tls.VersionTLS13, false},
		{tls.VersionTLS12, true},
		{0, true},
	}
	for _, tt := range tests {
		err := VerifyTLS13(tls.ConnectionState{Version: tt.version})
		if (err != nil) != tt.wantErr {
			t.Errorf("VerifyTLS13(%x) error = %v, wantErr %v", tt.version, err, tt.wantErr)
		}
	}
}
