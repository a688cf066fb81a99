// Package transport abstracts the WebTransport session layer used by
// bistream clients.
//
// The session package talks to the network only through the Dialer, Conn and
// Stream interfaces defined here. WebTransportDialer implements them on top
// of quic-go/webtransport-go; package mem provides an in-process loopback for
// tests.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│    Application messages        │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│  WebTransport bidi streams     │
//	├────────────────────────────────┤
//	│      HTTP/3 (extended CONNECT) │
//	├────────────────────────────────┤
//	│   QUIC + TLS 1.3 (pinned)      │
//	└────────────────────────────────┘
//
// # TLS Requirements
//
// Servers are authenticated by certificate hash pinning only. Chains are
// never built against system roots; the VerifyPeerCertificate callback of
// the client tls.Config is the sole authority.
package transport
