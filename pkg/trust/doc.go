// Package trust implements certificate pinning for WebTransport sessions.
//
// A Descriptor is an explicit allow-list of server certificate hashes. It
// replaces system CA validation entirely: the peer is accepted if and only if
// the SHA-256 digest of its leaf certificate (DER) equals one of the entries.
//
// # Wire Format
//
// Descriptors are exchanged as a flat byte buffer holding a concatenation of
// fixed-length hash entries:
//
//	┌──────────────────┬──────────────────┬─────┐
//	│ SHA-256 (32 B)   │ SHA-256 (32 B)   │ ... │
//	└──────────────────┴──────────────────┴─────┘
//
// The hash algorithm and entry length are constants of this package. A buffer
// whose length is not a multiple of HashSize is rejected with ErrTrustConfig.
//
// # Textual Digests
//
// ParseDigest accepts the notations commonly printed by servers:
//
//	3f1a...e2                  plain hex
//	3F:1A:...:E2               colon separated hex
//	[63, 26, ..., 226]         byte array
package trust
