package trust

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"errors"
	"fmt"
)

// HashSize is the length of one descriptor entry (SHA-256).
const HashSize = sha256.Size

// HashAlgorithm names the digest used for every entry.
const HashAlgorithm = "sha-256"

// Trust errors.
var (
	// ErrTrustConfig indicates a malformed trust descriptor buffer.
	ErrTrustConfig = errors.New("invalid trust descriptor")

	// ErrUntrustedCertificate indicates the peer certificate matched no entry.
	ErrUntrustedCertificate = errors.New("untrusted certificate")
)

// Descriptor is an immutable, ordered list of acceptable certificate hashes.
// The zero value is a valid empty descriptor that trusts nothing.
type Descriptor struct {
	hashes [][HashSize]byte
}

// Parse builds a Descriptor from a concatenation of HashSize-byte entries.
func Parse(buf []byte) (Descriptor, error) {
	if len(buf)%HashSize != 0 {
		return Descriptor{}, fmt.Errorf("%w: length %d is not a multiple of %d",
			ErrTrustConfig, len(buf), HashSize)
	}

	d := Descriptor{hashes: make([][HashSize]byte, 0, len(buf)/HashSize)}
	for off := 0; off < len(buf); off += HashSize {
		var h [HashSize]byte
		copy(h[:], buf[off:off+HashSize])
		d.hashes = append(d.hashes, h)
	}
	return d, nil
}

// New builds a Descriptor from individual digests.
func New(hashes ...[HashSize]byte) Descriptor {
	d := Descriptor{hashes: make([][HashSize]byte, len(hashes))}
	copy(d.hashes, hashes)
	return d
}

// Len returns the number of entries.
func (d Descriptor) Len() int {
	return len(d.hashes)
}

// Hashes returns copies of all entries in order.
func (d Descriptor) Hashes() [][]byte {
	out := make([][]byte, len(d.hashes))
	for i, h := range d.hashes {
		out[i] = append([]byte(nil), h[:]...)
	}
	return out
}

// Bytes returns the flat wire form of the descriptor.
func (d Descriptor) Bytes() []byte {
	out := make([]byte, 0, len(d.hashes)*HashSize)
	for _, h := range d.hashes {
		out = append(out, h[:]...)
	}
	return out
}

// Match reports whether the SHA-256 digest of certDER equals any entry.
func (d Descriptor) Match(certDER []byte) bool {
	sum := sha256.Sum256(certDER)
	for _, h := range d.hashes {
		if subtle.ConstantTimeCompare(sum[:], h[:]) == 1 {
			return true
		}
	}
	return false
}

// VerifyPeerCertificate returns a tls.Config verification callback that
// accepts the peer iff its leaf certificate matches the descriptor.
// The verifiedChains argument is ignored: chains are never built against
// system roots.
func (d Descriptor) VerifyPeerCertificate() func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return fmt.Errorf("%w: no peer certificate", ErrUntrustedCertificate)
		}
		if !d.Match(rawCerts[0]) {
			fp := Fingerprint(rawCerts[0])
			return fmt.Errorf("%w: %s not in allow-list of %d", ErrUntrustedCertificate,
				FormatHex(fp), len(d.hashes))
		}
		return nil
	}
}

// Fingerprint computes the descriptor digest of a DER certificate.
func Fingerprint(certDER []byte) [HashSize]byte {
	return sha256.Sum256(certDER)
}
