package trust

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// ParseDigest parses a textual SHA-256 digest in hex, colon-hex or
// byte-array notation.
func ParseDigest(s string) ([HashSize]byte, error) {
	var out [HashSize]byte

	s = strings.TrimSpace(s)
	if s == "" {
		return out, fmt.Errorf("%w: empty digest", ErrTrustConfig)
	}

	var raw []byte
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return out, fmt.Errorf("%w: unterminated byte array", ErrTrustConfig)
		}
		parts := strings.Split(s[1:len(s)-1], ",")
		raw = make([]byte, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := strconv.ParseUint(p, 10, 8)
			if err != nil {
				return out, fmt.Errorf("%w: byte %q: %v", ErrTrustConfig, p, err)
			}
			raw = append(raw, byte(v))
		}
	} else {
		var err error
		raw, err = hex.DecodeString(strings.ReplaceAll(s, ":", ""))
		if err != nil {
			return out, fmt.Errorf("%w: %v", ErrTrustConfig, err)
		}
	}

	if len(raw) != HashSize {
		return out, fmt.Errorf("%w: digest has %d bytes, want %d", ErrTrustConfig, len(raw), HashSize)
	}
	copy(out[:], raw)
	return out, nil
}

// ParseDigests parses several digests into a Descriptor, preserving order.
func ParseDigests(digests ...string) (Descriptor, error) {
	hashes := make([][HashSize]byte, 0, len(digests))
	for i, s := range digests {
		h, err := ParseDigest(s)
		if err != nil {
			return Descriptor{}, fmt.Errorf("digest %d: %w", i, err)
		}
		hashes = append(hashes, h)
	}
	return New(hashes...), nil
}

// FormatHex renders a digest as lowercase hex.
func FormatHex(h [HashSize]byte) string {
	return hex.EncodeToString(h[:])
}

// FormatBytesArray renders a digest as "[b0, b1, ...]".
func FormatBytesArray(h [HashSize]byte) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, b := range h {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(int(b)))
	}
	sb.WriteByte(']')
	return sb.String()
}
