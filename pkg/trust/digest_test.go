package trust

import (
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
)

func TestParseDigestNotations(t *testing.T) {
	want := sha256.Sum256([]byte("server certificate"))

	hexStr := FormatHex(want)
	colon := make([]string, 0, HashSize)
	for i := 0; i < len(hexStr); i += 2 {
		colon = append(colon, strings.ToUpper(hexStr[i:i+2]))
	}

	tests := []struct {
		name  string
		input string
	}{
		{"hex", hexStr},
		{"upper hex", strings.ToUpper(hexStr)},
		{"colon hex", strings.Join(colon, ":")},
		{"byte array", FormatBytesArray(want)},
		{"byte array with padding", "  " + FormatBytesArray(want) + "\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDigest(tt.input)
			if err != nil {
				t.Fatalf("ParseDigest failed: %v", err)
			}
			if got != want {
				t.Errorf("ParseDigest = %x, want %x", got, want)
			}
		})
	}
}

func TestParseDigestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short hex", "abcd"},
		{"bad hex", strings.Repeat("zz", HashSize)},
		{"unterminated array", "[1, 2, 3"},
		{"array value out of range", "[" + strings.Repeat("1, ", HashSize-1) + "256]"},
		{"array too short", "[1, 2, 3]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDigest(tt.input)
			if !errors.Is(err, ErrTrustConfig) {
				t.Errorf("expected ErrTrustConfig, got %v", err)
			}
		})
	}
}

func TestParseDigestsPreservesOrder(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))

	d, err := ParseDigests(FormatHex(a), FormatBytesArray(b))
	if err != nil {
		t.Fatalf("ParseDigests failed: %v", err)
	}
	hashes := d.Hashes()
	if len(hashes) != 2 {
		t.Fatalf("got %d hashes, want 2", len(hashes))
	}
	if string(hashes[0]) != string(a[:]) || string(hashes[1]) != string(b[:]) {
		t.Error("digest order not preserved")
	}
}

func TestParseDigestsReportsIndex(t *testing.T) {
	_, err := ParseDigests(FormatHex(sha256.Sum256(nil)), "nope")
	if err == nil || !strings.Contains(err.Error(), "digest 1") {
		t.Errorf("expected error mentioning digest 1, got %v", err)
	}
}
