package framing

import (
	"encoding/binary"
	"fmt"
)

// DecoderState is the position of a Decoder within the frame grammar.
type DecoderState uint8

const (
	// StateAwaitingLength means the next byte belongs to a length prefix.
	StateAwaitingLength DecoderState = iota
	// StateAwaitingPayload means a prefix was read and payload bytes remain.
	StateAwaitingPayload
	// StateFailed means a protocol violation was seen. Terminal.
	StateFailed
)

// String returns the state name.
func (s DecoderState) String() string {
	switch s {
	case StateAwaitingLength:
		return "AWAITING_LENGTH"
	case StateAwaitingPayload:
		return "AWAITING_PAYLOAD"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Decoder reassembles frames from arbitrarily split input.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	maxSize uint32
	state   DecoderState
	prefix  [LengthPrefixSize]byte
	nprefix int
	payload []byte
	need    int
	err     error
}

// NewDecoder creates a Decoder. A maxSize of zero means DefaultMaxFrameSize.
func NewDecoder(maxSize uint32) *Decoder {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Decoder{maxSize: maxSize}
}

// State returns the current decoder state.
func (d *Decoder) State() DecoderState {
	return d.state
}

// Buffered returns the number of bytes of the current incomplete frame held
// by the decoder.
func (d *Decoder) Buffered() int {
	switch d.state {
	case StateAwaitingLength:
		return d.nprefix
	case StateAwaitingPayload:
		return LengthPrefixSize + len(d.payload)
	default:
		return 0
	}
}

// Feed consumes p and returns every message completed by it, in order.
// Messages completed before a violation are returned together with the error.
// After an error the decoder is failed and Feed keeps returning that error.
func (d *Decoder) Feed(p []byte) ([][]byte, error) {
	if d.state == StateFailed {
		return nil, d.err
	}

	var out [][]byte
	for len(p) > 0 || d.zeroLengthReady() {
		switch d.state {
		case StateAwaitingLength:
			n := copy(d.prefix[d.nprefix:], p)
			d.nprefix += n
			p = p[n:]
			if d.nprefix < LengthPrefixSize {
				return out, nil
			}
			length := binary.BigEndian.Uint32(d.prefix[:])
			d.nprefix = 0
			if length > d.maxSize {
				d.state = StateFailed
				d.err = fmt.Errorf("%w: %d > %d", ErrOversizedFrame, length, d.maxSize)
				return out, d.err
			}
			d.need = int(length)
			d.payload = make([]byte, 0, min(length, maxPrealloc))
			d.state = StateAwaitingPayload

		case StateAwaitingPayload:
			n := min(d.need-len(d.payload), len(p))
			d.payload = append(d.payload, p[:n]...)
			p = p[n:]
			if len(d.payload) < d.need {
				return out, nil
			}
			out = append(out, d.payload)
			d.payload = nil
			d.need = 0
			d.state = StateAwaitingLength
		}
	}
	return out, nil
}

// zeroLengthReady reports whether a zero-length payload is complete without
// further input.
func (d *Decoder) zeroLengthReady() bool {
	return d.state == StateAwaitingPayload && d.need == 0
}

// Finish reports whether input ended cleanly. It returns ErrTruncated when a
// partial frame is buffered and the decoder's failure if it failed.
func (d *Decoder) Finish() error {
	switch d.state {
	case StateFailed:
		return d.err
	case StateAwaitingLength:
		if d.nprefix > 0 {
			return fmt.Errorf("%w: %d of %d prefix bytes", ErrTruncated, d.nprefix, LengthPrefixSize)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d of %d payload bytes", ErrTruncated, len(d.payload), d.need)
	}
}
