package client

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	// ErrSessionNotReady indicates a stream operation before InitSession
	// completed.
	ErrSessionNotReady = errors.New("session not ready")

	// ErrIndexOutOfRange indicates a stream index that was never set up.
	ErrIndexOutOfRange = errors.New("stream index out of range")

	// ErrClientClosed indicates an operation after Close.
	ErrClientClosed = errors.New("client closed")

	// ErrSuperseded indicates an InitSession that was overtaken by a newer
	// InitSession or Close before it completed.
	ErrSuperseded = errors.New("session superseded")

	// ErrInvalidConfig indicates a configuration that failed validation.
	ErrInvalidConfig = errors.New("invalid client config")
)

// IndexError reports an out-of-range stream index. It matches
// ErrIndexOutOfRange with errors.Is.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: index %d, %d streams", ErrIndexOutOfRange, e.Index, e.Count)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}
