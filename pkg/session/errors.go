package session

import (
	"errors"

	"github.com/bistream/bistream-go/pkg/trust"
)

// Connect errors.
var (
	// ErrUnreachable indicates the handshake failed for a reason other than
	// trust or timeout (DNS, refused, HTTP status).
	ErrUnreachable = errors.New("endpoint unreachable")

	// ErrTimeout indicates the handshake did not complete in time.
	ErrTimeout = errors.New("handshake timed out")

	// ErrUntrustedCertificate indicates the server certificate matched no
	// pinned hash.
	ErrUntrustedCertificate = trust.ErrUntrustedCertificate
)

// Stream and send errors.
var (
	// ErrSessionClosed indicates the session is not active.
	ErrSessionClosed = errors.New("session closed")

	// ErrStreamOpen indicates the transport refused a new stream while the
	// session stayed active (stream limit reached, context ended).
	ErrStreamOpen = errors.New("stream open failed")

	// ErrStreamClosed indicates the stream direction is no longer open.
	ErrStreamClosed = errors.New("stream closed")

	// ErrBackpressure indicates the outbound queue is full.
	ErrBackpressure = errors.New("send queue full")

	// ErrNotArmed indicates a send before the stream was armed.
	ErrNotArmed = errors.New("stream not armed")
)
