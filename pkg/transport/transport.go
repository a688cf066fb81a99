package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrorCode is an application error code carried by stream resets and
// session close frames.
type ErrorCode uint32

// Well-known error codes.
const (
	// CodeNoError closes a session or stream without error.
	CodeNoError ErrorCode = 0
	// CodeProtocolViolation resets a stream that carried malformed frames.
	CodeProtocolViolation ErrorCode = 1
	// CodeCancelled resets a stream abandoned by the application.
	CodeCancelled ErrorCode = 2
	// CodeUnexpectedStream rejects streams the client did not ask for.
	CodeUnexpectedStream ErrorCode = 3
)

var (
	// ErrPeerClosed is the cause of a Conn context canceled by a graceful
	// close from the peer.
	ErrPeerClosed = errors.New("session closed by peer")

	// ErrLocalClose is the cause of a Conn context canceled by CloseWithError.
	ErrLocalClose = errors.New("session closed locally")
)

// ResetError reports a stream direction aborted with an error code.
type ResetError struct {
	Code   ErrorCode
	Remote bool
}

func (e *ResetError) Error() string {
	who := "local"
	if e.Remote {
		who = "peer"
	}
	return fmt.Sprintf("stream reset by %s (code %d)", who, e.Code)
}

// DialOptions configures a single Dial.
type DialOptions struct {
	// TLSConfig authenticates the server. Required.
	TLSConfig *tls.Config

	// HandshakeTimeout bounds the QUIC and HTTP/3 handshake.
	HandshakeTimeout time.Duration

	// KeepAlivePeriod is the interval of QUIC keep-alive pings.
	KeepAlivePeriod time.Duration

	// MaxIdleTimeout closes the session after this much silence.
	MaxIdleTimeout time.Duration

	// Header is sent with the extended CONNECT request.
	Header http.Header
}

// Dialer establishes sessions.
type Dialer interface {
	// Dial opens a session to the endpoint URL. It blocks until the
	// handshake completes or fails.
	Dial(ctx context.Context, endpoint string, opts DialOptions) (Conn, error)
}

// Conn is an established session.
type Conn interface {
	// OpenStreamSync opens a bidirectional stream, blocking while the peer's
	// stream limit is exhausted.
	OpenStreamSync(ctx context.Context) (Stream, error)

	// CloseWithError closes the session and every stream on it.
	CloseWithError(code ErrorCode, msg string) error

	// Context is canceled when the session ends. context.Cause reports
	// ErrPeerClosed for a graceful close by the peer, ErrLocalClose after
	// CloseWithError, and the transport error otherwise.
	Context() context.Context
}

// Stream is a bidirectional stream. Read and Write may be used from two
// different goroutines.
type Stream interface {
	io.Reader
	io.Writer

	// Close finishes the send direction (FIN).
	Close() error

	// CancelRead aborts the receive direction.
	CancelRead(code ErrorCode)

	// CancelWrite aborts the send direction.
	CancelWrite(code ErrorCode)
}
