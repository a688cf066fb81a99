package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/webtransport-go"
)

// WebTransportDialer dials real WebTransport sessions over QUIC.
// The zero value is ready to use.
type WebTransportDialer struct{}

// Dial performs the QUIC handshake and the extended CONNECT request.
func (WebTransportDialer) Dial(ctx context.Context, endpoint string, opts DialOptions) (Conn, error) {
	if opts.TLSConfig == nil {
		return nil, fmt.Errorf("TLS configuration is required")
	}

	if opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.HandshakeTimeout)
		defer cancel()
	}

	var qconn *quic.Conn
	d := &webtransport.Dialer{
		TLSClientConfig: opts.TLSConfig,
		QUICConfig: &quic.Config{
			HandshakeIdleTimeout: opts.HandshakeTimeout,
			KeepAlivePeriod:      opts.KeepAlivePeriod,
			MaxIdleTimeout:       opts.MaxIdleTimeout,
			EnableDatagrams:      true,
		},
		DialAddr: func(ctx context.Context, addr string, tlsCfg *tls.Config, cfg *quic.Config) (*quic.Conn, error) {
			conn, err := quic.DialAddrEarly(ctx, addr, tlsCfg, cfg)
			qconn = conn
			return conn, err
		},
	}

	_, sess, err := d.Dial(ctx, endpoint, opts.Header)
	if err != nil {
		if qconn != nil {
			_ = qconn.CloseWithError(quic.ApplicationErrorCode(CodeNoError), "webtransport setup failed")
		}
		_ = d.Close()
		return nil, err
	}
	return newWebTransportConn(sess, qconn, d), nil
}

// webTransportConn adapts *webtransport.Session to Conn. It owns the QUIC
// connection and the dialer that produced the session: closing the
// WebTransport session alone leaves the QUIC connection running.
type webTransportConn struct {
	sess   *webtransport.Session
	qconn  *quic.Conn
	dialer *webtransport.Dialer
	ctx    context.Context
	cancel context.CancelCauseFunc

	releaseOnce sync.Once
}

func newWebTransportConn(sess *webtransport.Session, qconn *quic.Conn, dialer *webtransport.Dialer) *webTransportConn {
	ctx, cancel := context.WithCancelCause(context.Background())
	c := &webTransportConn{sess: sess, qconn: qconn, dialer: dialer, ctx: ctx, cancel: cancel}
	go c.rejectIncoming()
	go c.rejectIncomingUni()
	return c
}

// release tears down the QUIC connection and the dialer. Safe to call more
// than once.
func (c *webTransportConn) release(code ErrorCode, msg string) {
	c.releaseOnce.Do(func() {
		if c.qconn != nil {
			_ = c.qconn.CloseWithError(quic.ApplicationErrorCode(code), msg)
		}
		if c.dialer != nil {
			_ = c.dialer.Close()
		}
	})
}

// rejectIncoming resets streams opened by the server. It doubles as the
// session-end detector: AcceptStream fails with the close reason.
func (c *webTransportConn) rejectIncoming() {
	for {
		str, err := c.sess.AcceptStream(context.Background())
		if err != nil {
			c.cancel(classifyClose(err))
			// A local close releases the connection after the close capsule is written.
			if !errors.Is(context.Cause(c.ctx), ErrLocalClose) {
				c.release(CodeNoError, "session ended")
			}
			return
		}
		str.CancelRead(webtransport.StreamErrorCode(CodeUnexpectedStream))
		str.CancelWrite(webtransport.StreamErrorCode(CodeUnexpectedStream))
	}
}

func (c *webTransportConn) rejectIncomingUni() {
	for {
		str, err := c.sess.AcceptUniStream(c.ctx)
		if err != nil {
			return
		}
		str.CancelRead(webtransport.StreamErrorCode(CodeUnexpectedStream))
	}
}

func (c *webTransportConn) OpenStreamSync(ctx context.Context) (Stream, error) {
	str, err := c.sess.OpenStreamSync(ctx)
	if err != nil {
		return nil, err
	}
	return &webTransportStream{str: str}, nil
}

func (c *webTransportConn) CloseWithError(code ErrorCode, msg string) error {
	c.cancel(ErrLocalClose)
	err := c.sess.CloseWithError(webtransport.SessionErrorCode(code), msg)
	c.release(code, msg)
	return err
}

func (c *webTransportConn) Context() context.Context {
	return c.ctx
}

// classifyClose maps the error that ended a session to a Conn context cause.
func classifyClose(err error) error {
	var sessErr *webtransport.SessionError
	if errors.As(err, &sessErr) && sessErr.Remote {
		return fmt.Errorf("%w: %q (code %d)", ErrPeerClosed, sessErr.Message, sessErr.ErrorCode)
	}
	var appErr *quic.ApplicationError
	if errors.As(err, &appErr) && appErr.Remote {
		return fmt.Errorf("%w: %q (code %d)", ErrPeerClosed, appErr.ErrorMessage, appErr.ErrorCode)
	}
	return err
}

// RawStream is the subset of the webtransport stream API in use.
type RawStream interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	CancelRead(webtransport.StreamErrorCode)
	CancelWrite(webtransport.StreamErrorCode)
}

type webTransportStream struct {
	str RawStream
}

// AdaptStream wraps a bidirectional webtransport stream as a Stream. Peer
// resets surface as *ResetError.
func AdaptStream(str RawStream) Stream {
	return &webTransportStream{str: str}
}

func (s *webTransportStream) Read(p []byte) (int, error) {
	n, err := s.str.Read(p)
	return n, translateStreamError(err)
}

func (s *webTransportStream) Write(p []byte) (int, error) {
	n, err := s.str.Write(p)
	return n, translateStreamError(err)
}

func (s *webTransportStream) Close() error {
	return s.str.Close()
}

func (s *webTransportStream) CancelRead(code ErrorCode) {
	s.str.CancelRead(webtransport.StreamErrorCode(code))
}

func (s *webTransportStream) CancelWrite(code ErrorCode) {
	s.str.CancelWrite(webtransport.StreamErrorCode(code))
}

func translateStreamError(err error) error {
	var streamErr *webtransport.StreamError
	if errors.As(err, &streamErr) {
		return &ResetError{Code: ErrorCode(streamErr.ErrorCode), Remote: streamErr.Remote}
	}
	return err
}

var (
	_ Dialer = WebTransportDialer{}
	_ Conn   = (*webTransportConn)(nil)
	_ Stream = (*webTransportStream)(nil)
)
