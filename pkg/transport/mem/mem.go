// Package mem is an in-process implementation of the transport interfaces.
// Streams are backed by io.Pipe, so writes block until the peer reads.
// It is intended for tests and local experiments.
package mem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bistream/bistream-go/pkg/transport"
)

// ErrSessionGone is returned by stream operations after the session ended.
var ErrSessionGone = errors.New("mem: session gone")

// Network routes dials to listeners by endpoint name.
type Network struct {
	mu        sync.Mutex
	listeners map[string]*Listener
}

// NewNetwork creates an empty network.
func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*Listener)}
}

// Listen registers a listener presenting certDER as its leaf certificate.
func (n *Network) Listen(endpoint string, certDER []byte) (*Listener, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.listeners[endpoint]; ok {
		return nil, fmt.Errorf("mem: listener %q already exists", endpoint)
	}
	l := &Listener{
		network:  n,
		endpoint: endpoint,
		cert:     certDER,
		accept:   make(chan *Peer, 16),
		closed:   make(chan struct{}),
	}
	n.listeners[endpoint] = l
	return l, nil
}

// Dialer returns a transport.Dialer bound to this network.
func (n *Network) Dialer() *Dialer {
	return &Dialer{network: n}
}

func (n *Network) lookup(endpoint string) *Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.listeners[endpoint]
}

func (n *Network) remove(endpoint string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.listeners, endpoint)
}

// Listener accepts sessions for one endpoint.
type Listener struct {
	network  *Network
	endpoint string
	cert     []byte
	accept   chan *Peer
	closed   chan struct{}
	once     sync.Once
	stall    atomic.Bool
	dials    atomic.Int64
}

// Accept waits for the next session.
func (l *Listener) Accept(ctx context.Context) (*Peer, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, errors.New("mem: listener closed")
	case p := <-l.accept:
		return p, nil
	}
}

// SetStall makes handshakes hang until the dial context or handshake
// timeout expires.
func (l *Listener) SetStall(stall bool) {
	l.stall.Store(stall)
}

// Dials returns how many dials reached this listener.
func (l *Listener) Dials() int64 {
	return l.dials.Load()
}

// Close stops accepting sessions. Established sessions are unaffected.
func (l *Listener) Close() error {
	l.once.Do(func() {
		close(l.closed)
		l.network.remove(l.endpoint)
	})
	return nil
}

// Dialer dials listeners on a Network.
type Dialer struct {
	network *Network
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "mem: handshake timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// Dial implements transport.Dialer. Unknown endpoints are refused; the
// listener certificate is passed to the TLS verification callback.
func (d *Dialer) Dial(ctx context.Context, endpoint string, opts transport.DialOptions) (transport.Conn, error) {
	l := d.network.lookup(endpoint)
	if l == nil {
		return nil, &net.OpError{Op: "dial", Net: "mem", Err: errors.New("connection refused")}
	}
	l.dials.Add(1)

	if l.stall.Load() {
		var timeout <-chan time.Time
		if opts.HandshakeTimeout > 0 {
			t := time.NewTimer(opts.HandshakeTimeout)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return nil, timeoutError{}
		}
	}

	if opts.TLSConfig != nil && opts.TLSConfig.VerifyPeerCertificate != nil {
		if err := opts.TLSConfig.VerifyPeerCertificate([][]byte{l.cert}, nil); err != nil {
			return nil, fmt.Errorf("mem: tls handshake: %w", err)
		}
	}

	lk := newLink()
	select {
	case l.accept <- &Peer{link: lk}:
	case <-l.closed:
		return nil, &net.OpError{Op: "dial", Net: "mem", Err: errors.New("connection refused")}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &conn{link: lk}, nil
}

// link is the shared state of one session.
type link struct {
	mu       sync.Mutex
	streams  []*stream
	incoming chan *stream
	done     bool

	clientCtx    context.Context
	clientCancel context.CancelCauseFunc
	serverCtx    context.Context
	serverCancel context.CancelCauseFunc
}

func newLink() *link {
	lk := &link{incoming: make(chan *stream, 64)}
	lk.clientCtx, lk.clientCancel = context.WithCancelCause(context.Background())
	lk.serverCtx, lk.serverCancel = context.WithCancelCause(context.Background())
	return lk
}

// open creates a stream pair and returns the opener's end.
func (lk *link) open(ctx context.Context) (*stream, error) {
	c2s, c2sW := io.Pipe()
	s2c, s2cW := io.Pipe()
	local := &stream{link: lk, r: s2c, w: c2sW}
	remote := &stream{link: lk, r: c2s, w: s2cW}

	lk.mu.Lock()
	if lk.done {
		lk.mu.Unlock()
		return nil, ErrSessionGone
	}
	lk.streams = append(lk.streams, local, remote)
	lk.mu.Unlock()

	select {
	case lk.incoming <- remote:
		return local, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-lk.clientCtx.Done():
		return nil, ErrSessionGone
	}
}

// teardown ends the session. The first call wins.
func (lk *link) teardown(clientCause, serverCause error) {
	lk.mu.Lock()
	if lk.done {
		lk.mu.Unlock()
		return
	}
	lk.done = true
	streams := lk.streams
	lk.streams = nil
	lk.mu.Unlock()

	lk.clientCancel(clientCause)
	lk.serverCancel(serverCause)
	for _, s := range streams {
		s.r.CloseWithError(ErrSessionGone)
		s.w.CloseWithError(ErrSessionGone)
	}
}

func (lk *link) gone() bool {
	lk.mu.Lock()
	defer lk.mu.Unlock()
	return lk.done
}

// conn is the client end of a session.
type conn struct {
	link *link
}

func (c *conn) OpenStreamSync(ctx context.Context) (transport.Stream, error) {
	if err := context.Cause(c.link.clientCtx); err != nil {
		return nil, err
	}
	return c.link.open(ctx)
}

func (c *conn) CloseWithError(code transport.ErrorCode, msg string) error {
	c.link.teardown(transport.ErrLocalClose,
		fmt.Errorf("%w: %q (code %d)", transport.ErrPeerClosed, msg, code))
	return nil
}

func (c *conn) Context() context.Context {
	return c.link.clientCtx
}

// Peer is the server end of a session.
type Peer struct {
	link *link
}

// AcceptStream waits for the next stream opened by the client.
func (p *Peer) AcceptStream(ctx context.Context) (transport.Stream, error) {
	select {
	case s := <-p.link.incoming:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.link.serverCtx.Done():
		return nil, context.Cause(p.link.serverCtx)
	}
}

// CloseWithError closes the session gracefully from the server side.
func (p *Peer) CloseWithError(code transport.ErrorCode, msg string) error {
	p.link.teardown(fmt.Errorf("%w: %q (code %d)", transport.ErrPeerClosed, msg, code),
		transport.ErrLocalClose)
	return nil
}

// Fail drops the session abruptly, as a lost network path would.
func (p *Peer) Fail(err error) {
	p.link.teardown(err, err)
}

// Context is canceled when the session ends.
func (p *Peer) Context() context.Context {
	return p.link.serverCtx
}

// stream is one end of a bidirectional stream.
type stream struct {
	link *link
	r    *io.PipeReader
	w    *io.PipeWriter
}

// Read and Write report ErrSessionGone instead of io.ErrClosedPipe once the
// session is torn down.
func (s *stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if errors.Is(err, io.ErrClosedPipe) && s.link.gone() {
		err = ErrSessionGone
	}
	return n, err
}

func (s *stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if errors.Is(err, io.ErrClosedPipe) && s.link.gone() {
		err = ErrSessionGone
	}
	return n, err
}

func (s *stream) Close() error {
	return s.w.Close()
}

// CancelRead makes the peer's writes fail with a remote reset.
func (s *stream) CancelRead(code transport.ErrorCode) {
	s.r.CloseWithError(&transport.ResetError{Code: code, Remote: true})
}

// CancelWrite makes the peer's reads fail with a remote reset.
func (s *stream) CancelWrite(code transport.ErrorCode) {
	s.w.CloseWithError(&transport.ResetError{Code: code, Remote: true})
}

var (
	_ transport.Dialer = (*Dialer)(nil)
	_ transport.Conn   = (*conn)(nil)
	_ transport.Stream = (*stream)(nil)
)
