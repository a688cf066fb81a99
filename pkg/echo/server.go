package echo

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"
	"golang.org/x/sync/errgroup"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/metrics"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/trust"
)

// ErrServerClosed is returned by Serve after Close.
var ErrServerClosed = errors.New("echo server closed")

// Server is a WebTransport echo server.
type Server struct {
	config Config
	cert   tls.Certificate
	hash   [trust.HashSize]byte
	wt     *webtransport.Server
	logger *slog.Logger

	sessions atomic.Int64
	streams  atomic.Uint64
	closed   atomic.Bool
	wg       sync.WaitGroup

	mu      sync.Mutex
	serving bool
	active  map[string]context.CancelFunc
}

// NewServer creates an echo server. Without a configured certificate a
// self-signed identity for cfg.Hosts is generated.
func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	var cert tls.Certificate
	if cfg.Certificate != nil {
		cert = *cfg.Certificate
	} else {
		var err error
		cert, err = trust.SelfSigned(cfg.Hosts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create identity: %w", err)
		}
	}
	hash, err := trust.IdentityHash(cert)
	if err != nil {
		return nil, err
	}

	tlsConf, err := transport.NewServerTLSConfig(cert)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}

	s := &Server{
		config: cfg,
		cert:   cert,
		hash:   hash,
		logger: cfg.Logger.With(slog.String("component", "echo")),
		active: make(map[string]context.CancelFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleUpgrade)

	s.wt = &webtransport.Server{
		H3: http3.Server{
			Addr:      cfg.Address,
			Handler:   mux,
			TLSConfig: tlsConf,
			QUICConfig: &quic.Config{
				KeepAlivePeriod: cfg.KeepAlivePeriod,
				MaxIdleTimeout:  cfg.MaxIdleTimeout,
				EnableDatagrams: true,
			},
		},
		// Clients are not browsers and send no meaningful Origin.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	s.logger.Info("server identity",
		slog.String("hash_hex", trust.FormatHex(hash)),
		slog.String("hash_bytes", trust.FormatBytesArray(hash)))
	return s, nil
}

// CertificateHash returns the SHA-256 digest clients must pin.
func (s *Server) CertificateHash() [trust.HashSize]byte {
	return s.hash
}

// Certificate returns the server identity.
func (s *Server) Certificate() tls.Certificate {
	return s.cert
}

// SessionCount returns the number of sessions being served.
func (s *Server) SessionCount() int {
	return int(s.sessions.Load())
}

// ListenAndServe listens on the configured UDP address and serves until ctx
// ends or Close is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer conn.Close()
	return s.Serve(ctx, conn)
}

// Serve serves WebTransport sessions on conn until ctx ends or Close is
// called. It returns nil after a shutdown.
func (s *Server) Serve(ctx context.Context, conn net.PacketConn) error {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.serving = true
	s.mu.Unlock()
	s.logger.Info("serving", slog.String("address", conn.LocalAddr().String()), slog.String("path", s.config.Path))

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	err := s.wt.Serve(conn)
	if s.closed.Load() {
		return nil
	}
	return err
}

// Close stops accepting sessions, closes the active ones and waits for
// their handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	for _, cancel := range s.active {
		cancel()
	}
	serving := s.serving
	s.mu.Unlock()

	var err error
	if serving {
		err = s.wt.Close()
	}
	s.wg.Wait()
	s.logger.Info("server closed")
	return err
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	sess, err := s.wt.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("upgrade failed", slog.String("remote", r.RemoteAddr), slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.serveSession(sess, r.RemoteAddr)
}

// serveSession runs until the session ends or the server closes.
func (s *Server) serveSession(sess *webtransport.Session, remote string) {
	id := uuid.NewString()
	logger := s.logger.With(slog.String("session_id", id), slog.String("remote", remote))

	ctx, cancel := context.WithCancel(sess.Context())
	s.track(id, cancel)
	defer s.untrack(id)

	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	logger.Info("session accepted")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.serveStreams(gctx, g, sessionAcceptor{sess}, id, logger)
	})
	g.Go(func() error {
		for {
			str, err := sess.AcceptUniStream(gctx)
			if err != nil {
				return nil
			}
			g.Go(func() error {
				s.logUniStream(str, id, s.streams.Add(1), logger)
				return nil
			})
		}
	})
	g.Go(func() error {
		return s.echoDatagrams(gctx, sess, logger)
	})

	<-ctx.Done()
	if s.closed.Load() {
		_ = sess.CloseWithError(webtransport.SessionErrorCode(transport.CodeNoError), "server shutdown")
	}
	_ = g.Wait()
	logger.Info("session ended", slog.Any("reason", context.Cause(sess.Context())))
}

// track registers a session for Close; a session arriving during Close is
// cancelled right away.
func (s *Server) track(id string, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		cancel()
	}
	s.active[id] = cancel
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	cancel := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// streamAcceptor yields the bidirectional streams of one session.
type streamAcceptor interface {
	AcceptStream(ctx context.Context) (transport.Stream, error)
}

type sessionAcceptor struct {
	sess *webtransport.Session
}

func (a sessionAcceptor) AcceptStream(ctx context.Context) (transport.Stream, error) {
	str, err := a.sess.AcceptStream(ctx)
	if err != nil {
		return nil, err
	}
	return transport.AdaptStream(str), nil
}

// serveStreams echoes every accepted stream in its own goroutine of g.
func (s *Server) serveStreams(ctx context.Context, g *errgroup.Group, acc streamAcceptor, sessionID string, logger *slog.Logger) error {
	for {
		str, err := acc.AcceptStream(ctx)
		if err != nil {
			return nil
		}
		streamID := s.streams.Add(1)
		g.Go(func() error {
			s.echoStream(str, sessionID, streamID, logger)
			return nil
		})
	}
}

// echoStream answers each frame with one reply frame and finishes the
// stream when the client does.
func (s *Server) echoStream(str transport.Stream, sessionID string, streamID uint64, logger *slog.Logger) {
	logger = logger.With(slog.Uint64("stream_id", streamID))
	r := framing.NewReader(str, s.config.MaxFrameSize)
	r.SetLogger(s.config.ProtocolLogger, sessionID, streamID)
	w := framing.NewWriter(str, s.config.MaxFrameSize)
	w.SetLogger(s.config.ProtocolLogger, sessionID, streamID)

	prefix := []byte(s.config.ReplyPrefix)
	for {
		msg, err := r.ReadFrame()
		switch {
		case errors.Is(err, io.EOF):
			logger.Debug("stream finished by client")
			_ = str.Close()
			return
		case errors.Is(err, framing.ErrOversizedFrame), errors.Is(err, framing.ErrTruncated):
			logger.Warn("malformed frame", slog.Any("error", err))
			s.config.Metrics.FrameError("malformed")
			str.CancelRead(transport.CodeProtocolViolation)
			str.CancelWrite(transport.CodeProtocolViolation)
			return
		case err != nil:
			logger.Debug("stream ended", slog.Any("error", err))
			return
		}

		s.config.Metrics.Frame(metrics.DirectionIn, len(msg))
		logger.Info("message received", slog.Int("size", len(msg)), slog.String("message", printable(msg)))

		reply := append(append(make([]byte, 0, len(prefix)+len(msg)), prefix...), msg...)
		if err := w.WriteFrame(reply); err != nil {
			logger.Debug("reply failed", slog.Any("error", err))
			str.CancelRead(transport.CodeCancelled)
			return
		}
		s.config.Metrics.Frame(metrics.DirectionOut, len(reply))
	}
}

// uniStream is the receive side of a unidirectional stream.
type uniStream interface {
	io.Reader
	CancelRead(webtransport.StreamErrorCode)
}

// datagramConn is the datagram API of one session.
type datagramConn interface {
	ReceiveDatagram(ctx context.Context) ([]byte, error)
	SendDatagram(b []byte) error
}

// echoDatagrams answers each datagram with one prefixed datagram. Datagrams
// carry no length prefix.
func (s *Server) echoDatagrams(ctx context.Context, dc datagramConn, logger *slog.Logger) error {
	prefix := []byte(s.config.ReplyPrefix)
	for {
		msg, err := dc.ReceiveDatagram(ctx)
		if err != nil {
			return nil
		}
		logger.Info("datagram received", slog.Int("size", len(msg)), slog.String("message", printable(msg)))

		reply := append(append(make([]byte, 0, len(prefix)+len(msg)), prefix...), msg...)
		if err := dc.SendDatagram(reply); err != nil {
			logger.Debug("datagram reply failed", slog.Any("error", err))
		}
	}
}

// logUniStream decodes and logs the frames of a unidirectional stream.
func (s *Server) logUniStream(str uniStream, sessionID string, streamID uint64, logger *slog.Logger) {
	logger = logger.With(slog.Uint64("stream_id", streamID), slog.Bool("unidirectional", true))
	r := framing.NewReader(str, s.config.MaxFrameSize)
	r.SetLogger(s.config.ProtocolLogger, sessionID, streamID)
	for {
		msg, err := r.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Debug("unidirectional stream ended", slog.Any("error", err))
				str.CancelRead(webtransport.StreamErrorCode(transport.CodeProtocolViolation))
			}
			return
		}
		s.config.Metrics.Frame(metrics.DirectionIn, len(msg))
		logger.Info("message received", slog.Int("size", len(msg)), slog.String("message", printable(msg)))
	}
}

// printable renders a message for logs, truncating long payloads.
func printable(msg []byte) string {
	const limit = 256
	if len(msg) > limit {
		return fmt.Sprintf("%q... (%d bytes)", msg[:limit], len(msg))
	}
	return fmt.Sprintf("%q", msg)
}
