package session

import (
	"cmp"
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/trust"
)

// Session is one pinned WebTransport session.
type Session struct {
	id       string
	endpoint string
	trust    trust.Descriptor
	config   Config
	logger   *slog.Logger
	conn     transport.Conn
	notify   notifier

	mu      sync.Mutex
	state   State
	err     error
	cause   error
	streams map[uint64]*Stream
	nextID  uint64
	done    chan struct{}
}

func newSession(endpoint string, td trust.Descriptor, cfg Config) *Session {
	id := uuid.NewString()
	return &Session{
		id:       id,
		endpoint: endpoint,
		trust:    td,
		config:   cfg,
		logger:   cfg.Logger.With(slog.String("session_id", id), slog.String("endpoint", endpoint)),
		notify:   notifier{fn: cfg.OnStateChange},
		state:    StateConnecting,
		streams:  make(map[uint64]*Stream),
		done:     make(chan struct{}),
	}
}

// Connect establishes a session with the server at endpoint, accepting it
// only if its leaf certificate digest is in td. It blocks until the session
// is active or the handshake fails with ErrUntrustedCertificate, ErrTimeout
// or ErrUnreachable.
func Connect(ctx context.Context, endpoint string, td trust.Descriptor, cfg Config) (*Session, error) {
	cfg.applyDefaults()
	s := newSession(endpoint, td, cfg)

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, s.connectFailed(fmt.Errorf("%w: %w", ErrUnreachable, err))
	}

	// quic-go reports a rejected certificate as a TLS alert that no longer
	// wraps the verification error.
	var rejected atomic.Bool
	verify := td.VerifyPeerCertificate()
	tlsConf, err := transport.NewClientTLSConfig(u.Hostname(), func(raw [][]byte, chains [][]*x509.Certificate) error {
		if err := verify(raw, chains); err != nil {
			rejected.Store(true)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.connectFailed(fmt.Errorf("%w: %w", ErrUnreachable, err))
	}

	s.logger.Debug("connecting", slog.Int("pinned_hashes", td.Len()))
	start := time.Now()

	conn, err := cfg.Dialer.Dial(ctx, endpoint, transport.DialOptions{
		TLSConfig:        tlsConf,
		HandshakeTimeout: cfg.HandshakeTimeout,
		KeepAlivePeriod:  cfg.KeepAlivePeriod,
		MaxIdleTimeout:   cfg.MaxIdleTimeout,
	})
	if err != nil {
		return nil, s.connectFailed(classifyDialError(err, rejected.Load()))
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateActive
	s.notify.enqueue(StateChange{Old: StateConnecting, New: StateActive, Reason: "handshake complete"})
	s.mu.Unlock()
	s.notify.drain()

	s.config.Metrics.SessionConnected(time.Since(start).Seconds())
	s.captureState(StateConnecting, StateActive, "handshake complete")
	s.logger.Info("session active", slog.Duration("handshake", time.Since(start)))

	go s.watch()
	return s, nil
}

// classifyDialError maps a handshake failure to a connect error kind.
func classifyDialError(err error, rejected bool) error {
	switch {
	case errors.Is(err, ErrUntrustedCertificate):
		return err
	case rejected:
		return fmt.Errorf("%w: %w", ErrUntrustedCertificate, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func (s *Session) connectFailed(err error) error {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.cause = fmt.Errorf("%w: %w", ErrSessionClosed, err)
	close(s.done)
	s.notify.enqueue(StateChange{Old: StateConnecting, New: StateFailed, Reason: err.Error(), Err: err})
	s.mu.Unlock()
	s.notify.drain()

	reason := "unreachable"
	switch {
	case errors.Is(err, ErrUntrustedCertificate):
		reason = "untrusted"
	case errors.Is(err, ErrTimeout):
		reason = "timeout"
	}
	s.config.Metrics.SessionFailed(reason)
	s.captureState(StateConnecting, StateFailed, err.Error())
	s.logger.Warn("connect failed", slog.Any("error", err))
	return err
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// Endpoint returns the URL the session was established with.
func (s *Session) Endpoint() string {
	return s.endpoint
}

// Trust returns the descriptor the server was verified against.
func (s *Session) Trust() trust.Descriptor {
	return s.trust
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure reason once the session is Failed, nil otherwise.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the session reaches Closed or Failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Stream returns the stream with the given id, or nil.
func (s *Session) Stream(id uint64) *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[id]
}

// Streams returns every stream created on the session, ordered by id.
func (s *Session) Streams() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedStreamsLocked()
}

func (s *Session) sortedStreamsLocked() []*Stream {
	out := make([]*Stream, 0, len(s.streams))
	for _, st := range s.streams {
		out = append(out, st)
	}
	slices.SortFunc(out, func(a, b *Stream) int { return cmp.Compare(a.id, b.id) })
	return out
}

// closedErr returns the error for operations on a session that left Active.
func (s *Session) closedErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cause != nil {
		return s.cause
	}
	return fmt.Errorf("%w: session is %s", ErrSessionClosed, s.state)
}

// CreateStream opens a bidirectional stream tagged with role. Stream ids are
// assigned in registration order starting at 1 and are never reused.
func (s *Session) CreateStream(ctx context.Context, role Role) (*Stream, error) {
	if s.State() != StateActive {
		return nil, s.closedErr()
	}

	raw, err := s.conn.OpenStreamSync(ctx)
	if err != nil {
		if s.connEnded() {
			s.handleConnEnd()
			return nil, fmt.Errorf("%w: %w", ErrSessionClosed, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStreamOpen, err)
	}

	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		raw.CancelRead(transport.CodeCancelled)
		raw.CancelWrite(transport.CodeCancelled)
		return nil, s.closedErr()
	}
	s.nextID++
	st := newStream(s, s.nextID, role, raw)
	s.streams[st.id] = st
	s.mu.Unlock()

	st.start()

	s.config.Metrics.StreamOpened(role.String())
	s.capture(log.Event{
		StreamID: st.id,
		Layer:    log.LayerTransport,
		Category: log.CategoryState,
		Role:     role.logRole(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityStream,
			NewState: StreamOpen.String(),
			Reason:   "opened",
		},
	})
	st.logger.Debug("stream opened")
	return st, nil
}

// Close closes the session and all its streams. Pending sends and receives
// fail with ErrSessionClosed. Close is idempotent.
func (s *Session) Close(reason string) error {
	if !s.shutdown(StateClosed, reason, nil) {
		return nil
	}
	if err := s.conn.CloseWithError(transport.CodeNoError, reason); err != nil {
		s.logger.Debug("close transport", slog.Any("error", err))
	}
	return nil
}

// shutdown moves the session to a terminal state and cascades to streams.
// It reports false if the session had already terminated.
func (s *Session) shutdown(to State, reason string, failure error) bool {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return false
	}
	from := s.state
	s.state = to
	if failure != nil {
		s.err = failure
		s.cause = fmt.Errorf("%w: %w", ErrSessionClosed, failure)
	} else {
		s.cause = fmt.Errorf("%w: %s", ErrSessionClosed, reason)
	}
	cause := s.cause
	streams := s.sortedStreamsLocked()
	close(s.done)
	s.notify.enqueue(StateChange{Old: from, New: to, Reason: reason, Err: failure})
	s.mu.Unlock()

	for _, st := range streams {
		st.terminate(StreamClosed, cause)
	}
	s.notify.drain()

	if from == StateActive {
		s.config.Metrics.SessionEnded()
	}
	s.captureState(from, to, reason)
	if failure != nil {
		s.logger.Warn("session failed", slog.Any("error", failure), slog.Int("streams", len(streams)))
	} else {
		s.logger.Info("session closed", slog.String("reason", reason), slog.Int("streams", len(streams)))
	}
	return true
}

// watch reacts to the transport ending without a local Close.
func (s *Session) watch() {
	select {
	case <-s.conn.Context().Done():
		s.handleConnEnd()
	case <-s.done:
	}
}

func (s *Session) connEnded() bool {
	return s.conn.Context().Err() != nil
}

// handleConnEnd classifies the end of the transport connection: a graceful
// close by the peer closes the session, anything else fails it.
func (s *Session) handleConnEnd() {
	cause := context.Cause(s.conn.Context())
	switch {
	case cause == nil, errors.Is(cause, transport.ErrLocalClose):
		return
	case errors.Is(cause, transport.ErrPeerClosed):
		s.shutdown(StateClosed, cause.Error(), nil)
	default:
		s.shutdown(StateFailed, cause.Error(), cause)
	}
	_ = s.conn.CloseWithError(transport.CodeNoError, "")
}

func (s *Session) capture(ev log.Event) {
	ev.Timestamp = time.Now()
	ev.SessionID = s.id
	ev.Endpoint = s.endpoint
	s.config.ProtocolLogger.Log(ev)
}

func (s *Session) captureState(from, to State, reason string) {
	s.capture(log.Event{
		Layer:    log.LayerTransport,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}
