package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bistream/bistream-go/pkg/session"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/trust"
)

// Client owns at most one session and the streams set up on it.
type Client struct {
	config  Config
	handler Handler
	logger  *slog.Logger

	// gate orders deliveries against generation changes: deliveries hold it
	// shared, InitSession and Close hold it exclusively while bumping.
	gate       sync.RWMutex
	generation atomic.Uint64

	// setupMu keeps stream indices in stream id order.
	setupMu sync.Mutex

	mu         sync.Mutex
	sess       *session.Session
	connecting bool
	streams    []*session.Stream
	started    bool
	closed     bool
	loopCtx    context.Context
	loopCancel context.CancelFunc
	loops      sync.WaitGroup
}

// New creates a Client. It does not connect.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Handler == nil {
		cfg.Handler = NopHandler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		config:  cfg,
		handler: cfg.Handler,
		logger:  cfg.Logger,
	}, nil
}

// InitFromConfig calls InitSession with the configured endpoint and digests.
func (c *Client) InitFromConfig(ctx context.Context) error {
	if c.config.Endpoint == "" {
		return fmt.Errorf("%w: no endpoint configured", ErrInvalidConfig)
	}
	td, err := c.config.Descriptor()
	if err != nil {
		return err
	}
	return c.InitSession(ctx, c.config.Endpoint, td.Bytes())
}

// InitSession replaces the current session with a new one to endpoint,
// pinned to certHashes (a concatenation of SHA-256 digests). The old session
// is closed without draining and its streams are forgotten. A malformed
// certHashes fails with trust.ErrTrustConfig and leaves the current session
// untouched.
func (c *Client) InitSession(ctx context.Context, endpoint string, certHashes []byte) error {
	td, err := trust.Parse(certHashes)
	if err != nil {
		return err
	}

	gen, err := c.reset(true)
	if err != nil {
		return err
	}
	logger := c.logger.With(slog.Uint64("generation", gen))
	logger.Info("initializing session", slog.String("endpoint", endpoint), slog.Int("pinned_hashes", td.Len()))

	cfg := c.config.sessionConfig()
	cfg.OnStateChange = func(ch session.StateChange) {
		if c.generation.Load() == gen {
			c.handler.OnStateChange(gen, ch)
		}
	}

	s, err := session.Connect(ctx, endpoint, td, cfg)

	c.mu.Lock()
	if c.currentLocked(gen) {
		c.connecting = false
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		_ = s.Close("superseded")
		return fmt.Errorf("%w: generation %d", ErrSuperseded, gen)
	}
	c.sess = s
	c.mu.Unlock()
	return nil
}

// reset discards the current session and starts a new generation.
func (c *Client) reset(connecting bool) (uint64, error) {
	c.gate.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.gate.Unlock()
		return 0, ErrClientClosed
	}
	gen := c.generation.Add(1)

	old, cancel := c.sess, c.loopCancel
	c.sess = nil
	c.streams = nil
	c.started = false
	c.connecting = connecting
	c.loopCtx, c.loopCancel = context.WithCancel(context.Background())
	if !connecting {
		c.closed = true
	}
	c.mu.Unlock()
	c.gate.Unlock()

	if cancel != nil {
		cancel()
	}
	if old != nil {
		reason := "session replaced"
		if !connecting {
			reason = "client closed"
		}
		_ = old.Close(reason)
	}
	return gen, nil
}

// currentLocked reports whether gen is still the live generation.
func (c *Client) currentLocked(gen uint64) bool {
	return !c.closed && c.generation.Load() == gen
}

// SetupBistream opens one stream on the current session and returns its
// send half. Streams are indexed in call order; isFirst selects the role.
func (c *Client) SetupBistream(ctx context.Context, isFirst bool) (*session.SendHalf, error) {
	c.setupMu.Lock()
	defer c.setupMu.Unlock()

	c.mu.Lock()
	s, gen, err := c.sessionLocked()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st, err := s.CreateStream(ctx, session.RoleOf(isFirst))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if !c.currentLocked(gen) || c.sess != s {
		c.mu.Unlock()
		st.Reset(transport.CodeCancelled)
		return nil, fmt.Errorf("%w: replaced during setup", session.ErrSessionClosed)
	}
	c.streams = append(c.streams, st)
	index := len(c.streams) - 1
	if c.started {
		c.activateLocked(gen, index, st)
	}
	c.mu.Unlock()

	c.logger.Debug("bistream set up",
		slog.Int("index", index),
		slog.Uint64("stream_id", st.ID()),
		slog.String("role", st.Role().String()))
	return st.SendHalf(), nil
}

func (c *Client) sessionLocked() (*session.Session, uint64, error) {
	if c.closed {
		return nil, 0, ErrClientClosed
	}
	if c.sess == nil {
		if c.connecting {
			return nil, 0, fmt.Errorf("%w: handshake in progress", ErrSessionNotReady)
		}
		return nil, 0, fmt.Errorf("%w: no session", ErrSessionNotReady)
	}
	return c.sess, c.generation.Load(), nil
}

// StartBistreams arms every stream set up since the last InitSession and
// starts delivering their messages to the Handler. Calling it again is a
// no-op.
func (c *Client) StartBistreams(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s, gen, err := c.sessionLocked()
	if err != nil {
		return err
	}
	if st := s.State(); st.Terminal() {
		if err := s.Err(); err != nil {
			return fmt.Errorf("%w: %w", session.ErrSessionClosed, err)
		}
		return fmt.Errorf("%w: session is %s", session.ErrSessionClosed, st)
	}
	if c.started {
		return nil
	}
	c.started = true
	for i, st := range c.streams {
		c.activateLocked(gen, i, st)
	}
	c.logger.Info("bistreams started", slog.Int("streams", len(c.streams)))
	return nil
}

func (c *Client) activateLocked(gen uint64, index int, st *session.Stream) {
	st.Arm()
	c.loops.Add(1)
	go c.receive(c.loopCtx, gen, index, st)
}

// receive forwards one stream's messages to the Handler.
func (c *Client) receive(ctx context.Context, gen uint64, index int, st *session.Stream) {
	defer c.loops.Done()

	sessID := st.Session().ID()
	var endErr error
	for msg, err := range st.ReceiveHalf().Poll(ctx) {
		if err != nil {
			endErr = err
			break
		}
		if !c.deliver(gen, func() {
			c.handler.OnMessage(Delivery{
				Generation: gen,
				SessionID:  sessID,
				Index:      index,
				StreamID:   st.ID(),
				Role:       st.Role(),
				Message:    msg,
			})
		}) {
			return
		}
	}

	if errors.Is(endErr, io.EOF) {
		endErr = nil
	}
	c.deliver(gen, func() {
		c.handler.OnStreamEnd(StreamEnd{
			Generation: gen,
			SessionID:  sessID,
			Index:      index,
			StreamID:   st.ID(),
			Role:       st.Role(),
			Err:        endErr,
		})
	})
}

// deliver runs fn if gen is still live and reports whether it did.
func (c *Client) deliver(gen uint64, fn func()) bool {
	c.gate.RLock()
	defer c.gate.RUnlock()

	c.mu.Lock()
	live := c.currentLocked(gen)
	c.mu.Unlock()
	if !live {
		c.logger.Debug("dropping delivery from discarded session", slog.Uint64("generation", gen))
		return false
	}
	fn()
	return true
}

// SendMessageToStream sends message on the index-th stream set up since the
// last InitSession. An index that was never set up fails with an *IndexError.
func (c *Client) SendMessageToStream(ctx context.Context, index int, message string) error {
	c.mu.Lock()
	if _, _, err := c.sessionLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	if index < 0 || index >= len(c.streams) {
		err := &IndexError{Index: index, Count: len(c.streams)}
		c.mu.Unlock()
		return err
	}
	st := c.streams[index]
	c.mu.Unlock()

	return st.SendHalf().Send(ctx, []byte(message))
}

// Close closes the current session and waits for every receive goroutine to
// finish. The Client cannot be used afterwards.
func (c *Client) Close() error {
	if _, err := c.reset(false); err != nil {
		return nil
	}
	c.mu.Lock()
	cancel := c.loopCancel
	c.mu.Unlock()
	cancel()

	c.loops.Wait()
	c.logger.Info("client closed")
	return nil
}

// Generation returns the number of sessions initialized so far.
func (c *Client) Generation() uint64 {
	return c.generation.Load()
}

// Session returns the current session, or nil.
func (c *Client) Session() *session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// SessionID returns the id of the current session, or "".
func (c *Client) SessionID() string {
	if s := c.Session(); s != nil {
		return s.ID()
	}
	return ""
}

// State returns the state of the current session. Without a session it is
// Connecting during InitSession and Closed otherwise.
func (c *Client) State() session.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.sess != nil:
		return c.sess.State()
	case c.connecting:
		return session.StateConnecting
	default:
		return session.StateClosed
	}
}

// StreamCount returns the number of streams set up on the current session.
func (c *Client) StreamCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

// Started reports whether StartBistreams ran for the current session.
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}
