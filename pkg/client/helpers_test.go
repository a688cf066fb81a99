package client

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/session"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/transport/mem"
)

const testEndpoint = "https://host:3030"

var testCert = []byte("client test certificate")

func testHash() []byte {
	sum := sha256.Sum256(testCert)
	return sum[:]
}

type testEnv struct {
	network  *mem.Network
	listener *mem.Listener
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	n := mem.NewNetwork()
	l, err := n.Listen(testEndpoint, testCert)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return &testEnv{network: n, listener: l}
}

func (e *testEnv) newClient(t *testing.T, h Handler) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dialer = e.network.Dialer()
	cfg.HandshakeTimeout = time.Second
	cfg.Handler = h
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// init runs InitSession against the test listener and returns the server
// end of the new session.
func (e *testEnv) init(t *testing.T, c *Client) *mem.Peer {
	t.Helper()
	ctx := testContext(t)
	require.NoError(t, c.InitSession(ctx, testEndpoint, testHash()))
	p, err := e.listener.Accept(ctx)
	require.NoError(t, err)
	return p
}

func acceptN(t *testing.T, p *mem.Peer, n int) []transport.Stream {
	t.Helper()
	ctx := testContext(t)
	out := make([]transport.Stream, 0, n)
	for range n {
		str, err := p.AcceptStream(ctx)
		require.NoError(t, err)
		out = append(out, str)
	}
	return out
}

// echo answers every frame with "Received: <msg>".
func echo(p *mem.Peer) {
	for {
		str, err := p.AcceptStream(context.Background())
		if err != nil {
			return
		}
		go func(str transport.Stream) {
			r := framing.NewReader(str, 0)
			w := framing.NewWriter(str, 0)
			for {
				msg, err := r.ReadFrame()
				if err != nil {
					if errors.Is(err, io.EOF) {
						_ = str.Close()
					}
					return
				}
				if err := w.WriteFrame(append([]byte("Received: "), msg...)); err != nil {
					return
				}
			}
		}(str)
	}
}

// recorder is a Handler that records every event.
type recorder struct {
	mu      sync.Mutex
	msgs    chan Delivery
	ends    chan StreamEnd
	changes []stateEvent
}

type stateEvent struct {
	gen    uint64
	change session.StateChange
}

func newRecorder() *recorder {
	return &recorder{
		msgs: make(chan Delivery, 64),
		ends: make(chan StreamEnd, 16),
	}
}

func (r *recorder) OnMessage(d Delivery)    { r.msgs <- d }
func (r *recorder) OnStreamEnd(e StreamEnd) { r.ends <- e }

func (r *recorder) OnStateChange(gen uint64, ch session.StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, stateEvent{gen, ch})
}

func (r *recorder) stateEvents() []stateEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stateEvent(nil), r.changes...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
