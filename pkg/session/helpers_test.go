package session

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
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/transport/mem"
	"github.com/bistream/bistream-go/pkg/trust"
)

const testEndpoint = "https://localhost:3030/"

var testCert = []byte("test server certificate")

// testServer is an in-memory WebTransport server for session tests.
type testServer struct {
	network  *mem.Network
	listener *mem.Listener
	trust    trust.Descriptor
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	n := mem.NewNetwork()
	l, err := n.Listen(testEndpoint, testCert)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return &testServer{
		network:  n,
		listener: l,
		trust:    trust.New(sha256.Sum256(testCert)),
	}
}

func (ts *testServer) config() Config {
	cfg := DefaultConfig()
	cfg.Dialer = ts.network.Dialer()
	cfg.HandshakeTimeout = time.Second
	return cfg
}

// connect dials the server and returns the client session and server peer.
func (ts *testServer) connect(t *testing.T, cfg Config) (*Session, *mem.Peer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := Connect(ctx, testEndpoint, ts.trust, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close("test done") })

	p, err := ts.listener.Accept(ctx)
	require.NoError(t, err)
	return s, p
}

// echo replies to every frame with "Received: <msg>" and finishes the
// stream when the client does.
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

// acceptN accepts n streams from the peer.
func acceptN(t *testing.T, p *mem.Peer, n int) []transport.Stream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out := make([]transport.Stream, 0, n)
	for range n {
		str, err := p.AcceptStream(ctx)
		require.NoError(t, err)
		out = append(out, str)
	}
	return out
}

// stateRecorder collects state changes.
type stateRecorder struct {
	mu      sync.Mutex
	changes []StateChange
}

func (r *stateRecorder) record(ch StateChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *stateRecorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, 0, len(r.changes))
	for _, ch := range r.changes {
		out = append(out, ch.New)
	}
	return out
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
