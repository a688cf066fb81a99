package interactive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bistream/bistream-go/pkg/backoff"
	"github.com/bistream/bistream-go/pkg/client"
	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/session"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/transport/mem"
)

const testEndpoint = "https://echo.test:3030/"

var testCert = []byte("shell test certificate")

// syncBuffer is a bytes.Buffer safe for the handler goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// mockClient is a testify mock of Client.
type mockClient struct {
	mock.Mock
}

func (m *mockClient) InitSession(ctx context.Context, endpoint string, certHashes []byte) error {
	return m.Called(ctx, endpoint, certHashes).Error(0)
}

func (m *mockClient) SetupBistream(ctx context.Context, isFirst bool) (*session.SendHalf, error) {
	args := m.Called(ctx, isFirst)
	h, _ := args.Get(0).(*session.SendHalf)
	return h, args.Error(1)
}

func (m *mockClient) StartBistreams(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockClient) SendMessageToStream(ctx context.Context, index int, message string) error {
	return m.Called(ctx, index, message).Error(0)
}

func (m *mockClient) Session() *session.Session {
	s, _ := m.Called().Get(0).(*session.Session)
	return s
}

func (m *mockClient) SessionID() string    { return m.Called().String(0) }
func (m *mockClient) State() session.State { return m.Called().Get(0).(session.State) }
func (m *mockClient) Generation() uint64   { return m.Called().Get(0).(uint64) }
func (m *mockClient) StreamCount() int     { return m.Called().Int(0) }
func (m *mockClient) Started() bool        { return m.Called().Bool(0) }

func fastBackoff() backoff.Config {
	return backoff.Config{Initial: time.Millisecond, Max: 2 * time.Millisecond, Multiplier: 2}
}

func newMockShell(opts Options) (*Shell, *mockClient, *syncBuffer) {
	out := &syncBuffer{}
	s := newShell(opts, out)
	m := &mockClient{}
	s.Bind(m)
	return s, m, out
}

// serveEcho answers every frame of every stream with "Received: <msg>".
func serveEcho(p *mem.Peer) {
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

func TestShellEndToEnd(t *testing.T) {
	network := mem.NewNetwork()
	l, err := network.Listen(testEndpoint, testCert)
	require.NoError(t, err)
	defer l.Close()

	go func() {
		p, err := l.Accept(context.Background())
		if err != nil {
			return
		}
		serveEcho(p)
	}()

	out := &syncBuffer{}
	sh := newShell(Options{}, out)

	cfg := client.DefaultConfig()
	cfg.Dialer = network.Dialer()
	cfg.HandshakeTimeout = time.Second
	cfg.Handler = sh
	c, err := client.New(cfg)
	require.NoError(t, err)
	defer c.Close()
	sh.Bind(c)

	ctx := context.Background()
	sum := sha256.Sum256(testCert)

	assert.False(t, sh.Execute(ctx, "init "+testEndpoint+" "+hex.EncodeToString(sum[:])))
	require.Contains(t, out.String(), "is ACTIVE")

	sh.Execute(ctx, "setup first")
	sh.Execute(ctx, "setup second")
	assert.Contains(t, out.String(), "Stream 0 ready (id 1, first)")
	assert.Contains(t, out.String(), "Stream 1 ready (id 2, second)")

	sh.Execute(ctx, "send 0 early")
	assert.Contains(t, out.String(), "not started yet")

	sh.Execute(ctx, "start")
	assert.Contains(t, out.String(), "Receiving on 2 streams")

	sh.Execute(ctx, "send 1 hello  world")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "[stream 1] Received: hello  world")
	}, 2*time.Second, 10*time.Millisecond)

	sh.Execute(ctx, "send 5 nope")
	assert.Contains(t, out.String(), "No stream 5 (2 set up)")

	out.Reset()
	sh.Execute(ctx, "streams")
	assert.Contains(t, out.String(), "INDEX")
	assert.Equal(t, 3, strings.Count(out.String(), "\n"))

	out.Reset()
	sh.Execute(ctx, "status")
	assert.Contains(t, out.String(), "State:      ACTIVE")
	assert.Contains(t, out.String(), "Started:    true")
	assert.Contains(t, out.String(), "generation 1")

	sh.Execute(ctx, "close")
	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "ACTIVE -> CLOSED")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitRetriesUnreachable(t *testing.T) {
	sh, m, out := newMockShell(Options{
		Endpoint:    testEndpoint,
		InitRetries: 2,
		Backoff:     fastBackoff(),
	})

	m.On("InitSession", mock.Anything, testEndpoint, []byte(nil)).Return(session.ErrUnreachable).Twice()
	m.On("InitSession", mock.Anything, testEndpoint, []byte(nil)).Return(nil).Once()
	m.On("SessionID").Return("abc")
	m.On("State").Return(session.StateActive)

	sh.Execute(context.Background(), "init")

	m.AssertNumberOfCalls(t, "InitSession", 3)
	assert.Contains(t, out.String(), "Attempt 1 failed")
	assert.Contains(t, out.String(), "Attempt 2 failed")
	assert.Contains(t, out.String(), "Session abc is ACTIVE")
}

func TestInitDoesNotRetryUntrusted(t *testing.T) {
	sh, m, out := newMockShell(Options{
		Endpoint:    testEndpoint,
		InitRetries: 5,
		Backoff:     fastBackoff(),
	})
	m.On("InitSession", mock.Anything, testEndpoint, []byte(nil)).Return(session.ErrUntrustedCertificate)

	sh.Execute(context.Background(), "restart")

	m.AssertNumberOfCalls(t, "InitSession", 1)
	assert.Contains(t, out.String(), "Init failed")
}

func TestInitParsesHashes(t *testing.T) {
	sh, m, out := newMockShell(Options{})
	sum := sha256.Sum256([]byte("pinned"))

	m.On("InitSession", mock.Anything, "https://other:4433/", sum[:]).Return(nil).Once()
	m.On("SessionID").Return("s")
	m.On("State").Return(session.StateActive)

	sh.Execute(context.Background(), "init https://other:4433/ "+hex.EncodeToString(sum[:]))
	m.AssertExpectations(t)
	assert.Contains(t, out.String(), "1 pinned hashes")

	// restart reuses the last endpoint and hashes
	m.On("InitSession", mock.Anything, "https://other:4433/", sum[:]).Return(nil).Once()
	sh.Execute(context.Background(), "restart")
	m.AssertNumberOfCalls(t, "InitSession", 2)
}

func TestInitUsage(t *testing.T) {
	sh, m, out := newMockShell(Options{})

	sh.Execute(context.Background(), "init")
	assert.Contains(t, out.String(), "Usage: init")

	sh.Execute(context.Background(), "init https://x/ nothex")
	assert.Contains(t, out.String(), "Invalid certificate hash")
	m.AssertNotCalled(t, "InitSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendErrors(t *testing.T) {
	sh, m, out := newMockShell(Options{})
	m.On("SendMessageToStream", mock.Anything, 0, "x").Return(client.ErrSessionNotReady)

	sh.Execute(context.Background(), "send 0 x")
	assert.Contains(t, out.String(), "Send failed: session not ready")

	sh.Execute(context.Background(), "send zero x")
	assert.Contains(t, out.String(), "Invalid index: zero")

	sh.Execute(context.Background(), "send")
	assert.Contains(t, out.String(), "Usage: send")
}

func TestSetupErrors(t *testing.T) {
	sh, m, out := newMockShell(Options{})
	m.On("SetupBistream", mock.Anything, true).Return(nil, client.ErrSessionNotReady)

	sh.Execute(context.Background(), "setup first")
	assert.Contains(t, out.String(), "Setup failed: session not ready")

	sh.Execute(context.Background(), "setup third")
	assert.Contains(t, out.String(), "Unknown role: third")

	sh.Execute(context.Background(), "setup")
	assert.Contains(t, out.String(), "Usage: setup")
}

func TestCommandsWithoutSession(t *testing.T) {
	sh, m, out := newMockShell(Options{})
	m.On("Session").Return(nil)

	sh.Execute(context.Background(), "streams")
	sh.Execute(context.Background(), "close")
	assert.Equal(t, 2, strings.Count(out.String(), "No session"))
}

func TestQuitAndUnknown(t *testing.T) {
	sh, _, out := newMockShell(Options{})

	assert.False(t, sh.Execute(context.Background(), "   "))
	assert.False(t, sh.Execute(context.Background(), "frobnicate"))
	assert.Contains(t, out.String(), "Unknown command: frobnicate")
	assert.True(t, sh.Execute(context.Background(), "QUIT"))
}

func TestNoClientAttached(t *testing.T) {
	out := &syncBuffer{}
	sh := newShell(Options{}, out)

	assert.False(t, sh.Execute(context.Background(), "status"))
	assert.Contains(t, out.String(), "No client attached")
	assert.True(t, sh.Execute(context.Background(), "quit"))
}

func TestHandlerOutput(t *testing.T) {
	out := &syncBuffer{}
	sh := newShell(Options{}, out)

	sh.OnMessage(client.Delivery{Index: 2, Message: []byte("hi")})
	sh.OnStreamEnd(client.StreamEnd{Index: 2})
	sh.OnStreamEnd(client.StreamEnd{Index: 3, Err: session.ErrStreamClosed})
	sh.OnStateChange(4, session.StateChange{Old: session.StateActive, New: session.StateFailed,
		Reason: "transport", Err: errors.New("boom")})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"[stream 2] hi",
		"[stream 2] ended",
		"[stream 3] ended: stream closed",
		"[session 4] ACTIVE -> FAILED (transport): boom",
	}, lines)
}

func TestMessageArg(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"send 0 hello", "hello"},
		{"send 0 hello  world ", "hello  world "},
		{"  send\t1\tx y", "x y"},
		{"send 0", ""},
		{"send 0 ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, messageArg(tt.line), tt.line)
	}
}
