// Package interactive provides the interactive command-line interface
// for bistream-client.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"github.com/bistream/bistream-go/pkg/backoff"
	"github.com/bistream/bistream-go/pkg/client"
	"github.com/bistream/bistream-go/pkg/session"
)

// DefaultCommandTimeout bounds each interactive command.
const DefaultCommandTimeout = 15 * time.Second

// Client is the part of *client.Client the shell drives.
type Client interface {
	InitSession(ctx context.Context, endpoint string, certHashes []byte) error
	SetupBistream(ctx context.Context, isFirst bool) (*session.SendHalf, error)
	StartBistreams(ctx context.Context) error
	SendMessageToStream(ctx context.Context, index int, message string) error
	Session() *session.Session
	SessionID() string
	State() session.State
	Generation() uint64
	StreamCount() int
	Started() bool
}

var _ Client = (*client.Client)(nil)

// Options configures the shell.
type Options struct {
	// Endpoint and CertHashes are used by "init" without arguments and by
	// "restart".
	Endpoint   string
	CertHashes []byte

	// InitRetries is the number of extra attempts "init" makes on
	// unreachable or timed out endpoints.
	InitRetries int
	Backoff     backoff.Config

	// CommandTimeout bounds each command (default DefaultCommandTimeout).
	CommandTimeout time.Duration
}

// Shell handles interactive mode for bistream-client. It also implements
// client.Handler and prints deliveries above the prompt.
type Shell struct {
	opts Options
	rl   *readline.Instance
	out  io.Writer

	mu         sync.Mutex
	client     Client
	endpoint   string
	certHashes []byte
}

// New creates a shell on the terminal.
func New(opts Options) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bistream> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	s := newShell(opts, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(opts Options, out io.Writer) *Shell {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	return &Shell{
		opts:       opts,
		out:        out,
		endpoint:   opts.Endpoint,
		certHashes: append([]byte(nil), opts.CertHashes...),
	}
}

// Bind attaches the client the shell drives. The client is usually created
// with the shell as its Handler, so binding happens after construction.
func (s *Shell) Bind(c Client) {
	s.mu.Lock()
	s.client = c
	s.mu.Unlock()
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if s.Execute(ctx, line) {
			cancel()
			return
		}
	}
}

// OnMessage prints a received message.
func (s *Shell) OnMessage(d client.Delivery) {
	fmt.Fprintf(s.out, "[stream %d] %s\n", d.Index, d.Message)
}

// OnStreamEnd prints the end of a stream.
func (s *Shell) OnStreamEnd(e client.StreamEnd) {
	if e.Err != nil {
		fmt.Fprintf(s.out, "[stream %d] ended: %v\n", e.Index, e.Err)
		return
	}
	fmt.Fprintf(s.out, "[stream %d] ended\n", e.Index)
}

// OnStateChange prints a session transition.
func (s *Shell) OnStateChange(generation uint64, ch session.StateChange) {
	msg := fmt.Sprintf("[session %d] %s -> %s", generation, ch.Old, ch.New)
	if ch.Reason != "" {
		msg += " (" + ch.Reason + ")"
	}
	if ch.Err != nil {
		msg += ": " + ch.Err.Error()
	}
	fmt.Fprintln(s.out, msg)
}

var _ client.Handler = (*Shell)(nil)

// Init runs c.InitSession, retrying up to retries extra times while the
// endpoint is unreachable or the handshake times out. onRetry may be nil.
func Init(ctx context.Context, c Client, endpoint string, certHashes []byte,
	retries int, cfg backoff.Config, onRetry func(attempt int, delay time.Duration, err error),
) error {
	return backoff.Retry(ctx, backoff.New(cfg), retries+1, retryableInit, onRetry,
		func(ctx context.Context) error {
			return c.InitSession(ctx, endpoint, certHashes)
		})
}

func retryableInit(err error) bool {
	return errors.Is(err, session.ErrUnreachable) || errors.Is(err, session.ErrTimeout)
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, strings.TrimLeft(`
Commands:
  init [url] [hash...]    Open a session (hashes in hex or [b0, b1, ...] form)
  restart                 Open a new session with the last url and hashes
  setup first|second      Set up a bidirectional stream
  start                   Start receiving on every stream
  send <index> <message>  Send a message on a stream
  streams                 List the streams of the session
  status                  Show the session status
  close                   Close the session
  help                    Show this help
  quit                    Exit
`, "\n"))
}
