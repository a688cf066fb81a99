package interactive

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bistream/bistream-go/pkg/client"
	"github.com/bistream/bistream-go/pkg/session"
	"github.com/bistream/bistream-go/pkg/trust"
)

// Execute runs one command line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c == nil && cmd != "help" && cmd != "?" && cmd != "quit" && cmd != "exit" && cmd != "q" {
		fmt.Fprintln(s.out, "No client attached")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "init", "i":
		s.cmdInit(ctx, c, args)

	case "restart":
		s.cmdInit(ctx, c, nil)

	case "setup":
		s.cmdSetup(ctx, c, args)

	case "start":
		s.cmdStart(ctx, c)

	case "send", "s":
		s.cmdSend(ctx, c, line, args)

	case "streams":
		s.cmdStreams(c)

	case "status", "st":
		s.cmdStatus(c)

	case "close":
		s.cmdClose(c)

	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (s *Shell) cmdInit(ctx context.Context, c Client, args []string) {
	s.mu.Lock()
	endpoint, hashes := s.endpoint, s.certHashes
	s.mu.Unlock()

	if len(args) > 0 {
		endpoint = args[0]
	}
	if len(args) > 1 {
		d, err := trust.ParseDigests(args[1:]...)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid certificate hash: %v\n", err)
			return
		}
		hashes = d.Bytes()
	}
	if endpoint == "" {
		fmt.Fprintln(s.out, "Usage: init <url> [hash...]")
		return
	}

	s.mu.Lock()
	s.endpoint, s.certHashes = endpoint, hashes
	s.mu.Unlock()

	fmt.Fprintf(s.out, "Connecting to %s (%d pinned hashes)...\n", endpoint, len(hashes)/trust.HashSize)
	err := Init(ctx, c, endpoint, hashes, s.opts.InitRetries, s.opts.Backoff,
		func(attempt int, delay time.Duration, err error) {
			fmt.Fprintf(s.out, "Attempt %d failed: %v (retrying in %s)\n", attempt, err, delay.Round(time.Millisecond))
		})
	if err != nil {
		fmt.Fprintf(s.out, "Init failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Session %s is %s\n", c.SessionID(), c.State())
}

func (s *Shell) cmdSetup(ctx context.Context, c Client, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: setup first|second")
		return
	}

	var isFirst bool
	switch strings.ToLower(args[0]) {
	case "first", "1":
		isFirst = true
	case "second", "2":
		isFirst = false
	default:
		fmt.Fprintf(s.out, "Unknown role: %s (use first or second)\n", args[0])
		return
	}

	h, err := c.SetupBistream(ctx, isFirst)
	if err != nil {
		fmt.Fprintf(s.out, "Setup failed: %v\n", err)
		return
	}
	st := h.Stream()
	fmt.Fprintf(s.out, "Stream %d ready (id %d, %s)\n", c.StreamCount()-1, st.ID(), st.Role())
}

func (s *Shell) cmdStart(ctx context.Context, c Client) {
	if err := c.StartBistreams(ctx); err != nil {
		fmt.Fprintf(s.out, "Start failed: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Receiving on %d streams\n", c.StreamCount())
}

func (s *Shell) cmdSend(ctx context.Context, c Client, line string, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: send <index> <message>")
		return
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid index: %s\n", args[0])
		return
	}

	err = c.SendMessageToStream(ctx, index, messageArg(line))
	switch {
	case err == nil:
	case errors.Is(err, client.ErrIndexOutOfRange):
		fmt.Fprintf(s.out, "No stream %d (%d set up)\n", index, c.StreamCount())
	case errors.Is(err, session.ErrNotArmed):
		fmt.Fprintln(s.out, "Streams are not started yet (use 'start')")
	default:
		fmt.Fprintf(s.out, "Send failed: %v\n", err)
	}
}

// messageArg returns the raw text after the command and index fields so
// inner spacing survives.
func messageArg(line string) string {
	rest := strings.TrimLeft(line, " \t")
	for range 2 {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	return rest
}

func (s *Shell) cmdStreams(c Client) {
	sess := c.Session()
	if sess == nil {
		fmt.Fprintln(s.out, "No session")
		return
	}
	streams := sess.Streams()
	if len(streams) == 0 {
		fmt.Fprintln(s.out, "No streams")
		return
	}
	fmt.Fprintf(s.out, "%-6s %-6s %-7s %-20s %s\n", "INDEX", "ID", "ROLE", "STATE", "ARMED")
	for i, st := range streams {
		fmt.Fprintf(s.out, "%-6d %-6d %-7s %-20s %t\n", i, st.ID(), st.Role(), st.State(), st.Armed())
	}
}

func (s *Shell) cmdStatus(c Client) {
	s.mu.Lock()
	endpoint := s.endpoint
	s.mu.Unlock()

	fmt.Fprintf(s.out, "Endpoint:   %s\n", endpoint)
	fmt.Fprintf(s.out, "State:      %s\n", c.State())
	if id := c.SessionID(); id != "" {
		fmt.Fprintf(s.out, "Session:    %s (generation %d)\n", id, c.Generation())
	}
	fmt.Fprintf(s.out, "Streams:    %d\n", c.StreamCount())
	fmt.Fprintf(s.out, "Started:    %t\n", c.Started())
}

func (s *Shell) cmdClose(c Client) {
	sess := c.Session()
	if sess == nil {
		fmt.Fprintln(s.out, "No session")
		return
	}
	if err := sess.Close("closed by user"); err != nil {
		fmt.Fprintf(s.out, "Close failed: %v\n", err)
	}
}
