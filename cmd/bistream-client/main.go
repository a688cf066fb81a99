// Command bistream-client opens a WebTransport session pinned to a set of
// certificate hashes and exchanges framed messages over bidirectional
// streams.
//
// Usage:
//
//	bistream-client [flags]
//
// Flags:
//
//	-config string        YAML client configuration file
//	-url string           Server URL (overrides the config endpoint)
//	-hash value           Pinned certificate hash; may be repeated
//	-streams string       Stream roles to set up in batch mode (default "first,second")
//	-message string       Message sent to stream 0 in batch mode
//	-init-retries int     Extra init attempts on unreachable or timed out servers
//	-interactive          Enable interactive command mode
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-file string      Write logs to a rotating file instead of stderr
//	-protocol-log string  Capture protocol events to a .blog file
//	-metrics-addr string  Serve Prometheus metrics on this TCP address
//
// Examples:
//
//	# Send "hello" to a local echo server
//	bistream-client -url https://localhost:3030/ -hash <hex> -message hello
//
//	# Drive the client by hand
//	bistream-client -url https://localhost:3030/ -hash <hex> -interactive
//
// Interactive Commands:
//
//	init [url] [hash...]    - Open a session
//	restart                 - Open a new session with the last url and hashes
//	setup first|second      - Set up a bidirectional stream
//	start                   - Start receiving on every stream
//	send <index> <message>  - Send a message on a stream
//	streams                 - List the streams
//	status                  - Show the session status
//	close                   - Close the session
//	quit                    - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bistream/bistream-go/cmd/bistream-client/interactive"
	"github.com/bistream/bistream-go/internal/cmdutil"
	"github.com/bistream/bistream-go/pkg/backoff"
	"github.com/bistream/bistream-go/pkg/client"
	"github.com/bistream/bistream-go/pkg/session"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	URL         string
	Hashes      hashList
	Streams     string
	Message     string
	InitRetries int
	Interactive bool
	LogLevel    string
	LogFile     string
	ProtocolLog string
	MetricsAddr string
}

// hashList collects repeated -hash flags.
type hashList []string

func (h *hashList) String() string {
	return strings.Join(*h, ",")
}

func (h *hashList) Set(v string) error {
	*h = append(*h, v)
	return nil
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML client configuration file")
	flag.StringVar(&config.URL, "url", "", "Server URL (overrides the config endpoint)")
	flag.Var(&config.Hashes, "hash", "Pinned certificate hash; may be repeated")
	flag.StringVar(&config.Streams, "streams", "first,second", "Stream roles to set up in batch mode")
	flag.StringVar(&config.Message, "message", "", "Message sent to stream 0 in batch mode")
	flag.IntVar(&config.InitRetries, "init-retries", 0, "Extra init attempts on unreachable or timed out servers")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Capture protocol events to a .blog file")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this TCP address")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	roles, err := parseRoles(config.Streams)
	if err != nil {
		log.Fatalf("Invalid -streams: %v", err)
	}
	td, err := cfg.Descriptor()
	if err != nil {
		log.Fatalf("Invalid certificate hash: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var shell *interactive.Shell
	if config.Interactive {
		shell, err = interactive.New(interactive.Options{
			Endpoint:    cfg.Endpoint,
			CertHashes:  td.Bytes(),
			InitRetries: config.InitRetries,
			Backoff:     backoff.Config{},
		})
		if err != nil {
			log.Fatalf("Failed to create interactive shell: %v", err)
		}
		// Redirect log output through readline to avoid interfering with input
		log.SetOutput(shell.Stdout())
		cfg.Handler = shell
	} else {
		cfg.Handler = printHandler()
	}

	logOut := log.Writer()
	logger, logCloser, err := cmdutil.NewLogger(config.LogLevel, config.LogFile, logOut)
	if err != nil {
		log.Fatalf("Invalid logging options: %v", err)
	}
	defer logCloser.Close()
	cfg.Logger = logger

	capture := cmdutil.NewCapture(config.ProtocolLog, logger, config.LogLevel == "debug")
	defer capture.Close()
	if l := capture.Logger(); l != nil {
		cfg.ProtocolLogger = l
	}

	var ms *cmdutil.MetricsServer
	if config.MetricsAddr != "" {
		ms, err = cmdutil.StartMetrics(config.MetricsAddr, logger)
		if err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		cfg.Metrics = ms.Collector()
	}

	c, err := client.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}

	log.Println("Bistream Client")
	log.Println("===============")
	if cfg.Endpoint != "" {
		log.Printf("Endpoint: %s (%d pinned hashes)", cfg.Endpoint, td.Len())
	}

	if config.Interactive {
		shell.Bind(c)
		go shell.Run(ctx, cancel)
	} else {
		if err := runBatch(ctx, c, cfg.Endpoint, td.Bytes(), roles); err != nil {
			log.Printf("Error: %v", err)
			cancel()
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	cancel()
	if err := c.Close(); err != nil {
		log.Printf("Error closing client: %v", err)
	}
	if ms != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ms.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error stopping metrics server: %v", err)
		}
		shutdownCancel()
	}
	if n := capture.Dropped(); n > 0 {
		log.Printf("Warning: %d protocol events were not captured", n)
	}

	log.Println("Goodbye!")
}

// loadConfig reads the YAML file, if any, and applies flag overrides.
func loadConfig() (client.Config, error) {
	cfg := client.DefaultConfig()
	if config.ConfigFile != "" {
		var err error
		if cfg, err = client.LoadConfig(config.ConfigFile); err != nil {
			return cfg, err
		}
	}
	if config.URL != "" {
		cfg.Endpoint = config.URL
	}
	if len(config.Hashes) > 0 {
		cfg.CertHashes = append([]string(nil), config.Hashes...)
	}
	if !config.Interactive && cfg.Endpoint == "" {
		return cfg, fmt.Errorf("%w: -url or a config endpoint is required", client.ErrInvalidConfig)
	}
	return cfg, cfg.Validate()
}

// parseRoles parses a comma-separated list of "first" and "second".
func parseRoles(s string) ([]bool, error) {
	var roles []bool
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "":
		case "first", "1":
			roles = append(roles, true)
		case "second", "2":
			roles = append(roles, false)
		default:
			return nil, fmt.Errorf("unknown role %q (use first or second)", part)
		}
	}
	return roles, nil
}

// runBatch initializes the session, sets up the streams, starts them and
// sends the optional message. Received messages are printed by the handler.
func runBatch(ctx context.Context, c *client.Client, endpoint string, certHashes []byte, roles []bool) error {
	err := interactive.Init(ctx, c, endpoint, certHashes, config.InitRetries, backoff.Config{},
		func(attempt int, delay time.Duration, err error) {
			log.Printf("Init attempt %d failed: %v (retrying in %s)", attempt, err, delay.Round(time.Millisecond))
		})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	log.Printf("Session %s is %s", c.SessionID(), c.State())

	for _, isFirst := range roles {
		h, err := c.SetupBistream(ctx, isFirst)
		if err != nil {
			return fmt.Errorf("setup: %w", err)
		}
		log.Printf("Stream %d ready (id %d, %s)", c.StreamCount()-1, h.Stream().ID(), h.Stream().Role())
	}

	if err := c.StartBistreams(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if config.Message != "" {
		if err := c.SendMessageToStream(ctx, 0, config.Message); err != nil {
			return fmt.Errorf("send: %w", err)
		}
		log.Printf("Sent %q on stream 0", config.Message)
	}
	return nil
}

func printHandler() client.Handler {
	return client.HandlerFuncs{
		Message: func(d client.Delivery) {
			log.Printf("[stream %d] %s", d.Index, d.Message)
		},
		StreamEnd: func(e client.StreamEnd) {
			if e.Err != nil {
				log.Printf("[stream %d] ended: %v", e.Index, e.Err)
				return
			}
			log.Printf("[stream %d] ended", e.Index)
		},
		StateChange: func(gen uint64, ch session.StateChange) {
			log.Printf("[session %d] %s -> %s", gen, ch.Old, ch.New)
		},
	}
}
