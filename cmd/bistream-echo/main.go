// Command bistream-echo is a WebTransport echo server for bistream clients.
//
// It generates a short-lived self-signed identity, prints the certificate
// hash clients must pin, and replies to every framed message on a
// bidirectional stream with "Received: <message>". Unidirectional streams
// are read and logged.
//
// Usage:
//
//	bistream-echo [flags]
//
// Flags:
//
//	-config string        YAML configuration file
//	-addr string          UDP listen address (default ":3030")
//	-path string          WebTransport URL path (default "/")
//	-prefix string        Reply prefix (default "Received: ")
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-log-file string      Write logs to a rotating file instead of stderr
//	-protocol-log string  Capture protocol events to a .blog file
//	-metrics-addr string  Serve Prometheus metrics on this TCP address
//
// Examples:
//
//	# Serve on the default port and print the hash to pin
//	bistream-echo
//
//	# Capture every frame for later inspection with bistream-log
//	bistream-echo -protocol-log echo.blog -log-level debug
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bistream/bistream-go/internal/cmdutil"
	"github.com/bistream/bistream-go/pkg/echo"
	"github.com/bistream/bistream-go/pkg/trust"
)

// Config holds the command-line configuration.
type Config struct {
	ConfigFile  string
	Address     string
	Path        string
	Prefix      string
	LogLevel    string
	LogFile     string
	ProtocolLog string
	MetricsAddr string
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&config.Address, "addr", "", "UDP listen address (default \":3030\")")
	flag.StringVar(&config.Path, "path", "", "WebTransport URL path (default \"/\")")
	flag.StringVar(&config.Prefix, "prefix", "", "Reply prefix (default \"Received: \")")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFile, "log-file", "", "Write logs to a rotating file instead of stderr")
	flag.StringVar(&config.ProtocolLog, "protocol-log", "", "Capture protocol events to a .blog file")
	flag.StringVar(&config.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this TCP address")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	logger, logCloser, err := cmdutil.NewLogger(config.LogLevel, config.LogFile, os.Stderr)
	if err != nil {
		log.Fatalf("Invalid logging options: %v", err)
	}
	defer logCloser.Close()

	srvConfig, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	srvConfig.Logger = logger

	capture := cmdutil.NewCapture(config.ProtocolLog, logger, config.LogLevel == "debug")
	defer capture.Close()
	if l := capture.Logger(); l != nil {
		srvConfig.ProtocolLogger = l
	}
	if config.ProtocolLog != "" {
		log.Printf("Protocol logging to: %s", config.ProtocolLog)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ms *cmdutil.MetricsServer
	if config.MetricsAddr != "" {
		ms, err = cmdutil.StartMetrics(config.MetricsAddr, logger)
		if err != nil {
			log.Fatalf("Failed to start metrics server: %v", err)
		}
		srvConfig.Metrics = ms.Collector()
	}

	srv, err := echo.NewServer(srvConfig)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	hash := srv.CertificateHash()
	log.Println("Bistream Echo Server")
	log.Println("====================")
	log.Printf("Listening: %s%s", srvConfig.Address, srvConfig.Path)
	log.Printf("Certificate hash (hex):   %s", trust.FormatHex(hash))
	log.Printf("Certificate hash (bytes): %s", trust.FormatBytesArray(hash))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal: %v", sig)
	case err := <-errCh:
		if err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}

	log.Println("Shutting down...")
	cancel()
	if err := srv.Close(); err != nil {
		log.Printf("Error stopping server: %v", err)
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
func loadConfig() (echo.Config, error) {
	cfg := echo.DefaultConfig()
	if config.ConfigFile != "" {
		var err error
		if cfg, err = echo.LoadConfig(config.ConfigFile); err != nil {
			return cfg, err
		}
	}
	if config.Address != "" {
		cfg.Address = config.Address
	}
	if config.Path != "" {
		cfg.Path = config.Path
	}
	if config.Prefix != "" {
		cfg.ReplyPrefix = config.Prefix
	}
	return cfg, cfg.Validate()
}
