package client

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/metrics"
	"github.com/bistream/bistream-go/pkg/session"
	"github.com/bistream/bistream-go/pkg/transport"
	"github.com/bistream/bistream-go/pkg/trust"
)

// Config configures a Client. The YAML-tagged fields may be loaded from a
// file with LoadConfig; zero values take the session defaults.
type Config struct {
	// Endpoint is the default server URL used by InitFromConfig.
	Endpoint string `yaml:"endpoint"`

	// CertHashes are the pinned SHA-256 digests used by InitFromConfig, in
	// hex, colon-hex or byte-array notation.
	CertHashes []string `yaml:"cert_hashes"`

	MaxFrameSize      uint32        `yaml:"max_frame_size"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	KeepAlivePeriod   time.Duration `yaml:"keep_alive_period"`
	MaxIdleTimeout    time.Duration `yaml:"max_idle_timeout"`
	SendQueueDepth    int           `yaml:"send_queue_depth"`
	ReceiveQueueDepth int           `yaml:"receive_queue_depth"`

	// Handler receives messages and lifecycle events (default: NopHandler).
	Handler Handler `yaml:"-"`

	// Dialer overrides the WebTransport dialer.
	Dialer transport.Dialer `yaml:"-"`

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger `yaml:"-"`

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger `yaml:"-"`

	// Metrics records session and stream metrics (optional).
	Metrics *metrics.Collector `yaml:"-"`
}

// DefaultConfig returns a configuration with the session defaults.
func DefaultConfig() Config {
	d := session.DefaultConfig()
	return Config{
		MaxFrameSize:      d.MaxFrameSize,
		HandshakeTimeout:  d.HandshakeTimeout,
		KeepAlivePeriod:   d.KeepAlivePeriod,
		MaxIdleTimeout:    d.MaxIdleTimeout,
		SendQueueDepth:    d.SendQueueDepth,
		ReceiveQueueDepth: d.ReceiveQueueDepth,
	}
}

// LoadConfig reads a YAML configuration file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Endpoint != "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil {
			return fmt.Errorf("%w: endpoint: %w", ErrInvalidConfig, err)
		}
		if u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("%w: endpoint %q must be an https URL", ErrInvalidConfig, c.Endpoint)
		}
	}
	if _, err := c.Descriptor(); err != nil {
		return fmt.Errorf("%w: cert_hashes: %w", ErrInvalidConfig, err)
	}
	if c.HandshakeTimeout < 0 || c.KeepAlivePeriod < 0 || c.MaxIdleTimeout < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if c.SendQueueDepth < 0 || c.ReceiveQueueDepth < 0 {
		return fmt.Errorf("%w: queue depths must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Descriptor parses CertHashes into a trust descriptor.
func (c Config) Descriptor() (trust.Descriptor, error) {
	return trust.ParseDigests(c.CertHashes...)
}

func (c Config) sessionConfig() session.Config {
	return session.Config{
		MaxFrameSize:      c.MaxFrameSize,
		HandshakeTimeout:  c.HandshakeTimeout,
		KeepAlivePeriod:   c.KeepAlivePeriod,
		MaxIdleTimeout:    c.MaxIdleTimeout,
		SendQueueDepth:    c.SendQueueDepth,
		ReceiveQueueDepth: c.ReceiveQueueDepth,
		Dialer:            c.Dialer,
		Logger:            c.Logger,
		ProtocolLogger:    c.ProtocolLogger,
		Metrics:           c.Metrics,
	}
}
