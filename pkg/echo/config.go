package echo

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/metrics"
	"github.com/bistream/bistream-go/pkg/transport"
)

// Default configuration values.
const (
	DefaultPath            = "/"
	DefaultReplyPrefix     = "Received: "
	DefaultKeepAlivePeriod = 3 * time.Second
	DefaultMaxIdleTimeout  = 30 * time.Second
)

// DefaultHosts are the names the self-signed identity is issued for.
var DefaultHosts = []string{"localhost", "127.0.0.1", "::1"}

// Config configures an echo Server.
type Config struct {
	// Address is the UDP address to listen on (default ":3030").
	Address string `yaml:"address"`

	// Path is the URL path accepting WebTransport sessions (default "/").
	Path string `yaml:"path"`

	// Hosts are the DNS names and IPs of the self-signed identity.
	Hosts []string `yaml:"hosts"`

	// ReplyPrefix is prepended to every echoed message.
	ReplyPrefix string `yaml:"reply_prefix"`

	KeepAlivePeriod time.Duration `yaml:"keep_alive_period"`
	MaxIdleTimeout  time.Duration `yaml:"max_idle_timeout"`
	MaxFrameSize    uint32        `yaml:"max_frame_size"`

	// Certificate overrides the self-signed identity.
	Certificate *tls.Certificate `yaml:"-"`

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger `yaml:"-"`

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger `yaml:"-"`

	// Metrics records frame counters (optional).
	Metrics *metrics.Collector `yaml:"-"`
}

// DefaultConfig returns the default echo server configuration.
func DefaultConfig() Config {
	return Config{
		Address:         fmt.Sprintf(":%d", transport.DefaultPort),
		Path:            DefaultPath,
		Hosts:           append([]string(nil), DefaultHosts...),
		ReplyPrefix:     DefaultReplyPrefix,
		KeepAlivePeriod: DefaultKeepAlivePeriod,
		MaxIdleTimeout:  DefaultMaxIdleTimeout,
		MaxFrameSize:    framing.DefaultMaxFrameSize,
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
	return cfg, cfg.Validate()
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return fmt.Errorf("path %q must start with /", c.Path)
	}
	if c.KeepAlivePeriod < 0 || c.MaxIdleTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if len(c.Hosts) == 0 {
		c.Hosts = d.Hosts
	}
	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = d.KeepAlivePeriod
	}
	if c.MaxIdleTimeout == 0 {
		c.MaxIdleTimeout = d.MaxIdleTimeout
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = d.MaxFrameSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
}
