package session

import (
	"log/slog"
	"time"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/metrics"
	"github.com/bistream/bistream-go/pkg/transport"
)

// Default configuration values.
const (
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultKeepAlivePeriod   = 3 * time.Second
	DefaultMaxIdleTimeout    = 30 * time.Second
	DefaultSendQueueDepth    = 16
	DefaultReceiveQueueDepth = 64
	DefaultReadBufferSize    = 65536
)

// Config configures a Session. Zero fields take defaults.
type Config struct {
	// MaxFrameSize is the largest payload sent or accepted (default: 64 KiB).
	MaxFrameSize uint32

	// HandshakeTimeout bounds Connect (default: 10s).
	HandshakeTimeout time.Duration

	// KeepAlivePeriod is the QUIC keep-alive interval (default: 3s).
	KeepAlivePeriod time.Duration

	// MaxIdleTimeout fails the session after this much silence (default: 30s).
	MaxIdleTimeout time.Duration

	// SendQueueDepth bounds each stream's outbound queue (default: 16).
	SendQueueDepth int

	// ReceiveQueueDepth bounds decoded messages awaiting Next (default: 64).
	ReceiveQueueDepth int

	// ReadBufferSize is the chunk size of stream reads (default: 64 KiB).
	ReadBufferSize int

	// Dialer establishes the transport (default: WebTransport over QUIC).
	Dialer transport.Dialer

	// Logger receives operational logs (default: slog.Default()).
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events (optional).
	ProtocolLogger log.Logger

	// Metrics records session and stream metrics (optional).
	Metrics *metrics.Collector

	// OnStateChange is called for every session transition, in order.
	// It may call back into the Session.
	OnStateChange func(StateChange)
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		MaxFrameSize:      framing.DefaultMaxFrameSize,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		KeepAlivePeriod:   DefaultKeepAlivePeriod,
		MaxIdleTimeout:    DefaultMaxIdleTimeout,
		SendQueueDepth:    DefaultSendQueueDepth,
		ReceiveQueueDepth: DefaultReceiveQueueDepth,
		ReadBufferSize:    DefaultReadBufferSize,
	}
}

func (c *Config) applyDefaults() {
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = framing.DefaultMaxFrameSize
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.KeepAlivePeriod == 0 {
		c.KeepAlivePeriod = DefaultKeepAlivePeriod
	}
	if c.MaxIdleTimeout == 0 {
		c.MaxIdleTimeout = DefaultMaxIdleTimeout
	}
	if c.SendQueueDepth <= 0 {
		c.SendQueueDepth = DefaultSendQueueDepth
	}
	if c.ReceiveQueueDepth <= 0 {
		c.ReceiveQueueDepth = DefaultReceiveQueueDepth
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Dialer == nil {
		c.Dialer = transport.WebTransportDialer{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	c.ProtocolLogger = log.OrNoop(c.ProtocolLogger)
}
