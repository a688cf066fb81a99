// Package metrics exposes Prometheus instrumentation for bistream sessions.
//
// A nil *Collector is valid and records nothing, so callers never need to
// guard metric calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bistream"

// Direction labels.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Collector groups the session and stream metrics.
type Collector struct {
	sessions       *prometheus.CounterVec
	sessionsActive prometheus.Gauge
	streamsOpened  *prometheus.CounterVec
	streamsActive  prometheus.Gauge
	streamsEnded   *prometheus.CounterVec
	frames         *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	frameErrors    *prometheus.CounterVec
	handshake      prometheus.Histogram
}

// NewCollector creates a Collector and registers it with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connects_total",
			Help:      "Session establishment attempts by result.",
		}, []string{"result"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Sessions currently active.",
		}),
		streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "opened_total",
			Help:      "Bidirectional streams opened by role.",
		}, []string{"role"}),
		streamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active",
			Help:      "Streams not yet closed or errored.",
		}),
		streamsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "ended_total",
			Help:      "Streams that reached a terminal state, by state.",
		}, []string{"state"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "framing",
			Name:      "frames_total",
			Help:      "Frames sent or received.",
		}, []string{"direction"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "framing",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes sent or received, excluding prefixes.",
		}, []string{"direction"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "framing",
			Name:      "errors_total",
			Help:      "Framing violations by kind.",
		}, []string{"kind"}),
		handshake: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "handshake_seconds",
			Help:      "Time from dial to an active session.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	for _, col := range []prometheus.Collector{
		c.sessions, c.sessionsActive, c.streamsOpened, c.streamsActive,
		c.streamsEnded, c.frames, c.bytes, c.frameErrors, c.handshake,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SessionConnected records a successful handshake taking seconds.
func (c *Collector) SessionConnected(seconds float64) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues("ok").Inc()
	c.sessionsActive.Inc()
	c.handshake.Observe(seconds)
}

// SessionFailed records a failed establishment attempt with reason
// ("untrusted", "timeout", "unreachable").
func (c *Collector) SessionFailed(reason string) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues(reason).Inc()
}

// SessionEnded records an active session leaving the active state.
func (c *Collector) SessionEnded() {
	if c == nil {
		return
	}
	c.sessionsActive.Dec()
}

// StreamOpened records a new stream with the given role.
func (c *Collector) StreamOpened(role string) {
	if c == nil {
		return
	}
	c.streamsOpened.WithLabelValues(role).Inc()
	c.streamsActive.Inc()
}

// StreamEnded records a stream reaching the terminal state.
func (c *Collector) StreamEnded(state string) {
	if c == nil {
		return
	}
	c.streamsEnded.WithLabelValues(state).Inc()
	c.streamsActive.Dec()
}

// Frame records one frame with payload size n.
func (c *Collector) Frame(direction string, n int) {
	if c == nil {
		return
	}
	c.frames.WithLabelValues(direction).Inc()
	c.bytes.WithLabelValues(direction).Add(float64(n))
}

// FrameError records a framing violation.
func (c *Collector) FrameError(kind string) {
	if c == nil {
		return
	}
	c.frameErrors.WithLabelValues(kind).Inc()
}
