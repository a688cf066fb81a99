package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.SessionConnected(0.1)
	c.SessionFailed("timeout")
	c.SessionEnded()
	c.StreamOpened("first")
	c.StreamEnded("closed")
	c.Frame(DirectionOut, 5)
	c.FrameError("oversized")
}

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.SessionConnected(0.05)
	c.SessionFailed("untrusted")
	c.StreamOpened("first")
	c.StreamOpened("second")
	c.StreamEnded("closed")
	c.Frame(DirectionOut, 5)
	c.Frame(DirectionOut, 7)
	c.Frame(DirectionIn, 3)
	c.FrameError("oversized")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("untrusted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.streamsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues(DirectionOut)))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.bytes.WithLabelValues(DirectionOut)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.bytes.WithLabelValues(DirectionIn)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frameErrors.WithLabelValues("oversized")))

	c.SessionEnded()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.sessionsActive))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	assert.Error(t, err)
}
