package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bistream/bistream-go/pkg/log"
)

func TestCollect(t *testing.T) {
	path := writeCapture(t, sampleSession())

	stats, err := Collect(path)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.EventsByLayer[log.LayerFraming])
	assert.Equal(t, 2, stats.EventsByDirection[log.DirectionIn])
	require.Len(t, stats.Sessions, 1)

	for _, sess := range stats.Sessions {
		assert.Equal(t, "READY", sess.LastState)
		assert.Equal(t, "https://localhost:3030/", sess.Endpoint)
		require.Len(t, sess.Streams, 2)

		first := sess.Streams[4]
		assert.Equal(t, log.RoleFirst, first.Role)
		assert.Equal(t, 1, first.MessagesOut)
		assert.Equal(t, 1, first.MessagesIn)
		assert.Equal(t, 9, first.BytesOut)
		assert.Equal(t, 19, first.BytesIn)

		second := sess.Streams[8]
		assert.Equal(t, log.RoleSecond, second.Role)
		assert.Equal(t, 1, second.Errors)
	}
}

func TestRunStatsOutput(t *testing.T) {
	path := writeCapture(t, sampleSession())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	output := buf.String()

	assert.Contains(t, output, "Total Events: 4")
	assert.Contains(t, output, "Sessions (1):")
	assert.Contains(t, output, "5f0c2a9e: 4 events, 1 errors, last state READY")
	assert.Contains(t, output, "Stream 4 (FIRST): in 1 msgs/19 bytes, out 1 msgs/9 bytes")
	assert.Contains(t, output, "Stream 8 (SECOND)")
}

func TestRunStatsEmpty(t *testing.T) {
	path := writeCapture(t, nil)

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	assert.Contains(t, buf.String(), "No events.")
}
