package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bistream/bistream-go/pkg/log"
)

func TestFormatFrameEvent(t *testing.T) {
	event := sampleSession()[1]

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	assert.Contains(t, output, "2026-03-14T09:26:53.590793Z")
	assert.Contains(t, output, "[session:5f0c2a9e/4]")
	assert.Contains(t, output, "OUT FRAMING Frame (FIRST)")
	assert.Contains(t, output, "Size: 9 bytes")
	assert.Contains(t, output, `Text: "hello"`)
}

func TestFormatBinaryFrame(t *testing.T) {
	event := log.Event{
		Timestamp: baseTime,
		SessionID: "abc",
		Frame:     &log.FrameEvent{Size: 6, Data: []byte{0xff, 0xfe}, Truncated: true},
	}

	var buf bytes.Buffer
	formatEvent(&buf, event)

	assert.Contains(t, buf.String(), "[session:abc]")
	assert.Contains(t, buf.String(), "Data: fffe (truncated)")
}

func TestFormatStateChangeEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleSession()[0])
	output := buf.String()

	assert.Contains(t, output, "TRANSPORT State")
	assert.Contains(t, output, "Endpoint: https://localhost:3030/")
	assert.Contains(t, output, "Entity: SESSION")
	assert.Contains(t, output, "CONNECTING -> READY")
}

func TestFormatErrorEvent(t *testing.T) {
	code := uint64(7)
	event := sampleSession()[3]
	event.Error.Code = &code
	event.Error.Context = "receive"

	var buf bytes.Buffer
	formatEvent(&buf, event)
	output := buf.String()

	assert.Contains(t, output, "IN  TRANSPORT Error (SECOND)")
	assert.Contains(t, output, "Message: stream reset by peer")
	assert.Contains(t, output, "Code: 7")
	assert.Contains(t, output, "Context: receive")
}

func TestRunViewAppliesFilter(t *testing.T) {
	path := writeCapture(t, sampleSession())

	filter, err := FilterFlags{Direction: "in", Layer: "framing"}.Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, filter, &buf))

	output := buf.String()
	assert.Equal(t, 1, strings.Count(output, "[session:"))
	assert.Contains(t, output, `"Received: hello"`)
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView("/nonexistent/capture.blog", log.Filter{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFilterFlagsBuild(t *testing.T) {
	t.Run("all fields", func(t *testing.T) {
		f, err := FilterFlags{
			SessionID: "s",
			StreamID:  "4",
			TimeStart: "2026-03-14T09:00:00Z",
			TimeEnd:   "2026-03-14T10:00:00Z",
			Layer:     "CLIENT",
			Direction: "Out",
			Category:  "state",
		}.Build()
		require.NoError(t, err)

		assert.Equal(t, "s", f.SessionID)
		require.NotNil(t, f.StreamID)
		assert.Equal(t, uint64(4), *f.StreamID)
		assert.Equal(t, log.LayerClient, *f.Layer)
		assert.Equal(t, log.DirectionOut, *f.Direction)
		assert.Equal(t, log.CategoryState, *f.Category)
		assert.True(t, f.TimeStart.Before(*f.TimeEnd))
	})

	invalid := []FilterFlags{
		{StreamID: "four"},
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
		{Layer: "wire"},
		{Direction: "sideways"},
		{Category: "control"},
	}
	for _, flags := range invalid {
		_, err := flags.Build()
		assert.Error(t, err, "%+v", flags)
	}
}
