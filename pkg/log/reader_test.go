package log

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, event)
	}
}

func filterEvents(t *testing.T, events []Event, f Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(createTestLogFile(t, events), f)
	require.NoError(t, err)
	defer reader.Close()
	return readAll(t, reader)
}

var t0 = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func TestReaderIteratesEvents(t *testing.T) {
	events := []Event{
		{Timestamp: t0, SessionID: "s-1", Layer: LayerTransport, Category: CategoryState},
		{Timestamp: t0.Add(time.Nanosecond), SessionID: "s-1", StreamID: 1, Layer: LayerFraming, Frame: NewFrameEvent(4, []byte("a"))},
		{Timestamp: t0.Add(time.Second), SessionID: "s-2", Layer: LayerClient, Category: CategoryError},
	}

	got := filterEvents(t, events, Filter{})
	require.Len(t, got, 3)
	assert.Equal(t, "s-1", got[0].SessionID)
	assert.True(t, got[1].Timestamp.Equal(t0.Add(time.Nanosecond)), "nanosecond precision lost")
	assert.Equal(t, []byte("a"), got[1].Frame.Data)
	assert.Equal(t, "s-2", got[2].SessionID)
}

func TestReaderHandlesEmptyFile(t *testing.T) {
	reader, err := NewReader(createTestLogFile(t, nil))
	require.NoError(t, err)
	defer reader.Close()

	_, err = reader.Next()
	assert.Equal(t, io.EOF, err)
}

func TestReaderHandlesTruncatedFile(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: t0, SessionID: "s-1"}})

	partial, err := EncodeEvent(Event{Timestamp: t0, SessionID: "s-2"})
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write(partial[:len(partial)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "s-1", first.SessionID)

	_, err = reader.Next()
	require.Error(t, err)
	assert.NotEqual(t, io.EOF, err)
}

func TestReaderFilters(t *testing.T) {
	events := []Event{
		{Timestamp: t0, SessionID: "s-1", StreamID: 1, Direction: DirectionOut, Layer: LayerFraming, Category: CategoryMessage},
		{Timestamp: t0.Add(time.Second), SessionID: "s-1", StreamID: 2, Direction: DirectionIn, Layer: LayerFraming, Category: CategoryMessage},
		{Timestamp: t0.Add(2 * time.Second), SessionID: "s-1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryState},
		{Timestamp: t0.Add(3 * time.Second), SessionID: "s-2", StreamID: 1, Direction: DirectionIn, Layer: LayerClient, Category: CategoryError},
	}

	stream1 := uint64(1)
	in := DirectionIn
	framing := LayerFraming
	state := CategoryState
	start := t0.Add(time.Second)
	end := t0.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"none", Filter{}, 4},
		{"session", Filter{SessionID: "s-1"}, 3},
		{"stream", Filter{StreamID: &stream1}, 2},
		{"direction", Filter{Direction: &in}, 3},
		{"layer", Filter{Layer: &framing}, 2},
		{"category", Filter{Category: &state}, 1},
		{"time range end exclusive", Filter{TimeStart: &start, TimeEnd: &end}, 2},
		{"combined", Filter{SessionID: "s-1", Direction: &in, Layer: &framing}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, filterEvents(t, events, tt.filter), tt.want)
		})
	}
}
