package log

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(session string, stream uint64) Event {
	return Event{
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		SessionID: session,
		StreamID:  stream,
		Direction: DirectionIn,
		Layer:     LayerFraming,
		Category:  CategoryMessage,
		Frame:     NewFrameEvent(4, []byte("payload")),
	}
}

func TestFileLoggerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.blog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	defer logger.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.blog")

	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	want := sampleEvent("sess-1", 4)
	logger.Log(want)
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, want.SessionID, got.SessionID)
	assert.Equal(t, want.StreamID, got.StreamID)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp precision lost")
	require.NotNil(t, got.Frame)
	assert.Equal(t, []byte("payload"), got.Frame.Data)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.blog")

	for i := range 2 {
		logger, err := NewFileLogger(path)
		require.NoError(t, err)
		logger.Log(sampleEvent("sess", uint64(i+1)))
		require.NoError(t, logger.Close())
	}

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	for i := range 2 {
		ev, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), ev.StreamID)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "capture.blog"))
	require.NoError(t, err)

	assert.NoError(t, logger.Close())
	assert.NoError(t, logger.Close())
	logger.Log(sampleEvent("after-close", 1))
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.blog")
	logger, err := NewFileLogger(path)
	require.NoError(t, err)

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWriter {
				logger.Log(sampleEvent("sess", uint64(w+1)))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	n := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, writers*perWriter, n)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failingWriter) Close() error              { return nil }

func TestWriterLoggerCountsDropped(t *testing.T) {
	logger := NewWriterLogger(failingWriter{})
	logger.Log(sampleEvent("a", 1))
	logger.Log(sampleEvent("a", 2))
	assert.Equal(t, uint64(2), logger.Dropped())
}

func TestStreamReaderFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(nopCloser{&buf})

	logger.Log(sampleEvent("a", 1))
	logger.Log(sampleEvent("b", 1))
	logger.Log(sampleEvent("a", 2))
	out := sampleEvent("a", 2)
	out.Direction = DirectionOut
	logger.Log(out)

	stream := uint64(2)
	dir := DirectionIn
	r := NewStreamReader(&buf, Filter{SessionID: "a", StreamID: &stream, Direction: &dir})

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", ev.SessionID)
	assert.Equal(t, uint64(2), ev.StreamID)
	assert.Equal(t, DirectionIn, ev.Direction)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, r.Close())
}

func TestFilterTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	start := base.Add(time.Minute)
	end := base.Add(2 * time.Minute)
	f := Filter{TimeStart: &start, TimeEnd: &end}

	tests := []struct {
		at   time.Time
		want bool
	}{
		{base, false},
		{start, true},
		{base.Add(90 * time.Second), true},
		{end, false},
	}
	for _, tt := range tests {
		if got := f.Matches(Event{Timestamp: tt.at}); got != tt.want {
			t.Errorf("Matches(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestRotatingFileLoggerWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotating.blog")
	logger := NewRotatingFileLogger(RotationConfig{Filename: path, MaxSizeMB: 1, MaxBackups: 2})

	logger.Log(sampleEvent("rot", 1))
	require.NoError(t, logger.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	ev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "rot", ev.SessionID)
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	_, err := DecodeEvent([]byte{0xff, 0x00})
	assert.Error(t, err)
}
