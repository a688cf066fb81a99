package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/bistream/bistream-go/pkg/log"
)

var baseTime = time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)

func writeCapture(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.blog")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close logger: %v", err)
	}
	return path
}

// sampleSession is a short hello exchange on one session.
func sampleSession() []log.Event {
	const sid = "5f0c2a9e-1b7d-4c3e-9a8f-2d6e4b1c0a77"
	return []log.Event{
		{
			Timestamp: baseTime, SessionID: sid, Direction: log.DirectionOut,
			Layer: log.LayerTransport, Category: log.CategoryState,
			Endpoint:    "https://localhost:3030/",
			StateChange: &log.StateChangeEvent{Entity: log.StateEntitySession, OldState: "CONNECTING", NewState: "READY"},
		},
		{
			Timestamp: baseTime.Add(time.Millisecond), SessionID: sid, StreamID: 4,
			Direction: log.DirectionOut, Layer: log.LayerFraming, Category: log.CategoryMessage,
			Role: log.RoleFirst, Frame: log.NewFrameEvent(4, []byte("hello")),
		},
		{
			Timestamp: baseTime.Add(2 * time.Millisecond), SessionID: sid, StreamID: 4,
			Direction: log.DirectionIn, Layer: log.LayerFraming, Category: log.CategoryMessage,
			Role: log.RoleFirst, Frame: log.NewFrameEvent(4, []byte("Received: hello")),
		},
		{
			Timestamp: baseTime.Add(3 * time.Millisecond), SessionID: sid, StreamID: 8,
			Direction: log.DirectionIn, Layer: log.LayerTransport, Category: log.CategoryError,
			Role:  log.RoleSecond,
			Error: &log.ErrorEventData{Layer: log.LayerTransport, Message: "stream reset by peer"},
		},
	}
}
