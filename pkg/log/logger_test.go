package log

import (
	"testing"
	"time"
)

func TestNoopLoggerDoesNotPanic(t *testing.T) {
	logger := NoopLogger{}

	event := Event{
		Timestamp: time.Now(),
		SessionID: "sess",
		Direction: DirectionIn,
		Layer:     LayerTransport,
		Category:  CategoryMessage,
	}
	logger.Log(event)

	event.Frame = &FrameEvent{Size: 7, Data: []byte("abc")}
	logger.Log(event)

	event.Frame = nil
	event.StateChange = &StateChangeEvent{Entity: StateEntitySession, NewState: "ACTIVE"}
	logger.Log(event)

	event.StateChange = nil
	event.Error = &ErrorEventData{Message: "boom"}
	logger.Log(event)
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	m := &recordingLogger{}
	if OrNoop(m) != Logger(m) {
		t.Error("OrNoop should return non-nil loggers unchanged")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerTransport.String(), "TRANSPORT"},
		{LayerFraming.String(), "FRAMING"},
		{LayerClient.String(), "CLIENT"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{RoleFirst.String(), "FIRST"},
		{RoleSecond.String(), "SECOND"},
		{StateEntityStream.String(), "STREAM"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNewFrameEventTruncates(t *testing.T) {
	small := NewFrameEvent(4, []byte("hello"))
	if small.Size != 9 || small.Truncated || string(small.Data) != "hello" {
		t.Errorf("unexpected small frame event: %+v", small)
	}

	big := NewFrameEvent(4, make([]byte, MaxCapturedPayload+10))
	if !big.Truncated {
		t.Error("expected Truncated")
	}
	if len(big.Data) != MaxCapturedPayload {
		t.Errorf("len(Data) = %d, want %d", len(big.Data), MaxCapturedPayload)
	}
	if big.Size != 4+MaxCapturedPayload+10 {
		t.Errorf("Size = %d", big.Size)
	}
}

func TestNewFrameEventCopiesPayload(t *testing.T) {
	payload := []byte("abc")
	fe := NewFrameEvent(4, payload)
	payload[0] = 'x'
	if string(fe.Data) != "abc" {
		t.Error("frame event aliases the payload")
	}
}
