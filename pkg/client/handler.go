package client

import "github.com/bistream/bistream-go/pkg/session"

// Delivery is one message received on a stream.
type Delivery struct {
	Generation uint64
	SessionID  string
	Index      int
	StreamID   uint64
	Role       session.Role
	Message    []byte
}

// StreamEnd reports the end of a stream's receive sequence. Err is nil when
// the peer finished the stream cleanly.
type StreamEnd struct {
	Generation uint64
	SessionID  string
	Index      int
	StreamID   uint64
	Role       session.Role
	Err        error
}

// Handler receives events of the current session generation.
//
// Calls for one stream arrive in order from that stream's receive goroutine;
// calls for different streams may run concurrently. A Handler must not call
// InitSession or Close synchronously from a callback.
type Handler interface {
	OnMessage(d Delivery)
	OnStreamEnd(e StreamEnd)
	OnStateChange(generation uint64, change session.StateChange)
}

// NopHandler ignores every event.
type NopHandler struct{}

func (NopHandler) OnMessage(Delivery)                        {}
func (NopHandler) OnStreamEnd(StreamEnd)                     {}
func (NopHandler) OnStateChange(uint64, session.StateChange) {}

// HandlerFuncs adapts optional functions to a Handler.
type HandlerFuncs struct {
	Message     func(Delivery)
	StreamEnd   func(StreamEnd)
	StateChange func(uint64, session.StateChange)
}

func (h HandlerFuncs) OnMessage(d Delivery) {
	if h.Message != nil {
		h.Message(d)
	}
}

func (h HandlerFuncs) OnStreamEnd(e StreamEnd) {
	if h.StreamEnd != nil {
		h.StreamEnd(e)
	}
}

func (h HandlerFuncs) OnStateChange(gen uint64, ch session.StateChange) {
	if h.StateChange != nil {
		h.StateChange(gen, ch)
	}
}
