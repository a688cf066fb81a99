package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the WebTransport session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// StreamID identifies the stream within the session. Zero for
	// session-level events.
	StreamID uint64 `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// Role is the client role of the stream, if any.
	Role Role `cbor:"7,keyasint,omitempty"`

	// Endpoint is the session URL.
	Endpoint string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Framing layer
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Session/stream/client state
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the session and stream layer.
	LayerTransport Layer = 0
	// LayerFraming is the length-prefix message layer.
	LayerFraming Layer = 1
	// LayerClient is the client facade.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerFraming:
		return "FRAMING"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an application message frame.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role is the client-assigned role of a bidirectional stream.
type Role uint8

const (
	// RoleNone is used for session-level events.
	RoleNone Role = 0
	// RoleFirst marks the stream set up with isFirst=true.
	RoleFirst Role = 1
	// RoleSecond marks the stream set up with isFirst=false.
	RoleSecond Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleNone:
		return "NONE"
	case RoleFirst:
		return "FIRST"
	case RoleSecond:
		return "SECOND"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures one length-prefixed frame.
type FrameEvent struct {
	// Size is the frame size in bytes (including length prefix).
	Size int `cbor:"1,keyasint"`

	// Data is the message payload (without prefix). May be truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated is set when Data holds only a prefix of the payload.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MaxCapturedPayload bounds FrameEvent.Data.
const MaxCapturedPayload = 4096

// NewFrameEvent builds a FrameEvent for payload, truncating the captured
// bytes at MaxCapturedPayload.
func NewFrameEvent(prefixLen int, payload []byte) *FrameEvent {
	fe := &FrameEvent{Size: prefixLen + len(payload)}
	data := payload
	if len(data) > MaxCapturedPayload {
		data = data[:MaxCapturedPayload]
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data...)
	return fe
}

// StateChangeEvent captures a lifecycle transition.
type StateChangeEvent struct {
	// Entity is what changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state name.
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"3,keyasint"`

	// Reason explains the transition, if known.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity identifies the kind of object that changed state.
type StateEntity uint8

const (
	// StateEntitySession is a WebTransport session.
	StateEntitySession StateEntity = 0
	// StateEntityStream is a bidirectional stream.
	StateEntityStream StateEntity = 1
	// StateEntityClient is the client facade (arming, rebinding).
	StateEntityClient StateEntity = 2
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case StateEntitySession:
		return "SESSION"
	case StateEntityStream:
		return "STREAM"
	case StateEntityClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error originated.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Code is a stream or session error code, if one was sent or received.
	Code *uint64 `cbor:"3,keyasint,omitempty"`

	// Context describes what was being attempted.
	Context string `cbor:"4,keyasint,omitempty"`
}
