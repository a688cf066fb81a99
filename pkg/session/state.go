package session

import (
	"github.com/bistream/bistream-go/pkg/log"
)

// State is the lifecycle state of a Session.
type State int32

const (
	// StateConnecting indicates the handshake is in progress.
	StateConnecting State = iota

	// StateActive indicates streams may be created.
	StateActive

	// StateClosed indicates an orderly close (local or peer).
	StateClosed

	// StateFailed indicates the transport failed. See Session.Err.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateActive:
		return "ACTIVE"
	case StateClosed:
		return "CLOSED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// StateChange describes one session transition.
type StateChange struct {
	Old    State
	New    State
	Reason string

	// Err is the failure for transitions to StateFailed.
	Err error
}

// StreamState is the lifecycle state of a Stream.
type StreamState int32

const (
	// StreamOpen indicates both directions are open.
	StreamOpen StreamState = iota

	// StreamHalfClosedSend indicates the local side finished sending.
	StreamHalfClosedSend

	// StreamHalfClosedReceive indicates the receive direction ended.
	StreamHalfClosedReceive

	// StreamClosed indicates both directions ended or the session closed.
	StreamClosed

	// StreamErrored indicates a stream-local failure. See Stream.Err.
	StreamErrored
)

// String returns the stream state name.
func (s StreamState) String() string {
	switch s {
	case StreamOpen:
		return "OPEN"
	case StreamHalfClosedSend:
		return "HALF_CLOSED_SEND"
	case StreamHalfClosedReceive:
		return "HALF_CLOSED_RECEIVE"
	case StreamClosed:
		return "CLOSED"
	case StreamErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the stream can no longer transfer data.
func (s StreamState) Terminal() bool {
	return s == StreamClosed || s == StreamErrored
}

// Role tags a stream with the isFirst flag it was set up with.
type Role uint8

const (
	// RoleFirst is the stream set up with isFirst=true.
	RoleFirst Role = iota + 1

	// RoleSecond is the stream set up with isFirst=false.
	RoleSecond
)

// RoleOf maps the isFirst flag to a Role.
func RoleOf(isFirst bool) Role {
	if isFirst {
		return RoleFirst
	}
	return RoleSecond
}

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleFirst:
		return "first"
	case RoleSecond:
		return "second"
	default:
		return "unknown"
	}
}

func (r Role) logRole() log.Role {
	switch r {
	case RoleFirst:
		return log.RoleFirst
	case RoleSecond:
		return log.RoleSecond
	default:
		return log.RoleNone
	}
}
