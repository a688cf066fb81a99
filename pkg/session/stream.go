package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/transport"
)

// Stream is a bidirectional stream owned by a Session.
type Stream struct {
	sess   *Session
	id     uint64
	role   Role
	raw    transport.Stream
	logger *slog.Logger
	armed  atomic.Bool

	send *SendHalf
	recv *ReceiveHalf

	mu    sync.Mutex
	state StreamState
	err   error
	cause error
	abort chan struct{} // closed on Errored or session close
	done  chan struct{} // closed on any terminal state
}

func newStream(s *Session, id uint64, role Role, raw transport.Stream) *Stream {
	st := &Stream{
		sess:  s,
		id:    id,
		role:  role,
		raw:   raw,
		state: StreamOpen,
		abort: make(chan struct{}),
		done:  make(chan struct{}),
		logger: s.logger.With(
			slog.Uint64("stream_id", id),
			slog.String("role", role.String()),
		),
	}
	st.send = newSendHalf(st)
	st.recv = newReceiveHalf(st)
	return st
}

func (st *Stream) start() {
	go st.send.run()
}

// ID returns the session-local stream identifier.
func (st *Stream) ID() uint64 {
	return st.id
}

// Role returns the role the stream was created with.
func (st *Stream) Role() Role {
	return st.role
}

// Session returns the owning session.
func (st *Stream) Session() *Session {
	return st.sess
}

// SendHalf returns the outbound direction.
func (st *Stream) SendHalf() *SendHalf {
	return st.send
}

// ReceiveHalf returns the inbound direction.
func (st *Stream) ReceiveHalf() *ReceiveHalf {
	return st.recv
}

// Arm allows sends on the stream. Arming is idempotent.
func (st *Stream) Arm() {
	if st.armed.CompareAndSwap(false, true) {
		st.logger.Debug("stream armed")
		st.sess.capture(log.Event{
			StreamID: st.id,
			Layer:    log.LayerClient,
			Category: log.CategoryState,
			Role:     st.role.logRole(),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityClient,
				NewState: "ARMED",
			},
		})
	}
}

// Armed reports whether Arm was called.
func (st *Stream) Armed() bool {
	return st.armed.Load()
}

// State returns the current stream state.
func (st *Stream) State() StreamState {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state
}

// Err returns the failure once the stream is Errored, nil otherwise.
func (st *Stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Done is closed when the stream reaches Closed or Errored.
func (st *Stream) Done() <-chan struct{} {
	return st.done
}

// CloseSend finishes the send direction once already queued messages are
// written. Incoming messages are still delivered.
func (st *Stream) CloseSend() error {
	return st.send.close()
}

// Reset aborts both directions with code. The stream becomes Errored; the
// session and sibling streams are unaffected.
func (st *Stream) Reset(code transport.ErrorCode) {
	err := fmt.Errorf("%w: reset locally (code %d)", ErrStreamClosed, code)
	if st.terminate(StreamErrored, err) {
		st.raw.CancelWrite(code)
		st.raw.CancelRead(code)
	}
}

// abortErr returns the reason the stream was aborted, or nil.
func (st *Stream) abortErr() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.cause
}

// terminate moves the stream to Closed or Errored and wakes every pending
// operation. It reports false if the stream had already terminated.
func (st *Stream) terminate(to StreamState, cause error) bool {
	st.mu.Lock()
	if st.state.Terminal() {
		st.mu.Unlock()
		return false
	}
	from := st.state
	st.state = to
	st.cause = cause
	if to == StreamErrored {
		st.err = cause
	}
	close(st.abort)
	close(st.done)
	st.mu.Unlock()

	st.ended(from, to, cause)
	return true
}

// halfClose records the end of one direction; the second one closes the
// stream.
func (st *Stream) halfClose(dir StreamState) {
	st.mu.Lock()
	from := st.state
	switch {
	case from == StreamOpen:
		st.state = dir
	case from == StreamHalfClosedSend && dir == StreamHalfClosedReceive,
		from == StreamHalfClosedReceive && dir == StreamHalfClosedSend:
		st.state = StreamClosed
		close(st.done)
	default:
		st.mu.Unlock()
		return
	}
	to := st.state
	st.mu.Unlock()

	if to == StreamClosed {
		st.ended(from, to, nil)
		return
	}
	st.captureState(from, to, "")
	st.logger.Debug("stream half-closed", slog.String("state", to.String()))
}

func (st *Stream) ended(from, to StreamState, cause error) {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	st.sess.config.Metrics.StreamEnded(to.String())
	st.captureState(from, to, reason)
	if to == StreamErrored {
		st.logger.Warn("stream errored", slog.Any("error", cause))
	} else {
		st.logger.Debug("stream closed", slog.String("reason", reason))
	}
}

// transportFailed classifies a read or write error. A peer reset errors only
// this stream; a dead connection escalates to the session.
func (st *Stream) transportFailed(err error) error {
	if cause := st.abortErr(); cause != nil {
		return cause
	}
	if st.sess.connEnded() {
		st.sess.handleConnEnd()
		if cause := st.abortErr(); cause != nil {
			return cause
		}
		return fmt.Errorf("%w: %w", ErrSessionClosed, err)
	}

	failure := fmt.Errorf("%w: %w", ErrStreamClosed, err)
	var reset *transport.ResetError
	if errors.As(err, &reset) && reset.Remote {
		failure = fmt.Errorf("%w: peer reset (code %d)", ErrStreamClosed, reset.Code)
	}
	if st.terminate(StreamErrored, failure) {
		st.raw.CancelRead(transport.CodeCancelled)
		st.raw.CancelWrite(transport.CodeCancelled)
	}
	return st.abortErr()
}

func (st *Stream) captureState(from, to StreamState, reason string) {
	st.sess.capture(log.Event{
		StreamID: st.id,
		Layer:    log.LayerTransport,
		Category: log.CategoryState,
		Role:     st.role.logRole(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityStream,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})
}

func (st *Stream) captureError(layer log.Layer, err error, context string, code *uint64) {
	st.sess.capture(log.Event{
		StreamID: st.id,
		Layer:    layer,
		Category: log.CategoryError,
		Role:     st.role.logRole(),
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Code:    code,
			Context: context,
		},
	})
}
