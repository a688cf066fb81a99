package session

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"sync"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/log"
	"github.com/bistream/bistream-go/pkg/metrics"
	"github.com/bistream/bistream-go/pkg/transport"
)

// ReceiveHalf is the inbound direction of a Stream. A reader goroutine is
// started on the first call to Next or Poll and decodes frames into a
// bounded queue.
type ReceiveHalf struct {
	st     *Stream
	once   sync.Once
	msgs   chan []byte
	endErr error // valid once msgs is closed
}

func newReceiveHalf(st *Stream) *ReceiveHalf {
	return &ReceiveHalf{
		st:   st,
		msgs: make(chan []byte, st.sess.config.ReceiveQueueDepth),
	}
}

// Stream returns the stream this half belongs to.
func (r *ReceiveHalf) Stream() *Stream {
	return r.st
}

// Next returns the next message. The sequence ends with io.EOF when the peer
// finished the stream, ErrSessionClosed when the session closed, or a framing
// error if the peer sent malformed data. After the end, Next keeps returning
// the same error.
func (r *ReceiveHalf) Next(ctx context.Context) ([]byte, error) {
	r.once.Do(func() { go r.run() })

	select {
	case msg, ok := <-r.msgs:
		if !ok {
			return nil, r.endErr
		}
		return msg, nil
	case <-r.st.abort:
		return nil, r.st.abortErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Poll returns the messages of the stream as an iterator. A clean end of
// stream stops the iteration; any other terminal error is yielded once as
// the final element.
func (r *ReceiveHalf) Poll(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for {
			msg, err := r.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(nil, err)
				}
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// run is the reader goroutine.
func (r *ReceiveHalf) run() {
	r.endErr = r.readLoop()
	close(r.msgs)
}

func (r *ReceiveHalf) readLoop() error {
	st := r.st
	cfg := st.sess.config
	dec := framing.NewDecoder(cfg.MaxFrameSize)
	buf := make([]byte, cfg.ReadBufferSize)

	for {
		n, readErr := st.raw.Read(buf)
		if n > 0 {
			msgs, err := dec.Feed(buf[:n])
			for _, msg := range msgs {
				if !r.deliver(msg) {
					return st.abortErr()
				}
			}
			if err != nil {
				return r.violation(err)
			}
		}
		if readErr == nil {
			continue
		}

		if errors.Is(readErr, io.EOF) {
			if err := dec.Finish(); err != nil {
				st.captureError(log.LayerFraming, err, "end of stream", nil)
				cfg.Metrics.FrameError("truncated")
				st.halfClose(StreamHalfClosedReceive)
				st.logger.Warn("stream ended inside a frame", slog.Any("error", err))
				return err
			}
			st.halfClose(StreamHalfClosedReceive)
			return io.EOF
		}
		return st.transportFailed(readErr)
	}
}

func (r *ReceiveHalf) deliver(msg []byte) bool {
	st := r.st
	st.sess.config.Metrics.Frame(metrics.DirectionIn, len(msg))
	st.sess.capture(log.Event{
		StreamID:  st.id,
		Direction: log.DirectionIn,
		Layer:     log.LayerFraming,
		Category:  log.CategoryMessage,
		Role:      st.role.logRole(),
		Frame:     log.NewFrameEvent(framing.LengthPrefixSize, msg),
	})

	select {
	case r.msgs <- msg:
		return true
	case <-st.abort:
		return false
	}
}

// violation stops the receive direction after malformed input. The send
// direction and sibling streams keep working.
func (r *ReceiveHalf) violation(err error) error {
	st := r.st
	code := uint64(transport.CodeProtocolViolation)
	st.raw.CancelRead(transport.CodeProtocolViolation)
	st.captureError(log.LayerFraming, err, "decode", &code)
	st.sess.config.Metrics.FrameError("oversized")
	st.halfClose(StreamHalfClosedReceive)
	st.logger.Warn("protocol violation on stream", slog.Any("error", err))
	return err
}
