package session

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bistream/bistream-go/pkg/framing"
	"github.com/bistream/bistream-go/pkg/metrics"
)

type sendRequest struct {
	payload []byte
	result  chan error
}

// SendHalf is the outbound direction of a Stream. Messages are framed and
// written by a single goroutine in the order they were admitted.
type SendHalf struct {
	st        *Stream
	writer    *framing.Writer
	queue     chan *sendRequest
	closing   chan struct{}
	closeOnce sync.Once
	stopped   chan struct{}
}

func newSendHalf(st *Stream) *SendHalf {
	cfg := st.sess.config
	w := framing.NewWriter(st.raw, cfg.MaxFrameSize)
	w.SetLogger(cfg.ProtocolLogger, st.sess.id, st.id)
	return &SendHalf{
		st:      st,
		writer:  w,
		queue:   make(chan *sendRequest, cfg.SendQueueDepth),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Stream returns the stream this half belongs to.
func (h *SendHalf) Stream() *Stream {
	return h.st
}

// Send frames msg and waits until it is written, the stream or session
// closes, or ctx ends. It blocks while the outbound queue is full.
// When ctx ends after admission the message may still be written.
func (h *SendHalf) Send(ctx context.Context, msg []byte) error {
	return h.send(ctx, msg, true)
}

// TrySend is like Send but fails with ErrBackpressure instead of waiting for
// room in the outbound queue.
func (h *SendHalf) TrySend(ctx context.Context, msg []byte) error {
	return h.send(ctx, msg, false)
}

func (h *SendHalf) send(ctx context.Context, msg []byte, block bool) error {
	if err := h.admit(msg); err != nil {
		return err
	}
	req := &sendRequest{payload: bytes.Clone(msg), result: make(chan error, 1)}

	if block {
		select {
		case h.queue <- req:
		case <-ctx.Done():
			return ctx.Err()
		case <-h.st.abort:
			return h.st.abortErr()
		case <-h.closing:
			return fmt.Errorf("%w: send half closed", ErrStreamClosed)
		}
	} else {
		select {
		case h.queue <- req:
		case <-h.st.abort:
			return h.st.abortErr()
		case <-h.closing:
			return fmt.Errorf("%w: send half closed", ErrStreamClosed)
		default:
			return fmt.Errorf("%w: %d messages pending", ErrBackpressure, cap(h.queue))
		}
	}

	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.stopped:
		// the writer answers before it stops
		select {
		case err := <-req.result:
			return err
		default:
			return h.stoppedErr()
		}
	}
}

// admit rejects messages that can never be written.
func (h *SendHalf) admit(msg []byte) error {
	if err := h.st.abortErr(); err != nil {
		return err
	}
	select {
	case <-h.closing:
		return fmt.Errorf("%w: send half closed", ErrStreamClosed)
	default:
	}
	if !h.st.Armed() {
		return ErrNotArmed
	}
	if limit := h.writer.MaxSize(); uint64(len(msg)) > uint64(limit) {
		return fmt.Errorf("%w: %d > %d", framing.ErrOversizedFrame, len(msg), limit)
	}
	return nil
}

func (h *SendHalf) stoppedErr() error {
	if err := h.st.abortErr(); err != nil {
		return err
	}
	return fmt.Errorf("%w: send half closed", ErrStreamClosed)
}

// close requests a half-close after the queue drains.
func (h *SendHalf) close() error {
	if err := h.st.abortErr(); err != nil {
		return err
	}
	h.closeOnce.Do(func() { close(h.closing) })
	return nil
}

// run is the writer goroutine.
func (h *SendHalf) run() {
	defer close(h.stopped)
	for {
		select {
		case req := <-h.queue:
			req.result <- h.write(req.payload)
		case <-h.closing:
			h.finish()
			return
		case <-h.st.abort:
			h.failPending(h.st.abortErr())
			return
		}
	}
}

func (h *SendHalf) write(payload []byte) error {
	if err := h.st.abortErr(); err != nil {
		return err
	}
	if err := h.writer.WriteFrame(payload); err != nil {
		return h.st.transportFailed(err)
	}
	h.st.sess.config.Metrics.Frame(metrics.DirectionOut, len(payload))
	return nil
}

// finish writes what is already queued, then sends FIN.
func (h *SendHalf) finish() {
	for drained := false; !drained; {
		select {
		case req := <-h.queue:
			req.result <- h.write(req.payload)
		default:
			drained = true
		}
	}
	if h.st.abortErr() != nil {
		return
	}
	if err := h.st.raw.Close(); err != nil {
		_ = h.st.transportFailed(err)
		return
	}
	h.st.halfClose(StreamHalfClosedSend)
	h.st.logger.Debug("send half finished")
}

func (h *SendHalf) failPending(err error) {
	for {
		select {
		case req := <-h.queue:
			req.result <- err
		default:
			h.st.logger.Debug("writer stopped", slog.Any("error", err))
			return
		}
	}
}
