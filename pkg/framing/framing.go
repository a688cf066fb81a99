package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bistream/bistream-go/pkg/log"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxFrameSize is the default maximum payload size (64 KiB).
	DefaultMaxFrameSize = 65536

	// maxPrealloc bounds the buffer allocated from an announced length before
	// the payload bytes arrive.
	maxPrealloc = DefaultMaxFrameSize
)

// Framing errors.
var (
	// ErrOversizedFrame indicates a payload or announced length above the limit.
	ErrOversizedFrame = errors.New("frame exceeds maximum size")

	// ErrTruncated indicates the stream ended inside a frame.
	ErrTruncated = errors.New("frame truncated")
)

// FrameSize returns the encoded size of a payload including its prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}

// AppendFrame appends the encoded frame for payload to dst.
// A maxSize of zero means DefaultMaxFrameSize.
func AppendFrame(dst, payload []byte, maxSize uint32) ([]byte, error) {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	if uint64(len(payload)) > uint64(maxSize) {
		return dst, fmt.Errorf("%w: %d > %d", ErrOversizedFrame, len(payload), maxSize)
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...), nil
}

// Encode returns the encoded frame for payload.
func Encode(payload []byte, maxSize uint32) ([]byte, error) {
	return AppendFrame(make([]byte, 0, FrameSize(len(payload))), payload, maxSize)
}

// capture identifies the stream a Writer or Reader logs events for.
type capture struct {
	logger    log.Logger
	sessionID string
	streamID  uint64
}

func (c *capture) frame(dir log.Direction, payload []byte) {
	if c.logger == nil {
		return
	}
	c.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: c.sessionID,
		StreamID:  c.streamID,
		Direction: dir,
		Layer:     log.LayerFraming,
		Category:  log.CategoryMessage,
		Frame:     log.NewFrameEvent(LengthPrefixSize, payload),
	})
}

// Writer writes length-prefixed frames to an underlying writer.
// Each frame is handed to the writer in a single Write call, so frames from
// concurrent callers never interleave.
type Writer struct {
	w       io.Writer
	maxSize uint32
	mu      sync.Mutex
	buf     []byte
	capture capture
}

// NewWriter creates a frame writer. A maxSize of zero means DefaultMaxFrameSize.
func NewWriter(w io.Writer, maxSize uint32) *Writer {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Writer{w: w, maxSize: maxSize}
}

// SetLogger configures protocol capture for this writer.
// Pass nil to disable.
func (fw *Writer) SetLogger(logger log.Logger, sessionID string, streamID uint64) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.capture = capture{logger: logger, sessionID: sessionID, streamID: streamID}
}

// MaxSize returns the payload limit.
func (fw *Writer) MaxSize() uint32 {
	return fw.maxSize
}

// WriteFrame writes one frame. Safe for concurrent use.
func (fw *Writer) WriteFrame(payload []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	buf, err := AppendFrame(fw.buf[:0], payload, fw.maxSize)
	if err != nil {
		return err
	}
	fw.buf = buf
	if _, err := fw.w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	fw.capture.frame(log.DirectionOut, payload)
	return nil
}

// Reader reads length-prefixed frames from an underlying reader.
type Reader struct {
	r         io.Reader
	maxSize   uint32
	lengthBuf [LengthPrefixSize]byte
	capture   capture
}

// NewReader creates a frame reader. A maxSize of zero means DefaultMaxFrameSize.
func NewReader(r io.Reader, maxSize uint32) *Reader {
	if maxSize == 0 {
		maxSize = DefaultMaxFrameSize
	}
	return &Reader{r: r, maxSize: maxSize}
}

// SetLogger configures protocol capture for this reader.
// Pass nil to disable.
func (fr *Reader) SetLogger(logger log.Logger, sessionID string, streamID uint64) {
	fr.capture = capture{logger: logger, sessionID: sessionID, streamID: streamID}
}

// ReadFrame reads the next frame and returns its payload.
// It returns io.EOF at a clean frame boundary and ErrTruncated when the
// stream ends inside a frame.
func (fr *Reader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])
	if length > fr.maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrOversizedFrame, length, fr.maxSize)
	}

	payload, err := readPayload(fr.r, int(length))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("read payload: %w", err)
	}

	fr.capture.frame(log.DirectionIn, payload)
	return payload, nil
}

// readPayload reads exactly n bytes, growing the buffer as data arrives for
// lengths above maxPrealloc.
func readPayload(r io.Reader, n int) ([]byte, error) {
	if n <= maxPrealloc {
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	var buf bytes.Buffer
	buf.Grow(maxPrealloc)
	m, err := buf.ReadFrom(io.LimitReader(r, int64(n)))
	if err != nil {
		return nil, err
	}
	if int(m) < n {
		return nil, io.ErrUnexpectedEOF
	}
	return buf.Bytes(), nil
}
