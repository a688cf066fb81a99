// Package cmdutil holds the plumbing shared by the bistream commands:
// operational logging, protocol capture and the metrics endpoint.
package cmdutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bistream/bistream-go/pkg/log"
)

// Log file rotation limits for -log-file.
const (
	LogFileMaxSizeMB  = 10
	LogFileMaxBackups = 3
)

// ParseLevel parses a log level name (debug, info, warn, error).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %s (use: debug, info, warn, error)", s)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds the operational logger. Records go to a rotating file
// when file is set and to w otherwise. The returned closer releases the file.
func NewLogger(level, file string, w io.Writer) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	var closer io.Closer = nopCloser{}
	if file != "" {
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    LogFileMaxSizeMB,
			MaxBackups: LogFileMaxBackups,
		}
		w, closer = lj, lj
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler), closer, nil
}

// Capture is the protocol capture sink of a command.
type Capture struct {
	file   *log.FileLogger
	logger log.Logger
}

// NewCapture creates the capture sink. Events go to a rotating .blog file
// when path is set; with trace set they are also written to logger at debug
// level. Logger returns nil when neither applies.
func NewCapture(path string, logger *slog.Logger, trace bool) *Capture {
	c := &Capture{}
	var sinks []log.Logger
	if path != "" {
		c.file = log.NewRotatingFileLogger(log.RotationConfig{
			Filename:  path,
			MaxSizeMB: 100,
		})
		sinks = append(sinks, c.file)
	}
	if trace && logger != nil {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	switch len(sinks) {
	case 0:
	case 1:
		c.logger = sinks[0]
	default:
		c.logger = log.NewMultiLogger(sinks...)
	}
	return c
}

// Logger returns the combined sink, or nil when capture is disabled.
func (c *Capture) Logger() log.Logger {
	return c.logger
}

// Dropped returns the number of events the capture file failed to record.
func (c *Capture) Dropped() uint64 {
	if c.file == nil {
		return 0
	}
	return c.file.Dropped()
}

// Close flushes and closes the capture file.
func (c *Capture) Close() error {
	if c.file == nil {
		return nil
	}
	return c.file.Close()
}
