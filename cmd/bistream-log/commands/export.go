package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/bistream/bistream-go/pkg/log"
)

// Export formats.
const (
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
)

var csvHeader = []string{
	"timestamp", "session_id", "stream_id", "direction", "layer",
	"category", "role", "type", "size", "detail",
}

// RunExport writes every matching event of path to w in the given format.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		return forEach(path, filter, func(event log.Event) error {
			if err := enc.Encode(event); err != nil {
				return fmt.Errorf("failed to encode event: %w", err)
			}
			return nil
		})

	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		err := forEach(path, filter, func(event log.Event) error {
			if err := cw.Write(csvRow(event)); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			return nil
		})
		cw.Flush()
		if err != nil {
			return err
		}
		return cw.Error()

	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func csvRow(event log.Event) []string {
	eventType, size, detail := "unknown", "", ""
	switch {
	case event.Frame != nil:
		eventType = "frame"
		size = strconv.Itoa(event.Frame.Size)
	case event.StateChange != nil:
		eventType = "state"
		detail = event.StateChange.Entity.String() + " " + event.StateChange.NewState
	case event.Error != nil:
		eventType = "error"
		detail = event.Error.Message
	}

	return []string{
		event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		event.SessionID,
		strconv.FormatUint(event.StreamID, 10),
		event.Direction.String(),
		event.Layer.String(),
		event.Category.String(),
		event.Role.String(),
		eventType,
		size,
		detail,
	}
}
