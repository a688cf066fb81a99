package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bistream/bistream-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Sessions          map[string]*SessionStats
	Errors            int
	Start             time.Time
	End               time.Time
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	Endpoint  string
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Streams   map[uint64]*StreamStats
	LastState string
	Errors    int
}

// StreamStats holds message counters for a single stream.
type StreamStats struct {
	Role        log.Role
	MessagesIn  int
	MessagesOut int
	BytesIn     int
	BytesOut    int
	Errors      int
	LastState   string
}

// Collect aggregates every event of path.
func Collect(path string) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Sessions:          make(map[string]*SessionStats),
	}

	err := forEach(path, log.Filter{}, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.Start.IsZero() || event.Timestamp.Before(s.Start) {
		s.Start = event.Timestamp
	}
	if event.Timestamp.After(s.End) {
		s.End = event.Timestamp
	}

	sess, ok := s.Sessions[event.SessionID]
	if !ok {
		sess = &SessionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Streams:   make(map[uint64]*StreamStats),
		}
		s.Sessions[event.SessionID] = sess
	}
	sess.Events++
	if event.Timestamp.After(sess.LastSeen) {
		sess.LastSeen = event.Timestamp
	}
	if sess.Endpoint == "" {
		sess.Endpoint = event.Endpoint
	}

	var str *StreamStats
	if event.StreamID != 0 || event.Role != log.RoleNone {
		str, ok = sess.Streams[event.StreamID]
		if !ok {
			str = &StreamStats{}
			sess.Streams[event.StreamID] = str
		}
		if event.Role != log.RoleNone {
			str.Role = event.Role
		}
	}

	switch {
	case event.Frame != nil && str != nil:
		if event.Direction == log.DirectionIn {
			str.MessagesIn++
			str.BytesIn += event.Frame.Size
		} else {
			str.MessagesOut++
			str.BytesOut += event.Frame.Size
		}
	case event.StateChange != nil:
		switch event.StateChange.Entity {
		case log.StateEntitySession:
			sess.LastState = event.StateChange.NewState
		case log.StateEntityStream:
			if str != nil {
				str.LastState = event.StateChange.NewState
			}
		}
	case event.Error != nil:
		s.Errors++
		sess.Errors++
		if str != nil {
			str.Errors++
		}
	}
}

// RunStats analyzes path and writes a report to w.
func RunStats(path string, w io.Writer) error {
	stats, err := Collect(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Bistream Capture Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}

	fmt.Fprintf(w, "Time Range: %s to %s (%s)\n",
		stats.Start.Format(time.RFC3339),
		stats.End.Format(time.RFC3339),
		stats.End.Sub(stats.Start).Round(time.Millisecond))
	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "By Layer:")
	for _, l := range []log.Layer{log.LayerTransport, log.LayerFraming, log.LayerClient} {
		if n := stats.EventsByLayer[l]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", l, n)
		}
	}
	fmt.Fprintln(w, "By Category:")
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryState, log.CategoryError} {
		if n := stats.EventsByCategory[c]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c, n)
		}
	}
	fmt.Fprintln(w, "By Direction:")
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if n := stats.EventsByDirection[d]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", d, n)
		}
	}
	fmt.Fprintln(w)

	ids := make([]string, 0, len(stats.Sessions))
	for id := range stats.Sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return stats.Sessions[ids[i]].FirstSeen.Before(stats.Sessions[ids[j]].FirstSeen)
	})

	fmt.Fprintf(w, "Sessions (%d):\n", len(ids))
	for _, id := range ids {
		sess := stats.Sessions[id]
		fmt.Fprintf(w, "  %s: %d events, %d errors", shortID(id), sess.Events, sess.Errors)
		if sess.LastState != "" {
			fmt.Fprintf(w, ", last state %s", sess.LastState)
		}
		fmt.Fprintln(w)
		if sess.Endpoint != "" {
			fmt.Fprintf(w, "    Endpoint: %s\n", sess.Endpoint)
		}

		streamIDs := make([]uint64, 0, len(sess.Streams))
		for sid := range sess.Streams {
			streamIDs = append(streamIDs, sid)
		}
		sort.Slice(streamIDs, func(i, j int) bool { return streamIDs[i] < streamIDs[j] })
		for _, sid := range streamIDs {
			str := sess.Streams[sid]
			fmt.Fprintf(w, "    Stream %d (%s): in %d msgs/%d bytes, out %d msgs/%d bytes",
				sid, str.Role, str.MessagesIn, str.BytesIn, str.MessagesOut, str.BytesOut)
			if str.Errors > 0 {
				fmt.Fprintf(w, ", %d errors", str.Errors)
			}
			if str.LastState != "" {
				fmt.Fprintf(w, ", %s", str.LastState)
			}
			fmt.Fprintln(w)
		}
	}
}
