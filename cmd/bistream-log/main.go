// Command bistream-log views and analyzes bistream capture files.
//
// Capture files are written by bistream-client and bistream-echo when run
// with the -protocol-log flag.
//
// Usage:
//
//	bistream-log <command> [flags] <file.blog>
//
// Commands:
//
//	view     View capture in human-readable format
//	export   Export capture to JSONL or CSV
//	filter   Filter capture and write to a new file
//	stats    Show per-session and per-stream statistics
//
// Examples:
//
//	# View only incoming framed messages
//	bistream-log view -layer framing -direction in client.blog
//
//	# Export one stream to CSV
//	bistream-log export -format csv -stream 4 client.blog
//
//	# Keep one session in a new file
//	bistream-log filter -session 5f0c2a9e-... -o session.blog client.blog
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/bistream/bistream-go/cmd/bistream-log/commands"
)

const usage = `bistream-log - Bistream Capture Analyzer

Usage:
  bistream-log <command> [flags] <file.blog>

Commands:
  view     View capture in human-readable format
  export   Export capture to JSONL or CSV
  filter   Filter capture and write to a new file
  stats    Show per-session and per-stream statistics

Use "bistream-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared filter flags bound to ff.
func newFlagSet(name, summary string, ff *commands.FilterFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "bistream-log %s - %s\n\nUsage:\n  bistream-log %s [flags] <file.blog>\n\nFlags:\n",
			name, summary, name)
		fs.PrintDefaults()
	}
	if ff != nil {
		fs.StringVar(&ff.SessionID, "session", "", "Filter by session ID")
		fs.StringVar(&ff.StreamID, "stream", "", "Filter by stream ID")
		fs.StringVar(&ff.TimeStart, "time-start", "", "Keep events at or after this time (RFC3339)")
		fs.StringVar(&ff.TimeEnd, "time-end", "", "Keep events before this time (RFC3339)")
		fs.StringVar(&ff.Layer, "layer", "", "Filter by layer (transport, framing, client)")
		fs.StringVar(&ff.Direction, "direction", "", "Filter by direction (in, out)")
		fs.StringVar(&ff.Category, "category", "", "Filter by category (message, state, error)")
	}
	return fs
}

// parseArgs parses args and returns the capture path.
func parseArgs(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	var ff commands.FilterFlags
	fs := newFlagSet("view", "View capture in human-readable format", &ff)
	path := parseArgs(fs, args)

	filter, err := ff.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	var ff commands.FilterFlags
	fs := newFlagSet("export", "Export capture to JSONL or CSV", &ff)
	format := fs.String("format", commands.FormatJSONL, "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parseArgs(fs, args)

	filter, err := ff.Build()
	if err != nil {
		fatal(err)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fatal(fmt.Errorf("failed to create output file: %w", err))
		}
		defer f.Close()
		w = f
	}

	if err := commands.RunExport(path, *format, filter, w); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	var ff commands.FilterFlags
	fs := newFlagSet("filter", "Filter capture and write to a new file", &ff)
	output := fs.String("o", "", "Output file (required)")
	path := parseArgs(fs, args)

	filter, err := ff.Build()
	if err != nil {
		fatal(err)
	}

	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show per-session and per-stream statistics", nil)
	path := parseArgs(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fatal(err)
	}
}
