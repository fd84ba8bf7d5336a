// Command flow-log is a tool for viewing and analyzing flow capture files.
//
// Capture files are written by flow-client and flow-sink when run with the
// -protocol-log flag.
//
// Usage:
//
//	flow-log <command> [flags] <file.flog>
//
// Commands:
//
//	view     View capture file in human-readable format
//	export   Export capture file to JSON or CSV format
//	filter   Filter capture file and write to new file
//	stats    Show statistics about the capture file
//
// Examples:
//
//	# View only outgoing data
//	flow-log view -direction out -category data client.flog
//
//	# Export to CSV
//	flow-log export -format csv -o client.csv client.flog
//
//	# Keep one connection
//	flow-log filter -conn-id abc12345-... -o one.flog client.flog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/flow-io/flow-socket-go/cmd/flow-log/commands"
)

const usage = `flow-log - Flow Capture Analyzer

Usage:
  flow-log <command> [flags] <file.flog>

Commands:
  view     View capture file in human-readable format
  export   Export capture file to JSON or CSV format
  filter   Filter capture file and write to new file
  stats    Show statistics about the capture file

Use "flow-log <command> -help" for more information about a command.
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

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parsePath parses args and returns the single positional capture file.
func parsePath(fs *flag.FlagSet, args []string) string {
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

func newFlagSet(name, synopsis, usageLine string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "flow-log %s - %s\n\nUsage:\n  %s\n\nFlags:\n", name, synopsis, usageLine)
		fs.PrintDefaults()
	}
	return fs
}

func runView(args []string) {
	fs := newFlagSet("view", "View capture file in human-readable format", "flow-log view [flags] <file.flog>")
	layer := fs.String("layer", "", "Filter by layer (transport, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (data, state, error, warning)")
	path := parsePath(fs, args)

	var filter commands.ViewFilter
	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		if err != nil {
			fail(err)
		}
		filter.Layer = &l
	}
	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		if err != nil {
			fail(err)
		}
		filter.Direction = &d
	}
	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		if err != nil {
			fail(err)
		}
		filter.Category = &c
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export capture file to JSON or CSV format", "flow-log export [flags] <file.flog>")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := parsePath(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter capture file and write to new file", "flow-log filter [flags] <file.flog>")
	output := fs.String("o", "", "Output file (required)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	remote := fs.String("remote", "", "Filter by peer address (host:port)")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")
	layer := fs.String("layer", "", "Filter by layer (transport, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (data, state, error, warning)")
	path := parsePath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, commands.FilterOptions{
		Output:     *output,
		ConnID:     *connID,
		RemoteAddr: *remote,
		TimeStart:  *timeStart,
		TimeEnd:    *timeEnd,
		Layer:      *layer,
		Direction:  *direction,
		Category:   *category,
	})
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the capture file", "flow-log stats <file.flog>")
	path := parsePath(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
