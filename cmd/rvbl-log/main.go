// Command rvbl-log views and analyzes RVBL protocol transcripts.
//
// Transcripts are written by rvbl-test with the -protocol-log flag.
//
// Usage:
//
//	rvbl-log <command> [flags] <file.rlog>
//
// Commands:
//
//	view     View transcript in human-readable format
//	export   Export transcript to JSONL or CSV format
//	filter   Filter transcript and write to new file
//	stats    Show statistics about the transcript
//
// Examples:
//
//	# View everything the target printed
//	rvbl-log view -direction in run.rlog
//
//	# View one stage as hex
//	rvbl-log view -stage stream_payload -hex run.rlog
//
//	# Export to CSV
//	rvbl-log export -format csv -o run.csv run.rlog
//
//	# Show per-session statistics
//	rvbl-log stats run.rlog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rvbl-protocol/rvbl-go/cmd/rvbl-log/commands"
)

const usage = `rvbl-log - RVBL Protocol Transcript Analyzer

Usage:
  rvbl-log <command> [flags] <file.rlog>

Commands:
  view     View transcript in human-readable format
  export   Export transcript to JSONL or CSV format
  filter   Filter transcript and write to new file
  stats    Show statistics about the transcript

Use "rvbl-log <command> -help" for more information about a command.
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

func newFlagSet(name, summary string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "rvbl-log %s - %s\n\nUsage:\n  rvbl-log %s [flags] <file.rlog>\n\nFlags:\n", name, summary, name)
		fs.PrintDefaults()
	}
	return fs
}

func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.SessionID, "session", "", "Filter by session ID")
	fs.StringVar(&opts.Stage, "stage", "", "Filter by stage (e.g. await_boot)")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&opts.Direction, "direction", "", "Filter by direction (in, out, local)")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (data, stage, marker, error)")
	return opts
}

// pathArg parses args and returns the single transcript path.
func pathArg(fs *flag.FlagSet, args []string) string {
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
	fs := newFlagSet("view", "View transcript in human-readable format")
	opts := filterFlags(fs)
	hexData := fs.Bool("hex", false, "Print raw bytes as hex")
	path := pathArg(fs, args)

	filter, err := opts.Build()
	if err != nil {
		fatal(err)
	}
	if err := commands.RunView(path, commands.ViewOptions{Filter: filter, Hex: *hexData}, os.Stdout); err != nil {
		fatal(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export transcript to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := pathArg(fs, args)

	if err := commands.RunExport(path, *format, *output); err != nil {
		fatal(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter transcript and write to new file")
	opts := filterFlags(fs)
	output := fs.String("o", "", "Output file (required)")
	path := pathArg(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	filter, err := opts.Build()
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
	fs := newFlagSet("stats", "Show statistics about the transcript")
	path := pathArg(fs, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fatal(err)
	}
}
