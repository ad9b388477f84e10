// Package commands implements the rvbl-log CLI commands.
package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rvbl-protocol/rvbl-go/pkg/log"
)

// ViewOptions controls the view command.
type ViewOptions struct {
	Filter log.Filter

	// Hex prints raw bytes as hex instead of escaped text.
	Hex bool
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event, hexData bool) {
	// timestamp [session] DIRECTION CATEGORY stage
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [%s] %-5s %-6s %s\n",
		ts, shortenSessionID(event.SessionID), event.Direction, event.Category, event.Stage)

	switch {
	case event.Data != nil:
		formatDataDetails(w, event.Data, hexData)
	case event.Change != nil:
		formatStageDetails(w, event.Change)
	case event.Marker != nil:
		formatMarkerDetails(w, event.Marker)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatDataDetails(w io.Writer, d *log.DataEvent, hexData bool) {
	fmt.Fprintf(w, "  Size: %d bytes\n", d.Size)
	if len(d.Data) == 0 {
		return
	}
	if hexData {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(d.Data))
	} else {
		fmt.Fprintf(w, "  Data: %q", d.Data)
	}
	if d.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

func formatStageDetails(w io.Writer, s *log.StageEvent) {
	if s.OldStage != "" {
		fmt.Fprintf(w, "  %s (%s) -> %s\n", s.OldStage, s.Outcome, s.NewStage)
	} else {
		fmt.Fprintf(w, "  -> %s\n", s.NewStage)
	}
}

func formatMarkerDetails(w io.Writer, m *log.MarkerEvent) {
	fmt.Fprintf(w, "  Pattern: %q\n", m.Pattern)
	fmt.Fprintf(w, "  Outcome: %s after %s (%d bytes)\n", m.Outcome, formatDuration(m.Elapsed), m.Observed)
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Kind: %s\n", e.Kind)
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseDirection parses a direction string (case-insensitive).
func ParseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
}

// ParseCategory parses a category string (case-insensitive).
func ParseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "data":
		return log.CategoryData, nil
	case "stage":
		return log.CategoryStage, nil
	case "marker":
		return log.CategoryMarker, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be data, stage, marker, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, opts ViewOptions, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, opts.Filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event, opts.Hex)
	}
}
