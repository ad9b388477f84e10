package reporter

import (
	"io"
	"os"

	"golang.org/x/term"
)

const (
	markPass = "✓"
	markFail = "✗"
	markInfo = "→"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiCyan  = "\x1b[36m"
)

// ColorEnabled reports whether w is a terminal that should get colour.
// NO_COLOR disables colour regardless.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type style struct {
	color bool
}

func newStyle(color bool) style {
	return style{color: color}
}

func (s style) wrap(code, text string) string {
	if !s.color {
		return text
	}
	return code + text + ansiReset
}

func (s style) pass(text string) string { return s.wrap(ansiGreen, text) }
func (s style) fail(text string) string { return s.wrap(ansiRed, text) }
func (s style) info(text string) string { return s.wrap(ansiCyan, text) }
