package reporter

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
)

var stageDescriptions = map[engine.Stage]string{
	engine.StageAwaitBoot:           "waiting for boot prompt",
	engine.StageEnterUpdateMode:     "entering update mode",
	engine.StagePrepareUpload:       "announcing payload size",
	engine.StageStreamPayload:       "streaming payload",
	engine.StageAwaitIntegrityCheck: "waiting for integrity check",
	engine.StageFinalize:            "waiting for reboot notice",
}

// LiveReporter prints stage progress while a session runs.
// It implements engine.Observer.
type LiveReporter struct {
	writer  io.Writer
	style   style
	showBar bool

	bar     *progressbar.ProgressBar
	lastPct int
}

var _ engine.Observer = (*LiveReporter)(nil)

// NewLiveReporter creates a live reporter. With bar set, payload progress
// is drawn as a progress bar; otherwise it is printed in 25% steps.
func NewLiveReporter(w io.Writer, color, bar bool) *LiveReporter {
	return &LiveReporter{
		writer:  w,
		style:   newStyle(color),
		showBar: bar,
	}
}

// StageStarted prints "[n/N] stage: description".
func (r *LiveReporter) StageStarted(stage engine.Stage, index, total int) {
	r.bar = nil
	r.lastPct = 0
	fmt.Fprintf(r.writer, "[%d/%d] %s: %s\n", index, total, stage, stageDescriptions[stage])
}

// StageFinished prints the stage outcome.
func (r *LiveReporter) StageFinished(result *engine.StageResult) {
	if r.bar != nil {
		_ = r.bar.Finish()
		fmt.Fprintln(r.writer)
		r.bar = nil
	}

	d := result.Duration.Round(time.Millisecond)
	switch result.Status {
	case engine.StatusPassed:
		fmt.Fprintf(r.writer, "  %s %s (%s)\n", r.style.pass(markPass), result.Stage, d)
	case engine.StatusSkipped:
		fmt.Fprintf(r.writer, "  %s %s skipped\n", r.style.info(markInfo), result.Stage)
	default:
		fmt.Fprintf(r.writer, "  %s %s: %v\n", r.style.fail(markFail), result.Stage, result.Error)
		if len(result.Observed) > 0 {
			fmt.Fprintf(r.writer, "    observed: %q\n", observed(result.Observed))
		}
	}
	if result.Note != "" {
		fmt.Fprintf(r.writer, "  %s %s\n", r.style.info(markInfo), result.Note)
	}
}

// Progress updates the payload progress display.
func (r *LiveReporter) Progress(sent, total int) {
	if total <= 0 {
		return
	}
	if r.showBar {
		if r.bar == nil {
			r.bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(r.writer),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Streaming"),
				progressbar.OptionShowBytes(true),
			)
		}
		_ = r.bar.Set(sent)
		return
	}

	pct := sent * 100 / total
	if pct/25 > r.lastPct/25 || (sent == total && r.lastPct < 100) {
		fmt.Fprintf(r.writer, "  %s %d/%d bytes (%d%%)\n", r.style.info(markInfo), sent, total, pct)
		r.lastPct = pct
	}
}
