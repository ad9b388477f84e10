// Package reporter provides result formatting and output.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rvbl-protocol/rvbl-go/internal/testharness/engine"
	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// Reporter formats and outputs results.
type Reporter interface {
	// ReportSuite reports results for a suite.
	ReportSuite(result *engine.SuiteResult)

	// ReportRun reports the result of a single update session.
	ReportRun(result *engine.RunResult)
}

// maxObserved caps the observed bytes shown in reports.
const maxObserved = 512

// observed renders the tail of a buffer for display.
func observed(b []byte) string {
	if len(b) > maxObserved {
		return "..." + transport.Printable(b[len(b)-maxObserved:])
	}
	return transport.Printable(b)
}

// TextReporter outputs human-readable text reports.
type TextReporter struct {
	writer  io.Writer
	verbose bool
	style   style
}

// NewTextReporter creates a new text reporter. Colour is used when w is a
// terminal and NO_COLOR is unset.
func NewTextReporter(w io.Writer, verbose bool) *TextReporter {
	return &TextReporter{
		writer:  w,
		verbose: verbose,
		style:   newStyle(ColorEnabled(w)),
	}
}

// SetColor forces colour on or off.
func (r *TextReporter) SetColor(on bool) {
	r.style = newStyle(on)
}

// ReportRun reports a session result in text format.
func (r *TextReporter) ReportRun(result *engine.RunResult) {
	fmt.Fprintf(r.writer, "\n=== Update session %s ===\n", result.SessionID)
	if result.Target != "" {
		fmt.Fprintf(r.writer, "Target:   %s\n", result.Target)
	}
	fmt.Fprintf(r.writer, "Payload:  %d bytes, CRC32 0x%08X\n", result.PayloadSize, result.PayloadCRC32)
	if result.ReportedCRC32 != nil {
		fmt.Fprintf(r.writer, "Reported: CRC32 0x%08X\n", *result.ReportedCRC32)
	}
	fmt.Fprintf(r.writer, "Duration: %s\n\n", result.Duration.Round(time.Millisecond))

	for _, sr := range result.Stages {
		r.reportStage(sr)
	}

	fmt.Fprintln(r.writer)
	switch {
	case result.Passed:
		fmt.Fprintln(r.writer, r.style.pass("RESULT: PASS"))
	case result.Interrupted:
		fmt.Fprintln(r.writer, r.style.fail("RESULT: INTERRUPTED"))
	default:
		fmt.Fprintln(r.writer, r.style.fail("RESULT: FAIL"))
	}
}

func (r *TextReporter) reportStage(sr *engine.StageResult) {
	d := sr.Duration.Round(time.Millisecond)
	switch sr.Status {
	case engine.StatusPassed:
		fmt.Fprintf(r.writer, "  %s %s (%s)\n", r.style.pass(markPass), sr.Stage, d)
	case engine.StatusSkipped:
		fmt.Fprintf(r.writer, "  %s %s skipped\n", r.style.info(markInfo), sr.Stage)
	default:
		fmt.Fprintf(r.writer, "  %s %s (%s)\n", r.style.fail(markFail), sr.Stage, d)
		if sr.Error != nil {
			fmt.Fprintf(r.writer, "      Error:    %v\n", sr.Error)
		}
		if sr.Expected != "" {
			fmt.Fprintf(r.writer, "      Expected: %q\n", sr.Expected)
		}
		fmt.Fprintf(r.writer, "      Observed: %q\n", observed(sr.Observed))
	}
	if sr.Note != "" {
		fmt.Fprintf(r.writer, "      %s %s\n", r.style.info(markInfo), sr.Note)
	}
	if r.verbose && sr.Status != engine.StatusFailed && len(sr.Observed) > 0 {
		fmt.Fprintf(r.writer, "      Observed: %q\n", observed(sr.Observed))
	}
}

// ReportSuite reports suite results in text format.
func (r *TextReporter) ReportSuite(result *engine.SuiteResult) {
	fmt.Fprintf(r.writer, "\n=== Suite: %s ===\n", result.SuiteName)
	fmt.Fprintf(r.writer, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(r.writer, "\n")

	for _, cr := range result.Results {
		r.reportCase(cr)
	}

	// Summary
	fmt.Fprintf(r.writer, "\n--- Summary ---\n")
	fmt.Fprintf(r.writer, "Total:   %d\n", len(result.Results))
	fmt.Fprintf(r.writer, "Passed:  %d\n", result.PassCount)
	fmt.Fprintf(r.writer, "Failed:  %d\n", result.FailCount)
	fmt.Fprintf(r.writer, "Skipped: %d\n", result.SkipCount)

	total := result.PassCount + result.FailCount
	if total > 0 {
		rate := float64(result.PassCount) / float64(total) * 100
		fmt.Fprintf(r.writer, "Pass Rate: %.1f%%\n", rate)
	}
}

func (r *TextReporter) reportCase(cr *engine.CaseResult) {
	var status string
	switch {
	case cr.Skipped:
		status = r.style.info("SKIP")
	case cr.Passed:
		status = r.style.pass("PASS")
	default:
		status = r.style.fail("FAIL")
	}

	var d time.Duration
	if cr.Run != nil {
		d = cr.Run.Duration
	}
	fmt.Fprintf(r.writer, "[%s] %s - %s (%s)\n", status, cr.ID, cr.Name, d.Round(time.Millisecond))
	fmt.Fprintf(r.writer, "       Expect: %s\n", cr.Expect)

	if cr.Skipped && cr.SkipReason != "" {
		fmt.Fprintf(r.writer, "       Skip reason: %s\n", cr.SkipReason)
	}
	if !cr.Passed && cr.Message != "" {
		fmt.Fprintf(r.writer, "       Error: %s\n", cr.Message)
	}

	if r.verbose && cr.Run != nil {
		for _, sr := range cr.Run.Stages {
			r.reportStage(sr)
		}
	}
}

// JSONReporter outputs JSON-formatted reports.
type JSONReporter struct {
	writer io.Writer
	pretty bool
}

// NewJSONReporter creates a new JSON reporter.
func NewJSONReporter(w io.Writer, pretty bool) *JSONReporter {
	return &JSONReporter{
		writer: w,
		pretty: pretty,
	}
}

// JSONSuiteResult is the JSON representation of suite results.
type JSONSuiteResult struct {
	SuiteName string           `json:"suite_name"`
	Duration  string           `json:"duration"`
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	PassRate  float64          `json:"pass_rate"`
	Cases     []JSONCaseResult `json:"cases"`
}

// JSONCaseResult is the JSON representation of a suite case.
type JSONCaseResult struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     string         `json:"status"`
	Expect     string         `json:"expect"`
	Message    string         `json:"message,omitempty"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Run        *JSONRunResult `json:"run,omitempty"`
}

// JSONRunResult is the JSON representation of an update session.
type JSONRunResult struct {
	SessionID     string            `json:"session_id"`
	Target        string            `json:"target,omitempty"`
	Status        string            `json:"status"`
	ExitCode      int               `json:"exit_code"`
	PayloadSize   int               `json:"payload_size"`
	PayloadCRC32  string            `json:"payload_crc32"`
	ReportedCRC32 string            `json:"reported_crc32,omitempty"`
	RebootSeen    bool              `json:"reboot_seen"`
	Duration      string            `json:"duration"`
	Error         string            `json:"error,omitempty"`
	ErrorKind     string            `json:"error_kind,omitempty"`
	Stages        []JSONStageResult `json:"stages"`
}

// JSONStageResult is the JSON representation of a stage result.
type JSONStageResult struct {
	Stage    string `json:"stage"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Expected string `json:"expected,omitempty"`
	Observed string `json:"observed,omitempty"`
	Note     string `json:"note,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// ReportSuite reports suite results in JSON format.
func (r *JSONReporter) ReportSuite(result *engine.SuiteResult) {
	total := result.PassCount + result.FailCount
	var passRate float64
	if total > 0 {
		passRate = float64(result.PassCount) / float64(total) * 100
	}

	jr := JSONSuiteResult{
		SuiteName: result.SuiteName,
		Duration:  result.Duration.Round(time.Millisecond).String(),
		Total:     len(result.Results),
		Passed:    result.PassCount,
		Failed:    result.FailCount,
		Skipped:   result.SkipCount,
		PassRate:  passRate,
		Cases:     make([]JSONCaseResult, 0, len(result.Results)),
	}

	for _, cr := range result.Results {
		jc := JSONCaseResult{
			ID:         cr.ID,
			Name:       cr.Name,
			Status:     caseStatus(cr),
			Expect:     cr.Expect.String(),
			Message:    cr.Message,
			SkipReason: cr.SkipReason,
		}
		if cr.Run != nil {
			run := RunToJSON(cr.Run)
			jc.Run = &run
		}
		jr.Cases = append(jr.Cases, jc)
	}

	r.writeJSON(jr)
}

// ReportRun reports a single session in JSON format.
func (r *JSONReporter) ReportRun(result *engine.RunResult) {
	r.writeJSON(RunToJSON(result))
}

// RunToJSON converts a session result to its JSON representation.
func RunToJSON(result *engine.RunResult) JSONRunResult {
	jr := JSONRunResult{
		SessionID:    result.SessionID,
		Target:       result.Target,
		Status:       runStatus(result),
		ExitCode:     result.ExitCode(),
		PayloadSize:  result.PayloadSize,
		PayloadCRC32: fmt.Sprintf("0x%08X", result.PayloadCRC32),
		RebootSeen:   result.RebootSeen,
		Duration:     result.Duration.Round(time.Millisecond).String(),
		Stages:       make([]JSONStageResult, 0, len(result.Stages)),
	}
	if result.ReportedCRC32 != nil {
		jr.ReportedCRC32 = fmt.Sprintf("0x%08X", *result.ReportedCRC32)
	}
	if result.Error != nil {
		jr.Error = result.Error.Error()
		jr.ErrorKind = engine.KindName(result.Error)
	}

	for _, sr := range result.Stages {
		js := JSONStageResult{
			Stage:    sr.Stage.String(),
			Status:   string(sr.Status),
			Duration: sr.Duration.Round(time.Millisecond).String(),
			Expected: sr.Expected,
			Note:     sr.Note,
		}
		if sr.Status == engine.StatusFailed {
			js.Observed = observed(sr.Observed)
		}
		if sr.Error != nil {
			js.Error = sr.Error.Error()
			js.Kind = engine.KindName(sr.Error)
		}
		jr.Stages = append(jr.Stages, js)
	}
	return jr
}

func runStatus(result *engine.RunResult) string {
	switch {
	case result.Passed:
		return "passed"
	case result.Interrupted:
		return "interrupted"
	default:
		return "failed"
	}
}

func caseStatus(cr *engine.CaseResult) string {
	switch {
	case cr.Skipped:
		return "skipped"
	case cr.Passed:
		return "passed"
	default:
		return "failed"
	}
}

func (r *JSONReporter) writeJSON(v any) {
	var data []byte
	var err error

	if r.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		fmt.Fprintf(r.writer, `{"error": "failed to marshal: %s"}`, err)
		return
	}

	fmt.Fprintln(r.writer, string(data))
}

// JUnitReporter outputs JUnit XML format for CI integration.
type JUnitReporter struct {
	writer io.Writer
}

// NewJUnitReporter creates a new JUnit reporter.
func NewJUnitReporter(w io.Writer) *JUnitReporter {
	return &JUnitReporter{writer: w}
}

// ReportSuite reports suite results in JUnit XML format, one testcase per case.
func (r *JUnitReporter) ReportSuite(result *engine.SuiteResult) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")

	fmt.Fprintf(&b, `<testsuite name="%s" tests="%d" failures="%d" skipped="%d" time="%.3f">`,
		escapeXML(result.SuiteName),
		len(result.Results),
		result.FailCount,
		result.SkipCount,
		result.Duration.Seconds())
	b.WriteString("\n")

	for _, cr := range result.Results {
		var d time.Duration
		if cr.Run != nil {
			d = cr.Run.Duration
		}
		fmt.Fprintf(&b, `  <testcase name="%s" classname="%s" time="%.3f">`,
			escapeXML(cr.Name),
			escapeXML(cr.ID),
			d.Seconds())
		b.WriteString("\n")

		if cr.Skipped {
			fmt.Fprintf(&b, `    <skipped message="%s"/>`, escapeXML(cr.SkipReason))
			b.WriteString("\n")
		} else if !cr.Passed {
			fmt.Fprintf(&b, `    <failure message="%s">`, escapeXML(cr.Message))
			b.WriteString("\n")
			b.WriteString("      <![CDATA[")
			if cr.Run != nil {
				writeStageDetails(&b, cr.Run)
			}
			b.WriteString("]]>\n")
			b.WriteString("    </failure>\n")
		}

		b.WriteString("  </testcase>\n")
	}

	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

// ReportRun reports a session in JUnit format, one testcase per stage reached.
func (r *JUnitReporter) ReportRun(result *engine.RunResult) {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")

	failures := 0
	skipped := 0
	for _, sr := range result.Stages {
		switch sr.Status {
		case engine.StatusFailed:
			failures++
		case engine.StatusSkipped:
			skipped++
		}
	}

	fmt.Fprintf(&b, `<testsuite name="%s" tests="%d" failures="%d" skipped="%d" time="%.3f">`,
		escapeXML("rvbl update "+result.SessionID),
		len(result.Stages),
		failures,
		skipped,
		result.Duration.Seconds())
	b.WriteString("\n")

	for _, sr := range result.Stages {
		fmt.Fprintf(&b, `  <testcase name="%s" classname="rvbl.%s" time="%.3f">`,
			escapeXML(sr.Stage.String()),
			escapeXML(targetClass(result.Target)),
			sr.Duration.Seconds())
		b.WriteString("\n")

		switch sr.Status {
		case engine.StatusSkipped:
			fmt.Fprintf(&b, `    <skipped message="%s"/>`, escapeXML(sr.Note))
			b.WriteString("\n")
		case engine.StatusFailed:
			msg := ""
			if sr.Error != nil {
				msg = sr.Error.Error()
			}
			fmt.Fprintf(&b, `    <failure message="%s" type="%s">`, escapeXML(msg), escapeXML(engine.KindName(sr.Error)))
			b.WriteString("\n")
			fmt.Fprintf(&b, "      <![CDATA[expected: %q\nobserved: %q\n]]>\n", sr.Expected, cdata(observed(sr.Observed)))
			b.WriteString("    </failure>\n")
		}

		b.WriteString("  </testcase>\n")
	}

	b.WriteString("</testsuite>\n")

	fmt.Fprint(r.writer, b.String())
}

func writeStageDetails(b *strings.Builder, run *engine.RunResult) {
	for _, sr := range run.Stages {
		if sr.Status == engine.StatusFailed {
			fmt.Fprintf(b, "Stage %s: %v\nObserved: %q\n", sr.Stage, sr.Error, cdata(observed(sr.Observed)))
		}
	}
}

func targetClass(target string) string {
	if target == "" {
		return "target"
	}
	return target
}

// cdata keeps a string from terminating a CDATA section.
func cdata(s string) string {
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "'", "&apos;")
	return s
}
