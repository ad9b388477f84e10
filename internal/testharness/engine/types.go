// Package engine drives the bootloader update exchange stage by stage and
// turns its outcome into a RunResult.
package engine

import (
	"fmt"
	"strings"
	"time"
)

// Stage identifies one step of the update exchange.
type Stage int

const (
	// StageSetup covers everything before the first byte of target I/O.
	StageSetup Stage = iota
	StageAwaitBoot
	StageEnterUpdateMode
	StagePrepareUpload
	StageStreamPayload
	StageAwaitIntegrityCheck
	StageFinalize
)

var stageNames = map[Stage]string{
	StageSetup:               "setup",
	StageAwaitBoot:           "await_boot",
	StageEnterUpdateMode:     "enter_update_mode",
	StagePrepareUpload:       "prepare_upload",
	StageStreamPayload:       "stream_payload",
	StageAwaitIntegrityCheck: "await_integrity_check",
	StageFinalize:            "finalize",
}

// String returns the stage name used in reports and transcripts.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ParseStage parses a stage name. Dashes are accepted for underscores.
func ParseStage(name string) (Stage, error) {
	name = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for s, n := range stageNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// ProtocolStages returns the stages that talk to the target, in order.
func ProtocolStages() []Stage {
	return []Stage{
		StageAwaitBoot,
		StageEnterUpdateMode,
		StagePrepareUpload,
		StageStreamPayload,
		StageAwaitIntegrityCheck,
		StageFinalize,
	}
}

// Status is the outcome of one stage.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StageResult represents the outcome of a single stage.
type StageResult struct {
	// Stage is the stage that was executed.
	Stage Stage

	// Status is passed, failed or skipped. A skipped stage does not fail the run.
	Status Status

	// Error is the failure, if any. It is a *StageError or *SetupError.
	Error error

	// Expected is the marker the stage waited for last.
	Expected string

	// Observed holds the bytes consumed by the stage's last wait.
	Observed []byte

	// Note is an informational remark (e.g. a missing optional marker).
	Note string

	// StartTime when the stage started.
	StartTime time.Time

	// Duration is how long the stage took.
	Duration time.Duration
}

// Passed reports whether the stage did not fail.
func (r *StageResult) Passed() bool {
	return r.Status != StatusFailed
}

// RunResult represents the outcome of one update session.
type RunResult struct {
	// SessionID identifies the session in the transcript.
	SessionID string

	// Target describes the target under test.
	Target string

	// PayloadSize is the announced payload length.
	PayloadSize int

	// PayloadCRC32 is the checksum of the payload sent.
	PayloadCRC32 uint32

	// ReportedCRC32 is the checksum the target printed, if it printed one.
	ReportedCRC32 *uint32

	// RebootSeen indicates the optional reboot notice appeared.
	RebootSeen bool

	// Passed indicates every stage passed or was skipped.
	Passed bool

	// Interrupted indicates the run was cancelled by the operator.
	Interrupted bool

	// Error is the failure that ended the run, if any.
	Error error

	// Stages holds one result per stage reached, in order.
	Stages []*StageResult

	// StartTime when the run started.
	StartTime time.Time

	// EndTime when the run finished.
	EndTime time.Time

	// Duration is how long the run took.
	Duration time.Duration
}

// ExitCode returns the process exit status for the run: 0 on success,
// 1 on any failure or interruption.
func (r *RunResult) ExitCode() int {
	if r.Passed {
		return 0
	}
	return 1
}

// FailedStage returns the result of the stage that failed, or nil.
func (r *RunResult) FailedStage() *StageResult {
	for _, s := range r.Stages {
		if s.Status == StatusFailed {
			return s
		}
	}
	return nil
}

// Stage returns the result for stage, or nil if it was not reached.
func (r *RunResult) Stage(stage Stage) *StageResult {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s
		}
	}
	return nil
}

// CaseResult represents the outcome of one suite case.
type CaseResult struct {
	// ID and Name identify the case.
	ID   string
	Name string

	// Expect is what the case expected.
	Expect Expectation

	// Run is the underlying session result.
	Run *RunResult

	// Passed indicates the run matched the expectation.
	Passed bool

	// Message explains a mismatch.
	Message string

	// Skipped indicates the case was not run.
	Skipped bool

	// SkipReason explains why the case was skipped.
	SkipReason string
}

// SuiteResult represents the outcome of running a suite.
type SuiteResult struct {
	// SuiteName identifies the suite.
	SuiteName string

	// Results contains results for each case.
	Results []*CaseResult

	PassCount int
	FailCount int
	SkipCount int

	// Duration is the total time for all cases.
	Duration time.Duration
}

// Add appends a case result and updates the counters.
func (s *SuiteResult) Add(r *CaseResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Skipped:
		s.SkipCount++
	case r.Passed:
		s.PassCount++
	default:
		s.FailCount++
	}
}

// ExitCode returns 0 if no case failed.
func (s *SuiteResult) ExitCode() int {
	if s.FailCount > 0 {
		return 1
	}
	return 0
}
