package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/rvbl-protocol/rvbl-go/pkg/transport"
)

// Failure kinds. A failed run wraps exactly one of them.
var (
	// ErrSetup indicates the session could not be started.
	ErrSetup = errors.New("setup failed")

	// ErrStageTimeout indicates a marker did not appear within its stage timeout.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrStreamClosed indicates the target output ended, or the target
	// exited, before the stage completed.
	ErrStreamClosed = errors.New("target stream closed")

	// ErrSendFailure indicates a write towards the target failed.
	ErrSendFailure = errors.New("send failed")

	// ErrTargetRejected indicates the target explicitly refused a request.
	ErrTargetRejected = errors.New("target rejected request")

	// ErrIntegrityMismatch indicates the target reported a different checksum.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrInterrupted indicates the run was cancelled by the operator.
	ErrInterrupted = errors.New("interrupted")
)

// kindNames maps failure kinds to the names used in reports and suites.
var kindNames = []struct {
	err  error
	name string
}{
	{ErrSetup, "setup"},
	{ErrStageTimeout, "timeout"},
	{ErrStreamClosed, "stream_closed"},
	{ErrSendFailure, "send_failure"},
	{ErrTargetRejected, "target_rejected"},
	{ErrIntegrityMismatch, "integrity_mismatch"},
	{ErrInterrupted, "interrupted"},
}

// KindName returns the report name of the failure kind wrapped by err,
// or "" if err wraps none.
func KindName(err error) string {
	for _, k := range kindNames {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// KindByName returns the failure kind for a report name.
func KindByName(name string) (error, bool) {
	for _, k := range kindNames {
		if k.name == name {
			return k.err, true
		}
	}
	return nil, false
}

// StageError describes a failed stage.
type StageError struct {
	// Stage is the stage that failed.
	Stage Stage

	// Kind is one of the failure kind sentinels.
	Kind error

	// Expected is the marker or condition the stage was waiting for.
	Expected string

	// Observed holds the raw bytes consumed during the failed wait.
	Observed []byte

	// Err is the underlying cause, if any.
	Err error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	if e.Expected != "" {
		msg += fmt.Sprintf(" (expected %q)", e.Expected)
	}
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the failure kind and the cause.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SetupError describes a failure before the protocol exchange started.
type SetupError struct {
	// Reason is a short description of what could not be set up.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("setup failed: %s: %v", e.Reason, e.Err)
	}
	return "setup failed: " + e.Reason
}

// Unwrap exposes ErrSetup and the cause.
func (e *SetupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSetup}
	}
	return []error{ErrSetup, e.Err}
}

// classify maps a transport error to a failure kind.
func classify(err error) error {
	switch {
	case errors.Is(err, transport.ErrWaitTimeout):
		return ErrStageTimeout
	case errors.Is(err, transport.ErrStreamClosed):
		return ErrStreamClosed
	case errors.Is(err, transport.ErrSendFailed):
		return ErrSendFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrInterrupted
	default:
		return ErrStreamClosed
	}
}
