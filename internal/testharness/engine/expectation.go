package engine

import "fmt"

// Expectation is the outcome a suite case expects from a run.
type Expectation struct {
	// Pass expects every stage to pass. Stage and Kind are ignored.
	Pass bool

	// Stage is the stage expected to fail.
	Stage Stage

	// Kind is the expected failure kind name (see KindName). Empty matches any kind.
	Kind string
}

// String describes the expectation.
func (e Expectation) String() string {
	if e.Pass {
		return "pass"
	}
	if e.Kind == "" {
		return fmt.Sprintf("fail at %s", e.Stage)
	}
	return fmt.Sprintf("fail at %s with %s", e.Stage, e.Kind)
}

// Check compares a run against the expectation. The message explains a mismatch.
func (e Expectation) Check(r *RunResult) (bool, string) {
	if r == nil {
		return false, "no result"
	}
	if r.Interrupted {
		return false, "run interrupted"
	}

	failed := r.FailedStage()
	if e.Pass {
		if r.Passed {
			return true, ""
		}
		if failed == nil {
			return false, fmt.Sprintf("expected pass, got %v", r.Error)
		}
		return false, fmt.Sprintf("expected pass, failed at %s: %v", failed.Stage, failed.Error)
	}

	if r.Passed || failed == nil {
		return false, fmt.Sprintf("expected %s, run passed", e)
	}
	if failed.Stage != e.Stage {
		return false, fmt.Sprintf("expected %s, failed at %s: %v", e, failed.Stage, failed.Error)
	}
	if e.Kind != "" {
		if got := KindName(failed.Error); got != e.Kind {
			return false, fmt.Sprintf("expected %s, got kind %s: %v", e, got, failed.Error)
		}
	}
	return true, ""
}
