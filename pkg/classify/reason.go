package classify

import "fmt"

// ReasonKind tags the variant carried by a FailureReason.
type ReasonKind int

const (
	CompilerErrorUnmatched ReasonKind = iota
	StdoutUnmatched
	StderrUnmatched
	ExpectedError
	ErroredAtEarlierStage
	ErroredAtLaterStage
	AbruptExit
)

func (k ReasonKind) String() string {
	switch k {
	case CompilerErrorUnmatched:
		return "compiler_error_unmatched"
	case StdoutUnmatched:
		return "stdout_unmatched"
	case StderrUnmatched:
		return "stderr_unmatched"
	case ExpectedError:
		return "expected_error"
	case ErroredAtEarlierStage:
		return "errored_at_earlier_stage"
	case ErroredAtLaterStage:
		return "errored_at_later_stage"
	case AbruptExit:
		return "abrupt_exit"
	default:
		return "unknown"
	}
}

// FailureReason is the tagged variant describing why a test failed. Had and
// Expected hold the observed and expected strings for the variants that
// compare output; FailedStage and ExitCode are only meaningful for the
// variants that name them.
type FailureReason struct {
	Kind        ReasonKind
	Had         string
	Expected    string
	FailedStage Stage
	ExitCode    int
}

func newReason(kind ReasonKind, had, expected string) FailureReason {
	return FailureReason{Kind: kind, Had: had, Expected: expected}
}

func newStageReason(kind ReasonKind, had, expected string, stage Stage) FailureReason {
	return FailureReason{Kind: kind, Had: had, Expected: expected, FailedStage: stage}
}

func newAbruptExit(exitCode int) FailureReason {
	return FailureReason{Kind: AbruptExit, ExitCode: exitCode}
}

// Detail renders a one-line, human-readable explanation of r, matching the
// per-file diagnostic block template used in both the interactive report
// and the structured JSONL report.
func (r FailureReason) Detail() string {
	switch r.Kind {
	case CompilerErrorUnmatched:
		return fmt.Sprintf("compiler error %q does not contain expected %q", r.Had, r.Expected)
	case StdoutUnmatched:
		return fmt.Sprintf("stdout %q does not match expected %q", r.Had, r.Expected)
	case StderrUnmatched:
		return fmt.Sprintf("stderr %q does not contain expected %q", r.Had, r.Expected)
	case ExpectedError:
		return fmt.Sprintf("expected an error but the test ran to completion with output %q", r.Had)
	case ErroredAtEarlierStage:
		return fmt.Sprintf("failed at %s before reaching the expected stage: %q", r.FailedStage, r.Had)
	case ErroredAtLaterStage:
		return fmt.Sprintf("failed at %s after the expected stage: %q", r.FailedStage, r.Had)
	case AbruptExit:
		return fmt.Sprintf("driver exited abruptly with code %d", r.ExitCode)
	default:
		return "unknown failure"
	}
}
