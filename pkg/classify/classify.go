package classify

import "strings"

// Normalize implements the substring-error normalization law: it drops
// carriage returns and flattens embedded newlines into the literal
// two-character sequence `\n`, so a multi-line compiler error can be
// substring-matched against a single-line directive string. Normalize is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// Result is the verdict Classify reaches for one test.
type Result struct {
	Passed bool
	Reason FailureReason
}

// Classify maps (exitCode, expected, resultOutput, errorOutput) to a pass
// or a tagged FailureReason. resultOutput and errorOutput are the contents
// of the stage's stdout/stderr files (empty if the file was missing).
// Classification is a pure function: it is deterministic given its inputs.
func Classify(exitCode int, expected ExpectedResult, resultOutput, errorOutput string) Result {
	stage, ok := StageForExitCode(exitCode)
	if !ok {
		return Result{Passed: false, Reason: newAbruptExit(exitCode)}
	}

	expectedStage := expected.Kind.ToStage()

	var matched bool
	if expected.Kind == Okay {
		observed := strings.ReplaceAll(resultOutput, "\r", "")
		matched = observed == expected.Output
	} else {
		matched = strings.Contains(Normalize(errorOutput), Normalize(expected.Output))
	}

	if matched {
		return Result{Passed: true}
	}

	if stage != expectedStage {
		if stage.Before(expectedStage) {
			return Result{Reason: newStageReason(ErroredAtEarlierStage, errorOutput, expected.Output, stage)}
		}
		if stage == TestRun && len(resultOutput) > 0 {
			return Result{Reason: newReason(ExpectedError, resultOutput, expected.Output)}
		}
		return Result{Reason: newStageReason(ErroredAtLaterStage, errorOutput, expected.Output, stage)}
	}

	switch expected.Kind {
	case CompileError:
		return Result{Reason: newReason(CompilerErrorUnmatched, errorOutput, expected.Output)}
	case RuntimeError:
		return Result{Reason: newReason(StderrUnmatched, errorOutput, expected.Output)}
	default: // Okay, stage == TestRun
		return Result{Reason: newReason(StdoutUnmatched, resultOutput, expected.Output)}
	}
}
