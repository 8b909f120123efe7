package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		exitCode   int
		expected   ExpectedResult
		result     string
		errOutput  string
		wantPassed bool
		wantKind   ReasonKind
		wantHad    string
	}{
		{
			name:       "okay exact match passes",
			exitCode:   0,
			expected:   ExpectedResult{Kind: Okay, Output: "hi\n"},
			result:     "hi\n",
			wantPassed: true,
		},
		{
			name:       "compile error substring match passes",
			exitCode:   3,
			expected:   ExpectedResult{Kind: CompileError, Output: "undefined name"},
			errOutput:  "error: undefined name foo\n",
			wantPassed: true,
		},
		{
			name:      "okay expectation fails earlier at cpp compile stage",
			exitCode:  2,
			expected:  ExpectedResult{Kind: Okay, Output: "a"},
			errOutput: "oops",
			wantKind:  ErroredAtEarlierStage,
			wantHad:   "oops",
		},
		{
			name:      "compile error expectation but test ran and produced output",
			exitCode:  0,
			expected:  ExpectedResult{Kind: CompileError, Output: "X"},
			result:    "ok",
			wantKind:  ExpectedError,
			wantHad:   "ok",
		},
		{
			name:      "okay expectation stdout mismatch",
			exitCode:  0,
			expected:  ExpectedResult{Kind: Okay, Output: "hi\n"},
			result:    "bye\n",
			wantKind:  StdoutUnmatched,
			wantHad:   "bye\n",
		},
		{
			name:     "abrupt exit code",
			exitCode: 7,
			expected: ExpectedResult{Kind: Okay, Output: "hi\n"},
			wantKind: AbruptExit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.exitCode, tt.expected, tt.result, tt.errOutput)
			assert.Equal(t, tt.wantPassed, got.Passed)
			if !tt.wantPassed {
				assert.Equal(t, tt.wantKind, got.Reason.Kind)
				if tt.wantHad != "" {
					assert.Equal(t, tt.wantHad, got.Reason.Had)
				}
			}
		})
	}

	t.Run("abrupt exit carries exit code", func(t *testing.T) {
		got := Classify(7, ExpectedResult{Kind: Okay}, "", "")
		assert.Equal(t, 7, got.Reason.ExitCode)
	})
}

func TestClassify_RuntimeErrorStderrMismatch(t *testing.T) {
	got := Classify(0, ExpectedResult{Kind: RuntimeError, Output: "panic"}, "", "segfault\n")
	assert.False(t, got.Passed)
	assert.Equal(t, StderrUnmatched, got.Reason.Kind)
}

func TestClassify_ErroredAtEarlierStage(t *testing.T) {
	// Expecting a runtime error but the transpiler itself failed first.
	got := Classify(3, ExpectedResult{Kind: RuntimeError, Output: "boom"}, "", "jakt: parse error\n")
	assert.False(t, got.Passed)
	assert.Equal(t, ErroredAtEarlierStage, got.Reason.Kind)
	assert.Equal(t, TranspileJakt, got.Reason.FailedStage)
}

func TestClassify_ErroredAtLaterStage(t *testing.T) {
	// Expecting a Jakt compile error, but the transpile succeeded and the
	// generated C++ failed to compile instead.
	got := Classify(2, ExpectedResult{Kind: CompileError, Output: "boom"}, "", "clang: error\n")
	assert.False(t, got.Passed)
	assert.Equal(t, ErroredAtLaterStage, got.Reason.Kind)
	assert.Equal(t, CompileCpp, got.Reason.FailedStage)
}

func TestNormalize_Idempotent(t *testing.T) {
	samples := []string{
		"plain",
		"line one\nline two\r\n",
		"\r\r\n\n",
		"",
	}
	for _, s := range samples {
		once := Normalize(s)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "Normalize should be idempotent for %q", s)
	}
}

func TestOkayComparison_PreservedUnderCRChanges(t *testing.T) {
	expected := ExpectedResult{Kind: Okay, Output: "hi\n"}
	withoutCR := Classify(0, expected, "hi\n", "")
	withCR := Classify(0, expected, "hi\r\n", "")
	assert.True(t, withoutCR.Passed)
	assert.True(t, withCR.Passed, "appending \\r to observed stdout must not change the verdict")
}

func TestStageForExitCode(t *testing.T) {
	cases := map[int]Stage{0: TestRun, 1: TestRun, 2: CompileCpp, 3: TranspileJakt}
	for code, want := range cases {
		stage, ok := StageForExitCode(code)
		assert.True(t, ok)
		assert.Equal(t, want, stage)
	}
	_, ok := StageForExitCode(42)
	assert.False(t, ok)
}
