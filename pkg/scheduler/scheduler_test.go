package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakt-lang/testrunner/pkg/classify"
	"github.com/jakt-lang/testrunner/pkg/driver"
)

// TestMain lets this test binary impersonate the driver subprocess: when
// re-exec'd with schedulerHelperEnv set, it reads its own argv the way the
// real driver would and writes the stage output files a scheduler test
// needs, instead of running the test suite.
const schedulerHelperEnv = "JAKTTEST_SCHEDULER_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(schedulerHelperEnv) == "1" {
		os.Exit(runFakeDriver())
	}
	os.Exit(m.Run())
}

// runFakeDriver emulates the three-stage driver contract using only the
// source file's base name to decide what happens, so tests can script
// outcomes without a real Jakt toolchain.
func runFakeDriver() int {
	argv := os.Args
	if len(argv) < 3 {
		return 99
	}
	dir := argv[len(argv)-2]
	source := argv[len(argv)-1]

	base := filepath.Base(source)
	switch {
	case base == "pass.jakt":
		_ = os.WriteFile(filepath.Join(dir, "runtest.out"), []byte("hi\n"), 0o644)
		return 0
	case base == "fail_output.jakt":
		_ = os.WriteFile(filepath.Join(dir, "runtest.out"), []byte("bye\n"), 0o644)
		return 0
	case base == "compile_error.jakt":
		_ = os.WriteFile(filepath.Join(dir, "compile_jakt.err"), []byte("error: bad token\n"), 0o644)
		return 3
	case strings.HasPrefix(base, "order-"):
		f, err := os.OpenFile(filepath.Join(dir, "order.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = f.WriteString(base + "\n")
			_ = f.Close()
		}
		return 0
	default:
		return 0
	}
}

func fakeDriverCommand(t *testing.T) driver.Command {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)
	return driver.Command{
		ShellInvocation: self,
		DriverScript:    "jakttest/run_one.py",
		JaktBinary:      "jakt",
		TargetTriple:    "x86_64-unknown-linux-gnu",
		CppCompiler:     "clang++",
	}
}

func withHelperEnv(t *testing.T) {
	t.Helper()
	require.NoError(t, os.Setenv(schedulerHelperEnv, "1"))
	t.Cleanup(func() { _ = os.Unsetenv(schedulerHelperEnv) })
}

func tempDirs(t *testing.T, n int) []string {
	t.Helper()
	dirs := make([]string, n)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}
	return dirs
}

func TestScheduler_RunClassifiesEachTest(t *testing.T) {
	withHelperEnv(t)

	s := New(Config{
		Directories: tempDirs(t, 2),
		Command:     fakeDriverCommand(t),
	})

	tests := []Test{
		{SourceFile: "pass.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay, Output: "hi\n"}},
		{SourceFile: "fail_output.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay, Output: "hi\n"}},
		{SourceFile: "compile_error.jakt", Expected: classify.ExpectedResult{Kind: classify.CompileError, Output: "bad token"}},
	}

	outcomes, err := s.Run(context.Background(), tests)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	byFile := map[string]Outcome{}
	for _, o := range outcomes {
		byFile[o.Test.SourceFile] = o
	}

	assert.True(t, byFile["pass.jakt"].Passed)
	assert.False(t, byFile["fail_output.jakt"].Passed)
	assert.Equal(t, classify.StdoutUnmatched, byFile["fail_output.jakt"].Reason.Kind)
	assert.True(t, byFile["compile_error.jakt"].Passed)
}

func TestScheduler_RespectsDirectoryConcurrency(t *testing.T) {
	withHelperEnv(t)

	dirs := tempDirs(t, 1)
	s := New(Config{Directories: dirs, Command: fakeDriverCommand(t)})

	tests := make([]Test, 5)
	for i := range tests {
		tests[i] = Test{SourceFile: "pass.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay, Output: "hi\n"}}
	}

	outcomes, err := s.Run(context.Background(), tests)
	require.NoError(t, err)
	assert.Len(t, outcomes, 5)
	for _, o := range outcomes {
		assert.True(t, o.Passed)
	}
}

func TestScheduler_DispatchesInReverseInputOrder(t *testing.T) {
	withHelperEnv(t)

	// A single directory forces strictly serial dispatch: each test must
	// finish before the next one starts, so the order tests are appended
	// to order.log reflects dispatch order exactly.
	dirs := tempDirs(t, 1)
	s := New(Config{Directories: dirs, Command: fakeDriverCommand(t)})

	tests := []Test{
		{SourceFile: "order-0.jakt"},
		{SourceFile: "order-1.jakt"},
		{SourceFile: "order-2.jakt"},
	}
	_, err := s.Run(context.Background(), tests)
	require.NoError(t, err)

	logged, err := os.ReadFile(filepath.Join(dirs[0], "order.log"))
	require.NoError(t, err)
	assert.Equal(t, "order-2.jakt\norder-1.jakt\norder-0.jakt\n", string(logged))
}

func TestScheduler_OnOutcomeCalledInOrder(t *testing.T) {
	withHelperEnv(t)

	var seen []int
	s := New(Config{
		Directories: tempDirs(t, 2),
		Command:     fakeDriverCommand(t),
		OnOutcome: func(done, total int, _ Outcome) {
			seen = append(seen, done)
			assert.Equal(t, 2, total)
		},
	})

	tests := []Test{
		{SourceFile: "pass.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay}},
		{SourceFile: "pass.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay}},
	}
	_, err := s.Run(context.Background(), tests)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestScheduler_OnDispatchSeesCountersAndFiles(t *testing.T) {
	withHelperEnv(t)

	// One directory forces serial dispatch, so the second dispatch must
	// observe the first test's outcome in its counters.
	var lines []string
	s := New(Config{
		Directories: tempDirs(t, 1),
		Command:     fakeDriverCommand(t),
		OnDispatch: func(failed, passed, total int, sourceFile string) {
			lines = append(lines, fmt.Sprintf("(%d/%d/%d) %s", failed, passed, total, sourceFile))
		},
	})

	tests := []Test{
		{SourceFile: "pass.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay, Output: "hi\n"}},
		{SourceFile: "fail_output.jakt", Expected: classify.ExpectedResult{Kind: classify.Okay, Output: "hi\n"}},
	}
	_, err := s.Run(context.Background(), tests)
	require.NoError(t, err)

	// fail_output.jakt is dispatched first (pop-from-end), fails, and the
	// next dispatch reports it in the failed counter.
	assert.Equal(t, []string{
		"(0/0/2) fail_output.jakt",
		"(1/0/2) pass.jakt",
	}, lines)
}

func TestScheduler_ContextCancellationStopsEarly(t *testing.T) {
	withHelperEnv(t)

	s := New(Config{Directories: tempDirs(t, 1), Command: fakeDriverCommand(t)})
	s.cfg.reapInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := make([]Test, 3)
	for i := range tests {
		tests[i] = Test{SourceFile: "pass.jakt"}
	}

	_, err := s.Run(ctx, tests)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_EmptyTestListReturnsEmpty(t *testing.T) {
	s := New(Config{Directories: tempDirs(t, 1), Command: fakeDriverCommand(t)})
	outcomes, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestScheduler_SpawnErrorPropagates(t *testing.T) {
	s := New(Config{
		Directories: tempDirs(t, 1),
		Command:     driver.Command{ShellInvocation: "/no/such/binary-does-not-exist", DriverScript: "jakttest/run_one.py", JaktBinary: "jakt", CppCompiler: "clang++"},
	})
	_, err := s.Run(context.Background(), []Test{{SourceFile: "pass.jakt"}})
	assert.Error(t, err)
}
