package procexec

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain re-executes this test binary as a well-behaved "helper child"
// when JAKTTEST_PROCEXEC_HELPER is set, instead of running the test suite.
// This avoids depending on any system binary for process-lifecycle tests.
func TestMain(m *testing.M) {
	switch os.Getenv("JAKTTEST_PROCEXEC_HELPER") {
	case "exit0":
		os.Exit(0)
	case "exit7":
		os.Exit(7)
	case "sleep":
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func helperArgv(t *testing.T, mode string) []string {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)
	return []string{self, "-test.run=^$"}
}

func spawnHelper(t *testing.T, mode string) Handle {
	t.Helper()
	argv := helperArgv(t, mode)
	t.Setenv("JAKTTEST_PROCEXEC_HELPER", mode)
	h, err := Spawn(argv)
	require.NoError(t, err)
	return h
}

func TestSpawnAndPollExit_Exits(t *testing.T) {
	h := spawnHelper(t, "exit7")

	var result *ExitResult
	require.Eventually(t, func() bool {
		r, err := PollExit(h)
		require.NoError(t, err)
		if r == nil {
			return false
		}
		result = r
		return true
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 7, result.ExitCode)
	assert.Equal(t, h, result.Process)
}

func TestPollExit_StillRunning(t *testing.T) {
	h := spawnHelper(t, "sleep")
	defer func() { _ = Kill(h) }()

	r, err := PollExit(h)
	require.NoError(t, err)
	assert.Nil(t, r)

	// Drain the exit so we don't leave a zombie for other tests.
	require.NoError(t, Kill(h))
	require.Eventually(t, func() bool {
		r, err := PollExit(h)
		require.NoError(t, err)
		return r != nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestWaitAny_BlocksUntilExit(t *testing.T) {
	h := spawnHelper(t, "exit0")

	_, matched, result, err := WaitAny([]Handle{h})
	require.NoError(t, err)
	assert.False(t, matched, "wait_any has no native wait-for-set-of-pids on this platform, so matched is always false")
	assert.Equal(t, h, result.Process)
	assert.Equal(t, 0, result.ExitCode)
}

func TestWaitAny_EmptySet(t *testing.T) {
	_, _, _, err := WaitAny(nil)
	require.Error(t, err)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindEmptyWaitSet, pe.Kind)
}

func TestKill_TerminatesRunningChild(t *testing.T) {
	h := spawnHelper(t, "sleep")

	require.NoError(t, Kill(h))

	require.Eventually(t, func() bool {
		r, err := PollExit(h)
		require.NoError(t, err)
		return r != nil
	}, 2*time.Second, 5*time.Millisecond)
}
