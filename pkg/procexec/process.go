// Package procexec implements the process primitives the rest of the test
// runner is built on: spawn a child, poll or block for its exit, and kill
// it. Every other package that starts a subprocess (the execution pool, the
// build orchestrator) does so exclusively through this package so that
// exactly one piece of code ever calls wait4 on a pid it manages.
//
// Callers must never call (*os.Process).Wait or (*exec.Cmd).Wait on a
// handle returned by Spawn: doing so races this package's own wait4 calls
// and can steal an exit status that PollExit or WaitAny is waiting on.
package procexec

import (
	"os"
	"os/exec"
)

func lookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Handle is an opaque identifier for a live child process. It is the child's
// OS process id. A Handle has at most one logical owner at a time: once it
// has been reaped by PollExit or WaitAny, it must not be queried again.
type Handle int

// ExitResult is produced when a child terminates, by signal or normally.
type ExitResult struct {
	// ExitCode is the decoded exit status. For a process terminated by a
	// signal, this follows the host OS's standard decoding (128+signum on
	// Linux via syscall.WaitStatus, mirrored here for POSIX shells).
	ExitCode int
	Process  Handle
}

// Spawn starts argv[0] with the remaining elements as arguments, inheriting
// the parent's standard file descriptors. The driver and builder argv
// generators are responsible for redirecting output to files if they don't
// want it interleaved with the parent's own stdout/stderr.
func Spawn(argv []string) (Handle, error) {
	if len(argv) == 0 {
		return 0, newErr(KindArg, "spawn", os.ErrInvalid)
	}

	path, err := lookPath(argv[0])
	if err != nil {
		return 0, newErr(KindSpawn, "spawn", err)
	}

	proc, err := os.StartProcess(path, argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, newErr(KindExec, "spawn", err)
		}
		return 0, newErr(KindSpawn, "spawn", err)
	}

	return Handle(proc.Pid), nil
}

// Kill sends the strongest available termination signal to handle. It does
// not wait for the process to actually die; the caller is expected to reap
// it afterward via PollExit or WaitAny.
func Kill(handle Handle) error {
	if err := killPid(int(handle)); err != nil {
		return newErr(KindWait, "kill", err)
	}
	return nil
}
