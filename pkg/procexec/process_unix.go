//go:build unix

package procexec

import (
	"syscall"
)

// PollExit performs a non-blocking check of handle. It returns (nil, nil)
// if the process is still running, a populated *ExitResult if it has
// exited, and an error on unexpected kernel failures. ECHILD (no such
// child: already reaped, or never ours) is treated as "not found", not
// an error: callers that poll a handle they no longer own simply see no
// further exits.
func PollExit(handle Handle) (*ExitResult, error) {
	var status syscall.WaitStatus
	pid, err := syscall.Wait4(int(handle), &status, syscall.WNOHANG, nil)
	if err != nil {
		if err == syscall.ECHILD {
			return nil, nil
		}
		return nil, newErr(KindWait, "poll_exit", err)
	}
	if pid == 0 {
		// Still running.
		return nil, nil
	}
	return &ExitResult{ExitCode: decodeStatus(status), Process: Handle(pid)}, nil
}

// WaitAny blocks until some child terminates. The host has no native
// "wait for any of this specific set" call, so this always waits on any
// child system-wide (pid -1) and returns matched=false; callers recover
// identity by looking the returned Process up in their own bookkeeping
// (and re-scanning with PollExit to reconcile any exits that arrived
// between the wait and the lookup). atLeast is validated for emptiness
// but is not used to scope the wait.
func WaitAny(atLeast []Handle) (matchedIndex int, matched bool, result ExitResult, err error) {
	if len(atLeast) == 0 {
		return 0, false, ExitResult{}, newErr(KindEmptyWaitSet, "wait_any", ErrEmptyWaitSet)
	}

	var status syscall.WaitStatus
	pid, werr := syscall.Wait4(-1, &status, 0, nil)
	if werr != nil {
		return 0, false, ExitResult{}, newErr(KindWait, "wait_any", werr)
	}

	return 0, false, ExitResult{ExitCode: decodeStatus(status), Process: Handle(pid)}, nil
}

func killPid(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

func decodeStatus(status syscall.WaitStatus) int {
	switch {
	case status.Exited():
		return status.ExitStatus()
	case status.Signaled():
		// Mirror the host shell convention: 128 + signal number.
		return 128 + int(status.Signal())
	default:
		return status.ExitStatus()
	}
}
