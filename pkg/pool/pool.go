// Package pool implements a bounded-concurrency job queue over procexec: a
// fixed number of child processes may be running at once, new jobs block
// until a slot frees up, and callers can inspect completed results lazily.
//
// This is the shared primitive behind both the test scheduler (pkg/scheduler)
// and the build orchestrator (pkg/build): both dispatch argv-shaped jobs
// and reap them the same way, differing only in what they do with a result
// once it lands in Completed.
package pool

import (
	"sort"

	"github.com/jakt-lang/testrunner/pkg/procexec"
)

// JobID is a monotonically increasing, never-reused identifier assigned
// when a job is accepted by Run.
type JobID int64

// Pool is a bounded-concurrency process pool. A Pool is not safe for
// concurrent use by multiple goroutines: it is a single-threaded
// orchestrator, matching the scheduling model it serves.
type Pool struct {
	maxConcurrent int

	running   map[JobID]procexec.Handle
	completed map[JobID]procexec.ExitResult
	nextID    JobID
}

// New creates a Pool that runs at most maxConcurrent jobs at once.
func New(maxConcurrent int) *Pool {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pool{
		maxConcurrent: maxConcurrent,
		running:       make(map[JobID]procexec.Handle),
		completed:     make(map[JobID]procexec.ExitResult),
	}
}

// Running returns the number of jobs currently dispatched and unreaped.
func (p *Pool) Running() int {
	return len(p.running)
}

// MaxConcurrent returns the pool's configured concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.maxConcurrent
}

// Run spawns argv as a new job. If the pool is already at capacity, it
// first blocks reaping at least one existing job via
// WaitForAnyJobToComplete. Postcondition: len(running) <= maxConcurrent.
func (p *Pool) Run(argv []string) (JobID, error) {
	if len(p.running) >= p.maxConcurrent {
		if err := p.WaitForAnyJobToComplete(); err != nil {
			return 0, err
		}
	}

	handle, err := procexec.Spawn(argv)
	if err != nil {
		return 0, err
	}

	id := p.nextID
	p.nextID++
	p.running[id] = handle
	return id, nil
}

// WaitForAnyJobToComplete blocks until at least one running job is moved
// into Completed. Beyond the job wait_any itself reaps, it opportunistically
// polls every other still-running job and moves any that have already
// exited. A poll failure on one of those other jobs is treated as a
// terminal completion of that job using the last observed exit result (the
// one wait_any returned in this call); see the design notes on
// swallowing poll errors during reaping; this keeps one bad poll from
// wedging the whole pool.
func (p *Pool) WaitForAnyJobToComplete() error {
	handles := make([]procexec.Handle, 0, len(p.running))
	ids := make([]JobID, 0, len(p.running))
	for id, h := range p.running {
		handles = append(handles, h)
		ids = append(ids, id)
	}

	matchedIndex, result, err := waitAny(handles)
	if err != nil {
		return err
	}

	moved := false
	if matchedIndex >= 0 {
		id := ids[matchedIndex]
		p.completed[id] = result
		delete(p.running, id)
		moved = true
	} else {
		// matched key is empty (the documented behavior on this platform):
		// recover identity by pid lookup against the running set.
		for id, h := range p.running {
			if h == result.Process {
				p.completed[id] = result
				delete(p.running, id)
				moved = true
				break
			}
		}
	}

	// Opportunistically reap anything else that has also exited by now.
	for id, h := range p.running {
		exit, perr := pollExit(h)
		if perr != nil {
			// Swallow the poll error and complete the job with the last
			// observed exit result (the one wait_any just returned) so one
			// bad poll cannot wedge the pool. A stricter implementation
			// could propagate perr instead; see DESIGN.md.
			p.completed[id] = result
			delete(p.running, id)
			moved = true
			continue
		}
		if exit != nil {
			p.completed[id] = *exit
			delete(p.running, id)
			moved = true
		}
	}

	if !moved {
		// The exited pid belonged to some other subsystem's child, not one
		// of ours; discard it and wait again until one of ours is moved.
		return p.WaitForAnyJobToComplete()
	}
	return nil
}

// waitAny is overridable in tests via a package-level indirection so pool
// logic can be exercised without real child processes. It returns
// matchedIndex = -1 when the underlying primitive can't identify which
// handle exited (the documented behavior on this platform).
var waitAny = func(handles []procexec.Handle) (matchedIndex int, result procexec.ExitResult, err error) {
	_, matched, result, err := procexec.WaitAny(handles)
	if err != nil {
		return -1, procexec.ExitResult{}, err
	}
	if matched {
		for i, h := range handles {
			if h == result.Process {
				return i, result, nil
			}
		}
	}
	return -1, result, nil
}

// pollExit is likewise overridable in tests.
var pollExit = procexec.PollExit

// ReapNonBlocking polls every running job once without blocking and moves
// any that have already exited into Completed. It returns the ids that
// were newly completed by this call, in no particular order. This is the
// primitive a SIGCHLD-driven reaping loop needs: unlike
// WaitForAnyJobToComplete, it never calls the blocking wait-any primitive,
// so it is safe to call from a loop that also needs to observe context
// cancellation.
func (p *Pool) ReapNonBlocking() []JobID {
	var done []JobID
	for id, h := range p.running {
		exit, err := pollExit(h)
		if err != nil {
			// Treat an unpollable job as gone; there is no exit status to
			// report so this job's classification will see an abrupt exit.
			p.completed[id] = procexec.ExitResult{Process: h, ExitCode: -1}
			delete(p.running, id)
			done = append(done, id)
			continue
		}
		if exit != nil {
			p.completed[id] = *exit
			delete(p.running, id)
			done = append(done, id)
		}
	}
	return done
}

// WaitForAllJobsToComplete reaps jobs until none remain running. Completed
// is never cleared; callers read it at their leisure.
func (p *Pool) WaitForAllJobsToComplete() error {
	for len(p.running) > 0 {
		if err := p.WaitForAnyJobToComplete(); err != nil {
			return err
		}
	}
	return nil
}

// Status returns the exit result for id if it has completed.
func (p *Pool) Status(id JobID) (procexec.ExitResult, bool) {
	r, ok := p.completed[id]
	return r, ok
}

// Completed returns a snapshot of every job id that has finished, sorted
// for deterministic iteration by callers (notably the build orchestrator's
// fail-fast scan).
func (p *Pool) Completed() []JobID {
	ids := make([]JobID, 0, len(p.completed))
	for id := range p.completed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// KillAll sends a kill signal to every still-running job. It does not wait;
// the caller is expected to reap afterward via WaitForAllJobsToComplete.
func (p *Pool) KillAll() {
	for _, h := range p.running {
		_ = procexec.Kill(h)
	}
}
