// Package scheduler drives a directory-bounded, rate-limited set of test
// runs to completion: it owns the free-scratch-directory stack, dispatches
// driver subprocesses through pkg/pool up to a concurrency limit, reaps
// them as SIGCHLD arrives, and classifies each exit through pkg/classify.
package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/jakt-lang/testrunner/pkg/classify"
	"github.com/jakt-lang/testrunner/pkg/driver"
	"github.com/jakt-lang/testrunner/pkg/pool"
)

// Test is one unit of work: a source file paired with the expectation its
// directive declared.
type Test struct {
	SourceFile  string
	Expected    classify.ExpectedResult
	CppIncludes string
}

// Outcome is the classified result of running one Test.
type Outcome struct {
	Test   Test
	Passed bool
	Reason classify.FailureReason
}

// Config configures a Scheduler for one run.
type Config struct {
	// Directories are pre-created scratch directories, one per concurrent
	// slot. len(Directories) is the effective concurrency limit.
	Directories []string
	Command     driver.Command
	// MaxSpawnRate caps how many driver processes may be started per
	// second. Zero disables rate limiting.
	MaxSpawnRate float64
	// OnDispatch, if set, is called immediately after each driver is
	// spawned, with the failed/passed counters so far and the file just
	// started, for dispatch-time progress reporting.
	OnDispatch func(failed, passed, total int, sourceFile string)
	// OnOutcome, if set, is called synchronously as each test finishes,
	// in completion order, for progress reporting.
	OnOutcome func(done, total int, o Outcome)
	// reapInterval is a fallback poll period in case a SIGCHLD is
	// coalesced or missed; overridable in tests to avoid real sleeps.
	reapInterval time.Duration
}

// Scheduler runs a batch of tests to completion.
type Scheduler struct {
	cfg     Config
	pool    *pool.Pool
	buf     *driver.Buffer
	limiter *rate.Limiter
}

// New creates a Scheduler. Directories must be non-empty.
func New(cfg Config) *Scheduler {
	if cfg.reapInterval <= 0 {
		cfg.reapInterval = 200 * time.Millisecond
	}
	var limiter *rate.Limiter
	if cfg.MaxSpawnRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxSpawnRate), 1)
	}
	return &Scheduler{
		cfg:     cfg,
		pool:    pool.New(len(cfg.Directories)),
		buf:     driver.New(cfg.Command),
		limiter: limiter,
	}
}

type dispatched struct {
	test     Test
	dirIndex int
}

// Run dispatches every test in tests, respecting the directory and
// concurrency bounds, and returns one Outcome per test in completion
// order. If ctx is canceled before all tests finish, Run kills every
// in-flight driver process, waits for them to die, and returns the
// outcomes collected so far alongside ctx.Err().
func (s *Scheduler) Run(ctx context.Context, tests []Test) ([]Outcome, error) {
	freeDirs := make([]int, len(s.cfg.Directories))
	for i := range freeDirs {
		freeDirs[i] = len(s.cfg.Directories) - 1 - i
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCHLD)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(s.cfg.reapInterval)
	defer ticker.Stop()

	pending := make(map[pool.JobID]dispatched)
	outcomes := make([]Outcome, 0, len(tests))
	total := len(tests)
	passed, failed := 0, 0
	// remaining is drained from the end of tests, not the start: dispatch
	// order is the reverse of the input sequence (last in, first
	// dispatched), matching the documented pop-from-end queue semantics.
	remaining := total

	popDir := func() (int, bool) {
		if len(freeDirs) == 0 {
			return 0, false
		}
		n := len(freeDirs) - 1
		idx := freeDirs[n]
		freeDirs = freeDirs[:n]
		return idx, true
	}
	pushDir := func(idx int) {
		freeDirs = append(freeDirs, idx)
	}

	reap := func(ids []pool.JobID) {
		for _, id := range ids {
			job, ok := pending[id]
			if !ok {
				continue
			}
			delete(pending, id)
			result, _ := s.pool.Status(id)
			stdout, stderr, err := driver.ReadStageOutputs(s.cfg.Directories[job.dirIndex], result.ExitCode)
			_ = err // a read failure surfaces as empty captured output, not a run failure
			verdict := classify.Classify(result.ExitCode, job.test.Expected, stdout, stderr)
			outcome := Outcome{Test: job.test, Passed: verdict.Passed, Reason: verdict.Reason}
			if outcome.Passed {
				passed++
			} else {
				failed++
			}
			outcomes = append(outcomes, outcome)
			pushDir(job.dirIndex)
			if s.cfg.OnOutcome != nil {
				s.cfg.OnOutcome(len(outcomes), total, outcome)
			}
		}
	}

	for remaining > 0 || len(pending) > 0 {
		// Checked at the top of every iteration, not only in the select
		// below: a select with several ready cases picks one at random, so
		// cancellation must not depend on winning that race.
		if err := ctx.Err(); err != nil {
			s.pool.KillAll()
			_ = s.pool.WaitForAllJobsToComplete()
			reap(s.pool.Completed())
			return outcomes, err
		}

		for remaining > 0 {
			dirIdx, ok := popDir()
			if !ok {
				break
			}
			if s.limiter != nil {
				if err := s.limiter.Wait(ctx); err != nil {
					pushDir(dirIdx)
					s.pool.KillAll()
					_ = s.pool.WaitForAllJobsToComplete()
					return outcomes, err
				}
			}
			t := tests[remaining-1]
			remaining--
			argv := s.buf.Fill(t.CppIncludes, s.cfg.Directories[dirIdx], t.SourceFile)
			id, err := s.pool.Run(argv)
			if err != nil {
				pushDir(dirIdx)
				return outcomes, err
			}
			pending[id] = dispatched{test: t, dirIndex: dirIdx}
			if s.cfg.OnDispatch != nil {
				s.cfg.OnDispatch(failed, passed, total, t.SourceFile)
			}
		}

		// Run can itself have reaped a job internally if it ever blocked
		// waiting for pool capacity; fold those in before deciding whether
		// there is anything left to wait for.
		reap(s.pool.Completed())

		if len(pending) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			s.pool.KillAll()
			_ = s.pool.WaitForAllJobsToComplete()
			reap(s.pool.Completed())
			return outcomes, ctx.Err()
		case <-sigCh:
		case <-ticker.C:
		}
		s.pool.ReapNonBlocking()
		reap(s.pool.Completed())
	}

	return outcomes, nil
}
