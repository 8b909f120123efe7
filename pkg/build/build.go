// Package build orchestrates compiling a list of generated C++ files into
// object files and linking them, reusing pkg/pool's bounded-concurrency
// job queue with a different argv shape than the test scheduler: exit
// code zero is the only success code, and the first nonzero exit aborts
// the whole batch instead of being tolerated like a failing test.
package build

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jakt-lang/testrunner/pkg/pool"
)

// Builder compiles a fixed list of C++ source files into object files and
// links them, using a bounded-concurrency pool to run the compiler.
type Builder struct {
	pool         *pool.Pool
	compilerPath string
	linkedFiles  []string
}

// New creates a Builder that compiles with compilerPath at up to
// maxConcurrent parallel invocations.
func New(compilerPath string, maxConcurrent int) *Builder {
	return &Builder{
		pool:         pool.New(maxConcurrent),
		compilerPath: compilerPath,
	}
}

// CompileAll compiles every entry in sources into an object file under
// binaryDir, named by replacing the source's extension with ".o". It
// dispatches one pool job per source, capped at the pool's concurrency,
// and fails fast: the completed set is scanned after every dispatch, and
// the moment any job there carries a nonzero exit it calls KillAll and
// returns an error instead of waiting for the rest of the batch to
// finish. A build is an all-or-nothing artifact, unlike the test
// scheduler's partial-failure tolerance.
//
// On success, CompileAll returns the object file paths in the same order
// as sources, and records them as this Builder's linked files for a
// subsequent LinkIntoArchive or LinkIntoExecutable call.
func (b *Builder) CompileAll(sources []string, binaryDir string) ([]string, error) {
	objects := make([]string, 0, len(sources))
	ids := make(map[pool.JobID]struct{}, len(sources))

	for _, source := range sources {
		if err := b.checkCompleted(ids); err != nil {
			return nil, err
		}

		object := filepath.Join(binaryDir, replaceExt(source, ".o"))
		argv := []string{b.compilerPath, "-c", filepath.Join(binaryDir, source), "-o", object}

		id, err := b.pool.Run(argv)
		if err != nil {
			b.pool.KillAll()
			_ = b.pool.WaitForAllJobsToComplete()
			return nil, fmt.Errorf("build: dispatch compile of %s: %w", source, err)
		}
		ids[id] = struct{}{}
		objects = append(objects, object)
	}

	if err := b.pool.WaitForAllJobsToComplete(); err != nil {
		return nil, fmt.Errorf("build: waiting for compiles to finish: %w", err)
	}
	if err := b.checkCompleted(ids); err != nil {
		return nil, err
	}

	b.linkedFiles = append(b.linkedFiles, objects...)
	return objects, nil
}

// checkCompleted scans the pool's completed set for any job in ids that
// exited nonzero. On the first one found, it kills every still-running
// job, drains them, and returns an error.
func (b *Builder) checkCompleted(ids map[pool.JobID]struct{}) error {
	for _, id := range b.pool.Completed() {
		if _, ours := ids[id]; !ours {
			continue
		}
		result, ok := b.pool.Status(id)
		if !ok || result.ExitCode == 0 {
			continue
		}
		b.pool.KillAll()
		_ = b.pool.WaitForAllJobsToComplete()
		return fmt.Errorf("build: compilation failed with exit code %d", result.ExitCode)
	}
	return nil
}

// LinkIntoArchive links every object file compiled so far into a static
// archive at archivePath using ar-compatible argv: `archiver cr archivePath
// object...`.
func (b *Builder) LinkIntoArchive(archiver, archivePath string) error {
	argv := append([]string{archiver, "cr", archivePath}, b.linkedFiles...)
	return b.runToCompletion(argv, "linking archive")
}

// LinkIntoExecutable links every object file compiled so far into an
// executable at outputPath using the given C++ compiler, plus any
// caller-supplied extra linker arguments (e.g. -lpthread).
func (b *Builder) LinkIntoExecutable(cxxCompilerPath, outputPath string, extraArgs []string) error {
	argv := append([]string{cxxCompilerPath, "-o", outputPath}, b.linkedFiles...)
	argv = append(argv, extraArgs...)
	return b.runToCompletion(argv, "linking executable")
}

func (b *Builder) runToCompletion(argv []string, what string) error {
	id, err := b.pool.Run(argv)
	if err != nil {
		return fmt.Errorf("build: dispatch %s: %w", what, err)
	}
	if err := b.pool.WaitForAllJobsToComplete(); err != nil {
		return fmt.Errorf("build: waiting for %s: %w", what, err)
	}
	result, ok := b.pool.Status(id)
	if !ok {
		return fmt.Errorf("build: %s: job never completed", what)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("build: %s failed with exit code %d", what, result.ExitCode)
	}
	return nil
}

func replaceExt(path, newExt string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + newExt
}
