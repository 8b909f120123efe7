package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakt-lang/testrunner/internal/config"
	"github.com/jakt-lang/testrunner/internal/observability"
	"github.com/jakt-lang/testrunner/pkg/classify"
	"github.com/jakt-lang/testrunner/pkg/directive"
	"github.com/jakt-lang/testrunner/pkg/discover"
	"github.com/jakt-lang/testrunner/pkg/driver"
	"github.com/jakt-lang/testrunner/pkg/manifest"
	"github.com/jakt-lang/testrunner/pkg/report"
	"github.com/jakt-lang/testrunner/pkg/runstore"
	"github.com/jakt-lang/testrunner/pkg/scheduler"
)

// exitAnyTestFailed is the process exit code for "ran to completion, at
// least one test failed", distinct from an argument/configuration error
// (foundry.ExitInvalidArgument). No generic any-test-failed constant is
// exposed by foundry, so this is a local, explicit 1, matching the exit
// code the driver contract itself reserves for "ran, wrong output."
const exitAnyTestFailed = 1

var runFlags struct {
	hideReasons  bool
	jobs         int
	buildDir     string
	tempDir      string
	cppCompiler  string
	driverShell  string
	driverScript string
	jaktBinary   string
	jaktLibDir   string
	targetTriple string
	includes     []string
	excludes     []string
	maxSpawnRate float64
	reportPath   string
	jsonOutput   bool
	noHistory    bool
	manifestPath string
}

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Run Jakt tests in parallel and report pass/fail results",
	Long: `run discovers Jakt source files under the given paths (or the
current directory if none are given), parses each file's embedded Expect
directive, drives the transpile/compile/run pipeline for every test in
parallel, and reports pass/fail counts.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.BoolVar(&runFlags.hideReasons, "hide-reasons", false, "Suppress per-failure diagnostic detail")
	flags.IntVarP(&runFlags.jobs, "jobs", "j", 0, "Maximum concurrent test drivers (0 = use configuration default)")
	flags.StringVarP(&runFlags.buildDir, "build-dir", "b", "", "Directory containing the jakt/jakttest build artifacts")
	flags.StringVar(&runFlags.tempDir, "temp-dir", "", "Parent directory for per-worker scratch directories")
	flags.StringVarP(&runFlags.cppCompiler, "cpp-compiler", "C", "", "Path to the C++ compiler the driver should invoke")
	flags.StringVar(&runFlags.driverShell, "driver-shell", "python3", "Interpreter that runs the per-test driver script")
	flags.StringVar(&runFlags.driverScript, "driver-script", "jakttest/run_one.py", "Path to the per-test driver script")
	flags.StringVar(&runFlags.jaktBinary, "jakt-binary", "", "Path to the Jakt compiler binary (default <build-dir>/bin/jakt)")
	flags.StringVar(&runFlags.jaktLibDir, "jakt-lib-dir", "", "Path to the Jakt runtime library directory (default <build-dir>/lib)")
	flags.StringVar(&runFlags.targetTriple, "target-triple", "", "Target triple the driver compiles the generated C++ for")
	flags.StringSliceVar(&runFlags.includes, "include", nil, "Glob pattern a discovered file must match (repeatable, default **/*.jakt)")
	flags.StringSliceVar(&runFlags.excludes, "exclude", nil, "Glob pattern a discovered file must not match (repeatable)")
	flags.Float64Var(&runFlags.maxSpawnRate, "max-spawn-rate", 0, "Maximum driver processes started per second (0 = unbounded)")
	flags.StringVar(&runFlags.reportPath, "report", "", "Write JSONL structured diagnostics to PATH")
	flags.BoolVar(&runFlags.jsonOutput, "json", false, "Print a machine-readable JSON summary instead of the progress report")
	flags.BoolVar(&runFlags.noHistory, "no-history", false, "Skip persisting a run record to the history store")
	flags.StringVar(&runFlags.manifestPath, "manifest", "", "Load paths/include/exclude/jobs from a YAML manifest before flag overrides")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	paths := args
	includes := runFlags.includes
	excludes := runFlags.excludes
	jobsFlag := runFlags.jobs

	if runFlags.manifestPath != "" {
		m, err := manifest.Load(runFlags.manifestPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid manifest", err)
		}
		if len(paths) == 0 {
			paths = m.Paths
		}
		if len(includes) == 0 {
			includes = m.Include
		}
		if len(excludes) == 0 {
			excludes = m.Exclude
		}
		if jobsFlag == 0 {
			jobsFlag = m.Jobs
		}
	}
	if len(paths) == 0 {
		paths = []string{"."}
	}

	overrides := map[string]any{}
	runnerOverrides := map[string]any{}
	if jobsFlag > 0 {
		runnerOverrides["jobs"] = jobsFlag
	}
	if runFlags.buildDir != "" {
		runnerOverrides["build_dir"] = runFlags.buildDir
	}
	if runFlags.tempDir != "" {
		runnerOverrides["temp_dir"] = runFlags.tempDir
	}
	if runFlags.cppCompiler != "" {
		runnerOverrides["cpp_compiler"] = runFlags.cppCompiler
	}
	if cmd.Flags().Changed("hide-reasons") {
		runnerOverrides["hide_reasons"] = runFlags.hideReasons
	}
	if len(includes) > 0 {
		runnerOverrides["include_patterns"] = includes
	}
	if len(excludes) > 0 {
		runnerOverrides["exclude_patterns"] = excludes
	}
	if cmd.Flags().Changed("max-spawn-rate") {
		runnerOverrides["max_spawn_rate"] = runFlags.maxSpawnRate
	}
	if len(runnerOverrides) > 0 {
		overrides["runner"] = runnerOverrides
	}
	if runFlags.noHistory {
		overrides["history"] = map[string]any{"enabled": false}
	}

	cfg, err := config.Load(ctx, overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	if cfg.Debug.PprofEnabled {
		stopProfile, perr := startCPUProfile()
		if perr != nil {
			observability.CLILogger.Warn("Failed to start CPU profile", zap.Error(perr))
		} else {
			defer stopProfile()
		}
	}

	files, err := discover.Files(paths, discover.Config{
		Includes: cfg.Runner.IncludePatterns,
		Excludes: cfg.Runner.ExcludePatterns,
	})
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to discover test files", err)
	}
	if len(files) == 0 {
		return exitError(foundry.ExitInvalidArgument, "No input files found", fmt.Errorf("no files under %v matched the include/exclude patterns", paths))
	}

	tests := make([]scheduler.Test, 0, len(files))
	skipped := 0
	for _, f := range files {
		source, err := os.ReadFile(f)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to read test file", err)
		}
		parsed, err := directive.Parse(source)
		if err != nil {
			if err == directive.ErrSkip {
				skipped++
				continue
			}
			return exitError(foundry.ExitInvalidArgument, "Invalid Expect directive", fmt.Errorf("%s: %w", f, err))
		}
		tests = append(tests, scheduler.Test{
			SourceFile:  f,
			Expected:    parsed.Expected,
			CppIncludes: parsed.CppIncludes,
		})
	}

	jobs := cfg.Runner.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(tests) && len(tests) > 0 {
		jobs = len(tests)
	}

	tempRoot := cfg.Runner.TempDir
	if tempRoot == "" {
		tempRoot = os.TempDir()
	}
	directories, cleanup, err := makeScratchDirectories(tempRoot, jobs)
	if err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to create scratch directories", err)
	}
	defer cleanup()

	var reportWriter report.Writer
	var reportFile *os.File
	runID := uuid.New().String()
	if runFlags.reportPath != "" {
		reportFile, err = os.Create(runFlags.reportPath)
		if err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to create report file", err)
		}
		defer func() { _ = reportFile.Close() }()
		reportWriter = report.NewJSONLWriter(reportFile, runID)
		defer func() { _ = reportWriter.Close() }()
	}

	passed, failed := 0, 0
	onDispatch := func(failedSoFar, passedSoFar, total int, sourceFile string) {
		if !runFlags.jsonOutput {
			printProgress(failedSoFar, passedSoFar, total, sourceFile)
		}
	}
	onOutcome := func(done, total int, o scheduler.Outcome) {
		if o.Passed {
			passed++
		} else {
			failed++
			if !runFlags.jsonOutput {
				printFailure(o.Test.SourceFile)
			}
		}
		if reportWriter != nil && !o.Passed {
			_ = reportWriter.WriteFailure(ctx, report.FromReason(o.Test.SourceFile, o.Reason))
		}
	}

	jaktBinary := runFlags.jaktBinary
	if jaktBinary == "" {
		if cfg.Runner.BuildDir != "" {
			jaktBinary = filepath.Join(cfg.Runner.BuildDir, "bin", "jakt")
		} else {
			jaktBinary = "jakt"
		}
	}
	jaktLibDir := runFlags.jaktLibDir
	if jaktLibDir == "" && cfg.Runner.BuildDir != "" {
		jaktLibDir = filepath.Join(cfg.Runner.BuildDir, "lib")
	}

	sched := scheduler.New(scheduler.Config{
		Directories: directories,
		Command: driver.Command{
			ShellInvocation: runFlags.driverShell,
			DriverScript:    runFlags.driverScript,
			JaktBinary:      jaktBinary,
			JaktLibDir:      jaktLibDir,
			TargetTriple:    runFlags.targetTriple,
			CppCompiler:     cfg.Runner.CppCompiler,
		},
		MaxSpawnRate: cfg.Runner.MaxSpawnRate,
		OnDispatch:   onDispatch,
		OnOutcome:    onOutcome,
	})

	observability.CLILogger.Info("Starting test run",
		zap.String("run_id", runID),
		zap.Int("tests", len(tests)),
		zap.Int("jobs", jobs))

	started := time.Now().UTC()
	outcomes, runErr := sched.Run(ctx, tests)
	ended := time.Now().UTC()
	if !runFlags.jsonOutput {
		fmt.Fprint(os.Stdout, "\r\x1b[2K")
	}

	failedReasons := make(map[string]classify.FailureReason, failed)
	for _, o := range outcomes {
		if !o.Passed {
			failedReasons[o.Test.SourceFile] = o.Reason
		}
	}

	if reportWriter != nil {
		_ = reportWriter.WriteSummary(ctx, &report.SummaryRecord{
			Jobs: jobs, Passed: passed, Failed: failed, Skipped: skipped,
			Duration: ended.Sub(started), DurationHuman: ended.Sub(started).String(),
		})
	}

	if cfg.History.Enabled {
		if err := persistRunRecord(ctx, cfg, runID, started, ended, jobs, passed, failed, skipped, failedReasons); err != nil {
			observability.CLILogger.Warn("Failed to persist run history", zap.Error(err))
		}
	}

	if runFlags.jsonOutput {
		printJSONSummary(jobs, passed, failed, skipped, ended.Sub(started))
	} else {
		printSummary(passed, failed, skipped, failedReasons)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Run cancelled", runErr)
		}
		return exitError(foundry.ExitInvalidArgument, "Run failed", runErr)
	}
	if failed > 0 {
		return exitError(exitAnyTestFailed, "Some tests failed", fmt.Errorf("%d of %d tests failed", failed, passed+failed))
	}
	return nil
}

// startCPUProfile writes a CPU profile for the duration of the run to
// jakttest-cpu.pprof in the working directory. The returned stop function
// flushes and closes the profile.
func startCPUProfile() (func(), error) {
	f, err := os.Create("jakttest-cpu.pprof")
	if err != nil {
		return nil, fmt.Errorf("create profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
		observability.CLILogger.Info("Wrote CPU profile", zap.String("path", "jakttest-cpu.pprof"))
	}, nil
}

// makeScratchDirectories creates n per-worker directories under
// <tempRoot>/jakttest-tmp-<i>, returning their paths and a cleanup
// function that removes them recursively.
func makeScratchDirectories(tempRoot string, n int) ([]string, func(), error) {
	dirs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dir := filepath.Join(tempRoot, fmt.Sprintf("jakttest-tmp-%d", i))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			for _, d := range dirs {
				_ = os.RemoveAll(d)
			}
			return nil, nil, fmt.Errorf("create scratch dir %s: %w", dir, err)
		}
		dirs = append(dirs, dir)
	}
	cleanup := func() {
		for _, d := range dirs {
			_ = os.RemoveAll(d)
		}
	}
	return dirs, cleanup, nil
}

// printProgress overwrites the current progress line in place; the
// erase-line sequence clears residue from a longer previous file name.
func printProgress(failed, passed, total int, sourceFile string) {
	fmt.Fprintf(os.Stdout, "\r\x1b[2K(%d/%d/%d) Testing %s", failed, passed, total, sourceFile)
}

func printFailure(sourceFile string) {
	fmt.Fprintf(os.Stdout, "\r\x1b[2K[ FAIL ] %s\n", sourceFile)
}

func printSummary(passed, failed, skipped int, reasons map[string]classify.FailureReason) {
	fmt.Fprintf(os.Stdout, "\n%d passed, %d failed, %d skipped\n", passed, failed, skipped)
	if runFlags.hideReasons || len(reasons) == 0 {
		return
	}
	names := make([]string, 0, len(reasons))
	for name := range reasons {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(os.Stdout, "\nFailures:")
	for _, name := range names {
		fmt.Fprintf(os.Stdout, "  %s: %s\n", name, reasons[name].Detail())
	}
}

func printJSONSummary(jobs, passed, failed, skipped int, duration time.Duration) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report.SummaryRecord{
		Jobs: jobs, Passed: passed, Failed: failed, Skipped: skipped,
		Duration: duration, DurationHuman: duration.String(),
	})
}

func persistRunRecord(ctx context.Context, cfg *config.Config, runID string, started, ended time.Time, jobs, passed, failed, skipped int, reasons map[string]classify.FailureReason) error {
	historyPath := cfg.History.Path
	if historyPath == "" {
		return fmt.Errorf("history.path is empty")
	}

	failures := make([]runstore.FailureEntry, 0, len(reasons))
	names := make([]string, 0, len(reasons))
	for name := range reasons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := reasons[name]
		failures = append(failures, runstore.FailureEntry{FileName: name, ReasonKind: r.Kind.String(), Detail: r.Detail()})
	}

	record := &runstore.RunRecord{
		RunID:     runID,
		StartedAt: started,
		EndedAt:   ended,
		BuildDir:  cfg.Runner.BuildDir,
		TempDir:   cfg.Runner.TempDir,
		Jobs:      jobs,
		Passed:    passed,
		Failed:    failed,
		Skipped:   skipped,
		Failures:  failures,
	}

	stateDir := filepath.Dir(historyPath)
	fileStore := runstore.NewFileStore(filepath.Join(stateDir, "runs"))
	if err := fileStore.Write(record); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}

	db, err := runstore.OpenHistoryDB(ctx, historyPath)
	if err != nil {
		return fmt.Errorf("open history db: %w", err)
	}
	defer func() { _ = db.Close() }()

	return runstore.NewIndex(db).Insert(ctx, *record)
}
