// Package cmd wires jakttest's cobra command tree: layered configuration
// loading, structured logging, and typed process exit codes around the
// parallel test runner core (pkg/scheduler, pkg/classify, pkg/discover)
// and the run-history subcommand group (pkg/runstore).
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakt-lang/testrunner/internal/config"
	"github.com/jakt-lang/testrunner/internal/observability"
)

// versionInfo carries build metadata set by main via SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{Version: "dev", Commit: "none", BuildDate: "unknown"}

// SetVersionInfo records build metadata for the version command. Called
// once by main with values injected at link time (-ldflags).
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Identity describes the running binary, resolved once in
// PersistentPreRunE so subcommands can brand their banner output.
type Identity struct {
	BinaryName string
}

var appIdentity *Identity

// GetAppIdentity returns the resolved application identity, or nil before
// the root command's PersistentPreRunE has run.
func GetAppIdentity() *Identity {
	return appIdentity
}

var rootCmd = &cobra.Command{
	Use:   "jakttest",
	Short: "Parallel test runner for the Jakt toolchain",
	Long: `jakttest drives the three-stage transpile/compile/run pipeline for a
batch of Jakt source files in parallel, classifies each result against its
embedded expectations, and reports pass/fail counts.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appIdentity = &Identity{BinaryName: cmd.Root().Name()}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
		}
		level := cfg.Logging.Level
		if cfg.Debug.Enabled {
			level = "debug"
		}
		if err := observability.Init(level, cfg.Logging.Profile); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
		}
		return nil
	},
}

// Execute runs the root command against ctx (expected to carry interactive
// cancellation, e.g. from signal.NotifyContext(ctx, os.Interrupt)).
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// exitCodeError pairs a terminal error with the process exit code it
// should produce: ExitCode recovers the code with errors.As instead of
// parsing the error string.
type exitCodeError struct {
	code    int
	message string
	err     error
}

func (e *exitCodeError) Error() string {
	if e.err == nil {
		return e.message
	}
	return fmt.Sprintf("%s: %v", e.message, e.err)
}

func (e *exitCodeError) Unwrap() error { return e.err }

// exitError logs message/err at error level and returns a terminal error
// carrying code, for a RunE function to return directly.
func exitError(code int, message string, err error) error {
	observability.CLILogger.Error(message, zap.Error(err))
	return &exitCodeError{code: code, message: message, err: err}
}

// ExitWithCode logs message/err at error level and terminates the process
// immediately with code. Reserved for checks that cannot unwind back to a
// RunE return.
func ExitWithCode(logger *zap.Logger, code int, message string, err error) {
	if logger != nil {
		logger.Error(message, zap.Error(err))
	}
	observability.Sync()
	os.Exit(code)
}

// ExitCode extracts the process exit code main should use for err: 0 for
// nil, the code carried by exitError for a terminal command error, and
// foundry.ExitInvalidArgument for any other (unexpected) error.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded *exitCodeError
	if errors.As(err, &coded) {
		return coded.code
	}
	return foundry.ExitInvalidArgument
}
