// Command jakttest is the parallel test runner for the Jakt toolchain.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/jakt-lang/testrunner/internal/cmd"
	"github.com/jakt-lang/testrunner/internal/observability"
)

// version, commit, and buildDate are set at link time via -ldflags.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	os.Exit(cmd.ExitCode(err))
}
