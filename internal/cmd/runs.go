package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/jakt-lang/testrunner/internal/config"
	"github.com/jakt-lang/testrunner/pkg/runstore"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect past jakttest run history",
	Long: `Inspect run records persisted by "jakttest run" to the history
store: a queryable index of past invocations plus their per-file failure
detail.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List past runs",
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run_id>",
	Short: "Show the full failure list for one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune run records older than --max-age",
	RunE:  runRunsGC,
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsGCCmd)

	runsListCmd.Flags().Bool("json", false, "Output as JSON")
	runsListCmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = unlimited)")
	runsShowCmd.Flags().Bool("json", false, "Output as JSON")
	runsGCCmd.Flags().String("max-age", "168h", "Delete run records older than this duration")
	runsGCCmd.Flags().Bool("dry-run", false, "Show how many runs would be deleted")
}

func openHistory(cmd *cobra.Command) (*runstore.Index, *runstore.FileStore, string, error) {
	cfg, err := config.Load(cmd.Context())
	if err != nil {
		return nil, nil, "", exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if cfg.History.Path == "" {
		return nil, nil, "", exitError(foundry.ExitInvalidArgument, "History is disabled", fmt.Errorf("history.path is empty"))
	}

	db, err := runstore.OpenHistoryDB(cmd.Context(), cfg.History.Path)
	if err != nil {
		return nil, nil, "", exitError(foundry.ExitFileNotFound, "Failed to open history database", err)
	}
	fileStore := runstore.NewFileStore(filepath.Join(filepath.Dir(cfg.History.Path), "runs"))
	return runstore.NewIndex(db), fileStore, cfg.History.Path, nil
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	index, _, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	summaries, err := index.List(cmd.Context(), limit)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to list runs", err)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(os.Stdout, "No runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()
	fmt.Fprintln(w, "RUN ID\tSTARTED\tJOBS\tPASSED\tFAILED\tSKIPPED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			s.RunID, s.StartedAt.Format(time.RFC3339), s.Jobs, s.Passed, s.Failed, s.Skipped)
	}
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	index, fileStore, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	record, err := fileStore.Get(args[0])
	if err != nil {
		return exitError(foundry.ExitFileNotFound, "Run not found", err)
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(record)
	}

	fmt.Fprintf(os.Stdout, "run_id=%s\n", record.RunID)
	fmt.Fprintf(os.Stdout, "started_at=%s\n", record.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "ended_at=%s\n", record.EndedAt.Format(time.RFC3339))
	fmt.Fprintf(os.Stdout, "duration=%s\n", record.Duration())
	fmt.Fprintf(os.Stdout, "jobs=%d passed=%d failed=%d skipped=%d\n", record.Jobs, record.Passed, record.Failed, record.Skipped)
	if len(record.Failures) == 0 {
		return nil
	}
	fmt.Fprintln(os.Stdout, "\nFailures:")
	for _, f := range record.Failures {
		fmt.Fprintf(os.Stdout, "  %s [%s]: %s\n", f.FileName, f.ReasonKind, f.Detail)
	}
	return nil
}

func runRunsGC(cmd *cobra.Command, _ []string) error {
	index, fileStore, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	maxAgeStr, _ := cmd.Flags().GetString("max-age")
	maxAge, err := time.ParseDuration(maxAgeStr)
	if err != nil || maxAge <= 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --max-age", fmt.Errorf("%q is not a positive duration", maxAgeStr))
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	cutoff := time.Now().UTC().Add(-maxAge)

	if dryRun {
		summaries, err := index.List(cmd.Context(), 0)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Failed to list runs", err)
		}
		wouldDelete := 0
		for _, s := range summaries {
			if s.StartedAt.Before(cutoff) {
				wouldDelete++
			}
		}
		fmt.Fprintf(os.Stdout, "would_delete=%d\n", wouldDelete)
		return nil
	}

	deleted, err := index.DeleteOlderThan(cmd.Context(), cutoff)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to prune run history", err)
	}
	for _, runID := range deleted {
		_ = fileStore.Delete(runID)
	}
	fmt.Fprintf(os.Stdout, "deleted=%d\n", len(deleted))
	return nil
}
