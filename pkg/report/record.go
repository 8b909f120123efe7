// Package report provides JSONL output for per-test diagnostics.
//
// Output is structured as typed record envelopes containing failures and
// a final summary. Each line is a self-contained JSON object that can be
// parsed independently, so a consumer (CI log viewer, a follow-up
// `jq`/script) never needs to buffer the whole report to make sense of
// one line.
package report

import (
	"encoding/json"
	"errors"
	"time"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: jakttest.<type>.v<version>
const (
	// TypeFailure identifies a single failed test's diagnostic record.
	TypeFailure = "jakttest.failure.v1"

	// TypeSummary identifies the final run-summary record.
	TypeSummary = "jakttest.summary.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "jakttest.failure.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// RunID is the correlation ID for this run, matching the run
	// history record persisted by pkg/runstore.
	RunID string `json:"run_id"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// FailureRecord is the data payload for one failed test's diagnostic
// block, matching the variant-specific template produced by
// pkg/classify.FailureReason.
type FailureRecord struct {
	// FileName is the source file the test was read from.
	FileName string `json:"file_name"`

	// ReasonKind identifies the tagged FailureReason variant (e.g.
	// "stdout_unmatched", "abrupt_exit").
	ReasonKind string `json:"reason_kind"`

	// Had is the observed output the classifier compared against. It is
	// empty for AbruptExit, whose exit code appears only in Detail.
	Had string `json:"had,omitempty"`

	// Expected is the directive-derived output the classifier expected.
	Expected string `json:"expected,omitempty"`

	// FailedStage names the pipeline stage the failure was diagnosed
	// at, for the stage-aware variants (ErroredAtEarlierStage /
	// ErroredAtLaterStage). Empty for variants with no stage context.
	FailedStage string `json:"failed_stage,omitempty"`

	// Detail is a one-line human-readable rendering of the reason,
	// the same text printed in the interactive report.
	Detail string `json:"detail"`
}

// SummaryRecord is the data payload for the final summary, written once
// after every test has been classified.
type SummaryRecord struct {
	Jobs          int           `json:"jobs"`
	Passed        int           `json:"passed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	Duration      time.Duration `json:"duration_ns"`
	DurationHuman string        `json:"duration"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "report: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
