// Package runstore persists the outcome of a jakttest run so a later
// invocation of "jakttest runs list/show/gc" can inspect history without
// re-running anything. It is a pure side effect layered on top of the
// scheduler's classification: nothing here influences pass/fail counting.
//
// Each run is written twice: once as a self-contained JSON file under
// <state-dir>/runs/<run_id>.json (the durable record, atomically written),
// and once as a row (plus one row per failure) in an indexed SQLite
// database at <state-dir>/history.db, so "runs list" and "runs gc" don't
// need to open and parse every JSON file in the directory.
package runstore

import "time"

// FailureEntry is one failed test's contribution to a RunRecord.
type FailureEntry struct {
	FileName   string `json:"file_name"`
	ReasonKind string `json:"reason_kind"`
	Detail     string `json:"detail,omitempty"`
}

// RunRecord is the persistent summary of one invocation of the test
// runner, independent of pass/fail classification itself.
//
// The schema is designed for backward-compatible extension (additive
// fields): old records stay readable as new fields appear.
type RunRecord struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	BuildDir string `json:"build_dir,omitempty"`
	TempDir  string `json:"temp_dir,omitempty"`

	Jobs    int `json:"jobs"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`

	Failures []FailureEntry `json:"failures,omitempty"`
}

// Duration is a convenience accessor; EndedAt is assumed to be zero only
// for a record still being assembled (never true for a persisted record).
func (r RunRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
