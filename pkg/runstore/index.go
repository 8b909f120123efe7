package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Index wraps the SQLite-backed history database, giving "runs list" and
// "runs gc" an indexed view without needing to open and parse every JSON
// record under the file store's root.
type Index struct {
	db *sql.DB
}

// NewIndex wraps an already-opened, already-migrated database handle.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// Insert records a completed run and its failures. It is called once, by
// the CLI, after the file store's Write has already persisted the durable
// JSON record.
func (x *Index) Insert(ctx context.Context, record RunRecord) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runstore: begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, ended_at, build_dir, temp_dir, jobs, passed, failed, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			ended_at=excluded.ended_at, passed=excluded.passed, failed=excluded.failed, skipped=excluded.skipped`,
		record.RunID, record.StartedAt.UTC().Format(time.RFC3339Nano), record.EndedAt.UTC().Format(time.RFC3339Nano),
		record.BuildDir, record.TempDir, record.Jobs, record.Passed, record.Failed, record.Skipped)
	if err != nil {
		return fmt.Errorf("runstore: insert run: %w", err)
	}

	for _, f := range record.Failures {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_failures (run_id, file_name, reason_kind, detail) VALUES (?, ?, ?, ?)`,
			record.RunID, f.FileName, f.ReasonKind, f.Detail); err != nil {
			return fmt.Errorf("runstore: insert failure: %w", err)
		}
	}

	return tx.Commit()
}

// Summary is the row shape "runs list" prints: enough to render a table
// without loading the full failure detail from the JSON record.
type Summary struct {
	RunID     string
	StartedAt time.Time
	EndedAt   time.Time
	Jobs      int
	Passed    int
	Failed    int
	Skipped   int
}

// List returns run summaries, most recently started first, capped at
// limit (0 means unlimited).
func (x *Index) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT run_id, started_at, ended_at, jobs, passed, failed, skipped FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("runstore: query runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			s                  Summary
			startedAt, endedAt string
		)
		if err := rows.Scan(&s.RunID, &startedAt, &endedAt, &s.Jobs, &s.Passed, &s.Failed, &s.Skipped); err != nil {
			return nil, fmt.Errorf("runstore: scan run row: %w", err)
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		s.EndedAt, _ = time.Parse(time.RFC3339Nano, endedAt)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runstore: iterate run rows: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes every run (and its failures) started before
// cutoff, returning the run ids it removed so the caller can delete the
// matching JSON records from the file store too.
func (x *Index) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT run_id FROM runs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("runstore: query stale runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("runstore: scan stale run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("runstore: iterate stale run ids: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("runstore: begin gc tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM run_failures WHERE run_id = ?`, id); err != nil {
			return nil, fmt.Errorf("runstore: delete failures for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id); err != nil {
			return nil, fmt.Errorf("runstore: delete run %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("runstore: commit gc tx: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database handle.
func (x *Index) Close() error {
	return x.db.Close()
}
