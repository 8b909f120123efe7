package runstore

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current history.db schema generation.
const SchemaVersion = 1

// Migrate creates (or upgrades) the history schema in-place.
//
// v1 is a minimal schema that supports:
//   - run identity + counters, queryable by recency ("runs list")
//   - one row per failure, indexed by run id ("runs show" reads the
//     JSON record from the file store instead)
func Migrate(ctx context.Context, db *sql.DB) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if db == nil {
		return fmt.Errorf("runstore: db is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runstore: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			schema_version INTEGER NOT NULL
		);`,
		`INSERT INTO schema_meta (id, schema_version)
			VALUES (1, 0)
			ON CONFLICT(id) DO NOTHING;`,

		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			build_dir TEXT,
			temp_dir TEXT,
			jobs INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`,

		`CREATE TABLE IF NOT EXISTS run_failures (
			run_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			reason_kind TEXT NOT NULL,
			detail TEXT,
			FOREIGN KEY(run_id) REFERENCES runs(run_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_run_failures_run_id ON run_failures(run_id);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("runstore: exec schema statement: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE schema_meta SET schema_version=? WHERE id=1`, SchemaVersion); err != nil {
		return fmt.Errorf("runstore: update schema_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("runstore: commit schema tx: %w", err)
	}
	return nil
}
