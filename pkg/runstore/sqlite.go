package runstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "modernc.org/sqlite"
)

const sqliteDriverName = "jakttest-history-sqlite"

func init() {
	sql.Register(sqliteDriverName, &sqlite.Driver{})
}

// OpenHistoryDB opens (and migrates) the SQLite-backed history database at
// path, creating its parent directory if necessary. It is pure Go
// (modernc.org/sqlite, no cgo): the history store never needs a remote or
// multi-tenant database, only the one local file it persists, so this is
// the only driver jakttest links against.
func OpenHistoryDB(ctx context.Context, path string) (*sql.DB, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("runstore: history db path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0755); err != nil {
			return nil, fmt.Errorf("runstore: create history db dir: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriverName, "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open history db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("runstore: ping history db: %w", err)
	}

	if err := configureLocalSQLite(ctx, db, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func configureLocalSQLite(ctx context.Context, db *sql.DB, path string) error {
	if path == ":memory:" {
		return nil
	}

	// Keep a single connection and use WAL to reduce lock contention between
	// a "runs list" invocation and a concurrent "jakttest run".
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		return fmt.Errorf("runstore: enable WAL mode: %w", err)
	}
	var busyTimeout int
	if err := db.QueryRowContext(ctx, "PRAGMA busy_timeout=5000").Scan(&busyTimeout); err != nil {
		return fmt.Errorf("runstore: set busy timeout: %w", err)
	}
	return nil
}
