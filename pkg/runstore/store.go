package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileStore persists and loads RunRecords from an on-disk directory.
//
// Directory layout:
//
//	<root>/<run_id>.json
//
// Root is expected to be under the application's state directory.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at root. The directory is
// created lazily on first Write.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimSpace(root)}
}

// RootDir returns the store's root directory.
func (s *FileStore) RootDir() string {
	return s.root
}

// RecordPath returns the on-disk path for runID's JSON record.
func (s *FileStore) RecordPath(runID string) string {
	return filepath.Join(s.root, runID+".json")
}

func (s *FileStore) ensureRoot() error {
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("runstore: root dir is empty")
	}
	return os.MkdirAll(s.root, 0755)
}

// Write persists record to disk atomically: it writes to a temp file in
// the same directory and renames it into place, so a reader never
// observes a partially written record.
func (s *FileStore) Write(record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("runstore: record is nil")
	}
	runID := strings.TrimSpace(record.RunID)
	if runID == "" {
		return fmt.Errorf("runstore: run_id is required")
	}
	if err := s.ensureRoot(); err != nil {
		return err
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("runstore: marshal record: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(s.root, "run.json.tmp.*")
	if err != nil {
		return fmt.Errorf("runstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("runstore: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("runstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.RecordPath(runID)); err != nil {
		return fmt.Errorf("runstore: rename into place: %w", err)
	}
	return nil
}

// Get loads the record for runID from disk.
func (s *FileStore) Get(runID string) (*RunRecord, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, fmt.Errorf("runstore: run_id is required")
	}
	b, err := os.ReadFile(s.RecordPath(runID))
	if err != nil {
		return nil, err
	}

	var record RunRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, fmt.Errorf("runstore: parse %s.json: %w", runID, err)
	}
	return &record, nil
}

// List loads every record under root, most recently started first.
func (s *FileStore) List() ([]RunRecord, error) {
	if err := s.ensureRoot(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("runstore: read root: %w", err)
	}

	out := make([]RunRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		runID := strings.TrimSuffix(entry.Name(), ".json")
		r, err := s.Get(runID)
		if err != nil {
			continue
		}
		out = append(out, *r)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Delete removes the on-disk record for runID. A missing record is not an
// error: gc is idempotent.
func (s *FileStore) Delete(runID string) error {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("runstore: run_id is required")
	}
	if err := os.Remove(s.RecordPath(runID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("runstore: delete %s.json: %w", runID, err)
	}
	return nil
}
