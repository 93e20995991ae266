package statestore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const jsonlPattern = "snapshots-*.jsonl"

// JSONLStore appends snapshots as JSON lines to daily rotated files.
type JSONLStore struct {
	seq         *sequencer
	now         func() time.Time
	currentFile *os.File
	dir         string
	currentDate string
	mu          sync.Mutex
}

// NewJSONLStore opens (or creates) dir. Existing files seed the timestamp floor.
func NewJSONLStore(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	s := &JSONLStore{
		seq: newSequencer(time.Now),
		now: time.Now,
		dir: dir,
	}

	existing, err := s.readAll("")
	if err != nil {
		return nil, err
	}
	for i := range existing {
		s.seq.seed(existing[i].Timestamp)
	}
	return s, nil
}

// Append writes one line and syncs it to disk.
func (s *JSONLStore) Append(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context errors pass through
	}
	if err := validate(&snap); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeeded(); err != nil {
		return fmt.Errorf("failed to rotate snapshot file: %w", err)
	}
	s.seq.stamp(&snap)

	line, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.currentFile.Write(line); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := s.currentFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync snapshot file: %w", err)
	}
	return nil
}

func (s *JSONLStore) rotateIfNeeded() error {
	newDate := s.now().UTC().Format("2006-01-02")
	if s.currentFile != nil && s.currentDate == newDate {
		return nil
	}
	if s.currentFile != nil {
		if err := s.currentFile.Close(); err != nil {
			return fmt.Errorf("failed to close current snapshot file: %w", err)
		}
		s.currentFile = nil
	}

	path := filepath.Join(s.dir, fmt.Sprintf("snapshots-%s.jsonl", newDate))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file %s: %w", path, err)
	}
	s.currentFile = file
	s.currentDate = newDate
	return nil
}

// List reads every file in date order.
func (s *JSONLStore) List(ctx context.Context, workflowID string) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // context errors pass through
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll(workflowID)
}

func (s *JSONLStore) readAll(workflowID string) ([]Snapshot, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, jsonlPattern))
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot files: %w", err)
	}
	sort.Strings(files)

	var out []Snapshot
	for _, path := range files {
		snaps, err := readFile(path)
		if err != nil {
			return nil, err
		}
		for i := range snaps {
			if workflowID == "" || snaps[i].WorkflowID == workflowID {
				out = append(out, snaps[i])
			}
		}
	}
	return out, nil
}

func readFile(path string) ([]Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	var out []Snapshot
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64<<10), 16<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(scanner.Bytes(), &snap); err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", filepath.Base(path), lineNo, err)
		}
		out = append(out, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return out, nil
}

// Close closes the current file.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentFile == nil {
		return nil
	}
	err := s.currentFile.Close()
	s.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close snapshot file: %w", err)
	}
	return nil
}
