// Package history persists the list of recently updated instance
// paths and a record of past update runs. It is an explicit store with
// a load/save lifecycle, injected into the command layer; nothing in
// the reconciliation engine depends on it.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minecraftwithtwink/modpack-updater/pkg/updater/types"
)

// DefaultMaxInstances caps the recent-instances list.
const DefaultMaxInstances = 10

// instancesFile is the filename of the recent-paths list inside the
// store directory.
const instancesFile = "instances.json"

// RunRecord summarizes one completed update run.
type RunRecord struct {
	// ID is the execution run ID.
	ID string `json:"id"`

	// Timestamp is when the run finished, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// InstancePath is the instance that was updated.
	InstancePath string `json:"instance_path"`

	// Branch is the upstream branch the snapshot came from.
	Branch string `json:"branch,omitempty"`

	// Status is the aggregate run outcome.
	Status string `json:"status"`

	// Applied, Skipped and Failed are operation counts by outcome.
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Store manages history persistence under a single directory.
type Store struct {
	dir string
	max int
	mu  sync.Mutex
}

// New creates a Store rooted at dir. The directory is created lazily
// on first write. max bounds the recent-instances list; zero or
// negative means DefaultMaxInstances.
func New(dir string, max int) (*Store, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	if max <= 0 {
		max = DefaultMaxInstances
	}
	return &Store{dir: dir, max: max}, nil
}

// Instances returns the recent instance paths, most recent first.
// Paths that no longer exist as directories are filtered out, so a
// deleted instance silently drops off the list.
func (s *Store) Instances() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, instancesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read instance history: %w", err)
	}

	var paths []string
	if err := json.Unmarshal(data, &paths); err != nil {
		return nil, fmt.Errorf("failed to parse instance history: %w", err)
	}

	valid := make([]string, 0, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			valid = append(valid, p)
		}
	}
	return valid, nil
}

// Touch records an instance path as most recently used, deduplicating
// and trimming the list to the configured maximum.
func (s *Store) Touch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve instance path: %w", err)
	}

	current, err := s.Instances()
	if err != nil {
		return err
	}

	updated := []string{abs}
	for _, p := range current {
		if p != abs {
			updated = append(updated, p)
		}
	}
	if len(updated) > s.max {
		updated = updated[:s.max]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(filepath.Join(s.dir, instancesFile), updated)
}

// LogRun persists a record of a finished execution.
func (s *Store) LogRun(instancePath, branch string, res *types.ExecutionResult) (*RunRecord, error) {
	rec := &RunRecord{
		ID:           res.RunID,
		Timestamp:    time.Now().UTC(),
		InstancePath: instancePath,
		Branch:       branch,
		Status:       res.Status.String(),
		Applied:      res.Applied,
		Skipped:      res.Skipped,
		Failed:       res.Failed,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("run-%s-%s.json", rec.Timestamp.Format("2006-01-02T15-04-05"), rec.ID)
	if err := s.writeJSON(filepath.Join(s.dir, name), rec); err != nil {
		return nil, fmt.Errorf("failed to write run record: %w", err)
	}
	return rec, nil
}

// Runs returns past run records, newest first. If limit is positive
// only that many are returned.
func (s *Store) Runs(limit int) ([]RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	files, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunRecord{}, nil
		}
		return nil, fmt.Errorf("failed to read history directory: %w", err)
	}

	records := make([]RunRecord, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasPrefix(f.Name(), "run-") || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, f.Name()))
		if err != nil {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			// Unparseable records are skipped, not fatal.
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// writeJSON writes a value to path atomically via temp file + rename.
func (s *Store) writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
