package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// JSONStore keeps all run records in a single JSON file.
type JSONStore struct {
	mu       sync.RWMutex
	filepath string
	data     *storeData
}

type storeData struct {
	Runs        []RunRecord `json:"runs"`
	LastUpdated time.Time   `json:"last_updated"`
}

// NewJSONStore opens (or initializes) the store at the given path.
func NewJSONStore(filepath string) (*JSONStore, error) {
	s := &JSONStore{
		filepath: filepath,
		data:     &storeData{},
	}

	// Load existing data if file exists
	if _, err := os.Stat(filepath); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	}

	return s, nil
}

func (s *JSONStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, s.data)
}

// SaveRun appends the record and writes the file atomically.
func (s *JSONStore) SaveRun(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Runs = append(s.data.Runs, record)
	s.data.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling runs: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	return os.Rename(tmpFile, s.filepath)
}

// GetRuns returns a copy of all records, oldest first.
func (s *JSONStore) GetRuns() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunRecord, len(s.data.Runs))
	copy(out, s.data.Runs)
	return out
}

// GetRun looks a record up by id.
func (s *JSONStore) GetRun(id string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, run := range s.data.Runs {
		if run.ID == id {
			return run, nil
		}
	}
	return RunRecord{}, fmt.Errorf("run %q: %w", id, ErrRunNotFound)
}
