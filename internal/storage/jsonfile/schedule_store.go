// Package jsonfile persists small lists as whole JSON files. Every save
// rewrites the complete file, which keeps the on-disk shape trivially
// inspectable and editable.
package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zilezarach/torrentcli/internal/storage"
)

// ScheduleStore implements storage.ScheduleRepository on a JSON file.
// A mutex serializes access so the schedule loop and the status API never
// interleave partial reads with writes.
type ScheduleStore struct {
	path string
	mu   sync.Mutex
}

func NewScheduleStore(path string) *ScheduleStore {
	return &ScheduleStore{path: path}
}

func (s *ScheduleStore) GetScheduledSearches() ([]storage.ScheduledSearch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading schedule file: %w", err)
	}

	var searches []storage.ScheduledSearch
	if err := json.Unmarshal(data, &searches); err != nil {
		return nil, fmt.Errorf("parsing schedule file %s: %w", s.path, err)
	}

	return searches, nil
}

func (s *ScheduleStore) SaveScheduledSearches(searches []storage.ScheduledSearch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(searches, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding schedule: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing schedule file: %w", err)
	}

	return nil
}
