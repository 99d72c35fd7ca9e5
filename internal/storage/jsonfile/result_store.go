package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zilezarach/torrentcli/internal/zil"
)

// ResultStore keeps the last search's results on disk so a follow-up
// acquire-by-index can reference them across processes.
type ResultStore struct {
	path string
	mu   sync.Mutex
}

func NewResultStore(path string) *ResultStore {
	return &ResultStore{path: path}
}

func (s *ResultStore) SaveResults(results []zil.SearchResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}

	return nil
}

func (s *ResultStore) GetResults() ([]zil.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading results file: %w", err)
	}

	var results []zil.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parsing results file %s: %w", s.path, err)
	}

	return results, nil
}

// ResultAt returns the 1-based nth result from the saved list.
func (s *ResultStore) ResultAt(index int) (*zil.SearchResult, error) {
	results, err := s.GetResults()
	if err != nil {
		return nil, err
	}

	if index < 1 || index > len(results) {
		return nil, fmt.Errorf("result index %d out of range, have %d saved results", index, len(results))
	}

	res := results[index-1]

	return &res, nil
}
