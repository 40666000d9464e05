package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/pipeline"
)

// Compile-time check: SummaryFileStore satisfies pipeline.SummaryStore.
var _ pipeline.SummaryStore = (*SummaryFileStore)(nil)

// SummaryFileStore persists network summaries as JSON files under a base directory.
type SummaryFileStore struct {
	baseDir string
}

// NewSummaryFileStore creates a SummaryFileStore that saves under baseDir.
func NewSummaryFileStore(baseDir string) *SummaryFileStore {
	return &SummaryFileStore{baseDir: baseDir}
}

// SaveSummary writes the summary to <name>.json, replacing any earlier one.
func (s *SummaryFileStore) SaveSummary(name string, sum network.Summary) error {
	p, err := jsonPath(s.baseDir, name)
	if err != nil {
		return err
	}
	return writeJSON(s.baseDir, p, sum)
}

// LoadSummary reads the summary saved under name.
// Returns (summary, true, nil) if found, (zero, false, nil) if not found.
func (s *SummaryFileStore) LoadSummary(name string) (network.Summary, bool, error) {
	p, err := jsonPath(s.baseDir, name)
	if err != nil {
		return network.Summary{}, false, err
	}
	var sum network.Summary
	found, err := readJSON(p, &sum)
	if err != nil || !found {
		return network.Summary{}, false, err
	}
	return sum, true, nil
}

// ListSummaries returns the saved summary names in sorted order. A missing
// directory lists nothing.
func (s *SummaryFileStore) ListSummaries() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: listing %s: %w", s.baseDir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}
