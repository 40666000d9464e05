// Package state persists batch state and network summaries as JSON files.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/smileynet/epaview/internal/batch"
)

// Compile-time check: FileStore satisfies batch.StateStore.
var _ batch.StateStore = (*FileStore)(nil)

// FileStore persists batch state as JSON files under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore that saves state under baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Save writes the batch state to a JSON file named by the batch ID.
func (s *FileStore) Save(st batch.State) error {
	p, err := jsonPath(s.baseDir, st.ID)
	if err != nil {
		return err
	}
	return writeJSON(s.baseDir, p, st)
}

// Load reads batch state for the given ID.
// Returns (state, true, nil) if found, (zero, false, nil) if not found.
func (s *FileStore) Load(id string) (batch.State, bool, error) {
	p, err := jsonPath(s.baseDir, id)
	if err != nil {
		return batch.State{}, false, err
	}
	var st batch.State
	found, err := readJSON(p, &st)
	if err != nil || !found {
		return batch.State{}, false, err
	}
	return st, true, nil
}

// Remove deletes the state file for the given ID.
func (s *FileStore) Remove(id string) error {
	p, err := jsonPath(s.baseDir, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: removing %s: %w", p, err)
	}
	return nil
}

// ErrInvalidID indicates an ID is empty or contains path traversal components.
var ErrInvalidID = errors.New("state: invalid ID")

// jsonPath returns the filesystem path for an ID's JSON file.
// It rejects IDs that are empty, dot-segments, or contain path separators.
func jsonPath(baseDir, id string) (string, error) {
	if id == "" || id == "." || id == ".." || id != filepath.Base(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(baseDir, id+".json"), nil
}

func writeJSON(dir, p string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: creating directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshaling: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("state: writing %s: %w", p, err)
	}
	return nil
}

func readJSON(p string, v any) (bool, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("state: reading %s: %w", p, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("state: parsing %s: %w", p, err)
	}
	return true, nil
}
