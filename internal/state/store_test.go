package state

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/smileynet/epaview/internal/batch"
	"github.com/smileynet/epaview/internal/pipeline"
)

func TestFileStore_SaveAndLoad(t *testing.T) {
	// Given a state to persist
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "batches"))

	st := batch.State{
		ID: "nightly",
		Networks: []batch.NetworkResult{
			{Path: "a.inp", Name: "a", Status: batch.NetworkCompleted, Steps: []pipeline.StepResult{
				{Name: "load", Status: pipeline.StepPassed, Duration: time.Second},
			}},
			{Path: "b.inp", Name: "b", Status: batch.NetworkPending},
		},
		CurrentIdx: 1,
		StartedAt:  time.Now().Truncate(time.Second),
		Status:     batch.Running,
	}

	// When Save is called
	if err := store.Save(st); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Then Load returns the same state
	loaded, found, err := store.Load("nightly")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() found = false, want true")
	}
	if loaded.CurrentIdx != 1 {
		t.Errorf("CurrentIdx = %d, want 1", loaded.CurrentIdx)
	}
	if len(loaded.Networks) != 2 {
		t.Fatalf("Networks len = %d, want 2", len(loaded.Networks))
	}
	if got := loaded.Networks[0].Steps[0].Duration; got != time.Second {
		t.Errorf("step duration = %v, want 1s", got)
	}
	if loaded.Status != batch.Running {
		t.Errorf("Status = %q, want %q", loaded.Status, batch.Running)
	}
	if !loaded.StartedAt.Equal(st.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", loaded.StartedAt, st.StartedAt)
	}
}

func TestFileStore_LoadNotFound(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, found, err := store.Load("nonexistent")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found = true, want false")
	}
}

func TestFileStore_Remove(t *testing.T) {
	// Given a saved state
	store := NewFileStore(t.TempDir())
	if err := store.Save(batch.State{ID: "x", Status: batch.Running}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// When Remove is called
	if err := store.Remove("x"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	// Then Load returns not found
	if _, found, _ := store.Load("x"); found {
		t.Error("Load() found = true after Remove, want false")
	}

	// And a second Remove is a no-op
	if err := store.Remove("x"); err != nil {
		t.Errorf("Remove(missing) error = %v, want nil", err)
	}
}

func TestFileStore_PathTraversal(t *testing.T) {
	store := NewFileStore(t.TempDir())

	tests := []struct {
		name string
		id   string
	}{
		{name: "parent traversal", id: "../../etc/passwd"},
		{name: "slash in id", id: "foo/bar"},
		{name: "empty id", id: ""},
		{name: "dot dot", id: ".."},
		{name: "current dir", id: "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Save(batch.State{ID: tt.id}); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Save(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
			if _, _, err := store.Load(tt.id); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Load(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
			if err := store.Remove(tt.id); !errors.Is(err, ErrInvalidID) {
				t.Errorf("Remove(%q) error = %v, want ErrInvalidID", tt.id, err)
			}
		})
	}
}

func TestFileStore_ValidIDs(t *testing.T) {
	store := NewFileStore(t.TempDir())

	// UUIDs and dotted names are both accepted
	for _, id := range []string{"2f1c6c8e-3c0b-4b43-9a59-7d6f0f7e2d11", "net1.v2", "nightly"} {
		t.Run(id, func(t *testing.T) {
			if err := store.Save(batch.State{ID: id}); err != nil {
				t.Errorf("Save(%q) error = %v, want nil", id, err)
			}
		})
	}
}
