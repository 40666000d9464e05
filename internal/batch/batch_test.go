package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/pipeline"
)

// --- Test doubles ---

// scriptedPipeline fails for paths listed in fail and records every input.
type scriptedPipeline struct {
	fail   map[string]bool
	inputs []pipeline.Input
}

func (p *scriptedPipeline) Run(_ context.Context, in pipeline.Input) (pipeline.Output, error) {
	p.inputs = append(p.inputs, in)
	out := pipeline.Output{
		Name:  in.Name,
		Steps: []pipeline.StepResult{{Name: "load", Status: pipeline.StepPassed}},
	}
	if p.fail[in.Path] {
		out.Steps[0].Status = pipeline.StepFailed
		return out, &pipeline.StepError{Step: "load", Err: fmt.Errorf("%s: %w", in.Path, network.ErrInvalidFormat)}
	}
	out.Summary = network.Summary{File: filepath.Base(in.Path), NodeCount: 3}
	return out, nil
}

type memStore struct {
	states map[string]State
	saves  int
}

func newMemStore() *memStore { return &memStore{states: map[string]State{}} }

func (m *memStore) Save(s State) error {
	m.saves++
	m.states[s.ID] = s
	return nil
}

func (m *memStore) Load(id string) (State, bool, error) {
	s, ok := m.states[id]
	return s, ok, nil
}

func (m *memStore) Remove(id string) error {
	delete(m.states, id)
	return nil
}

type recorder struct {
	events []string
	final  State
}

func (r *recorder) OnBatchStart(id string, paths []string) {
	r.events = append(r.events, fmt.Sprintf("start %s %d", id, len(paths)))
}
func (r *recorder) OnNetworkStart(path string) { r.events = append(r.events, "run "+path) }
func (r *recorder) OnNetworkComplete(res NetworkResult) {
	r.events = append(r.events, "ok "+res.Path)
}
func (r *recorder) OnNetworkFail(path string, err error) { r.events = append(r.events, "fail "+path) }
func (r *recorder) OnBatchComplete(s State) {
	r.events = append(r.events, "done "+string(s.Status))
	r.final = s
}

// --- Tests ---

func TestRun_AllSucceed(t *testing.T) {
	// Given three networks
	p := &scriptedPipeline{}
	store := newMemStore()
	cb := &recorder{}
	r := NewRunner(p, store, Config{FailureMode: "continue", OutputDir: "out"}, cb)

	// When the batch runs
	err := r.Run(context.Background(), "b1", []string{"a.inp", "dir/b.inp", "c.inp"})

	// Then every network completes with a summary
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	st := store.states["b1"]
	if st.Status != Completed {
		t.Errorf("Status = %q, want completed", st.Status)
	}
	if c, f, pend := st.Counts(); c != 3 || f != 0 || pend != 0 {
		t.Errorf("Counts() = %d/%d/%d, want 3/0/0", c, f, pend)
	}
	if st.Networks[1].Summary == nil || st.Networks[1].Summary.File != "b.inp" {
		t.Errorf("summary = %+v", st.Networks[1].Summary)
	}

	// And each network writes under its own output directory
	if got, want := p.inputs[1].OutputDir, filepath.Join("out", "b"); got != want {
		t.Errorf("OutputDir = %q, want %q", got, want)
	}

	want := []string{"start b1 3", "run a.inp", "ok a.inp", "run dir/b.inp", "ok dir/b.inp", "run c.inp", "ok c.inp", "done completed"}
	if !reflect.DeepEqual(cb.events, want) {
		t.Errorf("events = %v, want %v", cb.events, want)
	}
}

func TestRun_ContinueOnFailure(t *testing.T) {
	p := &scriptedPipeline{fail: map[string]bool{"b.inp": true}}
	store := newMemStore()
	r := NewRunner(p, store, Config{FailureMode: "continue"}, &recorder{})

	if err := r.Run(context.Background(), "b1", []string{"a.inp", "b.inp", "c.inp"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	st := store.states["b1"]
	if c, f, _ := st.Counts(); c != 2 || f != 1 {
		t.Errorf("Counts() = %d completed, %d failed; want 2, 1", c, f)
	}
	if st.Networks[1].Error == "" {
		t.Error("failed network has no error recorded")
	}
	if len(st.Networks[1].Steps) != 1 || st.Networks[1].Steps[0].Status != pipeline.StepFailed {
		t.Errorf("failed network steps = %+v", st.Networks[1].Steps)
	}
}

func TestRun_AbortOnFailure(t *testing.T) {
	p := &scriptedPipeline{fail: map[string]bool{"a.inp": true}}
	store := newMemStore()
	cb := &recorder{}
	r := NewRunner(p, store, Config{FailureMode: "abort"}, cb)

	err := r.Run(context.Background(), "b1", []string{"a.inp", "b.inp"})

	if !errors.Is(err, network.ErrInvalidFormat) {
		t.Fatalf("Run() error = %v, want wrapped ErrInvalidFormat", err)
	}
	if len(p.inputs) != 1 {
		t.Errorf("pipeline ran %d times, want 1", len(p.inputs))
	}
	if store.states["b1"].Status != Failed {
		t.Errorf("Status = %q, want failed", store.states["b1"].Status)
	}
	if cb.final.Status != Failed {
		t.Errorf("OnBatchComplete status = %q, want failed", cb.final.Status)
	}
}

func TestRun_CircuitBreaker(t *testing.T) {
	// Given two consecutive failures with a breaker of 2
	p := &scriptedPipeline{fail: map[string]bool{"a.inp": true, "b.inp": true}}
	store := newMemStore()
	r := NewRunner(p, store, Config{FailureMode: "continue", CircuitBreaker: 2}, &recorder{})

	// When the batch runs
	err := r.Run(context.Background(), "b1", []string{"a.inp", "b.inp", "c.inp"})

	// Then the third network never runs
	if !errors.Is(err, ErrCircuitBroken) {
		t.Fatalf("Run() error = %v, want ErrCircuitBroken", err)
	}
	if len(p.inputs) != 2 {
		t.Errorf("pipeline ran %d times, want 2", len(p.inputs))
	}
}

func TestRun_SuccessResetsBreaker(t *testing.T) {
	p := &scriptedPipeline{fail: map[string]bool{"a.inp": true, "c.inp": true}}
	r := NewRunner(p, newMemStore(), Config{FailureMode: "continue", CircuitBreaker: 2}, &recorder{})

	if err := r.Run(context.Background(), "b1", []string{"a.inp", "b.inp", "c.inp", "d.inp"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(p.inputs) != 4 {
		t.Errorf("pipeline ran %d times, want 4", len(p.inputs))
	}
}

func TestRun_Resume(t *testing.T) {
	// Given a stored batch where a completed and b failed
	store := newMemStore()
	store.states["b1"] = State{
		ID: "b1",
		Networks: []NetworkResult{
			{Path: "a.inp", Name: "a", Status: NetworkCompleted},
			{Path: "b.inp", Name: "b", Status: NetworkFailed, Error: "boom"},
			{Path: "c.inp", Name: "c", Status: NetworkPending},
		},
		CurrentIdx: 2,
		Status:     Failed,
	}
	p := &scriptedPipeline{}
	r := NewRunner(p, store, Config{}, &recorder{})

	// When the batch is run again with the same files
	if err := r.Run(context.Background(), "b1", []string{"a.inp", "b.inp", "c.inp"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// Then only b and c run
	var ran []string
	for _, in := range p.inputs {
		ran = append(ran, in.Path)
	}
	if !reflect.DeepEqual(ran, []string{"b.inp", "c.inp"}) {
		t.Errorf("ran %v, want [b.inp c.inp]", ran)
	}
	if st := store.states["b1"]; st.Status != Completed || st.Networks[1].Error != "" {
		t.Errorf("state = %+v", st)
	}
}

func TestRun_DifferentFilesStartFresh(t *testing.T) {
	store := newMemStore()
	store.states["b1"] = State{
		ID:         "b1",
		Networks:   []NetworkResult{{Path: "old.inp", Status: NetworkCompleted}},
		CurrentIdx: 1,
		Status:     Running,
	}
	p := &scriptedPipeline{}
	r := NewRunner(p, store, Config{}, &recorder{})

	if err := r.Run(context.Background(), "b1", []string{"new.inp"}); err != nil {
		t.Fatal(err)
	}
	if len(p.inputs) != 1 || p.inputs[0].Path != "new.inp" {
		t.Errorf("inputs = %+v", p.inputs)
	}
}

func TestRun_NoNetworks(t *testing.T) {
	r := NewRunner(&scriptedPipeline{}, newMemStore(), Config{}, &recorder{})
	if err := r.Run(context.Background(), "b1", nil); !errors.Is(err, ErrNoNetworks) {
		t.Errorf("Run() error = %v, want ErrNoNetworks", err)
	}
}

func TestRun_GeneratesID(t *testing.T) {
	store := newMemStore()
	r := NewRunner(&scriptedPipeline{}, store, Config{}, &recorder{})

	if err := r.Run(context.Background(), "", []string{"a.inp"}); err != nil {
		t.Fatal(err)
	}
	if len(store.states) != 1 {
		t.Fatalf("states = %d, want 1", len(store.states))
	}
	for id := range store.states {
		if len(id) != 36 {
			t.Errorf("generated id %q is not a UUID", id)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := newMemStore()
	r := NewRunner(&scriptedPipeline{}, store, Config{}, &recorder{})

	if err := r.Run(ctx, "b1", []string{"a.inp"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if store.states["b1"].Status != Running {
		t.Errorf("cancelled batch status = %q, want running (resumable)", store.states["b1"].Status)
	}
}

func TestUniqueNames(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  []string
	}{
		{"repeats get suffixes", []string{"x/net.inp", "y/net.inp", "z/other.INP"}, []string{"net", "net-2", "other"}},
		{"suffix collides with a file name", []string{"x/a.inp", "y/a.inp", "z/a-2.inp"}, []string{"a", "a-2", "a-2-2"}},
		{"file name matches an earlier suffix", []string{"z/a-2.inp", "x/a.inp", "y/a.inp"}, []string{"a-2", "a", "a-3"}},
		{"three repeats", []string{"a/n.inp", "b/n.inp", "c/n.inp"}, []string{"n", "n-2", "n-3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := uniqueNames(tt.paths)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("uniqueNames(%q) = %v, want %v", tt.paths, got, tt.want)
			}
			seen := make(map[string]bool, len(got))
			for _, n := range got {
				if seen[n] {
					t.Errorf("duplicate output name %q", n)
				}
				seen[n] = true
			}
		})
	}
}
