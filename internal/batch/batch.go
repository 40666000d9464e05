// Package batch runs the pipeline over many network files with failure
// handling, a circuit breaker and resumable state.
package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/pipeline"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrCircuitBroken = errors.New("batch: circuit breaker tripped")
	ErrNoNetworks    = errors.New("batch: no network files given")
)

// PipelineRunner abstracts the pipeline for batch use.
type PipelineRunner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error)
}

// StateStore persists batch state between runs.
type StateStore interface {
	Save(state State) error
	Load(id string) (State, bool, error)
	Remove(id string) error
}

// Callback receives batch lifecycle events for display.
type Callback interface {
	OnBatchStart(id string, paths []string)
	OnNetworkStart(path string)
	OnNetworkComplete(result NetworkResult)
	OnNetworkFail(path string, err error)
	OnBatchComplete(state State)
}

// Status represents the state of a batch.
type Status string

const (
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// NetworkStatus represents the state of one file within a batch.
type NetworkStatus string

const (
	NetworkPending   NetworkStatus = "pending"
	NetworkRunning   NetworkStatus = "running"
	NetworkCompleted NetworkStatus = "completed"
	NetworkFailed    NetworkStatus = "failed"
)

// Config holds batch settings.
type Config struct {
	FailureMode    string // "abort" | "continue"
	CircuitBreaker int    // Max consecutive failures before stopping; 0 disables.
	OutputDir      string // Each network writes under OutputDir/<name>.
}

// State holds the complete batch state for persistence.
type State struct {
	ID             string          `json:"id"`
	Networks       []NetworkResult `json:"networks"`
	CurrentIdx     int             `json:"current_idx"`
	ConsecFailures int             `json:"consecutive_failures"`
	StartedAt      time.Time       `json:"started_at"`
	Status         Status          `json:"status"`
}

// NetworkResult records the outcome of one file.
type NetworkResult struct {
	Path    string                `json:"path"`
	Name    string                `json:"name"`
	Status  NetworkStatus         `json:"status"`
	Steps   []pipeline.StepResult `json:"steps,omitempty"`
	Summary *network.Summary      `json:"summary,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Counts tallies results by status.
func (s State) Counts() (completed, failed, pending int) {
	for _, n := range s.Networks {
		switch n.Status {
		case NetworkCompleted:
			completed++
		case NetworkFailed:
			failed++
		default:
			pending++
		}
	}
	return completed, failed, pending
}

// Runner runs a batch sequentially with circuit breaking and state persistence.
type Runner struct {
	pipeline PipelineRunner
	store    StateStore
	config   Config
	callback Callback
}

// NewRunner creates a batch Runner with the given dependencies.
func NewRunner(p PipelineRunner, store StateStore, config Config, callback Callback) *Runner {
	return &Runner{
		pipeline: p,
		store:    store,
		config:   config,
		callback: callback,
	}
}

// NewID returns a fresh batch identifier.
func NewID() string {
	return uuid.NewString()
}

// Run processes paths under the batch id. An unfinished batch with the
// same id resumes after its last completed network.
func (r *Runner) Run(ctx context.Context, id string, paths []string) error {
	if len(paths) == 0 {
		return ErrNoNetworks
	}
	if id == "" {
		id = NewID()
	}

	state := r.initOrResumeState(id, paths)
	state.Status = Running
	r.callback.OnBatchStart(id, paths)

	for i := state.CurrentIdx; i < len(state.Networks); i++ {
		if err := ctx.Err(); err != nil {
			_ = r.store.Save(state)
			return err
		}
		item := &state.Networks[i]
		if item.Status == NetworkCompleted {
			continue
		}

		if r.config.CircuitBreaker > 0 && state.ConsecFailures >= r.config.CircuitBreaker {
			state.Status = Failed
			_ = r.store.Save(state)
			r.callback.OnBatchComplete(state)
			return ErrCircuitBroken
		}

		r.callback.OnNetworkStart(item.Path)
		item.Status = NetworkRunning

		out, err := r.pipeline.Run(ctx, pipeline.Input{
			Path:      item.Path,
			Name:      item.Name,
			OutputDir: filepath.Join(r.config.OutputDir, item.Name),
		})
		item.Steps = out.Steps
		if out.Summary.File != "" {
			summary := out.Summary
			item.Summary = &summary
		}

		if err != nil {
			item.Status = NetworkFailed
			item.Error = err.Error()
			state.ConsecFailures++
			r.callback.OnNetworkFail(item.Path, err)

			if r.config.FailureMode == "abort" {
				state.Status = Failed
				_ = r.store.Save(state)
				r.callback.OnBatchComplete(state)
				return fmt.Errorf("batch: %s failed: %w", item.Path, err)
			}
			state.CurrentIdx = i + 1
			_ = r.store.Save(state)
			continue
		}

		item.Status = NetworkCompleted
		item.Error = ""
		state.ConsecFailures = 0
		r.callback.OnNetworkComplete(*item)

		state.CurrentIdx = i + 1
		_ = r.store.Save(state)
	}

	state.Status = Completed
	_ = r.store.Save(state)
	r.callback.OnBatchComplete(state)
	return nil
}

// initOrResumeState loads existing state or creates a new one. A stored
// batch is only resumed when it covers the same files.
func (r *Runner) initOrResumeState(id string, paths []string) State {
	existing, found, err := r.store.Load(id)
	if err == nil && found && existing.Status != Completed && samePaths(existing, paths) {
		// Failed networks get another try.
		for i := range existing.Networks {
			if existing.Networks[i].Status != NetworkCompleted {
				existing.Networks[i].Status = NetworkPending
				if existing.CurrentIdx > i {
					existing.CurrentIdx = i
				}
			}
		}
		existing.ConsecFailures = 0
		return existing
	}

	names := uniqueNames(paths)
	networks := make([]NetworkResult, len(paths))
	for i, p := range paths {
		networks[i] = NetworkResult{Path: p, Name: names[i], Status: NetworkPending}
	}
	return State{
		ID:        id,
		Networks:  networks,
		StartedAt: time.Now(),
		Status:    Running,
	}
}

func samePaths(s State, paths []string) bool {
	if len(s.Networks) != len(paths) {
		return false
	}
	for i, n := range s.Networks {
		if n.Path != paths[i] {
			return false
		}
	}
	return true
}

// uniqueNames derives output names from file names, suffixing repeats.
func uniqueNames(paths []string) []string {
	used := make(map[string]bool, len(paths))
	next := make(map[string]int, len(paths))
	names := make([]string, len(paths))
	for i, p := range paths {
		base := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		name := base
		for n := max(next[base], 2); used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
			next[base] = n + 1
		}
		used[name] = true
		names[i] = name
	}
	return names
}
