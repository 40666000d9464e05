package pipeline

import "time"

// StepKind selects what a step does.
type StepKind int

const (
	Load     StepKind = iota // Load reads the network file.
	Simulate                 // Simulate runs the hydraulic and quality solver.
	Plot                     // Plot writes figures to the output directory.
	Report                   // Report renders the markdown summary.
	Save                     // Save persists the summary record.
)

func (k StepKind) String() string {
	switch k {
	case Load:
		return "load"
	case Simulate:
		return "simulate"
	case Plot:
		return "plot"
	case Report:
		return "report"
	case Save:
		return "save"
	default:
		return "unknown"
	}
}

// parseKind is the inverse of StepKind.String.
func parseKind(s string) (StepKind, bool) {
	for k := Load; k <= Save; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

// Figures a plot step can produce. The series-* figures and the
// result-coloured attribute figures need a simulation and are skipped
// without one.
const (
	FigureNetwork        = "network"
	FigureElevation      = "elevation"
	FigurePressure       = "pressure"
	FigureFlow           = "flow"
	FigureQuality        = "quality"
	FigureSeriesPressure = "series-pressure"
	FigureSeriesFlow     = "series-flow"
	FigureSeriesVelocity = "series-velocity"
	FigureSeriesQuality  = "series-quality"
)

var knownFigures = map[string]bool{
	FigureNetwork:        true,
	FigureElevation:      true,
	FigurePressure:       true,
	FigureFlow:           true,
	FigureQuality:        true,
	FigureSeriesPressure: true,
	FigureSeriesFlow:     true,
	FigureSeriesVelocity: true,
	FigureSeriesQuality:  true,
}

// needsResults reports whether a figure can only be drawn after a simulation.
func needsResults(figure string) bool {
	switch figure {
	case FigureNetwork, FigureElevation:
		return false
	}
	return true
}

// StepDefinition describes a single pipeline step.
type StepDefinition struct {
	Name     string   // Step name shown in progress output.
	Kind     StepKind // What the step does.
	Optional bool     // If true, a failure is recorded as skipped and the run continues.
	Figures  []string // Plot steps only; empty means DefaultFigures.
	Timeout  time.Duration
}

// DefaultFigures is drawn by plot steps that name no figures.
func DefaultFigures() []string {
	return []string{FigureNetwork, FigureElevation, FigureSeriesPressure}
}

// StepStatus is the state of a step execution.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StatusUpdate carries progress for one step.
type StatusUpdate struct {
	Network  string        // Network name being processed.
	Step     string        // Current step name.
	Status   StepStatus    // Current step status.
	Progress string        // Human-readable progress (e.g. "2/5").
	Duration time.Duration // Set once the step finishes.
	Detail   string        // Short outcome note, e.g. files written.
}

// StatusCallback receives step progress updates.
type StatusCallback func(StatusUpdate)

// StepResult records the outcome of one step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Duration time.Duration `json:"duration"`
	Detail   string        `json:"detail,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// DefaultSteps returns the full pipeline in execution order.
func DefaultSteps() []StepDefinition {
	return []StepDefinition{
		{Name: "load", Kind: Load},
		{Name: "simulate", Kind: Simulate},
		{Name: "plot", Kind: Plot, Figures: []string{
			FigureNetwork, FigureElevation, FigurePressure, FigureFlow,
			FigureSeriesPressure, FigureSeriesFlow,
		}},
		{Name: "report", Kind: Report},
		{Name: "save", Kind: Save},
	}
}

// MinimalSteps loads and simulates without writing anything.
func MinimalSteps() []StepDefinition {
	return []StepDefinition{
		{Name: "load", Kind: Load},
		{Name: "simulate", Kind: Simulate},
	}
}

// TopologySteps skips the solver, for engines without one.
func TopologySteps() []StepDefinition {
	return []StepDefinition{
		{Name: "load", Kind: Load},
		{Name: "plot", Kind: Plot, Figures: []string{FigureNetwork, FigureElevation}},
		{Name: "report", Kind: Report},
	}
}

// PresetSteps returns steps for a named preset ("default", "minimal",
// "topology"). Returns nil if the preset name is not recognized.
func PresetSteps(name string) []StepDefinition {
	switch name {
	case "default", "":
		return DefaultSteps()
	case "minimal":
		return MinimalSteps()
	case "topology":
		return TopologySteps()
	default:
		return nil
	}
}

// StepNames lists step names in order, for display initialisation.
func StepNames(steps []StepDefinition) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
