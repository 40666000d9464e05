// Package engine abstracts the hydraulic solver behind a common interface.
// A network is loaded into a Model; the model answers topology queries and
// runs the extended-period simulation that produces a TimeSeries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smileynet/epaview/internal/geom"
)

// Engine loads network files into models.
type Engine interface {
	Name() string
	Load(ctx context.Context, path string) (Model, error)
}

// Model is one loaded network. Node and link indices are 1-based and follow
// the engine's ordering. A Model is not safe for concurrent use.
type Model interface {
	NodeCount() int
	LinkCount() int
	NodeIDs() []string
	LinkIDs() []string
	NodeElevations() (map[string]float64, error)
	NodeCoordinates() (map[string]geom.Point, error)
	LinkNodes(index int) (from, to int, err error)
	Units() Units
	ComputeTimeSeries(ctx context.Context) (*TimeSeries, error)
	Close() error
}

// Reporter is implemented by models that can write the engine's own
// status report for the last simulation.
type Reporter interface {
	Report(w io.Writer) error
}

// Units names the measurement units of a model's results.
type Units struct {
	Flow     string `json:"flow"`
	Pressure string `json:"pressure"`
	Velocity string `json:"velocity"`
	Quality  string `json:"quality"`
}

// UnitsForFlow derives pressure and velocity units from a flow unit code
// name. US flow units report psi and ft/s; SI flow units report meters and m/s.
func UnitsForFlow(flow, quality string) Units {
	flow = strings.ToUpper(flow)
	switch flow {
	case "LPS", "LPM", "MLD", "CMH", "CMD":
		return Units{Flow: flow, Pressure: "m", Velocity: "m/s", Quality: quality}
	default:
		return Units{Flow: flow, Pressure: "psi", Velocity: "ft/s", Quality: quality}
	}
}

var (
	// ErrNoSolver is returned by models whose engine cannot simulate.
	ErrNoSolver = errors.New("engine has no solver configured")

	// ErrNoReport is returned by Reporter when no simulation has run yet.
	ErrNoReport = errors.New("no report available before simulation")

	// ErrIndexOutOfRange is returned for node or link indices outside 1..count.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// EngineError wraps an error from a specific engine.
type EngineError struct {
	Engine string
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine: %s: %s", e.Engine, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates a simulation exceeded its time limit.
type TimeoutError struct {
	Engine   string
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("engine: %s: timed out after %s", e.Engine, e.Duration)
}
