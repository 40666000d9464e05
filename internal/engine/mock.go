package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/smileynet/epaview/internal/geom"
)

// Verify the mocks satisfy their interfaces at compile time.
var (
	_ Engine   = (*MockEngine)(nil)
	_ Model    = (*MockModel)(nil)
	_ Reporter = (*MockReportingModel)(nil)
)

// MockEngine is a test double for Engine.
type MockEngine struct {
	NameVal  string
	LoadFunc func(ctx context.Context, path string) (Model, error)
}

// Name returns the configured engine name.
func (m *MockEngine) Name() string { return m.NameVal }

// Load delegates to LoadFunc, returning an empty MockModel if LoadFunc is nil.
func (m *MockEngine) Load(ctx context.Context, path string) (Model, error) {
	if m.LoadFunc == nil {
		return &MockModel{}, nil
	}
	return m.LoadFunc(ctx, path)
}

// MockModel is a data-driven test double for Model. Links holds
// 1-based [from, to] node indices in link order.
type MockModel struct {
	Nodes       []string
	LinkIDList  []string
	Links       [][2]int
	Elevations  map[string]float64
	Coordinates map[string]geom.Point
	UnitsVal    Units

	ElevationsErr  error
	CoordinatesErr error
	ComputeFunc    func(ctx context.Context) (*TimeSeries, error)

	Closed int
}

func (m *MockModel) NodeCount() int { return len(m.Nodes) }
func (m *MockModel) LinkCount() int { return len(m.LinkIDList) }

func (m *MockModel) NodeIDs() []string { return append([]string(nil), m.Nodes...) }
func (m *MockModel) LinkIDs() []string { return append([]string(nil), m.LinkIDList...) }

func (m *MockModel) NodeElevations() (map[string]float64, error) {
	if m.ElevationsErr != nil {
		return nil, m.ElevationsErr
	}
	out := make(map[string]float64, len(m.Elevations))
	for k, v := range m.Elevations {
		out[k] = v
	}
	return out, nil
}

func (m *MockModel) NodeCoordinates() (map[string]geom.Point, error) {
	if m.CoordinatesErr != nil {
		return nil, m.CoordinatesErr
	}
	out := make(map[string]geom.Point, len(m.Coordinates))
	for k, v := range m.Coordinates {
		out[k] = v
	}
	return out, nil
}

func (m *MockModel) LinkNodes(index int) (int, int, error) {
	if index < 1 || index > len(m.Links) {
		return 0, 0, fmt.Errorf("link %d: %w", index, ErrIndexOutOfRange)
	}
	l := m.Links[index-1]
	return l[0], l[1], nil
}

func (m *MockModel) Units() Units { return m.UnitsVal }

// ComputeTimeSeries delegates to ComputeFunc, failing with ErrNoSolver if it is nil.
func (m *MockModel) ComputeTimeSeries(ctx context.Context) (*TimeSeries, error) {
	if m.ComputeFunc == nil {
		return nil, &EngineError{Engine: "mock", Err: ErrNoSolver}
	}
	return m.ComputeFunc(ctx)
}

// Close counts calls so tests can assert a model was released.
func (m *MockModel) Close() error {
	m.Closed++
	return nil
}

// MockReportingModel is a MockModel that also implements Reporter.
type MockReportingModel struct {
	MockModel
	ReportFunc func(w io.Writer) error
}

// Report delegates to ReportFunc, failing with ErrNoReport if it is nil.
func (m *MockReportingModel) Report(w io.Writer) error {
	if m.ReportFunc == nil {
		return ErrNoReport
	}
	return m.ReportFunc(w)
}

// SampleModel returns a three-node network: reservoir R1 feeding J1 through
// P1, and J1 feeding J2 through P2. Its solver yields SampleSeries.
func SampleModel() *MockModel {
	return &MockModel{
		Nodes:      []string{"J1", "J2", "R1"},
		LinkIDList: []string{"P1", "P2"},
		Links:      [][2]int{{3, 1}, {1, 2}},
		Elevations: map[string]float64{"J1": 50, "J2": 40, "R1": 100},
		Coordinates: map[string]geom.Point{
			"J1": {X: 10, Y: 0},
			"J2": {X: 20, Y: 0},
			"R1": {X: 0, Y: 0},
		},
		UnitsVal: Units{Flow: "GPM", Pressure: "psi", Velocity: "ft/s", Quality: "NONE"},
		ComputeFunc: func(ctx context.Context) (*TimeSeries, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return SampleSeries(), nil
		},
	}
}

// SampleSeries returns three hourly periods of results for SampleModel.
func SampleSeries() *TimeSeries {
	return &TimeSeries{
		Time:        []float64{0, 3600, 7200},
		Pressure:    [][]float64{{40, 30, 0}, {42, 32, 0}, {44, 34, 0}},
		Head:        [][]float64{{90, 70, 100}, {92, 72, 100}, {94, 74, 100}},
		Demand:      [][]float64{{5, 5, -10}, {6, 6, -12}, {7, 7, -14}},
		Quality:     [][]float64{{0, 0, 0}, {1, 1, 0}, {2, 2, 0}},
		Flow:        [][]float64{{10, 5}, {12, 6}, {14, 7}},
		Velocity:    [][]float64{{1, 0.5}, {1.2, 0.6}, {1.4, 0.7}},
		Headloss:    [][]float64{{2, 1}, {2, 1}, {2, 1}},
		LinkQuality: [][]float64{{0, 0}, {1, 1}, {2, 2}},
		Units:       Units{Flow: "GPM", Pressure: "psi", Velocity: "ft/s", Quality: "mg/L"},
	}
}

// SampleEngine returns a MockEngine handing out a fresh SampleModel per load.
func SampleEngine() *MockEngine {
	return &MockEngine{
		NameVal: "mock",
		LoadFunc: func(ctx context.Context, path string) (Model, error) {
			return SampleModel(), nil
		},
	}
}
