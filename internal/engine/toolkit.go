package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/inp"
	"github.com/smileynet/epaview/internal/outfile"
)

// defaultTimeout is used when no timeout option is provided.
const defaultTimeout = 2 * time.Minute

// ToolkitConfig parameterizes the solver command.
type ToolkitConfig struct {
	Name    string // engine name for logs/errors
	Binary  string // solver executable; empty disables simulation
	WorkDir string // parent of per-model scratch directories; empty uses os.TempDir
}

// Verify ToolkitEngine satisfies Engine at compile time.
var _ Engine = (*ToolkitEngine)(nil)

// ToolkitEngine reads topology from the input file itself and simulates by
// running the EPANET command-line solver as a subprocess:
//
//	<binary> <input.inp> <report.rpt> <results.out>
//
// Results are decoded from the binary output file.
type ToolkitEngine struct {
	config     ToolkitConfig
	timeout    time.Duration
	cmdBuilder func(ctx context.Context, inpPath, rptPath, outPath string) *exec.Cmd
}

// Option configures a ToolkitEngine.
type Option func(*ToolkitEngine)

// WithTimeout sets the simulation timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *ToolkitEngine) { e.timeout = d }
}

// NewToolkitEngine creates a ToolkitEngine from config and options.
func NewToolkitEngine(cfg ToolkitConfig, opts ...Option) *ToolkitEngine {
	e := &ToolkitEngine{
		config:  cfg,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cmdBuilder == nil {
		e.cmdBuilder = e.defaultCmdBuilder
	}
	return e
}

// Name returns the configured engine name.
func (e *ToolkitEngine) Name() string { return e.config.Name }

// Load parses the input file at path.
func (e *ToolkitEngine) Load(ctx context.Context, path string) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	net, err := inp.ReadFile(path)
	if err != nil {
		return nil, &EngineError{Engine: e.config.Name, Err: err}
	}
	m := &toolkitModel{
		engine: e,
		path:   path,
		net:    net,
		index:  make(map[string]int, len(net.Nodes)),
	}
	for i, n := range net.Nodes {
		m.index[n.ID] = i + 1
	}
	return m, nil
}

func (e *ToolkitEngine) defaultCmdBuilder(ctx context.Context, inpPath, rptPath, outPath string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, e.config.Binary, inpPath, rptPath, outPath)
	cmd.Dir = filepath.Dir(outPath)
	cmd.WaitDelay = time.Second
	return cmd
}

// Verify toolkitModel satisfies Model and Reporter at compile time.
var (
	_ Model    = (*toolkitModel)(nil)
	_ Reporter = (*toolkitModel)(nil)
)

type toolkitModel struct {
	engine  *ToolkitEngine
	path    string
	net     *inp.Network
	index   map[string]int
	scratch string
	rptPath string
}

func (m *toolkitModel) NodeCount() int { return len(m.net.Nodes) }
func (m *toolkitModel) LinkCount() int { return len(m.net.Links) }

func (m *toolkitModel) NodeIDs() []string {
	ids := make([]string, len(m.net.Nodes))
	for i, n := range m.net.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func (m *toolkitModel) LinkIDs() []string {
	ids := make([]string, len(m.net.Links))
	for i, l := range m.net.Links {
		ids[i] = l.ID
	}
	return ids
}

func (m *toolkitModel) NodeElevations() (map[string]float64, error) {
	out := make(map[string]float64, len(m.net.Nodes))
	for _, n := range m.net.Nodes {
		out[n.ID] = n.Elevation
	}
	return out, nil
}

func (m *toolkitModel) NodeCoordinates() (map[string]geom.Point, error) {
	out := make(map[string]geom.Point, len(m.net.Coordinates))
	for id, p := range m.net.Coordinates {
		out[id] = p
	}
	return out, nil
}

func (m *toolkitModel) LinkNodes(index int) (int, int, error) {
	if index < 1 || index > len(m.net.Links) {
		return 0, 0, fmt.Errorf("link %d: %w", index, ErrIndexOutOfRange)
	}
	l := m.net.Links[index-1]
	return m.index[l.From], m.index[l.To], nil
}

func (m *toolkitModel) Units() Units {
	return UnitsForFlow(m.net.Options.FlowUnits, m.net.Options.Quality)
}

// ComputeTimeSeries runs the solver and decodes every reporting period.
func (m *toolkitModel) ComputeTimeSeries(ctx context.Context) (*TimeSeries, error) {
	e := m.engine
	if e.config.Binary == "" {
		return nil, &EngineError{Engine: e.config.Name, Err: ErrNoSolver}
	}
	if err := m.ensureScratch(); err != nil {
		return nil, &EngineError{Engine: e.config.Name, Err: err}
	}

	rptPath := filepath.Join(m.scratch, "report.rpt")
	outPath := filepath.Join(m.scratch, "results.out")

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := e.cmdBuilder(ctx, m.path, rptPath, outPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &TimeoutError{Engine: e.config.Name, Duration: e.timeout}
		}
		return nil, &EngineError{
			Engine: e.config.Name,
			Err:    fmt.Errorf("%w: %s", err, stderr.String()),
		}
	}
	m.rptPath = rptPath

	res, err := outfile.Open(outPath)
	if err != nil {
		return nil, &EngineError{Engine: e.config.Name, Err: fmt.Errorf("reading results: %w", err)}
	}
	if res.Prolog.NodeCount != m.NodeCount() || res.Prolog.LinkCount != m.LinkCount() {
		return nil, &EngineError{
			Engine: e.config.Name,
			Err: fmt.Errorf("results describe %d nodes and %d links, network has %d and %d",
				res.Prolog.NodeCount, res.Prolog.LinkCount, m.NodeCount(), m.LinkCount()),
		}
	}
	if err := sameOrder("node", res.Prolog.NodeIDs, m.NodeIDs()); err != nil {
		return nil, &EngineError{Engine: e.config.Name, Err: err}
	}
	if err := sameOrder("link", res.Prolog.LinkIDs, m.LinkIDs()); err != nil {
		return nil, &EngineError{Engine: e.config.Name, Err: err}
	}
	return timeSeriesFromResults(res, m.net.Options.Quality), nil
}

// sameOrder reports the first position where the solver's ID order differs
// from the network's; results are indexed by that order.
func sameOrder(noun string, got, want []string) error {
	for i := range min(len(got), len(want)) {
		if got[i] != want[i] {
			return fmt.Errorf("results list %s %q at index %d, network has %q", noun, got[i], i+1, want[i])
		}
	}
	if len(got) != len(want) {
		return fmt.Errorf("results list %d %ss, network has %d", len(got), noun, len(want))
	}
	return nil
}

// Report copies the solver's status report from the last simulation to w.
func (m *toolkitModel) Report(w io.Writer) error {
	if m.rptPath == "" {
		return ErrNoReport
	}
	f, err := os.Open(m.rptPath)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// Close removes the scratch directory.
func (m *toolkitModel) Close() error {
	if m.scratch == "" {
		return nil
	}
	err := os.RemoveAll(m.scratch)
	m.scratch = ""
	m.rptPath = ""
	return err
}

func (m *toolkitModel) ensureScratch() error {
	if m.scratch != "" {
		return nil
	}
	dir, err := os.MkdirTemp(m.engine.config.WorkDir, "epaview-*")
	if err != nil {
		return err
	}
	m.scratch = dir
	return nil
}

func timeSeriesFromResults(res *outfile.Results, quality string) *TimeSeries {
	n := len(res.Periods)
	ts := &TimeSeries{
		Time:        res.Times(),
		Pressure:    make([][]float64, n),
		Head:        make([][]float64, n),
		Demand:      make([][]float64, n),
		Quality:     make([][]float64, n),
		Flow:        make([][]float64, n),
		Velocity:    make([][]float64, n),
		Headloss:    make([][]float64, n),
		LinkQuality: make([][]float64, n),
		Units: Units{
			Flow:     res.Prolog.FlowUnitsName(),
			Pressure: res.Prolog.PressureUnitsName(),
			Velocity: res.Prolog.VelocityUnitsName(),
			Quality:  quality,
		},
	}
	if res.Prolog.ChemicalUnits != "" {
		ts.Units.Quality = res.Prolog.ChemicalUnits
	}
	for i, p := range res.Periods {
		ts.Pressure[i] = widen(p.Pressure)
		ts.Head[i] = widen(p.Head)
		ts.Demand[i] = widen(p.Demand)
		ts.Quality[i] = widen(p.Quality)
		ts.Flow[i] = widen(p.Flow)
		ts.Velocity[i] = widen(p.Velocity)
		ts.Headloss[i] = widen(p.Headloss)
		ts.LinkQuality[i] = widen(p.LinkQuality)
	}
	return ts
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
