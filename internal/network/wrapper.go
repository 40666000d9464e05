// Package network is the shared core of every front end. A Wrapper loads
// one network through an engine, caches its statistics and simulation
// results, and answers the attribute, plotting and hit-test queries the
// front ends make.
package network

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smileynet/epaview/internal/engine"
	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
	"github.com/smileynet/epaview/internal/render"
)

// Statistics describes the loaded network.
type Statistics struct {
	NodeCount       int                   `json:"node_count"`
	LinkCount       int                   `json:"link_count"`
	NodeIDs         []string              `json:"node_names"`
	LinkIDs         []string              `json:"link_names"`
	NodeElevations  map[string]float64    `json:"node_elevations"`
	NodeCoordinates map[string]geom.Point `json:"node_coordinates"`
}

func (s Statistics) clone() Statistics {
	out := Statistics{
		NodeCount: s.NodeCount,
		LinkCount: s.LinkCount,
		NodeIDs:   append([]string(nil), s.NodeIDs...),
		LinkIDs:   append([]string(nil), s.LinkIDs...),
	}
	if s.NodeElevations != nil {
		out.NodeElevations = make(map[string]float64, len(s.NodeElevations))
		for k, v := range s.NodeElevations {
			out.NodeElevations[k] = v
		}
	}
	if s.NodeCoordinates != nil {
		out.NodeCoordinates = make(map[string]geom.Point, len(s.NodeCoordinates))
		for k, v := range s.NodeCoordinates {
			out.NodeCoordinates[k] = v
		}
	}
	return out
}

// Recorder receives timing for loads and simulations.
type Recorder interface {
	ObserveLoad(engine string, d time.Duration, err error)
	ObserveSimulation(engine string, d time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLoad(string, time.Duration, error)       {}
func (nopRecorder) ObserveSimulation(string, time.Duration, error) {}

// Wrapper owns at most one loaded network. It is not safe for concurrent
// use; front ends serving concurrent callers must serialise access.
type Wrapper struct {
	engine engine.Engine
	log    logrus.FieldLogger
	rec    Recorder
	plot   PlotDefaults

	path   string
	model  engine.Model
	stats  Statistics
	series *engine.TimeSeries
	graph  *graph.Graph
}

// PlotDefaults apply to plot calls that leave size or format unset.
type PlotDefaults struct {
	NetworkSize    render.Size
	TimeSeriesSize render.Size
	Format         string
	NodeRadius     float64
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithLogger sets the logger. The default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(w *Wrapper) { w.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(w *Wrapper) { w.rec = r }
}

// WithPlotDefaults sets the default figure sizes and format.
func WithPlotDefaults(d PlotDefaults) Option {
	return func(w *Wrapper) { w.plot = d }
}

// New creates a Wrapper around eng.
func New(eng engine.Engine, opts ...Option) *Wrapper {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	w := &Wrapper{
		engine: eng,
		log:    discard,
		rec:    nopRecorder{},
		plot: PlotDefaults{
			NetworkSize:    render.NetworkSize,
			TimeSeriesSize: render.TimeSeriesSize,
			Format:         "png",
		},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LoadFile loads the network at path, replacing any loaded network.
// Statistics are rebuilt and previous simulation results dropped. A failed
// load leaves the current network in place.
func (w *Wrapper) LoadFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Error{Op: "load", Path: path, Err: ErrNotFound}
		}
		return &Error{Op: "load", Path: path, Err: err}
	}
	if !strings.EqualFold(filepath.Ext(path), ".inp") {
		return &Error{Op: "load", Path: path, Err: ErrInvalidFormat}
	}

	start := time.Now()
	model, err := w.engine.Load(ctx, path)
	w.rec.ObserveLoad(w.engine.Name(), time.Since(start), err)
	if err != nil {
		return &Error{Op: "load", Path: path, Err: err}
	}

	// The previous network stays usable until the new one has loaded.
	if err := w.Close(); err != nil {
		w.log.WithError(err).Warn("closing previous network")
	}

	w.path = path
	w.model = model
	w.series = nil
	w.refreshStatistics()
	w.graph = graph.Build(model)

	w.log.WithFields(logrus.Fields{
		"path":  path,
		"nodes": w.stats.NodeCount,
		"links": w.stats.LinkCount,
	}).Info("network loaded")
	return nil
}

// refreshStatistics rebuilds the cache. A failure leaves an empty record
// and is logged.
func (w *Wrapper) refreshStatistics() {
	w.stats = Statistics{}
	elev, err := w.model.NodeElevations()
	if err != nil {
		w.log.WithError(err).WithField("path", w.path).Warn("collecting node elevations")
		return
	}
	coords, err := w.model.NodeCoordinates()
	if err != nil {
		w.log.WithError(err).WithField("path", w.path).Warn("collecting node coordinates")
		return
	}
	w.stats = Statistics{
		NodeCount:       w.model.NodeCount(),
		LinkCount:       w.model.LinkCount(),
		NodeIDs:         w.model.NodeIDs(),
		LinkIDs:         w.model.LinkIDs(),
		NodeElevations:  elev,
		NodeCoordinates: coords,
	}
}

// RunSimulation computes the full time series for the loaded network.
func (w *Wrapper) RunSimulation(ctx context.Context) error {
	if w.model == nil {
		return &Error{Op: "simulate", Err: ErrNotLoaded}
	}

	start := time.Now()
	ts, err := w.model.ComputeTimeSeries(ctx)
	elapsed := time.Since(start)
	w.rec.ObserveSimulation(w.engine.Name(), elapsed, err)
	if err != nil {
		return &Error{Op: "simulate", Path: w.path, Err: err}
	}
	w.series = ts

	w.log.WithFields(logrus.Fields{
		"path":     w.path,
		"periods":  ts.Periods(),
		"duration": elapsed.Round(time.Millisecond),
	}).Info("simulation complete")
	return nil
}

// Statistics returns a copy of the cached statistics.
func (w *Wrapper) Statistics() Statistics {
	return w.stats.clone()
}

// TimeSeries returns the cached simulation results, or nil.
func (w *Wrapper) TimeSeries() *engine.TimeSeries { return w.series }

// Graph returns the graph of the loaded network, or nil.
func (w *Wrapper) Graph() *graph.Graph { return w.graph }

// Model returns the engine model, or nil.
func (w *Wrapper) Model() engine.Model { return w.model }

// EngineName returns the name of the engine in use.
func (w *Wrapper) EngineName() string { return w.engine.Name() }

// IsLoaded reports whether a network is loaded.
func (w *Wrapper) IsLoaded() bool { return w.model != nil }

// Simulated reports whether simulation results are cached.
func (w *Wrapper) Simulated() bool { return w.series != nil }

// FilePath returns the path of the loaded network, or "".
func (w *Wrapper) FilePath() string { return w.path }

// FileName returns the base name of the loaded network, or "".
func (w *Wrapper) FileName() string {
	if w.path == "" {
		return ""
	}
	return filepath.Base(w.path)
}

// Close releases the loaded network. Close errors are returned but the
// wrapper is reset regardless.
func (w *Wrapper) Close() error {
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	w.path = ""
	w.stats = Statistics{}
	w.series = nil
	w.graph = nil
	return err
}

// HitTest finds the node or link under p using the default threshold.
func (w *Wrapper) HitTest(p geom.Point) (graph.Hit, error) {
	if w.graph == nil {
		return graph.Hit{}, &Error{Op: "hit", Err: ErrNotLoaded}
	}
	return graph.HitTest(w.graph, p, graph.DefaultThreshold(w.graph.Bounds())), nil
}
