package network

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smileynet/epaview/internal/engine"
	"github.com/smileynet/epaview/internal/render"
)

// PlotOptions controls PlotNetwork.
type PlotOptions struct {
	Pressures bool // colour nodes by time-averaged pressure
	Flows     bool // colour links by time-averaged flow
	Labels    bool
	Highlight string
	Size      render.Size
	Format    string
}

// AttributeOptions controls PlotNetworkAttributes.
type AttributeOptions struct {
	Attribute string // elevation, pressure, flow or quality
	Period    int    // negative averages; past the end clamps to 0
	Native    bool   // write the engine's own report instead of a figure
	Labels    bool
	Size      render.Size
	Format    string
}

// TopologyOptions controls PlotNetworkTopology.
type TopologyOptions struct {
	Native    bool
	Labels    bool
	Highlight string
	Size      render.Size
	Format    string
}

// SeriesOptions controls PlotTimeSeries.
type SeriesOptions struct {
	Kind      string   // pressure, velocity, flow or quality
	Selection []string // IDs or 1-based indices; empty plots every element
	Seconds   bool     // x axis in seconds instead of hours
	Size      render.Size
	Format    string
}

// PlotNetwork draws the network, optionally coloured by results. Result
// overlays are drawn uniformly before a simulation.
func (w *Wrapper) PlotNetwork(out io.Writer, opts PlotOptions) error {
	if w.graph == nil {
		return &Error{Op: "plot", Err: ErrNotLoaded}
	}
	ro := w.networkOptions(opts.Size, opts.Format, opts.Labels)
	ro.Title = render.NetworkTitle(opts.Pressures, opts.Flows)
	ro.Highlight = opts.Highlight
	if opts.Pressures {
		ro.Nodes = w.values("Pressure", w.unitsOf("pressure"), w.NodePressures(), render.ScaleCool)
	}
	if opts.Flows {
		ro.Links = w.values("Flow", w.unitsOf("flow"), w.LinkFlows(), render.ScaleWarm)
	}
	return w.draw(out, ro)
}

// PlotNetworkAttributes draws the network coloured by one attribute.
func (w *Wrapper) PlotNetworkAttributes(out io.Writer, opts AttributeOptions) error {
	if w.graph == nil {
		return &Error{Op: "plot", Err: ErrNotLoaded}
	}
	if opts.Native {
		return w.nativeReport(out)
	}

	ro := w.networkOptions(opts.Size, opts.Format, opts.Labels)
	attr := strings.ToLower(opts.Attribute)
	switch attr {
	case "", "elevation":
		ro.Title = "EPANET Network - Elevations"
		ro.Nodes = w.values("Elevation", "", w.NodeElevations(), render.ScaleWarm)
	case "pressure":
		ro.Title = render.NetworkTitle(true, false)
		values, _ := w.NodeAttributeAt(attr, opts.Period)
		ro.Nodes = w.values("Pressure", w.unitsOf("pressure"), values, render.ScaleCool)
	case "flow":
		ro.Title = render.NetworkTitle(false, true)
		values, _ := w.LinkAttributeAt(attr, opts.Period)
		ro.Links = w.values("Flow", w.unitsOf("flow"), values, render.ScaleWarm)
	case "quality":
		if w.series == nil {
			return &Error{Op: "plot", Path: w.path, Err: ErrNotSimulated}
		}
		ro.Title = "EPANET Network - Quality"
		values, _ := w.NodeAttributeAt(attr, opts.Period)
		ro.Nodes = w.values("Quality", w.unitsOf("quality"), values, render.ScaleDiverg)
	default:
		return &Error{Op: "plot", Path: w.path, Err: fmt.Errorf("%q: %w", opts.Attribute, ErrUnknownAttribute)}
	}
	return w.draw(out, ro)
}

// PlotNetworkTopology draws the bare network, or writes the engine's own
// report when Native is set.
func (w *Wrapper) PlotNetworkTopology(out io.Writer, opts TopologyOptions) error {
	if w.graph == nil {
		return &Error{Op: "plot", Err: ErrNotLoaded}
	}
	if opts.Native {
		return w.nativeReport(out)
	}
	return w.PlotNetwork(out, PlotOptions{
		Labels:    opts.Labels,
		Highlight: opts.Highlight,
		Size:      opts.Size,
		Format:    opts.Format,
	})
}

// PlotTimeSeries draws one line per selected element. Selectors resolve
// as IDs first, then as 1-based indices. Unknown IDs fail; indices past
// the result width are skipped.
func (w *Wrapper) PlotTimeSeries(out io.Writer, opts SeriesOptions) error {
	if w.model == nil {
		return &Error{Op: "plot", Err: ErrNotLoaded}
	}
	if w.series == nil {
		return &Error{Op: "plot", Path: w.path, Err: ErrNotSimulated}
	}

	kind := strings.ToLower(opts.Kind)
	if kind == "" {
		kind = "pressure"
	}

	var (
		matrix [][]float64
		ids    []string
		noun   string
		title  string
		ylabel string
	)
	switch kind {
	case "pressure":
		matrix, ids, noun = w.series.Pressure, w.stats.NodeIDs, "Node"
		title, ylabel = "Node Pressures Over Time", "Pressure"
	case "quality":
		matrix, ids, noun = w.series.Quality, w.stats.NodeIDs, "Node"
		title, ylabel = "Node Quality Over Time", "Quality"
	case "velocity":
		matrix, ids, noun = w.series.Velocity, w.stats.LinkIDs, "Link"
		title, ylabel = "Link Velocities Over Time", "Velocity"
	case "flow":
		matrix, ids, noun = w.series.Flow, w.stats.LinkIDs, "Link"
		title, ylabel = "Link Flows Over Time", "Flow"
	default:
		return &Error{Op: "plot", Path: w.path, Err: fmt.Errorf("time series %q: %w", opts.Kind, ErrUnknownAttribute)}
	}
	if u := w.unitsOf(kind); u != "" {
		ylabel += " (" + u + ")"
	}

	indices, err := resolve(opts.Selection, ids, noun)
	if err != nil {
		return &Error{Op: "plot", Path: w.path, Err: err}
	}

	x := make([]float64, len(w.series.Time))
	xlabel := "Time (hrs)"
	for i, t := range w.series.Time {
		x[i] = t / 3600
	}
	if opts.Seconds {
		copy(x, w.series.Time)
		xlabel = "Time (sec)"
	}

	width := 0
	for _, row := range matrix {
		width = max(width, len(row))
	}
	var series []render.Series
	for _, idx := range indices {
		if idx < 1 || idx > width {
			continue
		}
		xs, ys := seriesPoints(x, matrix, idx-1)
		series = append(series, render.Series{
			Label: noun + " " + ids[idx-1],
			X:     xs,
			Y:     ys,
		})
	}

	size := opts.Size
	if size == (render.Size{}) {
		size = w.plot.TimeSeriesSize
	}
	err = render.TimeSeries(out, series, render.SeriesOptions{
		Title:  title,
		XLabel: xlabel,
		YLabel: ylabel,
		Size:   size,
		Format: w.PlotFormat(opts.Format),
	})
	if err != nil {
		return &Error{Op: "plot", Path: w.path, Err: err}
	}
	return nil
}

// seriesPoints pairs each period's time with entity col's value, leaving
// out periods whose row is too short.
func seriesPoints(times []float64, matrix [][]float64, col int) (xs, ys []float64) {
	for p, row := range matrix {
		if p >= len(times) || col < 0 || col >= len(row) {
			continue
		}
		xs = append(xs, times[p])
		ys = append(ys, row[col])
	}
	return xs, ys
}

// resolve maps selectors to 1-based indices. An empty selection selects
// every element.
func resolve(selection, ids []string, noun string) ([]int, error) {
	if len(selection) == 0 {
		all := make([]int, len(ids))
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}

	byID := make(map[string]int, len(ids))
	for i, id := range ids {
		byID[id] = i + 1
	}
	out := make([]int, 0, len(selection))
	for _, sel := range selection {
		if idx, ok := byID[sel]; ok {
			out = append(out, idx)
			continue
		}
		idx, err := strconv.Atoi(sel)
		if err != nil {
			return nil, fmt.Errorf("%s ID %q: %w", strings.ToLower(noun), sel, ErrNotFound)
		}
		out = append(out, idx)
	}
	return out, nil
}

func (w *Wrapper) nativeReport(out io.Writer) error {
	r, ok := w.model.(engine.Reporter)
	if !ok {
		return &Error{Op: "report", Path: w.path, Err: ErrUnsupported}
	}
	if err := r.Report(out); err != nil {
		if errors.Is(err, engine.ErrNoReport) {
			return &Error{Op: "report", Path: w.path, Err: ErrNotSimulated}
		}
		return &Error{Op: "report", Path: w.path, Err: err}
	}
	return nil
}

func (w *Wrapper) networkOptions(size render.Size, format string, labels bool) render.NetworkOptions {
	if size == (render.Size{}) {
		size = w.plot.NetworkSize
	}
	return render.NetworkOptions{
		Labels:     labels,
		NodeRadius: w.plot.NodeRadius,
		Size:       size,
		Format:     w.PlotFormat(format),
	}
}

// PlotFormat is the figure format a plot call with format f draws in:
// f itself, or the configured default when f is empty.
func (w *Wrapper) PlotFormat(f string) string {
	if f == "" {
		return w.plot.Format
	}
	return f
}

func (w *Wrapper) draw(out io.Writer, ro render.NetworkOptions) error {
	if err := render.Network(out, w.graph, ro); err != nil {
		return &Error{Op: "plot", Path: w.path, Err: err}
	}
	return nil
}

func (w *Wrapper) values(label, units string, data map[string]float64, scale render.Scale) *render.Values {
	if data == nil {
		return nil
	}
	if units != "" {
		label += " (" + units + ")"
	}
	return &render.Values{Label: label, Data: data, Scale: scale}
}

// unitsOf returns the unit label for a result kind.
func (w *Wrapper) unitsOf(kind string) string {
	var u engine.Units
	switch {
	case w.series != nil:
		u = w.series.Units
	case w.model != nil:
		u = w.model.Units()
	}
	switch kind {
	case "pressure":
		return u.Pressure
	case "flow":
		return u.Flow
	case "velocity":
		return u.Velocity
	case "quality":
		return u.Quality
	}
	return ""
}
