package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	epaview "github.com/smileynet/epaview"
	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/report"
)

// localTemplates overrides the embedded report templates file by file.
const localTemplates = ".epaview/templates"

// command is implemented by the single-network commands: load, then act.
type command interface {
	run(ctx context.Context, w io.Writer, net *network.Wrapper) error
}

// runCommand builds dependencies and runs c against stdout with Ctrl+C
// cancelling the context.
func runCommand(name string, g globals, c command) error {
	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer func() { _ = d.net.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, os.Stdout, d.net)
}

// writeTo runs draw against the output named by path, removing a file
// left behind by a failed draw.
func writeTo(path string, w io.Writer, draw func(io.Writer) error) error {
	out, closeOut, err := createOutput(path, w)
	if err != nil {
		return err
	}
	if err := draw(out); err != nil {
		_ = closeOut()
		if path != "" && path != "-" {
			_ = os.Remove(path)
		}
		return err
	}
	return closeOut()
}

// StatsCmd prints network statistics.
type StatsCmd struct {
	Path     string `arg:"" help:"Network .inp file."`
	Simulate bool   `help:"Run the simulation and include result ranges." short:"s"`
	JSON     bool   `help:"Print statistics and summary as JSON."`
}

// Run executes the stats command.
func (c *StatsCmd) Run(g globals) error { return runCommand("stats", g, c) }

func (c *StatsCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	if c.Simulate {
		if err := net.RunSimulation(ctx); err != nil {
			return fmt.Errorf("stats: %w", err)
		}
	}
	sum, err := net.Summary()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Statistics network.Statistics `json:"statistics"`
			Summary    network.Summary    `json:"summary"`
		}{net.Statistics(), sum})
	}

	_, _ = fmt.Fprintf(w, "File:      %s\n", sum.File)
	_, _ = fmt.Fprintf(w, "Engine:    %s\n", sum.Engine)
	_, _ = fmt.Fprintf(w, "Nodes:     %d\n", sum.NodeCount)
	_, _ = fmt.Fprintf(w, "Links:     %d\n", sum.LinkCount)
	_, _ = fmt.Fprintf(w, "Units:     flow %s, pressure %s\n", sum.Units.Flow, sum.Units.Pressure)
	writeRange(w, "Elevation", sum.Elevation, "")
	if !sum.Simulated {
		_, _ = fmt.Fprintln(w, "Simulated: no")
		return nil
	}
	_, _ = fmt.Fprintf(w, "Simulated: %d periods over %.4g h\n", sum.Periods, sum.Duration)
	writeRange(w, "Pressure", sum.Pressure, sum.Units.Pressure)
	writeRange(w, "Flow", sum.Flow, sum.Units.Flow)
	writeRange(w, "Velocity", sum.Velocity, sum.Units.Velocity)
	return nil
}

func writeRange(w io.Writer, label string, r *network.Range, units string) {
	if r == nil {
		return
	}
	if units != "" {
		units = " " + units
	}
	_, _ = fmt.Fprintf(w, "%-10s min %.4g (%s), mean %.4g, max %.4g (%s)%s\n",
		label+":", r.Min, r.MinID, r.Mean, r.Max, r.MaxID, units)
}

// InfoCmd lists element IDs with the indices selections accept.
type InfoCmd struct {
	Path string `arg:"" help:"Network .inp file."`
}

// Run executes the info command.
func (c *InfoCmd) Run(g globals) error { return runCommand("info", g, c) }

func (c *InfoCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("info: %w", err)
	}
	stats := net.Statistics()
	_, _ = fmt.Fprintf(w, "Nodes (%d):\n%s", stats.NodeCount, report.Listing(stats.NodeIDs))
	_, _ = fmt.Fprintf(w, "Node indices: %s\n\n", report.IndexList(stats.NodeCount))
	_, _ = fmt.Fprintf(w, "Links (%d):\n%s", stats.LinkCount, report.Listing(stats.LinkIDs))
	_, _ = fmt.Fprintf(w, "Link indices: %s\n", report.IndexList(stats.LinkCount))
	return nil
}

// PlotCmd draws the network.
type PlotCmd struct {
	Path      string `arg:"" help:"Network .inp file."`
	Out       string `short:"o" help:"Output file; - writes to stdout." default:"network.png"`
	Attribute string `short:"a" help:"Colour by attribute: elevation, pressure, flow or quality."`
	Period    int    `help:"Result period for --attribute; negative averages over all periods." default:"-1"`
	Topology  bool   `help:"Draw bare topology without colouring."`
	Pressures bool   `help:"Colour nodes by time-averaged pressure."`
	Flows     bool   `help:"Colour links by time-averaged flow."`
	Native    bool   `help:"Write the engine's own report instead of a figure."`
	Labels    bool   `help:"Label nodes with their IDs."`
	Highlight string `help:"Node ID to highlight."`
	Format    string `help:"Figure format (png, svg, pdf, ...). Defaults to the output extension."`
}

// Run executes the plot command.
func (c *PlotCmd) Run(g globals) error { return runCommand("plot", g, c) }

// needsResults reports whether the figure requires a simulation first.
func (c *PlotCmd) needsResults() bool {
	if c.Topology {
		return false
	}
	if c.Pressures || c.Flows || c.Native {
		return true
	}
	return c.Attribute != "" && c.Attribute != "elevation"
}

func (c *PlotCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if c.needsResults() {
		if err := net.RunSimulation(ctx); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
	}

	format := formatFor(c.Format, c.Out)
	err := writeTo(c.Out, w, func(out io.Writer) error {
		switch {
		case c.Topology:
			return net.PlotNetworkTopology(out, network.TopologyOptions{
				Native: c.Native, Labels: c.Labels, Highlight: c.Highlight, Format: format,
			})
		case c.Attribute != "" || c.Native:
			attr := c.Attribute
			if attr == "" {
				attr = "pressure"
			}
			return net.PlotNetworkAttributes(out, network.AttributeOptions{
				Attribute: attr, Period: c.Period, Native: c.Native, Labels: c.Labels, Format: format,
			})
		default:
			return net.PlotNetwork(out, network.PlotOptions{
				Pressures: c.Pressures, Flows: c.Flows, Labels: c.Labels, Highlight: c.Highlight, Format: format,
			})
		}
	})
	if err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	if c.Out != "-" {
		_, _ = fmt.Fprintf(w, "Wrote %s\n", c.Out)
	}
	return nil
}

// SeriesCmd plots result time series.
type SeriesCmd struct {
	Path    string   `arg:"" help:"Network .inp file."`
	Kind    string   `short:"k" help:"Variable: pressure, velocity, flow or quality." enum:"pressure,velocity,flow,quality" default:"pressure"`
	Select  []string `short:"s" help:"IDs or 1-based indices to plot (comma-separated). Empty plots every element." sep:","`
	Seconds bool     `help:"Use seconds on the time axis instead of hours."`
	Out     string   `short:"o" help:"Output file; - writes to stdout." default:"series.png"`
	Format  string   `help:"Figure format. Defaults to the output extension."`
}

// Run executes the series command.
func (c *SeriesCmd) Run(g globals) error {
	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("series: %w", err)
	}
	defer func() { _ = d.net.Close() }()
	if d.cfg.Plot.TimeUnit == "seconds" {
		c.Seconds = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, os.Stdout, d.net)
}

func (c *SeriesCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("series: %w", err)
	}
	if err := net.RunSimulation(ctx); err != nil {
		return fmt.Errorf("series: %w", err)
	}
	err := writeTo(c.Out, w, func(out io.Writer) error {
		return net.PlotTimeSeries(out, network.SeriesOptions{
			Kind:      c.Kind,
			Selection: c.Select,
			Seconds:   c.Seconds,
			Format:    formatFor(c.Format, c.Out),
		})
	})
	if err != nil {
		return fmt.Errorf("series: %w", err)
	}
	if c.Out != "-" {
		_, _ = fmt.Fprintf(w, "Wrote %s\n", c.Out)
	}
	return nil
}

// HitCmd reports the element nearest a world coordinate.
type HitCmd struct {
	Path      string  `arg:"" help:"Network .inp file."`
	X         float64 `arg:"" help:"World X coordinate."`
	Y         float64 `arg:"" help:"World Y coordinate."`
	Threshold float64 `help:"Pick radius in world units. 0 uses 5% of the larger network extent."`
	JSON      bool    `help:"Print the hit as JSON."`
}

// Run executes the hit command.
func (c *HitCmd) Run(g globals) error { return runCommand("hit", g, c) }

func (c *HitCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("hit: %w", err)
	}
	at := geom.Point{X: c.X, Y: c.Y}
	g := net.Graph()
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = graph.DefaultThreshold(g.Bounds())
	}
	hit := graph.HitTest(g, at, threshold)

	if c.JSON {
		return json.NewEncoder(w).Encode(hit)
	}
	if hit.Kind == graph.HitNone {
		_, _ = fmt.Fprintf(w, "Nothing within %.4g of (%.4g, %.4g)\n", threshold, c.X, c.Y)
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s %s (index %d) at distance %.4g, anchor (%.4g, %.4g)\n",
		hit.Kind, hit.ID, hit.Index, hit.Distance, hit.Anchor.X, hit.Anchor.Y)
	return nil
}

// ReportCmd renders the markdown report for one network.
type ReportCmd struct {
	Path     string `arg:"" help:"Network .inp file."`
	Out      string `short:"o" help:"Output file; - writes to stdout." default:"-"`
	Simulate bool   `help:"Run the simulation so the report includes results." default:"true" negatable:""`
	Template string `help:"Template file name, looked up in .epaview/templates then the built-in set." default:"report.md.tmpl"`
}

// Run executes the report command.
func (c *ReportCmd) Run(g globals) error { return runCommand("report", g, c) }

func (c *ReportCmd) run(ctx context.Context, w io.Writer, net *network.Wrapper) error {
	if err := net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if c.Simulate {
		if err := net.RunSimulation(ctx); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	sum, err := net.Summary()
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	stats := net.Statistics()
	data := report.Data{
		Summary:   sum,
		NodeIDs:   stats.NodeIDs,
		LinkIDs:   stats.LinkIDs,
		Generated: time.Now(),
	}

	renderer := newRenderer().WithTemplate(c.Template)
	if err := writeTo(c.Out, w, func(out io.Writer) error { return renderer.Render(out, data) }); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// newRenderer reads report templates from .epaview/templates over the
// embedded set.
func newRenderer() *report.Renderer {
	return report.NewRenderer(epaview.OverlayFS(localTemplates, epaview.Templates))
}
