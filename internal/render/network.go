package render

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/smileynet/epaview/internal/graph"
)

// Scale names a colour map for scalar values.
type Scale int

const (
	ScaleCool   Scale = iota // Sequential blue to yellow; pressures.
	ScaleWarm                // Black body; flows and elevations.
	ScaleDiverg              // Blue to red; quality.
)

func (s Scale) colorMap() palette.ColorMap {
	switch s {
	case ScaleWarm:
		return moreland.ExtendedBlackBody()
	case ScaleDiverg:
		return moreland.SmoothBlueRed()
	default:
		return moreland.Kindlmann()
	}
}

// Values colours graph elements by a scalar keyed by element ID.
type Values struct {
	Label string // legend label, e.g. "Pressure (psi)"
	Data  map[string]float64
	Scale Scale
}

// NetworkOptions controls a network drawing.
type NetworkOptions struct {
	Title      string
	Nodes      *Values // nil draws uniform light blue nodes
	Links      *Values // nil draws uniform gray links
	Labels     bool    // draw node IDs
	NodeRadius float64 // points; zero uses 5
	Highlight  string  // node or link ID drawn in red
	Size       Size
	Format     string
}

// NetworkTitle builds the figure title used for result overlays.
func NetworkTitle(pressures, flows bool) string {
	title := "EPANET Network"
	if pressures {
		title += " (Pressures)"
	}
	if flows {
		title += " (Flows)"
	}
	return title
}

var highlightColor = color.RGBA{R: 220, G: 20, B: 60, A: 255}

// Network draws g to w. Edges are straight lines between node positions;
// the view keeps an equal aspect ratio.
func Network(w io.Writer, g *graph.Graph, opts NetworkOptions) error {
	p := plot.New()
	p.Title.Text = opts.Title
	p.HideAxes()

	box := g.Bounds().Square(0.05)
	p.X.Min, p.X.Max = box.Min.X, box.Max.X
	p.Y.Min, p.Y.Max = box.Min.Y, box.Max.Y

	linkScale := newScalarMap(opts.Links)
	for _, e := range g.Edges {
		a, b := g.Endpoints(e)
		line, err := plotter.NewLine(plotter.XYs{{X: a.X, Y: a.Y}, {X: b.X, Y: b.Y}})
		if err != nil {
			return fmt.Errorf("render: link %s: %w", e.LinkID, err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = linkScale.color(e.LinkID, edgeFallback)
		if e.LinkID == opts.Highlight {
			line.LineStyle.Color = highlightColor
			line.LineStyle.Width = vg.Points(4)
		}
		p.Add(line)
	}

	if len(g.Nodes) > 0 {
		xys := make(plotter.XYs, len(g.Nodes))
		for i, n := range g.Nodes {
			xys[i] = plotter.XY{X: n.Pos.X, Y: n.Pos.Y}
		}
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("render: nodes: %w", err)
		}

		radius := opts.NodeRadius
		if radius <= 0 {
			radius = 5
		}
		nodeScale := newScalarMap(opts.Nodes)
		scatter.GlyphStyle = draw.GlyphStyle{Color: nodeFallback, Radius: vg.Points(radius), Shape: draw.CircleGlyph{}}
		scatter.GlyphStyleFunc = func(i int) draw.GlyphStyle {
			id := g.Nodes[i].ID
			style := draw.GlyphStyle{
				Color:  nodeScale.color(id, nodeFallback),
				Radius: vg.Points(radius),
				Shape:  draw.CircleGlyph{},
			}
			if id == opts.Highlight {
				style.Color = highlightColor
				style.Radius = vg.Points(radius * 1.6)
			}
			return style
		}
		p.Add(scatter)

		if nodeScale.ok {
			p.Legend.Add(nodeScale.legend(), scatter)
		}

		if opts.Labels {
			ids := make([]string, len(g.Nodes))
			for i, n := range g.Nodes {
				ids[i] = n.ID
			}
			labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: ids})
			if err != nil {
				return fmt.Errorf("render: labels: %w", err)
			}
			labels.Offset = vg.Point{X: vg.Points(radius + 2), Y: vg.Points(radius + 2)}
			p.Add(labels)
		}
	}

	if linkScale.ok {
		swatch, err := plotter.NewLine(plotter.XYs{{X: box.Min.X, Y: box.Min.Y}, {X: box.Min.X, Y: box.Min.Y}})
		if err == nil {
			swatch.LineStyle.Width = vg.Points(2)
			swatch.LineStyle.Color = linkScale.color("", edgeFallback)
			p.Legend.Add(linkScale.legend(), swatch)
		}
	}
	p.Legend.Top = true

	size := opts.Size
	if size == (Size{}) {
		size = NetworkSize
	}
	return save(p, w, size, opts.Format)
}

// scalarMap maps values onto a colour map. ok is false when there is no
// data or every value is zero, in which case callers draw a uniform colour.
type scalarMap struct {
	values   *Values
	cm       palette.ColorMap
	min, max float64
	ok       bool
}

func newScalarMap(v *Values) scalarMap {
	s := scalarMap{values: v}
	if v == nil || len(v.Data) == 0 {
		return s
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	allZero := true
	for _, x := range v.Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
		if x != 0 {
			allZero = false
		}
	}
	if allZero || math.IsInf(lo, 1) {
		return s
	}
	s.min, s.max = lo, hi
	if hi == lo {
		hi = lo + 1
	}
	s.cm = v.Scale.colorMap()
	s.cm.SetMin(lo)
	s.cm.SetMax(hi)
	s.ok = true
	return s
}

// color returns the colour for element id, or the colour at the middle of
// the range when id is empty.
func (s scalarMap) color(id string, fallback color.Color) color.Color {
	if !s.ok {
		return fallback
	}
	x := (s.cm.Min() + s.cm.Max()) / 2
	if id != "" {
		v, found := s.values.Data[id]
		if !found || math.IsNaN(v) {
			return fallback
		}
		x = v
	}
	c, err := s.cm.At(x)
	if err != nil {
		return fallback
	}
	return c
}

func (s scalarMap) legend() string {
	return fmt.Sprintf("%s: %.4g to %.4g", s.values.Label, s.min, s.max)
}
