package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

var gridColor = color.Gray{Y: 210}

// Series is one line of a time-series plot.
type Series struct {
	Label string
	X     []float64
	Y     []float64
}

// SeriesOptions controls a time-series plot.
type SeriesOptions struct {
	Title  string
	XLabel string
	YLabel string
	Size   Size
	Format string
}

// TimeSeries draws one line per series with a legend and a light grid.
func TimeSeries(w io.Writer, series []Series, opts SeriesOptions) error {
	if len(series) == 0 {
		return ErrNoSeries
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = opts.XLabel
	p.Y.Label.Text = opts.YLabel

	grid := plotter.NewGrid()
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	grid.Vertical.Width = vg.Points(0.2)
	grid.Horizontal.Width = vg.Points(0.2)
	p.Add(grid)

	for i, s := range series {
		if len(s.X) != len(s.Y) {
			return fmt.Errorf("render: series %q has %d x values and %d y values", s.Label, len(s.X), len(s.Y))
		}
		xys := make(plotter.XYs, len(s.X))
		for j := range s.X {
			xys[j] = plotter.XY{X: s.X[j], Y: s.Y[j]}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("render: series %q: %w", s.Label, err)
		}
		line.LineStyle.Color = plotutil.Color(i)
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(s.Label, line)
	}
	p.Legend.Top = true

	size := opts.Size
	if size == (Size{}) {
		size = TimeSeriesSize
	}
	return save(p, w, size, opts.Format)
}
