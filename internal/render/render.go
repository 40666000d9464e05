// Package render draws networks and time series with gonum/plot.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// ErrNoSeries is returned when a time-series plot has nothing to draw.
var ErrNoSeries = errors.New("render: no series to plot")

// Size is a figure size in inches.
type Size struct {
	Width  float64
	Height float64
}

// Default figure sizes.
var (
	NetworkSize    = Size{Width: 10, Height: 8}
	TimeSeriesSize = Size{Width: 10, Height: 6}
)

// Formats lists the image formats save accepts.
var Formats = []string{"png", "svg", "pdf", "jpg", "tif", "eps"}

// ContentType returns the MIME type for an image format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "svg":
		return "image/svg+xml"
	case "pdf":
		return "application/pdf"
	case "jpg", "jpeg":
		return "image/jpeg"
	case "tif", "tiff":
		return "image/tiff"
	case "eps":
		return "application/postscript"
	default:
		return "image/png"
	}
}

var (
	nodeFallback = color.RGBA{R: 173, G: 216, B: 230, A: 255} // light blue
	edgeFallback = color.RGBA{R: 128, G: 128, B: 128, A: 160} // translucent gray
)

func save(p *plot.Plot, w io.Writer, size Size, format string) error {
	if size.Width <= 0 || size.Height <= 0 {
		return fmt.Errorf("render: invalid size %vx%v", size.Width, size.Height)
	}
	if format == "" {
		format = "png"
	}
	wt, err := p.WriterTo(vg.Length(size.Width)*vg.Inch, vg.Length(size.Height)*vg.Inch, strings.ToLower(format))
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render: writing %s: %w", format, err)
	}
	return nil
}
