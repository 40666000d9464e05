package dashboard

import (
	"math"
	"strings"

	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
)

const (
	canvasPad = 0.05

	runeEmpty   = ' '
	runeLink    = '·'
	runeNode    = 'o'
	runeMark    = '@'
	runeMarked  = '*'
	runePointer = '+'
)

// Cell is a character position on the canvas, column then row from the
// top left.
type Cell struct {
	Col, Row int
}

// Projection maps world coordinates onto a cols x rows character grid.
// World y grows upward; rows grow downward.
type Projection struct {
	minX, minY float64
	w, h       float64
	cols, rows int
}

// NewProjection fits b, padded on every side, into the grid. Degenerate
// extents are widened to one world unit.
func NewProjection(b geom.Bounds, cols, rows int) Projection {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if b.Empty() {
		b = b.Extend(geom.Point{})
	}
	w, h := b.Width(), b.Height()
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	padX, padY := w*canvasPad, h*canvasPad
	cx, cy := b.Min.X+b.Width()/2, b.Min.Y+b.Height()/2
	w, h = w+2*padX, h+2*padY
	return Projection{
		minX: cx - w/2,
		minY: cy - h/2,
		w:    w,
		h:    h,
		cols: cols,
		rows: rows,
	}
}

// Size returns the grid dimensions.
func (p Projection) Size() (cols, rows int) { return p.cols, p.rows }

// Cell returns the grid cell holding pt, clamped to the grid.
func (p Projection) Cell(pt geom.Point) Cell {
	col := int(math.Round((pt.X - p.minX) / p.w * float64(p.cols-1)))
	row := int(math.Round((p.minY + p.h - pt.Y) / p.h * float64(p.rows-1)))
	return p.Clamp(Cell{Col: col, Row: row})
}

// World returns the world point at the centre of c.
func (p Projection) World(c Cell) geom.Point {
	pt := geom.Point{X: p.minX + p.w/2, Y: p.minY + p.h/2}
	if p.cols > 1 {
		pt.X = p.minX + float64(c.Col)/float64(p.cols-1)*p.w
	}
	if p.rows > 1 {
		pt.Y = p.minY + p.h - float64(c.Row)/float64(p.rows-1)*p.h
	}
	return pt
}

// CellSpan is the larger world extent of one cell.
func (p Projection) CellSpan() float64 {
	sx, sy := p.w, p.h
	if p.cols > 1 {
		sx = p.w / float64(p.cols-1)
	}
	if p.rows > 1 {
		sy = p.h / float64(p.rows-1)
	}
	return math.Max(sx, sy)
}

// Clamp keeps c inside the grid.
func (p Projection) Clamp(c Cell) Cell {
	c.Col = min(max(c.Col, 0), p.cols-1)
	c.Row = min(max(c.Row, 0), p.rows-1)
	return c
}

// Threshold is the pick distance for a pointer query: the graph default,
// but never less than one cell.
func (p Projection) Threshold(g *graph.Graph) float64 {
	return math.Max(graph.DefaultThreshold(g.Bounds()), p.CellSpan())
}

// Mark names the element drawn highlighted.
type Mark struct {
	Kind graph.HitKind
	ID   string
}

// DrawMap rasterises g. Links are drawn first so nodes sit on top; the
// pointer is drawn last.
func DrawMap(g *graph.Graph, p Projection, pointer Cell, mark Mark) []string {
	cols, rows := p.Size()
	grid := make([][]rune, rows)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(string(runeEmpty), cols))
	}

	if g != nil {
		for _, e := range g.Edges {
			a, b := g.Endpoints(e)
			ch := runeLink
			if mark.Kind == graph.HitLink && mark.ID == e.LinkID {
				ch = runeMarked
			}
			line(p.Cell(a), p.Cell(b), func(c Cell) {
				if grid[c.Row][c.Col] == runeEmpty || ch == runeMarked {
					grid[c.Row][c.Col] = ch
				}
			})
		}
		for _, n := range g.Nodes {
			c := p.Cell(n.Pos)
			if mark.Kind == graph.HitNode && mark.ID == n.ID {
				grid[c.Row][c.Col] = runeMark
			} else if grid[c.Row][c.Col] != runeMark {
				grid[c.Row][c.Col] = runeNode
			}
		}
	}

	pc := p.Clamp(pointer)
	grid[pc.Row][pc.Col] = runePointer

	lines := make([]string, rows)
	for r, row := range grid {
		lines[r] = string(row)
	}
	return lines
}

// line visits every cell from a to b with Bresenham's algorithm.
func line(a, b Cell, visit func(Cell)) {
	dx := abs(b.Col - a.Col)
	dy := -abs(b.Row - a.Row)
	sx, sy := 1, 1
	if a.Col > b.Col {
		sx = -1
	}
	if a.Row > b.Row {
		sy = -1
	}
	err := dx + dy
	c := a
	for {
		visit(c)
		if c == b {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			c.Col += sx
		}
		if e2 <= dx {
			err += dx
			c.Row += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
