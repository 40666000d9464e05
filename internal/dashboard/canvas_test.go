package dashboard

import (
	"math"
	"testing"

	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
)

func squareBounds() geom.Bounds {
	return geom.Bounds{}.Extend(geom.Point{X: 0, Y: 0}).Extend(geom.Point{X: 100, Y: 100})
}

func runeAt(lines []string, c Cell) rune {
	return []rune(lines[c.Row])[c.Col]
}

func TestProjection_Cell(t *testing.T) {
	p := NewProjection(squareBounds(), 111, 23)
	tests := []struct {
		name string
		pt   geom.Point
		want Cell
	}{
		{"bottom left", geom.Point{X: 0, Y: 0}, Cell{Col: 5, Row: 21}},
		{"top right", geom.Point{X: 100, Y: 100}, Cell{Col: 105, Row: 1}},
		{"centre", geom.Point{X: 50, Y: 50}, Cell{Col: 55, Row: 11}},
		{"far outside clamps", geom.Point{X: -1000, Y: 1000}, Cell{Col: 0, Row: 0}},
		{"far outside clamps opposite", geom.Point{X: 1000, Y: -1000}, Cell{Col: 110, Row: 22}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Cell(tt.pt); got != tt.want {
				t.Errorf("Cell(%v) = %+v, want %+v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestProjection_WorldRoundTrip(t *testing.T) {
	p := NewProjection(squareBounds(), 40, 17)
	half := p.CellSpan() / 2
	for _, pt := range []geom.Point{{X: 0, Y: 0}, {X: 33, Y: 71}, {X: 100, Y: 100}, {X: 12.5, Y: 88}} {
		back := p.World(p.Cell(pt))
		if math.Abs(back.X-pt.X) > half || math.Abs(back.Y-pt.Y) > half {
			t.Errorf("World(Cell(%v)) = %v, more than half a cell away", pt, back)
		}
	}
}

func TestProjection_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		b    geom.Bounds
	}{
		{"empty", geom.Bounds{}},
		{"single point", geom.Bounds{}.Extend(geom.Point{X: 5, Y: 5})},
		{"horizontal line", geom.Bounds{}.Extend(geom.Point{X: 0, Y: 3}).Extend(geom.Point{X: 10, Y: 3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjection(tt.b, 0, -4)
			if cols, rows := p.Size(); cols != 1 || rows != 1 {
				t.Errorf("Size() = %d x %d, want 1 x 1", cols, rows)
			}
			if span := p.CellSpan(); math.IsNaN(span) || math.IsInf(span, 0) || span <= 0 {
				t.Errorf("CellSpan() = %v, want a positive finite span", span)
			}
			if got := p.Cell(tt.b.Center()); got != (Cell{}) {
				t.Errorf("Cell(centre) = %+v, want origin cell", got)
			}
		})
	}
}

func TestProjection_Threshold(t *testing.T) {
	g := graph.Build(squareModel())

	// Coarse rows make one cell wider than the default pick radius.
	coarse := NewProjection(g.Bounds(), 111, 12)
	if got := coarse.Threshold(g); math.Abs(got-10) > 1e-9 {
		t.Errorf("coarse Threshold() = %v, want 10", got)
	}

	fine := NewProjection(g.Bounds(), 400, 400)
	if got, want := fine.Threshold(g), graph.DefaultThreshold(g.Bounds()); got != want {
		t.Errorf("fine Threshold() = %v, want default %v", got, want)
	}
}

func TestDrawMap(t *testing.T) {
	g := graph.Build(squareModel())
	p := NewProjection(g.Bounds(), 111, 23)

	lines := DrawMap(g, p, Cell{Col: 0, Row: 0}, Mark{})

	if len(lines) != 23 {
		t.Fatalf("lines = %d, want 23", len(lines))
	}
	checks := []struct {
		name string
		at   Cell
		want rune
	}{
		{"pointer", Cell{Col: 0, Row: 0}, runePointer},
		{"R1", Cell{Col: 5, Row: 21}, runeNode},
		{"J1", Cell{Col: 105, Row: 21}, runeNode},
		{"J2", Cell{Col: 105, Row: 1}, runeNode},
		{"P1 interior", Cell{Col: 55, Row: 21}, runeLink},
		{"P2 interior", Cell{Col: 105, Row: 11}, runeLink},
		{"empty", Cell{Col: 55, Row: 11}, runeEmpty},
	}
	for _, c := range checks {
		if got := runeAt(lines, c.at); got != c.want {
			t.Errorf("%s at %+v = %q, want %q", c.name, c.at, got, c.want)
		}
	}
}

func TestDrawMap_Marks(t *testing.T) {
	g := graph.Build(squareModel())
	p := NewProjection(g.Bounds(), 111, 23)
	away := Cell{Col: 55, Row: 11}

	t.Run("node", func(t *testing.T) {
		lines := DrawMap(g, p, away, Mark{Kind: graph.HitNode, ID: "J2"})
		if got := runeAt(lines, Cell{Col: 105, Row: 1}); got != runeMark {
			t.Errorf("J2 = %q, want %q", got, runeMark)
		}
		if got := runeAt(lines, Cell{Col: 5, Row: 21}); got != runeNode {
			t.Errorf("R1 = %q, want %q", got, runeNode)
		}
	})

	t.Run("link", func(t *testing.T) {
		lines := DrawMap(g, p, away, Mark{Kind: graph.HitLink, ID: "P2"})
		if got := runeAt(lines, Cell{Col: 105, Row: 11}); got != runeMarked {
			t.Errorf("P2 interior = %q, want %q", got, runeMarked)
		}
		if got := runeAt(lines, Cell{Col: 55, Row: 21}); got != runeLink {
			t.Errorf("P1 interior = %q, want %q", got, runeLink)
		}
		if got := runeAt(lines, Cell{Col: 105, Row: 21}); got != runeNode {
			t.Errorf("J1 = %q, want nodes drawn over marked links", got)
		}
	})
}

func TestDrawMap_NilGraph(t *testing.T) {
	lines := DrawMap(nil, NewProjection(geom.Bounds{}, 4, 3), Cell{Col: 1, Row: 1}, Mark{})
	want := []string{"    ", " +  ", "    "}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestLine(t *testing.T) {
	tests := []struct {
		name string
		a, b Cell
		want []Cell
	}{
		{"point", Cell{2, 2}, Cell{2, 2}, []Cell{{2, 2}}},
		{"diagonal", Cell{0, 0}, Cell{3, 3}, []Cell{{0, 0}, {1, 1}, {2, 2}, {3, 3}}},
		{"reverse horizontal", Cell{3, 0}, Cell{0, 0}, []Cell{{3, 0}, {2, 0}, {1, 0}, {0, 0}}},
		{"vertical up", Cell{1, 2}, Cell{1, 0}, []Cell{{1, 2}, {1, 1}, {1, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []Cell
			line(tt.a, tt.b, func(c Cell) { got = append(got, c) })
			if len(got) != len(tt.want) {
				t.Fatalf("visited %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("visit %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}
