package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/smileynet/epaview/internal/engine"
	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
	"github.com/smileynet/epaview/internal/network"
)

// Sized so the map is 111x12 cells over a padded 110x110 world box:
// one world unit per column and ten per row.
const (
	testWidth  = 169
	testHeight = 15
)

// squareModel is an L-shaped network: R1 -P1-> J1 -P2-> J2.
func squareModel() *engine.MockModel {
	m := engine.SampleModel()
	m.Nodes = []string{"R1", "J1", "J2"}
	m.Links = [][2]int{{1, 2}, {2, 3}}
	m.Elevations = map[string]float64{"R1": 100, "J1": 50, "J2": 40}
	m.Coordinates = map[string]geom.Point{
		"R1": {X: 0, Y: 0},
		"J1": {X: 100, Y: 0},
		"J2": {X: 100, Y: 100},
	}
	return m
}

func loadedNetwork(t *testing.T) *network.Wrapper {
	t.Helper()
	path := filepath.Join(t.TempDir(), "net.inp")
	if err := os.WriteFile(path, []byte("[TITLE]\nsquare\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	eng := &engine.MockEngine{
		NameVal: "mock",
		LoadFunc: func(ctx context.Context, path string) (engine.Model, error) {
			return squareModel(), nil
		},
	}
	w := network.New(eng)
	if err := w.LoadFile(context.Background(), path); err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	return w
}

func newSizedModel(t *testing.T, net Network, w, h int) Model {
	t.Helper()
	m := NewModel(context.Background(), net)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return updated.(Model)
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(t *testing.T, m Model, msgs ...tea.KeyMsg) Model {
	t.Helper()
	for _, msg := range msgs {
		updated, _ := m.Update(msg)
		m = updated.(Model)
	}
	return m
}

// fakeNetwork is a Network whose simulation outcome is injected.
type fakeNetwork struct {
	*network.Wrapper
	RunFunc func(ctx context.Context) error
}

func (f *fakeNetwork) RunSimulation(ctx context.Context) error {
	if f.RunFunc != nil {
		return f.RunFunc(ctx)
	}
	return f.Wrapper.RunSimulation(ctx)
}

func TestNewModel_Defaults(t *testing.T) {
	m := NewModel(context.Background(), loadedNetwork(t))
	if m.mode != ModeList {
		t.Errorf("mode = %d, want ModeList (%d)", m.mode, ModeList)
	}
	if m.focus != PaneLeft {
		t.Errorf("focus = %d, want PaneLeft (%d)", m.focus, PaneLeft)
	}
	if got := m.list.SelectedID(); got != "R1" {
		t.Errorf("selected = %q, want R1", got)
	}
	if !m.snap.loaded {
		t.Error("snapshot should be loaded")
	}
	if m.cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1 after first detail", m.cache.Len())
	}
}

func TestModel_ViewBeforeResize(t *testing.T) {
	m := NewModel(context.Background(), loadedNetwork(t))
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q, want Initializing...", got)
	}
}

func TestModel_TabTogglesFocus(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != PaneRight {
		t.Errorf("after first Tab: focus = %d, want PaneRight (%d)", m.focus, PaneRight)
	}

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != PaneLeft {
		t.Errorf("after second Tab: focus = %d, want PaneLeft (%d)", m.focus, PaneLeft)
	}
}

func TestModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
	}{
		{"q", keyRune('q')},
		{"ctrl+c", tea.KeyMsg{Type: tea.KeyCtrlC}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
			_, cmd := m.Update(tt.key)
			if cmd == nil {
				t.Fatal("expected quit command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected tea.QuitMsg")
			}
		})
	}
}

func TestModel_ListNavigation(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)

	// Given the node list, when moving down, then J1 is selected with its detail.
	m = press(t, m, keyRune('j'))
	if got := m.list.SelectedID(); got != "J1" {
		t.Fatalf("selected = %q, want J1", got)
	}
	if view := m.viewport.View(); !containsPlainText(view, "Node J1 (index 2)") {
		t.Errorf("detail should describe J1, got:\n%s", view)
	}

	// When switching to links, then the link cursor starts at P1.
	m = press(t, m, keyRune('l'))
	if got := m.list.SelectedID(); got != "P1" {
		t.Fatalf("selected = %q, want P1", got)
	}
	view := m.viewport.View()
	if !containsPlainText(view, "From       R1") || !containsPlainText(view, "To         J1") {
		t.Errorf("detail should show P1 endpoints, got:\n%s", view)
	}

	// When switching back, then the node cursor is remembered.
	m = press(t, m, keyRune('n'))
	if got := m.list.SelectedID(); got != "J1" {
		t.Errorf("selected = %q, want J1", got)
	}
}

func TestModel_DetailBeforeSimulation(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
	view := m.viewport.View()
	for _, want := range []string{"Elevation  100", "Position   (0, 0)", "press r to simulate", "Links      P1"} {
		if !containsPlainText(view, want) {
			t.Errorf("detail missing %q, got:\n%s", want, view)
		}
	}
}

func TestModel_FocusRightRoutesToViewport(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab}, keyRune('j'))
	if got := m.list.SelectedID(); got != "R1" {
		t.Errorf("list moved with right focus: selected = %q, want R1", got)
	}
}

func TestModel_ToggleMap(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)

	m = press(t, m, keyRune('m'))
	if m.mode != ModeMap {
		t.Fatalf("mode = %d, want ModeMap", m.mode)
	}
	if m.pointer != (Cell{Col: 55, Row: 6}) {
		t.Errorf("pointer = %+v, want centre {55 6}", m.pointer)
	}
	if !containsPlainText(m.viewport.View(), "press enter to inspect") {
		t.Errorf("map detail should prompt for inspection, got:\n%s", m.viewport.View())
	}

	m = press(t, m, keyRune('m'))
	if m.mode != ModeList {
		t.Errorf("mode = %d, want ModeList", m.mode)
	}
}

func TestModel_MapPointerClamps(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
	m = press(t, m, keyRune('m'))

	for range 20 {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyUp})
	}
	if m.pointer.Row != 0 {
		t.Errorf("row = %d, want 0 after moving past the top", m.pointer.Row)
	}
	for range 200 {
		m = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	}
	if m.pointer.Col != 110 {
		t.Errorf("col = %d, want 110 after moving past the right edge", m.pointer.Col)
	}
	m = press(t, m, keyRune('h'), keyRune('j'))
	if m.pointer != (Cell{Col: 109, Row: 1}) {
		t.Errorf("pointer = %+v, want {109 1}", m.pointer)
	}
}

func TestModel_Inspect(t *testing.T) {
	tests := []struct {
		name    string
		pointer Cell
		kind    graph.HitKind
		id      string
		want    string
	}{
		{"empty space", Cell{Col: 55, Row: 6}, graph.HitNone, "", "Nothing here"},
		{"beside a link", Cell{Col: 55, Row: 11}, graph.HitLink, "P1", "▸ link P1"},
		{"past a link end", Cell{Col: 105, Row: 0}, graph.HitNode, "J2", "▸ node J2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
			m = press(t, m, keyRune('m'))
			m.pointer = tt.pointer

			m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

			if m.hit == nil {
				t.Fatal("hit not recorded")
			}
			if m.hit.Kind != tt.kind || m.hit.ID != tt.id {
				t.Errorf("hit = %s %q, want %s %q", m.hit.Kind, m.hit.ID, tt.kind, tt.id)
			}
			if view := m.viewport.View(); !containsPlainText(view, tt.want) {
				t.Errorf("callout missing %q, got:\n%s", tt.want, view)
			}
		})
	}
}

func TestModel_LocateFromList(t *testing.T) {
	tests := []struct {
		name    string
		keys    []tea.KeyMsg
		kind    graph.HitKind
		id      string
		anchor  geom.Point
	}{
		{"node", []tea.KeyMsg{keyRune('j'), keyRune('j')}, graph.HitNode, "J2", geom.Point{X: 100, Y: 100}},
		{"link", []tea.KeyMsg{keyRune('l'), keyRune('j')}, graph.HitLink, "P2", geom.Point{X: 100, Y: 50}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
			m = press(t, m, tt.keys...)

			m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

			if m.mode != ModeMap {
				t.Fatalf("mode = %d, want ModeMap", m.mode)
			}
			if m.hit == nil || m.hit.Kind != tt.kind || m.hit.ID != tt.id {
				t.Fatalf("hit = %+v, want %s %s", m.hit, tt.kind, tt.id)
			}
			if m.hit.Anchor != tt.anchor {
				t.Errorf("anchor = %+v, want %+v", m.hit.Anchor, tt.anchor)
			}
			if m.pointer.Col != 105 {
				t.Errorf("pointer column = %d, want 105", m.pointer.Col)
			}
		})
	}
}

func TestModel_MapViewMarksSelection(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
	m = press(t, m, keyRune('j'), keyRune('j'), tea.KeyMsg{Type: tea.KeyEnter})

	view := m.View()
	if !containsPlainText(view, "+") {
		t.Error("map should draw the pointer")
	}
	if !containsPlainText(view, "o") {
		t.Error("map should draw unmarked nodes")
	}
	if !containsPlainText(view, "▸ node J2") {
		t.Error("detail pane should show the located node")
	}
}

func TestModel_SimulateRefreshesSnapshot(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)

	updated, cmd := m.Update(keyRune('r'))
	m = updated.(Model)
	if !m.running {
		t.Fatal("model should be running after r")
	}
	if !containsPlainText(m.View(), "Simulating...") {
		t.Error("view should show simulation progress")
	}

	// A second r while running is ignored.
	if _, again := m.Update(keyRune('r')); again != nil {
		t.Error("r while running should not start another simulation")
	}

	var done *simulationDoneMsg
	for _, msg := range execBatch(t, cmd) {
		if d, ok := msg.(simulationDoneMsg); ok {
			done = &d
		}
	}
	if done == nil {
		t.Fatal("simulate command did not produce simulationDoneMsg")
	}

	updated, _ = m.Update(*done)
	m = updated.(Model)
	if m.running {
		t.Error("model should stop running")
	}
	if m.status != "Simulation complete: 3 periods" {
		t.Errorf("status = %q", m.status)
	}
	view := m.viewport.View()
	if !containsPlainText(view, "Pressure   42 psi") {
		t.Errorf("detail should show the averaged pressure, got:\n%s", view)
	}
	if !containsPlainText(m.View(), "simulated (3 periods, 2 h)") {
		t.Error("header should report the simulation")
	}
}

func TestModel_SimulateFailure(t *testing.T) {
	boom := errors.New("solver diverged")
	net := &fakeNetwork{
		Wrapper: loadedNetwork(t),
		RunFunc: func(context.Context) error { return boom },
	}
	m := newSizedModel(t, net, testWidth, testHeight)

	updated, cmd := m.Update(keyRune('r'))
	m = updated.(Model)
	for _, msg := range execBatch(t, cmd) {
		updated, _ = m.Update(msg)
		m = updated.(Model)
	}

	if !errors.Is(m.err, boom) {
		t.Errorf("err = %v, want %v", m.err, boom)
	}
	if !containsPlainText(m.View(), "Error: solver diverged") {
		t.Error("view should show the simulation error")
	}
}

func TestModel_SimulateIgnoredWhenNotLoaded(t *testing.T) {
	m := newSizedModel(t, network.New(engine.SampleEngine()), testWidth, testHeight)

	updated, cmd := m.Update(keyRune('r'))
	if cmd != nil {
		t.Error("r without a network should do nothing")
	}
	m = updated.(Model)
	if m.running {
		t.Error("model should not be running")
	}
	if !containsPlainText(m.View(), "No network loaded") {
		t.Error("view should say no network is loaded")
	}
}

func TestModel_ListView(t *testing.T) {
	m := newSizedModel(t, loadedNetwork(t), testWidth, testHeight)
	view := m.View()
	for _, want := range []string{"Nodes (3)", CursorMarker + "  1 R1", "net.inp", "3 nodes, 2 links", "not simulated"} {
		if !containsPlainText(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

// TestModel_Teatest_MapFlow drives the browser through a program via teatest.
func TestModel_Teatest_MapFlow(t *testing.T) {
	m := NewModel(context.Background(), loadedNetwork(t))
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(testWidth, testHeight))

	tm.Send(keyRune('l'))
	tm.Send(keyRune('j'))
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})
	tm.Send(keyRune('q'))

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if final.mode != ModeMap {
		t.Errorf("mode = %d, want ModeMap", final.mode)
	}
	if final.hit == nil || final.hit.ID != "P2" {
		t.Errorf("hit = %+v, want link P2", final.hit)
	}
}
