package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// Model is the root Bubble Tea model for the network browser.
// It manages a two-pane layout with mode-based routing and focus management.
type Model struct {
	ctx      context.Context
	net      Network
	snap     snapshot
	mode     Mode
	focus    Focus
	list     listState
	pointer  Cell
	hit      *graph.Hit
	at       geom.Point
	running  bool
	status   string
	err      error
	cache    *Cache
	width    int
	height   int
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
}

// NewModel creates a browser for net in list mode with left-pane focus.
// ctx bounds simulations started from the browser.
func NewModel(ctx context.Context, net Network) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	snap := takeSnapshot(net)
	m := Model{
		ctx:      ctx,
		net:      net,
		snap:     snap,
		mode:     ModeList,
		focus:    PaneLeft,
		list:     newListState(snap.stats.NodeIDs, snap.stats.LinkIDs),
		cache:    NewCache(),
		viewport: viewport.New(0, 0),
		help:     help.New(),
		spinner:  s,
	}
	m.refreshDetail()
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case simulationDoneMsg:
		m.running = false
		m.snap = msg.snap
		m.cache.Invalidate()
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
		} else {
			m.err = nil
			m.status = fmt.Sprintf("Simulation complete: %d periods", m.snap.summary.Periods)
		}
		m.refreshDetail()
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes key messages with global and mode-specific routing.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == PaneLeft {
			m.focus = PaneRight
		} else {
			m.focus = PaneLeft
		}
		return m, nil
	case "r":
		return m.simulate()
	case "m":
		if m.mode == ModeList {
			m.mode = ModeMap
		} else {
			m.mode = ModeList
		}
		m.resize()
		m.refreshDetail()
		return m, nil
	}

	if m.focus == PaneRight {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.mode == ModeMap {
		return m.handleMapKey(msg)
	}

	if msg.String() == "enter" {
		m.locate()
		return m, nil
	}
	m.list, _ = m.list.Update(msg)
	m.refreshDetail()
	return m, nil
}

func (m Model) handleMapKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	proj := m.projection()
	switch msg.String() {
	case "up", "k":
		m.pointer.Row--
	case "down", "j":
		m.pointer.Row++
	case "left", "h":
		m.pointer.Col--
	case "right":
		m.pointer.Col++
	case "enter":
		m.inspect()
		return m, nil
	default:
		return m, nil
	}
	m.pointer = proj.Clamp(m.pointer)
	return m, nil
}

// simulate starts a background simulation unless one is running.
func (m Model) simulate() (tea.Model, tea.Cmd) {
	if m.running || !m.snap.loaded {
		return m, nil
	}
	m.running = true
	m.err = nil
	m.status = "Simulating..."
	ctx, net := m.ctx, m.net
	run := func() tea.Msg {
		err := net.RunSimulation(ctx)
		return simulationDoneMsg{snap: takeSnapshot(net), err: err}
	}
	return m, tea.Batch(run, m.spinner.Tick)
}

// inspect hit-tests at the pointer and shows the callout.
func (m *Model) inspect() {
	if m.snap.graph == nil {
		return
	}
	proj := m.projection()
	at := proj.World(m.pointer)
	m.showHit(at, graph.HitTest(m.snap.graph, at, proj.Threshold(m.snap.graph)))
}

// locate switches to the map with the pointer on the selected element.
// The element is marked directly rather than hit-tested, since the
// pointer cell only approximates its position.
func (m *Model) locate() {
	id := m.list.SelectedID()
	if id == "" || m.snap.graph == nil {
		return
	}
	m.mode = ModeMap
	m.resize()
	proj := m.projection()
	if m.list.kind == ListLinks {
		e, ok := m.snap.graph.Edge(id)
		if !ok {
			return
		}
		a, b := m.snap.graph.Endpoints(e)
		mid := geom.Midpoint(a, b)
		m.pointer = proj.Cell(mid)
		m.showHit(mid, graph.Hit{Kind: graph.HitLink, ID: e.LinkID, Index: e.Index, Anchor: mid})
		return
	}
	n, ok := m.snap.graph.Node(id)
	if !ok {
		return
	}
	m.pointer = proj.Cell(n.Pos)
	m.showHit(n.Pos, graph.Hit{Kind: graph.HitNode, ID: n.ID, Index: n.Index, Anchor: n.Pos})
}

func (m *Model) showHit(at geom.Point, hit graph.Hit) {
	m.hit = &hit
	m.at = at
	m.viewport.SetContent(m.snap.callout(at, hit))
	m.viewport.GotoTop()
}

// refreshDetail fills the detail viewport for the current mode.
func (m *Model) refreshDetail() {
	if m.mode == ModeMap {
		if m.hit == nil {
			m.viewport.SetContent(mutedText.Render("Move the pointer and press enter to inspect."))
			return
		}
		m.viewport.SetContent(m.snap.callout(m.at, *m.hit))
		return
	}

	id := m.list.SelectedID()
	if id == "" {
		m.viewport.SetContent(mutedText.Render("Nothing selected."))
		return
	}
	detail, ok := m.cache.Get(m.list.kind, id)
	if !ok {
		if m.list.kind == ListLinks {
			detail = m.snap.linkDetail(id)
		} else {
			detail = m.snap.nodeDetail(id)
		}
		m.cache.Set(m.list.kind, id, detail)
	}
	m.viewport.SetContent(detail)
	m.viewport.GotoTop()
}

// resize fits the viewport and pointer to the current pane sizes.
func (m *Model) resize() {
	_, right := m.paneWidths()
	m.viewport.Width = max(right-borderChrome, 0)
	m.viewport.Height = max(m.contentHeight()-statusLines, 1)
	if m.mode == ModeMap && m.pointer == (Cell{}) && m.hit == nil {
		cols, rows := m.projection().Size()
		m.pointer = Cell{Col: cols / 2, Row: rows / 2}
	}
	m.pointer = m.projection().Clamp(m.pointer)
}

// statusLines is the header block above the detail viewport.
const statusLines = 3

func (m Model) paneWidths() (left, right int) {
	if m.mode == ModeMap {
		return MapPaneWidths(m.width)
	}
	return PaneWidths(m.width)
}

func (m Model) projection() Projection {
	left, _ := m.paneWidths()
	var bounds geom.Bounds
	if m.snap.graph != nil {
		bounds = m.snap.graph.Bounds()
	}
	return NewProjection(bounds, left-borderChrome, m.contentHeight())
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome and the help bar.
func (m Model) contentHeight() int {
	h := m.height - borderChrome - helpBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// View renders the two-pane layout with help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth, rightWidth := m.paneWidths()
	contentHeight := m.contentHeight()

	var leftStyle, rightStyle lipgloss.Style
	if m.focus == PaneLeft {
		leftStyle = FocusedBorder()
		rightStyle = UnfocusedBorder()
	} else {
		leftStyle = UnfocusedBorder()
		rightStyle = FocusedBorder()
	}

	leftStyle = leftStyle.
		Width(leftWidth - borderChrome).
		Height(contentHeight)
	rightStyle = rightStyle.
		Width(rightWidth - borderChrome).
		Height(contentHeight)

	leftPane := leftStyle.Render(m.viewLeft(contentHeight))
	rightPane := rightStyle.Render(m.viewRight())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpView := m.help.View(HelpBindings(m.mode))

	return lipgloss.JoinVertical(lipgloss.Left, panes, helpView)
}

// viewLeft renders the element list or the map.
func (m Model) viewLeft(height int) string {
	if !m.snap.loaded {
		return mutedText.Render("No network loaded")
	}
	if m.mode == ModeList {
		return m.list.View(height)
	}
	var mark Mark
	if m.hit != nil {
		mark = Mark{Kind: m.hit.Kind, ID: m.hit.ID}
	}
	return strings.Join(DrawMap(m.snap.graph, m.projection(), m.pointer, mark), "\n")
}

// viewRight renders the status header and the detail viewport.
func (m Model) viewRight() string {
	var status string
	switch {
	case m.running:
		status = m.spinner.View() + " " + m.status
	case m.err != nil:
		status = errorText.Render("Error: " + m.err.Error())
	default:
		status = m.status
	}
	return m.snap.header() + "\n" + status + "\n\n" + m.viewport.View()
}
