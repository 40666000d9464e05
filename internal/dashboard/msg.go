// Package dashboard implements a two-pane TUI for browsing a loaded
// network: an element list or character map on the left, details on the
// right. Separate from internal/tui which handles the run display.
package dashboard

import (
	"context"

	"github.com/smileynet/epaview/internal/graph"
	"github.com/smileynet/epaview/internal/network"
)

// Mode is what the left pane shows.
type Mode int

const (
	ModeList Mode = iota // Element list with a detail pane.
	ModeMap              // Character map with a movable pointer.
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneLeft  Focus = iota // List or map has focus.
	PaneRight              // Detail viewport has focus.
)

// ListKind selects nodes or links in list mode.
type ListKind int

const (
	ListNodes ListKind = iota
	ListLinks
)

func (k ListKind) String() string {
	if k == ListLinks {
		return "Links"
	}
	return "Nodes"
}

// Network is the part of network.Wrapper the browser needs.
type Network interface {
	Statistics() network.Statistics
	Graph() *graph.Graph
	Summary() (network.Summary, error)
	NodePressures() map[string]float64
	LinkFlows() map[string]float64
	RunSimulation(ctx context.Context) error
}

var _ Network = (*network.Wrapper)(nil)

// snapshot is a copy of everything the view reads, so the update loop
// never touches the wrapper while a simulation runs in a command.
type snapshot struct {
	stats     network.Statistics
	graph     *graph.Graph
	summary   network.Summary
	loaded    bool
	pressures map[string]float64
	flows     map[string]float64
}

func takeSnapshot(n Network) snapshot {
	s := snapshot{
		stats:     n.Statistics(),
		graph:     n.Graph(),
		pressures: n.NodePressures(),
		flows:     n.LinkFlows(),
	}
	if sum, err := n.Summary(); err == nil {
		s.summary = sum
		s.loaded = true
	}
	return s
}

// simulationDoneMsg carries the outcome of a background simulation.
type simulationDoneMsg struct {
	snap snapshot
	err  error
}
