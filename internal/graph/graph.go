// Package graph translates a loaded network into a drawable graph and
// answers pointer queries against it.
package graph

import (
	"github.com/smileynet/epaview/internal/geom"
)

// fallbackSpacing places nodes without coordinates on the diagonal at
// (idx*spacing, idx*spacing).
const fallbackSpacing = 10

// Topology is the subset of a loaded model the graph needs. Node and link
// indices are 1-based.
type Topology interface {
	NodeIDs() []string
	LinkIDs() []string
	NodeCoordinates() (map[string]geom.Point, error)
	LinkNodes(index int) (from, to int, err error)
}

// Node is one network node placed in world coordinates.
type Node struct {
	ID     string     `json:"id"`
	Index  int        `json:"index"`
	Pos    geom.Point `json:"pos"`
	Placed bool       `json:"placed"` // false when Pos is the fallback position
}

// Edge is one network link between two node IDs.
type Edge struct {
	LinkID string `json:"link_id"`
	Index  int    `json:"index"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Graph is the drawable form of a network.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	nodeIdx map[string]int
	edgeIdx map[string]int
}

// Build creates one graph node per network node and one edge per link
// whose endpoints resolve. A failed coordinate lookup places every node at
// its fallback position.
func Build(t Topology) *Graph {
	ids := t.NodeIDs()
	coords, err := t.NodeCoordinates()
	if err != nil {
		coords = nil
	}

	g := &Graph{
		Nodes:   make([]Node, len(ids)),
		nodeIdx: make(map[string]int, len(ids)),
		edgeIdx: make(map[string]int),
	}
	for i, id := range ids {
		idx := i + 1
		n := Node{ID: id, Index: idx}
		if p, ok := coords[id]; ok {
			n.Pos = p
			n.Placed = true
		} else {
			n.Pos = FallbackPosition(idx)
		}
		g.Nodes[i] = n
		g.nodeIdx[id] = i
	}

	for i, linkID := range t.LinkIDs() {
		from, to, err := t.LinkNodes(i + 1)
		if err != nil || from < 1 || to < 1 || from > len(ids) || to > len(ids) {
			continue
		}
		g.edgeIdx[linkID] = len(g.Edges)
		g.Edges = append(g.Edges, Edge{
			LinkID: linkID,
			Index:  i + 1,
			From:   ids[from-1],
			To:     ids[to-1],
		})
	}
	return g
}

// FallbackPosition is where a node without coordinates is drawn.
func FallbackPosition(idx int) geom.Point {
	return geom.Point{X: float64(idx * fallbackSpacing), Y: float64(idx * fallbackSpacing)}
}

// Node returns the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.nodeIdx[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Edge returns the edge for link id.
func (g *Graph) Edge(id string) (Edge, bool) {
	i, ok := g.edgeIdx[id]
	if !ok {
		return Edge{}, false
	}
	return g.Edges[i], true
}

// Endpoints returns the positions of an edge's end nodes.
func (g *Graph) Endpoints(e Edge) (from, to geom.Point) {
	a, _ := g.Node(e.From)
	b, _ := g.Node(e.To)
	return a.Pos, b.Pos
}

// Incident returns the edges touching node id, in link order.
func (g *Graph) Incident(id string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id || e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// Bounds returns the box around every node position.
func (g *Graph) Bounds() geom.Bounds {
	var b geom.Bounds
	for _, n := range g.Nodes {
		b = b.Extend(n.Pos)
	}
	return b
}
