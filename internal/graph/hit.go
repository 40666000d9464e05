package graph

import (
	"math"

	"github.com/smileynet/epaview/internal/geom"
)

// thresholdFraction of the larger axis span is the default pick radius.
const thresholdFraction = 0.05

// HitKind says what a pointer query landed on.
type HitKind int

const (
	HitNone HitKind = iota
	HitNode
	HitLink
)

func (k HitKind) String() string {
	switch k {
	case HitNode:
		return "node"
	case HitLink:
		return "link"
	default:
		return "none"
	}
}

// Hit is the result of a pointer query. Anchor is where a callout should
// point: the node position, or the midpoint of the link.
type Hit struct {
	Kind     HitKind    `json:"kind"`
	ID       string     `json:"id,omitempty"`
	Index    int        `json:"index,omitempty"`
	Distance float64    `json:"distance"`
	Anchor   geom.Point `json:"anchor"`
}

// DefaultThreshold returns 5% of the larger axis span of b. An empty or
// degenerate box yields a threshold of zero, which only matches exact hits.
func DefaultThreshold(b geom.Bounds) float64 {
	if b.Empty() {
		return 0
	}
	return b.Span() * thresholdFraction
}

// HitTest finds the element nearest to p within threshold. The nearest
// node wins unless a link is strictly closer. Zero-length links are never
// hit. It runs in time linear in the size of the graph.
func HitTest(g *Graph, p geom.Point, threshold float64) Hit {
	bestNode := Hit{Kind: HitNone, Distance: math.Inf(1)}
	for _, n := range g.Nodes {
		if d := geom.Distance(p, n.Pos); d < bestNode.Distance {
			bestNode = Hit{Kind: HitNode, ID: n.ID, Index: n.Index, Distance: d, Anchor: n.Pos}
		}
	}

	bestLink := Hit{Kind: HitNone, Distance: math.Inf(1)}
	for _, e := range g.Edges {
		a, b := g.Endpoints(e)
		d, _, ok := geom.SegmentDistance(p, a, b)
		if !ok {
			continue
		}
		if d < bestLink.Distance {
			bestLink = Hit{Kind: HitLink, ID: e.LinkID, Index: e.Index, Distance: d, Anchor: geom.Midpoint(a, b)}
		}
	}

	switch {
	case bestLink.Kind == HitLink && bestLink.Distance <= threshold && bestLink.Distance < bestNode.Distance:
		return bestLink
	case bestNode.Kind == HitNode && bestNode.Distance <= threshold:
		return bestNode
	default:
		return Hit{Kind: HitNone}
	}
}
