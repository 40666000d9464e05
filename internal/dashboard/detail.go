package dashboard

import (
	"fmt"
	"strings"

	"github.com/smileynet/epaview/internal/geom"
	"github.com/smileynet/epaview/internal/graph"
)

// header summarises the loaded network for the top of the detail pane.
func (s snapshot) header() string {
	if !s.loaded {
		return "No network loaded"
	}
	sum := s.summary
	line := fmt.Sprintf("%s  %d nodes, %d links", headerText.Render(sum.File), sum.NodeCount, sum.LinkCount)
	if sum.Simulated {
		return line + "  " + okText.Render(fmt.Sprintf("simulated (%d periods, %.4g h)", sum.Periods, sum.Duration))
	}
	return line + "  " + mutedText.Render("not simulated")
}

func withUnits(v float64, units string) string {
	s := fmt.Sprintf("%.4g", v)
	if units != "" {
		s += " " + units
	}
	return s
}

func point(p geom.Point) string {
	return fmt.Sprintf("(%.4g, %.4g)", p.X, p.Y)
}

// nodeDetail describes node id, or "" when it is unknown.
func (s snapshot) nodeDetail(id string) string {
	if s.graph == nil {
		return ""
	}
	n, ok := s.graph.Node(id)
	if !ok {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", headerText.Render(fmt.Sprintf("Node %s (index %d)", n.ID, n.Index)))
	fmt.Fprintf(&b, "Elevation  %.4g\n", s.stats.NodeElevations[id])
	if n.Placed {
		fmt.Fprintf(&b, "Position   %s\n", point(n.Pos))
	} else {
		fmt.Fprintf(&b, "Position   %s\n", mutedText.Render("no coordinates"))
	}
	if p, ok := s.pressures[id]; ok {
		fmt.Fprintf(&b, "Pressure   %s %s\n", withUnits(p, s.summary.Units.Pressure), mutedText.Render("(time-averaged)"))
	} else {
		fmt.Fprintf(&b, "Pressure   %s\n", mutedText.Render("press r to simulate"))
	}

	links := s.graph.Incident(id)
	ids := make([]string, len(links))
	for i, e := range links {
		ids[i] = e.LinkID
	}
	if len(ids) == 0 {
		b.WriteString("Links      none\n")
	} else {
		fmt.Fprintf(&b, "Links      %s\n", strings.Join(ids, ", "))
	}
	return b.String()
}

// linkDetail describes link id, or "" when it is unknown.
func (s snapshot) linkDetail(id string) string {
	if s.graph == nil {
		return ""
	}
	e, ok := s.graph.Edge(id)
	if !ok {
		return ""
	}
	from, to := s.graph.Endpoints(e)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", headerText.Render(fmt.Sprintf("Link %s (index %d)", e.LinkID, e.Index)))
	fmt.Fprintf(&b, "From       %s %s\n", e.From, mutedText.Render(point(from)))
	fmt.Fprintf(&b, "To         %s %s\n", e.To, mutedText.Render(point(to)))
	fmt.Fprintf(&b, "Span       %.4g\n", geom.Distance(from, to))
	if f, ok := s.flows[id]; ok {
		fmt.Fprintf(&b, "Flow       %s %s\n", withUnits(f, s.summary.Units.Flow), mutedText.Render("(time-averaged)"))
	} else {
		fmt.Fprintf(&b, "Flow       %s\n", mutedText.Render("press r to simulate"))
	}
	return b.String()
}

// callout describes a pointer query result.
func (s snapshot) callout(at geom.Point, hit graph.Hit) string {
	where := mutedText.Render("at " + point(at))
	switch hit.Kind {
	case graph.HitNode:
		return markText.Render("▸ node "+hit.ID) + " " + where + "\n\n" + s.nodeDetail(hit.ID)
	case graph.HitLink:
		return markText.Render("▸ link "+hit.ID) + " " + where + "\n\n" + s.linkDetail(hit.ID)
	default:
		return "Nothing here " + where
	}
}
