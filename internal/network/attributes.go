package network

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/smileynet/epaview/internal/engine"
)

// NodeAttributes and LinkAttributes list the names accepted by
// NodeAttribute and LinkAttribute.
var (
	NodeAttributes = []string{"elevation", "pressure", "head", "demand", "quality"}
	LinkAttributes = []string{"flow", "velocity", "headloss", "quality"}
)

// NodePressures returns each node's pressure averaged over all periods,
// or nil before a simulation.
func (w *Wrapper) NodePressures() map[string]float64 {
	if w.series == nil {
		return nil
	}
	return keyed(w.stats.NodeIDs, engine.Average(w.series.Pressure))
}

// LinkFlows returns each link's flow averaged over all periods, or nil
// before a simulation.
func (w *Wrapper) LinkFlows() map[string]float64 {
	if w.series == nil {
		return nil
	}
	return keyed(w.stats.LinkIDs, engine.Average(w.series.Flow))
}

// NodeElevations returns a copy of the cached elevations, or nil.
func (w *Wrapper) NodeElevations() map[string]float64 {
	if w.stats.NodeElevations == nil {
		return nil
	}
	return w.stats.clone().NodeElevations
}

// NodeAttribute returns a per-node value for name. Elevation comes from
// the network; every other attribute is a simulation result averaged over
// all periods, and is nil before a simulation.
func (w *Wrapper) NodeAttribute(name string) (map[string]float64, error) {
	return w.NodeAttributeAt(name, -1)
}

// NodeAttributeAt is NodeAttribute at one reporting period. A negative
// period averages over all periods; a period past the end clamps to 0.
func (w *Wrapper) NodeAttributeAt(name string, period int) (map[string]float64, error) {
	if w.model == nil {
		return nil, &Error{Op: "attribute", Err: ErrNotLoaded}
	}
	name = strings.ToLower(name)
	if name == "elevation" {
		return w.NodeElevations(), nil
	}
	if !contains(NodeAttributes, name) {
		return nil, &Error{Op: "attribute", Path: w.path, Err: fmt.Errorf("node %q: %w", name, ErrUnknownAttribute)}
	}
	if w.series == nil {
		return nil, nil
	}
	return keyed(w.stats.NodeIDs, pick(w.series.NodeVariable(name), period)), nil
}

// LinkAttribute returns a per-link simulation result averaged over all
// periods, or nil before a simulation.
func (w *Wrapper) LinkAttribute(name string) (map[string]float64, error) {
	return w.LinkAttributeAt(name, -1)
}

// LinkAttributeAt is LinkAttribute at one reporting period, with the same
// period rules as NodeAttributeAt.
func (w *Wrapper) LinkAttributeAt(name string, period int) (map[string]float64, error) {
	if w.model == nil {
		return nil, &Error{Op: "attribute", Err: ErrNotLoaded}
	}
	name = strings.ToLower(name)
	if !contains(LinkAttributes, name) {
		return nil, &Error{Op: "attribute", Path: w.path, Err: fmt.Errorf("link %q: %w", name, ErrUnknownAttribute)}
	}
	if w.series == nil {
		return nil, nil
	}
	return keyed(w.stats.LinkIDs, pick(w.series.LinkVariable(name), period)), nil
}

// ClampPeriod maps a requested period onto the result range: values past
// the end become 0.
func ClampPeriod(period, periods int) int {
	if period < 0 || period >= periods {
		return 0
	}
	return period
}

func pick(m [][]float64, period int) []float64 {
	if period < 0 {
		return engine.Average(m)
	}
	if len(m) == 0 {
		return nil
	}
	return m[ClampPeriod(period, len(m))]
}

// keyed zips ids with values, skipping ids past the end of values.
func keyed(ids []string, values []float64) map[string]float64 {
	out := make(map[string]float64, len(ids))
	for i, id := range ids {
		if i < len(values) {
			out[id] = values[i]
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Range summarises a set of values.
type Range struct {
	Min   float64 `json:"min"`
	Mean  float64 `json:"mean"`
	Max   float64 `json:"max"`
	MinID string  `json:"min_id,omitempty"`
	MaxID string  `json:"max_id,omitempty"`
}

func rangeOf(values map[string]float64) *Range {
	if len(values) == 0 {
		return nil
	}
	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	r := &Range{Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, id := range ids {
		v := values[id]
		sum += v
		if v < r.Min {
			r.Min, r.MinID = v, id
		}
		if v > r.Max {
			r.Max, r.MaxID = v, id
		}
	}
	r.Mean = sum / float64(len(values))
	return r
}

// Summary is a compact, serialisable description of the loaded network
// and its results.
type Summary struct {
	File      string       `json:"file"`
	Path      string       `json:"path"`
	Engine    string       `json:"engine"`
	NodeCount int          `json:"node_count"`
	LinkCount int          `json:"link_count"`
	Simulated bool         `json:"simulated"`
	Periods   int          `json:"periods"`
	Duration  float64      `json:"duration_hours"`
	Units     engine.Units `json:"units"`
	Elevation *Range       `json:"elevation,omitempty"`
	Pressure  *Range       `json:"pressure,omitempty"`
	Flow      *Range       `json:"flow,omitempty"`
	Velocity  *Range       `json:"velocity,omitempty"`
}

// Summary describes the loaded network. It fails before a load.
func (w *Wrapper) Summary() (Summary, error) {
	if w.model == nil {
		return Summary{}, &Error{Op: "summary", Err: ErrNotLoaded}
	}
	s := Summary{
		File:      w.FileName(),
		Path:      w.path,
		Engine:    w.engine.Name(),
		NodeCount: w.stats.NodeCount,
		LinkCount: w.stats.LinkCount,
		Simulated: w.series != nil,
		Units:     w.model.Units(),
		Elevation: rangeOf(w.stats.NodeElevations),
	}
	if w.series != nil {
		s.Units = w.series.Units
		s.Periods = w.series.Periods()
		if n := len(w.series.Time); n > 0 {
			s.Duration = (w.series.Time[n-1] - w.series.Time[0]) / 3600
		}
		s.Pressure = rangeOf(w.NodePressures())
		s.Flow = rangeOf(w.LinkFlows())
		velocity, _ := w.LinkAttribute("velocity")
		s.Velocity = rangeOf(velocity)
	}
	return s, nil
}
