package engine

import "strings"

// TimeSeries holds the results of an extended-period simulation. Each
// matrix is indexed [period][entity], where entity is the 0-based position
// in the model's node or link ordering.
type TimeSeries struct {
	Time []float64 // Seconds from simulation start, one per period.

	Pressure [][]float64
	Head     [][]float64
	Demand   [][]float64
	Quality  [][]float64

	Flow        [][]float64
	Velocity    [][]float64
	Headloss    [][]float64
	LinkQuality [][]float64

	Units Units
}

// Periods returns the number of reporting periods.
func (ts *TimeSeries) Periods() int { return len(ts.Time) }

// NodeVariable returns the node matrix for name (pressure, head, demand or
// quality), or nil if the name is not a node variable.
func (ts *TimeSeries) NodeVariable(name string) [][]float64 {
	switch strings.ToLower(name) {
	case "pressure":
		return ts.Pressure
	case "head":
		return ts.Head
	case "demand":
		return ts.Demand
	case "quality":
		return ts.Quality
	}
	return nil
}

// LinkVariable returns the link matrix for name (flow, velocity, headloss
// or quality), or nil if the name is not a link variable.
func (ts *TimeSeries) LinkVariable(name string) [][]float64 {
	switch strings.ToLower(name) {
	case "flow":
		return ts.Flow
	case "velocity":
		return ts.Velocity
	case "headloss":
		return ts.Headloss
	case "quality":
		return ts.LinkQuality
	}
	return nil
}

// Average returns the per-entity mean over all periods of m. It returns
// nil for an empty matrix. Rows shorter than the first are treated as
// missing values for the absent entities.
func Average(m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	width := len(m[0])
	sums := make([]float64, width)
	counts := make([]int, width)
	for _, row := range m {
		for i := 0; i < width && i < len(row); i++ {
			sums[i] += row[i]
			counts[i]++
		}
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= float64(counts[i])
		}
	}
	return sums
}
