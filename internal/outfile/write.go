package outfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Write encodes res in the solver's layout. Counts in the prolog and the
// period count in the epilog are taken from the slice lengths, so a
// Results built by hand only needs its tables filled in.
func Write(w io.Writer, res *Results) error {
	bw := bufio.NewWriter(w)
	e := &encoder{w: bw}
	p := &res.Prolog

	nodes, links := len(p.NodeIDs), len(p.LinkIDs)
	for i, per := range res.Periods {
		if len(per.Pressure) != nodes || len(per.Flow) != links {
			return fmt.Errorf("outfile: period %d has %d nodes and %d links, want %d and %d",
				i, len(per.Pressure), len(per.Flow), nodes, links)
		}
	}

	e.write([15]int32{
		Magic, p.Version,
		int32(nodes), int32(len(p.TankNode)), int32(links), int32(len(res.Energy)), int32(p.ValveCount),
		int32(p.QualityFlag), int32(p.TraceNode), int32(p.FlowUnits), int32(p.PressureUnits),
		int32(p.StatsFlag), int32(p.ReportStart), int32(p.ReportStep), int32(p.Duration),
	})
	for _, t := range p.Title {
		e.str(t, titleLen)
	}
	e.str(p.InputFile, fileLen)
	e.str(p.ReportFile, fileLen)
	e.str(p.ChemicalName, labelLen)
	e.str(p.ChemicalUnits, labelLen)
	for _, id := range p.NodeIDs {
		e.str(id, idLen)
	}
	for _, id := range p.LinkIDs {
		e.str(id, idLen)
	}
	e.ints(p.LinkStart, links)
	e.ints(p.LinkEnd, links)
	e.ints(p.LinkType, links)
	e.ints(p.TankNode, len(p.TankNode))
	e.floats(p.TankArea, len(p.TankNode))
	e.floats(p.NodeElevation, nodes)
	e.floats(p.LinkLength, links)
	e.floats(p.LinkDiameter, links)

	for _, pe := range res.Energy {
		e.write(int32(pe.LinkIndex))
		e.write([6]float32{pe.Utilization, pe.Efficiency, pe.KWPerFlow, pe.AverageKW, pe.PeakKW, pe.CostPerDay})
	}
	e.write(res.PeakDemand)

	for _, per := range res.Periods {
		for _, v := range [][]float32{per.Demand, per.Head, per.Pressure, per.Quality} {
			e.floats(v, nodes)
		}
		for _, v := range [][]float32{per.Flow, per.Velocity, per.Headloss, per.LinkQuality,
			per.Status, per.Setting, per.Reaction, per.Friction} {
			e.floats(v, links)
		}
	}

	ep := res.Epilog
	e.write([4]float32{ep.BulkRate, ep.WallRate, ep.TankRate, ep.SourceRate})
	e.write([3]int32{int32(len(res.Periods)), int32(ep.Warning), Magic})

	if e.err != nil {
		return e.err
	}
	return bw.Flush()
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

func (e *encoder) str(s string, width int) {
	buf := make([]byte, width)
	copy(buf, s)
	e.write(buf)
}

// ints writes exactly n values, padding a short slice with zeros.
func (e *encoder) ints(v []int, n int) {
	out := make([]int32, n)
	for i := 0; i < n && i < len(v); i++ {
		out[i] = int32(v[i])
	}
	e.write(out)
}

func (e *encoder) floats(v []float32, n int) {
	out := make([]float32, n)
	copy(out, v)
	e.write(out)
}
