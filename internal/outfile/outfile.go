// Package outfile decodes the binary results file written by the EPANET
// 2.x solver. The file has four parts: a prolog describing the network, an
// energy section with pump usage, one block of float32 results per
// reporting period, and an epilog that repeats the magic number.
//
// All integers are little-endian int32 and all reals are float32.
package outfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Magic opens and closes every valid results file.
const Magic int32 = 516114521

// Fixed field widths in the prolog.
const (
	titleLen = 80
	fileLen  = 260
	labelLen = 32
	idLen    = 32

	pumpRecordLen = 4 + 6*4
	epilogLen     = 4*4 + 3*4
	nodeVars      = 4
	linkVars      = 8
)

var (
	// ErrBadMagic means the file does not start or end with Magic.
	ErrBadMagic = errors.New("outfile: bad magic number")

	// ErrTruncated means the file is shorter than its prolog declares or
	// the period count disagrees with the body size.
	ErrTruncated = errors.New("outfile: truncated or inconsistent file")
)

var flowUnitNames = []string{"CFS", "GPM", "MGD", "IMGD", "AFD", "LPS", "LPM", "MLD", "CMH", "CMD"}
var pressureUnitNames = []string{"psi", "m", "kPa"}

// Prolog describes the network and run settings.
type Prolog struct {
	Version       int32
	NodeCount     int
	TankCount     int
	LinkCount     int
	PumpCount     int
	ValveCount    int
	QualityFlag   int // 0 none, 1 chemical, 2 age, 3 trace.
	TraceNode     int
	FlowUnits     int
	PressureUnits int
	StatsFlag     int
	ReportStart   int // Seconds.
	ReportStep    int // Seconds.
	Duration      int // Seconds.

	Title         [3]string
	InputFile     string
	ReportFile    string
	ChemicalName  string
	ChemicalUnits string

	NodeIDs []string
	LinkIDs []string

	// Connectivity and tank tables use 1-based node indices.
	LinkStart []int
	LinkEnd   []int
	LinkType  []int
	TankNode  []int
	TankArea  []float32

	NodeElevation []float32
	LinkLength    []float32
	LinkDiameter  []float32
}

// FlowUnitsName returns the flow unit label, e.g. "GPM".
func (p *Prolog) FlowUnitsName() string {
	if p.FlowUnits < 0 || p.FlowUnits >= len(flowUnitNames) {
		return "unknown"
	}
	return flowUnitNames[p.FlowUnits]
}

// PressureUnitsName returns the pressure unit label, e.g. "psi".
func (p *Prolog) PressureUnitsName() string {
	if p.PressureUnits < 0 || p.PressureUnits >= len(pressureUnitNames) {
		return "unknown"
	}
	return pressureUnitNames[p.PressureUnits]
}

// VelocityUnitsName returns "ft/s" for US flow units and "m/s" for SI.
func (p *Prolog) VelocityUnitsName() string {
	if p.FlowUnits >= 5 {
		return "m/s"
	}
	return "ft/s"
}

// PumpEnergy is one pump's energy usage summary.
type PumpEnergy struct {
	LinkIndex   int // 1-based.
	Utilization float32
	Efficiency  float32
	KWPerFlow   float32
	AverageKW   float32
	PeakKW      float32
	CostPerDay  float32
}

// Period holds one reporting period. Node slices have NodeCount entries,
// link slices LinkCount, in engine order.
type Period struct {
	Demand   []float32
	Head     []float32
	Pressure []float32
	Quality  []float32

	Flow        []float32
	Velocity    []float32
	Headloss    []float32
	LinkQuality []float32
	Status      []float32
	Setting     []float32
	Reaction    []float32
	Friction    []float32
}

// Epilog closes the file.
type Epilog struct {
	BulkRate   float32
	WallRate   float32
	TankRate   float32
	SourceRate float32
	Periods    int
	Warning    int
}

// Results is a fully decoded results file.
type Results struct {
	Prolog     Prolog
	Energy     []PumpEnergy
	PeakDemand float32
	Periods    []Period
	Epilog     Epilog
}

// Times returns the simulation time in seconds of each reporting period.
func (r *Results) Times() []float64 {
	times := make([]float64, len(r.Periods))
	for i := range times {
		times[i] = float64(r.Prolog.ReportStart + i*r.Prolog.ReportStep)
	}
	return times
}

// Open reads and decodes the file at path.
func Open(path string) (*Results, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode parses a complete results file held in memory.
func Decode(data []byte) (*Results, error) {
	if len(data) < 4+epilogLen {
		return nil, ErrTruncated
	}

	ep, err := decodeEpilog(data[len(data)-epilogLen:])
	if err != nil {
		return nil, err
	}

	d := &decoder{r: bytes.NewReader(data[:len(data)-epilogLen])}
	res := &Results{Epilog: ep}
	if err := d.prolog(&res.Prolog); err != nil {
		return nil, err
	}
	d.energy(res)
	if d.err != nil {
		return nil, d.err
	}

	p := &res.Prolog
	periodLen := 4 * (nodeVars*p.NodeCount + linkVars*p.LinkCount)
	if ep.Periods < 0 || d.r.Len() != ep.Periods*periodLen {
		return nil, fmt.Errorf("%w: %d bytes of results for %d periods", ErrTruncated, d.r.Len(), ep.Periods)
	}

	res.Periods = make([]Period, ep.Periods)
	for i := range res.Periods {
		d.period(&res.Periods[i], p.NodeCount, p.LinkCount)
	}
	if d.err != nil {
		return nil, d.err
	}
	return res, nil
}

func decodeEpilog(b []byte) (Epilog, error) {
	var raw struct {
		Rates   [4]float32
		Periods int32
		Warning int32
		Magic   int32
	}
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &raw); err != nil {
		return Epilog{}, ErrTruncated
	}
	if raw.Magic != Magic {
		return Epilog{}, ErrBadMagic
	}
	return Epilog{
		BulkRate:   raw.Rates[0],
		WallRate:   raw.Rates[1],
		TankRate:   raw.Rates[2],
		SourceRate: raw.Rates[3],
		Periods:    int(raw.Periods),
		Warning:    int(raw.Warning),
	}, nil
}

// decoder records the first read error and turns later reads into no-ops.
type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err != nil {
		return
	}
	if err := binary.Read(d.r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = ErrTruncated
		}
		d.err = err
	}
}

func (d *decoder) int() int {
	var v int32
	d.read(&v)
	return int(v)
}

func (d *decoder) ints(n int) []int {
	raw := make([]int32, n)
	d.read(raw)
	out := make([]int, n)
	for i, v := range raw {
		out[i] = int(v)
	}
	return out
}

func (d *decoder) floats(n int) []float32 {
	out := make([]float32, n)
	d.read(out)
	return out
}

func (d *decoder) str(n int) string {
	buf := make([]byte, n)
	d.read(buf)
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return strings.TrimSpace(string(buf))
}

func (d *decoder) strs(count, width int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = d.str(width)
	}
	return out
}

func (d *decoder) prolog(p *Prolog) error {
	var head [15]int32
	d.read(&head)
	if d.err != nil {
		return d.err
	}
	if head[0] != Magic {
		return ErrBadMagic
	}
	p.Version = head[1]
	p.NodeCount = int(head[2])
	p.TankCount = int(head[3])
	p.LinkCount = int(head[4])
	p.PumpCount = int(head[5])
	p.ValveCount = int(head[6])
	p.QualityFlag = int(head[7])
	p.TraceNode = int(head[8])
	p.FlowUnits = int(head[9])
	p.PressureUnits = int(head[10])
	p.StatsFlag = int(head[11])
	p.ReportStart = int(head[12])
	p.ReportStep = int(head[13])
	p.Duration = int(head[14])

	// Counts come from the file; reject values that cannot fit in what is left
	// before allocating for them.
	minLen := p.NodeCount*(idLen+4) + p.LinkCount*(idLen+5*4) + p.TankCount*8
	if p.NodeCount < 0 || p.LinkCount < 0 || p.TankCount < 0 || p.PumpCount < 0 || minLen > d.r.Len() {
		return ErrTruncated
	}

	for i := range p.Title {
		p.Title[i] = d.str(titleLen)
	}
	p.InputFile = d.str(fileLen)
	p.ReportFile = d.str(fileLen)
	p.ChemicalName = d.str(labelLen)
	p.ChemicalUnits = d.str(labelLen)

	p.NodeIDs = d.strs(p.NodeCount, idLen)
	p.LinkIDs = d.strs(p.LinkCount, idLen)
	p.LinkStart = d.ints(p.LinkCount)
	p.LinkEnd = d.ints(p.LinkCount)
	p.LinkType = d.ints(p.LinkCount)
	p.TankNode = d.ints(p.TankCount)
	p.TankArea = d.floats(p.TankCount)
	p.NodeElevation = d.floats(p.NodeCount)
	p.LinkLength = d.floats(p.LinkCount)
	p.LinkDiameter = d.floats(p.LinkCount)
	return d.err
}

func (d *decoder) energy(res *Results) {
	if res.Prolog.PumpCount*pumpRecordLen > d.r.Len() {
		d.err = ErrTruncated
		return
	}
	res.Energy = make([]PumpEnergy, res.Prolog.PumpCount)
	for i := range res.Energy {
		e := &res.Energy[i]
		e.LinkIndex = d.int()
		var v [6]float32
		d.read(&v)
		e.Utilization, e.Efficiency, e.KWPerFlow = v[0], v[1], v[2]
		e.AverageKW, e.PeakKW, e.CostPerDay = v[3], v[4], v[5]
	}
	d.read(&res.PeakDemand)
}

func (d *decoder) period(p *Period, nodes, links int) {
	p.Demand = d.floats(nodes)
	p.Head = d.floats(nodes)
	p.Pressure = d.floats(nodes)
	p.Quality = d.floats(nodes)
	p.Flow = d.floats(links)
	p.Velocity = d.floats(links)
	p.Headloss = d.floats(links)
	p.LinkQuality = d.floats(links)
	p.Status = d.floats(links)
	p.Setting = d.floats(links)
	p.Reaction = d.floats(links)
	p.Friction = d.floats(links)
}
