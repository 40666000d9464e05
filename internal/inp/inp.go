// Package inp reads the topology of an EPANET network input file: the
// node and link tables, coordinates, and the options and times that the
// viewer needs. It does not interpret demands, curves, patterns or
// controls; the solver reads the file itself.
package inp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/smileynet/epaview/internal/geom"
)

// NodeKind distinguishes junctions from storage nodes.
type NodeKind int

const (
	Junction  NodeKind = iota // Demand node.
	Reservoir                 // Fixed-head source.
	Tank                      // Variable-level storage.
)

func (k NodeKind) String() string {
	switch k {
	case Junction:
		return "junction"
	case Reservoir:
		return "reservoir"
	case Tank:
		return "tank"
	default:
		return "unknown"
	}
}

// LinkKind distinguishes the three link types.
type LinkKind int

const (
	Pipe LinkKind = iota
	Pump
	Valve
)

func (k LinkKind) String() string {
	switch k {
	case Pipe:
		return "pipe"
	case Pump:
		return "pump"
	case Valve:
		return "valve"
	default:
		return "unknown"
	}
}

// Node is one row of the junction, reservoir or tank tables.
type Node struct {
	ID        string
	Kind      NodeKind
	Elevation float64 // Head for reservoirs.
}

// Link is one row of the pipe, pump or valve tables.
type Link struct {
	ID       string
	Kind     LinkKind
	From     string
	To       string
	Length   float64
	Diameter float64
}

// Options holds the [OPTIONS] values the viewer uses.
type Options struct {
	FlowUnits string // CFS, GPM, MGD, IMGD, AFD, LPS, LPM, MLD, CMH, CMD.
	Quality   string // NONE, CHEMICAL, AGE, TRACE.
}

// Times holds the [TIMES] values the viewer uses.
type Times struct {
	Duration      time.Duration
	HydraulicStep time.Duration
	ReportStep    time.Duration
	ReportStart   time.Duration
}

// Network is the topology read from an input file. Nodes are ordered the
// way the engine indexes them: junctions first, then tanks and reservoirs,
// each group in file order. Links keep file order.
type Network struct {
	Title       string
	Nodes       []Node
	Links       []Link
	Coordinates map[string]geom.Point
	Vertices    map[string][]geom.Point
	Options     Options
	Times       Times
}

// ParseError reports a malformed line.
type ParseError struct {
	Line    int
	Section string
	Msg     string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("inp: line %d [%s]: %s", e.Line, e.Section, e.Msg)
}

// NodeIndex returns the 1-based engine index of the node with id, or 0.
func (n *Network) NodeIndex(id string) int {
	for i, node := range n.Nodes {
		if node.ID == id {
			return i + 1
		}
	}
	return 0
}

// ReadFile opens path and parses it.
func ReadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a network from r.
func Parse(r io.Reader) (*Network, error) {
	p := &parser{
		net: &Network{
			Coordinates: make(map[string]geom.Point),
			Vertices:    make(map[string][]geom.Point),
			Options:     Options{FlowUnits: "GPM", Quality: "NONE"},
			Times: Times{
				HydraulicStep: time.Hour,
				ReportStep:    time.Hour,
			},
		},
		seenNodes: make(map[string]bool),
		seenLinks: make(map[string]bool),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		if err := p.parseLine(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("inp: reading: %w", err)
	}

	p.net.Nodes = append(p.junctions, p.storage...)
	for _, l := range p.net.Links {
		if !p.seenNodes[l.From] || !p.seenNodes[l.To] {
			return nil, fmt.Errorf("inp: link %q references an undefined node", l.ID)
		}
	}
	return p.net, nil
}

type parser struct {
	net       *Network
	line      int
	section   string
	junctions []Node
	storage   []Node
	seenNodes map[string]bool
	seenLinks map[string]bool
}

func (p *parser) parseLine(raw string) error {
	text := raw
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "[") {
		end := strings.IndexByte(text, ']')
		if end < 0 {
			return p.errorf("unterminated section header %q", text)
		}
		p.section = strings.ToUpper(strings.TrimSpace(text[1:end]))
		return nil
	}

	if p.section == "TITLE" {
		if p.net.Title == "" {
			p.net.Title = text
		}
		return nil
	}

	fields := strings.Fields(text)
	switch p.section {
	case "JUNCTIONS":
		return p.addNode(fields, Junction)
	case "RESERVOIRS":
		return p.addNode(fields, Reservoir)
	case "TANKS":
		return p.addNode(fields, Tank)
	case "PIPES":
		return p.addLink(fields, Pipe)
	case "PUMPS":
		return p.addLink(fields, Pump)
	case "VALVES":
		return p.addLink(fields, Valve)
	case "COORDINATES":
		return p.addCoordinate(fields)
	case "VERTICES":
		return p.addVertex(fields)
	case "OPTIONS":
		p.parseOption(fields)
		return nil
	case "TIMES":
		return p.parseTime(fields)
	}
	return nil
}

func (p *parser) addNode(fields []string, kind NodeKind) error {
	if len(fields) < 2 {
		return p.errorf("expected id and elevation")
	}
	id := fields[0]
	if p.seenNodes[id] {
		return p.errorf("duplicate node %q", id)
	}
	elev, err := p.float(fields[1])
	if err != nil {
		return err
	}
	p.seenNodes[id] = true

	n := Node{ID: id, Kind: kind, Elevation: elev}
	if kind == Junction {
		p.junctions = append(p.junctions, n)
	} else {
		p.storage = append(p.storage, n)
	}
	return nil
}

func (p *parser) addLink(fields []string, kind LinkKind) error {
	if len(fields) < 3 {
		return p.errorf("expected id and two end nodes")
	}
	id := fields[0]
	if p.seenLinks[id] {
		return p.errorf("duplicate link %q", id)
	}
	p.seenLinks[id] = true

	l := Link{ID: id, Kind: kind, From: fields[1], To: fields[2]}
	var err error
	switch kind {
	case Pipe:
		if len(fields) < 5 {
			return p.errorf("pipe %q: expected length and diameter", id)
		}
		if l.Length, err = p.float(fields[3]); err != nil {
			return err
		}
		if l.Diameter, err = p.float(fields[4]); err != nil {
			return err
		}
	case Valve:
		if len(fields) < 4 {
			return p.errorf("valve %q: expected diameter", id)
		}
		if l.Diameter, err = p.float(fields[3]); err != nil {
			return err
		}
	}
	p.net.Links = append(p.net.Links, l)
	return nil
}

func (p *parser) addCoordinate(fields []string) error {
	if len(fields) < 3 {
		return p.errorf("expected node id, x and y")
	}
	x, err := p.float(fields[1])
	if err != nil {
		return err
	}
	y, err := p.float(fields[2])
	if err != nil {
		return err
	}
	p.net.Coordinates[fields[0]] = geom.Point{X: x, Y: y}
	return nil
}

func (p *parser) addVertex(fields []string) error {
	if len(fields) < 3 {
		return p.errorf("expected link id, x and y")
	}
	x, err := p.float(fields[1])
	if err != nil {
		return err
	}
	y, err := p.float(fields[2])
	if err != nil {
		return err
	}
	p.net.Vertices[fields[0]] = append(p.net.Vertices[fields[0]], geom.Point{X: x, Y: y})
	return nil
}

func (p *parser) parseOption(fields []string) {
	if len(fields) < 2 {
		return
	}
	switch strings.ToUpper(fields[0]) {
	case "UNITS":
		p.net.Options.FlowUnits = strings.ToUpper(fields[1])
	case "QUALITY":
		p.net.Options.Quality = strings.ToUpper(fields[1])
	}
}

// parseTime handles the [TIMES] keys the viewer needs. Multi-word keys
// ("Hydraulic Timestep", "Report Start") are matched on their leading words.
func (p *parser) parseTime(fields []string) error {
	key := strings.ToUpper(fields[0])
	rest := fields[1:]
	if len(fields) >= 2 {
		second := strings.ToUpper(fields[1])
		switch {
		case key == "HYDRAULIC" && second == "TIMESTEP",
			key == "REPORT" && (second == "TIMESTEP" || second == "START"):
			key += " " + second
			rest = fields[2:]
		}
	}
	if len(rest) == 0 {
		return nil
	}

	var target *time.Duration
	switch key {
	case "DURATION":
		target = &p.net.Times.Duration
	case "HYDRAULIC TIMESTEP":
		target = &p.net.Times.HydraulicStep
	case "REPORT TIMESTEP":
		target = &p.net.Times.ReportStep
	case "REPORT START":
		target = &p.net.Times.ReportStart
	default:
		return nil
	}

	unit := ""
	if len(rest) > 1 {
		unit = rest[1]
	}
	d, err := ParseClock(rest[0], unit)
	if err != nil {
		return p.errorf("%s: %v", strings.ToLower(key), err)
	}
	*target = d
	return nil
}

// ParseClock converts an EPANET time value to a duration. The value is
// either "hh:mm[:ss]" or a decimal number interpreted in unit (SEC, MIN,
// HOURS or DAYS; hours when empty).
func ParseClock(value, unit string) (time.Duration, error) {
	if strings.Contains(value, ":") {
		parts := strings.Split(value, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid clock time %q", value)
		}
		var total time.Duration
		scale := []time.Duration{time.Hour, time.Minute, time.Second}
		for i, part := range parts {
			n, err := strconv.ParseFloat(part, 64)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid clock time %q", value)
			}
			total += time.Duration(n * float64(scale[i]))
		}
		return total, nil
	}

	n, err := strconv.ParseFloat(value, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid time value %q", value)
	}
	var scale time.Duration
	switch u := strings.ToUpper(unit); {
	case u == "" || strings.HasPrefix(u, "HOUR"):
		scale = time.Hour
	case strings.HasPrefix(u, "SEC"):
		scale = time.Second
	case strings.HasPrefix(u, "MIN"):
		scale = time.Minute
	case strings.HasPrefix(u, "DAY"):
		scale = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unknown time unit %q", unit)
	}
	return time.Duration(n * float64(scale)), nil
}

func (p *parser) float(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, p.errorf("invalid number %q", s)
	}
	return v, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Line: p.line, Section: p.section, Msg: fmt.Sprintf(format, args...)}
}
