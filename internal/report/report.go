// Package report renders markdown network reports from text templates.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/smileynet/epaview/internal/network"
)

// DefaultTemplate is the template file rendered by Render.
const DefaultTemplate = "report.md.tmpl"

// ErrEmpty indicates a template file exists but contains no content.
var ErrEmpty = errors.New("report: empty template file")

// StepEntry records one pipeline step for the report.
type StepEntry struct {
	Name     string
	Status   string
	Duration time.Duration
	Detail   string
}

// Data holds the values interpolated into report templates.
type Data struct {
	Summary   network.Summary
	NodeIDs   []string
	LinkIDs   []string
	Steps     []StepEntry
	Figures   []string // file names relative to the report
	Generated time.Time
}

// Renderer reads report templates from a filesystem.
type Renderer struct {
	fsys fs.FS
	name string
}

// NewRenderer creates a Renderer reading templates from fsys, usually an
// overlay of a local directory on the embedded templates.
func NewRenderer(fsys fs.FS) *Renderer {
	return &Renderer{fsys: fsys, name: DefaultTemplate}
}

// WithTemplate returns a copy of r that renders the named template.
func (r *Renderer) WithTemplate(name string) *Renderer {
	c := *r
	c.name = name
	return &c
}

// Load reads the named template. It must exist and be non-empty.
func (r *Renderer) Load(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("report: invalid template name %q", name)
	}
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		return "", fmt.Errorf("report: loading %s: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return string(data), nil
}

// Render executes the configured template with data and writes the result.
// Nothing is written if the template fails.
func (r *Renderer) Render(w io.Writer, data Data) error {
	raw, err := r.Load(r.name)
	if err != nil {
		return err
	}

	tmpl, err := template.New(r.name).Funcs(funcs).Option("missingkey=error").Parse(raw)
	if err != nil {
		return fmt.Errorf("report: parsing template %s: %w", r.name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("report: executing template %s: %w", r.name, err)
	}
	_, err = buf.WriteTo(w)
	return err
}

var funcs = template.FuncMap{
	"num":     func(v float64) string { return strconv.FormatFloat(v, 'g', 4, 64) },
	"seconds": func(d time.Duration) string { return fmt.Sprintf("%.2fs", d.Seconds()) },
	"listing": Listing,
	"indices": IndexList,
}

// Listing writes one "Index i: ID" line per element, 1-based.
func Listing(ids []string) string {
	var b strings.Builder
	for i, id := range ids {
		fmt.Fprintf(&b, "Index %d: %s\n", i+1, id)
	}
	return b.String()
}

// IndexList returns "1, 2, ..., n", ready to paste into a selection.
func IndexList(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strconv.Itoa(i + 1)
	}
	return strings.Join(parts, ", ")
}
