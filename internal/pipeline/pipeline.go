// Package pipeline runs one network through load, simulate, plot, report
// and save steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/report"
)

// Network is the part of network.Wrapper the pipeline drives.
type Network interface {
	LoadFile(ctx context.Context, path string) error
	RunSimulation(ctx context.Context) error
	Simulated() bool
	Statistics() network.Statistics
	Summary() (network.Summary, error)
	PlotNetwork(w io.Writer, opts network.PlotOptions) error
	PlotNetworkAttributes(w io.Writer, opts network.AttributeOptions) error
	PlotTimeSeries(w io.Writer, opts network.SeriesOptions) error
}

// Reporter renders the markdown report.
type Reporter interface {
	Render(w io.Writer, data report.Data) error
}

// SummaryStore persists per-network summaries.
type SummaryStore interface {
	SaveSummary(name string, s network.Summary) error
}

// Input names the file to process and where artifacts go.
type Input struct {
	Path      string
	Name      string // defaults to the file name without extension
	OutputDir string // required by plot and report steps
}

// Output collects what a run produced.
type Output struct {
	Name      string
	Summary   network.Summary
	Artifacts []string
	Steps     []StepResult
}

// StepError indicates a pipeline failure in a named step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pipeline: step %q: %s", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Runner executes steps in order against one Network.
type Runner struct {
	net            Network
	steps          []StepDefinition
	reporter       Reporter
	store          SummaryStore
	statusCallback StatusCallback
	log            logrus.FieldLogger
	format         string
	now            func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// New creates a Runner over net with the default steps.
func New(net Network, opts ...Option) *Runner {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	r := &Runner{
		net:            net,
		steps:          DefaultSteps(),
		statusCallback: func(StatusUpdate) {},
		log:            discard,
		format:         "png",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithSteps overrides the default step definitions.
func WithSteps(steps []StepDefinition) Option {
	return func(r *Runner) { r.steps = steps }
}

// WithReporter sets the report renderer.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithSummaryStore sets where save steps write.
func WithSummaryStore(s SummaryStore) Option {
	return func(r *Runner) { r.store = s }
}

// WithStatusCallback sets the callback for progress updates.
func WithStatusCallback(cb StatusCallback) Option {
	return func(r *Runner) { r.statusCallback = cb }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Runner) { r.log = l }
}

// WithFormat sets the figure format (png, svg, ...).
func WithFormat(format string) Option {
	return func(r *Runner) {
		if format != "" {
			r.format = format
		}
	}
}

// Steps returns the configured step definitions.
func (r *Runner) Steps() []StepDefinition { return r.steps }

// Run executes every step for in. A failing required step stops the run
// and returns a *StepError alongside the output gathered so far; a
// failing optional step is recorded as skipped.
func (r *Runner) Run(ctx context.Context, in Input) (Output, error) {
	out := Output{Name: in.Name}
	if out.Name == "" {
		out.Name = strings.TrimSuffix(filepath.Base(in.Path), filepath.Ext(in.Path))
	}

	if err := r.checkSetup(in); err != nil {
		return out, &StepError{Step: "setup", Err: err}
	}

	log := r.log.WithField("network", out.Name)
	for i, step := range r.steps {
		progress := fmt.Sprintf("%d/%d", i+1, len(r.steps))
		if err := ctx.Err(); err != nil {
			return out, &StepError{Step: step.Name, Err: err}
		}

		r.notify(StatusUpdate{Network: out.Name, Step: step.Name, Status: StepRunning, Progress: progress})
		start := time.Now()
		detail, err := r.execute(ctx, step, in, &out)
		res := StepResult{Name: step.Name, Duration: time.Since(start), Detail: detail}

		switch {
		case err == nil:
			res.Status = StepPassed
		case step.Optional && ctx.Err() == nil:
			res.Status = StepSkipped
			res.Error = err.Error()
			log.WithError(err).WithField("step", step.Name).Warn("optional step failed")
		default:
			res.Status = StepFailed
			res.Error = err.Error()
		}
		out.Steps = append(out.Steps, res)
		r.notify(StatusUpdate{
			Network: out.Name, Step: step.Name, Status: res.Status,
			Progress: progress, Duration: res.Duration, Detail: res.Detail,
		})

		if res.Status == StepFailed {
			log.WithError(err).WithField("step", step.Name).Error("step failed")
			return out, &StepError{Step: step.Name, Err: err}
		}
		log.WithFields(logrus.Fields{"step": step.Name, "status": res.Status}).Debug("step finished")
	}
	return out, nil
}

// checkSetup fails fast when a configured step lacks what it needs.
func (r *Runner) checkSetup(in Input) error {
	if in.Path == "" {
		return errors.New("input path is required")
	}
	for _, s := range r.steps {
		switch s.Kind {
		case Plot, Report:
			if in.OutputDir == "" {
				return fmt.Errorf("step %q needs an output directory", s.Name)
			}
			if s.Kind == Report && r.reporter == nil {
				return fmt.Errorf("step %q needs a reporter", s.Name)
			}
		case Save:
			if r.store == nil {
				return fmt.Errorf("step %q needs a summary store", s.Name)
			}
		}
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, step StepDefinition, in Input, out *Output) (string, error) {
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	switch step.Kind {
	case Load:
		if err := r.net.LoadFile(ctx, in.Path); err != nil {
			return "", err
		}
		return r.refreshSummary(out)
	case Simulate:
		if err := r.net.RunSimulation(ctx); err != nil {
			return "", err
		}
		return r.refreshSummary(out)
	case Plot:
		return r.plot(step, in, out)
	case Report:
		return r.report(in, out)
	case Save:
		if err := r.store.SaveSummary(out.Name, out.Summary); err != nil {
			return "", err
		}
		return "summary saved", nil
	}
	return "", fmt.Errorf("unknown step kind %v", step.Kind)
}

func (r *Runner) refreshSummary(out *Output) (string, error) {
	s, err := r.net.Summary()
	if err != nil {
		return "", err
	}
	out.Summary = s
	if s.Simulated {
		return fmt.Sprintf("%d periods, %.4g h", s.Periods, s.Duration), nil
	}
	return fmt.Sprintf("%d nodes, %d links", s.NodeCount, s.LinkCount), nil
}

func (r *Runner) plot(step StepDefinition, in Input, out *Output) (string, error) {
	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	figures := step.Figures
	if len(figures) == 0 {
		figures = DefaultFigures()
	}

	written, skipped := 0, 0
	for _, fig := range figures {
		if needsResults(fig) && !r.net.Simulated() {
			skipped++
			continue
		}
		name := fmt.Sprintf("%s-%s.%s", out.Name, fig, r.format)
		path := filepath.Join(in.OutputDir, name)
		if err := r.drawFigure(path, fig); err != nil {
			return "", fmt.Errorf("figure %s: %w", fig, err)
		}
		out.Artifacts = append(out.Artifacts, path)
		written++
	}

	detail := fmt.Sprintf("%d figures", written)
	if skipped > 0 {
		detail += fmt.Sprintf(", %d need results", skipped)
	}
	return detail, nil
}

func (r *Runner) drawFigure(path, fig string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	switch fig {
	case FigureNetwork:
		return r.net.PlotNetwork(f, network.PlotOptions{
			Pressures: r.net.Simulated(),
			Flows:     r.net.Simulated(),
			Format:    r.format,
		})
	case FigureElevation, FigurePressure, FigureFlow, FigureQuality:
		return r.net.PlotNetworkAttributes(f, network.AttributeOptions{
			Attribute: fig,
			Period:    -1,
			Format:    r.format,
		})
	default:
		return r.net.PlotTimeSeries(f, network.SeriesOptions{
			Kind:   strings.TrimPrefix(fig, "series-"),
			Format: r.format,
		})
	}
}

func (r *Runner) report(in Input, out *Output) (string, error) {
	if err := os.MkdirAll(in.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	stats := r.net.Statistics()
	data := report.Data{
		Summary:   out.Summary,
		NodeIDs:   stats.NodeIDs,
		LinkIDs:   stats.LinkIDs,
		Generated: r.now(),
	}
	for _, a := range out.Artifacts {
		data.Figures = append(data.Figures, filepath.Base(a))
	}
	for _, s := range out.Steps {
		data.Steps = append(data.Steps, report.StepEntry{
			Name:     s.Name,
			Status:   string(s.Status),
			Duration: s.Duration,
			Detail:   s.Detail,
		})
	}

	path := filepath.Join(in.OutputDir, out.Name+".md")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := r.reporter.Render(f, data); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	out.Artifacts = append(out.Artifacts, path)
	return filepath.Base(path), nil
}

func (r *Runner) notify(su StatusUpdate) {
	r.statusCallback(su)
}
