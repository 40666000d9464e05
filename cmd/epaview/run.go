package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/smileynet/epaview/internal/batch"
	"github.com/smileynet/epaview/internal/pipeline"
	"github.com/smileynet/epaview/internal/state"
	"github.com/smileynet/epaview/internal/tui"
)

// errNetworksFailed reports a batch that finished with failed networks.
var errNetworksFailed = errors.New("networks failed")

// RunCmd runs the pipeline on one network.
type RunCmd struct {
	Path   string `arg:"" help:"Network .inp file."`
	Output string `short:"o" help:"Directory for figures and the report. Defaults to <results_dir>/<name>."`
	Steps  string `help:"Step preset (default, minimal, topology) or a steps YAML file." default:"default"`
	NoTUI  bool   `help:"Force plain text output even if stdout is a TTY." default:"false"`
}

// pipelineRunner abstracts pipeline.Runner for testing.
type pipelineRunner interface {
	Run(ctx context.Context, in pipeline.Input) (pipeline.Output, error)
}

// networkName is the file name without its extension.
func networkName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Run executes the run command.
func (c *RunCmd) Run(g globals) error {
	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer func() { _ = d.net.Close() }()

	steps, err := pipeline.LoadSteps(c.Steps)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	name := networkName(c.Path)
	outDir := c.Output
	if outDir == "" {
		outDir = filepath.Join(d.cfg.Batch.ResultsDir, name)
	}

	// The cancel func is passed to the TUI so q / Ctrl+C can stop the
	// pipeline between steps.
	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	defer pipelineCancel()

	bridge := tui.NewBridge()
	display := tui.NewDisplay(tui.DisplayOptions{
		Writer:     os.Stdout,
		ForcePlain: c.NoTUI,
		Title:      name,
		Steps:      pipeline.StepNames(steps),
		CancelFunc: pipelineCancel,
	})
	if _, ok := display.(*tui.TUIDisplay); ok {
		// Log lines on stderr would tear the TUI.
		d.log.SetLevel(logrus.ErrorLevel)
	}

	runner := pipeline.New(d.net,
		pipeline.WithSteps(steps),
		pipeline.WithReporter(newRenderer()),
		pipeline.WithSummaryStore(state.NewSummaryFileStore(filepath.Join(d.cfg.Batch.ResultsDir, "summaries"))),
		pipeline.WithStatusCallback(bridge.Callback()),
		pipeline.WithLogger(d.log),
		pipeline.WithFormat(d.cfg.Plot.Format),
	)

	in := pipeline.Input{Path: c.Path, Name: name, OutputDir: outDir}
	return c.run(pipelineCtx, os.Stdout, runner, display, bridge, in)
}

// run executes the pipeline with display lifecycle management.
func (c *RunCmd) run(ctx context.Context, w io.Writer, runner pipelineRunner, display tui.Display, bridge *tui.Bridge, in pipeline.Input) error {
	displayDone := make(chan error, 1)
	go func() {
		displayDone <- display.Run(context.Background(), bridge.Events())
	}()

	// Ctrl+C still works in plain mode, where nothing reads the keyboard.
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	out, err := runner.Run(sigCtx, in)
	stop()

	bridge.Finish(err)
	<-displayDone

	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(w, "%s: %d artifacts\n", out.Name, len(out.Artifacts))
	for _, a := range out.Artifacts {
		_, _ = fmt.Fprintf(w, "  %s\n", a)
	}
	return nil
}

// BatchCmd runs the pipeline over many networks.
type BatchCmd struct {
	Paths       []string `arg:"" help:"Network .inp files."`
	ID          string   `help:"Batch ID. Reusing the ID of an unfinished batch over the same files resumes it."`
	Steps       string   `help:"Step preset (default, minimal, topology) or a steps YAML file." default:"default"`
	FailureMode string   `help:"abort or continue. Overrides config." name:"failure-mode"`
}

// Run executes the batch command.
func (c *BatchCmd) Run(g globals) error {
	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	defer func() { _ = d.net.Close() }()

	steps, err := pipeline.LoadSteps(c.Steps)
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	mode := d.cfg.Batch.FailureMode
	if c.FailureMode != "" {
		mode = c.FailureMode
	}
	if mode != "abort" && mode != "continue" {
		return fmt.Errorf("batch: invalid failure mode %q (valid: abort, continue)", mode)
	}

	results := d.cfg.Batch.ResultsDir
	p := pipeline.New(d.net,
		pipeline.WithSteps(steps),
		pipeline.WithReporter(newRenderer()),
		pipeline.WithSummaryStore(state.NewSummaryFileStore(filepath.Join(results, "summaries"))),
		pipeline.WithStatusCallback(plainStepCallback(os.Stdout)),
		pipeline.WithLogger(d.log),
		pipeline.WithFormat(d.cfg.Plot.Format),
	)
	cb := &batchPlainTextCallback{w: os.Stdout}
	runner := batch.NewRunner(p, state.NewFileStore(filepath.Join(results, "batches")), batch.Config{
		FailureMode:    mode,
		CircuitBreaker: d.cfg.Batch.CircuitBreaker,
		OutputDir:      results,
	}, cb)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, runner, cb)
}

// batchRunner abstracts batch.Runner for testing.
type batchRunner interface {
	Run(ctx context.Context, id string, paths []string) error
}

func (c *BatchCmd) run(ctx context.Context, runner batchRunner, cb *batchPlainTextCallback) error {
	if err := runner.Run(ctx, c.ID, c.Paths); err != nil {
		return err
	}
	if cb.failed > 0 {
		return fmt.Errorf("batch %s: %d of %d %w", cb.id, cb.failed, cb.total, errNetworksFailed)
	}
	return nil
}

// batchPlainTextCallback prints batch progress and keeps the final tally.
type batchPlainTextCallback struct {
	w      io.Writer
	now    func() time.Time
	id     string
	total  int
	failed int
}

func (c *batchPlainTextCallback) ts() string {
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return now().Format("15:04:05")
}

func (c *batchPlainTextCallback) OnBatchStart(id string, paths []string) {
	c.id = id
	_, _ = fmt.Fprintf(c.w, "Batch %s: %d networks\n", id, len(paths))
}

func (c *batchPlainTextCallback) OnNetworkStart(path string) {
	_, _ = fmt.Fprintf(c.w, "[%s] %s\n", c.ts(), path)
}

func (c *batchPlainTextCallback) OnNetworkComplete(res batch.NetworkResult) {
	_, _ = fmt.Fprintf(c.w, "[%s] %s completed\n", c.ts(), res.Name)
}

func (c *batchPlainTextCallback) OnNetworkFail(path string, err error) {
	_, _ = fmt.Fprintf(c.w, "[%s] %s failed: %v\n", c.ts(), path, err)
}

func (c *batchPlainTextCallback) OnBatchComplete(s batch.State) {
	completed, failed, pending := s.Counts()
	c.total = len(s.Networks)
	c.failed = failed
	_, _ = fmt.Fprintf(c.w, "Batch %s %s: %d completed, %d failed, %d pending\n", s.ID, s.Status, completed, failed, pending)
}

// plainStepCallback prints one indented line per finished step.
func plainStepCallback(w io.Writer) pipeline.StatusCallback {
	return func(su pipeline.StatusUpdate) {
		if su.Status == pipeline.StepRunning {
			return
		}
		line := fmt.Sprintf("         [%s] %s %s %.1fs", su.Progress, su.Step, su.Status, su.Duration.Seconds())
		if su.Detail != "" {
			line += " " + su.Detail
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
