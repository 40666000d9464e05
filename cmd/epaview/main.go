package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/smileynet/epaview/internal/batch"
	"github.com/smileynet/epaview/internal/config"
	"github.com/smileynet/epaview/internal/engine"
	"github.com/smileynet/epaview/internal/logging"
	"github.com/smileynet/epaview/internal/metrics"
	"github.com/smileynet/epaview/internal/network"
	"github.com/smileynet/epaview/internal/pipeline"
	"github.com/smileynet/epaview/internal/render"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for epaview.
type CLI struct {
	Version  kong.VersionFlag `help:"Show version." short:"V"`
	Engine   string           `help:"Engine to use (toolkit, topology). Overrides config." short:"e"`
	LogLevel string           `help:"Log level. Overrides config." name:"log-level"`

	Stats  StatsCmd  `cmd:"" help:"Print network statistics."`
	Info   InfoCmd   `cmd:"" help:"List node and link IDs with their indices."`
	Run    RunCmd    `cmd:"" help:"Run the load, simulate, plot and report pipeline on one network."`
	Plot   PlotCmd   `cmd:"" help:"Draw the network, optionally coloured by an attribute."`
	Series SeriesCmd `cmd:"" help:"Plot time series of simulation results."`
	Hit    HitCmd    `cmd:"" help:"Find the node or link at a world coordinate."`
	Report ReportCmd `cmd:"" help:"Render the markdown network report."`
	Browse BrowseCmd `cmd:"" help:"Open the interactive network browser."`
	Serve  ServeCmd  `cmd:"" help:"Serve the web front end."`
	Batch  BatchCmd  `cmd:"" help:"Run the pipeline over many networks."`
}

// globals carries the top-level flags into command Run methods.
type globals struct {
	Engine   string
	LogLevel string
}

// loadConfig loads layered config from user and project paths with env
// overrides, then applies CLI overrides and validates.
func loadConfig(g globals) (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/epaview/config.yaml"),
		".epaview/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if g.Engine != "" {
		cfg.Engine.Name = g.Engine
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// deps bundles what every command builds from config.
type deps struct {
	cfg     *config.Config
	log     *logrus.Logger
	metrics *metrics.Registry
	net     *network.Wrapper
}

// newDeps builds the logger, metrics registry, engine and wrapper.
func newDeps(g globals) (*deps, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	reg := engine.NewRegistry()
	engine.RegisterBuiltins(reg, cfg.Engine.Binary, cfg.Engine.WorkDir, cfg.Engine.Timeout)
	eng, err := reg.NewEngine(cfg.Engine.Name)
	if err != nil {
		return nil, err
	}

	m := metrics.NewRegistry()
	return &deps{
		cfg:     cfg,
		log:     log,
		metrics: m,
		net:     newWrapper(eng, cfg.Plot, log, m),
	}, nil
}

// newWrapper applies the plot config to a fresh wrapper around eng.
func newWrapper(eng engine.Engine, p config.Plot, log logrus.FieldLogger, rec network.Recorder) *network.Wrapper {
	size := render.Size{Width: p.Width, Height: p.Height}
	return network.New(eng,
		network.WithLogger(log),
		network.WithRecorder(rec),
		network.WithPlotDefaults(network.PlotDefaults{
			NetworkSize:    size,
			TimeSeriesSize: size,
			Format:         p.Format,
			NodeRadius:     p.NodeRadius,
		}),
	)
}

// createOutput opens path for writing, creating parent directories.
// "-" writes to w.
func createOutput(path string, w io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return w, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// formatFor picks the figure format: the flag, else the output extension,
// else the configured default (empty).
func formatFor(flag, out string) string {
	if flag != "" {
		return flag
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(out), "."))
}

const (
	exitSuccess    = 0
	exitSimulation = 1
	exitSetup      = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *pipeline.StepError
	if errors.As(err, &se) {
		if se.Step == "setup" {
			return exitSetup
		}
		return exitSimulation
	}
	if errors.Is(err, batch.ErrCircuitBroken) || errors.Is(err, errNetworksFailed) {
		return exitSimulation
	}
	var ne *network.Error
	if errors.As(err, &ne) && ne.Op == "simulate" {
		return exitSimulation
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("epaview"),
		kong.Description("Load, simulate and view EPANET water networks."),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run(globals{Engine: cli.Engine, LogLevel: cli.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
