package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/epaview/internal/dashboard"
	"github.com/smileynet/epaview/internal/httpapi"
)

// BrowseCmd opens the interactive network browser.
type BrowseCmd struct {
	Path     string `arg:"" help:"Network .inp file."`
	Simulate bool   `help:"Run the simulation before opening." short:"s"`
	LogFile  string `help:"Where log lines go while the browser owns the terminal." default:".epaview/browse.log" name:"log-file"`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the browser.
func (c *BrowseCmd) Run(g globals) error {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	if !isTTY {
		return fmt.Errorf("browse: requires a terminal (TTY)")
	}

	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer func() { _ = d.net.Close() }()

	if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	logFile, err := tea.LogToFile(c.LogFile, "epaview")
	if err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	defer func() { _ = logFile.Close() }()
	d.log.SetOutput(logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := d.net.LoadFile(ctx, c.Path); err != nil {
		return fmt.Errorf("browse: %w", err)
	}
	if c.Simulate {
		if err := d.net.RunSimulation(ctx); err != nil {
			return fmt.Errorf("browse: %w", err)
		}
	}

	m := dashboard.NewModel(ctx, d.net)
	prog := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	return c.run(isTTY, prog)
}

// run executes the tea program, enabling testable wiring.
func (c *BrowseCmd) run(isTTY bool, prog teaRunner) error {
	if !isTTY {
		return fmt.Errorf("browse: requires a terminal (TTY)")
	}
	_, err := prog.Run()
	return err
}

// ServeCmd serves the web front end.
type ServeCmd struct {
	Path string `arg:"" optional:"" help:"Network .inp file to preload."`
	Addr string `help:"Listen address. Overrides config."`
}

// server abstracts httpapi.Server for testing.
type server interface {
	ListenAndServe(ctx context.Context) error
}

// Run executes the serve command until interrupted.
func (c *ServeCmd) Run(g globals) error {
	d, err := newDeps(g)
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	defer func() { _ = d.net.Close() }()

	cfg := d.cfg.Server
	if c.Addr != "" {
		cfg.Addr = c.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.Path != "" {
		if err := d.net.LoadFile(ctx, c.Path); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}

	srv, err := httpapi.New(d.net, httpapi.Options{Config: cfg, Logger: d.log, Metrics: d.metrics})
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return c.run(ctx, os.Stdout, srv, cfg.Addr)
}

func (c *ServeCmd) run(ctx context.Context, w io.Writer, srv server, addr string) error {
	_, _ = fmt.Fprintf(w, "Serving on http://%s (Ctrl+C to stop)\n", addr)
	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
