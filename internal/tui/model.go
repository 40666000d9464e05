package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// StepStatus is the display state of a pipeline step. Values match
// pipeline.StepStatus so updates convert with a plain cast.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusPassed  StepStatus = "passed"
	StatusFailed  StepStatus = "failed"
	StatusSkipped StepStatus = "skipped"
)

// StepState tracks the display state of a single pipeline step.
type StepState struct {
	Name     string
	Status   StepStatus
	Duration time.Duration
	Detail   string
}

// Model is the Bubble Tea model for pipeline step status display.
type Model struct {
	title      string
	steps      []StepState
	spinner    spinner.Model
	cancelFunc func()
	aborting   bool
	done       bool
	err        error
	width      int
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithCancelFunc makes the first q or ctrl+c cancel the pipeline instead
// of quitting. A second press quits immediately.
func WithCancelFunc(cancel func()) ModelOption {
	return func(m *Model) { m.cancelFunc = cancel }
}

// WithTitle sets a heading line, usually the network name.
func WithTitle(title string) ModelOption {
	return func(m *Model) { m.title = title }
}

// StatusUpdateMsg carries one pipeline step update to the display.
type StatusUpdateMsg struct {
	Step     string
	Status   StepStatus
	Progress string
	Duration time.Duration
	Detail   string
}

// PipelineDoneMsg signals that the pipeline completed successfully.
type PipelineDoneMsg struct{}

// PipelineErrorMsg signals that the pipeline failed with an error.
type PipelineErrorMsg struct {
	Err error
}

func (StatusUpdateMsg) isDisplayEvent()  {}
func (PipelineDoneMsg) isDisplayEvent()  {}
func (PipelineErrorMsg) isDisplayEvent() {}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	detailStyle = lipgloss.NewStyle().Faint(true)
)

// NewModel creates a Model initialized with the given step names.
func NewModel(stepNames []string, opts ...ModelOption) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	steps := make([]StepState, len(stepNames))
	for i, name := range stepNames {
		steps[i] = StepState{Name: name, Status: StatusPending}
	}

	m := Model{steps: steps, spinner: s}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusUpdateMsg:
		for i := range m.steps {
			if m.steps[i].Name != msg.Step {
				continue
			}
			m.steps[i].Status = msg.Status
			if msg.Duration > 0 {
				m.steps[i].Duration = msg.Duration
			}
			if msg.Detail != "" {
				m.steps[i].Detail = msg.Detail
			}
			break
		}
		return m, nil

	case PipelineDoneMsg:
		m.done = true
		m.aborting = false
		return m, tea.Quit

	case PipelineErrorMsg:
		m.done = true
		m.aborting = false
		m.err = msg.Err
		return m, tea.Quit

	case tea.KeyMsg:
		if m.done {
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			if m.cancelFunc == nil || m.aborting {
				m.done = true
				return m, tea.Quit
			}
			m.aborting = true
			m.cancelFunc()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the step list with status indicators.
func (m Model) View() string {
	var b strings.Builder

	if m.title != "" {
		b.WriteString("  " + titleStyle.Render(m.title) + "\n\n")
	}

	for _, step := range m.steps {
		line := fmt.Sprintf("  %s %s", statusIndicator(step.Status, m.spinner.View()), step.Name)
		if step.Duration > 0 {
			line += fmt.Sprintf(" %.1fs", step.Duration.Seconds())
		}
		if step.Detail != "" && step.Status != StatusRunning {
			line += "  " + detailStyle.Render(m.clip(step.Detail, len(line)))
		}
		b.WriteString(line + "\n")
	}

	if m.aborting {
		b.WriteString("\n  Aborting... (press q again to force quit)\n")
	}

	if m.done {
		b.WriteString(m.summary())
	}

	return b.String()
}

func (m Model) summary() string {
	passed := 0
	var total time.Duration
	for _, step := range m.steps {
		if step.Status == StatusPassed {
			passed++
		}
		total += step.Duration
	}
	line := fmt.Sprintf("%d/%d passed in %.1fs", passed, len(m.steps), total.Seconds())
	if m.err != nil {
		return "\n  " + failStyle.Render(line) + "\n  Error: " + m.err.Error() + "\n"
	}
	return "\n  " + passStyle.Render(line) + "\n"
}

// clip shortens detail text to fit the terminal width after a prefix.
func (m Model) clip(s string, used int) string {
	if m.width <= 0 {
		return s
	}
	room := m.width - used - 2
	if room <= 1 {
		return ""
	}
	r := []rune(s)
	if len(r) <= room {
		return s
	}
	return string(r[:room-1]) + "…"
}

// statusIndicator returns the Unicode indicator for a step status.
func statusIndicator(status StepStatus, spinnerView string) string {
	switch status {
	case StatusPending:
		return "○"
	case StatusRunning:
		return spinnerView
	case StatusPassed:
		return "✓"
	case StatusFailed:
		return "✗"
	case StatusSkipped:
		return "–"
	default:
		return "?"
	}
}
