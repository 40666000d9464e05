package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
)

func TestNewModel_InitializesSteps(t *testing.T) {
	names := []string{"load", "simulate", "plot"}
	m := NewModel(names)

	if got := len(m.steps); got != 3 {
		t.Fatalf("steps count = %d, want 3", got)
	}
	for i, name := range names {
		if m.steps[i].Name != name {
			t.Errorf("steps[%d].Name = %q, want %q", i, m.steps[i].Name, name)
		}
		if m.steps[i].Status != StatusPending {
			t.Errorf("steps[%d].Status = %q, want %q", i, m.steps[i].Status, StatusPending)
		}
	}
	if m.done || m.err != nil {
		t.Error("new model should be neither done nor failed")
	}
}

func TestNewModel_EmptySteps(t *testing.T) {
	if m := NewModel(nil); len(m.steps) != 0 {
		t.Fatalf("steps count = %d, want 0", len(m.steps))
	}
}

func TestModel_Init_ReturnsTickCmd(t *testing.T) {
	if cmd := NewModel([]string{"load"}).Init(); cmd == nil {
		t.Fatal("Init() should return a non-nil Cmd for the spinner")
	}
}

func TestModel_Update_StatusTransitions(t *testing.T) {
	tests := []struct {
		name       string
		msgs       []StatusUpdateMsg
		wantStatus StepStatus
		wantDur    time.Duration
		wantDetail string
	}{
		{
			name:       "running",
			msgs:       []StatusUpdateMsg{{Step: "simulate", Status: StatusRunning}},
			wantStatus: StatusRunning,
		},
		{
			name: "passed keeps duration and detail",
			msgs: []StatusUpdateMsg{
				{Step: "simulate", Status: StatusRunning},
				{Step: "simulate", Status: StatusPassed, Duration: 2 * time.Second, Detail: "25 periods, 24 h"},
			},
			wantStatus: StatusPassed,
			wantDur:    2 * time.Second,
			wantDetail: "25 periods, 24 h",
		},
		{
			name: "skipped optional step",
			msgs: []StatusUpdateMsg{
				{Step: "simulate", Status: StatusRunning},
				{Step: "simulate", Status: StatusSkipped, Detail: "no solver"},
			},
			wantStatus: StatusSkipped,
			wantDetail: "no solver",
		},
		{
			name:       "unknown step is ignored",
			msgs:       []StatusUpdateMsg{{Step: "deploy", Status: StatusFailed}},
			wantStatus: StatusPending,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var model tea.Model = NewModel([]string{"load", "simulate"})
			for _, msg := range tt.msgs {
				var cmd tea.Cmd
				model, cmd = model.Update(msg)
				if cmd != nil {
					t.Error("StatusUpdateMsg should not produce a Cmd")
				}
			}
			step := model.(Model).steps[1]
			if step.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", step.Status, tt.wantStatus)
			}
			if step.Duration != tt.wantDur {
				t.Errorf("duration = %v, want %v", step.Duration, tt.wantDur)
			}
			if step.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", step.Detail, tt.wantDetail)
			}
		})
	}
}

func TestModel_Update_PipelineDoneMsg(t *testing.T) {
	newModel, cmd := NewModel([]string{"load"}).Update(PipelineDoneMsg{})
	if !newModel.(Model).done {
		t.Error("PipelineDoneMsg should set done")
	}
	if cmd == nil {
		t.Error("PipelineDoneMsg should produce quit Cmd")
	}
}

func TestModel_Update_PipelineErrorMsg(t *testing.T) {
	newModel, cmd := NewModel([]string{"load"}).Update(PipelineErrorMsg{Err: errors.New("boom")})
	updated := newModel.(Model)
	if !updated.done || updated.err == nil {
		t.Error("PipelineErrorMsg should set done and err")
	}
	if cmd == nil {
		t.Error("PipelineErrorMsg should produce quit Cmd")
	}
}

// --- View ---

func TestModel_View_Indicators(t *testing.T) {
	m := NewModel([]string{"load", "simulate", "plot", "report"})
	m.steps[0].Status = StatusPassed
	m.steps[1].Status = StatusFailed
	m.steps[2].Status = StatusSkipped

	view := m.View()

	for _, want := range []string{"✓ load", "✗ simulate", "– plot", "○ report"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q, got:\n%s", want, view)
		}
	}
}

func TestModel_View_TitleAndDetail(t *testing.T) {
	m := NewModel([]string{"plot"}, WithTitle("net1"))
	m.steps[0].Status = StatusPassed
	m.steps[0].Duration = 1500 * time.Millisecond
	m.steps[0].Detail = "6 figures"

	view := m.View()

	for _, want := range []string{"net1", "plot 1.5s", "6 figures"} {
		if !strings.Contains(view, want) {
			t.Errorf("view should contain %q, got:\n%s", want, view)
		}
	}
}

func TestModel_View_DetailClippedToWidth(t *testing.T) {
	m := NewModel([]string{"report"})
	m.width = 30
	m.steps[0].Status = StatusPassed
	m.steps[0].Detail = strings.Repeat("x", 80)

	view := m.View()

	if strings.Contains(view, strings.Repeat("x", 30)) {
		t.Errorf("detail should be clipped to the terminal width, got:\n%s", view)
	}
	if !strings.Contains(view, "…") {
		t.Errorf("clipped detail should end with an ellipsis, got:\n%s", view)
	}
}

func TestModel_View_SummaryFooter_AllPassed(t *testing.T) {
	m := NewModel([]string{"load", "simulate"})
	m.steps[0].Status = StatusPassed
	m.steps[0].Duration = 2 * time.Second
	m.steps[1].Status = StatusPassed
	m.steps[1].Duration = 3 * time.Second
	m.done = true

	view := m.View()

	if !strings.Contains(view, "2/2 passed") {
		t.Errorf("summary should show pass count, got:\n%s", view)
	}
	if !strings.Contains(view, "in 5.0s") {
		t.Errorf("summary should show total duration, got:\n%s", view)
	}
	if strings.Contains(view, "Error") {
		t.Error("all-passed summary should not contain error text")
	}
}

func TestModel_View_SummaryFooter_WithError(t *testing.T) {
	m := NewModel([]string{"load", "simulate"})
	m.steps[0].Status = StatusPassed
	m.steps[1].Status = StatusFailed
	m.done = true
	m.err = errors.New("simulate failed")

	view := m.View()

	if !strings.Contains(view, "1/2 passed") {
		t.Errorf("summary should show pass count, got:\n%s", view)
	}
	if !strings.Contains(view, "simulate failed") {
		t.Errorf("summary should show error message, got:\n%s", view)
	}
}

func TestModel_View_SummaryFooter_NotShownWhenRunning(t *testing.T) {
	m := NewModel([]string{"load"})
	m.steps[0].Status = StatusRunning

	if view := m.View(); strings.Contains(view, "passed") {
		t.Error("summary footer should not appear while pipeline is running")
	}
}

// --- Abort ---

func TestModel_Update_AbortKeys_WithCancel(t *testing.T) {
	keys := map[string]tea.KeyMsg{
		"q":      {Type: tea.KeyRunes, Runes: []rune{'q'}},
		"ctrl+c": {Type: tea.KeyCtrlC},
	}
	for name, key := range keys {
		t.Run(name, func(t *testing.T) {
			cancelled := false
			m := NewModel([]string{"load"}, WithCancelFunc(func() { cancelled = true }))

			newModel, cmd := m.Update(key)
			updated := newModel.(Model)

			if !updated.aborting {
				t.Error("first press with cancelFunc should set aborting")
			}
			if updated.done {
				t.Error("first press with cancelFunc should not set done")
			}
			if !cancelled {
				t.Error("first press should call cancelFunc")
			}
			if cmd != nil {
				t.Error("first press should not produce quit Cmd")
			}
		})
	}
}

func TestModel_Update_KeyMsg_DoublePress_ForcesQuit(t *testing.T) {
	m := NewModel([]string{"load"}, WithCancelFunc(func() {}))
	m.aborting = true

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	if !newModel.(Model).done {
		t.Error("double-press should set done")
	}
	if cmd == nil {
		t.Error("double-press should produce quit Cmd")
	}
}

func TestModel_Update_KeyMsg_WithoutCancel_ImmediateQuit(t *testing.T) {
	m := NewModel([]string{"load"})

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !newModel.(Model).done {
		t.Error("q without cancelFunc should set done")
	}
	if cmd == nil {
		t.Error("q without cancelFunc should produce quit Cmd")
	}
}

func TestModel_Update_KeyMsg_WhenDone_Ignored(t *testing.T) {
	m := NewModel([]string{"load"}, WithCancelFunc(func() {}))
	m.done = true

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if newModel.(Model).aborting {
		t.Error("pressing q when done should not set aborting")
	}
	if cmd != nil {
		t.Error("pressing q when done should not produce cmd")
	}
}

func TestModel_View_AbortingState(t *testing.T) {
	m := NewModel([]string{"simulate"})
	m.aborting = true
	m.steps[0].Status = StatusRunning

	if view := m.View(); !strings.Contains(view, "Aborting") {
		t.Errorf("view should show 'Aborting' when aborting, got:\n%s", view)
	}
}

func TestModel_Update_PipelineErrorMsg_ClearsAborting(t *testing.T) {
	m := NewModel([]string{"simulate"}, WithCancelFunc(func() {}))
	m.aborting = true

	newModel, cmd := m.Update(PipelineErrorMsg{Err: context.Canceled})
	updated := newModel.(Model)

	if !updated.done || updated.aborting {
		t.Error("PipelineErrorMsg should set done and clear aborting")
	}
	if cmd == nil {
		t.Error("PipelineErrorMsg should produce quit Cmd")
	}
	if strings.Contains(updated.View(), "Aborting") {
		t.Error("View should not show Aborting when done")
	}
}

func TestModel_Update_WindowSizeMsg(t *testing.T) {
	newModel, _ := NewModel([]string{"load"}).Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if got := newModel.(Model).width; got != 120 {
		t.Errorf("width = %d, want 120", got)
	}
}

// TestModel_Teatest_FullPipeline verifies the model processes messages in sequence via teatest.
func TestModel_Teatest_FullPipeline(t *testing.T) {
	names := []string{"load", "simulate", "plot", "report", "save"}
	m := NewModel(names, WithTitle("net1"))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	for _, name := range names {
		tm.Send(StatusUpdateMsg{Step: name, Status: StatusRunning})
		tm.Send(StatusUpdateMsg{Step: name, Status: StatusPassed, Duration: 10 * time.Millisecond})
	}
	tm.Send(PipelineDoneMsg{})

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	for i, name := range names {
		if final.steps[i].Status != StatusPassed {
			t.Errorf("step %q status = %q, want %q", name, final.steps[i].Status, StatusPassed)
		}
	}
	if !final.done {
		t.Error("final model should be done")
	}
}
