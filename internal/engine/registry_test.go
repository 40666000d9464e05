package engine

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestRegistry_NewEngine(t *testing.T) {
	reg := NewRegistry()
	RegisterBuiltins(reg, "", t.TempDir(), time.Minute)

	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"toolkit", "toolkit", false},
		{"topology", "topology", false},
		{"swmm", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := reg.NewEngine(tt.name)
			if tt.wantErr {
				var ue *UnknownEngineError
				if !errors.As(err, &ue) {
					t.Fatalf("NewEngine() error = %v, want *UnknownEngineError", err)
				}
				if !strings.Contains(ue.Error(), "topology, toolkit") {
					t.Errorf("error %q should list available engines", ue.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEngine() error = %v", err)
			}
			if e.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", e.Name(), tt.wantName)
			}
		})
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("boom")
	reg.Register("broken", func() (Engine, error) { return nil, boom })

	if _, err := reg.NewEngine("broken"); !errors.Is(err, boom) {
		t.Errorf("NewEngine() error = %v, want wrapped boom", err)
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	tests := []struct {
		name string
		reg  func(r *Registry)
	}{
		{"empty name", func(r *Registry) { r.Register("", func() (Engine, error) { return nil, nil }) }},
		{"nil factory", func(r *Registry) { r.Register("x", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("Register() did not panic")
				}
			}()
			tt.reg(NewRegistry())
		})
	}
}

func TestToolkitPreset_DefaultBinary(t *testing.T) {
	if got := ToolkitPreset("").Binary; got != "runepanet" {
		t.Errorf("ToolkitPreset(\"\").Binary = %q, want runepanet", got)
	}
	if got := ToolkitPreset("/opt/epanet/runepanet").Binary; got != "/opt/epanet/runepanet" {
		t.Errorf("ToolkitPreset(path).Binary = %q", got)
	}
}
