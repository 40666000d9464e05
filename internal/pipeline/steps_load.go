package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// stepYAML is the YAML representation of a StepDefinition.
type stepYAML struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`               // defaults to name
	Optional bool     `yaml:"optional,omitempty"` // continue on failure
	Figures  []string `yaml:"figures,omitempty"`  // plot steps only
	Timeout  string   `yaml:"timeout,omitempty"`  // duration string (e.g. "30s")
}

type stepsFile struct {
	Steps []stepYAML `yaml:"steps"`
}

// LoadSteps resolves a specifier to step definitions. The specifier is a
// preset name ("default", "minimal", "topology") or a path to a YAML file.
func LoadSteps(specifier string) ([]StepDefinition, error) {
	if steps := PresetSteps(specifier); steps != nil {
		return steps, nil
	}
	return LoadStepsFile(specifier)
}

// LoadStepsFile loads step definitions from a YAML file.
func LoadStepsFile(path string) ([]StepDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("steps: reading %s: %w", path, err)
	}
	return ParseStepsYAML(data)
}

// ParseStepsYAML parses step definitions from YAML bytes.
func ParseStepsYAML(data []byte) ([]StepDefinition, error) {
	var file stepsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("steps: parsing YAML: %w", err)
	}
	if len(file.Steps) == 0 {
		return nil, errors.New("steps: no steps defined")
	}

	steps := make([]StepDefinition, len(file.Steps))
	for i, sy := range file.Steps {
		sd, err := convertStepYAML(sy)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %q: %w", i, sy.Name, err)
		}
		steps[i] = sd
	}

	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	return steps, nil
}

func convertStepYAML(sy stepYAML) (StepDefinition, error) {
	if sy.Name == "" {
		return StepDefinition{}, errors.New("name is required")
	}
	kindName := sy.Kind
	if kindName == "" {
		kindName = sy.Name
	}
	kind, ok := parseKind(kindName)
	if !ok {
		return StepDefinition{}, fmt.Errorf("invalid kind %q (must be load, simulate, plot, report, or save)", kindName)
	}

	sd := StepDefinition{
		Name:     sy.Name,
		Kind:     kind,
		Optional: sy.Optional,
		Figures:  sy.Figures,
	}
	if sy.Timeout != "" {
		d, err := time.ParseDuration(sy.Timeout)
		if err != nil {
			return StepDefinition{}, fmt.Errorf("invalid timeout %q: %w", sy.Timeout, err)
		}
		sd.Timeout = d
	}
	return sd, nil
}

// ValidateSteps checks step definitions for consistency errors.
func ValidateSteps(steps []StepDefinition) error {
	if len(steps) == 0 {
		return errors.New("steps: no steps defined")
	}
	if steps[0].Kind != Load {
		return fmt.Errorf("steps: first step %q must be a load step", steps[0].Name)
	}

	names := make(map[string]bool, len(steps))
	for i, s := range steps {
		if names[s.Name] {
			return fmt.Errorf("steps: duplicate step name %q", s.Name)
		}
		names[s.Name] = true

		if i > 0 && s.Kind == Load {
			return fmt.Errorf("steps: %q: only the first step may load", s.Name)
		}
		if s.Kind == Load && s.Optional {
			return fmt.Errorf("steps: load step %q cannot be optional", s.Name)
		}
		if len(s.Figures) > 0 && s.Kind != Plot {
			return fmt.Errorf("steps: %q: figures are only valid on plot steps", s.Name)
		}
		for _, f := range s.Figures {
			if !knownFigures[f] {
				return fmt.Errorf("steps: %q: unknown figure %q", s.Name, f)
			}
		}
		if s.Timeout < 0 {
			return fmt.Errorf("steps: %q: timeout must be non-negative", s.Name)
		}
	}
	return nil
}
