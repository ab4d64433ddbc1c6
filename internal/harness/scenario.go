package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario defines a revert scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation on the notes service.
type Step struct {
	// At is the logical time of the operation, in minutes after the epoch.
	At int `yaml:"at"`

	// Op names the operation (create_note, add_mood, revert, ...).
	Op string `yaml:"op"`

	// Args are the operation arguments.
	Args map[string]interface{} `yaml:"args"`

	// Expect is the expected outcome. If nil, the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is "ok", a revert error code (ABORTED, ROOT_NOT_FOUND, ...),
	// NOT_FOUND, MISSING_ENTITY, or INVALID.
	Outcome string `yaml:"outcome"`
}

// Assertion validates state after all steps ran.
type Assertion struct {
	// Type is one of aggregate, matches_capture, history, context_count.
	Type string `yaml:"type"`

	// Note is the root note the assertion inspects.
	Note string `yaml:"note"`

	// Expect is a subset of the note's summary (used by aggregate).
	Expect map[string]interface{} `yaml:"expect,omitempty"`

	// Capture names a captured summary (used by matches_capture).
	Capture string `yaml:"capture,omitempty"`

	// Labels are the expected context labels in order (used by history).
	Labels []string `yaml:"labels,omitempty"`

	// Label and Count are used by context_count.
	Label string `yaml:"label,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAggregate      = "aggregate"
	AssertMatchesCapture = "matches_capture"
	AssertHistory        = "history"
	AssertContextCount   = "context_count"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by path.
func LoadScenarios(dir string) ([]*Scenario, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		spec, ok := operations[step.Op]
		if !ok {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		for _, key := range spec.required {
			if _, ok := step.Args[key]; !ok {
				return fmt.Errorf("steps[%d]: %s requires arg %q", i, step.Op, key)
			}
		}
		if step.At < 0 {
			return fmt.Errorf("steps[%d]: at must be non-negative", i)
		}
		if step.Expect != nil && step.Expect.Outcome == "" {
			return fmt.Errorf("steps[%d].expect: outcome is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Note == "" {
		return fmt.Errorf("assertions[%d]: note is required", index)
	}

	switch a.Type {
	case AssertAggregate:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for aggregate", index)
		}
	case AssertMatchesCapture:
		if a.Capture == "" {
			return fmt.Errorf("assertions[%d]: capture is required for matches_capture", index)
		}
	case AssertHistory:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for history", index)
		}
	case AssertContextCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for context_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for context_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
