package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sprintledger/internal/entity"
)

// Scenario is one conformance scenario.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Seed is an optional CUE fixture applied before the flow. Relative
	// paths resolve against the scenario file.
	Seed string `yaml:"seed,omitempty"`

	Flow       []Step      `yaml:"flow"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one tracker operation.
type Step struct {
	Op   string `yaml:"op"`
	Kind string `yaml:"kind"`
	ID   string `yaml:"id,omitempty"`
	As   string `yaml:"as,omitempty"`

	Body   map[string]any    `yaml:"body,omitempty"`
	Filter map[string]string `yaml:"filter,omitempty"`

	// Expect defaults to success with no result checks.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step's outcome.
type Expect struct {
	// Error is the expected error code; empty means success.
	Error string `yaml:"error"`
	// Result is a subset match against the returned record.
	Result map[string]any `yaml:"result,omitempty"`
	// Count checks the length of a list result.
	Count *int `yaml:"count,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	Type string `yaml:"type"`

	Kind    string         `yaml:"kind,omitempty"`
	ID      string         `yaml:"id,omitempty"`
	Where   map[string]any `yaml:"where,omitempty"`
	Expect  map[string]any `yaml:"expect,omitempty"`
	Count   int            `yaml:"count,omitempty"`
	Op      string         `yaml:"op,omitempty"`
	Outcome string         `yaml:"outcome,omitempty"`
	Steps   []string       `yaml:"steps,omitempty"`
}

// Step operations.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpGet    = "get"
	OpList   = "list"
	OpRecalc = "recalc"
)

// Assertion types.
const (
	AssertFinalState    = "final_state"
	AssertStateCount    = "state_count"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
	AssertTraceOrder    = "trace_order"
)

// LoadScenario reads and validates the scenario at path. Unknown YAML
// fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Seed != "" && !filepath.IsAbs(s.Seed) {
		s.Seed = filepath.Join(filepath.Dir(path), s.Seed)
	}
	if s.Seed != "" {
		if _, err := os.Stat(s.Seed); err != nil {
			return nil, fmt.Errorf("invalid scenario: seed file: %w", err)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(i int, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("flow[%d]: op is required", i)
	}
	needsKind := step.Op != OpRecalc
	if needsKind {
		if _, err := entity.ParseKind(step.Kind); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	switch step.Op {
	case OpCreate:
		if step.Body == nil {
			return fmt.Errorf("flow[%d]: body is required for create", i)
		}
	case OpUpdate:
		if step.ID == "" || step.Body == nil {
			return fmt.Errorf("flow[%d]: id and body are required for update", i)
		}
	case OpDelete, OpGet:
		if step.ID == "" {
			return fmt.Errorf("flow[%d]: id is required for %s", i, step.Op)
		}
	case OpList, OpRecalc:
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", i, step.Op)
	}
	if step.As != "" && step.Op != OpCreate {
		return fmt.Errorf("flow[%d]: as is only valid on create", i)
	}
	return nil
}

func validateAssertion(i int, a Assertion) error {
	switch a.Type {
	case AssertFinalState:
		if a.Kind == "" || a.ID == "" || len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: kind, id and expect are required for final_state", i)
		}
	case AssertStateCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for state_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", i)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", i)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", i)
		}
	case AssertTraceOrder:
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required for trace_order", i)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", i)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", i, a.Type)
	}
	if a.Kind != "" {
		if _, err := entity.ParseKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}
