package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/vellum/internal/engine"
)

// Scenario defines a document test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Document is the CUE file (or directory) holding the document.
	// Relative paths resolve against the scenario file's directory.
	Document string `yaml:"document"`

	// DocumentID fixes the document ID. Defaults to "test-document".
	DocumentID string `yaml:"document_id,omitempty"`

	// Variant selects the variant to initialize. Defaults to the first.
	Variant *engine.VariantRequest `yaml:"variant,omitempty"`

	// Setup actions run before the flow and must succeed.
	Setup []ActionStep `yaml:"setup,omitempty"`

	// Flow contains the actions under test, each with optional
	// expectations checked right after it runs.
	Flow []FlowStep `yaml:"flow"`

	// Assertions are checked after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ActionStep dispatches one action.
type ActionStep struct {
	// Component is a name path resolved from the document root.
	Component string `yaml:"component"`

	// Action is the action name (e.g. "movePoint").
	Action string `yaml:"action"`

	// Args are converted to ir values with ir.FromGo.
	Args map[string]any `yaml:"args,omitempty"`
}

// FlowStep is an action with expectations.
type FlowStep struct {
	ActionStep `yaml:",inline"`

	// Expect is checked after the action. Nil means the action must not
	// fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the outcome of one flow step.
type ExpectClause struct {
	// Error expects the action to fail.
	Error bool `yaml:"error,omitempty"`

	// ErrorContains expects a failure whose message contains this text.
	// Implies Error.
	ErrorContains string `yaml:"error_contains,omitempty"`

	// Values maps paths to the values they must resolve to.
	Values map[string]any `yaml:"values,omitempty"`

	// Tolerance for numeric comparison. Defaults to 1e-9.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion validates the document after the flow.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Path is the value path (value).
	Path string `yaml:"path,omitempty"`

	// Key is the essential key, e.g. "P@coords.value" (essential).
	Key string `yaml:"key,omitempty"`

	// Expect is the expected value (value, essential). A null expect on
	// an essential asserts the key is absent.
	Expect any `yaml:"expect,omitempty"`

	// Tolerance for numeric comparison (value, essential).
	Tolerance float64 `yaml:"tolerance,omitempty"`

	// Contains is a substring of a diagnostic message (diagnostic).
	Contains string `yaml:"contains,omitempty"`

	// Level restricts diagnostic to "warning" or "error" (diagnostic).
	Level string `yaml:"level,omitempty"`

	// Action is "component.action" (trace_count).
	Action string `yaml:"action,omitempty"`

	// Actions is the expected order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Name is the expected variant name (variant).
	Name string `yaml:"name,omitempty"`
}

// Assertion type constants.
const (
	AssertValue      = "value"
	AssertEssential  = "essential"
	AssertDiagnostic = "diagnostic"
	AssertTraceOrder = "trace_order"
	AssertTraceCount = "trace_count"
	AssertVariant    = "variant"
)

// LoadScenario reads and parses a scenario YAML file, resolving the
// document path against the file's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the document path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Document != "" && !filepath.IsAbs(scenario.Document) && basePath != "" {
		scenario.Document = filepath.Join(basePath, scenario.Document)
	}
	if _, err := os.Stat(scenario.Document); err != nil {
		return nil, fmt.Errorf("invalid scenario: document not found: %s", scenario.Document)
	}

	return scenario, nil
}

// ParseScenario parses scenario YAML without touching the filesystem.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Document == "" {
		return fmt.Errorf("document is required")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(step.ActionStep); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Tolerance < 0 {
			return fmt.Errorf("flow[%d].expect: tolerance must be non-negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step ActionStep) error {
	if step.Component == "" {
		return fmt.Errorf("component is required")
	}
	if step.Action == "" {
		return fmt.Errorf("action is required")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}

	switch a.Type {
	case AssertValue:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for value", index)
		}
	case AssertEssential:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for essential", index)
		}
	case AssertDiagnostic:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for diagnostic", index)
		}
		switch engine.Level(a.Level) {
		case "", engine.LevelWarning, engine.LevelError:
		default:
			return fmt.Errorf("assertions[%d]: unknown diagnostic level %q", index, a.Level)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertVariant:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for variant", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
