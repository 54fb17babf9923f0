package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/vellum/internal/ir"
)

// TraceSnapshot captures what a scenario run did and where it ended up.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Variant      string       `json:"variant"`
	Trace        []TraceEvent `json:"trace"`
	Essentials   ir.IRObject  `json:"essentials"`
	Diagnostics  []string     `json:"diagnostics,omitempty"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Variant:      result.Variant,
		Trace:        result.Trace,
		Essentials:   result.Essentials,
		Diagnostics:  result.Diagnostics,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":       event.Seq,
			"component": event.Component,
			"action":    event.Action,
		}
		if len(event.Args) > 0 {
			eventMap["args"] = event.Args
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		if event.Setup {
			eventMap["setup"] = true
		}
		traceList[i] = eventMap
	}

	essentials := s.Essentials
	if essentials == nil {
		essentials = ir.IRObject{}
	}
	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"variant":       s.Variant,
		"trace":         traceList,
		"essentials":    essentials,
	}
	if len(s.Diagnostics) > 0 {
		diags := make([]any, len(s.Diagnostics))
		for i, d := range s.Diagnostics {
			diags[i] = d
		}
		result["diagnostics"] = diags
	}
	return result
}

// Canonical returns the snapshot as canonical JSON.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
