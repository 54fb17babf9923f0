package harness

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

const numbersDocument = "testdata/documents/numbers.cue"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func step(component, action string, args map[string]any) FlowStep {
	return FlowStep{ActionStep: ActionStep{Component: component, Action: action, Args: args}}
}

func TestRun_Scenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_TraceFromJournal(t *testing.T) {
	scenario := &Scenario{
		Name:     "trace",
		Document: numbersDocument,
		Setup:    []ActionStep{{Component: "n", Action: "setValue", Args: map[string]any{"value": 1}}},
		Flow: []FlowStep{
			step("m", "setValue", map[string]any{"value": 4}),
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{
		Seq: 1, Component: "n", Action: "setValue",
		Args:  ir.IRObject{"value": ir.IRNumber(1)},
		Setup: true,
	}, result.Trace[0])
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, "m.setValue", result.Trace[1].Ref())
	assert.False(t, result.Trace[1].Setup)

	assert.Equal(t, ir.IRObject{
		"n.value":       ir.IRNumber(1),
		"m@value.value": ir.IRNumber(4),
	}, result.Essentials)
	assert.Equal(t, "a", result.Variant)
}

func TestRun_UnexpectedErrorFailsScenario(t *testing.T) {
	scenario := &Scenario{
		Name:     "unexpected",
		Document: numbersDocument,
		Flow: []FlowStep{
			step("m", "setValue", nil),
			step("m", "setValue", map[string]any{"value": 2}),
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0] m.setValue: unexpected error")

	require.Len(t, result.Trace, 2, "the failed action is journaled and the flow continues")
	assert.Equal(t, "setValue needs a value", result.Trace[0].Error)
}

func TestRun_ExpectClauses(t *testing.T) {
	tests := []struct {
		name    string
		step    FlowStep
		wantErr string
	}{
		{
			name: "expected error missing",
			step: FlowStep{
				ActionStep: ActionStep{Component: "m", Action: "setValue", Args: map[string]any{"value": 1}},
				Expect:     &ExpectClause{Error: true},
			},
			wantErr: "expected an error, action succeeded",
		},
		{
			name: "error text mismatch",
			step: FlowStep{
				ActionStep: ActionStep{Component: "m", Action: "setValue"},
				Expect:     &ExpectClause{ErrorContains: "out of range"},
			},
			wantErr: `does not contain "out of range"`,
		},
		{
			name: "value mismatch",
			step: FlowStep{
				ActionStep: ActionStep{Component: "m", Action: "setValue", Args: map[string]any{"value": 1}},
				Expect:     &ExpectClause{Values: map[string]any{"m": 2}},
			},
			wantErr: "value: want 2, got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(&Scenario{Name: tt.name, Document: numbersDocument, Flow: []FlowStep{tt.step}})
			require.NoError(t, err)
			assert.False(t, result.Pass)
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestRun_ValueTolerance(t *testing.T) {
	result, err := Run(&Scenario{
		Name:     "tolerance",
		Document: numbersDocument,
		Flow: []FlowStep{{
			ActionStep: ActionStep{Component: "m", Action: "setValue", Args: map[string]any{"value": 1.0004}},
			Expect:     &ExpectClause{Values: map[string]any{"m": 1}, Tolerance: 0.001},
		}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:     "setup",
		Document: numbersDocument,
		Setup:    []ActionStep{{Component: "ghost", Action: "setValue"}},
		Flow:     []FlowStep{step("m", "setValue", map[string]any{"value": 1})},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute setup: setup step 0")
}

func TestRun_MissingDocument(t *testing.T) {
	_, err := Run(&Scenario{
		Name:     "missing",
		Document: "testdata/documents/nope.cue",
		Flow:     []FlowStep{step("m", "setValue", nil)},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load document")
}

func TestRun_VariantRequest(t *testing.T) {
	scenario := &Scenario{
		Name:     "variant",
		Document: "testdata/documents/grid.cue",
		Variant:  &engine.VariantRequest{Index: 2},
		Flow:     []FlowStep{step("P", "movePoint", map[string]any{"coords": []any{6, 4}})},
		Assertions: []Assertion{
			{Type: AssertVariant, Name: "beta"},
			{Type: AssertValue, Path: "P", Expect: []any{5, 3}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "beta", result.Variant)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/set_numbers.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a := NewTraceSnapshot(scenario.Name, first)
	b := NewTraceSnapshot(scenario.Name, second)
	ab, err := a.Canonical()
	require.NoError(t, err)
	bb, err := b.Canonical()
	require.NoError(t, err)
	assert.Equal(t, string(ab), string(bb))
}

func TestConvertArgs(t *testing.T) {
	args, err := convertArgs(map[string]any{
		"coords": []any{1, 2.5},
		"label":  "P",
		"snap":   true,
	})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{
		"coords": ir.Vec(1, 2.5),
		"label":  ir.IRString("P"),
		"snap":   ir.IRBool(true),
	}, args)

	empty, err := convertArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{}, empty)

	_, err = convertArgs(map[string]any{"bad": struct{}{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "bad"`)
}
