package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/ir"
)

func TestRunWithGolden_SetNumbers(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/set_numbers.yaml")
	require.NoError(t, err)

	// Regenerate with: go test ./internal/harness -run TestRunWithGolden -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	result := NewResult()
	result.Variant = "b"
	result.Trace = []TraceEvent{
		{Seq: 1, Component: "P", Action: "movePoint", Args: ir.IRObject{"x": ir.IRNumber(2.5)}, Setup: true},
		{Seq: 2, Component: "P", Action: "movePoint", Args: ir.IRObject{}, Error: "no coordinates"},
	}
	result.Essentials = ir.IRObject{"P@coords.value": ir.Vec(2.5, 0)}

	snapshot := NewTraceSnapshot("canonical", result)
	data, err := snapshot.Canonical()
	require.NoError(t, err)

	want := `{"essentials":{"P@coords.value":[2.5,0]},"scenario_name":"canonical",` +
		`"trace":[{"action":"movePoint","args":{"x":2.5},"component":"P","seq":1,"setup":true},` +
		`{"action":"movePoint","component":"P","error":"no coordinates","seq":2}],"variant":"b"}`
	assert.Equal(t, want, string(data))
}

func TestTraceSnapshot_Diagnostics(t *testing.T) {
	result := NewResult()
	result.Variant = "a"
	result.Diagnostics = []string{"warning: graph limits are inverted; distances use unit scales"}

	snapshot := NewTraceSnapshot("diags", result)
	data, err := snapshot.Canonical()
	require.NoError(t, err)

	assert.Equal(t,
		`{"diagnostics":["warning: graph limits are inverted; distances use unit scales"],"essentials":{},"scenario_name":"diags","trace":[],"variant":"a"}`,
		string(data))
}

func TestTraceSnapshot_NilEssentials(t *testing.T) {
	snapshot := TraceSnapshot{ScenarioName: "empty", Variant: "a"}
	data, err := snapshot.Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{"essentials":{},"scenario_name":"empty","trace":[],"variant":"a"}`, string(data))
}
