package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one action"
document: doc.cue
flow:
  - component: n
    action: setValue
    args: {value: 1}
`

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)

	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, "doc.cue", s.Document)
	assert.Empty(t, s.DocumentID)
	assert.Nil(t, s.Variant)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, "n", s.Flow[0].Component)
	assert.Equal(t, "setValue", s.Flow[0].Action)
	assert.Equal(t, map[string]any{"value": 1}, s.Flow[0].Args)
	assert.Nil(t, s.Flow[0].Expect)
}

func TestParseScenario_Full(t *testing.T) {
	data := `
name: full
description: "every section"
document: doc.cue
document_id: doc-1
variant: {index: 2}
setup:
  - component: P
    action: movePoint
    args: {coords: [1, 2]}
flow:
  - component: P
    action: movePoint
    args: {x: 3}
    expect:
      values: {P.x1: 3}
      tolerance: 0.001
  - component: P
    action: bogus
    expect:
      error_contains: "no action"
assertions:
  - type: value
    path: P.x2
    expect: 2
  - type: essential
    key: P@coords.value
    expect: [3, 2]
  - type: diagnostic
    contains: "limits"
    level: warning
  - type: trace_order
    actions: [P.movePoint, P.bogus]
  - type: trace_count
    action: P.movePoint
    count: 2
  - type: variant
    name: b
`
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, "doc-1", s.DocumentID)
	require.NotNil(t, s.Variant)
	assert.Equal(t, 2, s.Variant.Index)
	require.Len(t, s.Setup, 1)
	assert.Equal(t, []any{1, 2}, s.Setup[0].Args["coords"])

	require.Len(t, s.Flow, 2)
	require.NotNil(t, s.Flow[0].Expect)
	assert.Equal(t, 0.001, s.Flow[0].Expect.Tolerance)
	assert.Equal(t, map[string]any{"P.x1": 3}, s.Flow[0].Expect.Values)
	assert.Equal(t, "no action", s.Flow[1].Expect.ErrorContains)

	require.Len(t, s.Assertions, 6)
	types := make([]string, len(s.Assertions))
	for i, a := range s.Assertions {
		types[i] = a.Type
	}
	assert.Equal(t, []string{
		AssertValue, AssertEssential, AssertDiagnostic,
		AssertTraceOrder, AssertTraceCount, AssertVariant,
	}, types)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "missing name",
			data:    "description: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			data:    "name: s\ndocument: x.cue\nflow: [{component: n, action: setValue}]\n",
			wantErr: "description is required",
		},
		{
			name:    "missing document",
			data:    "name: s\ndescription: d\nflow: [{component: n, action: setValue}]\n",
			wantErr: "document is required",
		},
		{
			name:    "empty flow",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: []\n",
			wantErr: "flow list is required",
		},
		{
			name:    "step without component",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{action: setValue}]\n",
			wantErr: "flow[0]: component is required",
		},
		{
			name:    "setup without action",
			data:    "name: s\ndescription: d\ndocument: x.cue\nsetup: [{component: n}]\nflow: [{component: n, action: setValue}]\n",
			wantErr: "setup[0]: action is required",
		},
		{
			name:    "negative tolerance",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue, expect: {tolerance: -1}}]\n",
			wantErr: "tolerance must be non-negative",
		},
		{
			name:    "unknown field",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "unknown assertion type",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: magic}]\n",
			wantErr: `unknown assertion type "magic"`,
		},
		{
			name:    "value without path",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: value, expect: 1}]\n",
			wantErr: "path is required for value",
		},
		{
			name:    "essential without key",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: essential}]\n",
			wantErr: "key is required for essential",
		},
		{
			name:    "diagnostic with bad level",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: diagnostic, contains: x, level: fatal}]\n",
			wantErr: `unknown diagnostic level "fatal"`,
		},
		{
			name:    "trace_order without actions",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: trace_order}]\n",
			wantErr: "actions list is required",
		},
		{
			name:    "trace_count without action",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: trace_count, count: 1}]\n",
			wantErr: "action is required for trace_count",
		},
		{
			name:    "variant without name",
			data:    "name: s\ndescription: d\ndocument: x.cue\nflow: [{component: n, action: setValue}]\nassertions: [{type: variant}]\n",
			wantErr: "name is required for variant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_ResolvesDocumentPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.cue"), []byte("document: {}\n"), 0o644))
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "doc.cue"), s.Document)
}

func TestLoadScenario_MissingDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.FileExists(t, s.Document)
		})
	}
}
