package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/engine"
)

func numberNode(name string, value any) engine.NodeSpec {
	return engine.NodeSpec{Type: "number", Name: name, Attributes: map[string]any{"value": value}}
}

func docOf(children ...engine.NodeSpec) engine.NodeSpec {
	return engine.NodeSpec{Type: "document", Children: children}
}

func TestAnalyzeReferences_Empty(t *testing.T) {
	warnings := AnalyzeReferences(docOf())
	assert.Empty(t, warnings)
}

func TestAnalyzeReferences_DAG(t *testing.T) {
	warnings := AnalyzeReferences(docOf(
		numberNode("a", 1),
		numberNode("b", "$a"),
		numberNode("c", "=$a+$b"),
	))
	assert.Empty(t, warnings, "DAG should produce no cycle warnings")
}

func TestAnalyzeReferences_TwoNodeCycle(t *testing.T) {
	warnings := AnalyzeReferences(docOf(
		numberNode("a", "$b.value"),
		numberNode("b", "=2*$a"),
	))

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
	assert.Equal(t, "warning", warnings[0].Level)
	assert.Equal(t, "Potential reference cycle: a → b → a", warnings[0].Message)
}

func TestAnalyzeReferences_SelfReference(t *testing.T) {
	p := engine.NodeSpec{Type: "point", Name: "P", Attributes: map[string]any{"coords": []any{1, 2}}}
	q := engine.NodeSpec{Type: "number", Name: "y", Attributes: map[string]any{"value": "=$y.value+1"}}

	warnings := AnalyzeReferences(docOf(p, q))
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"y", "y"}, warnings[0].Path)
	assert.Equal(t, "info", warnings[0].Level)
}

func TestAnalyzeReferences_ThroughCopiesAndNesting(t *testing.T) {
	warnings := AnalyzeReferences(docOf(
		engine.NodeSpec{Type: "graph", Name: "g", Children: []engine.NodeSpec{
			numberNode("a", "$inner.value"),
		}},
		engine.NodeSpec{Type: "group", Name: "s", Children: []engine.NodeSpec{
			{CopySource: "c", Name: "inner"},
		}},
		numberNode("c", "$a"),
		numberNode("lit", "$$a"),
	))

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "inner", "c", "a"}, warnings[0].Path)
}
