package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rayDocument = `
document: {
	name: "lesson"
	attributes: {title: "Rays", numVariants: 4}
	children: [
		{type: "graph", name: "g", attributes: {xmin: -50, xmax: 50.5}, children: [
			{type: "ray", name: "r", attributes: {through: [1, 0], direction: [3, 4]}},
			{type: "point", name: "P", attributes: {coords: "$r.endpoint"}},
			{copySource: "P", name: "Q"},
		]},
	]
}
`

func TestCompileDocumentBasic(t *testing.T) {
	root, err := CompileSource("ray.cue", []byte(rayDocument))
	require.NoError(t, err)

	assert.Equal(t, "document", root.Type)
	assert.Equal(t, "lesson", root.Name)
	assert.Equal(t, map[string]any{"title": "Rays", "numVariants": int64(4)}, root.Attributes)
	require.Len(t, root.Children, 1)

	graph := root.Children[0]
	assert.Equal(t, "graph", graph.Type)
	assert.Equal(t, int64(-50), graph.Attributes["xmin"])
	assert.Equal(t, 50.5, graph.Attributes["xmax"])
	require.Len(t, graph.Children, 3)

	ray := graph.Children[0]
	assert.Equal(t, []any{int64(1), int64(0)}, ray.Attributes["through"])
	assert.Equal(t, "$r.endpoint", graph.Children[1].Attributes["coords"])

	cp := graph.Children[2]
	assert.Empty(t, cp.Type, "a copy takes its type from the source")
	assert.Equal(t, "P", cp.CopySource)
}

func TestCompileDocumentPositions(t *testing.T) {
	root, err := CompileSource("ray.cue", []byte(rayDocument))
	require.NoError(t, err)

	ray := root.Children[0].Children[0]
	assert.Equal(t, "ray.cue", ray.Range.Start.File)
	assert.Equal(t, 7, ray.Range.Start.Line)
	assert.True(t, ray.Range.End.IsValid())
}

func TestCompileDocumentFromValue(t *testing.T) {
	v := cuecontext.New().CompileString(`
		#Point: {type: "point", name?: string, attributes: coords: [...number]}
		document: children: [#Point & {name: "A", attributes: coords: [1, 2]}]
	`)
	require.NoError(t, v.Err())

	root, err := CompileDocument(v)
	require.NoError(t, err)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "point", root.Children[0].Type)
	assert.Equal(t, []any{int64(1), int64(2)}, root.Children[0].Attributes["coords"])
}

func TestCompileDocumentErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "missing document",
			src:   `other: {}`,
			field: "document",
		},
		{
			name:  "child without type",
			src:   `document: children: [{name: "x"}]`,
			field: "document.children[0].type",
		},
		{
			name:  "unknown field",
			src:   `document: {colour: "red"}`,
			field: "document.colour",
		},
		{
			name:  "non-concrete attribute",
			src:   `document: children: [{type: "number", attributes: value: number}]`,
			field: "document.children[0].attributes.value",
		},
		{
			name:  "children not a list",
			src:   `document: children: {a: 1}`,
			field: "document.children",
		},
		{
			name:  "type not a string",
			src:   `document: children: [{type: 3}]`,
			field: "document.children[0].type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileSource("bad.cue", []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileSourceSyntaxError(t *testing.T) {
	_, err := CompileSource("broken.cue", []byte(`document: {`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Contains(t, ce.Error(), "broken.cue:")
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.cue")
	require.NoError(t, os.WriteFile(path, []byte("package lesson\n"+rayDocument), 0o644))

	fromFile, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lesson", fromFile.Name)

	fromDir, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "lesson", fromDir.Name)
	assert.Len(t, fromDir.Children, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "document", Message: "document is required"}
	assert.Equal(t, "document: document is required", err.Error())
}
