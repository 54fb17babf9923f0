package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/engine"
)

func TestCompileText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	out, err := execute(t, "", "compile", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled")
	assert.Contains(t, out, "Components: 3 (2 named, 0 copies)")
	assert.Contains(t, out, "number: 2")
	assert.Contains(t, out, "document: 1")
}

func TestCompileJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grid.cue", gridDocument)

	out, err := execute(t, "", "--format", "json", "compile", path)
	require.NoError(t, err)

	resp := decodeResponse[CompilationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "document", resp.Data.Document.Type)
	require.Len(t, resp.Data.Document.Children, 1)
	assert.Equal(t, "P", resp.Data.Document.Children[0].Name)
	assert.Equal(t, 1, resp.Data.Stats.ByType["constrainToGrid"])
	assert.Len(t, resp.Data.Hash, 64)
}

func TestCompileHashIsStable(t *testing.T) {
	dir := t.TempDir()
	a, err := LoadDocument(writeFile(t, dir, "a.cue", expressionDocument))
	require.NoError(t, err)
	b, err := LoadDocument(writeFile(t, dir, "b/b.cue", expressionDocument))
	require.NoError(t, err)
	c, err := LoadDocument(writeFile(t, dir, "c.cue", gridDocument))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "expression.cue", expressionDocument)
	outputFile := filepath.Join(dir, "compiled.json")

	out, err := execute(t, "", "compile", path, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Output: "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)
	var spec engine.NodeSpec
	require.NoError(t, json.Unmarshal(data, &spec))
	assert.Len(t, spec.Children, 2)
}

func TestCompileMissingDocument(t *testing.T) {
	out, err := execute(t, "", "--format", "json", "compile", "/nonexistent/doc.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse[any](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestCompileInvalidCUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.cue", "document: {children: [\n")

	out, err := execute(t, "", "compile", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeLoadFailed)
}

func TestCompileNoArgs(t *testing.T) {
	_, err := execute(t, "", "compile")
	require.Error(t, err)
}

func TestCalculateStats(t *testing.T) {
	stats := calculateStats(engine.NodeSpec{
		Type: "document",
		Children: []engine.NodeSpec{
			{Type: "number", Name: "a", Attributes: map[string]any{"value": 1}},
			{CopySource: "a", Name: "b"},
			{Type: "graph", Children: []engine.NodeSpec{{Type: "point"}}},
		},
	})

	assert.Equal(t, 5, stats.Components)
	assert.Equal(t, 2, stats.Named)
	assert.Equal(t, 1, stats.Copies)
	assert.Equal(t, 1, stats.Attributes)
	assert.Equal(t, 1, stats.ByType["(copy)"])
	assert.Equal(t, 1, stats.ByType["point"])
}
