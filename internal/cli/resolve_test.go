package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	out, err := execute(t, "", "resolve", path, "n", "m.value")
	require.NoError(t, err)

	assert.Contains(t, out, "variant a (1 of")
	assert.Contains(t, out, "n = 4\n")
	assert.Contains(t, out, "m.value = 2\n")
}

func TestResolveJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	out, err := execute(t, "", "--format", "json", "resolve", path, "n")
	require.NoError(t, err)

	resp := decodeResponse[ResolveResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.Data.DocumentID)
	require.Len(t, resp.Data.Values, 1)
	assert.Equal(t, "n", resp.Data.Values[0].Path)
	assert.JSONEq(t, "4", string(resp.Data.Values[0].Value))
}

func TestResolveAllVariables(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	out, err := execute(t, "", "--format", "json", "resolve", path)
	require.NoError(t, err)

	resp := decodeResponse[ResolveResult](t, out)
	paths := make(map[string]string)
	for _, v := range resp.Data.Values {
		paths[v.Path] = string(v.Value)
	}
	assert.Equal(t, "2", paths["m.value"])
	assert.Equal(t, "4", paths["n.value"])
}

func TestResolveVariantByName(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grid.cue", gridDocument)

	out, err := execute(t, "", "--format", "json", "resolve", path, "P.coords", "--variant", "beta")
	require.NoError(t, err)

	resp := decodeResponse[ResolveResult](t, out)
	assert.Equal(t, "beta", resp.Data.Variant.Name)
	assert.Equal(t, 2, resp.Data.Variant.Index)
}

func TestResolveUnknownPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	out, err := execute(t, "", "resolve", path, "n", "missing.value")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "n = 4")
	assert.Contains(t, out, "✗ missing.value:")
}

func TestResolveInvalidVariant(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	_, err := execute(t, "", "resolve", path, "--variant", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
