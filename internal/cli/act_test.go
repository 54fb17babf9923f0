package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActInverseUpdate(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "expression.cue", expressionDocument)
	db := filepath.Join(dir, "vellum.db")

	out, err := execute(t, "", "--format", "json", "act", doc, "n", "setValue",
		"--db", db, "--document-id", "doc-1", "--args", `{"value": 10}`, "--show", "n", "--show", "m")
	require.NoError(t, err)

	resp := decodeResponse[ActResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "doc-1", resp.Data.DocumentID)
	assert.False(t, resp.Data.Resumed)
	assert.Equal(t, int64(1), resp.Data.Record.Seq)
	assert.Empty(t, resp.Data.Record.Error)
	assert.NotEmpty(t, resp.Data.Record.EssentialHash)

	require.Len(t, resp.Data.Values, 2)
	assert.JSONEq(t, "10", string(resp.Data.Values[0].Value))
	assert.JSONEq(t, "5", string(resp.Data.Values[1].Value))
}

func TestActResumesJournaledDocument(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "expression.cue", expressionDocument)
	db := filepath.Join(dir, "vellum.db")

	_, err := execute(t, "", "act", doc, "n", "setValue", "--db", db, "--document-id", "doc-1", "--args", `{"value": 10}`)
	require.NoError(t, err)

	out, err := execute(t, "", "--format", "json", "act", doc, "m", "setValue",
		"--db", db, "--document-id", "doc-1", "--args", `{"value": 1}`, "--show", "n")
	require.NoError(t, err)

	resp := decodeResponse[ActResult](t, out)
	assert.True(t, resp.Data.Resumed)
	assert.Equal(t, 1, resp.Data.Replayed)
	assert.Equal(t, int64(2), resp.Data.Record.Seq)
	require.Len(t, resp.Data.Values, 1)
	assert.JSONEq(t, "2", string(resp.Data.Values[0].Value))
}

func TestActFailedActionIsJournaled(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "expression.cue", expressionDocument)
	db := filepath.Join(dir, "vellum.db")

	out, err := execute(t, "", "act", doc, "m", "setValue", "--db", db, "--document-id", "doc-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ [1] m.setValue {}")
	assert.Contains(t, out, "error: setValue needs a value")

	out, err = execute(t, "", "trace", "--db", db, "--document-id", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] ✗ m.setValue")
}

func TestActUnknownComponent(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "expression.cue", expressionDocument)

	out, err := execute(t, "", "act", doc, "ghost", "setValue", "--db", filepath.Join(dir, "vellum.db"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeActionError)
}

func TestActRejectsChangedSource(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "expression.cue", expressionDocument)
	db := filepath.Join(dir, "vellum.db")

	_, err := execute(t, "", "act", doc, "n", "setValue", "--db", db, "--document-id", "doc-1", "--args", `{"value": 10}`)
	require.NoError(t, err)

	other := writeFile(t, dir, "grid.cue", gridDocument)
	_, err = execute(t, "", "act", other, "P", "movePoint", "--db", db, "--document-id", "doc-1", "--args", `{"x": 1}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "different source")
}

func TestActRequiresDatabase(t *testing.T) {
	doc := writeFile(t, t.TempDir(), "expression.cue", expressionDocument)

	_, err := execute(t, "", "act", doc, "n", "setValue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
