package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/compiler"
	"github.com/roach88/vellum/internal/engine"
)

func TestValidateValidDocument(t *testing.T) {
	path := writeFile(t, t.TempDir(), "grid.cue", gridDocument)

	out, err := execute(t, "", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path+" is valid")
}

func TestValidateUnknownType(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", unknownTypeDocument)

	out, err := execute(t, "", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrUnknownType)
	assert.Contains(t, out, "is invalid")
}

func TestValidateJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", unknownTypeDocument)

	out, err := execute(t, "", "--format", "json", "validate", path)
	require.Error(t, err)

	resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrUnknownType, resp.Error.Code)
	assert.False(t, resp.Data.Valid)
	require.NotEmpty(t, resp.Data.Errors)
	assert.Equal(t, compiler.ErrUnknownType, resp.Data.Errors[0].Code)
}

func TestValidateDocumentBuildsEngine(t *testing.T) {
	doc, err := LoadDocument(writeFile(t, t.TempDir(), "expression.cue", expressionDocument))
	require.NoError(t, err)

	result, err := validateDocument(context.Background(), doc.Spec)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Cycles)
}

func TestFirstErrorCode(t *testing.T) {
	assert.Equal(t, "E104", firstErrorCode(ValidationResult{
		Errors: []compiler.ValidationError{{Code: "E104"}},
	}))
	assert.Equal(t, ErrCodeCycle, firstErrorCode(ValidationResult{
		Cycles: []engine.CycleWarning{{Level: engine.LevelWarning}, {Level: engine.LevelError}},
	}))
	assert.Equal(t, ErrCodeDiagnostic, firstErrorCode(ValidationResult{
		Diagnostics: []engine.Diagnostic{{Level: engine.LevelError}},
	}))
}

func TestFormatDiagnostic(t *testing.T) {
	d := engine.Diagnostic{Level: engine.LevelWarning, Message: "no such variable", Component: "P", Variable: "z"}
	assert.Equal(t, "P.z: no such variable", formatDiagnostic(d))

	d.Range.Start = engine.Position{Line: 4, Column: 9}
	assert.Equal(t, "4:9: P.z: no such variable", formatDiagnostic(d))

	assert.Equal(t, "bare", formatDiagnostic(engine.Diagnostic{Message: "bare"}))
}
