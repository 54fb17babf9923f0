package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

func newDocument(t *testing.T, root engine.NodeSpec, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithDocumentID("catalog-test"),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	e := engine.New(NewRegistry(), root, opts...)
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func document(children ...engine.NodeSpec) engine.NodeSpec {
	return engine.NodeSpec{Type: "document", Name: "doc", Children: children}
}

func node(typ, name string, attrs map[string]any, children ...engine.NodeSpec) engine.NodeSpec {
	return engine.NodeSpec{Type: typ, Name: name, Attributes: attrs, Children: children}
}

func xy(x, y float64) []any { return []any{x, y} }

func vecOf(t *testing.T, e *engine.Engine, path string) []float64 {
	t.Helper()
	v, err := e.Value(path)
	require.NoError(t, err, path)
	xs, ok := ir.AsVector(v)
	require.True(t, ok, "%s is not a vector: %v", path, v)
	return xs
}

func floatOf(t *testing.T, e *engine.Engine, path string) float64 {
	t.Helper()
	v, err := e.Value(path)
	require.NoError(t, err, path)
	f, ok := ir.AsFloat(v)
	require.True(t, ok, "%s is not a number: %v", path, v)
	return f
}

func dispatch(t *testing.T, e *engine.Engine, component, action string, args ir.IRObject) {
	t.Helper()
	rec, _, err := e.Dispatch(context.Background(), engine.ActionRequest{Component: component, Action: action, Args: args})
	require.NoError(t, err)
	require.Empty(t, rec.Error)
}

func warnings(e *engine.Engine) []string {
	var out []string
	for _, d := range e.Diagnostics() {
		if d.Level == engine.LevelWarning {
			out = append(out, d.Message)
		}
	}
	return out
}

func assertVec(t *testing.T, want []float64, got []float64, msgAndArgs ...any) {
	t.Helper()
	require.Len(t, got, len(want), msgAndArgs...)
	for i := range want {
		require.InDelta(t, want[i], got[i], 1e-9, msgAndArgs...)
	}
}

func actionRequest(component, action string, args ir.IRObject) engine.ActionRequest {
	return engine.ActionRequest{Component: component, Action: action, Args: args}
}
