package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

const expressionDocument = `document: {
	attributes: {title: "Expression"}
	children: [
		{type: "number", name: "m", attributes: {value: 2}},
		{type: "number", name: "n", attributes: {value: "=2*$m"}},
	]
}
`

const gridDocument = `document: {
	attributes: {variantNames: ["alpha", "beta"]}
	children: [
		{type: "point", name: "P", attributes: {coords: [4, 1]}, children: [
			{type: "constrainToGrid", attributes: {dx: 5, dy: 3}},
		]},
	]
}
`

const unknownTypeDocument = `document: {
	children: [
		{type: "hologram", name: "h"},
	]
}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the root command with args and returns stdout.
// Logs and verbose output go to a separate buffer.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// response is a CLIResponse whose data decodes into T.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func engineRequest(component string, value float64) engine.ActionRequest {
	return engine.ActionRequest{
		Component: component,
		Action:    "setValue",
		Args:      ir.IRObject{"value": ir.IRNumber(value)},
	}
}
