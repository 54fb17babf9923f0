package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Variant string
}

// ResolvedValue is one path and the value it resolved to.
type ResolvedValue struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// ResolveResult holds the values read from an initialized document.
type ResolveResult struct {
	DocumentID  string              `json:"document_id"`
	Variant     engine.VariantInfo  `json:"variant"`
	Values      []ResolvedValue     `json:"values"`
	Diagnostics []engine.Diagnostic `json:"diagnostics,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <document> [path...]",
		Short: "Initialize a document and read state variables",
		Long: `Initialize a document and print the values of state variables.

Paths name a component and optionally a variable ("P", "P.coords",
"P.x1", "g.P.coords", "s[2].value"). A bare component reads its primary
variable. With no paths, every public variable of every component is
printed.

Examples:
  vellum resolve lesson.cue P.coords r.endpoint
  vellum resolve lesson.cue --variant 3
  vellum resolve lesson.cue --variant b --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant index (1-based) or name")

	return cmd
}

func runResolve(opts *ResolveOptions, path string, paths []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	variant, err := parseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --variant", err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}

	eng := engine.New(newRegistry(), doc.Spec, engineOptions(cfg, newLogger(cfg, cmd.ErrOrStderr()),
		engine.WithVariant(variant))...)
	if err := eng.Initialize(cmd.Context()); err != nil {
		if outErr := formatter.Error(ErrCodeInitFailed, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to initialize document", err)
	}

	values, err := readValues(eng, paths)
	if err != nil {
		if outErr := formatter.Error(ErrCodeInitFailed, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}

	result := ResolveResult{
		DocumentID:  eng.DocumentID(),
		Variant:     eng.Variant(),
		Values:      values,
		Diagnostics: eng.Diagnostics(),
	}

	failed := 0
	for _, v := range values {
		if v.Error != "" {
			failed++
		}
	}

	if formatter.JSON() {
		var failure *CLIError
		if failed > 0 {
			failure = &CLIError{Code: ErrCodeGeneric, Message: fmt.Sprintf("%d path(s) did not resolve", failed)}
		}
		if err := formatter.Result(result, failure); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "variant %s (%d of %d)\n", result.Variant.Name, result.Variant.Index, result.Variant.NumVariants)
		for _, v := range values {
			if v.Error != "" {
				fmt.Fprintf(w, "✗ %s: %s\n", v.Path, v.Error)
				continue
			}
			fmt.Fprintf(w, "%s = %s\n", v.Path, v.Value)
		}
		for _, d := range result.Diagnostics {
			fmt.Fprintf(w, "! %s: %s\n", d.Level, formatDiagnostic(d))
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d path(s) did not resolve", failed))
	}
	return nil
}

// readValues reads each path, or every public variable when paths is empty.
func readValues(eng *engine.Engine, paths []string) ([]ResolvedValue, error) {
	if len(paths) == 0 {
		snapshot, err := eng.Snapshot()
		if err != nil {
			return nil, err
		}
		var out []ResolvedValue
		for _, name := range snapshot.SortedKeys() {
			vars, _ := snapshot[name].(ir.IRObject)
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, ResolvedValue{Path: name + "." + k, Value: jsonValue(vars[k])})
			}
		}
		return out, nil
	}

	out := make([]ResolvedValue, 0, len(paths))
	for _, p := range paths {
		v, err := eng.Value(p)
		if err != nil {
			out = append(out, ResolvedValue{Path: p, Error: err.Error()})
			continue
		}
		out = append(out, ResolvedValue{Path: p, Value: jsonValue(v)})
	}
	return out, nil
}
