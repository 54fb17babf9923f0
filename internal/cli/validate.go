package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/compiler"
	"github.com/roach88/vellum/internal/engine"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid       bool                       `json:"valid"`
	Errors      []compiler.ValidationError `json:"errors,omitempty"`
	References  []compiler.CycleWarning    `json:"reference_cycles,omitempty"`
	Cycles      []engine.CycleWarning      `json:"cycles,omitempty"`
	Diagnostics []engine.Diagnostic        `json:"diagnostics,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Check a document against the component catalog",
		Long: `Validate a CUE document against the component catalog.

Checks run in order:
  1. Structure: types, child groups, attributes, names, references
  2. Reference cycles between components (warnings)
  3. Build the document and analyze its resolved dependency graph;
     cycles without an essential value are errors

Exit codes:
  0 - Document is valid (warnings allowed)
  1 - Validation errors
  2 - Command error (document not found, CUE errors)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}

	result, err := validateDocument(cmd.Context(), doc.Spec, append(cfg.EngineOptions(),
		engine.WithLogger(newLogger(cfg, cmd.ErrOrStderr())))...)
	if err != nil {
		if outErr := formatter.Error(ErrCodeInitFailed, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to build document", err)
	}
	formatter.VerboseLog("Checked %s: %d error(s), %d cycle(s)", path, len(result.Errors), len(result.Cycles))

	if formatter.JSON() {
		var failure *CLIError
		if !result.Valid {
			failure = &CLIError{Code: firstErrorCode(result), Message: "document is invalid"}
		}
		if err := formatter.Result(result, failure); err != nil {
			return err
		}
	} else {
		outputValidationText(cmd.OutOrStdout(), path, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateDocument runs the structural checks and, when they pass, builds
// the document to analyze its dependency graph.
func validateDocument(ctx context.Context, spec engine.NodeSpec, opts ...engine.Option) (ValidationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	reg := newRegistry()
	result := ValidationResult{
		Errors:     compiler.Validate(spec, reg),
		References: compiler.AnalyzeReferences(spec),
	}
	if len(result.Errors) > 0 {
		return result, nil
	}

	eng := engine.New(reg, spec, opts...)
	if err := eng.Initialize(ctx); err != nil {
		return result, err
	}
	cycles, err := eng.AnalyzeCycles()
	if err != nil {
		return result, err
	}
	result.Cycles = cycles
	result.Diagnostics = eng.Diagnostics()

	result.Valid = true
	for _, c := range result.Cycles {
		if c.Level == engine.LevelError {
			result.Valid = false
		}
	}
	for _, d := range result.Diagnostics {
		if d.Level == engine.LevelError {
			result.Valid = false
		}
	}
	return result, nil
}

func firstErrorCode(r ValidationResult) string {
	if len(r.Errors) > 0 {
		return r.Errors[0].Code
	}
	for _, c := range r.Cycles {
		if c.Level == engine.LevelError {
			return ErrCodeCycle
		}
	}
	return ErrCodeDiagnostic
}

func outputValidationText(w io.Writer, path string, r ValidationResult) {
	for _, e := range r.Errors {
		fmt.Fprintf(w, "✗ %s\n", e.Error())
	}
	for _, c := range r.References {
		fmt.Fprintf(w, "! %s\n", c.Message)
	}
	for _, c := range r.Cycles {
		mark := "!"
		if c.Level == engine.LevelError {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, c.Message)
	}
	for _, d := range r.Diagnostics {
		mark := "!"
		if d.Level == engine.LevelError {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, formatDiagnostic(d))
	}

	if r.Valid {
		fmt.Fprintf(w, "✓ %s is valid\n", path)
		return
	}
	fmt.Fprintf(w, "✗ %s is invalid\n", path)
}

// formatDiagnostic renders "line:col: component.variable: message".
func formatDiagnostic(d engine.Diagnostic) string {
	msg := d.Message
	if d.Component != "" {
		where := d.Component
		if d.Variable != "" {
			where += "." + d.Variable
		}
		msg = where + ": " + msg
	}
	if p := d.Range.Start; p.Line > 0 {
		msg = fmt.Sprintf("%d:%d: %s", p.Line, p.Column, msg)
	}
	return msg
}
