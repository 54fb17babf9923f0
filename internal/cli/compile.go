package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is the compiled document with summary statistics.
type CompilationResult struct {
	Document engine.NodeSpec  `json:"document"`
	Hash     string           `json:"hash"`
	Stats    CompilationStats `json:"stats"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	Components int            `json:"components"`
	Named      int            `json:"named"`
	Copies     int            `json:"copies"`
	Attributes int            `json:"attributes"`
	ByType     map[string]int `json:"by_type"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <document>",
		Short: "Compile a CUE document to its component tree",
		Long: `Compile a CUE document (a .cue file or package directory) into the
component tree the engine builds from.

The tree is structural only: types are not checked against the catalog.
Use validate for that.

Examples:
  vellum compile lesson.cue
  vellum compile ./lesson -o lesson.json
  vellum compile lesson.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the compiled tree as JSON to this file")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}
	formatter.VerboseLog("Compiled %s (hash %s)", path, doc.Hash)

	result := CompilationResult{
		Document: doc.Spec,
		Hash:     doc.Hash,
		Stats:    calculateStats(doc.Spec),
	}

	if opts.Output != "" {
		if err := writeSpecToFile(doc.Spec, opts.Output); err != nil {
			if outErr := formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "failed to write output", err)
		}
	}

	if formatter.JSON() {
		return formatter.Result(result, nil)
	}

	w := cmd.OutOrStdout()
	stats := result.Stats
	fmt.Fprintf(w, "✓ Compiled %s\n", path)
	fmt.Fprintf(w, "  Components: %d (%d named, %d copies)\n", stats.Components, stats.Named, stats.Copies)
	fmt.Fprintf(w, "  Attributes: %d\n", stats.Attributes)
	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "    %s: %d\n", t, stats.ByType[t])
	}
	if opts.Output != "" {
		fmt.Fprintf(w, "  Output: %s\n", opts.Output)
	}
	return nil
}

// calculateStats counts the nodes of a compiled tree.
func calculateStats(root engine.NodeSpec) CompilationStats {
	stats := CompilationStats{ByType: make(map[string]int)}
	var walk func(n engine.NodeSpec)
	walk = func(n engine.NodeSpec) {
		stats.Components++
		stats.Attributes += len(n.Attributes)
		if n.Name != "" {
			stats.Named++
		}
		if n.CopySource != "" {
			stats.Copies++
		}
		typ := n.Type
		if typ == "" {
			typ = "(copy)"
		}
		stats.ByType[typ]++
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return stats
}

// writeSpecToFile writes the compiled tree as indented JSON.
func writeSpecToFile(spec engine.NodeSpec, path string) error {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
