package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/variant"
)

// VariantEntry is one selectable variant.
type VariantEntry struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Seed        string `json:"seed"`
	UniqueIndex int    `json:"unique_index,omitempty"`
}

// VariantsResult describes a document's variant list.
type VariantsResult struct {
	Mode        variant.Mode   `json:"mode"`
	NumVariants int            `json:"num_variants"`
	Variants    []VariantEntry `json:"variants"`
	Warnings    []string       `json:"warnings,omitempty"`
}

// NewVariantsCommand creates the variants command.
func NewVariantsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants <document>",
		Short: "List the variants a document can be initialized with",
		Long: `List the variants of a document without initializing it.

Variant names, seeds, include/exclude lists and unique-variant mode come
from the document's attributes. In unique mode each variant is mapped to a
distinct configuration of the document's variant-controlling components.

Examples:
  vellum variants lesson.cue
  vellum variants lesson.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVariants(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runVariants(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}

	section, err := engine.Variants(newRegistry(), doc.Spec, cfg.EngineOptions()...)
	if err != nil {
		if outErr := formatter.Error(ErrCodeInitFailed, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to build document", err)
	}

	result := VariantsResult{
		Mode:        section.Mode,
		NumVariants: section.NumVariants,
		Variants:    make([]VariantEntry, 0, len(section.Variants)),
		Warnings:    section.Warnings,
	}
	for _, v := range section.Variants {
		result.Variants = append(result.Variants, VariantEntry{
			Index:       v.Index,
			Name:        v.Name,
			Seed:        v.Seed,
			UniqueIndex: v.UniqueIndex,
		})
	}

	if formatter.JSON() {
		return formatter.Result(result, nil)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d variant(s), %s mode\n", len(result.Variants), result.Mode)
	for _, v := range result.Variants {
		if v.UniqueIndex > 0 {
			fmt.Fprintf(w, "  %d  %-6s seed=%s configuration=%d\n", v.Index, v.Name, v.Seed, v.UniqueIndex)
			continue
		}
		fmt.Fprintf(w, "  %d  %-6s seed=%s\n", v.Index, v.Name, v.Seed)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "! %s\n", warning)
	}
	return nil
}
