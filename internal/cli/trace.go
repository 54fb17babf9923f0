package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	DocumentID string
	Component  string // optional - filter to one component
	Action     string // optional - filter to one action name
	Failed     bool   // only failed actions
	Applied    bool   // only applied actions
	From       int64
	To         int64
	Limit      int
}

// TraceEvent represents a single action in the trace timeline.
type TraceEvent struct {
	Seq           int64           `json:"seq"`
	ID            string          `json:"id"`
	Component     string          `json:"component"`
	Action        string          `json:"action"`
	Args          json.RawMessage `json:"args,omitempty"`
	EssentialHash string          `json:"essential_hash"`
	Error         string          `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Document store.Document `json:"document"`
	Timeline []TraceEvent   `json:"timeline"`
	Stats    TraceStats     `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Shown   int   `json:"shown"`
	Applied int   `json:"applied"`
	Failed  int   `json:"failed"`
	LastSeq int64 `json:"last_seq"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the action journal of a document",
		Long: `Show the journaled actions of a document in seq order.

Filters combine: --component and --action match exactly, --failed and
--applied select by outcome, --from and --to bound the seq range.

Examples:
  vellum trace --db ./vellum.db --document-id doc-1
  vellum trace --db ./vellum.db --document-id doc-1 --component P --failed
  vellum trace --db ./vellum.db --document-id doc-1 --from 10 --limit 5 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocumentID, "document-id", "", "document to trace (required)")
	_ = cmd.MarkFlagRequired("document-id")
	cmd.Flags().StringVar(&opts.Component, "component", "", "only actions on this component")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only actions with this name")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only failed actions")
	cmd.Flags().BoolVar(&opts.Applied, "applied", false, "only applied actions")
	cmd.Flags().Int64Var(&opts.From, "from", 0, "first seq to show")
	cmd.Flags().Int64Var(&opts.To, "to", 0, "last seq to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of actions")
	cmd.MarkFlagsMutuallyExclusive("failed", "applied")

	return cmd
}

// buildTraceFilter combines the filter flags into one predicate.
func buildTraceFilter(opts *TraceOptions) (store.Predicate, error) {
	if opts.Limit < 0 {
		return nil, fmt.Errorf("--limit must be non-negative")
	}
	var preds []store.Predicate
	if opts.Component != "" {
		preds = append(preds, store.Equals{Field: "component", Value: opts.Component})
	}
	if opts.Action != "" {
		preds = append(preds, store.Equals{Field: "action", Value: opts.Action})
	}
	switch {
	case opts.Failed:
		preds = append(preds, store.Failed{Failed: true})
	case opts.Applied:
		preds = append(preds, store.Failed{Failed: false})
	}
	if opts.From != 0 || opts.To != 0 {
		preds = append(preds, store.SeqRange{From: opts.From, To: opts.To})
	}
	if len(preds) == 0 {
		return nil, nil
	}
	return store.And{Predicates: preds}, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	filter, err := buildTraceFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	doc, err := st.ReadDocument(ctx, opts.DocumentID)
	if errors.Is(err, sql.ErrNoRows) {
		if outErr := formatter.Error(ErrCodeNotFound, fmt.Sprintf("unknown document %q", opts.DocumentID), nil); outErr != nil {
			return outErr
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown document %q", opts.DocumentID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read document", err)
	}

	records, err := st.QueryActions(ctx, store.ActionQuery{
		DocumentID: opts.DocumentID,
		Filter:     filter,
		Limit:      opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query actions", err)
	}
	last, err := st.LastSeq(ctx, opts.DocumentID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Document: doc,
		Timeline: make([]TraceEvent, 0, len(records)),
		Stats:    TraceStats{Shown: len(records), LastSeq: last},
	}
	for _, rec := range records {
		var args json.RawMessage
		if len(rec.Args) > 0 {
			if args, err = json.Marshal(rec.Args); err != nil {
				return WrapExitError(ExitCommandError, "failed to encode args", err)
			}
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:           rec.Seq,
			ID:            rec.ID,
			Component:     rec.Component,
			Action:        rec.Action,
			Args:          args,
			EssentialHash: rec.EssentialHash,
			Error:         rec.Error,
		})
		if rec.Error != "" {
			result.Stats.Failed++
		} else {
			result.Stats.Applied++
		}
	}

	if formatter.JSON() {
		return formatter.Result(result, nil)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Document: %s (variant %s)\n", result.Document.ID, result.Document.VariantName)
	if verbose {
		fmt.Fprintf(w, "Source: %s\n", result.Document.Source)
	}
	fmt.Fprintln(w)

	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "No matching actions.")
		return nil
	}

	for _, ev := range result.Timeline {
		mark := "✓"
		if ev.Error != "" {
			mark = "✗"
		}
		args := string(ev.Args)
		if args == "" {
			args = "{}"
		}
		fmt.Fprintf(w, "[%d] %s %s.%s %s\n", ev.Seq, mark, ev.Component, ev.Action, args)
		if ev.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", ev.Error)
		}
		if verbose {
			fmt.Fprintf(w, "    id: %s\n", ev.ID)
			fmt.Fprintf(w, "    essentials: %s\n", ev.EssentialHash)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d shown (%d applied, %d failed), last seq %d\n",
		result.Stats.Shown, result.Stats.Applied, result.Stats.Failed, result.Stats.LastSeq)
	return nil
}
