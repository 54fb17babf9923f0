package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database   string
	DocumentID string // optional - specific document only
}

// ReplayDocumentResult holds the replay result for a single document.
type ReplayDocumentResult struct {
	DocumentID    string           `json:"document_id"`
	Variant       string           `json:"variant"`
	Actions       int              `json:"actions"`
	Failed        int              `json:"failed"`
	EssentialHash string           `json:"essential_hash"`
	SnapshotSeq   int64            `json:"snapshot_seq,omitempty"`
	Mismatches    []store.Mismatch `json:"mismatches,omitempty"`
	Deterministic bool             `json:"deterministic"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Documents        []ReplayDocumentResult `json:"documents"`
	TotalDocuments   int                    `json:"total_documents"`
	AllDeterministic bool                   `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <document>",
		Short: "Replay journaled actions and verify determinism",
		Long: `Rebuild journaled documents from their source and replay every action.

Each replayed action must reproduce the journaled action ID, outcome and
essential-value hash, and the final essential values must match the
latest snapshot taken after the last action. Without --document-id every
document in the database recorded against this source is replayed.

Exit codes:
  0 - All documents are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  vellum replay lesson.cue --db ./vellum.db
  vellum replay lesson.cue --db ./vellum.db --document-id doc-1
  vellum replay lesson.cue --db ./vellum.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocumentID, "document-id", "", "replay specific document only")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(formatter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ids, err := documentsToReplay(ctx, st, doc, opts.DocumentID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list documents", err)
	}

	result := ReplayResult{
		Documents:        make([]ReplayDocumentResult, 0, len(ids)),
		TotalDocuments:   len(ids),
		AllDeterministic: true,
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	for _, id := range ids {
		formatter.VerboseLog("Replaying %s", id)
		docResult, err := replayDocument(ctx, st, doc, id, engineOptions(cfg, logger)...)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay document %s", id), err)
		}
		if !docResult.Deterministic {
			result.AllDeterministic = false
			logger.Warn("replay diverged", "document", id, "mismatches", len(docResult.Mismatches))
		}
		result.Documents = append(result.Documents, docResult)
	}

	if formatter.JSON() {
		var failure *CLIError
		if !result.AllDeterministic {
			failure = &CLIError{Code: "E_DETERMINISM", Message: "determinism verification failed"}
		}
		if err := formatter.Result(result, failure); err != nil {
			return err
		}
		if failure != nil {
			return NewExitError(ExitFailure, "determinism verification failed")
		}
		return nil
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// documentsToReplay returns the requested document, or every document
// recorded against doc's source.
func documentsToReplay(ctx context.Context, st *store.Store, doc *LoadedDocument, documentID string) ([]string, error) {
	if documentID != "" {
		if _, err := st.ReadDocument(ctx, documentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("unknown document %q", documentID)
			}
			return nil, err
		}
		return []string{documentID}, nil
	}

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, d := range docs {
		if d.SourceHash == doc.Hash {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}

// replayDocument replays one document and checks its final essentials
// against the snapshot taken after its last action, when there is one.
func replayDocument(ctx context.Context, st *store.Store, doc *LoadedDocument, id string, opts ...engine.Option) (ReplayDocumentResult, error) {
	replayed, eng, err := st.Replay(ctx, newRegistry(), doc.Spec, id, opts...)
	if err != nil {
		return ReplayDocumentResult{}, err
	}

	out := ReplayDocumentResult{
		DocumentID:    id,
		Variant:       eng.Variant().Name,
		Actions:       replayed.Replayed,
		EssentialHash: replayed.EssentialHash,
		Mismatches:    replayed.Mismatches,
	}

	records, err := st.ReadActions(ctx, id)
	if err != nil {
		return ReplayDocumentResult{}, err
	}
	for _, rec := range records {
		if rec.Error != "" {
			out.Failed++
		}
	}

	last, err := st.LastSeq(ctx, id)
	if err != nil {
		return ReplayDocumentResult{}, err
	}
	snap, ok, err := st.LatestSnapshot(ctx, id, last)
	if err != nil {
		return ReplayDocumentResult{}, err
	}
	if ok && snap.Seq == last {
		out.SnapshotSeq = snap.Seq
		if snap.EssentialHash != replayed.EssentialHash {
			out.Mismatches = append(out.Mismatches, store.Mismatch{
				Seq:      snap.Seq,
				Field:    "snapshot",
				Recorded: snap.EssentialHash,
				Replayed: replayed.EssentialHash,
			})
		}
	}

	out.Deterministic = len(out.Mismatches) == 0
	return out, nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.TotalDocuments == 0 {
		fmt.Fprintln(w, "No journaled documents for this source.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d document(s)\n", result.TotalDocuments)
	fmt.Fprintln(w)

	for _, d := range result.Documents {
		status := "✓"
		if !d.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Document: %s (variant %s)\n", status, d.DocumentID, d.Variant)
		fmt.Fprintf(w, "  Actions: %d (%d failed)\n", d.Actions, d.Failed)
		if verbose {
			fmt.Fprintf(w, "  Essential hash: %s\n", d.EssentialHash)
			if d.SnapshotSeq > 0 {
				fmt.Fprintf(w, "  Snapshot: seq %d\n", d.SnapshotSeq)
			}
		}
		for _, m := range d.Mismatches {
			fmt.Fprintf(w, "  seq %d %s: recorded %q, replayed %q\n", m.Seq, m.Field, m.Recorded, m.Replayed)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All documents verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
