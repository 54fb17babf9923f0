package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/store"
)

// ActOptions holds flags for the act command.
type ActOptions struct {
	*RootOptions
	Database   string
	DocumentID string
	Variant    string
	Args       string
	Show       []string
}

// ActResult is the outcome of one action.
type ActResult struct {
	DocumentID string              `json:"document_id"`
	Resumed    bool                `json:"resumed"`
	Replayed   int                 `json:"replayed,omitempty"`
	Record     engine.ActionRecord `json:"record"`
	Values     []ResolvedValue     `json:"values,omitempty"`
}

// NewActCommand creates the act command.
func NewActCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "act <document> <component> <action>",
		Short: "Apply one action to a journaled document",
		Long: `Apply one action to a document journaled in a SQLite database.

With --document-id naming a document already in the database, the
document is rebuilt by replaying its journal before the action runs.
Otherwise a new document is initialized and registered. The action is
journaled even when it fails, and the essential values after it are
saved as a snapshot.

Exit codes:
  0 - Action applied
  1 - Action failed (it is still journaled)
  2 - Command error (document or database unusable)

Examples:
  vellum act lesson.cue P movePoint --db ./vellum.db --args '{"coords":[3,4]}'
  vellum act lesson.cue n setValue --db ./vellum.db --document-id doc-1 --args '{"value":5}' --show n --show m`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAct(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocumentID, "document-id", "", "document to resume or create")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant for a new document (index or name)")
	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action arguments as JSON")
	cmd.Flags().StringArrayVar(&opts.Show, "show", nil, "path to print after the action (repeatable)")

	return cmd
}

func runAct(opts *ActOptions, path, component, action string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	args, err := parseArgs(opts.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}
	variant, err := parseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --variant", err)
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

	logger := newLogger(cfg, cmd.ErrOrStderr())
	jd, err := openJournaled(ctx, st, doc, opts.DocumentID, variant, engineOptions(cfg, logger))
	if err != nil {
		if outErr := formatter.Error(ErrCodeInitFailed, err.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitCommandError, "failed to open document", err)
	}
	eng := jd.Engine
	if jd.Resumed {
		formatter.VerboseLog("Resumed %s after %d action(s)", eng.DocumentID(), jd.Replay.Replayed)
	}

	rec, _, actionErr := eng.Dispatch(ctx, engine.ActionRequest{Component: component, Action: action, Args: args})
	if rec == nil {
		if outErr := formatter.Error(ErrCodeActionError, actionErr.Error(), nil); outErr != nil {
			return outErr
		}
		return WrapExitError(ExitFailure, "action rejected", actionErr)
	}

	if _, err := st.WriteSnapshot(ctx, eng.DocumentID(), rec.Seq, eng.Essentials()); err != nil {
		return WrapExitError(ExitCommandError, "failed to save snapshot", err)
	}

	var values []ResolvedValue
	if len(opts.Show) > 0 {
		if values, err = readValues(eng, opts.Show); err != nil {
			return WrapExitError(ExitCommandError, "failed to read document", err)
		}
	}

	result := ActResult{
		DocumentID: eng.DocumentID(),
		Resumed:    jd.Resumed,
		Record:     *rec,
		Values:     values,
	}
	if jd.Replay != nil {
		result.Replayed = jd.Replay.Replayed
	}

	if formatter.JSON() {
		var failure *CLIError
		if actionErr != nil {
			failure = &CLIError{Code: ErrCodeActionError, Message: rec.Error}
		}
		if err := formatter.Result(result, failure); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		argsJSON, _ := json.Marshal(rec.Args)
		mark := "✓"
		if actionErr != nil {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s [%d] %s.%s %s\n", mark, rec.Seq, rec.Component, rec.Action, argsJSON)
		if rec.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", rec.Error)
		}
		fmt.Fprintf(w, "  document: %s\n", result.DocumentID)
		for _, v := range values {
			if v.Error != "" {
				fmt.Fprintf(w, "  ✗ %s: %s\n", v.Path, v.Error)
				continue
			}
			fmt.Fprintf(w, "  %s = %s\n", v.Path, v.Value)
		}
	}

	if actionErr != nil {
		return WrapExitError(ExitFailure, "action failed", actionErr)
	}
	return nil
}
