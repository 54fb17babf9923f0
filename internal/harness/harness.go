package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/vellum/internal/catalog"
	"github.com/roach88/vellum/internal/compiler"
	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/store"
	"github.com/roach88/vellum/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs one scenario against a real engine journaled into an isolated
// in-memory store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a scenario with the built-in component catalog and returns
// the result.
//
// Execution flow:
// 1. Compile the scenario's document
// 2. Create a fresh in-memory journal
// 3. Initialize the document with a fixed ID and the requested variant
// 4. Execute setup steps, then flow steps with their expectations
// 5. Read the trace back from the journal and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithRegistry(context.Background(), scenario, catalog.NewRegistry())
}

// RunWithRegistry is Run with an explicit component registry.
func RunWithRegistry(ctx context.Context, scenario *Scenario, reg *engine.Registry) (*Result, error) {
	doc, err := compiler.LoadFile(scenario.Document)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	ids := testutil.NewFixedIDGenerator(scenario.DocumentID)

	opts := []engine.Option{
		engine.WithIDGenerator(ids),
		engine.WithJournal(st),
		engine.WithLogger(logger),
	}
	if scenario.Variant != nil {
		opts = append(opts, engine.WithVariant(*scenario.Variant))
	}
	eng := engine.New(reg, doc, opts...)

	if err := st.WriteDocument(ctx, store.Document{
		ID:           eng.DocumentID(),
		Source:       scenario.Document,
		VariantIndex: variantIndex(scenario.Variant),
	}); err != nil {
		return nil, err
	}
	if err := eng.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize document: %w", err)
	}

	h := &Harness{store: st, engine: eng, logger: logger}
	result := NewResult()

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeFlow(ctx, scenario.Flow, result)

	if err := h.collect(ctx, len(scenario.Setup), result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, eng) {
		result.AddError(msg)
	}

	return result, nil
}

func variantIndex(v *engine.VariantRequest) int {
	if v == nil {
		return 0
	}
	return v.Index
}

// executeSetup runs all setup steps. Any failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []ActionStep) error {
	for i, step := range setup {
		args, err := convertArgs(step.Args)
		if err != nil {
			return fmt.Errorf("setup step %d: failed to convert args: %w", i, err)
		}
		if _, _, err := h.engine.Dispatch(ctx, engine.ActionRequest{
			Component: step.Component,
			Action:    step.Action,
			Args:      args,
		}); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		h.logger.Info("setup step completed", "step", i, "component", step.Component, "action", step.Action)
	}
	return nil
}

// executeFlow runs all flow steps and checks each step's expectations.
// Failures are recorded on result; the flow continues.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) {
	for i, step := range flow {
		args, err := convertArgs(step.Args)
		if err != nil {
			result.AddError(fmt.Sprintf("flow[%d]: failed to convert args: %v", i, err))
			continue
		}

		_, _, actionErr := h.engine.Dispatch(ctx, engine.ActionRequest{
			Component: step.Component,
			Action:    step.Action,
			Args:      args,
		})

		for _, msg := range h.checkExpect(step, actionErr) {
			result.AddError(fmt.Sprintf("flow[%d] %s.%s: %s", i, step.Component, step.Action, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"component", step.Component,
			"action", step.Action,
			"error", actionErr,
		)
	}
}

// checkExpect compares an action's outcome against its expect clause.
func (h *Harness) checkExpect(step FlowStep, actionErr error) []string {
	expect := step.Expect
	if expect == nil {
		if actionErr != nil {
			return []string{fmt.Sprintf("unexpected error: %v", actionErr)}
		}
		return nil
	}

	var out []string
	wantErr := expect.Error || expect.ErrorContains != ""
	switch {
	case wantErr && actionErr == nil:
		out = append(out, "expected an error, action succeeded")
	case !wantErr && actionErr != nil:
		out = append(out, fmt.Sprintf("unexpected error: %v", actionErr))
	case expect.ErrorContains != "" && !strings.Contains(actionErr.Error(), expect.ErrorContains):
		out = append(out, fmt.Sprintf("error %q does not contain %q", actionErr.Error(), expect.ErrorContains))
	}

	for _, path := range sortedPaths(expect.Values) {
		if err := assertValue(h.engine, path, expect.Values[path], expect.Tolerance); err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

// collect reads the trace back from the journal and snapshots the
// document's final state.
func (h *Harness) collect(ctx context.Context, setupCount int, result *Result) error {
	records, err := h.store.ReadActions(ctx, h.engine.DocumentID())
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}
	for i, rec := range records {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:       rec.Seq,
			Component: rec.Component,
			Action:    rec.Action,
			Args:      rec.Args,
			Error:     rec.Error,
			Setup:     i < setupCount,
		})
	}

	result.Essentials = h.engine.Essentials()
	result.Variant = h.engine.Variant().Name
	for _, d := range h.engine.Diagnostics() {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: %s", d.Level, d.Message))
	}
	return nil
}

// convertArgs converts YAML-decoded args to an ir.IRObject.
func convertArgs(args map[string]any) (ir.IRObject, error) {
	if args == nil {
		return ir.IRObject{}, nil
	}
	result := make(ir.IRObject, len(args))
	for _, key := range sortedPaths(args) {
		v, err := ir.FromGo(args[key])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		result[key] = v
	}
	return result, nil
}

func sortedPaths(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
