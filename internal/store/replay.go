package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// Mismatch is a journaled action whose replay diverged.
type Mismatch struct {
	Seq      int64  `json:"seq"`
	ActionID string `json:"action_id"`
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	DocumentID    string      `json:"document_id"`
	Replayed      int         `json:"replayed"`
	Mismatches    []Mismatch  `json:"mismatches,omitempty"`
	Essentials    ir.IRObject `json:"essentials"`
	EssentialHash string      `json:"essential_hash"`
}

// Deterministic reports whether every action replayed identically.
func (r ReplayResult) Deterministic() bool { return len(r.Mismatches) == 0 }

// Replay rebuilds a journaled document from its source and re-dispatches
// every recorded action in seq order into a fresh engine.
//
// The fresh engine reuses the document ID and variant, so action IDs and
// essential hashes must match the journal. Divergences are reported as
// mismatches, not errors. opts are applied after the replay options.
func (s *Store) Replay(ctx context.Context, reg *engine.Registry, doc engine.NodeSpec, documentID string, opts ...engine.Option) (*ReplayResult, *engine.Engine, error) {
	meta, err := s.ReadDocument(ctx, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, fmt.Errorf("replay: unknown document %q", documentID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}

	records, err := s.ReadActions(ctx, documentID)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}

	base := []engine.Option{
		engine.WithDocumentID(documentID),
		engine.WithVariant(engine.VariantRequest{Index: meta.VariantIndex}),
	}
	eng := engine.New(reg, doc, append(base, opts...)...)
	if err := eng.Initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("replay: initialize: %w", err)
	}

	result := &ReplayResult{DocumentID: documentID}
	for _, recorded := range records {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		replayed, _, dispatchErr := eng.Dispatch(ctx, engine.ActionRequest{
			Component: recorded.Component,
			Action:    recorded.Action,
			Args:      recorded.Args,
		})
		result.Replayed++
		result.Mismatches = append(result.Mismatches, compareRecords(recorded, replayed, dispatchErr)...)
	}

	result.Essentials = eng.Essentials()
	if result.EssentialHash, err = ir.EssentialHash(result.Essentials); err != nil {
		return nil, nil, fmt.Errorf("replay: %w", err)
	}
	return result, eng, nil
}

// compareRecords lists the fields on which a replayed action differs from
// its journal entry.
func compareRecords(recorded engine.ActionRecord, replayed *engine.ActionRecord, dispatchErr error) []Mismatch {
	if replayed == nil {
		msg := "no record"
		if dispatchErr != nil {
			msg = dispatchErr.Error()
		}
		return []Mismatch{{
			Seq:      recorded.Seq,
			ActionID: recorded.ID,
			Field:    "dispatch",
			Recorded: recorded.ID,
			Replayed: msg,
		}}
	}

	var out []Mismatch
	add := func(field, a, b string) {
		if a != b {
			out = append(out, Mismatch{
				Seq:      recorded.Seq,
				ActionID: recorded.ID,
				Field:    field,
				Recorded: a,
				Replayed: b,
			})
		}
	}
	add("id", recorded.ID, replayed.ID)
	add("essential_hash", recorded.EssentialHash, replayed.EssentialHash)
	add("error", recorded.Error, replayed.Error)
	return out
}
