package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
	"github.com/roach88/vellum/internal/store"
)

// journaledDocument is an initialized engine backed by a store.
type journaledDocument struct {
	Engine *engine.Engine

	// Resumed is set when the document existed and was rebuilt by replay.
	Resumed bool
	Replay  *store.ReplayResult
}

// openJournaled returns an engine for documentID journaled into st.
//
// An existing document is rebuilt by replaying its journal, which must be
// deterministic and recorded against the same compiled source. Otherwise
// a new document is initialized with the requested variant and
// registered; an empty documentID generates one.
func openJournaled(ctx context.Context, st *store.Store, doc *LoadedDocument, documentID string, variant engine.VariantRequest, opts []engine.Option) (*journaledDocument, error) {
	reg := newRegistry()
	opts = append(opts, engine.WithJournal(st))

	if documentID != "" {
		meta, err := st.ReadDocument(ctx, documentID)
		switch {
		case err == nil:
			if meta.SourceHash != "" && meta.SourceHash != doc.Hash {
				return nil, fmt.Errorf("document %s was recorded against a different source (%s)", documentID, meta.Source)
			}
			result, eng, err := st.Replay(ctx, reg, doc.Spec, documentID, opts...)
			if err != nil {
				return nil, err
			}
			if !result.Deterministic() {
				return nil, fmt.Errorf("document %s: replay diverged at seq %d (%s)",
					documentID, result.Mismatches[0].Seq, result.Mismatches[0].Field)
			}
			return &journaledDocument{Engine: eng, Resumed: true, Replay: result}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, fmt.Errorf("read document %s: %w", documentID, err)
		}
		opts = append(opts, engine.WithDocumentID(documentID))
	}

	eng := engine.New(reg, doc.Spec, append(opts, engine.WithVariant(variant))...)
	if err := eng.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	info := eng.Variant()
	if err := st.WriteDocument(ctx, store.Document{
		ID:            eng.DocumentID(),
		Source:        doc.Path,
		SourceHash:    doc.Hash,
		VariantIndex:  info.Index,
		VariantName:   info.Name,
		EngineVersion: ir.EngineVersion,
	}); err != nil {
		return nil, err
	}
	return &journaledDocument{Engine: eng}, nil
}
