package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/vellum/internal/catalog"
	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAction builds an action record with minimal required fields.
func createTestAction(id, documentID, component string, seq int64) engine.ActionRecord {
	return engine.ActionRecord{
		ID:            id,
		DocumentID:    documentID,
		Seq:           seq,
		Component:     component,
		Action:        "setValue",
		Args:          ir.IRObject{"value": ir.IRNumber(float64(seq))},
		EssentialHash: "hash-" + id,
	}
}

// numbersDocument has two free numbers and one defined from them.
func numbersDocument() engine.NodeSpec {
	return engine.NodeSpec{
		Type: "document",
		Name: "doc",
		Children: []engine.NodeSpec{
			{Type: "number", Name: "a", Attributes: map[string]any{"value": 1}},
			{Type: "number", Name: "b", Attributes: map[string]any{"value": 2}},
			{Type: "number", Name: "sum", Attributes: map[string]any{"value": "=$a + $b"}},
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// journaledEngine initializes doc with s as its journal.
func journaledEngine(t *testing.T, s *Store, doc engine.NodeSpec, id string) *engine.Engine {
	t.Helper()
	if err := s.WriteDocument(context.Background(), Document{ID: id, Source: "test.cue"}); err != nil {
		t.Fatalf("WriteDocument() failed: %v", err)
	}
	e := engine.New(catalog.NewRegistry(), doc,
		engine.WithDocumentID(id),
		engine.WithJournal(s),
		engine.WithLogger(quietLogger()),
	)
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return e
}
