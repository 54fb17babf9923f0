package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func TestReadActions_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Written out of order.
	for _, rec := range []struct {
		id  string
		seq int64
	}{{"c", 3}, {"a", 1}, {"b", 2}} {
		if err := s.RecordAction(ctx, createTestAction(rec.id, "doc-1", "n", rec.seq)); err != nil {
			t.Fatalf("RecordAction(%s) failed: %v", rec.id, err)
		}
	}
	if err := s.RecordAction(ctx, createTestAction("other", "doc-2", "n", 1)); err != nil {
		t.Fatalf("RecordAction(other) failed: %v", err)
	}

	got, err := s.ReadActions(ctx, "doc-1")
	if err != nil {
		t.Fatalf("ReadActions() failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []int64{1, 2, 3} {
		if got[i].Seq != want {
			t.Errorf("got[%d].Seq = %d, want %d", i, got[i].Seq, want)
		}
	}
}

func TestReadActions_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadActions(context.Background(), "none")
	if err != nil {
		t.Fatalf("ReadActions() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("ReadActions() = %#v, want empty slice", got)
	}
}

func TestReadAction_NotFound(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.ReadAction(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ReadAction(missing) = %v, want sql.ErrNoRows", err)
	}
}

func TestQueryActions_Filters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recs := []struct {
		id        string
		component string
		seq       int64
		failed    bool
	}{
		{"a1", "a", 1, false},
		{"b2", "b", 2, true},
		{"a3", "a", 3, false},
		{"b4", "b", 4, false},
		{"a5", "a", 5, true},
	}
	for _, r := range recs {
		rec := createTestAction(r.id, "doc-1", r.component, r.seq)
		if r.failed {
			rec.Error = "refused"
		}
		if err := s.RecordAction(ctx, rec); err != nil {
			t.Fatalf("RecordAction(%s) failed: %v", r.id, err)
		}
	}

	tests := []struct {
		name   string
		filter Predicate
		limit  int
		want   []string
	}{
		{"no filter", nil, 0, []string{"a1", "b2", "a3", "b4", "a5"}},
		{"component", Equals{Field: "component", Value: "a"}, 0, []string{"a1", "a3", "a5"}},
		{"seq range", SeqRange{From: 2, To: 4}, 0, []string{"b2", "a3", "b4"}},
		{"open upper bound", &SeqRange{From: 4}, 0, []string{"b4", "a5"}},
		{"failed", Failed{Failed: true}, 0, []string{"b2", "a5"}},
		{"succeeded", Failed{}, 0, []string{"a1", "a3", "b4"}},
		{"and", And{Predicates: []Predicate{
			Equals{Field: "component", Value: "a"},
			Failed{},
			SeqRange{To: 3},
		}}, 0, []string{"a1", "a3"}},
		{"empty and", And{}, 0, []string{"a1", "b2", "a3", "b4", "a5"}},
		{"limit", nil, 2, []string{"a1", "b2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryActions(ctx, ActionQuery{DocumentID: "doc-1", Filter: tt.filter, Limit: tt.limit})
			if err != nil {
				t.Fatalf("QueryActions() failed: %v", err)
			}
			var ids []string
			for _, rec := range got {
				ids = append(ids, rec.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func TestQueryActions_RejectsBadFilters(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter Predicate
	}{
		{"unknown column", Equals{Field: "seq; DROP TABLE actions", Value: "x"}},
		{"unsupported value", Equals{Field: "component", Value: []string{"a"}}},
		{"inverted range", SeqRange{From: 5, To: 2}},
		{"nested", And{Predicates: []Predicate{Equals{Field: "args", Value: "{}"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.QueryActions(ctx, ActionQuery{DocumentID: "doc-1", Filter: tt.filter}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCompileActionQuery_Parameterized(t *testing.T) {
	sql, params, err := compileActionQuery(ActionQuery{
		DocumentID: "doc-1",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "action", Value: "movePoint"},
			SeqRange{From: 2},
		}},
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("compileActionQuery() failed: %v", err)
	}

	want := "SELECT " + actionColumns + " FROM actions WHERE document_id = ? AND (action = ?) AND (seq >= ?) ORDER BY seq ASC, id COLLATE BINARY ASC LIMIT ?"
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(params) != 4 || params[0] != "doc-1" || params[1] != "movePoint" || params[2] != int64(2) || params[3] != 10 {
		t.Errorf("params = %#v", params)
	}
}

func TestLastSeqAndListDocuments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if seq, err := s.LastSeq(ctx, "doc-1"); err != nil || seq != 0 {
		t.Errorf("LastSeq(empty) = %d, %v", seq, err)
	}
	for i, id := range []string{"x", "y", "z"} {
		if err := s.RecordAction(ctx, createTestAction(id, "doc-1", "n", int64(i+1))); err != nil {
			t.Fatalf("RecordAction() failed: %v", err)
		}
	}
	if err := s.WriteDocument(ctx, Document{ID: "doc-0"}); err != nil {
		t.Fatalf("WriteDocument() failed: %v", err)
	}

	if seq, err := s.LastSeq(ctx, "doc-1"); err != nil || seq != 3 {
		t.Errorf("LastSeq() = %d, %v, want 3", seq, err)
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments() failed: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "doc-0" || docs[1].ID != "doc-1" {
		t.Errorf("ListDocuments() = %+v", docs)
	}
}
