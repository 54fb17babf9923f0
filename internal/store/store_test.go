package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"documents", "actions", "snapshots"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestOpen_StampsJournal(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("application_id", strconv.Itoa(journalApplicationID)); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("user_version", strconv.Itoa(journalVersion)); err != nil {
		t.Error(err)
	}

	for _, index := range []string{"idx_actions_document_seq", "idx_actions_document_component"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", index,
		).Scan(&name)
		if err != nil {
			t.Errorf("index %q missing: %v", index, err)
		}
	}
}

func TestOpen_RejectsForeignDatabases(t *testing.T) {
	tests := []struct {
		name  string
		setup string
		want  string
	}{
		{"other application", "PRAGMA application_id = 42", "not a vellum journal"},
		{"newer journal", "PRAGMA user_version = 99", "newer than supported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "foreign.db")
			raw, err := sql.Open("sqlite3", path)
			if err != nil {
				t.Fatalf("sql.Open() failed: %v", err)
			}
			if _, err := raw.Exec(tt.setup); err != nil {
				t.Fatalf("setup failed: %v", err)
			}
			raw.Close()

			s, err := Open(path)
			if err == nil {
				s.Close()
				t.Fatal("Open() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Open() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestCompiledQueries_Prepare(t *testing.T) {
	s := createTestStore(t)

	queries := []ActionQuery{
		{DocumentID: "doc-1"},
		{DocumentID: "doc-1", Limit: 5},
		{DocumentID: "doc-1", Filter: And{Predicates: []Predicate{
			Equals{Field: "component", Value: "p"},
			SeqRange{From: 1, To: 3},
			Failed{Failed: true},
		}}},
	}
	for _, q := range queries {
		query, _, err := compileActionQuery(q)
		if err != nil {
			t.Fatalf("compileActionQuery(%+v) failed: %v", q, err)
		}
		stmt, err := s.db.Prepare(query)
		if err != nil {
			t.Errorf("Prepare(%q) failed: %v", query, err)
			continue
		}
		stmt.Close()
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on empty store = %v", err)
	}
}
