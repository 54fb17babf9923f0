package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Journal files are tagged through SQLite's header fields so Open can tell
// a vellum journal from any other database.
const (
	journalApplicationID = 0x56454c4d // "VELM"
	journalVersion       = 1
)

// Store is the durable action journal of one or more documents.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path, creating it when missing. The special
// path ":memory:" gives a private journal that lives as long as the Store.
//
// Open refuses databases tagged by another application and journals
// written with a newer layout than this build understands.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// One connection: the engine is the only writer, and ":memory:"
	// databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := initJournal(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// initJournal checks the header tags, creates any missing tables and
// stamps a fresh file.
func initJournal(db *sql.DB) error {
	var appID, version int
	if err := db.QueryRow("PRAGMA application_id").Scan(&appID); err != nil {
		return fmt.Errorf("read application_id: %w", err)
	}
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if appID != 0 && appID != journalApplicationID {
		return fmt.Errorf("not a vellum journal (application_id %#x)", appID)
	}
	if version > journalVersion {
		return fmt.Errorf("journal version %d is newer than supported version %d", version, journalVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if appID == 0 || version != journalVersion {
		stamp := fmt.Sprintf("PRAGMA application_id = %d; PRAGMA user_version = %d", journalApplicationID, journalVersion)
		if _, err := db.Exec(stamp); err != nil {
			return fmt.Errorf("stamp journal: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
