package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/vellum/internal/engine"
)

// ReadDocument retrieves a document record by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, source_hash, variant_index, variant_name, engine_version
		FROM documents
		WHERE id = ?
	`, id).Scan(
		&doc.ID, &doc.Source, &doc.SourceHash,
		&doc.VariantIndex, &doc.VariantName, &doc.EngineVersion,
	)
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ListDocuments returns every document ordered by ID.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, source_hash, variant_index, variant_name, engine_version
		FROM documents
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.ID, &doc.Source, &doc.SourceHash,
			&doc.VariantIndex, &doc.VariantName, &doc.EngineVersion,
		); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// ReadActions returns every journaled action of a document in replay
// order: ORDER BY seq ASC, id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the document has no actions.
func (s *Store) ReadActions(ctx context.Context, documentID string) ([]engine.ActionRecord, error) {
	return s.QueryActions(ctx, ActionQuery{DocumentID: documentID})
}

// QueryActions returns the actions matching q in replay order.
func (s *Store) QueryActions(ctx context.Context, q ActionQuery) ([]engine.ActionRecord, error) {
	query, params, err := compileActionQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []engine.ActionRecord{}
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// ReadAction retrieves a single action by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadAction(ctx context.Context, id string) (engine.ActionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+actionColumns+`
		FROM actions
		WHERE id = ?
	`, id)
	return scanAction(row)
}

// LastSeq returns the highest journaled seq of a document, or 0.
func (s *Store) LastSeq(ctx context.Context, documentID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM actions WHERE document_id = ?", documentID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// LatestSnapshot returns the snapshot with the highest seq not above
// maxSeq (zero means any). ok is false when none exists.
func (s *Store) LatestSnapshot(ctx context.Context, documentID string, maxSeq int64) (snap Snapshot, ok bool, err error) {
	query := `
		SELECT document_id, seq, essentials, essential_hash
		FROM snapshots
		WHERE document_id = ?`
	params := []any{documentID}
	if maxSeq > 0 {
		query += " AND seq <= ?"
		params = append(params, maxSeq)
	}
	query += " ORDER BY seq DESC LIMIT 1"

	var data string
	err = s.db.QueryRowContext(ctx, query, params...).Scan(
		&snap.DocumentID, &snap.Seq, &data, &snap.EssentialHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("latest snapshot: %w", err)
	}
	if snap.Essentials, err = unmarshalEssentials(data); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (engine.ActionRecord, error) {
	var rec engine.ActionRecord
	var argsJSON string
	if err := row.Scan(
		&rec.ID, &rec.DocumentID, &rec.Seq, &rec.Component, &rec.Action,
		&argsJSON, &rec.EssentialHash, &rec.Error,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.ActionRecord{}, err
		}
		return engine.ActionRecord{}, fmt.Errorf("scan action: %w", err)
	}
	args, err := unmarshalArgs(argsJSON)
	if err != nil {
		return engine.ActionRecord{}, err
	}
	rec.Args = args
	return rec, nil
}
